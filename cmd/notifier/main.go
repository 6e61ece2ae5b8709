package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ariefcatur/optica-engine/internal/config"
	kafkax "github.com/ariefcatur/optica-engine/internal/kafka"
	"github.com/ariefcatur/optica-engine/internal/logger"
	"github.com/ariefcatur/optica-engine/internal/notify"
	"github.com/ariefcatur/optica-engine/internal/postgres"
	"github.com/ariefcatur/optica-engine/internal/redisx"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// notifier consumes the store events topic and dispatches notifications.
// It is only needed when the API runs with EVENTS_MODE=kafka.
func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	log, err := logger.New(cfg.Log.Level, cfg.Log.Encoding)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()
	log = log.With(zap.String("service", cfg.ServiceName+"-notifier"))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.PostgresDSN == "" {
		log.Error("POSTGRES_DSN is required")
		os.Exit(1)
	}
	db, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.PostgresMaxConns)
	if err != nil {
		log.Error("db connect", zap.Error(err))
		os.Exit(1)
	}
	defer db.Close()

	var seen notify.Seen
	if cfg.RedisAddr != "" {
		rdb := redisx.New(cfg.RedisAddr)
		defer rdb.Close()
		seen = redisx.NewDedup(rdb, cfg.NotifierGroup)
	}

	var mailer notify.Mailer = notify.LogMailer{Log: log}
	if cfg.SMTP.Host != "" {
		mailer = notify.NewSMTPMailer(notify.SMTPConfig(cfg.SMTP))
	}
	d := notify.NewDispatcher(postgres.New(db), mailer, log.Named("notify"))

	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.NotifierGroup, cfg.KafkaTopic, cfg.NotifierWorkers, log.Named("kafka"))
	log.Info("notifier consumer started",
		zap.String("group", cfg.NotifierGroup),
		zap.String("topic", cfg.KafkaTopic),
		zap.Int("workers", cfg.NotifierWorkers))
	if err := cons.Start(ctx, notify.Handler(d, seen, log)); err != nil {
		log.Error("consumer exit", zap.Error(err))
		os.Exit(1)
	}
	log.Info("notifier stopped")
}
