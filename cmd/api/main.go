package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/optica-engine/internal/config"
	"github.com/ariefcatur/optica-engine/internal/events"
	"github.com/ariefcatur/optica-engine/internal/httpx"
	"github.com/ariefcatur/optica-engine/internal/invoices"
	kafkax "github.com/ariefcatur/optica-engine/internal/kafka"
	"github.com/ariefcatur/optica-engine/internal/logger"
	"github.com/ariefcatur/optica-engine/internal/notify"
	"github.com/ariefcatur/optica-engine/internal/redisx"
	"github.com/ariefcatur/optica-engine/internal/stock"
	"github.com/ariefcatur/optica-engine/internal/subscriptions"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	migrateOnly := flag.Bool("migrate-only", false, "apply database migrations and exit")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()

	log, err := logger.New(cfg.Log.Level, cfg.Log.Encoding)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()
	log = log.With(zap.String("service", cfg.ServiceName))

	if err := run(cfg, log, *migrateOnly); err != nil {
		log.Error("api exited", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg config.Config, log *zap.Logger, migrateOnly bool) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	be, err := openBackend(ctx, cfg, log, migrateOnly)
	if err != nil {
		return err
	}
	defer be.close()
	if migrateOnly {
		log.Info("migrations applied")
		return nil
	}

	// Redis is optional: without it there is no idempotency replay and the
	// subscription lock falls back to row locks.
	var (
		idem   *redisx.Idempotency
		locker subscriptions.Locker
	)
	if cfg.RedisAddr != "" {
		rdb := redisx.New(cfg.RedisAddr)
		defer rdb.Close()
		if err := redisx.Ping(ctx, rdb); err != nil {
			return err
		}
		idem = redisx.NewIdempotency(rdb, cfg.IdempotencyTTL)
		locker = redisx.NewLocker(rdb)
	}

	var mailer notify.Mailer = notify.LogMailer{Log: log}
	if cfg.SMTP.Host != "" {
		mailer = notify.NewSMTPMailer(notify.SMTPConfig(cfg.SMTP))
	}
	dispatcher := notify.NewDispatcher(be.notify, mailer, log.Named("notify"))

	// inline: the API dispatches notifications itself after commit.
	// kafka: events go to the topic and cmd/notifier dispatches them.
	var (
		sink  events.Sink
		async *events.Async
		prod  *kafkax.Producer
	)
	switch cfg.EventsMode {
	case config.EventsKafka:
		prod = kafkax.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic, 1024, log.Named("kafka"))
		prod.Start(ctx)
		sink = &events.Kafka{Producer: prod, Service: cfg.ServiceName}
	default:
		async = events.NewAsync(dispatcher, log.Named("events"), 10*time.Second)
		sink = async
	}
	sink = events.Multi{sink, events.Log(log.Named("events"))}

	api := &httpx.API{
		Invoices:      invoices.NewEngine(be.invoiceRunner, be.invoiceReader, sink, log.Named("invoices")),
		Stock:         stock.NewService(be.stockRunner, be.stockReader, stock.NewLedger(), sink, log.Named("stock")),
		Subscriptions: subscriptions.NewManager(be.subRunner, be.subReader, locker, log.Named("subscriptions")),
		Notify:        dispatcher,
		Idem:          idem,
		Log:           log,
	}
	router := httpx.NewRouter(log.Named("http"), cfg.RequestTimeout)
	api.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		log.Info("http listening", zap.String("addr", cfg.HTTPAddr), zap.String("events_mode", cfg.EventsMode), zap.String("backend", be.kind))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case err := <-errCh:
		return err
	}
	log.Info("shutting down")

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	if async != nil {
		async.Wait()
	}
	if prod != nil {
		prod.Close()
		prod.WaitClosed()
	}
	return nil
}
