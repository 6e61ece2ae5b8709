package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	AppEnv         string
	HTTPAddr       string
	ServiceName    string
	RequestTimeout time.Duration

	PostgresDSN      string
	PostgresMaxConns int32

	RedisAddr      string
	IdempotencyTTL time.Duration

	KafkaBrokers    []string
	KafkaTopic      string
	NotifierGroup   string
	NotifierWorkers int
	EventsMode      string

	Log  LogConfig
	SMTP SMTPConfig
}

type LogConfig struct {
	Level    string
	Encoding string
}

type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

const (
	EventsInline = "inline"
	EventsKafka  = "kafka"
)

func Load() Config {
	cfg := Config{
		AppEnv:         getenv("APP_ENV", "production"),
		HTTPAddr:       getenv("HTTP_ADDR", ":8081"),
		ServiceName:    getenv("SERVICE_NAME", "optica-api"),
		RequestTimeout: getenvDuration("REQUEST_TIMEOUT", 15*time.Second),

		PostgresDSN:      os.Getenv("POSTGRES_DSN"),
		PostgresMaxConns: int32(getenvInt("POSTGRES_MAX_CONNS", 8)),

		RedisAddr:      os.Getenv("REDIS_ADDR"),
		IdempotencyTTL: getenvDuration("IDEMPOTENCY_TTL", 24*time.Hour),

		KafkaBrokers:    splitCSV(getenv("KAFKA_BROKERS", "kafka:9092")),
		KafkaTopic:      getenv("KAFKA_TOPIC_EVENTS", "store.events"),
		NotifierGroup:   getenv("KAFKA_GROUP_NOTIFIER", "notifier-svc"),
		NotifierWorkers: getenvInt("NOTIFIER_WORKERS", 4),
		EventsMode:      getenv("EVENTS_MODE", EventsInline),

		Log: LogConfig{
			Level:    getenv("LOG_LEVEL", "info"),
			Encoding: getenv("LOG_ENCODING", "json"),
		},
		SMTP: SMTPConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     getenvInt("SMTP_PORT", 587),
			User:     os.Getenv("SMTP_USER"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     getenv("SMTP_FROM", "no-reply@optica.local"),
		},
	}
	if cfg.IsDevelopment() {
		cfg.Log.Encoding = getenv("LOG_ENCODING", "console")
		cfg.Log.Level = getenv("LOG_LEVEL", "debug")
	}
	return cfg
}

func (c Config) IsDevelopment() bool { return c.AppEnv == "development" }

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getenvDuration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
