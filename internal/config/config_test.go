package config

import (
	"reflect"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "")
	t.Setenv("EVENTS_MODE", "")
	t.Setenv("IDEMPOTENCY_TTL", "")
	t.Setenv("LOG_ENCODING", "")

	cfg := Load()
	if cfg.HTTPAddr != ":8081" {
		t.Errorf("HTTPAddr = %q, want :8081", cfg.HTTPAddr)
	}
	if cfg.EventsMode != EventsInline {
		t.Errorf("EventsMode = %q, want %q", cfg.EventsMode, EventsInline)
	}
	if cfg.IdempotencyTTL != 24*time.Hour {
		t.Errorf("IdempotencyTTL = %v, want 24h", cfg.IdempotencyTTL)
	}
	if cfg.Log.Encoding != "json" {
		t.Errorf("Log.Encoding = %q, want json", cfg.Log.Encoding)
	}
}

func TestLoad_Development(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("LOG_ENCODING", "")
	t.Setenv("LOG_LEVEL", "")

	cfg := Load()
	if !cfg.IsDevelopment() {
		t.Fatal("expected development mode")
	}
	if cfg.Log.Encoding != "console" || cfg.Log.Level != "debug" {
		t.Errorf("Log = %+v, want console/debug", cfg.Log)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092 ,")
	t.Setenv("NOTIFIER_WORKERS", "12")
	t.Setenv("REQUEST_TIMEOUT", "3s")
	t.Setenv("SMTP_PORT", "not-a-number")

	cfg := Load()
	if want := []string{"k1:9092", "k2:9092"}; !reflect.DeepEqual(cfg.KafkaBrokers, want) {
		t.Errorf("KafkaBrokers = %v, want %v", cfg.KafkaBrokers, want)
	}
	if cfg.NotifierWorkers != 12 {
		t.Errorf("NotifierWorkers = %d, want 12", cfg.NotifierWorkers)
	}
	if cfg.RequestTimeout != 3*time.Second {
		t.Errorf("RequestTimeout = %v, want 3s", cfg.RequestTimeout)
	}
	if cfg.SMTP.Port != 587 {
		t.Errorf("SMTP.Port = %d, want fallback 587", cfg.SMTP.Port)
	}
}
