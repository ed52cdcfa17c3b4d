package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Database.Driver != DriverPostgres || cfg.Booking.BroadcastTTL != 30*time.Minute {
		t.Errorf("unexpected defaults: driver=%s ttl=%v", cfg.Database.Driver, cfg.Booking.BroadcastTTL)
	}
	if cfg.Redis.Enabled() {
		t.Error("redis must be disabled without REDIS_ADDR")
	}
	if got := cfg.Database.DSN(); !strings.Contains(got, "dbname=fixitnow") {
		t.Errorf("unexpected DSN %q", got)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("DB_DRIVER", "Memory")
	t.Setenv("BROADCAST_TTL", "90")
	t.Setenv("EXPIRY_SWEEP_INTERVAL", "15s")
	t.Setenv("BOOKING_BASE_PRICE", "99.5")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.test, ,https://b.test")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("BROADCAST_MAX_CANDIDATES", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Database.Driver != DriverMemory {
		t.Errorf("expected memory driver, got %s", cfg.Database.Driver)
	}
	if cfg.Booking.BroadcastTTL != 90*time.Second || cfg.Booking.SweepInterval != 15*time.Second {
		t.Errorf("unexpected durations: ttl=%v sweep=%v", cfg.Booking.BroadcastTTL, cfg.Booking.SweepInterval)
	}
	if cfg.Booking.BasePrice != 99.5 || cfg.Booking.MaxCandidates != 10 {
		t.Errorf("unexpected booking config %+v", cfg.Booking)
	}
	if len(cfg.Server.AllowedOrigins) != 2 || cfg.Server.AllowedOrigins[1] != "https://b.test" {
		t.Errorf("unexpected origins %v", cfg.Server.AllowedOrigins)
	}
	if !cfg.Redis.Enabled() {
		t.Error("expected redis enabled")
	}
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DB_DRIVER", "sqlite")

	_, err := Load()
	if err == nil {
		t.Fatal("expected an error")
	}
	for _, want := range []string{"JWT_SECRET", "DB_DRIVER"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %s in %q", want, err)
		}
	}
}
