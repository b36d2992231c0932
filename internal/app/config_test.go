package app

import (
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		GatewayBaseURL:        "https://pay.example.com",
		GatewaySecretKey:      "sk-test",
		SessionSigningKey:     "session-key",
		PickupTokenSigningKey: "pickup-key",
	}
}

func TestValidateFillsDefaults(test *testing.T) {
	test.Parallel()
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		test.Fatalf("validate: %v", err)
	}
	if cfg.ListenAddr != defaultListenAddr {
		test.Fatalf("expected default listen addr, got %q", cfg.ListenAddr)
	}
	if cfg.PaymentTimeout != 5*time.Minute {
		test.Fatalf("expected 5m payment timeout, got %v", cfg.PaymentTimeout)
	}
	if cfg.MaxRetryLock != 3 {
		test.Fatalf("expected 3 lock retries, got %d", cfg.MaxRetryLock)
	}
	if cfg.ArchiveTime != defaultArchiveTime {
		test.Fatalf("expected default archive window, got %q", cfg.ArchiveTime)
	}
}

func TestValidateRequiresSecrets(test *testing.T) {
	test.Parallel()
	for _, missing := range []string{"gateway base", "gateway secret", "session key", "pickup key"} {
		cfg := validConfig()
		switch missing {
		case "gateway base":
			cfg.GatewayBaseURL = ""
		case "gateway secret":
			cfg.GatewaySecretKey = ""
		case "session key":
			cfg.SessionSigningKey = ""
		case "pickup key":
			cfg.PickupTokenSigningKey = ""
		}
		if err := cfg.Validate(); err == nil {
			test.Fatalf("expected validation failure with missing %s", missing)
		}
	}
}

func TestValidateRejectsBadWindow(test *testing.T) {
	test.Parallel()
	cfg := validConfig()
	cfg.ArchiveTime = "25:00"
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "25:00") {
		test.Fatalf("expected bad window error, got %v", err)
	}
}

func TestParseDailyTime(test *testing.T) {
	test.Parallel()
	cases := []struct {
		raw     string
		minutes int
		wantErr bool
	}{
		{raw: "00:05", minutes: 5},
		{raw: "09:30", minutes: 570},
		{raw: "23:59", minutes: 1439},
		{raw: "24:00", wantErr: true},
		{raw: "12:60", wantErr: true},
		{raw: "noon", wantErr: true},
		{raw: "", wantErr: true},
	}
	for _, testCase := range cases {
		minutes, err := ParseDailyTime(testCase.raw)
		if testCase.wantErr {
			if err == nil {
				test.Fatalf("expected error for %q", testCase.raw)
			}
			continue
		}
		if err != nil {
			test.Fatalf("parse %q: %v", testCase.raw, err)
		}
		if minutes != testCase.minutes {
			test.Fatalf("expected %d minutes for %q, got %d", testCase.minutes, testCase.raw, minutes)
		}
	}
}

func TestParseAllowedOrigins(test *testing.T) {
	test.Parallel()
	origins := ParseAllowedOrigins(" https://a.example.com , https://b.example.com ,")
	if len(origins) != 2 || origins[0] != "https://a.example.com" {
		test.Fatalf("unexpected origins: %v", origins)
	}
	if got := ParseAllowedOrigins("  "); len(got) != 0 {
		test.Fatalf("expected empty slice, got %v", got)
	}
}
