package app

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	defaultListenAddr     = ":8080"
	defaultDatabaseDSN    = "file:lastcall.db?cache=shared"
	defaultSessionIssuer  = "lastcall"
	defaultSessionCookie  = "session"
	defaultAllowedOrigin  = "http://localhost:3000"
	defaultTimezone       = "Local"
	defaultPaymentTimeout = 5 * time.Minute
	defaultMaxRetryLock   = 3
	defaultPollInterval   = 2 * time.Second
	defaultWorkerCount    = 4

	defaultArchiveTime          = "00:05"
	defaultResetTime            = "00:10"
	defaultApplyStockTime       = "00:15"
	defaultRegisterDeadlineTime = "00:20"
	defaultRegisterCloseTime    = "00:25"
)

// Config aggregates runtime settings for marketd.
type Config struct {
	ListenAddr     string
	DatabaseDSN    string
	RedisAddr      string
	AllowedOrigins []string
	Timezone       string

	GatewayBaseURL   string
	GatewaySecretKey string

	SessionSigningKey string
	SessionIssuer     string
	SessionCookieName string

	PickupTokenSigningKey string

	PaymentTimeout        time.Duration
	MaxRetryLock          int
	SchedulerPollInterval time.Duration
	SchedulerWorkers      int

	// Daily maintenance windows in local HH:MM.
	ArchiveTime          string
	ResetTime            string
	ApplyStockTime       string
	RegisterDeadlineTime string
	RegisterCloseTime    string
}

// Validate fills defaults and rejects incomplete configuration.
func (cfg *Config) Validate() error {
	cfg.ListenAddr = defaultIfEmpty(cfg.ListenAddr, defaultListenAddr)
	cfg.DatabaseDSN = defaultIfEmpty(cfg.DatabaseDSN, defaultDatabaseDSN)
	cfg.Timezone = defaultIfEmpty(cfg.Timezone, defaultTimezone)
	cfg.SessionIssuer = defaultIfEmpty(cfg.SessionIssuer, defaultSessionIssuer)
	cfg.SessionCookieName = defaultIfEmpty(cfg.SessionCookieName, defaultSessionCookie)
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{defaultAllowedOrigin}
	}
	if cfg.PaymentTimeout <= 0 {
		cfg.PaymentTimeout = defaultPaymentTimeout
	}
	if cfg.MaxRetryLock <= 0 {
		cfg.MaxRetryLock = defaultMaxRetryLock
	}
	if cfg.SchedulerPollInterval <= 0 {
		cfg.SchedulerPollInterval = defaultPollInterval
	}
	if cfg.SchedulerWorkers <= 0 {
		cfg.SchedulerWorkers = defaultWorkerCount
	}
	cfg.ArchiveTime = defaultIfEmpty(cfg.ArchiveTime, defaultArchiveTime)
	cfg.ResetTime = defaultIfEmpty(cfg.ResetTime, defaultResetTime)
	cfg.ApplyStockTime = defaultIfEmpty(cfg.ApplyStockTime, defaultApplyStockTime)
	cfg.RegisterDeadlineTime = defaultIfEmpty(cfg.RegisterDeadlineTime, defaultRegisterDeadlineTime)
	cfg.RegisterCloseTime = defaultIfEmpty(cfg.RegisterCloseTime, defaultRegisterCloseTime)

	if strings.TrimSpace(cfg.GatewayBaseURL) == "" {
		return fmt.Errorf("gateway base url is required")
	}
	if strings.TrimSpace(cfg.GatewaySecretKey) == "" {
		return fmt.Errorf("gateway secret key is required")
	}
	if len(cfg.SessionSigningKey) == 0 {
		return fmt.Errorf("session signing key is required")
	}
	if len(cfg.PickupTokenSigningKey) == 0 {
		return fmt.Errorf("pickup token signing key is required")
	}
	for _, window := range []string{cfg.ArchiveTime, cfg.ResetTime, cfg.ApplyStockTime, cfg.RegisterDeadlineTime, cfg.RegisterCloseTime} {
		if _, err := ParseDailyTime(window); err != nil {
			return err
		}
	}
	return nil
}

// ParseDailyTime converts a local "HH:MM" string into minutes after midnight.
func ParseDailyTime(raw string) (int, error) {
	parts := strings.SplitN(strings.TrimSpace(raw), ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid daily time %q, expected HH:MM", raw)
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil || hours < 0 || hours > 23 {
		return 0, fmt.Errorf("invalid daily time %q, expected HH:MM", raw)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("invalid daily time %q, expected HH:MM", raw)
	}
	return hours*60 + minutes, nil
}

// ParseAllowedOrigins splits comma-delimited origins into a slice.
func ParseAllowedOrigins(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	normalized := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			normalized = append(normalized, trimmed)
		}
	}
	return normalized
}

func defaultIfEmpty(value string, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
