package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/lastcall-foods/lastcall/internal/app"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	flagListenAddr            = "listen-addr"
	flagDatabaseDSN           = "database-dsn"
	flagRedisAddr             = "redis-addr"
	flagAllowedOrigins        = "allowed-origins"
	flagTimezone              = "timezone"
	flagGatewayBaseURL        = "gateway-base-url"
	flagGatewaySecretKey      = "gateway-secret-key"
	flagSessionSigningKey     = "session-signing-key"
	flagSessionIssuer         = "session-issuer"
	flagSessionCookieName     = "session-cookie-name"
	flagPickupTokenSigningKey = "pickup-token-signing-key"
	flagPaymentTimeout        = "payment-timeout"
	flagMaxRetryLock          = "max-retry-lock"
	flagSchedulerPoll         = "scheduler-poll-interval"
	flagSchedulerWorkers      = "scheduler-workers"
	flagArchiveTime           = "archive-time"
	flagResetTime             = "reset-time"
	flagApplyStockTime        = "apply-stock-time"
	flagRegisterDeadlineTime  = "register-deadline-time"
	flagRegisterCloseTime     = "register-close-time"
	envPrefix                 = "MARKETD"
)

func main() {
	rootCmd := newRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "marketd: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cfg := app.Config{}
	cmd := &cobra.Command{
		Use:           "marketd",
		Short:         "discounted-food marketplace backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(cmd, &cfg)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return app.Run(ctx, cfg)
		},
	}

	cmd.Flags().String(flagListenAddr, "", "HTTP listen address")
	cmd.Flags().String(flagDatabaseDSN, "", "sqlite path or postgres DSN")
	cmd.Flags().String(flagRedisAddr, "", "redis address for the store cache (optional)")
	cmd.Flags().String(flagAllowedOrigins, "", "comma-separated list of allowed CORS origins")
	cmd.Flags().String(flagTimezone, "", "IANA timezone for daily maintenance windows")
	cmd.Flags().String(flagGatewayBaseURL, "", "payment gateway base URL (required)")
	cmd.Flags().String(flagGatewaySecretKey, "", "payment gateway merchant secret (required)")
	cmd.Flags().String(flagSessionSigningKey, "", "session JWT signing key (required)")
	cmd.Flags().String(flagSessionIssuer, "", "expected session JWT issuer")
	cmd.Flags().String(flagSessionCookieName, "", "session cookie name")
	cmd.Flags().String(flagPickupTokenSigningKey, "", "pickup token signing key (required)")
	cmd.Flags().Duration(flagPaymentTimeout, 0, "time a customer has to confirm a payment (e.g. 5m)")
	cmd.Flags().Int(flagMaxRetryLock, 0, "bounded retries for optimistic stock updates")
	cmd.Flags().Duration(flagSchedulerPoll, 0, "job queue poll interval (e.g. 2s)")
	cmd.Flags().Int(flagSchedulerWorkers, 0, "concurrent job workers")
	cmd.Flags().String(flagArchiveTime, "", "daily order archival window (HH:MM)")
	cmd.Flags().String(flagResetTime, "", "daily counter reset window (HH:MM)")
	cmd.Flags().String(flagApplyStockTime, "", "daily stock-set apply window (HH:MM)")
	cmd.Flags().String(flagRegisterDeadlineTime, "", "daily pickup-deadline registration window (HH:MM)")
	cmd.Flags().String(flagRegisterCloseTime, "", "daily close-time registration window (HH:MM)")

	return cmd
}

func loadConfig(cmd *cobra.Command, cfg *app.Config) error {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	flagNames := []string{
		flagListenAddr, flagDatabaseDSN, flagRedisAddr, flagAllowedOrigins, flagTimezone,
		flagGatewayBaseURL, flagGatewaySecretKey,
		flagSessionSigningKey, flagSessionIssuer, flagSessionCookieName,
		flagPickupTokenSigningKey,
		flagPaymentTimeout, flagMaxRetryLock, flagSchedulerPoll, flagSchedulerWorkers,
		flagArchiveTime, flagResetTime, flagApplyStockTime, flagRegisterDeadlineTime, flagRegisterCloseTime,
	}
	for _, flagName := range flagNames {
		if err := v.BindPFlag(flagName, cmd.Flags().Lookup(flagName)); err != nil {
			return err
		}
	}

	cfg.ListenAddr = strings.TrimSpace(v.GetString(flagListenAddr))
	cfg.DatabaseDSN = strings.TrimSpace(v.GetString(flagDatabaseDSN))
	cfg.RedisAddr = strings.TrimSpace(v.GetString(flagRedisAddr))
	cfg.AllowedOrigins = app.ParseAllowedOrigins(v.GetString(flagAllowedOrigins))
	cfg.Timezone = strings.TrimSpace(v.GetString(flagTimezone))
	cfg.GatewayBaseURL = strings.TrimSpace(v.GetString(flagGatewayBaseURL))
	cfg.GatewaySecretKey = v.GetString(flagGatewaySecretKey)
	cfg.SessionSigningKey = v.GetString(flagSessionSigningKey)
	cfg.SessionIssuer = strings.TrimSpace(v.GetString(flagSessionIssuer))
	cfg.SessionCookieName = strings.TrimSpace(v.GetString(flagSessionCookieName))
	cfg.PickupTokenSigningKey = v.GetString(flagPickupTokenSigningKey)
	cfg.PaymentTimeout = v.GetDuration(flagPaymentTimeout)
	cfg.MaxRetryLock = v.GetInt(flagMaxRetryLock)
	cfg.SchedulerPollInterval = v.GetDuration(flagSchedulerPoll)
	cfg.SchedulerWorkers = v.GetInt(flagSchedulerWorkers)
	cfg.ArchiveTime = strings.TrimSpace(v.GetString(flagArchiveTime))
	cfg.ResetTime = strings.TrimSpace(v.GetString(flagResetTime))
	cfg.ApplyStockTime = strings.TrimSpace(v.GetString(flagApplyStockTime))
	cfg.RegisterDeadlineTime = strings.TrimSpace(v.GetString(flagRegisterDeadlineTime))
	cfg.RegisterCloseTime = strings.TrimSpace(v.GetString(flagRegisterCloseTime))

	return cfg.Validate()
}
