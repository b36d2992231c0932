// Package app wires the marketplace process together.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/lastcall-foods/lastcall/internal/checkout"
	"github.com/lastcall-foods/lastcall/internal/gateway"
	"github.com/lastcall-foods/lastcall/internal/httpapi"
	"github.com/lastcall-foods/lastcall/internal/recovery"
	"github.com/lastcall-foods/lastcall/internal/scheduler"
	"github.com/lastcall-foods/lastcall/internal/store/gormstore"
	"github.com/lastcall-foods/lastcall/internal/storecache"
	"github.com/lastcall-foods/lastcall/pkg/market"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Run boots the marketplace and blocks until ctx is canceled.
func Run(ctx context.Context, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("zap init: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	location, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return fmt.Errorf("load timezone: %w", err)
	}

	db, err := openDatabase(cfg.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(gormstore.Models()...); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	store := gormstore.New(db)

	ledger, err := market.NewLedger(store,
		market.WithMaxRetryLock(cfg.MaxRetryLock),
		market.WithOperationLogger(&stockOperationLogger{logger: logger}),
	)
	if err != nil {
		return fmt.Errorf("ledger: %w", err)
	}
	tokens, err := market.NewPickupTokenIssuer([]byte(cfg.PickupTokenSigningKey))
	if err != nil {
		return fmt.Errorf("pickup tokens: %w", err)
	}
	gatewayClient, err := gateway.NewClient(cfg.GatewayBaseURL, cfg.GatewaySecretKey)
	if err != nil {
		return fmt.Errorf("gateway client: %w", err)
	}

	jobScheduler, err := scheduler.New(store, logger,
		scheduler.WithPollInterval(cfg.SchedulerPollInterval),
		scheduler.WithWorkerCount(cfg.SchedulerWorkers),
		scheduler.WithLocation(location),
	)
	if err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}

	checkoutService, err := checkout.NewService(checkout.Dependencies{
		Catalog:         store,
		Stock:           store,
		Ledger:          ledger,
		Carts:           store,
		Orders:          store,
		Gateway:         gatewayClient,
		Timeouts:        jobScheduler,
		Tokens:          tokens,
		Reconciliations: store,
		Logger:          logger,
		PaymentTimeout:  cfg.PaymentTimeout,
	})
	if err != nil {
		return fmt.Errorf("checkout: %w", err)
	}

	var redisClient *redis.Client
	if strings.TrimSpace(cfg.RedisAddr) != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer func() { _ = redisClient.Close() }()
	}
	directory := storecache.New(store, redisClient, logger)

	if err := jobScheduler.RegisterMarketplaceJobs(scheduler.MarketplaceJobs{
		Checkout:                checkoutService,
		Directory:               directory,
		Maintenance:             store,
		Setter:                  ledger,
		Archiver:                store,
		Logger:                  logger,
		ArchiveMinutes:          mustDailyMinutes(cfg.ArchiveTime),
		ResetMinutes:            mustDailyMinutes(cfg.ResetTime),
		ApplyStockMinutes:       mustDailyMinutes(cfg.ApplyStockTime),
		RegisterDeadlineMinutes: mustDailyMinutes(cfg.RegisterDeadlineTime),
		RegisterCloseMinutes:    mustDailyMinutes(cfg.RegisterCloseTime),
	}); err != nil {
		return fmt.Errorf("register jobs: %w", err)
	}

	runner, err := recovery.NewRunner(store, checkoutService, jobScheduler, logger)
	if err != nil {
		return fmt.Errorf("recovery: %w", err)
	}
	if err := runner.Run(ctx); err != nil {
		return fmt.Errorf("recovery: %w", err)
	}

	sessions, err := httpapi.NewSessionValidator(httpapi.SessionConfig{
		SigningKey: []byte(cfg.SessionSigningKey),
		Issuer:     cfg.SessionIssuer,
		CookieName: cfg.SessionCookieName,
	})
	if err != nil {
		return fmt.Errorf("session validator: %w", err)
	}
	router, err := httpapi.NewRouter(httpapi.Dependencies{
		Checkout:       checkoutService,
		Catalog:        store,
		Adjuster:       ledger,
		Pending:        store,
		Orders:         store,
		Directory:      directory,
		Sessions:       sessions,
		Logger:         logger,
		AllowedOrigins: cfg.AllowedOrigins,
	})
	if err != nil {
		return fmt.Errorf("router: %w", err)
	}

	schedulerDone := make(chan struct{})
	go func() {
		defer close(schedulerDone)
		if err := jobScheduler.Run(ctx); err != nil {
			logger.Error("scheduler stopped", zap.Error(err))
		}
	}()

	serveErr := httpapi.Serve(ctx, cfg.ListenAddr, router, logger)
	<-schedulerDone
	return serveErr
}

func openDatabase(dsn string) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	}
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return gorm.Open(gormpostgres.Open(dsn), gormConfig)
	}
	return gorm.Open(sqlite.Open(dsn), gormConfig)
}

// mustDailyMinutes is only called after Validate has checked the windows.
func mustDailyMinutes(raw string) int {
	minutes, err := ParseDailyTime(raw)
	if err != nil {
		panic(err)
	}
	return minutes
}

type stockOperationLogger struct {
	logger *zap.Logger
}

func (opLogger *stockOperationLogger) LogOperation(_ context.Context, entry market.OperationLog) {
	fields := []zap.Field{
		zap.String("operation", entry.Operation),
		zap.String("product_id", entry.ProductID.String()),
		zap.Int("quantity", entry.Quantity),
		zap.Int64("version", entry.Version),
		zap.Int("available", entry.Available),
		zap.String("status", entry.Status),
	}
	if entry.Error != nil {
		opLogger.logger.Warn("stock operation", append(fields, zap.Error(entry.Error))...)
		return
	}
	opLogger.logger.Info("stock operation", fields...)
}
