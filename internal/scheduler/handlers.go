package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lastcall-foods/lastcall/pkg/market"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

// CheckoutActions are the order-side effects driven by timed jobs.
type CheckoutActions interface {
	ReleaseAbandonedCart(ctx context.Context, paymentID market.PaymentID) error
	CancelAtDeadline(ctx context.Context, storeID market.StoreID) (int, error)
	CompleteAtClose(ctx context.Context, storeID market.StoreID) (int, error)
}

// StockSetRequest is one queued next-day stock value.
type StockSetRequest struct {
	ProductID string
	Value     int
}

// StockMaintenance covers the nightly counter work outside the CAS path.
type StockMaintenance interface {
	ResetCounters(ctx context.Context) (int64, error)
	ListPendingStockSets(ctx context.Context) ([]StockSetRequest, error)
	DeletePendingStockSet(ctx context.Context, productID string) error
}

// StockSetter applies a queued stock value through the ledger's CAS path.
type StockSetter interface {
	SetInitialStock(ctx context.Context, productID market.ProductID, value int) (market.StockRecord, error)
}

// OrderArchiver migrates the day's orders to history storage.
type OrderArchiver interface {
	ArchiveOrders(ctx context.Context, archivedAt time.Time) (int64, error)
}

// MarketplaceJobs bundles the dependencies of the marketplace job handlers.
type MarketplaceJobs struct {
	Checkout    CheckoutActions
	Directory   market.StoreDirectory
	Maintenance StockMaintenance
	Setter      StockSetter
	Archiver    OrderArchiver
	Logger      *zap.Logger

	// Daily run times as minutes after local midnight.
	ArchiveMinutes          int
	ResetMinutes            int
	ApplyStockMinutes       int
	RegisterDeadlineMinutes int
	RegisterCloseMinutes    int
}

// RegisterMarketplaceJobs binds every fixed and dynamic marketplace job. The
// two registration jobs are catch-up dailies: if their window already passed
// when the process starts, they run on the first poll.
func (scheduler *Scheduler) RegisterMarketplaceJobs(jobs MarketplaceJobs) error {
	if jobs.Checkout == nil || jobs.Directory == nil || jobs.Maintenance == nil || jobs.Setter == nil || jobs.Archiver == nil {
		return fmt.Errorf("scheduler: marketplace job dependencies are incomplete")
	}
	if jobs.Logger == nil {
		jobs.Logger = zap.NewNop()
	}

	scheduler.Register(KindPaymentTimeout, scheduler.handlePaymentTimeout(jobs))
	scheduler.Register(KindPickupDeadline, scheduler.handlePickupDeadline(jobs))
	scheduler.Register(KindCloseTime, scheduler.handleCloseTime(jobs))

	scheduler.RegisterDaily(KindArchiveOrders, jobs.ArchiveMinutes, false, scheduler.handleArchiveOrders(jobs))
	scheduler.RegisterDaily(KindResetCounters, jobs.ResetMinutes, false, scheduler.handleResetCounters(jobs))
	scheduler.RegisterDaily(KindApplyStockSets, jobs.ApplyStockMinutes, false, scheduler.handleApplyStockSets(jobs))
	scheduler.RegisterDaily(KindRegisterDeadlines, jobs.RegisterDeadlineMinutes, true, scheduler.handleRegistration(jobs, KindPickupDeadline))
	scheduler.RegisterDaily(KindRegisterCloseTimes, jobs.RegisterCloseMinutes, true, scheduler.handleRegistration(jobs, KindCloseTime))
	return nil
}

func (scheduler *Scheduler) handlePaymentTimeout(jobs MarketplaceJobs) HandlerFunc {
	return func(ctx context.Context, job Job) error {
		var payload PaymentTimeoutPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("decode payment timeout payload: %w", err)
		}
		paymentID, err := market.NewPaymentID(payload.PaymentID)
		if err != nil {
			return err
		}
		return jobs.Checkout.ReleaseAbandonedCart(ctx, paymentID)
	}
}

func (scheduler *Scheduler) handlePickupDeadline(jobs MarketplaceJobs) HandlerFunc {
	return func(ctx context.Context, job Job) error {
		storeID, err := decodeStoreDay(job)
		if err != nil {
			return err
		}
		canceled, err := jobs.Checkout.CancelAtDeadline(ctx, storeID)
		if err != nil {
			return err
		}
		jobs.Logger.Info("pickup deadline job ran",
			zap.String("store_id", storeID.String()),
			zap.Int("canceled", canceled),
		)
		return nil
	}
}

func (scheduler *Scheduler) handleCloseTime(jobs MarketplaceJobs) HandlerFunc {
	return func(ctx context.Context, job Job) error {
		storeID, err := decodeStoreDay(job)
		if err != nil {
			return err
		}
		completed, err := jobs.Checkout.CompleteAtClose(ctx, storeID)
		if err != nil {
			return err
		}
		jobs.Logger.Info("close time job ran",
			zap.String("store_id", storeID.String()),
			zap.Int("completed", completed),
		)
		return nil
	}
}

func (scheduler *Scheduler) handleArchiveOrders(jobs MarketplaceJobs) HandlerFunc {
	return func(ctx context.Context, job Job) error {
		migrated, err := jobs.Archiver.ArchiveOrders(ctx, scheduler.nowFn().UTC())
		if err != nil {
			return err
		}
		jobs.Logger.Info("archived current orders", zap.Int64("migrated", migrated))
		return nil
	}
}

func (scheduler *Scheduler) handleResetCounters(jobs MarketplaceJobs) HandlerFunc {
	return func(ctx context.Context, job Job) error {
		reset, err := jobs.Maintenance.ResetCounters(ctx)
		if err != nil {
			return err
		}
		jobs.Logger.Info("reset stock counters", zap.Int64("products", reset))
		return nil
	}
}

func (scheduler *Scheduler) handleApplyStockSets(jobs MarketplaceJobs) HandlerFunc {
	return func(ctx context.Context, job Job) error {
		requests, err := jobs.Maintenance.ListPendingStockSets(ctx)
		if err != nil {
			return err
		}
		for _, request := range requests {
			productID, err := market.NewProductID(request.ProductID)
			if err != nil {
				jobs.Logger.Error("skip pending stock set", zap.String("product_id", request.ProductID), zap.Error(err))
				continue
			}
			if _, err := jobs.Setter.SetInitialStock(ctx, productID, request.Value); err != nil {
				return fmt.Errorf("apply stock set for %s: %w", request.ProductID, err)
			}
			if err := jobs.Maintenance.DeletePendingStockSet(ctx, request.ProductID); err != nil {
				return err
			}
		}
		return nil
	}
}

// handleRegistration enumerates stores open today and enqueues one dynamic
// job per store at its configured minute mark. Idempotent via deterministic
// job ids.
func (scheduler *Scheduler) handleRegistration(jobs MarketplaceJobs, targetKind string) HandlerFunc {
	return func(ctx context.Context, job Job) error {
		now := scheduler.nowFn().In(scheduler.location)
		date := now.Format(dateLayout)
		schedules, err := jobs.Directory.ListOpenSchedules(ctx, now.Weekday())
		if err != nil {
			return err
		}
		for _, schedule := range schedules {
			var jobID string
			var minutes int
			switch targetKind {
			case KindPickupDeadline:
				jobID = PickupDeadlineJobID(schedule.StoreID.String(), date)
				minutes = schedule.PickupDeadlineMinutes
			case KindCloseTime:
				jobID = CloseTimeJobID(schedule.StoreID.String(), date)
				minutes = schedule.CloseMinutes
			default:
				return fmt.Errorf("unknown registration target %q", targetKind)
			}
			payload := StoreDayPayload{StoreID: schedule.StoreID.String(), Date: date}
			storeJob, err := NewJob(jobID, targetKind, payload, scheduler.occurrenceAt(now, minutes))
			if err != nil {
				return err
			}
			if err := scheduler.queue.Enqueue(ctx, storeJob); err != nil {
				return err
			}
		}
		jobs.Logger.Info("registered per-store jobs",
			zap.String("target", targetKind),
			zap.String("date", date),
			zap.Int("stores", len(schedules)),
		)
		return nil
	}
}

func decodeStoreDay(job Job) (market.StoreID, error) {
	var payload StoreDayPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return market.StoreID{}, fmt.Errorf("decode store day payload: %w", err)
	}
	return market.NewStoreID(payload.StoreID)
}
