// Package recovery reconciles state left behind by an unclean shutdown.
package recovery

import (
	"context"
	"fmt"

	"github.com/lastcall-foods/lastcall/pkg/market"
	"go.uber.org/zap"
)

// CartReleaser undoes a single abandoned cart hold.
type CartReleaser interface {
	ReleaseAbandonedCart(ctx context.Context, paymentID market.PaymentID) error
}

// JobScheduler is the slice of the scheduler recovery needs.
type JobScheduler interface {
	RecoverStuckJobs(ctx context.Context) error
	CancelPaymentTimeout(ctx context.Context, paymentID string) error
	EnsureDailyJobs(ctx context.Context) error
	PollOnce(ctx context.Context)
}

// Runner sweeps stale carts and reseeds the recurring jobs. It runs once at
// startup before the server accepts traffic; anything that crashed mid-flight
// is either released here or already queued as an overdue job.
type Runner struct {
	carts    market.CartStore
	checkout CartReleaser
	jobs     JobScheduler
	logger   *zap.Logger
}

// NewRunner wires a Runner.
func NewRunner(carts market.CartStore, checkout CartReleaser, jobs JobScheduler, logger *zap.Logger) (*Runner, error) {
	if carts == nil || checkout == nil || jobs == nil {
		return nil, fmt.Errorf("%w: recovery dependencies are incomplete", market.ErrValidation)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{carts: carts, checkout: checkout, jobs: jobs, logger: logger}, nil
}

// Run requeues jobs stranded mid-execution, releases every surviving cart
// hold, reseeds the daily jobs, and runs whatever came due while the process
// was down.
func (runner *Runner) Run(ctx context.Context) error {
	if err := runner.jobs.RecoverStuckJobs(ctx); err != nil {
		return fmt.Errorf("recover stuck jobs: %w", err)
	}
	carts, err := runner.carts.ListCarts(ctx)
	if err != nil {
		return fmt.Errorf("list carts: %w", err)
	}
	released := 0
	for _, cart := range carts {
		if err := runner.checkout.ReleaseAbandonedCart(ctx, cart.PaymentID); err != nil {
			runner.logger.Error("release stale cart",
				zap.String("payment_id", cart.PaymentID.String()),
				zap.Error(err),
			)
			continue
		}
		if err := runner.jobs.CancelPaymentTimeout(ctx, cart.PaymentID.String()); err != nil {
			runner.logger.Warn("cancel stale timeout job",
				zap.String("payment_id", cart.PaymentID.String()),
				zap.Error(err),
			)
		}
		released++
	}
	if released > 0 {
		runner.logger.Info("released stale cart holds", zap.Int("count", released))
	}
	if err := runner.jobs.EnsureDailyJobs(ctx); err != nil {
		return fmt.Errorf("ensure daily jobs: %w", err)
	}
	runner.jobs.PollOnce(ctx)
	return nil
}
