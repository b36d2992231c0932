package checkout

import (
	"context"
	"fmt"

	"github.com/lastcall-foods/lastcall/pkg/market"
	"go.uber.org/zap"
)

const compensationAttempts = 3

// compensationStep is one undo action in a saga. Steps run in order and each
// failure is retried independently before the step is flagged for
// reconciliation.
type compensationStep struct {
	name string
	run  func(ctx context.Context) error
}

// compensate runs every step regardless of earlier failures and always
// returns the original cause so the caller surfaces the real error.
func (service *Service) compensate(ctx context.Context, paymentID market.PaymentID, cause error, steps []compensationStep) error {
	for _, step := range steps {
		var stepErr error
		for attempt := 1; attempt <= compensationAttempts; attempt++ {
			stepErr = step.run(ctx)
			if stepErr == nil {
				break
			}
			service.logger.Warn("compensation step failed",
				zap.String("payment_id", paymentID.String()),
				zap.String("step", step.name),
				zap.Int("attempt", attempt),
				zap.Error(stepErr),
			)
		}
		if stepErr != nil {
			service.flagReconciliation(ctx, paymentID, step.name, fmt.Errorf("%w: %v", market.ErrCompensation, stepErr))
		}
	}
	return cause
}

// confirmSteps builds the undo chain for a failed confirmation. The order row
// only exists once orderCreated is true.
func (service *Service) confirmSteps(cart market.Cart, orderCreated bool) []compensationStep {
	steps := make([]compensationStep, 0, 4)
	if orderCreated {
		steps = append(steps, compensationStep{
			name: "remove_order",
			run: func(ctx context.Context) error {
				return service.orders.DeleteOrder(ctx, cart.PaymentID)
			},
		})
	}
	steps = append(steps,
		compensationStep{
			name: "refund_payment",
			run: func(ctx context.Context) error {
				_, err := service.gateway.CancelPayment(ctx, cart.PaymentID.String(), "order confirmation failed")
				return err
			},
		},
		service.stepReleaseStock(cart.ProductID, cart.Quantity),
		service.stepCloseCart(cart.PaymentID),
	)
	return steps
}

func (service *Service) stepReleaseStock(productID market.ProductID, quantity market.Quantity) compensationStep {
	return compensationStep{
		name: "release_stock",
		run: func(ctx context.Context) error {
			_, err := service.ledger.Release(ctx, productID, quantity)
			return err
		},
	}
}

func (service *Service) stepCloseCart(paymentID market.PaymentID) compensationStep {
	return compensationStep{
		name: "close_cart",
		run: func(ctx context.Context) error {
			return service.carts.CloseCart(ctx, paymentID)
		},
	}
}

// flagReconciliation persists a manual-follow-up row. Failing to persist it
// still leaves the structured log line.
func (service *Service) flagReconciliation(ctx context.Context, paymentID market.PaymentID, step string, cause error) {
	service.logger.Error("compensation exhausted, flagged for reconciliation",
		zap.String("payment_id", paymentID.String()),
		zap.String("step", step),
		zap.Error(cause),
	)
	if err := service.reconciliations.RecordReconciliation(ctx, paymentID.String(), step, cause.Error()); err != nil {
		service.logger.Error("record reconciliation",
			zap.String("payment_id", paymentID.String()),
			zap.String("step", step),
			zap.Error(err),
		)
	}
}
