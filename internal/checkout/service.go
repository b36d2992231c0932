package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lastcall-foods/lastcall/pkg/market"
	"go.uber.org/zap"
)

// DefaultPaymentTimeout is the window a customer has to confirm an initiated
// payment before its hold is released.
const DefaultPaymentTimeout = 5 * time.Minute

// ReasonPickupDeadline marks orders auto-canceled by the per-store deadline job.
const ReasonPickupDeadline = "pickup deadline passed"

// PaidPayment is the gateway's view of a settled payment.
type PaidPayment struct {
	PaymentID   string
	OrderName   string
	Method      string
	TotalAmount int64
	PaidAt      time.Time
}

// RefundResult is the gateway's view of a refund.
type RefundResult struct {
	PaymentID      string
	RefundedAmount int64
	CanceledAt     time.Time
}

// PaymentGateway is the boundary to the external payment provider.
type PaymentGateway interface {
	GetPayment(ctx context.Context, paymentID string) (PaidPayment, error)
	CancelPayment(ctx context.Context, paymentID string, reason string) (RefundResult, error)
}

// TimeoutScheduler registers and cancels the per-payment timeout job.
type TimeoutScheduler interface {
	SchedulePaymentTimeout(ctx context.Context, paymentID string, runAt time.Time) error
	CancelPaymentTimeout(ctx context.Context, paymentID string) error
}

// OrderStore adds the compensation-only delete to the domain order contract.
type OrderStore interface {
	market.OrderStore
	DeleteOrder(ctx context.Context, paymentID market.PaymentID) error
}

// ReconciliationStore persists compensation steps that need manual follow-up.
type ReconciliationStore interface {
	RecordReconciliation(ctx context.Context, paymentID string, step string, detail string) error
}

// Dependencies wires a Service. Every field except Clock and PaymentTimeout
// is required.
type Dependencies struct {
	Catalog         market.ProductCatalog
	Stock           market.StockStore
	Ledger          *market.Ledger
	Carts           market.CartStore
	Orders          OrderStore
	Gateway         PaymentGateway
	Timeouts        TimeoutScheduler
	Tokens          *market.PickupTokenIssuer
	Reconciliations ReconciliationStore
	Logger          *zap.Logger
	Clock           func() time.Time
	PaymentTimeout  time.Duration
}

// InitResult is returned to the customer after a successful reservation.
type InitResult struct {
	PaymentID   market.PaymentID
	TotalAmount int64
}

// Service coordinates payments, orders, and the compensating actions between
// the gateway and the local stock ledger.
type Service struct {
	catalog         market.ProductCatalog
	stock           market.StockStore
	ledger          *market.Ledger
	carts           market.CartStore
	orders          OrderStore
	gateway         PaymentGateway
	timeouts        TimeoutScheduler
	tokens          *market.PickupTokenIssuer
	reconciliations ReconciliationStore
	logger          *zap.Logger
	nowFn           func() time.Time
	paymentTimeout  time.Duration
}

// NewService wires a Service.
func NewService(deps Dependencies) (*Service, error) {
	if deps.Catalog == nil || deps.Stock == nil || deps.Ledger == nil || deps.Carts == nil || deps.Orders == nil {
		return nil, fmt.Errorf("%w: store dependencies are incomplete", market.ErrValidation)
	}
	if deps.Gateway == nil || deps.Timeouts == nil || deps.Tokens == nil || deps.Reconciliations == nil {
		return nil, fmt.Errorf("%w: coordinator dependencies are incomplete", market.ErrValidation)
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.PaymentTimeout <= 0 {
		deps.PaymentTimeout = DefaultPaymentTimeout
	}
	return &Service{
		catalog:         deps.Catalog,
		stock:           deps.Stock,
		ledger:          deps.Ledger,
		carts:           deps.Carts,
		orders:          deps.Orders,
		gateway:         deps.Gateway,
		timeouts:        deps.Timeouts,
		tokens:          deps.Tokens,
		reconciliations: deps.Reconciliations,
		logger:          deps.Logger,
		nowFn:           deps.Clock,
		paymentTimeout:  deps.PaymentTimeout,
	}, nil
}

// InitPayment reserves stock, opens the cart hold, and registers the timeout
// job. A cart failure after a successful reservation releases the hold again.
func (service *Service) InitPayment(ctx context.Context, customerID market.CustomerID, productID market.ProductID, quantity market.Quantity) (InitResult, error) {
	product, err := service.catalog.GetProduct(ctx, productID)
	if err != nil {
		return InitResult{}, err
	}
	if _, err := service.ledger.Reserve(ctx, productID, quantity); err != nil {
		return InitResult{}, err
	}

	paymentID, err := market.NewPaymentID(uuid.NewString())
	if err != nil {
		return InitResult{}, err
	}
	now := service.nowFn()
	cart := market.Cart{
		PaymentID:   paymentID,
		ProductID:   productID,
		CustomerID:  customerID,
		StoreID:     product.StoreID,
		Quantity:    quantity,
		Price:       product.Price,
		SalePercent: product.SalePercent,
		TotalAmount: market.CalculateTotal(product.Price, product.SalePercent, quantity),
		CreatedAt:   now,
	}
	if err := service.carts.OpenCart(ctx, cart); err != nil {
		service.compensate(ctx, paymentID, err, []compensationStep{
			service.stepReleaseStock(productID, quantity),
		})
		return InitResult{}, err
	}
	if err := service.timeouts.SchedulePaymentTimeout(ctx, paymentID.String(), now.Add(service.paymentTimeout)); err != nil {
		service.compensate(ctx, paymentID, err, []compensationStep{
			service.stepCloseCart(paymentID),
			service.stepReleaseStock(productID, quantity),
		})
		return InitResult{}, err
	}
	return InitResult{PaymentID: paymentID, TotalAmount: cart.TotalAmount}, nil
}

// Confirm promotes a paid cart into an order. Any failure after the gateway
// check runs the compensation saga and re-raises the original error.
func (service *Service) Confirm(ctx context.Context, customerID market.CustomerID, paymentID market.PaymentID) (market.Order, error) {
	cart, err := service.carts.GetCart(ctx, paymentID)
	if err != nil {
		return market.Order{}, err
	}
	if cart.CustomerID != customerID {
		return market.Order{}, fmt.Errorf("%w: cart belongs to another customer", market.ErrOwnership)
	}

	payment, err := service.gateway.GetPayment(ctx, paymentID.String())
	if err != nil {
		wrapped := fmt.Errorf("%w: %v", market.ErrGateway, err)
		return market.Order{}, service.compensate(ctx, paymentID, wrapped, service.confirmSteps(cart, false))
	}
	if payment.TotalAmount != cart.TotalAmount {
		wrapped := fmt.Errorf("%w: paid %d, expected %d", market.ErrValidation, payment.TotalAmount, cart.TotalAmount)
		return market.Order{}, service.compensate(ctx, paymentID, wrapped, service.confirmSteps(cart, false))
	}

	order := market.Order{
		PaymentID:     cart.PaymentID,
		ProductID:     cart.ProductID,
		CustomerID:    cart.CustomerID,
		StoreID:       cart.StoreID,
		Quantity:      cart.Quantity,
		Price:         cart.Price,
		TotalAmount:   cart.TotalAmount,
		Status:        market.OrderStatusReservation,
		ReservationAt: service.nowFn(),
	}
	if err := service.orders.CreateOrder(ctx, order); err != nil {
		return market.Order{}, service.compensate(ctx, paymentID, err, service.confirmSteps(cart, false))
	}
	if err := service.carts.CloseCart(ctx, paymentID); err != nil {
		return market.Order{}, service.compensate(ctx, paymentID, err, service.confirmSteps(cart, true))
	}
	if err := service.timeouts.CancelPaymentTimeout(ctx, paymentID.String()); err != nil {
		// The timeout handler no-ops on a closed cart, so this is not fatal.
		service.logger.Warn("cancel payment timeout job", zap.String("payment_id", paymentID.String()), zap.Error(err))
	}
	return order, nil
}

// CancelByCustomer cancels either an open cart or a confirmed order owned by
// the customer.
func (service *Service) CancelByCustomer(ctx context.Context, customerID market.CustomerID, paymentID market.PaymentID, reason string) error {
	order, err := service.orders.GetOrder(ctx, paymentID)
	if err == nil {
		if order.CustomerID != customerID {
			return fmt.Errorf("%w: order belongs to another customer", market.ErrOwnership)
		}
		return service.cancelOrder(ctx, order, reason)
	}
	if !errors.Is(err, market.ErrOrderNotFound) {
		return err
	}

	cart, err := service.carts.GetCart(ctx, paymentID)
	if err != nil {
		return err
	}
	if cart.CustomerID != customerID {
		return fmt.Errorf("%w: cart belongs to another customer", market.ErrOwnership)
	}
	// Pre-confirmation the gateway may not know the payment yet; the refund
	// is best-effort while the hold release is mandatory.
	if _, err := service.gateway.CancelPayment(ctx, paymentID.String(), reason); err != nil {
		service.logger.Warn("cart-stage refund failed", zap.String("payment_id", paymentID.String()), zap.Error(err))
	}
	if err := service.carts.CloseCart(ctx, paymentID); err != nil {
		if errors.Is(err, market.ErrCartNotFound) {
			return nil
		}
		return err
	}
	if _, err := service.ledger.Release(ctx, cart.ProductID, cart.Quantity); err != nil {
		service.flagReconciliation(ctx, paymentID, "release_stock", err)
		return err
	}
	if err := service.timeouts.CancelPaymentTimeout(ctx, paymentID.String()); err != nil {
		service.logger.Warn("cancel payment timeout job", zap.String("payment_id", paymentID.String()), zap.Error(err))
	}
	return nil
}

// CancelByStore cancels an order on behalf of the seller.
func (service *Service) CancelByStore(ctx context.Context, storeID market.StoreID, paymentID market.PaymentID, reason string) error {
	order, err := service.orders.GetOrder(ctx, paymentID)
	if err != nil {
		return err
	}
	if order.StoreID != storeID {
		return fmt.Errorf("%w: order belongs to another store", market.ErrOwnership)
	}
	return service.cancelOrder(ctx, order, reason)
}

// Accept moves a fresh order into the accepted state.
func (service *Service) Accept(ctx context.Context, storeID market.StoreID, paymentID market.PaymentID) (market.Order, error) {
	order, err := service.storeOrder(ctx, storeID, paymentID)
	if err != nil {
		return market.Order{}, err
	}
	return service.transition(ctx, order, market.OrderStatusAccepted, "")
}

// PickupReady marks an accepted order ready and issues the pickup token.
func (service *Service) PickupReady(ctx context.Context, storeID market.StoreID, paymentID market.PaymentID) (market.Order, string, error) {
	order, err := service.storeOrder(ctx, storeID, paymentID)
	if err != nil {
		return market.Order{}, "", err
	}
	updated, err := service.transition(ctx, order, market.OrderStatusPickupReady, "")
	if err != nil {
		return market.Order{}, "", err
	}
	token, err := service.tokens.Issue(updated.CustomerID, updated.PaymentID, updated.ProductID)
	if err != nil {
		return market.Order{}, "", err
	}
	return updated, token, nil
}

// Redeem completes a ready order against a valid pickup token.
func (service *Service) Redeem(ctx context.Context, customerID market.CustomerID, paymentID market.PaymentID, token string) (market.Order, error) {
	claims, err := service.tokens.Verify(token)
	if err != nil {
		return market.Order{}, err
	}
	if !claims.Matches(customerID, paymentID) {
		return market.Order{}, fmt.Errorf("%w: pickup token bound to another customer or payment", market.ErrOwnership)
	}
	order, err := service.orders.GetOrder(ctx, paymentID)
	if err != nil {
		return market.Order{}, err
	}
	if order.CustomerID != customerID {
		return market.Order{}, fmt.Errorf("%w: order belongs to another customer", market.ErrOwnership)
	}
	if claims.ProductID != order.ProductID.String() {
		return market.Order{}, fmt.Errorf("%w: product mismatch", market.ErrInvalidPickupToken)
	}
	return service.transition(ctx, order, market.OrderStatusComplete, "")
}

// Stock exposes the current counters for a product.
func (service *Service) Stock(ctx context.Context, productID market.ProductID) (market.StockRecord, error) {
	return service.stock.GetStock(ctx, productID)
}

// ReleaseAbandonedCart is the payment-timeout job body. Closing the cart row
// claims it; a vanished cart means the payment was confirmed or canceled in
// the meantime and the job is a no-op.
func (service *Service) ReleaseAbandonedCart(ctx context.Context, paymentID market.PaymentID) error {
	cart, err := service.carts.GetCart(ctx, paymentID)
	if err != nil {
		if errors.Is(err, market.ErrCartNotFound) {
			return nil
		}
		return err
	}
	if err := service.carts.CloseCart(ctx, paymentID); err != nil {
		if errors.Is(err, market.ErrCartNotFound) {
			return nil
		}
		return err
	}
	if _, err := service.ledger.Release(ctx, cart.ProductID, cart.Quantity); err != nil {
		// The cart row is already gone; a retry would not see it again, so
		// the unpaired hold goes to reconciliation instead of the job queue.
		service.flagReconciliation(ctx, paymentID, "release_stock", err)
	}
	return nil
}

// CancelAtDeadline cancels every order the store never readied. Safe to run
// twice: already-canceled orders fail the status guard and are skipped.
func (service *Service) CancelAtDeadline(ctx context.Context, storeID market.StoreID) (int, error) {
	orders, err := service.orders.ListStoreOrders(ctx, storeID, []market.OrderStatus{market.OrderStatusReservation, market.OrderStatusAccepted})
	if err != nil {
		return 0, err
	}
	canceled := 0
	for _, order := range orders {
		if err := service.cancelOrder(ctx, order, ReasonPickupDeadline); err != nil {
			service.logger.Error("deadline cancel failed",
				zap.String("payment_id", order.PaymentID.String()),
				zap.Error(err),
			)
			continue
		}
		canceled++
	}
	return canceled, nil
}

// CompleteAtClose completes every order still waiting for pickup at closing.
func (service *Service) CompleteAtClose(ctx context.Context, storeID market.StoreID) (int, error) {
	orders, err := service.orders.ListStoreOrders(ctx, storeID, []market.OrderStatus{market.OrderStatusPickupReady})
	if err != nil {
		return 0, err
	}
	completed := 0
	for _, order := range orders {
		if _, err := service.transition(ctx, order, market.OrderStatusComplete, ""); err != nil {
			service.logger.Error("close-time completion failed",
				zap.String("payment_id", order.PaymentID.String()),
				zap.Error(err),
			)
			continue
		}
		completed++
	}
	return completed, nil
}

// cancelOrder refunds, releases the hold, and flips the status, in that order.
func (service *Service) cancelOrder(ctx context.Context, order market.Order, reason string) error {
	if order.Status.Terminal() {
		return fmt.Errorf("%w: order is already %s", market.ErrInvalidTransition, order.Status)
	}
	if _, err := service.gateway.CancelPayment(ctx, order.PaymentID.String(), reason); err != nil {
		return fmt.Errorf("%w: refund failed: %v", market.ErrGateway, err)
	}
	if _, err := service.ledger.Release(ctx, order.ProductID, order.Quantity); err != nil {
		service.flagReconciliation(ctx, order.PaymentID, "release_stock", err)
		return err
	}
	if _, err := service.transition(ctx, order, market.OrderStatusCancel, reason); err != nil {
		service.flagReconciliation(ctx, order.PaymentID, "mark_cancel", err)
		return err
	}
	return nil
}

// transition performs one guarded status move. Losing the conditional update
// means another writer landed first; the caller gets the now-invalid
// transition, not a blind retry.
func (service *Service) transition(ctx context.Context, order market.Order, to market.OrderStatus, reason string) (market.Order, error) {
	if !market.CanTransition(order.Status, to) {
		return market.Order{}, fmt.Errorf("%w: %s -> %s", market.ErrInvalidTransition, order.Status, to)
	}
	now := service.nowFn()
	moved, err := service.orders.TransitionOrder(ctx, order.PaymentID, order.Status, to, now, reason)
	if err != nil {
		return market.Order{}, err
	}
	if !moved {
		current, err := service.orders.GetOrder(ctx, order.PaymentID)
		if err != nil {
			return market.Order{}, err
		}
		return market.Order{}, fmt.Errorf("%w: %s -> %s", market.ErrInvalidTransition, current.Status, to)
	}
	return service.orders.GetOrder(ctx, order.PaymentID)
}

func (service *Service) storeOrder(ctx context.Context, storeID market.StoreID, paymentID market.PaymentID) (market.Order, error) {
	order, err := service.orders.GetOrder(ctx, paymentID)
	if err != nil {
		return market.Order{}, err
	}
	if order.StoreID != storeID {
		return market.Order{}, fmt.Errorf("%w: order belongs to another store", market.ErrOwnership)
	}
	return order, nil
}
