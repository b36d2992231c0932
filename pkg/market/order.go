package market

import (
	"context"
	"fmt"
	"time"
)

// OrderStatus defines the order lifecycle.
type OrderStatus string

const (
	OrderStatusReservation OrderStatus = "reservation"
	OrderStatusAccepted    OrderStatus = "accepted"
	OrderStatusPickupReady OrderStatus = "pickup_ready"
	OrderStatusComplete    OrderStatus = "complete"
	OrderStatusCancel      OrderStatus = "cancel"
)

// String returns the stored representation.
func (status OrderStatus) String() string {
	return string(status)
}

// Terminal reports whether no further transition is allowed.
func (status OrderStatus) Terminal() bool {
	return status == OrderStatusComplete || status == OrderStatusCancel
}

// ParseOrderStatus validates a stored status value.
func ParseOrderStatus(raw string) (OrderStatus, error) {
	switch OrderStatus(raw) {
	case OrderStatusReservation, OrderStatusAccepted, OrderStatusPickupReady, OrderStatusComplete, OrderStatusCancel:
		return OrderStatus(raw), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidOrderStatus, raw)
}

// transitions is the only legal successor set per state. Cancel is reachable
// from every non-terminal state; complete only from pickup_ready.
var transitions = map[OrderStatus][]OrderStatus{
	OrderStatusReservation: {OrderStatusAccepted, OrderStatusCancel},
	OrderStatusAccepted:    {OrderStatusPickupReady, OrderStatusCancel},
	OrderStatusPickupReady: {OrderStatusComplete, OrderStatusCancel},
	OrderStatusComplete:    {},
	OrderStatusCancel:      {},
}

// CanTransition reports whether the move is a path through the lifecycle.
func CanTransition(from OrderStatus, to OrderStatus) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Order is the durable record created when a cart is confirmed.
type Order struct {
	PaymentID     PaymentID
	ProductID     ProductID
	CustomerID    CustomerID
	StoreID       StoreID
	Quantity      Quantity
	Price         int64
	TotalAmount   int64
	Status        OrderStatus
	ReservationAt time.Time
	AcceptedAt    *time.Time
	PickupReadyAt *time.Time
	CompletedAt   *time.Time
	CanceledAt    *time.Time
	CancelReason  string
}

// OrderStore is the persistence contract for current orders.
// TransitionOrder must be a single conditional update guarded by the expected
// prior status and report whether a row was written; concurrent writers race
// on that guard and the loser observes false.
type OrderStore interface {
	CreateOrder(ctx context.Context, order Order) error
	GetOrder(ctx context.Context, paymentID PaymentID) (Order, error)
	TransitionOrder(ctx context.Context, paymentID PaymentID, from OrderStatus, to OrderStatus, at time.Time, reason string) (bool, error)
	ListStoreOrders(ctx context.Context, storeID StoreID, statuses []OrderStatus) ([]Order, error)
}
