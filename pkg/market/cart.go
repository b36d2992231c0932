package market

import (
	"context"
	"time"
)

// Cart is a short-lived hold on stock, created between payment initiation and
// confirmation. Every cart row is backed by a successful stock reservation of
// the same quantity; no cart row may outlive its hold.
type Cart struct {
	PaymentID   PaymentID
	ProductID   ProductID
	CustomerID  CustomerID
	StoreID     StoreID
	Quantity    Quantity
	Price       int64
	SalePercent int
	TotalAmount int64
	CreatedAt   time.Time
}

// CartStore is the persistence contract for reservation holds.
// CloseCart reports ErrCartNotFound when no row was deleted so callers can
// keep the close/release pairing exact.
type CartStore interface {
	OpenCart(ctx context.Context, cart Cart) error
	GetCart(ctx context.Context, paymentID PaymentID) (Cart, error)
	CloseCart(ctx context.Context, paymentID PaymentID) error
	ListCarts(ctx context.Context) ([]Cart, error)
}

// StoreDirectory resolves stores and their weekday opening plans.
type StoreDirectory interface {
	GetStoreIDBySeller(ctx context.Context, sellerID string) (StoreID, error)
	ListOpenSchedules(ctx context.Context, weekday time.Weekday) ([]StoreSchedule, error)
}
