package market

import (
	"context"
	"fmt"
)

// StockRecord is the per-product counter set guarded by Version.
// Available stock is initial minus purchased plus the seller's adjustment,
// and must never be negative.
type StockRecord struct {
	ProductID         ProductID
	InitialStock      int
	PurchasedQuantity int
	AdminAdjustment   int
	Version           int64
}

// Available returns the stock currently open for reservation.
func (record StockRecord) Available() int {
	return record.InitialStock - record.PurchasedQuantity + record.AdminAdjustment
}

// StockStore is the persistence contract used by Ledger.
// SwapStock must apply the record only when the stored version still equals
// expectedVersion and report whether a row was written.
type StockStore interface {
	GetStock(ctx context.Context, productID ProductID) (StockRecord, error)
	SwapStock(ctx context.Context, record StockRecord, expectedVersion int64) (bool, error)
}

// ProductCatalog exposes the catalog rows the checkout flow prices carts from.
type ProductCatalog interface {
	GetProduct(ctx context.Context, productID ProductID) (Product, error)
	CreateProduct(ctx context.Context, product Product, initialStock int) error
}

// LedgerOption configures a Ledger instance.
type LedgerOption func(*Ledger)

// WithMaxRetryLock overrides the CAS retry bound.
func WithMaxRetryLock(maxRetry int) LedgerOption {
	return func(ledger *Ledger) {
		if maxRetry > 0 {
			ledger.maxRetry = maxRetry
		}
	}
}

// WithOperationLogger wires a logger that receives callbacks for every mutation.
func WithOperationLogger(logger OperationLogger) LedgerOption {
	return func(ledger *Ledger) {
		ledger.logger = logger
	}
}

// Ledger owns every stock mutation. All writes go through a bounded
// read-compute-swap loop; no other component touches the counters.
type Ledger struct {
	store    StockStore
	maxRetry int
	logger   OperationLogger
}

// NewLedger wires a Ledger.
func NewLedger(store StockStore, options ...LedgerOption) (*Ledger, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: stock store dependency is nil", ErrInvalidLedgerSetup)
	}
	ledger := &Ledger{store: store, maxRetry: DefaultMaxRetryLock}
	for _, option := range options {
		if option != nil {
			option(ledger)
		}
	}
	return ledger, nil
}

// Reserve increments the purchased counter by quantity, rejecting with
// ErrInsufficientStock when the fresh read shows too little available stock.
// An insufficiency rejection does not consume a retry attempt.
func (ledger *Ledger) Reserve(ctx context.Context, productID ProductID, quantity Quantity) (StockRecord, error) {
	record, err := ledger.mutate(ctx, operationReserve, productID, func(current StockRecord) (StockRecord, error) {
		if current.Available() < quantity.Int() {
			return StockRecord{}, fmt.Errorf("%w: %d available, %d requested", ErrInsufficientStock, current.Available(), quantity.Int())
		}
		current.PurchasedQuantity += quantity.Int()
		return current, nil
	})
	ledger.logStock(ctx, operationReserve, productID, quantity.Int(), record, err)
	return record, err
}

// Release decrements the purchased counter by quantity. Release is only ever
// paired with a prior Reserve of the same quantity; the floor at zero is a
// defensive guard, not an expected path.
func (ledger *Ledger) Release(ctx context.Context, productID ProductID, quantity Quantity) (StockRecord, error) {
	record, err := ledger.mutate(ctx, operationRelease, productID, func(current StockRecord) (StockRecord, error) {
		current.PurchasedQuantity -= quantity.Int()
		if current.PurchasedQuantity < 0 {
			current.PurchasedQuantity = 0
		}
		return current, nil
	})
	ledger.logStock(ctx, operationRelease, productID, quantity.Int(), record, err)
	return record, err
}

// AdminAdjust applies a seller correction, rejecting any delta that would
// leave available stock negative.
func (ledger *Ledger) AdminAdjust(ctx context.Context, productID ProductID, delta int) (StockRecord, error) {
	record, err := ledger.mutate(ctx, operationAdminAdjust, productID, func(current StockRecord) (StockRecord, error) {
		current.AdminAdjustment += delta
		if current.Available() < 0 {
			return StockRecord{}, fmt.Errorf("%w: adjustment %d would leave %d available", ErrInsufficientStock, delta, current.Available())
		}
		return current, nil
	})
	ledger.logStock(ctx, operationAdminAdjust, productID, delta, record, err)
	return record, err
}

// SetInitialStock overwrites the initial counter. Used only by the nightly
// pending-stock application job.
func (ledger *Ledger) SetInitialStock(ctx context.Context, productID ProductID, value int) (StockRecord, error) {
	record, err := ledger.mutate(ctx, operationSetStock, productID, func(current StockRecord) (StockRecord, error) {
		if value < 0 {
			return StockRecord{}, fmt.Errorf("%w: initial stock must not be negative", ErrValidation)
		}
		current.InitialStock = value
		if current.Available() < 0 {
			return StockRecord{}, fmt.Errorf("%w: setting initial stock to %d would leave %d available", ErrInsufficientStock, value, current.Available())
		}
		return current, nil
	})
	ledger.logStock(ctx, operationSetStock, productID, value, record, err)
	return record, err
}

// mutate runs the read-compute-swap loop. Each attempt re-reads fresh
// counters; only a version mismatch consumes an attempt.
func (ledger *Ledger) mutate(ctx context.Context, operation string, productID ProductID, compute func(StockRecord) (StockRecord, error)) (StockRecord, error) {
	for attempt := 0; attempt < ledger.maxRetry; attempt++ {
		current, err := ledger.store.GetStock(ctx, productID)
		if err != nil {
			return StockRecord{}, err
		}
		next, err := compute(current)
		if err != nil {
			return StockRecord{}, err
		}
		next.ProductID = current.ProductID
		next.Version = current.Version + 1
		swapped, err := ledger.store.SwapStock(ctx, next, current.Version)
		if err != nil {
			return StockRecord{}, err
		}
		if swapped {
			return next, nil
		}
	}
	return StockRecord{}, WrapError("ledger", operation, "lock_exhausted", ErrLockExhausted)
}

func (ledger *Ledger) logStock(ctx context.Context, operation string, productID ProductID, quantity int, record StockRecord, err error) {
	if ledger.logger == nil {
		return
	}
	entry := OperationLog{
		Operation: operation,
		ProductID: productID,
		Quantity:  quantity,
		Version:   record.Version,
		Available: record.Available(),
		Error:     err,
	}
	if err != nil {
		entry.Status = operationStatusError
	} else {
		entry.Status = operationStatusOK
	}
	ledger.logger.LogOperation(ctx, entry)
}
