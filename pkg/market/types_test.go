package market

import (
	"errors"
	"testing"
)

func TestIdentifierConstructorsRejectEmptyValues(test *testing.T) {
	test.Parallel()
	if _, err := NewProductID("  "); !errors.Is(err, ErrInvalidProductID) {
		test.Fatalf("expected ErrInvalidProductID, got %v", err)
	}
	if _, err := NewPaymentID(""); !errors.Is(err, ErrInvalidPaymentID) {
		test.Fatalf("expected ErrInvalidPaymentID, got %v", err)
	}
	if _, err := NewCustomerID(""); !errors.Is(err, ErrInvalidCustomerID) {
		test.Fatalf("expected ErrInvalidCustomerID, got %v", err)
	}
	if _, err := NewStoreID("\t"); !errors.Is(err, ErrInvalidStoreID) {
		test.Fatalf("expected ErrInvalidStoreID, got %v", err)
	}
}

func TestIdentifierConstructorsTrimWhitespace(test *testing.T) {
	test.Parallel()
	productID, err := NewProductID("  product-1  ")
	if err != nil {
		test.Fatalf("product id: %v", err)
	}
	if productID.String() != "product-1" {
		test.Fatalf("expected trimmed value, got %q", productID.String())
	}
}

func TestNewQuantityRejectsNonPositive(test *testing.T) {
	test.Parallel()
	for _, raw := range []int{0, -1} {
		if _, err := NewQuantity(raw); !errors.Is(err, ErrInvalidQuantity) {
			test.Fatalf("expected ErrInvalidQuantity for %d, got %v", raw, err)
		}
	}
}

func TestNewSalePercentBounds(test *testing.T) {
	test.Parallel()
	if _, err := NewSalePercent(-1); !errors.Is(err, ErrInvalidSalePercent) {
		test.Fatalf("expected rejection below zero, got %v", err)
	}
	if _, err := NewSalePercent(100); !errors.Is(err, ErrInvalidSalePercent) {
		test.Fatalf("expected rejection at 100, got %v", err)
	}
	percent, err := NewSalePercent(30)
	if err != nil || percent != 30 {
		test.Fatalf("expected 30 to be accepted, got %d, %v", percent, err)
	}
}

func TestCalculateTotalAppliesDiscount(test *testing.T) {
	test.Parallel()
	quantity := mustQuantity(test, 3)
	if total := CalculateTotal(10000, 30, quantity); total != 21000 {
		test.Fatalf("expected 21000, got %d", total)
	}
	if total := CalculateTotal(10000, 0, quantity); total != 30000 {
		test.Fatalf("expected 30000 without discount, got %d", total)
	}
}

func TestOperationErrorExposesSegments(test *testing.T) {
	test.Parallel()
	wrapped := WrapError("ledger", "reserve", "lock_exhausted", ErrLockExhausted)
	var operationError OperationError
	if !errors.As(wrapped, &operationError) {
		test.Fatalf("expected OperationError, got %T", wrapped)
	}
	if operationError.Layer() != "ledger" || operationError.Subject() != "reserve" || operationError.Code() != "lock_exhausted" {
		test.Fatalf("unexpected segments: %+v", operationError)
	}
	if wrapped.Error() != "ledger.reserve.lock_exhausted: optimistic lock retries exhausted" {
		test.Fatalf("unexpected rendering: %s", wrapped.Error())
	}
	if !errors.Is(wrapped, ErrLockExhausted) {
		test.Fatalf("expected wrapped sentinel to survive")
	}
	if WrapError("ledger", "reserve", "ok", nil) != nil {
		test.Fatalf("expected nil passthrough")
	}
}
