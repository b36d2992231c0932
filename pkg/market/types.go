package market

import (
	"fmt"
	"strings"
	"time"
)

// ProductID identifies a sellable product.
type ProductID struct {
	value string
}

// PaymentID identifies a payment and the cart/order it backs.
type PaymentID struct {
	value string
}

// CustomerID identifies the buying customer.
type CustomerID struct {
	value string
}

// StoreID identifies a seller's store.
type StoreID struct {
	value string
}

// Quantity is a strictly positive unit count.
type Quantity struct {
	value int
}

// NewProductID validates and normalizes a product id.
func NewProductID(raw string) (ProductID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ProductID{}, fmt.Errorf("%w: empty value", ErrInvalidProductID)
	}
	return ProductID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id ProductID) String() string {
	return id.value
}

// NewPaymentID validates and normalizes a payment id.
func NewPaymentID(raw string) (PaymentID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return PaymentID{}, fmt.Errorf("%w: empty value", ErrInvalidPaymentID)
	}
	return PaymentID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id PaymentID) String() string {
	return id.value
}

// NewCustomerID validates and normalizes a customer id.
func NewCustomerID(raw string) (CustomerID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return CustomerID{}, fmt.Errorf("%w: empty value", ErrInvalidCustomerID)
	}
	return CustomerID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id CustomerID) String() string {
	return id.value
}

// NewStoreID validates and normalizes a store id.
func NewStoreID(raw string) (StoreID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return StoreID{}, fmt.Errorf("%w: empty value", ErrInvalidStoreID)
	}
	return StoreID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id StoreID) String() string {
	return id.value
}

// NewQuantity validates a strictly positive unit count.
func NewQuantity(raw int) (Quantity, error) {
	if raw <= 0 {
		return Quantity{}, fmt.Errorf("%w: must be greater than zero", ErrInvalidQuantity)
	}
	return Quantity{value: raw}, nil
}

// Int returns the unit count.
func (quantity Quantity) Int() int {
	return quantity.value
}

// NewSalePercent validates a discount percentage in [0, 100).
func NewSalePercent(raw int) (int, error) {
	if raw < 0 || raw >= 100 {
		return 0, fmt.Errorf("%w: must be in [0, 100)", ErrInvalidSalePercent)
	}
	return raw, nil
}

// Product is the catalog view of a sellable item.
type Product struct {
	ProductID   ProductID
	StoreID     StoreID
	Name        string
	Price       int64
	SalePercent int
}

// CalculateTotal applies the sale percent to the unit price and multiplies by quantity.
func CalculateTotal(price int64, salePercent int, quantity Quantity) int64 {
	discounted := price - price*int64(salePercent)/100
	return discounted * int64(quantity.Int())
}

// StoreSchedule describes one weekday of a store's opening plan.
// Deadline and close times are minutes after local midnight.
type StoreSchedule struct {
	StoreID               StoreID
	Weekday               time.Weekday
	Open                  bool
	PickupDeadlineMinutes int
	CloseMinutes          int
}
