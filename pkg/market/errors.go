package market

import (
	"errors"
	"fmt"
)

// Domain-level error values returned by the marketplace core.
var (
	ErrValidation         = errors.New("validation failed")
	ErrProductNotFound    = errors.New("product not found")
	ErrCartNotFound       = errors.New("cart not found")
	ErrOrderNotFound      = errors.New("order not found")
	ErrStoreNotFound      = errors.New("store not found")
	ErrOwnership          = errors.New("ownership mismatch")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrLockExhausted      = errors.New("optimistic lock retries exhausted")
	ErrInvalidTransition  = errors.New("invalid order transition")
	ErrGateway            = errors.New("payment gateway failure")
	ErrCompensation       = errors.New("compensation step failed")
	ErrInvalidPickupToken = errors.New("invalid pickup token")
	ErrProductExists      = errors.New("product already exists")
	ErrCartExists         = errors.New("cart already exists")
	ErrOrderExists        = errors.New("order already exists")
	ErrInvalidProductID   = errors.New("invalid product id")
	ErrInvalidPaymentID   = errors.New("invalid payment id")
	ErrInvalidCustomerID  = errors.New("invalid customer id")
	ErrInvalidStoreID     = errors.New("invalid store id")
	ErrInvalidQuantity    = errors.New("invalid quantity")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidSalePercent = errors.New("invalid sale percent")
	ErrInvalidOrderStatus = errors.New("invalid order status")
	ErrInvalidLedgerSetup = errors.New("invalid ledger config")
	ErrInvalidTokenSetup  = errors.New("invalid pickup token config")
)

// OperationError tags a failure with where in the marketplace it happened.
// The three segments render as "layer.subject.code" and give log search a
// stable key: "store.cart.create" is the cart insert failing in persistence,
// "ledger.reserve.lock_exhausted" is a stock reservation losing its CAS
// retries. errors.Is still reaches the wrapped sentinel through Unwrap.
type OperationError struct {
	layer   string
	subject string
	code    string
	err     error
}

// Error renders the segments ahead of the underlying message.
func (operationError OperationError) Error() string {
	return fmt.Sprintf("%s.%s.%s: %v", operationError.layer, operationError.subject, operationError.code, operationError.err)
}

// Unwrap returns the underlying error.
func (operationError OperationError) Unwrap() error {
	return operationError.err
}

// Layer names the component that raised the error, e.g. "ledger" or "store".
func (operationError OperationError) Layer() string {
	return operationError.layer
}

// Subject names what the failing operation acted on.
func (operationError OperationError) Subject() string {
	return operationError.subject
}

// Code is the stable per-operation error code.
func (operationError OperationError) Code() string {
	return operationError.code
}

// WrapError tags err with layer, subject, and code metadata.
func WrapError(layer string, subject string, code string, err error) error {
	if err == nil {
		return nil
	}
	return OperationError{
		layer:   layer,
		subject: subject,
		code:    code,
		err:     err,
	}
}
