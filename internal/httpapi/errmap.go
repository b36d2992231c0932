package httpapi

import (
	"errors"
	"net/http"

	"github.com/lastcall-foods/lastcall/pkg/market"
)

type errorPayload struct {
	Code    string `json:"error"`
	Message string `json:"message"`
}

func errorResponse(code string, message string) errorPayload {
	return errorPayload{Code: code, Message: message}
}

// statusForError maps domain errors onto HTTP statuses. Unknown errors are
// internal and their detail never leaves the process.
func statusForError(err error) (int, errorPayload) {
	switch {
	case errors.Is(err, market.ErrInsufficientStock):
		return http.StatusBadRequest, errorResponse("insufficient_stock", err.Error())
	case errors.Is(err, market.ErrInvalidPickupToken):
		return http.StatusBadRequest, errorResponse("invalid_pickup_token", err.Error())
	case errors.Is(err, market.ErrValidation),
		errors.Is(err, market.ErrInvalidProductID),
		errors.Is(err, market.ErrInvalidPaymentID),
		errors.Is(err, market.ErrInvalidCustomerID),
		errors.Is(err, market.ErrInvalidStoreID),
		errors.Is(err, market.ErrInvalidQuantity),
		errors.Is(err, market.ErrInvalidAmount),
		errors.Is(err, market.ErrInvalidSalePercent),
		errors.Is(err, market.ErrInvalidOrderStatus):
		return http.StatusBadRequest, errorResponse("validation", err.Error())
	case errors.Is(err, market.ErrOwnership):
		return http.StatusForbidden, errorResponse("forbidden", err.Error())
	case errors.Is(err, market.ErrProductNotFound),
		errors.Is(err, market.ErrCartNotFound),
		errors.Is(err, market.ErrOrderNotFound),
		errors.Is(err, market.ErrStoreNotFound):
		return http.StatusNotFound, errorResponse("not_found", err.Error())
	case errors.Is(err, market.ErrInvalidTransition),
		errors.Is(err, market.ErrLockExhausted),
		errors.Is(err, market.ErrProductExists),
		errors.Is(err, market.ErrCartExists),
		errors.Is(err, market.ErrOrderExists):
		return http.StatusConflict, errorResponse("conflict", err.Error())
	case errors.Is(err, market.ErrGateway):
		// Provider detail stays in the server logs.
		return http.StatusInternalServerError, errorResponse("gateway_error", "payment processing failed")
	default:
		return http.StatusInternalServerError, errorResponse("internal", "internal error")
	}
}
