package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lastcall-foods/lastcall/internal/checkout"
	"github.com/lastcall-foods/lastcall/pkg/market"
	"go.uber.org/zap"
)

// Checkout is the slice of the checkout coordinator the HTTP layer uses.
type Checkout interface {
	InitPayment(ctx context.Context, customerID market.CustomerID, productID market.ProductID, quantity market.Quantity) (checkout.InitResult, error)
	Confirm(ctx context.Context, customerID market.CustomerID, paymentID market.PaymentID) (market.Order, error)
	CancelByCustomer(ctx context.Context, customerID market.CustomerID, paymentID market.PaymentID, reason string) error
	CancelByStore(ctx context.Context, storeID market.StoreID, paymentID market.PaymentID, reason string) error
	Accept(ctx context.Context, storeID market.StoreID, paymentID market.PaymentID) (market.Order, error)
	PickupReady(ctx context.Context, storeID market.StoreID, paymentID market.PaymentID) (market.Order, string, error)
	Redeem(ctx context.Context, customerID market.CustomerID, paymentID market.PaymentID, token string) (market.Order, error)
	Stock(ctx context.Context, productID market.ProductID) (market.StockRecord, error)
}

// StockAdjuster applies an immediate admin correction to the counters.
type StockAdjuster interface {
	AdminAdjust(ctx context.Context, productID market.ProductID, delta int) (market.StockRecord, error)
}

// StockSetQueue stages a new initial-stock value for the nightly apply job.
type StockSetQueue interface {
	QueueStockSet(ctx context.Context, productID market.ProductID, nextInitialStock int) error
}

// OrderLister lists a store's orders for the seller dashboard.
type OrderLister interface {
	ListStoreOrders(ctx context.Context, storeID market.StoreID, statuses []market.OrderStatus) ([]market.Order, error)
}

type handlers struct {
	checkout  Checkout
	catalog   market.ProductCatalog
	adjuster  StockAdjuster
	pending   StockSetQueue
	orders    OrderLister
	directory market.StoreDirectory
	logger    *zap.Logger
}

type initPaymentRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type confirmRequest struct {
	PaymentID string `json:"payment_id"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

type redeemRequest struct {
	PickupToken string `json:"pickup_token"`
}

type createProductRequest struct {
	ProductID    string `json:"product_id"`
	Name         string `json:"name"`
	Price        int64  `json:"price"`
	SalePercent  int    `json:"sale_percent"`
	InitialStock int    `json:"initial_stock"`
}

type adjustStockRequest struct {
	Adjustment       *int `json:"adjustment"`
	NextInitialStock *int `json:"next_initial_stock"`
}

type orderPayload struct {
	PaymentID    string `json:"payment_id"`
	ProductID    string `json:"product_id"`
	StoreID      string `json:"store_id"`
	Quantity     int    `json:"quantity"`
	TotalAmount  int64  `json:"total_amount"`
	Status       string `json:"status"`
	CancelReason string `json:"cancel_reason,omitempty"`
}

func orderToPayload(order market.Order) orderPayload {
	return orderPayload{
		PaymentID:    order.PaymentID.String(),
		ProductID:    order.ProductID.String(),
		StoreID:      order.StoreID.String(),
		Quantity:     order.Quantity.Int(),
		TotalAmount:  order.TotalAmount,
		Status:       order.Status.String(),
		CancelReason: order.CancelReason,
	}
}

func (api *handlers) respondError(ctx *gin.Context, err error) {
	status, payload := statusForError(err)
	if status >= http.StatusInternalServerError {
		api.logger.Error("request failed",
			zap.String("path", ctx.FullPath()),
			zap.Error(err),
		)
	}
	ctx.JSON(status, payload)
}

func (api *handlers) customerID(ctx *gin.Context) (market.CustomerID, bool) {
	claims := getClaims(ctx)
	if claims == nil {
		ctx.JSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing session"))
		return market.CustomerID{}, false
	}
	customerID, err := market.NewCustomerID(claims.UserID())
	if err != nil {
		api.respondError(ctx, err)
		return market.CustomerID{}, false
	}
	return customerID, true
}

func (api *handlers) sellerStoreID(ctx *gin.Context) (market.StoreID, bool) {
	claims := getClaims(ctx)
	if claims == nil {
		ctx.JSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing session"))
		return market.StoreID{}, false
	}
	storeID, err := api.directory.GetStoreIDBySeller(ctx.Request.Context(), claims.UserID())
	if err != nil {
		api.respondError(ctx, err)
		return market.StoreID{}, false
	}
	return storeID, true
}

func pathPaymentID(ctx *gin.Context) (market.PaymentID, error) {
	return market.NewPaymentID(ctx.Param("payment_id"))
}

func (api *handlers) handleStock(ctx *gin.Context) {
	productID, err := market.NewProductID(ctx.Param("product_id"))
	if err != nil {
		api.respondError(ctx, err)
		return
	}
	record, err := api.checkout.Stock(ctx.Request.Context(), productID)
	if err != nil {
		api.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"product_id": record.ProductID.String(),
		"available":  record.Available(),
	})
}

func (api *handlers) handleInitPayment(ctx *gin.Context) {
	customerID, ok := api.customerID(ctx)
	if !ok {
		return
	}
	request := initPaymentRequest{}
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	productID, err := market.NewProductID(request.ProductID)
	if err != nil {
		api.respondError(ctx, err)
		return
	}
	quantity, err := market.NewQuantity(request.Quantity)
	if err != nil {
		api.respondError(ctx, err)
		return
	}
	result, err := api.checkout.InitPayment(ctx.Request.Context(), customerID, productID, quantity)
	if err != nil {
		api.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{
		"payment_id":   result.PaymentID.String(),
		"total_amount": result.TotalAmount,
	})
}

func (api *handlers) handleConfirm(ctx *gin.Context) {
	customerID, ok := api.customerID(ctx)
	if !ok {
		return
	}
	request := confirmRequest{}
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	paymentID, err := market.NewPaymentID(request.PaymentID)
	if err != nil {
		api.respondError(ctx, err)
		return
	}
	order, err := api.checkout.Confirm(ctx.Request.Context(), customerID, paymentID)
	if err != nil {
		api.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"order": orderToPayload(order)})
}

// handleCancel cancels a customer's own payment or order. The body is
// optional; an empty reason falls back to a generic one.
func (api *handlers) handleCancel(ctx *gin.Context) {
	customerID, ok := api.customerID(ctx)
	if !ok {
		return
	}
	paymentID, err := pathPaymentID(ctx)
	if err != nil {
		api.respondError(ctx, err)
		return
	}
	request := cancelRequest{}
	_ = ctx.ShouldBindJSON(&request)
	reason := strings.TrimSpace(request.Reason)
	if reason == "" {
		reason = "canceled by customer"
	}
	if err := api.checkout.CancelByCustomer(ctx.Request.Context(), customerID, paymentID, reason); err != nil {
		api.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "canceled"})
}

// handleStoreCancel cancels an order on the seller's own store.
func (api *handlers) handleStoreCancel(ctx *gin.Context) {
	storeID, ok := api.sellerStoreID(ctx)
	if !ok {
		return
	}
	paymentID, err := pathPaymentID(ctx)
	if err != nil {
		api.respondError(ctx, err)
		return
	}
	request := cancelRequest{}
	_ = ctx.ShouldBindJSON(&request)
	reason := strings.TrimSpace(request.Reason)
	if reason == "" {
		reason = "canceled by store"
	}
	if err := api.checkout.CancelByStore(ctx.Request.Context(), storeID, paymentID, reason); err != nil {
		api.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "canceled"})
}

func (api *handlers) handleAccept(ctx *gin.Context) {
	storeID, ok := api.sellerStoreID(ctx)
	if !ok {
		return
	}
	paymentID, err := pathPaymentID(ctx)
	if err != nil {
		api.respondError(ctx, err)
		return
	}
	order, err := api.checkout.Accept(ctx.Request.Context(), storeID, paymentID)
	if err != nil {
		api.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"order": orderToPayload(order)})
}

func (api *handlers) handlePickupReady(ctx *gin.Context) {
	storeID, ok := api.sellerStoreID(ctx)
	if !ok {
		return
	}
	paymentID, err := pathPaymentID(ctx)
	if err != nil {
		api.respondError(ctx, err)
		return
	}
	order, token, err := api.checkout.PickupReady(ctx.Request.Context(), storeID, paymentID)
	if err != nil {
		api.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"order":        orderToPayload(order),
		"pickup_token": token,
	})
}

func (api *handlers) handleComplete(ctx *gin.Context) {
	customerID, ok := api.customerID(ctx)
	if !ok {
		return
	}
	paymentID, err := pathPaymentID(ctx)
	if err != nil {
		api.respondError(ctx, err)
		return
	}
	request := redeemRequest{}
	if err := ctx.ShouldBindJSON(&request); err != nil || request.PickupToken == "" {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "pickup_token is required"))
		return
	}
	order, err := api.checkout.Redeem(ctx.Request.Context(), customerID, paymentID, request.PickupToken)
	if err != nil {
		api.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"order": orderToPayload(order)})
}

func (api *handlers) handleListStoreOrders(ctx *gin.Context) {
	storeID, ok := api.sellerStoreID(ctx)
	if !ok {
		return
	}
	statuses := []market.OrderStatus{
		market.OrderStatusReservation,
		market.OrderStatusAccepted,
		market.OrderStatusPickupReady,
	}
	if raw := ctx.Query("status"); raw != "" {
		status, err := market.ParseOrderStatus(raw)
		if err != nil {
			api.respondError(ctx, err)
			return
		}
		statuses = []market.OrderStatus{status}
	}
	orders, err := api.orders.ListStoreOrders(ctx.Request.Context(), storeID, statuses)
	if err != nil {
		api.respondError(ctx, err)
		return
	}
	payload := make([]orderPayload, 0, len(orders))
	for _, order := range orders {
		payload = append(payload, orderToPayload(order))
	}
	ctx.JSON(http.StatusOK, gin.H{"orders": payload})
}

func (api *handlers) handleCreateProduct(ctx *gin.Context) {
	storeID, ok := api.sellerStoreID(ctx)
	if !ok {
		return
	}
	request := createProductRequest{}
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	if request.ProductID == "" {
		request.ProductID = uuid.NewString()
	}
	productID, err := market.NewProductID(request.ProductID)
	if err != nil {
		api.respondError(ctx, err)
		return
	}
	salePercent, err := market.NewSalePercent(request.SalePercent)
	if err != nil {
		api.respondError(ctx, err)
		return
	}
	if request.Price <= 0 {
		api.respondError(ctx, market.ErrInvalidAmount)
		return
	}
	if request.InitialStock < 0 {
		api.respondError(ctx, market.ErrInvalidQuantity)
		return
	}
	product := market.Product{
		ProductID:   productID,
		StoreID:     storeID,
		Name:        strings.TrimSpace(request.Name),
		Price:       request.Price,
		SalePercent: salePercent,
	}
	if product.Name == "" {
		api.respondError(ctx, market.ErrValidation)
		return
	}
	if err := api.catalog.CreateProduct(ctx.Request.Context(), product, request.InitialStock); err != nil {
		api.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"product_id": productID.String()})
}

// handleAdjustStock applies an immediate correction, stages tomorrow's
// initial stock, or both.
func (api *handlers) handleAdjustStock(ctx *gin.Context) {
	storeID, ok := api.sellerStoreID(ctx)
	if !ok {
		return
	}
	productID, err := market.NewProductID(ctx.Param("product_id"))
	if err != nil {
		api.respondError(ctx, err)
		return
	}
	product, err := api.catalog.GetProduct(ctx.Request.Context(), productID)
	if err != nil {
		api.respondError(ctx, err)
		return
	}
	if product.StoreID != storeID {
		api.respondError(ctx, market.ErrOwnership)
		return
	}
	request := adjustStockRequest{}
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	if request.Adjustment == nil && request.NextInitialStock == nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "adjustment or next_initial_stock is required"))
		return
	}
	response := gin.H{"product_id": productID.String()}
	if request.Adjustment != nil {
		record, err := api.adjuster.AdminAdjust(ctx.Request.Context(), productID, *request.Adjustment)
		if err != nil {
			api.respondError(ctx, err)
			return
		}
		response["available"] = record.Available()
	}
	if request.NextInitialStock != nil {
		if *request.NextInitialStock < 0 {
			api.respondError(ctx, market.ErrInvalidQuantity)
			return
		}
		if err := api.pending.QueueStockSet(ctx.Request.Context(), productID, *request.NextInitialStock); err != nil {
			api.respondError(ctx, err)
			return
		}
		response["next_initial_stock"] = *request.NextInitialStock
	}
	ctx.JSON(http.StatusOK, response)
}
