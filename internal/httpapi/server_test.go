package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/lastcall-foods/lastcall/internal/checkout"
	"github.com/lastcall-foods/lastcall/pkg/market"
)

const testSigningKey = "httpapi-test-key"
const testIssuer = "lastcall-test"

type fakeCheckout struct {
	initResult checkout.InitResult
	initErr    error
	order      market.Order
	orderErr   error
	stock      market.StockRecord
	stockErr   error
	pickupTok  string
	canceled   []string
}

func (fake *fakeCheckout) InitPayment(context.Context, market.CustomerID, market.ProductID, market.Quantity) (checkout.InitResult, error) {
	return fake.initResult, fake.initErr
}

func (fake *fakeCheckout) Confirm(context.Context, market.CustomerID, market.PaymentID) (market.Order, error) {
	return fake.order, fake.orderErr
}

func (fake *fakeCheckout) CancelByCustomer(_ context.Context, _ market.CustomerID, paymentID market.PaymentID, _ string) error {
	if fake.orderErr != nil {
		return fake.orderErr
	}
	fake.canceled = append(fake.canceled, "customer:"+paymentID.String())
	return nil
}

func (fake *fakeCheckout) CancelByStore(_ context.Context, _ market.StoreID, paymentID market.PaymentID, _ string) error {
	if fake.orderErr != nil {
		return fake.orderErr
	}
	fake.canceled = append(fake.canceled, "store:"+paymentID.String())
	return nil
}

func (fake *fakeCheckout) Accept(context.Context, market.StoreID, market.PaymentID) (market.Order, error) {
	return fake.order, fake.orderErr
}

func (fake *fakeCheckout) PickupReady(context.Context, market.StoreID, market.PaymentID) (market.Order, string, error) {
	return fake.order, fake.pickupTok, fake.orderErr
}

func (fake *fakeCheckout) Redeem(context.Context, market.CustomerID, market.PaymentID, string) (market.Order, error) {
	return fake.order, fake.orderErr
}

func (fake *fakeCheckout) Stock(context.Context, market.ProductID) (market.StockRecord, error) {
	return fake.stock, fake.stockErr
}

type fakeCatalog struct {
	product   market.Product
	createErr error
	created   []market.Product
}

func (fake *fakeCatalog) GetProduct(context.Context, market.ProductID) (market.Product, error) {
	return fake.product, nil
}

func (fake *fakeCatalog) CreateProduct(_ context.Context, product market.Product, _ int) error {
	if fake.createErr != nil {
		return fake.createErr
	}
	fake.created = append(fake.created, product)
	return nil
}

type fakeAdjuster struct {
	record market.StockRecord
	err    error
}

func (fake *fakeAdjuster) AdminAdjust(context.Context, market.ProductID, int) (market.StockRecord, error) {
	return fake.record, fake.err
}

type fakePending struct {
	queued map[string]int
}

func (fake *fakePending) QueueStockSet(_ context.Context, productID market.ProductID, nextInitialStock int) error {
	if fake.queued == nil {
		fake.queued = map[string]int{}
	}
	fake.queued[productID.String()] = nextInitialStock
	return nil
}

type fakeOrders struct {
	orders []market.Order
	err    error
}

func (fake *fakeOrders) ListStoreOrders(context.Context, market.StoreID, []market.OrderStatus) ([]market.Order, error) {
	return fake.orders, fake.err
}

type fakeDirectory struct {
	stores map[string]string
}

func (fake *fakeDirectory) GetStoreIDBySeller(_ context.Context, sellerID string) (market.StoreID, error) {
	value, ok := fake.stores[sellerID]
	if !ok {
		return market.StoreID{}, market.ErrStoreNotFound
	}
	return market.NewStoreID(value)
}

func (fake *fakeDirectory) ListOpenSchedules(context.Context, time.Weekday) ([]market.StoreSchedule, error) {
	return nil, nil
}

type apiFixture struct {
	router   *gin.Engine
	checkout *fakeCheckout
	catalog  *fakeCatalog
	pending  *fakePending
}

func newAPIFixture(test *testing.T) *apiFixture {
	test.Helper()
	sessions, err := NewSessionValidator(SessionConfig{
		SigningKey: []byte(testSigningKey),
		Issuer:     testIssuer,
	})
	if err != nil {
		test.Fatalf("new session validator: %v", err)
	}
	fakeCheck := &fakeCheckout{}
	catalog := &fakeCatalog{product: market.Product{StoreID: mustStoreID(test, "store-1")}}
	pending := &fakePending{}
	router, err := NewRouter(Dependencies{
		Checkout:  fakeCheck,
		Catalog:   catalog,
		Adjuster:  &fakeAdjuster{},
		Pending:   pending,
		Orders:    &fakeOrders{},
		Directory: &fakeDirectory{stores: map[string]string{"seller-1": "store-1"}},
		Sessions:  sessions,
	})
	if err != nil {
		test.Fatalf("new router: %v", err)
	}
	return &apiFixture{router: router, checkout: fakeCheck, catalog: catalog, pending: pending}
}

func mustStoreID(test *testing.T, value string) market.StoreID {
	test.Helper()
	storeID, err := market.NewStoreID(value)
	if err != nil {
		test.Fatalf("new store id: %v", err)
	}
	return storeID
}

func signSession(test *testing.T, subject string, role string) string {
	test.Helper()
	claims := SessionClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    testIssuer,
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSigningKey))
	if err != nil {
		test.Fatalf("sign session: %v", err)
	}
	return token
}

func (fix *apiFixture) request(test *testing.T, method string, path string, token string, body interface{}) *httptest.ResponseRecorder {
	test.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			test.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	request := httptest.NewRequest(method, path, reader)
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	recorder := httptest.NewRecorder()
	fix.router.ServeHTTP(recorder, request)
	return recorder
}

func TestHealthz(test *testing.T) {
	test.Parallel()
	fix := newAPIFixture(test)
	recorder := fix.request(test, http.MethodGet, "/healthz", "", nil)
	if recorder.Code != http.StatusOK {
		test.Fatalf("expected 200, got %d", recorder.Code)
	}
}

func TestRequestsWithoutSessionRejected(test *testing.T) {
	test.Parallel()
	fix := newAPIFixture(test)
	recorder := fix.request(test, http.MethodPost, "/api/payment/init", "", initPaymentRequest{ProductID: "prd-1", Quantity: 1})
	if recorder.Code != http.StatusUnauthorized {
		test.Fatalf("expected 401, got %d", recorder.Code)
	}
}

func TestInitPayment(test *testing.T) {
	test.Parallel()
	fix := newAPIFixture(test)
	paymentID, err := market.NewPaymentID("pay-1")
	if err != nil {
		test.Fatalf("new payment id: %v", err)
	}
	fix.checkout.initResult = checkout.InitResult{PaymentID: paymentID, TotalAmount: 21000}
	token := signSession(test, "cus-1", roleCustomer)

	recorder := fix.request(test, http.MethodPost, "/api/payment/init", token, initPaymentRequest{ProductID: "prd-1", Quantity: 3})
	if recorder.Code != http.StatusCreated {
		test.Fatalf("expected 201, got %d: %s", recorder.Code, recorder.Body.String())
	}
	response := map[string]interface{}{}
	if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
		test.Fatalf("decode response: %v", err)
	}
	if response["payment_id"] != "pay-1" {
		test.Fatalf("expected payment id pay-1, got %v", response["payment_id"])
	}
}

func TestInitPaymentInsufficientStock(test *testing.T) {
	test.Parallel()
	fix := newAPIFixture(test)
	fix.checkout.initErr = market.ErrInsufficientStock
	token := signSession(test, "cus-1", roleCustomer)

	recorder := fix.request(test, http.MethodPost, "/api/payment/init", token, initPaymentRequest{ProductID: "prd-1", Quantity: 3})
	if recorder.Code != http.StatusBadRequest {
		test.Fatalf("expected 400, got %d", recorder.Code)
	}
	payload := errorPayload{}
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		test.Fatalf("decode response: %v", err)
	}
	if payload.Code != "insufficient_stock" {
		test.Fatalf("expected insufficient_stock, got %q", payload.Code)
	}
}

func TestInitPaymentRejectsBadQuantity(test *testing.T) {
	test.Parallel()
	fix := newAPIFixture(test)
	token := signSession(test, "cus-1", roleCustomer)

	recorder := fix.request(test, http.MethodPost, "/api/payment/init", token, initPaymentRequest{ProductID: "prd-1", Quantity: 0})
	if recorder.Code != http.StatusBadRequest {
		test.Fatalf("expected 400, got %d", recorder.Code)
	}
}

func TestCustomerCannotAccept(test *testing.T) {
	test.Parallel()
	fix := newAPIFixture(test)
	token := signSession(test, "cus-1", roleCustomer)

	recorder := fix.request(test, http.MethodPatch, "/api/orders/pay-1/accept", token, nil)
	if recorder.Code != http.StatusForbidden {
		test.Fatalf("expected 403, got %d", recorder.Code)
	}
}

func TestSellerAccept(test *testing.T) {
	test.Parallel()
	fix := newAPIFixture(test)
	fix.checkout.order = market.Order{Status: market.OrderStatusAccepted}
	token := signSession(test, "seller-1", roleSeller)

	recorder := fix.request(test, http.MethodPatch, "/api/orders/pay-1/accept", token, nil)
	if recorder.Code != http.StatusOK {
		test.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
}

func TestSellerWithoutStoreGets404(test *testing.T) {
	test.Parallel()
	fix := newAPIFixture(test)
	token := signSession(test, "seller-unknown", roleSeller)

	recorder := fix.request(test, http.MethodPatch, "/api/orders/pay-1/accept", token, nil)
	if recorder.Code != http.StatusNotFound {
		test.Fatalf("expected 404, got %d", recorder.Code)
	}
}

func TestConflictMapsTo409(test *testing.T) {
	test.Parallel()
	fix := newAPIFixture(test)
	fix.checkout.orderErr = market.ErrInvalidTransition
	token := signSession(test, "seller-1", roleSeller)

	recorder := fix.request(test, http.MethodPatch, "/api/orders/pay-1/accept", token, nil)
	if recorder.Code != http.StatusConflict {
		test.Fatalf("expected 409, got %d", recorder.Code)
	}
}

func TestGatewayErrorHidesDetail(test *testing.T) {
	test.Parallel()
	fix := newAPIFixture(test)
	fix.checkout.orderErr = fmt.Errorf("%w: provider declined with PSP-4471", market.ErrGateway)
	token := signSession(test, "cus-1", roleCustomer)

	recorder := fix.request(test, http.MethodPost, "/api/payment/confirm", token, confirmRequest{PaymentID: "pay-1"})
	if recorder.Code != http.StatusInternalServerError {
		test.Fatalf("expected 500, got %d", recorder.Code)
	}
	payload := errorPayload{}
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		test.Fatalf("decode response: %v", err)
	}
	if payload.Code != "gateway_error" {
		test.Fatalf("expected gateway_error, got %q", payload.Code)
	}
	if strings.Contains(recorder.Body.String(), "PSP-4471") {
		test.Fatalf("provider detail leaked to the client: %s", recorder.Body.String())
	}
}

func TestCustomerCancel(test *testing.T) {
	test.Parallel()
	fix := newAPIFixture(test)
	token := signSession(test, "cus-1", roleCustomer)

	recorder := fix.request(test, http.MethodDelete, "/api/payment/cancel/pay-1", token, cancelRequest{Reason: "late"})
	if recorder.Code != http.StatusOK {
		test.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
	if len(fix.checkout.canceled) != 1 || fix.checkout.canceled[0] != "customer:pay-1" {
		test.Fatalf("expected customer cancel of pay-1, got %v", fix.checkout.canceled)
	}
}

func TestSellerCannotUseCustomerCancel(test *testing.T) {
	test.Parallel()
	fix := newAPIFixture(test)
	token := signSession(test, "seller-1", roleSeller)

	recorder := fix.request(test, http.MethodDelete, "/api/payment/cancel/pay-1", token, nil)
	if recorder.Code != http.StatusForbidden {
		test.Fatalf("expected 403, got %d", recorder.Code)
	}
}

func TestStoreCancel(test *testing.T) {
	test.Parallel()
	fix := newAPIFixture(test)
	token := signSession(test, "seller-1", roleSeller)

	recorder := fix.request(test, http.MethodPost, "/api/orders/pay-2/cancel", token, cancelRequest{Reason: "sold out"})
	if recorder.Code != http.StatusOK {
		test.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
	if len(fix.checkout.canceled) != 1 || fix.checkout.canceled[0] != "store:pay-2" {
		test.Fatalf("expected store cancel of pay-2, got %v", fix.checkout.canceled)
	}
}

func TestCompleteRequiresPickupToken(test *testing.T) {
	test.Parallel()
	fix := newAPIFixture(test)
	token := signSession(test, "cus-1", roleCustomer)

	recorder := fix.request(test, http.MethodPost, "/api/orders/pay-1/complete", token, map[string]string{})
	if recorder.Code != http.StatusBadRequest {
		test.Fatalf("expected 400, got %d", recorder.Code)
	}
}

func TestCreateProductBindsSellerStore(test *testing.T) {
	test.Parallel()
	fix := newAPIFixture(test)
	token := signSession(test, "seller-1", roleSeller)

	recorder := fix.request(test, http.MethodPost, "/api/store/products", token, createProductRequest{
		Name:         "leftover bagels",
		Price:        10000,
		SalePercent:  30,
		InitialStock: 10,
	})
	if recorder.Code != http.StatusCreated {
		test.Fatalf("expected 201, got %d: %s", recorder.Code, recorder.Body.String())
	}
	if len(fix.catalog.created) != 1 {
		test.Fatalf("expected one product created, got %d", len(fix.catalog.created))
	}
	if got := fix.catalog.created[0].StoreID.String(); got != "store-1" {
		test.Fatalf("expected product bound to store-1, got %q", got)
	}
}

func TestAdjustStockQueuesNextInitial(test *testing.T) {
	test.Parallel()
	fix := newAPIFixture(test)
	next := 25
	token := signSession(test, "seller-1", roleSeller)

	recorder := fix.request(test, http.MethodPatch, "/api/store/products/prd-1/stock", token, adjustStockRequest{NextInitialStock: &next})
	if recorder.Code != http.StatusOK {
		test.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
	if fix.pending.queued["prd-1"] != 25 {
		test.Fatalf("expected queued stock set of 25, got %v", fix.pending.queued)
	}
}

func TestStockEndpoint(test *testing.T) {
	test.Parallel()
	fix := newAPIFixture(test)
	productID, err := market.NewProductID("prd-1")
	if err != nil {
		test.Fatalf("new product id: %v", err)
	}
	fix.checkout.stock = market.StockRecord{ProductID: productID, InitialStock: 10, PurchasedQuantity: 4}
	token := signSession(test, "cus-1", roleCustomer)

	recorder := fix.request(test, http.MethodGet, "/api/products/prd-1/stock", token, nil)
	if recorder.Code != http.StatusOK {
		test.Fatalf("expected 200, got %d", recorder.Code)
	}
	response := map[string]interface{}{}
	if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
		test.Fatalf("decode response: %v", err)
	}
	if response["available"].(float64) != 6 {
		test.Fatalf("expected 6 available, got %v", response["available"])
	}
}
