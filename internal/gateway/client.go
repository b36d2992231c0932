// Package gateway talks to the external payment provider over HTTP.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lastcall-foods/lastcall/internal/checkout"
	"github.com/lastcall-foods/lastcall/pkg/market"
)

const defaultRequestTimeout = 10 * time.Second

const paymentStatusPaid = "paid"

// Client implements the payment gateway boundary against the provider's
// REST API. Requests authenticate with the merchant secret over basic auth.
type Client struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the underlying HTTP client, for tests.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(client *Client) {
		if httpClient != nil {
			client.httpClient = httpClient
		}
	}
}

// NewClient wires a Client.
func NewClient(baseURL string, secretKey string, options ...ClientOption) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("%w: gateway base url is empty", market.ErrValidation)
	}
	if strings.TrimSpace(secretKey) == "" {
		return nil, fmt.Errorf("%w: gateway secret key is empty", market.ErrValidation)
	}
	client := &Client{
		baseURL:    baseURL,
		secretKey:  secretKey,
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
	}
	for _, option := range options {
		if option != nil {
			option(client)
		}
	}
	return client, nil
}

type paymentResponse struct {
	PaymentID   string    `json:"payment_id"`
	Status      string    `json:"status"`
	OrderName   string    `json:"order_name"`
	Method      string    `json:"method"`
	TotalAmount int64     `json:"total_amount"`
	PaidAt      time.Time `json:"paid_at"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

type cancelResponse struct {
	PaymentID      string    `json:"payment_id"`
	RefundedAmount int64     `json:"refunded_amount"`
	CanceledAt     time.Time `json:"canceled_at"`
}

// GetPayment fetches the payment and requires it to be settled.
func (client *Client) GetPayment(ctx context.Context, paymentID string) (checkout.PaidPayment, error) {
	endpoint := client.baseURL + "/payments/" + url.PathEscape(paymentID)
	body, err := client.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return checkout.PaidPayment{}, err
	}
	payment := paymentResponse{}
	if err := json.Unmarshal(body, &payment); err != nil {
		return checkout.PaidPayment{}, fmt.Errorf("%w: decode payment: %v", market.ErrGateway, err)
	}
	if payment.Status != paymentStatusPaid {
		return checkout.PaidPayment{}, fmt.Errorf("%w: payment %s is %q, not paid", market.ErrGateway, paymentID, payment.Status)
	}
	return checkout.PaidPayment{
		PaymentID:   payment.PaymentID,
		OrderName:   payment.OrderName,
		Method:      payment.Method,
		TotalAmount: payment.TotalAmount,
		PaidAt:      payment.PaidAt,
	}, nil
}

// CancelPayment refunds the payment in full.
func (client *Client) CancelPayment(ctx context.Context, paymentID string, reason string) (checkout.RefundResult, error) {
	endpoint := client.baseURL + "/payments/" + url.PathEscape(paymentID) + "/cancel"
	payload, err := json.Marshal(cancelRequest{Reason: reason})
	if err != nil {
		return checkout.RefundResult{}, fmt.Errorf("%w: encode cancel: %v", market.ErrGateway, err)
	}
	body, err := client.do(ctx, http.MethodPost, endpoint, payload)
	if err != nil {
		return checkout.RefundResult{}, err
	}
	refund := cancelResponse{}
	if err := json.Unmarshal(body, &refund); err != nil {
		return checkout.RefundResult{}, fmt.Errorf("%w: decode refund: %v", market.ErrGateway, err)
	}
	return checkout.RefundResult{
		PaymentID:      refund.PaymentID,
		RefundedAmount: refund.RefundedAmount,
		CanceledAt:     refund.CanceledAt,
	}, nil
}

func (client *Client) do(ctx context.Context, method string, endpoint string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	request, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", market.ErrGateway, err)
	}
	request.SetBasicAuth(client.secretKey, "")
	if payload != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	response, err := client.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", market.ErrGateway, err)
	}
	defer response.Body.Close()

	body, err := io.ReadAll(io.LimitReader(response.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", market.ErrGateway, err)
	}
	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%w: %s %s returned %d", market.ErrGateway, method, endpoint, response.StatusCode)
	}
	return body, nil
}
