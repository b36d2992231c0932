package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Job statuses persisted in the durable queue.
const (
	JobStatusPending = "pending"
	JobStatusRunning = "running"
	JobStatusDone    = "done"
	JobStatusFailed  = "failed"
)

// Job kinds. Daily kinds recur; the rest are one-shot dynamic jobs keyed by
// deterministic ids so re-registration never double-books.
const (
	KindPaymentTimeout     = "payment_timeout"
	KindPickupDeadline     = "pickup_deadline"
	KindCloseTime          = "close_time"
	KindArchiveOrders      = "archive_orders"
	KindResetCounters      = "reset_counters"
	KindApplyStockSets     = "apply_stock_sets"
	KindRegisterDeadlines  = "register_pickup_deadlines"
	KindRegisterCloseTimes = "register_close_times"
)

// DefaultMaxAttempts bounds handler retries per job row.
const DefaultMaxAttempts = 3

// Job is one row of the durable queue.
type Job struct {
	ID          string
	Kind        string
	Payload     []byte
	RunAt       time.Time
	Status      string
	Attempts    int
	MaxAttempts int
	LastError   string
}

// JobQueue is the persistence contract for the durable queue. Enqueue must be
// idempotent on Job.ID; Claim must be a conditional pending-to-running update
// reporting whether this process won the row. ResetStuck returns every running
// row to pending, plus failed rows of the given kinds.
type JobQueue interface {
	Enqueue(ctx context.Context, job Job) error
	Cancel(ctx context.Context, jobID string) error
	Due(ctx context.Context, now time.Time, limit int) ([]Job, error)
	Claim(ctx context.Context, jobID string) (bool, error)
	Finish(ctx context.Context, jobID string) error
	Reschedule(ctx context.Context, jobID string, runAt time.Time) error
	Retry(ctx context.Context, jobID string, attempts int, runAt time.Time, lastError string) error
	Fail(ctx context.Context, jobID string, attempts int, lastError string) error
	ResetStuck(ctx context.Context, recurringKinds []string) (int64, error)
}

// PaymentTimeoutPayload is carried by payment_timeout jobs.
type PaymentTimeoutPayload struct {
	PaymentID string `json:"payment_id"`
}

// StoreDayPayload is carried by per-store pickup_deadline and close_time jobs.
type StoreDayPayload struct {
	StoreID string `json:"store_id"`
	Date    string `json:"date"`
}

// PaymentTimeoutJobID derives the deterministic id for a payment's timeout job.
func PaymentTimeoutJobID(paymentID string) string {
	return fmt.Sprintf("%s:%s", KindPaymentTimeout, paymentID)
}

// PickupDeadlineJobID derives the deterministic id for a store's per-day
// deadline job.
func PickupDeadlineJobID(storeID string, date string) string {
	return fmt.Sprintf("%s:%s:%s", KindPickupDeadline, storeID, date)
}

// CloseTimeJobID derives the deterministic id for a store's per-day close job.
func CloseTimeJobID(storeID string, date string) string {
	return fmt.Sprintf("%s:%s:%s", KindCloseTime, storeID, date)
}

// DailyJobID derives the id of a recurring fixed job.
func DailyJobID(kind string) string {
	return "daily:" + kind
}

// NewJob builds a queue row with an encoded payload.
func NewJob(jobID string, kind string, payload interface{}, runAt time.Time) (Job, error) {
	encoded := []byte("{}")
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Job{}, fmt.Errorf("encode %s payload: %w", kind, err)
		}
		encoded = raw
	}
	return Job{
		ID:          jobID,
		Kind:        kind,
		Payload:     encoded,
		RunAt:       runAt,
		Status:      JobStatusPending,
		MaxAttempts: DefaultMaxAttempts,
	}, nil
}
