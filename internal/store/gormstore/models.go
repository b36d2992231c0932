package gormstore

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Product carries both the catalog fields and the optimistic-locked stock
// counters. The counters are only ever written through a version-guarded
// update.
type Product struct {
	ProductID         string `gorm:"primaryKey"`
	StoreID           string `gorm:"not null;index"`
	Name              string `gorm:"not null"`
	Price             int64  `gorm:"not null"`
	SalePercent       int    `gorm:"not null;default:0"`
	InitialStock      int    `gorm:"not null"`
	PurchasedQuantity int    `gorm:"not null;default:0"`
	AdminAdjustment   int    `gorm:"not null;default:0"`
	Version           int64  `gorm:"not null;default:1"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (Product) TableName() string { return "products" }

// CartRecord is an ephemeral stock hold keyed by payment id.
type CartRecord struct {
	PaymentID   string `gorm:"primaryKey"`
	ProductID   string `gorm:"not null;index"`
	CustomerID  string `gorm:"not null;index"`
	StoreID     string `gorm:"not null"`
	Quantity    int    `gorm:"not null"`
	Price       int64  `gorm:"not null"`
	SalePercent int    `gorm:"not null;default:0"`
	TotalAmount int64  `gorm:"not null"`
	CreatedAt   time.Time
}

func (CartRecord) TableName() string { return "carts" }

// OrderRecord is the hot-store order row.
type OrderRecord struct {
	PaymentID     string `gorm:"primaryKey"`
	ProductID     string `gorm:"not null;index"`
	CustomerID    string `gorm:"not null;index"`
	StoreID       string `gorm:"not null;index:idx_orders_store_status,priority:1"`
	Quantity      int    `gorm:"not null"`
	Price         int64  `gorm:"not null"`
	TotalAmount   int64  `gorm:"not null"`
	Status        string `gorm:"not null;index:idx_orders_store_status,priority:2"`
	ReservationAt time.Time
	AcceptedAt    *time.Time
	PickupReadyAt *time.Time
	CompletedAt   *time.Time
	CanceledAt    *time.Time
	CancelReason  string
}

func (OrderRecord) TableName() string { return "orders" }

// OrderArchive mirrors OrderRecord in the history store.
type OrderArchive struct {
	PaymentID     string `gorm:"primaryKey"`
	ProductID     string `gorm:"not null;index"`
	CustomerID    string `gorm:"not null;index"`
	StoreID       string `gorm:"not null;index"`
	Quantity      int    `gorm:"not null"`
	Price         int64  `gorm:"not null"`
	TotalAmount   int64  `gorm:"not null"`
	Status        string `gorm:"not null"`
	ReservationAt time.Time
	AcceptedAt    *time.Time
	PickupReadyAt *time.Time
	CompletedAt   *time.Time
	CanceledAt    *time.Time
	CancelReason  string
	ArchivedAt    time.Time `gorm:"not null;index"`
}

func (OrderArchive) TableName() string { return "order_archives" }

// StoreRecord is a seller's store.
type StoreRecord struct {
	StoreID   string `gorm:"primaryKey"`
	SellerID  string `gorm:"not null;uniqueIndex"`
	Name      string `gorm:"not null"`
	CreatedAt time.Time
}

func (StoreRecord) TableName() string { return "stores" }

// StoreScheduleRecord is one weekday of a store's opening plan. Times are
// minutes after local midnight.
type StoreScheduleRecord struct {
	StoreID               string `gorm:"primaryKey"`
	Weekday               int    `gorm:"primaryKey"`
	Open                  bool   `gorm:"not null"`
	PickupDeadlineMinutes int    `gorm:"not null"`
	CloseMinutes          int    `gorm:"not null"`
}

func (StoreScheduleRecord) TableName() string { return "store_schedules" }

// ScheduledJobRecord is a row in the durable job queue. JobID is
// deterministic so re-registration is a no-op.
type ScheduledJobRecord struct {
	JobID       string         `gorm:"primaryKey"`
	Kind        string         `gorm:"not null;index"`
	Payload     datatypes.JSON `gorm:"not null"`
	RunAt       time.Time      `gorm:"not null;index:idx_jobs_status_run_at,priority:2"`
	Status      string         `gorm:"not null;index:idx_jobs_status_run_at,priority:1"`
	Attempts    int            `gorm:"not null;default:0"`
	MaxAttempts int            `gorm:"not null"`
	LastError   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (ScheduledJobRecord) TableName() string { return "scheduled_jobs" }

// PendingStockSet queues a next-day initial stock value, applied nightly.
type PendingStockSet struct {
	ProductID        string `gorm:"primaryKey"`
	NextInitialStock int    `gorm:"not null"`
	CreatedAt        time.Time
}

func (PendingStockSet) TableName() string { return "pending_stock_sets" }

// ReconciliationRecord flags a compensation step that exhausted its retries
// and needs manual follow-up.
type ReconciliationRecord struct {
	ReconciliationID string `gorm:"type:uuid;primaryKey"`
	PaymentID        string `gorm:"not null;index"`
	Step             string `gorm:"not null"`
	Detail           string `gorm:"not null"`
	CreatedAt        time.Time
}

func (ReconciliationRecord) TableName() string { return "reconciliations" }

func (record *ReconciliationRecord) BeforeCreate(tx *gorm.DB) error {
	if record.ReconciliationID == "" {
		record.ReconciliationID = uuid.NewString()
	}
	return nil
}

// Models lists every table for migration at startup.
func Models() []interface{} {
	return []interface{}{
		&Product{},
		&CartRecord{},
		&OrderRecord{},
		&OrderArchive{},
		&StoreRecord{},
		&StoreScheduleRecord{},
		&ScheduledJobRecord{},
		&PendingStockSet{},
		&ReconciliationRecord{},
	}
}
