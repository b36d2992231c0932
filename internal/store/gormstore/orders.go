package gormstore

import (
	"context"
	"errors"
	"time"

	"github.com/lastcall-foods/lastcall/pkg/market"
	"gorm.io/gorm"
)

// CreateOrder inserts the durable order row created at payment confirmation.
func (store *Store) CreateOrder(ctx context.Context, order market.Order) error {
	row := mapOrderRow(order)
	err := store.db.WithContext(ctx).Create(&row).Error
	if isDuplicateKey(err) {
		return wrapStoreError(errorSubjectOrder, errorCodeDuplicate, market.ErrOrderExists)
	}
	if err != nil {
		return wrapStoreError(errorSubjectOrder, errorCodeCreate, err)
	}
	return nil
}

// GetOrder loads a current order row.
func (store *Store) GetOrder(ctx context.Context, paymentID market.PaymentID) (market.Order, error) {
	var row OrderRecord
	err := store.db.WithContext(ctx).
		Where("payment_id = ?", paymentID.String()).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return market.Order{}, wrapStoreError(errorSubjectOrder, errorCodeGet, market.ErrOrderNotFound)
		}
		return market.Order{}, wrapStoreError(errorSubjectOrder, errorCodeGet, err)
	}
	return mapOrder(row)
}

// TransitionOrder performs one conditional status update guarded by the
// expected prior status. The loser of a concurrent race observes false.
func (store *Store) TransitionOrder(ctx context.Context, paymentID market.PaymentID, from market.OrderStatus, to market.OrderStatus, at time.Time, reason string) (bool, error) {
	updates := map[string]interface{}{"status": to.String()}
	switch to {
	case market.OrderStatusAccepted:
		updates["accepted_at"] = at
	case market.OrderStatusPickupReady:
		updates["pickup_ready_at"] = at
	case market.OrderStatusComplete:
		updates["completed_at"] = at
	case market.OrderStatusCancel:
		updates["canceled_at"] = at
		updates["cancel_reason"] = reason
	}
	result := store.db.WithContext(ctx).
		Model(&OrderRecord{}).
		Where("payment_id = ? AND status = ?", paymentID.String(), from.String()).
		Updates(updates)
	if result.Error != nil {
		return false, wrapStoreError(errorSubjectOrder, errorCodeUpdate, result.Error)
	}
	return result.RowsAffected == 1, nil
}

// DeleteOrder removes a current order row. Confirm-flow compensation only.
func (store *Store) DeleteOrder(ctx context.Context, paymentID market.PaymentID) error {
	err := store.db.WithContext(ctx).
		Where("payment_id = ?", paymentID.String()).
		Delete(&OrderRecord{}).Error
	if err != nil {
		return wrapStoreError(errorSubjectOrder, errorCodeDelete, err)
	}
	return nil
}

// ListStoreOrders returns a store's current orders in any of the given states.
func (store *Store) ListStoreOrders(ctx context.Context, storeID market.StoreID, statuses []market.OrderStatus) ([]market.Order, error) {
	values := make([]string, 0, len(statuses))
	for _, status := range statuses {
		values = append(values, status.String())
	}
	var rows []OrderRecord
	err := store.db.WithContext(ctx).
		Where("store_id = ? AND status IN ?", storeID.String(), values).
		Order("reservation_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectOrder, errorCodeList, err)
	}
	orders := make([]market.Order, 0, len(rows))
	for _, row := range rows {
		order, err := mapOrder(row)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, nil
}

// ArchiveOrders migrates every current order to the history table and deletes
// the originals, in one transaction. Returns the number of migrated rows.
func (store *Store) ArchiveOrders(ctx context.Context, archivedAt time.Time) (int64, error) {
	var migrated int64
	err := store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		var rows []OrderRecord
		if err := transaction.Find(&rows).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		archives := make([]OrderArchive, 0, len(rows))
		for _, row := range rows {
			archives = append(archives, OrderArchive{
				PaymentID:     row.PaymentID,
				ProductID:     row.ProductID,
				CustomerID:    row.CustomerID,
				StoreID:       row.StoreID,
				Quantity:      row.Quantity,
				Price:         row.Price,
				TotalAmount:   row.TotalAmount,
				Status:        row.Status,
				ReservationAt: row.ReservationAt,
				AcceptedAt:    row.AcceptedAt,
				PickupReadyAt: row.PickupReadyAt,
				CompletedAt:   row.CompletedAt,
				CanceledAt:    row.CanceledAt,
				CancelReason:  row.CancelReason,
				ArchivedAt:    archivedAt,
			})
		}
		if err := transaction.Create(&archives).Error; err != nil {
			return err
		}
		if err := transaction.Where("1 = 1").Delete(&OrderRecord{}).Error; err != nil {
			return err
		}
		migrated = int64(len(rows))
		return nil
	})
	if err != nil {
		return 0, wrapStoreError(errorSubjectArchive, errorCodeCreate, err)
	}
	return migrated, nil
}

// RecordReconciliation persists a compensation step that needs manual
// follow-up.
func (store *Store) RecordReconciliation(ctx context.Context, paymentID string, step string, detail string) error {
	row := ReconciliationRecord{
		PaymentID: paymentID,
		Step:      step,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	}
	if err := store.db.WithContext(ctx).Create(&row).Error; err != nil {
		return wrapStoreError(errorSubjectReconcile, errorCodeCreate, err)
	}
	return nil
}

func mapOrderRow(order market.Order) OrderRecord {
	return OrderRecord{
		PaymentID:     order.PaymentID.String(),
		ProductID:     order.ProductID.String(),
		CustomerID:    order.CustomerID.String(),
		StoreID:       order.StoreID.String(),
		Quantity:      order.Quantity.Int(),
		Price:         order.Price,
		TotalAmount:   order.TotalAmount,
		Status:        order.Status.String(),
		ReservationAt: order.ReservationAt,
		AcceptedAt:    order.AcceptedAt,
		PickupReadyAt: order.PickupReadyAt,
		CompletedAt:   order.CompletedAt,
		CanceledAt:    order.CanceledAt,
		CancelReason:  order.CancelReason,
	}
}

func mapOrder(row OrderRecord) (market.Order, error) {
	paymentID, err := market.NewPaymentID(row.PaymentID)
	if err != nil {
		return market.Order{}, wrapStoreError(errorSubjectOrder, errorCodeInvalid, err)
	}
	productID, err := market.NewProductID(row.ProductID)
	if err != nil {
		return market.Order{}, wrapStoreError(errorSubjectOrder, errorCodeInvalid, err)
	}
	customerID, err := market.NewCustomerID(row.CustomerID)
	if err != nil {
		return market.Order{}, wrapStoreError(errorSubjectOrder, errorCodeInvalid, err)
	}
	storeID, err := market.NewStoreID(row.StoreID)
	if err != nil {
		return market.Order{}, wrapStoreError(errorSubjectOrder, errorCodeInvalid, err)
	}
	quantity, err := market.NewQuantity(row.Quantity)
	if err != nil {
		return market.Order{}, wrapStoreError(errorSubjectOrder, errorCodeInvalid, err)
	}
	status, err := market.ParseOrderStatus(row.Status)
	if err != nil {
		return market.Order{}, wrapStoreError(errorSubjectOrder, errorCodeInvalid, err)
	}
	return market.Order{
		PaymentID:     paymentID,
		ProductID:     productID,
		CustomerID:    customerID,
		StoreID:       storeID,
		Quantity:      quantity,
		Price:         row.Price,
		TotalAmount:   row.TotalAmount,
		Status:        status,
		ReservationAt: row.ReservationAt,
		AcceptedAt:    row.AcceptedAt,
		PickupReadyAt: row.PickupReadyAt,
		CompletedAt:   row.CompletedAt,
		CanceledAt:    row.CanceledAt,
		CancelReason:  row.CancelReason,
	}, nil
}
