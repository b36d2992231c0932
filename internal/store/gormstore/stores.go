package gormstore

import (
	"context"
	"errors"
	"time"

	"github.com/lastcall-foods/lastcall/pkg/market"
	"gorm.io/gorm"
)

// GetStoreIDBySeller resolves the store owned by a seller.
func (store *Store) GetStoreIDBySeller(ctx context.Context, sellerID string) (market.StoreID, error) {
	var row StoreRecord
	err := store.db.WithContext(ctx).
		Where("seller_id = ?", sellerID).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return market.StoreID{}, wrapStoreError(errorSubjectStoreRow, errorCodeGet, market.ErrStoreNotFound)
		}
		return market.StoreID{}, wrapStoreError(errorSubjectStoreRow, errorCodeGet, err)
	}
	storeID, err := market.NewStoreID(row.StoreID)
	if err != nil {
		return market.StoreID{}, wrapStoreError(errorSubjectStoreRow, errorCodeInvalid, err)
	}
	return storeID, nil
}

// CreateStore inserts a store with its weekday opening plan.
func (store *Store) CreateStore(ctx context.Context, storeID market.StoreID, sellerID string, name string, schedules []market.StoreSchedule) error {
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		row := StoreRecord{
			StoreID:   storeID.String(),
			SellerID:  sellerID,
			Name:      name,
			CreatedAt: time.Now().UTC(),
		}
		if err := transaction.Create(&row).Error; err != nil {
			if isDuplicateKey(err) {
				return wrapStoreError(errorSubjectStoreRow, errorCodeDuplicate, err)
			}
			return wrapStoreError(errorSubjectStoreRow, errorCodeCreate, err)
		}
		for _, schedule := range schedules {
			scheduleRow := StoreScheduleRecord{
				StoreID:               storeID.String(),
				Weekday:               int(schedule.Weekday),
				Open:                  schedule.Open,
				PickupDeadlineMinutes: schedule.PickupDeadlineMinutes,
				CloseMinutes:          schedule.CloseMinutes,
			}
			if err := transaction.Create(&scheduleRow).Error; err != nil {
				return wrapStoreError(errorSubjectSchedule, errorCodeCreate, err)
			}
		}
		return nil
	})
}

// ListOpenSchedules returns every store open on the given weekday.
func (store *Store) ListOpenSchedules(ctx context.Context, weekday time.Weekday) ([]market.StoreSchedule, error) {
	var rows []StoreScheduleRecord
	err := store.db.WithContext(ctx).
		Where("weekday = ? AND open = ?", int(weekday), true).
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectSchedule, errorCodeList, err)
	}
	schedules := make([]market.StoreSchedule, 0, len(rows))
	for _, row := range rows {
		storeID, err := market.NewStoreID(row.StoreID)
		if err != nil {
			return nil, wrapStoreError(errorSubjectSchedule, errorCodeInvalid, err)
		}
		schedules = append(schedules, market.StoreSchedule{
			StoreID:               storeID,
			Weekday:               time.Weekday(row.Weekday),
			Open:                  row.Open,
			PickupDeadlineMinutes: row.PickupDeadlineMinutes,
			CloseMinutes:          row.CloseMinutes,
		})
	}
	return schedules, nil
}
