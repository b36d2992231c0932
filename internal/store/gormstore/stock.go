package gormstore

import (
	"context"
	"errors"
	"time"

	"github.com/lastcall-foods/lastcall/internal/scheduler"
	"github.com/lastcall-foods/lastcall/pkg/market"
	"gorm.io/gorm"
)

// GetStock loads the counter set for one product.
func (store *Store) GetStock(ctx context.Context, productID market.ProductID) (market.StockRecord, error) {
	var row Product
	err := store.db.WithContext(ctx).
		Where("product_id = ?", productID.String()).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return market.StockRecord{}, wrapStoreError(errorSubjectStock, errorCodeGet, market.ErrProductNotFound)
		}
		return market.StockRecord{}, wrapStoreError(errorSubjectStock, errorCodeGet, err)
	}
	return mapStockRecord(row)
}

// SwapStock writes the counters only when the stored version still matches
// expectedVersion. One affected row means the swap landed.
func (store *Store) SwapStock(ctx context.Context, record market.StockRecord, expectedVersion int64) (bool, error) {
	result := store.db.WithContext(ctx).
		Model(&Product{}).
		Where("product_id = ? AND version = ?", record.ProductID.String(), expectedVersion).
		Updates(map[string]interface{}{
			"initial_stock":      record.InitialStock,
			"purchased_quantity": record.PurchasedQuantity,
			"admin_adjustment":   record.AdminAdjustment,
			"version":            record.Version,
		})
	if result.Error != nil {
		return false, wrapStoreError(errorSubjectStock, errorCodeSwap, result.Error)
	}
	return result.RowsAffected == 1, nil
}

// ResetCounters zeroes purchased and adjustment counters across the catalog
// and bumps every version. Nightly job only.
func (store *Store) ResetCounters(ctx context.Context) (int64, error) {
	result := store.db.WithContext(ctx).
		Model(&Product{}).
		Where("version > 0").
		Updates(map[string]interface{}{
			"purchased_quantity": 0,
			"admin_adjustment":   0,
			"version":            gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return 0, wrapStoreError(errorSubjectStock, errorCodeUpdate, result.Error)
	}
	return result.RowsAffected, nil
}

// GetProduct returns the catalog view used to price carts.
func (store *Store) GetProduct(ctx context.Context, productID market.ProductID) (market.Product, error) {
	var row Product
	err := store.db.WithContext(ctx).
		Where("product_id = ?", productID.String()).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return market.Product{}, wrapStoreError(errorSubjectProduct, errorCodeGet, market.ErrProductNotFound)
		}
		return market.Product{}, wrapStoreError(errorSubjectProduct, errorCodeGet, err)
	}
	storeID, err := market.NewStoreID(row.StoreID)
	if err != nil {
		return market.Product{}, wrapStoreError(errorSubjectProduct, errorCodeInvalid, err)
	}
	return market.Product{
		ProductID:   mustProductIDFromRow(row.ProductID),
		StoreID:     storeID,
		Name:        row.Name,
		Price:       row.Price,
		SalePercent: row.SalePercent,
	}, nil
}

// CreateProduct inserts a catalog row with its stock counters at version 1.
func (store *Store) CreateProduct(ctx context.Context, product market.Product, initialStock int) error {
	row := Product{
		ProductID:    product.ProductID.String(),
		StoreID:      product.StoreID.String(),
		Name:         product.Name,
		Price:        product.Price,
		SalePercent:  product.SalePercent,
		InitialStock: initialStock,
		Version:      1,
	}
	err := store.db.WithContext(ctx).Create(&row).Error
	if isDuplicateKey(err) {
		return wrapStoreError(errorSubjectProduct, errorCodeDuplicate, market.ErrProductExists)
	}
	if err != nil {
		return wrapStoreError(errorSubjectProduct, errorCodeCreate, err)
	}
	return nil
}

// QueueStockSet upserts the next-day initial stock value for a product.
func (store *Store) QueueStockSet(ctx context.Context, productID market.ProductID, nextInitialStock int) error {
	row := PendingStockSet{
		ProductID:        productID.String(),
		NextInitialStock: nextInitialStock,
		CreatedAt:        time.Now().UTC(),
	}
	err := store.db.WithContext(ctx).Save(&row).Error
	if err != nil {
		return wrapStoreError(errorSubjectPending, errorCodeCreate, err)
	}
	return nil
}

// ListPendingStockSets returns every queued stock value.
func (store *Store) ListPendingStockSets(ctx context.Context) ([]scheduler.StockSetRequest, error) {
	var rows []PendingStockSet
	if err := store.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, wrapStoreError(errorSubjectPending, errorCodeList, err)
	}
	requests := make([]scheduler.StockSetRequest, 0, len(rows))
	for _, row := range rows {
		requests = append(requests, scheduler.StockSetRequest{
			ProductID: row.ProductID,
			Value:     row.NextInitialStock,
		})
	}
	return requests, nil
}

// DeletePendingStockSet removes a queued stock value after application.
func (store *Store) DeletePendingStockSet(ctx context.Context, productID string) error {
	err := store.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Delete(&PendingStockSet{}).Error
	if err != nil {
		return wrapStoreError(errorSubjectPending, errorCodeDelete, err)
	}
	return nil
}

func mapStockRecord(row Product) (market.StockRecord, error) {
	productID, err := market.NewProductID(row.ProductID)
	if err != nil {
		return market.StockRecord{}, wrapStoreError(errorSubjectStock, errorCodeInvalid, err)
	}
	return market.StockRecord{
		ProductID:         productID,
		InitialStock:      row.InitialStock,
		PurchasedQuantity: row.PurchasedQuantity,
		AdminAdjustment:   row.AdminAdjustment,
		Version:           row.Version,
	}, nil
}

// mustProductIDFromRow trusts ids already persisted through the validated path.
func mustProductIDFromRow(raw string) market.ProductID {
	productID, _ := market.NewProductID(raw)
	return productID
}
