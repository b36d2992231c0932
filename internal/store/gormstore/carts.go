package gormstore

import (
	"context"
	"errors"

	"github.com/lastcall-foods/lastcall/pkg/market"
	"gorm.io/gorm"
)

// OpenCart inserts the hold row created after a successful stock reservation.
func (store *Store) OpenCart(ctx context.Context, cart market.Cart) error {
	row := CartRecord{
		PaymentID:   cart.PaymentID.String(),
		ProductID:   cart.ProductID.String(),
		CustomerID:  cart.CustomerID.String(),
		StoreID:     cart.StoreID.String(),
		Quantity:    cart.Quantity.Int(),
		Price:       cart.Price,
		SalePercent: cart.SalePercent,
		TotalAmount: cart.TotalAmount,
		CreatedAt:   cart.CreatedAt,
	}
	err := store.db.WithContext(ctx).Create(&row).Error
	if isDuplicateKey(err) {
		return wrapStoreError(errorSubjectCart, errorCodeDuplicate, market.ErrCartExists)
	}
	if err != nil {
		return wrapStoreError(errorSubjectCart, errorCodeCreate, err)
	}
	return nil
}

// GetCart loads a hold row.
func (store *Store) GetCart(ctx context.Context, paymentID market.PaymentID) (market.Cart, error) {
	var row CartRecord
	err := store.db.WithContext(ctx).
		Where("payment_id = ?", paymentID.String()).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return market.Cart{}, wrapStoreError(errorSubjectCart, errorCodeGet, market.ErrCartNotFound)
		}
		return market.Cart{}, wrapStoreError(errorSubjectCart, errorCodeGet, err)
	}
	return mapCart(row)
}

// CloseCart deletes the hold row. Zero affected rows surfaces ErrCartNotFound
// so callers can tell a real close from a lost race.
func (store *Store) CloseCart(ctx context.Context, paymentID market.PaymentID) error {
	result := store.db.WithContext(ctx).
		Where("payment_id = ?", paymentID.String()).
		Delete(&CartRecord{})
	if result.Error != nil {
		return wrapStoreError(errorSubjectCart, errorCodeDelete, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectCart, errorCodeDelete, market.ErrCartNotFound)
	}
	return nil
}

// ListCarts returns every open hold, oldest first. Recovery only.
func (store *Store) ListCarts(ctx context.Context) ([]market.Cart, error) {
	var rows []CartRecord
	err := store.db.WithContext(ctx).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectCart, errorCodeList, err)
	}
	carts := make([]market.Cart, 0, len(rows))
	for _, row := range rows {
		cart, err := mapCart(row)
		if err != nil {
			return nil, err
		}
		carts = append(carts, cart)
	}
	return carts, nil
}

func mapCart(row CartRecord) (market.Cart, error) {
	paymentID, err := market.NewPaymentID(row.PaymentID)
	if err != nil {
		return market.Cart{}, wrapStoreError(errorSubjectCart, errorCodeInvalid, err)
	}
	productID, err := market.NewProductID(row.ProductID)
	if err != nil {
		return market.Cart{}, wrapStoreError(errorSubjectCart, errorCodeInvalid, err)
	}
	customerID, err := market.NewCustomerID(row.CustomerID)
	if err != nil {
		return market.Cart{}, wrapStoreError(errorSubjectCart, errorCodeInvalid, err)
	}
	storeID, err := market.NewStoreID(row.StoreID)
	if err != nil {
		return market.Cart{}, wrapStoreError(errorSubjectCart, errorCodeInvalid, err)
	}
	quantity, err := market.NewQuantity(row.Quantity)
	if err != nil {
		return market.Cart{}, wrapStoreError(errorSubjectCart, errorCodeInvalid, err)
	}
	return market.Cart{
		PaymentID:   paymentID,
		ProductID:   productID,
		CustomerID:  customerID,
		StoreID:     storeID,
		Quantity:    quantity,
		Price:       row.Price,
		SalePercent: row.SalePercent,
		TotalAmount: row.TotalAmount,
		CreatedAt:   row.CreatedAt,
	}, nil
}
