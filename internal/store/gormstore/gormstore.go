package gormstore

import (
	"errors"

	"github.com/lastcall-foods/lastcall/pkg/market"
	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const (
	pgUniqueViolationCode = "23505"
	sqliteConstraintCode  = 19

	errorLayerStore = "store"

	errorSubjectStock     = "stock"
	errorSubjectProduct   = "product"
	errorSubjectCart      = "cart"
	errorSubjectOrder     = "order"
	errorSubjectArchive   = "archive"
	errorSubjectStoreRow  = "store"
	errorSubjectSchedule  = "schedule"
	errorSubjectJob       = "job"
	errorSubjectPending   = "pending_stock"
	errorSubjectReconcile = "reconciliation"

	errorCodeCreate    = "create"
	errorCodeDuplicate = "duplicate"
	errorCodeGet       = "get"
	errorCodeList      = "list"
	errorCodeDelete    = "delete"
	errorCodeUpdate    = "update"
	errorCodeInvalid   = "invalid"
	errorCodeSwap      = "swap"
)

// Store implements the marketplace persistence contracts using GORM. It backs
// both sqlite (dev, tests) and postgres behind the same queries.
type Store struct {
	db *gorm.DB
}

// New returns a Store backed by gorm.DB.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func wrapStoreError(subject string, code string, err error) error {
	return market.WrapError(errorLayerStore, subject, code, err)
}

func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolationCode
	}
	var sqliteErr *gosqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code()&0xFF == sqliteConstraintCode
	}
	return false
}
