// Package storecache fronts the store directory with a redis cache.
package storecache

import (
	"context"
	"errors"
	"time"

	"github.com/lastcall-foods/lastcall/pkg/market"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const sellerKeyPrefix = "store:seller:"

// DefaultTTL is how long a seller-to-store mapping stays cached. The mapping
// only changes when a seller re-registers, so a short TTL is plenty.
const DefaultTTL = time.Hour

// Directory is a read-through cache over a market.StoreDirectory. A nil redis
// client degrades to a plain passthrough, so single-node deployments can run
// without redis at all.
type Directory struct {
	inner  market.StoreDirectory
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// New wires a Directory. client may be nil.
func New(inner market.StoreDirectory, client *redis.Client, logger *zap.Logger) *Directory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Directory{inner: inner, client: client, ttl: DefaultTTL, logger: logger}
}

// GetStoreIDBySeller resolves the seller's store, preferring the cache. Cache
// failures fall back to the inner directory rather than failing the request.
func (directory *Directory) GetStoreIDBySeller(ctx context.Context, sellerID string) (market.StoreID, error) {
	if directory.client == nil {
		return directory.inner.GetStoreIDBySeller(ctx, sellerID)
	}
	key := sellerKeyPrefix + sellerID
	cached, err := directory.client.Get(ctx, key).Result()
	if err == nil {
		return market.NewStoreID(cached)
	}
	if !errors.Is(err, redis.Nil) {
		directory.logger.Warn("store cache read", zap.String("seller_id", sellerID), zap.Error(err))
	}

	storeID, err := directory.inner.GetStoreIDBySeller(ctx, sellerID)
	if err != nil {
		return market.StoreID{}, err
	}
	if err := directory.client.Set(ctx, key, storeID.String(), directory.ttl).Err(); err != nil {
		directory.logger.Warn("store cache write", zap.String("seller_id", sellerID), zap.Error(err))
	}
	return storeID, nil
}

// ListOpenSchedules is a passthrough; schedules are read once per day by the
// registration jobs and not worth caching.
func (directory *Directory) ListOpenSchedules(ctx context.Context, weekday time.Weekday) ([]market.StoreSchedule, error) {
	return directory.inner.ListOpenSchedules(ctx, weekday)
}
