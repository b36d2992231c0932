package storecache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lastcall-foods/lastcall/pkg/market"
)

type stubDirectory struct {
	stores map[string]string
	calls  int
}

func (directory *stubDirectory) GetStoreIDBySeller(_ context.Context, sellerID string) (market.StoreID, error) {
	directory.calls++
	value, ok := directory.stores[sellerID]
	if !ok {
		return market.StoreID{}, market.ErrStoreNotFound
	}
	return market.NewStoreID(value)
}

func (directory *stubDirectory) ListOpenSchedules(context.Context, time.Weekday) ([]market.StoreSchedule, error) {
	return []market.StoreSchedule{{Open: true}}, nil
}

func TestNilClientPassesThrough(test *testing.T) {
	test.Parallel()
	inner := &stubDirectory{stores: map[string]string{"seller-1": "store-1"}}
	directory := New(inner, nil, nil)

	storeID, err := directory.GetStoreIDBySeller(context.Background(), "seller-1")
	if err != nil {
		test.Fatalf("get store: %v", err)
	}
	if storeID.String() != "store-1" {
		test.Fatalf("expected store-1, got %s", storeID.String())
	}
	if inner.calls != 1 {
		test.Fatalf("expected one inner call, got %d", inner.calls)
	}

	if _, err := directory.GetStoreIDBySeller(context.Background(), "seller-missing"); !errors.Is(err, market.ErrStoreNotFound) {
		test.Fatalf("expected store not found, got %v", err)
	}
}

func TestListOpenSchedulesPassesThrough(test *testing.T) {
	test.Parallel()
	inner := &stubDirectory{}
	directory := New(inner, nil, nil)

	schedules, err := directory.ListOpenSchedules(context.Background(), time.Friday)
	if err != nil {
		test.Fatalf("list open schedules: %v", err)
	}
	if len(schedules) != 1 {
		test.Fatalf("expected passthrough schedules, got %d", len(schedules))
	}
}
