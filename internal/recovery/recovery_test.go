package recovery

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/lastcall-foods/lastcall/pkg/market"
)

type stubCarts struct {
	carts   []market.Cart
	listErr error
}

func (store *stubCarts) OpenCart(context.Context, market.Cart) error { return nil }

func (store *stubCarts) GetCart(context.Context, market.PaymentID) (market.Cart, error) {
	return market.Cart{}, market.ErrCartNotFound
}

func (store *stubCarts) CloseCart(context.Context, market.PaymentID) error { return nil }

func (store *stubCarts) ListCarts(context.Context) ([]market.Cart, error) {
	if store.listErr != nil {
		return nil, store.listErr
	}
	return store.carts, nil
}

type stubReleaser struct {
	released   []string
	releaseErr map[string]error
}

func (releaser *stubReleaser) ReleaseAbandonedCart(_ context.Context, paymentID market.PaymentID) error {
	if err := releaser.releaseErr[paymentID.String()]; err != nil {
		return err
	}
	releaser.released = append(releaser.released, paymentID.String())
	return nil
}

type stubJobs struct {
	canceled   []string
	recovered  bool
	seeded     bool
	polled     bool
	recoverErr error
	ensureErr  error
	cancelErrs map[string]error
}

func (jobs *stubJobs) RecoverStuckJobs(context.Context) error {
	if jobs.recoverErr != nil {
		return jobs.recoverErr
	}
	jobs.recovered = true
	return nil
}

func (jobs *stubJobs) CancelPaymentTimeout(_ context.Context, paymentID string) error {
	if err := jobs.cancelErrs[paymentID]; err != nil {
		return err
	}
	jobs.canceled = append(jobs.canceled, paymentID)
	return nil
}

func (jobs *stubJobs) EnsureDailyJobs(context.Context) error {
	if jobs.ensureErr != nil {
		return jobs.ensureErr
	}
	jobs.seeded = true
	return nil
}

func (jobs *stubJobs) PollOnce(context.Context) {
	jobs.polled = true
}

func mustCart(test *testing.T, paymentID string) market.Cart {
	test.Helper()
	id, err := market.NewPaymentID(paymentID)
	if err != nil {
		test.Fatalf("new payment id: %v", err)
	}
	return market.Cart{PaymentID: id}
}

func TestRunReleasesStaleCartsAndSeedsJobs(test *testing.T) {
	test.Parallel()
	carts := &stubCarts{carts: []market.Cart{
		mustCart(test, "pay-1"),
		mustCart(test, "pay-2"),
	}}
	releaser := &stubReleaser{}
	jobs := &stubJobs{}
	runner, err := NewRunner(carts, releaser, jobs, nil)
	if err != nil {
		test.Fatalf("new runner: %v", err)
	}

	if err := runner.Run(context.Background()); err != nil {
		test.Fatalf("run: %v", err)
	}
	if len(releaser.released) != 2 {
		test.Fatalf("expected 2 releases, got %d", len(releaser.released))
	}
	if len(jobs.canceled) != 2 {
		test.Fatalf("expected 2 timeout cancellations, got %d", len(jobs.canceled))
	}
	if !jobs.recovered {
		test.Fatal("expected stuck jobs requeued before anything else")
	}
	if !jobs.seeded {
		test.Fatal("expected daily jobs seeded")
	}
	if !jobs.polled {
		test.Fatal("expected an immediate poll for overdue work")
	}
}

func TestRunContinuesPastReleaseFailure(test *testing.T) {
	test.Parallel()
	carts := &stubCarts{carts: []market.Cart{
		mustCart(test, "pay-1"),
		mustCart(test, "pay-2"),
	}}
	releaser := &stubReleaser{releaseErr: map[string]error{"pay-1": fmt.Errorf("stock store offline")}}
	jobs := &stubJobs{}
	runner, err := NewRunner(carts, releaser, jobs, nil)
	if err != nil {
		test.Fatalf("new runner: %v", err)
	}

	if err := runner.Run(context.Background()); err != nil {
		test.Fatalf("run: %v", err)
	}
	if len(releaser.released) != 1 || releaser.released[0] != "pay-2" {
		test.Fatalf("expected only pay-2 released, got %v", releaser.released)
	}
	if !jobs.seeded {
		test.Fatal("expected daily jobs seeded despite release failure")
	}
}

func TestRunPropagatesListFailure(test *testing.T) {
	test.Parallel()
	wantErr := fmt.Errorf("database offline")
	runner, err := NewRunner(&stubCarts{listErr: wantErr}, &stubReleaser{}, &stubJobs{}, nil)
	if err != nil {
		test.Fatalf("new runner: %v", err)
	}

	if err := runner.Run(context.Background()); !errors.Is(err, wantErr) {
		test.Fatalf("expected list error, got %v", err)
	}
}

func TestRunPropagatesSeedFailure(test *testing.T) {
	test.Parallel()
	wantErr := fmt.Errorf("job queue offline")
	runner, err := NewRunner(&stubCarts{}, &stubReleaser{}, &stubJobs{ensureErr: wantErr}, nil)
	if err != nil {
		test.Fatalf("new runner: %v", err)
	}

	if err := runner.Run(context.Background()); !errors.Is(err, wantErr) {
		test.Fatalf("expected seed error, got %v", err)
	}
}

func TestRunPropagatesRecoverFailure(test *testing.T) {
	test.Parallel()
	wantErr := fmt.Errorf("job queue offline")
	jobs := &stubJobs{recoverErr: wantErr}
	runner, err := NewRunner(&stubCarts{}, &stubReleaser{}, jobs, nil)
	if err != nil {
		test.Fatalf("new runner: %v", err)
	}

	if err := runner.Run(context.Background()); !errors.Is(err, wantErr) {
		test.Fatalf("expected recover error, got %v", err)
	}
	if jobs.seeded || jobs.polled {
		test.Fatal("expected run aborted before seeding")
	}
}
