package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	defaultPollInterval = 2 * time.Second
	defaultWorkerCount  = 4
	defaultRetryDelay   = 10 * time.Second
	defaultBatchSize    = 32
)

// HandlerFunc executes one claimed job. Handlers must be idempotent: a job
// observing a target no longer in the expected state is a no-op, not an error.
type HandlerFunc func(ctx context.Context, job Job) error

type dailySpec struct {
	minutesOfDay int
	catchUp      bool
}

// Scheduler polls the durable queue and dispatches due jobs to a small worker
// pool. It holds no job state of its own; everything lives in the queue.
type Scheduler struct {
	queue        JobQueue
	logger       *zap.Logger
	nowFn        func() time.Time
	location     *time.Location
	pollInterval time.Duration
	retryDelay   time.Duration
	workers      int

	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	daily    map[string]dailySpec
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithPollInterval overrides the queue polling cadence.
func WithPollInterval(interval time.Duration) Option {
	return func(scheduler *Scheduler) {
		if interval > 0 {
			scheduler.pollInterval = interval
		}
	}
}

// WithWorkerCount overrides the worker pool size.
func WithWorkerCount(workers int) Option {
	return func(scheduler *Scheduler) {
		if workers > 0 {
			scheduler.workers = workers
		}
	}
}

// WithRetryDelay overrides the delay before a failed run is retried.
func WithRetryDelay(delay time.Duration) Option {
	return func(scheduler *Scheduler) {
		if delay > 0 {
			scheduler.retryDelay = delay
		}
	}
}

// WithClock overrides the clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(scheduler *Scheduler) {
		if now != nil {
			scheduler.nowFn = now
		}
	}
}

// WithLocation sets the timezone used for daily occurrence arithmetic.
func WithLocation(location *time.Location) Option {
	return func(scheduler *Scheduler) {
		if location != nil {
			scheduler.location = location
		}
	}
}

// New wires a Scheduler.
func New(queue JobQueue, logger *zap.Logger, options ...Option) (*Scheduler, error) {
	if queue == nil {
		return nil, fmt.Errorf("scheduler: queue dependency is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	scheduler := &Scheduler{
		queue:        queue,
		logger:       logger,
		nowFn:        time.Now,
		location:     time.Local,
		pollInterval: defaultPollInterval,
		retryDelay:   defaultRetryDelay,
		workers:      defaultWorkerCount,
		handlers:     map[string]HandlerFunc{},
		daily:        map[string]dailySpec{},
	}
	for _, option := range options {
		if option != nil {
			option(scheduler)
		}
	}
	return scheduler, nil
}

// Register binds a handler to a job kind.
func (scheduler *Scheduler) Register(kind string, handler HandlerFunc) {
	scheduler.mu.Lock()
	defer scheduler.mu.Unlock()
	scheduler.handlers[kind] = handler
}

// RegisterDaily binds a handler to a recurring fixed job that runs once per
// day at minutesOfDay. catchUp daily jobs are seeded at today's time even when
// it already passed, so the first poll runs them immediately after a restart.
func (scheduler *Scheduler) RegisterDaily(kind string, minutesOfDay int, catchUp bool, handler HandlerFunc) {
	scheduler.mu.Lock()
	defer scheduler.mu.Unlock()
	scheduler.handlers[kind] = handler
	scheduler.daily[kind] = dailySpec{minutesOfDay: minutesOfDay, catchUp: catchUp}
}

// SchedulePaymentTimeout enqueues the dynamic timeout job for one payment.
func (scheduler *Scheduler) SchedulePaymentTimeout(ctx context.Context, paymentID string, runAt time.Time) error {
	job, err := NewJob(PaymentTimeoutJobID(paymentID), KindPaymentTimeout, PaymentTimeoutPayload{PaymentID: paymentID}, runAt)
	if err != nil {
		return err
	}
	return scheduler.queue.Enqueue(ctx, job)
}

// CancelPaymentTimeout drops the timeout job once a payment is confirmed.
func (scheduler *Scheduler) CancelPaymentTimeout(ctx context.Context, paymentID string) error {
	return scheduler.queue.Cancel(ctx, PaymentTimeoutJobID(paymentID))
}

// EnsureDailyJobs seeds the recurring fixed rows. Existing rows keep their
// run time; a row that came due while the process was down stays overdue and
// runs on the first poll.
func (scheduler *Scheduler) EnsureDailyJobs(ctx context.Context) error {
	scheduler.mu.RLock()
	daily := make(map[string]dailySpec, len(scheduler.daily))
	for kind, spec := range scheduler.daily {
		daily[kind] = spec
	}
	scheduler.mu.RUnlock()

	now := scheduler.nowFn().In(scheduler.location)
	for kind, spec := range daily {
		runAt := scheduler.occurrenceAt(now, spec.minutesOfDay)
		if runAt.Before(now) && !spec.catchUp {
			runAt = runAt.Add(24 * time.Hour)
		}
		job, err := NewJob(DailyJobID(kind), kind, nil, runAt)
		if err != nil {
			return err
		}
		if err := scheduler.queue.Enqueue(ctx, job); err != nil {
			return err
		}
	}
	return nil
}

// RecoverStuckJobs requeues rows stranded by a crash: a row left in running
// blocks its deterministic id against Enqueue, so a recurring daily job would
// otherwise never fire again after a crash mid-handler. Failed rows of
// recurring kinds are resurrected for the same reason; failed one-shot rows
// stay failed. Runs once at startup before polling begins.
func (scheduler *Scheduler) RecoverStuckJobs(ctx context.Context) error {
	scheduler.mu.RLock()
	recurringKinds := make([]string, 0, len(scheduler.daily))
	for kind := range scheduler.daily {
		recurringKinds = append(recurringKinds, kind)
	}
	scheduler.mu.RUnlock()

	recovered, err := scheduler.queue.ResetStuck(ctx, recurringKinds)
	if err != nil {
		return err
	}
	if recovered > 0 {
		scheduler.logger.Info("requeued stuck jobs", zap.Int64("count", recovered))
	}
	return nil
}

// Run polls until the context is done, then drains in-flight jobs.
func (scheduler *Scheduler) Run(ctx context.Context) error {
	jobs := make(chan Job)
	var workerGroup sync.WaitGroup
	for index := 0; index < scheduler.workers; index++ {
		workerGroup.Add(1)
		go func() {
			defer workerGroup.Done()
			for job := range jobs {
				scheduler.execute(ctx, job)
			}
		}()
	}

	ticker := time.NewTicker(scheduler.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			close(jobs)
			workerGroup.Wait()
			return nil
		case <-ticker.C:
			scheduler.dispatchDue(ctx, jobs)
		}
	}
}

// PollOnce claims and executes every currently due job synchronously. Startup
// recovery calls it to run overdue work before the server accepts traffic;
// tests drive the queue with it.
func (scheduler *Scheduler) PollOnce(ctx context.Context) {
	due, err := scheduler.queue.Due(ctx, scheduler.nowFn(), defaultBatchSize)
	if err != nil {
		scheduler.logger.Error("poll due jobs", zap.Error(err))
		return
	}
	for _, job := range due {
		claimed, err := scheduler.queue.Claim(ctx, job.ID)
		if err != nil {
			scheduler.logger.Error("claim job", zap.String("job_id", job.ID), zap.Error(err))
			continue
		}
		if claimed {
			scheduler.execute(ctx, job)
		}
	}
}

func (scheduler *Scheduler) dispatchDue(ctx context.Context, jobs chan<- Job) {
	due, err := scheduler.queue.Due(ctx, scheduler.nowFn(), defaultBatchSize)
	if err != nil {
		scheduler.logger.Error("poll due jobs", zap.Error(err))
		return
	}
	for _, job := range due {
		claimed, err := scheduler.queue.Claim(ctx, job.ID)
		if err != nil {
			scheduler.logger.Error("claim job", zap.String("job_id", job.ID), zap.Error(err))
			continue
		}
		if !claimed {
			continue
		}
		select {
		case jobs <- job:
		case <-ctx.Done():
			return
		}
	}
}

func (scheduler *Scheduler) execute(ctx context.Context, job Job) {
	scheduler.mu.RLock()
	handler, known := scheduler.handlers[job.Kind]
	spec, recurring := scheduler.daily[job.Kind]
	scheduler.mu.RUnlock()

	if !known {
		scheduler.logger.Error("no handler for job kind", zap.String("job_id", job.ID), zap.String("kind", job.Kind))
		if err := scheduler.queue.Fail(ctx, job.ID, job.Attempts, "unknown job kind"); err != nil {
			scheduler.logger.Error("fail job", zap.String("job_id", job.ID), zap.Error(err))
		}
		return
	}

	runError := handler(ctx, job)
	if runError == nil {
		if recurring {
			next := scheduler.nextOccurrence(spec.minutesOfDay)
			if err := scheduler.queue.Reschedule(ctx, job.ID, next); err != nil {
				scheduler.logger.Error("reschedule job", zap.String("job_id", job.ID), zap.Error(err))
			}
			return
		}
		if err := scheduler.queue.Finish(ctx, job.ID); err != nil {
			scheduler.logger.Error("finish job", zap.String("job_id", job.ID), zap.Error(err))
		}
		return
	}

	attempts := job.Attempts + 1
	scheduler.logger.Error("job run failed",
		zap.String("job_id", job.ID),
		zap.String("kind", job.Kind),
		zap.Int("attempts", attempts),
		zap.Error(runError),
	)
	if attempts >= job.MaxAttempts {
		if err := scheduler.queue.Fail(ctx, job.ID, attempts, runError.Error()); err != nil {
			scheduler.logger.Error("fail job", zap.String("job_id", job.ID), zap.Error(err))
		}
		return
	}
	if err := scheduler.queue.Retry(ctx, job.ID, attempts, scheduler.nowFn().Add(scheduler.retryDelay), runError.Error()); err != nil {
		scheduler.logger.Error("retry job", zap.String("job_id", job.ID), zap.Error(err))
	}
}

// occurrenceAt returns the given day's occurrence of a minutes-of-day mark.
func (scheduler *Scheduler) occurrenceAt(day time.Time, minutesOfDay int) time.Time {
	midnight := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, scheduler.location)
	return midnight.Add(time.Duration(minutesOfDay) * time.Minute)
}

func (scheduler *Scheduler) nextOccurrence(minutesOfDay int) time.Time {
	now := scheduler.nowFn().In(scheduler.location)
	occurrence := scheduler.occurrenceAt(now, minutesOfDay)
	if !occurrence.After(now) {
		occurrence = occurrence.Add(24 * time.Hour)
	}
	return occurrence
}
