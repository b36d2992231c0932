package gormstore

import (
	"context"
	"time"

	"github.com/lastcall-foods/lastcall/internal/scheduler"
	"gorm.io/datatypes"
	"gorm.io/gorm/clause"
)

// Enqueue inserts a queue row, silently keeping an existing row with the same
// deterministic id. This is what makes registration idempotent.
func (store *Store) Enqueue(ctx context.Context, job scheduler.Job) error {
	row := ScheduledJobRecord{
		JobID:       job.ID,
		Kind:        job.Kind,
		Payload:     datatypes.JSON(job.Payload),
		RunAt:       job.RunAt,
		Status:      job.Status,
		Attempts:    job.Attempts,
		MaxAttempts: job.MaxAttempts,
	}
	err := store.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row).Error
	if err != nil && !isDuplicateKey(err) {
		return wrapStoreError(errorSubjectJob, errorCodeCreate, err)
	}
	return nil
}

// Cancel removes a job that has not started running.
func (store *Store) Cancel(ctx context.Context, jobID string) error {
	err := store.db.WithContext(ctx).
		Where("job_id = ? AND status = ?", jobID, scheduler.JobStatusPending).
		Delete(&ScheduledJobRecord{}).Error
	if err != nil {
		return wrapStoreError(errorSubjectJob, errorCodeDelete, err)
	}
	return nil
}

// Due lists pending jobs whose run time has passed, oldest first.
func (store *Store) Due(ctx context.Context, now time.Time, limit int) ([]scheduler.Job, error) {
	var rows []ScheduledJobRecord
	err := store.db.WithContext(ctx).
		Where("status = ? AND run_at <= ?", scheduler.JobStatusPending, now).
		Order("run_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectJob, errorCodeList, err)
	}
	jobs := make([]scheduler.Job, 0, len(rows))
	for _, row := range rows {
		jobs = append(jobs, scheduler.Job{
			ID:          row.JobID,
			Kind:        row.Kind,
			Payload:     []byte(row.Payload),
			RunAt:       row.RunAt,
			Status:      row.Status,
			Attempts:    row.Attempts,
			MaxAttempts: row.MaxAttempts,
			LastError:   row.LastError,
		})
	}
	return jobs, nil
}

// Claim flips one pending row to running; only one poller wins the row.
func (store *Store) Claim(ctx context.Context, jobID string) (bool, error) {
	result := store.db.WithContext(ctx).
		Model(&ScheduledJobRecord{}).
		Where("job_id = ? AND status = ?", jobID, scheduler.JobStatusPending).
		Update("status", scheduler.JobStatusRunning)
	if result.Error != nil {
		return false, wrapStoreError(errorSubjectJob, errorCodeUpdate, result.Error)
	}
	return result.RowsAffected == 1, nil
}

// Finish marks a one-shot job done.
func (store *Store) Finish(ctx context.Context, jobID string) error {
	err := store.db.WithContext(ctx).
		Model(&ScheduledJobRecord{}).
		Where("job_id = ?", jobID).
		Updates(map[string]interface{}{
			"status":     scheduler.JobStatusDone,
			"last_error": "",
		}).Error
	if err != nil {
		return wrapStoreError(errorSubjectJob, errorCodeUpdate, err)
	}
	return nil
}

// Reschedule returns a recurring job to the queue for its next occurrence.
func (store *Store) Reschedule(ctx context.Context, jobID string, runAt time.Time) error {
	err := store.db.WithContext(ctx).
		Model(&ScheduledJobRecord{}).
		Where("job_id = ?", jobID).
		Updates(map[string]interface{}{
			"status":     scheduler.JobStatusPending,
			"run_at":     runAt,
			"attempts":   0,
			"last_error": "",
		}).Error
	if err != nil {
		return wrapStoreError(errorSubjectJob, errorCodeUpdate, err)
	}
	return nil
}

// Retry returns a failed run to the queue with a new attempt count.
func (store *Store) Retry(ctx context.Context, jobID string, attempts int, runAt time.Time, lastError string) error {
	err := store.db.WithContext(ctx).
		Model(&ScheduledJobRecord{}).
		Where("job_id = ?", jobID).
		Updates(map[string]interface{}{
			"status":     scheduler.JobStatusPending,
			"run_at":     runAt,
			"attempts":   attempts,
			"last_error": lastError,
		}).Error
	if err != nil {
		return wrapStoreError(errorSubjectJob, errorCodeUpdate, err)
	}
	return nil
}

// ResetStuck returns rows stranded by a crash to the queue: anything still
// marked running, plus failed rows of the given kinds. The reset keeps the
// old run_at, so an overdue row runs on the first poll after restart.
func (store *Store) ResetStuck(ctx context.Context, recurringKinds []string) (int64, error) {
	query := store.db.WithContext(ctx).
		Model(&ScheduledJobRecord{}).
		Where("status = ?", scheduler.JobStatusRunning)
	if len(recurringKinds) > 0 {
		query = store.db.WithContext(ctx).
			Model(&ScheduledJobRecord{}).
			Where("status = ? OR (status = ? AND kind IN ?)",
				scheduler.JobStatusRunning, scheduler.JobStatusFailed, recurringKinds)
	}
	result := query.Updates(map[string]interface{}{
		"status":     scheduler.JobStatusPending,
		"attempts":   0,
		"last_error": "",
	})
	if result.Error != nil {
		return 0, wrapStoreError(errorSubjectJob, errorCodeUpdate, result.Error)
	}
	return result.RowsAffected, nil
}

// Fail marks a job permanently failed.
func (store *Store) Fail(ctx context.Context, jobID string, attempts int, lastError string) error {
	err := store.db.WithContext(ctx).
		Model(&ScheduledJobRecord{}).
		Where("job_id = ?", jobID).
		Updates(map[string]interface{}{
			"status":     scheduler.JobStatusFailed,
			"attempts":   attempts,
			"last_error": lastError,
		}).Error
	if err != nil {
		return wrapStoreError(errorSubjectJob, errorCodeUpdate, err)
	}
	return nil
}
