package database

import (
	"context"
	"database/sql"
	"time"

	"homeservices/internal/models"
)

const syncTaskColumns = `id, task_type, booking_id, COALESCE(payload, ''), status, retry_count, last_error,
        created_at, processed_at, next_retry_at`

func scanSyncTask(row rowScanner) (models.SyncTask, error) {
	var (
		t                    models.SyncTask
		lastErr              sql.NullString
		processed, nextRetry sql.NullTime
	)
	err := row.Scan(&t.ID, &t.TaskType, &t.BookingID, &t.Payload, &t.Status, &t.RetryCount, &lastErr,
		&t.CreatedAt, &processed, &nextRetry)
	if err != nil {
		return t, err
	}
	if lastErr.Valid {
		msg := lastErr.String
		t.LastError = &msg
	}
	t.ProcessedAt = timePtr(processed)
	t.NextRetryAt = timePtr(nextRetry)
	return t, nil
}

func (db *DB) CreateSyncTask(ctx context.Context, task *models.SyncTask) error {
	if task.Status == "" {
		task.Status = models.SyncStatusPending
	}
	query := `INSERT INTO sync_queue (task_type, booking_id, payload, status, retry_count, last_error, created_at, next_retry_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		task.TaskType,
		task.BookingID,
		task.Payload,
		task.Status,
		task.RetryCount,
		task.LastError,
		now,
		nullTime(task.NextRetryAt),
	)
	if err != nil {
		return storeErr("create sync task", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return storeErr("get last insert id", err)
	}
	task.ID = id
	task.CreatedAt = now

	return nil
}

// GetPendingSyncTasks returns pending tasks and retries that are due.
func (db *DB) GetPendingSyncTasks(ctx context.Context, limit int) ([]models.SyncTask, error) {
	query := `SELECT ` + syncTaskColumns + `
              FROM sync_queue
              WHERE status IN (?, ?) AND (next_retry_at IS NULL OR next_retry_at <= ?)
              ORDER BY created_at ASC LIMIT ?`
	return db.querySyncTasks(ctx, query, models.SyncStatusPending, models.SyncStatusRetry, time.Now(), limit)
}

func (db *DB) GetSyncTask(ctx context.Context, id int64) (models.SyncTask, error) {
	task, err := scanSyncTask(db.QueryRowContext(ctx, `SELECT `+syncTaskColumns+` FROM sync_queue WHERE id = ?`, id))
	if err != nil {
		return task, storeErr("get sync task", err)
	}
	return task, nil
}

func (db *DB) UpdateSyncTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error {
	var query string
	var args []interface{}
	now := time.Now()

	switch status {
	case models.SyncStatusRetry:
		query = `UPDATE sync_queue SET status = ?, last_error = ?, next_retry_at = ?, retry_count = retry_count + 1 WHERE id = ?`
		args = []interface{}{status, nullString(errMsg), nullTime(nextRetryAt), id}
	case models.SyncStatusCompleted, models.SyncStatusFailed:
		query = `UPDATE sync_queue SET status = ?, last_error = ?, next_retry_at = ?, processed_at = ? WHERE id = ?`
		args = []interface{}{status, nullString(errMsg), nullTime(nextRetryAt), now, id}
	default:
		query = `UPDATE sync_queue SET status = ?, last_error = ?, next_retry_at = ? WHERE id = ?`
		args = []interface{}{status, nullString(errMsg), nullTime(nextRetryAt), id}
	}

	_, err := db.ExecContext(ctx, query, args...)
	return storeErr("update sync task status", err)
}

func (db *DB) GetFailedSyncTasks(ctx context.Context) ([]models.SyncTask, error) {
	query := `SELECT ` + syncTaskColumns + ` FROM sync_queue WHERE status = ? ORDER BY created_at DESC`
	return db.querySyncTasks(ctx, query, models.SyncStatusFailed)
}

// RequeueFailedSyncTasks puts failed tasks back into the pending state.
func (db *DB) RequeueFailedSyncTasks(ctx context.Context) (int64, error) {
	query := `UPDATE sync_queue SET status = ?, retry_count = 0, next_retry_at = NULL, processed_at = NULL WHERE status = ?`
	result, err := db.ExecContext(ctx, query, models.SyncStatusPending, models.SyncStatusFailed)
	if err != nil {
		return 0, storeErr("requeue failed sync tasks", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, storeErr("get rows affected", err)
	}
	return n, nil
}

func (db *DB) querySyncTasks(ctx context.Context, query string, args ...any) ([]models.SyncTask, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr("get sync tasks", err)
	}
	defer rows.Close()

	var tasks []models.SyncTask
	for rows.Next() {
		t, err := scanSyncTask(rows)
		if err != nil {
			return nil, storeErr("scan sync task", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate sync tasks", err)
	}
	return tasks, nil
}
