package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/IuryyCosta/test-servimed/internal/domain"
	"github.com/IuryyCosta/test-servimed/internal/platform/logger"
	"github.com/IuryyCosta/test-servimed/internal/store"
)

const taskColumns = `id, kind, status, progress, message, error, result,
	created_at, updated_at, started_at, completed_at`

// PostgresTaskStore implements store.TaskStore on the task_records table.
// Every transition is a single conditional UPDATE, so concurrent readers
// only ever see complete rows.
type PostgresTaskStore struct {
	db  store.DBTX
	now func() time.Time
}

// NewPostgresTaskStore creates a new PostgresTaskStore
func NewPostgresTaskStore(db store.DBTX) *PostgresTaskStore {
	return &PostgresTaskStore{
		db:  db,
		now: time.Now,
	}
}

// Create implements store.TaskStore.
func (s *PostgresTaskStore) Create(ctx context.Context, rec *domain.TaskRecord) error {
	log := logger.FromContext(ctx)

	if err := rec.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}
	if rec.Status != domain.TaskStatusPending {
		return fmt.Errorf("%w: new task must be pending", store.ErrInvalidEntity)
	}

	query := `
		INSERT INTO task_records (id, kind, status, progress, message, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := s.db.ExecContext(ctx, query,
		rec.ID,
		rec.Kind,
		rec.Status,
		rec.Progress,
		rec.Message,
		rec.CreatedAt.UTC(),
		rec.UpdatedAt.UTC(),
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return store.ErrTaskExists
		}
		log.Error("failed to create task record",
			"task_id", rec.ID,
			"task_kind", rec.Kind,
			"error", err)
		return fmt.Errorf("failed to create task record: %w", MapError(err))
	}

	return nil
}

// Get implements store.TaskStore.
func (s *PostgresTaskStore) Get(ctx context.Context, id string) (*domain.TaskRecord, error) {
	query := `SELECT ` + taskColumns + ` FROM task_records WHERE id = $1`

	rec, err := scanTask(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrTaskNotFound
		}
		logger.FromContext(ctx).Error("failed to get task record",
			"task_id", id,
			"error", err)
		return nil, fmt.Errorf("failed to get task record: %w", MapError(err))
	}
	return rec, nil
}

// Claim implements store.TaskStore. The status guard in the WHERE clause
// makes the claim a compare-and-swap.
func (s *PostgresTaskStore) Claim(ctx context.Context, id string) (*domain.TaskRecord, error) {
	now := s.now().UTC()
	query := `
		UPDATE task_records
		SET status = $2, message = $3, started_at = $4, updated_at = $4
		WHERE id = $1 AND status = $5
		RETURNING ` + taskColumns

	rec, err := scanTask(s.db.QueryRowContext(ctx, query,
		id,
		domain.TaskStatusProcessing,
		domain.MessageProcessing,
		now,
		domain.TaskStatusPending,
	))
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to claim task: %w", MapError(err))
	}

	current, getErr := s.Get(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	return nil, fmt.Errorf("%w: status %s", store.ErrTaskNotClaimable, current.Status)
}

// Checkpoint implements store.TaskStore.
func (s *PostgresTaskStore) Checkpoint(ctx context.Context, id string, progress float64, message string) error {
	if progress < 0 || progress >= 1 {
		return rejected("checkpoint", fmt.Errorf("%w: progress %.2f out of range",
			domain.ErrInvalidTransition, progress))
	}

	query := `
		UPDATE task_records
		SET progress = $2, message = $3, updated_at = $4
		WHERE id = $1 AND status = $5 AND progress <= $2
	`
	return s.transition(ctx, "checkpoint", id, query,
		id, progress, message, s.now().UTC(), domain.TaskStatusProcessing)
}

// Complete implements store.TaskStore.
func (s *PostgresTaskStore) Complete(ctx context.Context, id string, result json.RawMessage) error {
	if len(result) == 0 {
		return rejected("complete", fmt.Errorf("%w: completed task requires a result",
			domain.ErrInvalidTransition))
	}

	query := `
		UPDATE task_records
		SET status = $2, progress = 1, message = $3, result = $4, error = NULL,
			completed_at = $5, updated_at = $5
		WHERE id = $1 AND status = $6
	`
	return s.transition(ctx, "complete", id, query,
		id, domain.TaskStatusCompleted, domain.MessageCompleted, string(result),
		s.now().UTC(), domain.TaskStatusProcessing)
}

// Fail implements store.TaskStore.
func (s *PostgresTaskStore) Fail(ctx context.Context, id string, errMsg string) error {
	if errMsg == "" {
		errMsg = domain.ErrInternal.Error()
	}

	query := `
		UPDATE task_records
		SET status = $2, message = $3, error = $3, result = NULL,
			completed_at = $4, updated_at = $4
		WHERE id = $1 AND status IN ($5, $6)
	`
	return s.transition(ctx, "fail", id, query,
		id, domain.TaskStatusFailed, errMsg, s.now().UTC(),
		domain.TaskStatusPending, domain.TaskStatusProcessing)
}

// ListByStatus implements store.TaskStore.
func (s *PostgresTaskStore) ListByStatus(
	ctx context.Context,
	status domain.TaskStatus,
	olderThan time.Duration,
) ([]*domain.TaskRecord, error) {
	log := logger.FromContext(ctx)

	var query string
	var args []interface{}

	if olderThan > 0 {
		query = `SELECT ` + taskColumns + `
			FROM task_records
			WHERE status = $1 AND updated_at <= $2
			ORDER BY created_at ASC`
		args = []interface{}{status, s.now().UTC().Add(-olderThan)}
	} else {
		query = `SELECT ` + taskColumns + `
			FROM task_records
			WHERE status = $1
			ORDER BY created_at ASC`
		args = []interface{}{status}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query tasks by status",
			"status", status,
			"error", err)
		return nil, fmt.Errorf("failed to query tasks by status: %w", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var records []*domain.TaskRecord
	for rows.Next() {
		rec, err := scanTask(rows)
		if err != nil {
			log.Error("failed to scan task row",
				"status", status,
				"error", err)
			return nil, fmt.Errorf("failed to scan task row: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		log.Error("error iterating task rows",
			"status", status,
			"error", err)
		return nil, fmt.Errorf("error iterating task rows: %w", err)
	}

	return records, nil
}

// transition runs a guarded UPDATE. When no row matched it tells a missing
// record apart from one whose state rejected the change.
func (s *PostgresTaskStore) transition(ctx context.Context, op, id, query string, args ...interface{}) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		if IsCheckConstraintViolation(err) {
			return rejected(op, fmt.Errorf("%w: %v", domain.ErrInvalidTransition, err))
		}
		logger.FromContext(ctx).Error("task transition failed",
			"task_id", id,
			"operation", op,
			"error", err)
		return store.NewStoreError("task", op, "query failed", MapError(err))
	}

	n, err := rowsAffected(result)
	if err != nil {
		return store.NewStoreError("task", op, "unknown outcome", err)
	}
	if n > 0 {
		return nil
	}

	current, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	return rejected(op, fmt.Errorf("%w: %s on %s task", domain.ErrInvalidTransition, op, current.Status))
}

func rejected(op string, err error) error {
	return store.NewStoreError("task", op, "transition rejected", fmt.Errorf("%w: %w", store.ErrUpdateFailed, err))
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*domain.TaskRecord, error) {
	var (
		rec         domain.TaskRecord
		errMsg      sql.NullString
		result      []byte
		startedAt   sql.NullTime
		completedAt sql.NullTime
	)

	err := row.Scan(
		&rec.ID,
		&rec.Kind,
		&rec.Status,
		&rec.Progress,
		&rec.Message,
		&errMsg,
		&result,
		&rec.CreatedAt,
		&rec.UpdatedAt,
		&startedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	if errMsg.Valid {
		e := errMsg.String
		rec.Error = &e
	}
	if result != nil {
		rec.Result = json.RawMessage(result)
	}
	if startedAt.Valid {
		t := startedAt.Time.UTC()
		rec.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time.UTC()
		rec.CompletedAt = &t
	}

	return &rec, nil
}
