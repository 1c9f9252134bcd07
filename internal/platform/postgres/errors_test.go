package postgres_test

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/IuryyCosta/test-servimed/internal/platform/postgres"
	"github.com/IuryyCosta/test-servimed/internal/store"
)

// Mock PgError creation helper
func newPgError(code string) *pgconn.PgError {
	return &pgconn.PgError{
		Code:           code,
		Message:        "error message",
		Detail:         "error details",
		SchemaName:     "public",
		TableName:      "task_records",
		ColumnName:     "status",
		ConstraintName: "task_records_outcome_check",
	}
}

func TestIsUniqueViolation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "nil error", err: nil, expected: false},
		{name: "non-postgres error", err: errors.New("generic error"), expected: false},
		{name: "unique violation", err: newPgError("23505"), expected: true},
		{name: "wrapped unique violation", err: fmt.Errorf("insert: %w", newPgError("23505")), expected: true},
		{name: "check violation", err: newPgError("23514"), expected: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, postgres.IsUniqueViolation(tt.err))
		})
	}
}

func TestIsCheckConstraintViolation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "nil error", err: nil, expected: false},
		{name: "non-postgres error", err: errors.New("generic error"), expected: false},
		{name: "check constraint violation", err: newPgError("23514"), expected: true},
		{name: "unique violation", err: newPgError("23505"), expected: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, postgres.IsCheckConstraintViolation(tt.err))
		})
	}
}

func TestMapError(t *testing.T) {
	t.Parallel()

	generic := errors.New("connection reset")

	tests := []struct {
		name      string
		err       error
		wantIs    error
		wantSame  bool
		wantMatch string
	}{
		{name: "no rows", err: sql.ErrNoRows, wantIs: store.ErrNotFound},
		{name: "unique violation", err: newPgError("23505"), wantIs: store.ErrDuplicate},
		{
			name:      "check violation",
			err:       newPgError("23514"),
			wantIs:    store.ErrInvalidEntity,
			wantMatch: "task_records_outcome_check",
		},
		{
			name:      "not null violation",
			err:       newPgError("23502"),
			wantIs:    store.ErrInvalidEntity,
			wantMatch: "status",
		},
		{name: "unmapped error", err: generic, wantSame: true},
		{name: "unmapped postgres code", err: newPgError("40001"), wantSame: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			mapped := postgres.MapError(tt.err)
			if tt.wantSame {
				assert.Equal(t, tt.err, mapped)
				return
			}
			assert.ErrorIs(t, mapped, tt.wantIs)
			if tt.wantMatch != "" {
				assert.Contains(t, mapped.Error(), tt.wantMatch)
			}
		})
	}

	assert.NoError(t, postgres.MapError(nil))
}
