// Package postgres provides the PostgreSQL implementation of store.TaskStore.
// Records live in the task_records table; its schema ships as embedded goose
// migrations applied by Migrate. Lifecycle transitions are conditional
// UPDATEs guarded on the current status, and CHECK constraints reject rows
// whose result and error disagree with their status.
//
// The pgx database/sql driver is registered by this package.
package postgres

import (
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
)
