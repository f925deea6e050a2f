package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for store driver.
// It contains all methods that a store database driver should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	IsInitialized(ctx context.Context) (bool, error)

	// ConfirmedTask model related methods. Tasks are append-only.
	CreateTask(ctx context.Context, create *ConfirmedTask) (*ConfirmedTask, error)
	ListTasks(ctx context.Context, find *FindTask) ([]*ConfirmedTask, error)

	// ScheduleEntry model related methods. Entries are never deleted;
	// transitions go through UpdateScheduleEntry.
	CreateScheduleEntry(ctx context.Context, create *ScheduleEntry) (*ScheduleEntry, error)
	ListScheduleEntries(ctx context.Context, find *FindScheduleEntry) ([]*ScheduleEntry, error)
	UpdateScheduleEntry(ctx context.Context, update *UpdateScheduleEntry) error
}
