package repository

import (
	"context"

	"powerbi-glean-connector/internal/model"
)

// SyncRunRepository defines the interface for sync run history operations
type SyncRunRepository interface {
	// Create a new sync run record
	Create(ctx context.Context, run *model.SyncRun) error

	// GetByID retrieves a sync run by its UUID
	GetByID(ctx context.Context, id string) (*model.SyncRun, error)

	// GetAll retrieves sync runs with optional status filtering
	GetAll(ctx context.Context, status model.SyncStatus, limit, offset int) ([]*model.SyncRun, int64, error)

	// Update updates an existing sync run
	Update(ctx context.Context, run *model.SyncRun) error

	// GetLatest retrieves the most recently created sync run
	GetLatest(ctx context.Context) (*model.SyncRun, error)

	// CountByStatus returns the count of sync runs by status
	CountByStatus(ctx context.Context) (map[model.SyncStatus]int64, error)
}
