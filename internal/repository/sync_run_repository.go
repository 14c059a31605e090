package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"powerbi-glean-connector/internal/model"
)

type syncRunRepository struct {
	db *gorm.DB
}

// NewSyncRunRepository creates a new instance of SyncRunRepository
func NewSyncRunRepository(db *gorm.DB) SyncRunRepository {
	return &syncRunRepository{db: db}
}

// Create a new sync run record
func (r *syncRunRepository) Create(ctx context.Context, run *model.SyncRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

// GetByID retrieves a sync run by its UUID
func (r *syncRunRepository) GetByID(ctx context.Context, id string) (*model.SyncRun, error) {
	var run model.SyncRun
	result := r.db.WithContext(ctx).Where("id = ?", id).First(&run)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRunNotFound
		}
		return nil, result.Error
	}
	return &run, nil
}

// GetAll retrieves sync runs with optional status filtering
func (r *syncRunRepository) GetAll(ctx context.Context, status model.SyncStatus, limit, offset int) ([]*model.SyncRun, int64, error) {
	var runs []*model.SyncRun
	var total int64

	query := r.db.WithContext(ctx).Model(&model.SyncRun{})

	// Apply status filter if provided
	if status != "" {
		query = query.Where("status = ?", status)
	}

	// Get total count
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// Get runs with pagination, newest first
	result := query.Limit(limit).Offset(offset).Order("created_at DESC").Find(&runs)
	if result.Error != nil {
		return nil, 0, result.Error
	}

	return runs, total, nil
}

// Update updates an existing sync run
func (r *syncRunRepository) Update(ctx context.Context, run *model.SyncRun) error {
	return r.db.WithContext(ctx).Save(run).Error
}

// GetLatest retrieves the most recently created sync run
func (r *syncRunRepository) GetLatest(ctx context.Context) (*model.SyncRun, error) {
	var run model.SyncRun
	result := r.db.WithContext(ctx).Order("created_at DESC").First(&run)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRunNotFound
		}
		return nil, result.Error
	}
	return &run, nil
}

// CountByStatus returns the count of sync runs by status
func (r *syncRunRepository) CountByStatus(ctx context.Context) (map[model.SyncStatus]int64, error) {
	var results []struct {
		Status model.SyncStatus
		Count  int64
	}

	err := r.db.WithContext(ctx).Model(&model.SyncRun{}).Select("status, COUNT(*) as count").Group("status").Scan(&results).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[model.SyncStatus]int64)
	for _, result := range results {
		counts[result.Status] = result.Count
	}

	return counts, nil
}
