package persistence

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/petshop/backend/internal/domain/shared"
	"github.com/petshop/backend/internal/domain/sync"
)

// GormSyncJobItemRepository implements SyncJobItemRepository using GORM.
// Items are written once and never updated.
type GormSyncJobItemRepository struct {
	db *gorm.DB
}

// NewGormSyncJobItemRepository creates a new GormSyncJobItemRepository
func NewGormSyncJobItemRepository(db *gorm.DB) *GormSyncJobItemRepository {
	return &GormSyncJobItemRepository{db: db}
}

// FindByJob returns a page of per-record outcomes for one job, in the
// order they were applied
func (r *GormSyncJobItemRepository) FindByJob(ctx context.Context, tenantID, jobID uuid.UUID, page shared.Filter) ([]sync.SyncJobItem, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&sync.SyncJobItem{}).
		Where("tenant_id = ? AND job_id = ?", tenantID, jobID).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []sync.SyncJobItem
	query := r.db.WithContext(ctx).
		Where("tenant_id = ? AND job_id = ?", tenantID, jobID).
		Order("created_at asc")
	if page.PageSize > 0 {
		p := page.Page
		if p < 1 {
			p = 1
		}
		query = query.Limit(page.PageSize).Offset((p - 1) * page.PageSize)
	}
	if err := query.Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// Save persists one job item
func (r *GormSyncJobItemRepository) Save(ctx context.Context, item *sync.SyncJobItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}
