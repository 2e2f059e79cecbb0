package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/petshop/backend/internal/domain/catalog"
	"github.com/petshop/backend/internal/domain/shared"
)

// GormChangeLogRepository implements ChangeLogRepository using GORM.
// The change log is append-only; this repository never updates or deletes.
type GormChangeLogRepository struct {
	db *gorm.DB
}

// NewGormChangeLogRepository creates a new GormChangeLogRepository
func NewGormChangeLogRepository(db *gorm.DB) *GormChangeLogRepository {
	return &GormChangeLogRepository{db: db}
}

// Append inserts a batch of change log entries
func (r *GormChangeLogRepository) Append(ctx context.Context, entries []*catalog.ProductChangeLog) error {
	if len(entries) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(entries).Error
}

// FindByProduct returns a page of change log entries for one product,
// newest first
func (r *GormChangeLogRepository) FindByProduct(ctx context.Context, tenantID, productID uuid.UUID, filter shared.Filter) ([]catalog.ProductChangeLog, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&catalog.ProductChangeLog{}).
		Where("tenant_id = ? AND product_id = ?", tenantID, productID).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var entries []catalog.ProductChangeLog
	query := r.db.WithContext(ctx).
		Where("tenant_id = ? AND product_id = ?", tenantID, productID).
		Order("changed_at desc")
	if filter.PageSize > 0 {
		page := filter.Page
		if page < 1 {
			page = 1
		}
		query = query.Limit(filter.PageSize).Offset((page - 1) * filter.PageSize)
	}
	if err := query.Find(&entries).Error; err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// FindBySyncJob returns every change log entry one sync job wrote
func (r *GormChangeLogRepository) FindBySyncJob(ctx context.Context, tenantID, jobID uuid.UUID) ([]catalog.ProductChangeLog, error) {
	var entries []catalog.ProductChangeLog
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND sync_job_id = ?", tenantID, jobID).
		Order("changed_at asc").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// CountSince counts catalog changes recorded after the given instant
func (r *GormChangeLogRepository) CountSince(ctx context.Context, tenantID uuid.UUID, since time.Time) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&catalog.ProductChangeLog{}).
		Where("tenant_id = ? AND changed_at > ?", tenantID, since).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
