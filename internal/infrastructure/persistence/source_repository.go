package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/petshop/backend/internal/domain/shared"
	"github.com/petshop/backend/internal/domain/sync"
)

// GormSourceRepository implements SourceRepository using GORM
type GormSourceRepository struct {
	db *gorm.DB
}

// NewGormSourceRepository creates a new GormSourceRepository
func NewGormSourceRepository(db *gorm.DB) *GormSourceRepository {
	return &GormSourceRepository{db: db}
}

// FindByID finds a source by ID within a tenant
func (r *GormSourceRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*sync.Source, error) {
	var source sync.Source
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&source).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &source, nil
}

// FindAll returns a page of the tenant's sources
func (r *GormSourceRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]sync.Source, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&sync.Source{}).
		Where("tenant_id = ?", tenantID).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var sources []sync.Source
	query := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID)
	if err := applyFilter(query, filter, "name", "source_type", "last_sync_at", "created_at", "updated_at").Find(&sources).Error; err != nil {
		return nil, 0, err
	}
	return sources, total, nil
}

// FindSchedulable returns active sources whose sync mode requires a
// schedule. It deliberately spans tenants; the cron trigger owns it.
func (r *GormSourceRepository) FindSchedulable(ctx context.Context) ([]sync.Source, error) {
	var sources []sync.Source
	if err := r.db.WithContext(ctx).
		Where("active = ? AND sync_mode IN ? AND schedule <> ''",
			true, []sync.SyncMode{sync.SyncModeScheduled, sync.SyncModeHybrid}).
		Find(&sources).Error; err != nil {
		return nil, err
	}
	return sources, nil
}

// FindByName finds a source by its name within a tenant
func (r *GormSourceRepository) FindByName(ctx context.Context, tenantID uuid.UUID, name string) (*sync.Source, error) {
	var source sync.Source
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND name = ?", tenantID, name).
		First(&source).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &source, nil
}

// Save persists a source (insert or update)
func (r *GormSourceRepository) Save(ctx context.Context, source *sync.Source) error {
	return r.db.WithContext(ctx).Save(source).Error
}
