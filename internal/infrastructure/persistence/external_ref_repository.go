package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/petshop/backend/internal/domain/catalog"
)

// GormProductExternalRefRepository implements ProductExternalRefRepository using GORM
type GormProductExternalRefRepository struct {
	db *gorm.DB
}

// NewGormProductExternalRefRepository creates a new GormProductExternalRefRepository
func NewGormProductExternalRefRepository(db *gorm.DB) *GormProductExternalRefRepository {
	return &GormProductExternalRefRepository{db: db}
}

// FindBySource returns all external refs recorded for one source
func (r *GormProductExternalRefRepository) FindBySource(ctx context.Context, tenantID, sourceID uuid.UUID) ([]catalog.ProductExternalRef, error) {
	var refs []catalog.ProductExternalRef
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND source_id = ?", tenantID, sourceID).
		Find(&refs).Error; err != nil {
		return nil, err
	}
	return refs, nil
}

// FindByExternalID finds the ref for one external identifier on a source
func (r *GormProductExternalRefRepository) FindByExternalID(ctx context.Context, tenantID, sourceID uuid.UUID, externalID string) (*catalog.ProductExternalRef, error) {
	var ref catalog.ProductExternalRef
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND source_id = ? AND external_id = ?", tenantID, sourceID, externalID).
		First(&ref).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &ref, nil
}

// Save persists an external ref
func (r *GormProductExternalRefRepository) Save(ctx context.Context, ref *catalog.ProductExternalRef) error {
	return r.db.WithContext(ctx).Save(ref).Error
}
