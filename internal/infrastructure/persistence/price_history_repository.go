package persistence

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/petshop/backend/internal/domain/catalog"
	"github.com/petshop/backend/internal/domain/shared"
)

// GormPriceHistoryRepository implements PriceHistoryRepository using GORM.
// Price snapshots are append-only.
type GormPriceHistoryRepository struct {
	db *gorm.DB
}

// NewGormPriceHistoryRepository creates a new GormPriceHistoryRepository
func NewGormPriceHistoryRepository(db *gorm.DB) *GormPriceHistoryRepository {
	return &GormPriceHistoryRepository{db: db}
}

// Append inserts one price history snapshot
func (r *GormPriceHistoryRepository) Append(ctx context.Context, entry *catalog.ProductPriceHistory) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// FindByProduct returns a page of price snapshots for one product,
// newest first
func (r *GormPriceHistoryRepository) FindByProduct(ctx context.Context, tenantID, productID uuid.UUID, filter shared.Filter) ([]catalog.ProductPriceHistory, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&catalog.ProductPriceHistory{}).
		Where("tenant_id = ? AND product_id = ?", tenantID, productID).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var entries []catalog.ProductPriceHistory
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
