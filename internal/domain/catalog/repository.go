package catalog

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/petshop/backend/internal/domain/shared"
)

// ProductRepository defines the persistence interface for products
type ProductRepository interface {
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Product, error)
	FindByCode(ctx context.Context, tenantID uuid.UUID, code string) (*Product, error)
	FindByBarcode(ctx context.Context, tenantID uuid.UUID, barcode string) (*Product, error)
	FindAll(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]Product, error)
	Save(ctx context.Context, product *Product) error
	Count(ctx context.Context, tenantID uuid.UUID) (int64, error)
}

// ProductExternalRefRepository defines persistence for source/external-id links
type ProductExternalRefRepository interface {
	FindBySource(ctx context.Context, tenantID, sourceID uuid.UUID) ([]ProductExternalRef, error)
	FindByExternalID(ctx context.Context, tenantID, sourceID uuid.UUID, externalID string) (*ProductExternalRef, error)
	Save(ctx context.Context, ref *ProductExternalRef) error
}

// ChangeLogRepository defines persistence for the product change log.
// Entries are append-only; there is no update or delete.
type ChangeLogRepository interface {
	Append(ctx context.Context, entries []*ProductChangeLog) error
	FindByProduct(ctx context.Context, tenantID, productID uuid.UUID, filter shared.Filter) ([]ProductChangeLog, int64, error)
	FindBySyncJob(ctx context.Context, tenantID, jobID uuid.UUID) ([]ProductChangeLog, error)
	CountSince(ctx context.Context, tenantID uuid.UUID, since time.Time) (int64, error)
}

// PriceHistoryRepository defines persistence for price history snapshots.
// Entries are append-only.
type PriceHistoryRepository interface {
	Append(ctx context.Context, entry *ProductPriceHistory) error
	FindByProduct(ctx context.Context, tenantID, productID uuid.UUID, filter shared.Filter) ([]ProductPriceHistory, int64, error)
}
