package catalogapp

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/petshop/backend/internal/domain/catalog"
	"github.com/petshop/backend/internal/domain/shared"
)

// AuditService exposes the catalog audit trail: field-level change logs and
// price history snapshots. It is read-only; entries are written inside the
// synchronization transaction scope or by catalog edits.
type AuditService struct {
	productRepo      catalog.ProductRepository
	changeLogRepo    catalog.ChangeLogRepository
	priceHistoryRepo catalog.PriceHistoryRepository
	logger           *zap.Logger
}

// NewAuditService creates a new audit trail query service
func NewAuditService(
	productRepo catalog.ProductRepository,
	changeLogRepo catalog.ChangeLogRepository,
	priceHistoryRepo catalog.PriceHistoryRepository,
	logger *zap.Logger,
) *AuditService {
	return &AuditService{
		productRepo:      productRepo,
		changeLogRepo:    changeLogRepo,
		priceHistoryRepo: priceHistoryRepo,
		logger:           logger.Named("audit"),
	}
}

// ListProductChanges returns a page of change log entries for one product
func (s *AuditService) ListProductChanges(
	ctx context.Context,
	tenantID, productID uuid.UUID,
	page shared.Filter,
) (shared.Paginated[catalog.ProductChangeLog], error) {
	if err := s.ensureProduct(ctx, tenantID, productID); err != nil {
		return shared.Paginated[catalog.ProductChangeLog]{}, err
	}
	entries, total, err := s.changeLogRepo.FindByProduct(ctx, tenantID, productID, page)
	if err != nil {
		return shared.Paginated[catalog.ProductChangeLog]{}, err
	}
	return shared.NewPaginated(entries, total, page.Page, page.PageSize), nil
}

// ListJobChanges returns all change log entries written by one sync job
func (s *AuditService) ListJobChanges(ctx context.Context, tenantID, jobID uuid.UUID) ([]catalog.ProductChangeLog, error) {
	return s.changeLogRepo.FindBySyncJob(ctx, tenantID, jobID)
}

// ListPriceHistory returns a page of price snapshots for one product
func (s *AuditService) ListPriceHistory(
	ctx context.Context,
	tenantID, productID uuid.UUID,
	page shared.Filter,
) (shared.Paginated[catalog.ProductPriceHistory], error) {
	if err := s.ensureProduct(ctx, tenantID, productID); err != nil {
		return shared.Paginated[catalog.ProductPriceHistory]{}, err
	}
	entries, total, err := s.priceHistoryRepo.FindByProduct(ctx, tenantID, productID, page)
	if err != nil {
		return shared.Paginated[catalog.ProductPriceHistory]{}, err
	}
	return shared.NewPaginated(entries, total, page.Page, page.PageSize), nil
}

// CountChangesSince reports how many catalog changes landed after a given
// instant, across all products. Used by the health/stats surface.
func (s *AuditService) CountChangesSince(ctx context.Context, tenantID uuid.UUID, since time.Time) (int64, error) {
	return s.changeLogRepo.CountSince(ctx, tenantID, since)
}

func (s *AuditService) ensureProduct(ctx context.Context, tenantID, productID uuid.UUID) error {
	product, err := s.productRepo.FindByID(ctx, tenantID, productID)
	if err != nil {
		return err
	}
	if product == nil {
		return shared.ErrNotFound
	}
	return nil
}
