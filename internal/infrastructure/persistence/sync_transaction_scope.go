package persistence

import (
	"context"

	"gorm.io/gorm"

	syncapp "github.com/petshop/backend/internal/application/sync"
	"github.com/petshop/backend/internal/domain/catalog"
	"github.com/petshop/backend/internal/domain/sync"
)

// GormTransactionScope implements the synchronization TransactionScope using
// GORM transactions. One record outcome (product mutation, audit rows, job
// item, counter update) commits or rolls back as a unit.
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a new GormTransactionScope
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// Execute runs the given function within a database transaction.
// If the function returns an error, the transaction is rolled back.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos syncapp.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTransactionalRepositories{tx: tx})
	})
}

// gormTransactionalRepositories provides access to all repositories within
// one transaction.
type gormTransactionalRepositories struct {
	tx *gorm.DB
}

func (r *gormTransactionalRepositories) ProductRepo() catalog.ProductRepository {
	return NewGormProductRepository(r.tx)
}

func (r *gormTransactionalRepositories) ExternalRefRepo() catalog.ProductExternalRefRepository {
	return NewGormProductExternalRefRepository(r.tx)
}

func (r *gormTransactionalRepositories) ChangeLogRepo() catalog.ChangeLogRepository {
	return NewGormChangeLogRepository(r.tx)
}

func (r *gormTransactionalRepositories) PriceHistoryRepo() catalog.PriceHistoryRepository {
	return NewGormPriceHistoryRepository(r.tx)
}

func (r *gormTransactionalRepositories) SourceRepo() sync.SourceRepository {
	return NewGormSourceRepository(r.tx)
}

func (r *gormTransactionalRepositories) JobRepo() sync.SyncJobRepository {
	return NewGormSyncJobRepository(r.tx)
}

func (r *gormTransactionalRepositories) JobItemRepo() sync.SyncJobItemRepository {
	return NewGormSyncJobItemRepository(r.tx)
}

var _ syncapp.TransactionScope = (*GormTransactionScope)(nil)
var _ syncapp.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
