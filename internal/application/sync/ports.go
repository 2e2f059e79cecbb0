package syncapp

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/petshop/backend/internal/domain/catalog"
	"github.com/petshop/backend/internal/domain/sync"
)

// TransactionScope provides transactional access to the repositories touched
// while applying one record outcome. The product mutation, its audit rows,
// the job item and the updated job counters must commit or roll back as one.
type TransactionScope interface {
	// Execute runs the given function within a database transaction.
	// If the function returns an error, the transaction is rolled back.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to all repositories within one
// transaction. All repositories returned share the same underlying database
// transaction.
type TransactionalRepositories interface {
	ProductRepo() catalog.ProductRepository
	ExternalRefRepo() catalog.ProductExternalRefRepository
	ChangeLogRepo() catalog.ChangeLogRepository
	PriceHistoryRepo() catalog.PriceHistoryRepository
	SourceRepo() sync.SourceRepository
	JobRepo() sync.SyncJobRepository
	JobItemRepo() sync.SyncJobItemRepository
}

// NoOpTransactionScope runs the function without a real transaction.
// Useful for tests.
type NoOpTransactionScope struct {
	Products     catalog.ProductRepository
	ExternalRefs catalog.ProductExternalRefRepository
	ChangeLogs   catalog.ChangeLogRepository
	PriceHistory catalog.PriceHistoryRepository
	Sources      sync.SourceRepository
	Jobs         sync.SyncJobRepository
	JobItems     sync.SyncJobItemRepository
}

// Execute runs the function directly against the configured repositories.
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

func (s *NoOpTransactionScope) ProductRepo() catalog.ProductRepository { return s.Products }
func (s *NoOpTransactionScope) ExternalRefRepo() catalog.ProductExternalRefRepository {
	return s.ExternalRefs
}
func (s *NoOpTransactionScope) ChangeLogRepo() catalog.ChangeLogRepository { return s.ChangeLogs }
func (s *NoOpTransactionScope) PriceHistoryRepo() catalog.PriceHistoryRepository {
	return s.PriceHistory
}
func (s *NoOpTransactionScope) SourceRepo() sync.SourceRepository       { return s.Sources }
func (s *NoOpTransactionScope) JobRepo() sync.SyncJobRepository         { return s.Jobs }
func (s *NoOpTransactionScope) JobItemRepo() sync.SyncJobItemRepository { return s.JobItems }

var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)

// SourceLock guarantees the single-active-job-per-source invariant across
// concurrent triggers. TryAcquire must be atomic: exactly one caller wins.
type SourceLock interface {
	// TryAcquire attempts to claim the source's job slot for the given job.
	// Returns false without error when another job holds the slot.
	TryAcquire(ctx context.Context, sourceID, jobID uuid.UUID, ttl time.Duration) (bool, error)
	// Release frees the slot only if jobID still holds it. A job whose lock
	// expired must not release the slot from whichever job claimed it since.
	// Releasing an unheld slot is not an error.
	Release(ctx context.Context, sourceID, jobID uuid.UUID) error
}

// ConnectorRegistry resolves the connector implementation for a source's
// connector type.
type ConnectorRegistry interface {
	// Resolve returns the connector for the given type, or an error when no
	// implementation is registered for it
	Resolve(connectorType sync.ConnectorType) (sync.Connector, error)
	// ValidateConfig checks a raw source configuration against the connector
	// type's expected shape
	ValidateConfig(connectorType sync.ConnectorType, config []byte) error
}
