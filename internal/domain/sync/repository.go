package sync

import (
	"context"

	"github.com/google/uuid"
	"github.com/petshop/backend/internal/domain/shared"
)

// SourceRepository defines persistence for synchronization sources
type SourceRepository interface {
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Source, error)
	FindAll(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]Source, int64, error)
	// FindSchedulable returns every active source with a schedule, across
	// tenants; the background trigger walks them all
	FindSchedulable(ctx context.Context) ([]Source, error)
	FindByName(ctx context.Context, tenantID uuid.UUID, name string) (*Source, error)
	Save(ctx context.Context, source *Source) error
}

// JobFilter narrows job listings
type JobFilter struct {
	SourceID *uuid.UUID
	Status   *JobStatus
}

// SyncJobRepository defines persistence for synchronization jobs.
// Jobs are never deleted, only retained for audit.
type SyncJobRepository interface {
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*SyncJob, error)
	FindAll(ctx context.Context, tenantID uuid.UUID, filter JobFilter, page shared.Filter) ([]SyncJob, int64, error)
	// FindActiveBySource returns the pending or running job for a source, if any
	FindActiveBySource(ctx context.Context, tenantID, sourceID uuid.UUID) (*SyncJob, error)
	Save(ctx context.Context, job *SyncJob) error
	// SaveProgress persists only the running counters. Cancellation requests
	// land on the same row concurrently, so progress commits must leave the
	// cancel_requested column untouched
	SaveProgress(ctx context.Context, job *SyncJob) error
	// IsCancelRequested re-reads only the cancellation flag; the engine polls
	// this between pages without refreshing the whole aggregate
	IsCancelRequested(ctx context.Context, jobID uuid.UUID) (bool, error)
}

// SyncJobItemRepository defines persistence for per-record outcomes.
// Items are written once and never updated.
type SyncJobItemRepository interface {
	FindByJob(ctx context.Context, tenantID, jobID uuid.UUID, page shared.Filter) ([]SyncJobItem, int64, error)
	Save(ctx context.Context, item *SyncJobItem) error
}
