package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/petshop/backend/internal/domain/shared"
	"github.com/petshop/backend/internal/domain/sync"
)

// GormSyncJobRepository implements SyncJobRepository using GORM.
// Jobs are never deleted.
type GormSyncJobRepository struct {
	db *gorm.DB
}

// NewGormSyncJobRepository creates a new GormSyncJobRepository
func NewGormSyncJobRepository(db *gorm.DB) *GormSyncJobRepository {
	return &GormSyncJobRepository{db: db}
}

// FindByID finds a job by ID within a tenant
func (r *GormSyncJobRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*sync.SyncJob, error) {
	var job sync.SyncJob
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&job).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &job, nil
}

// FindAll returns a page of jobs, optionally narrowed by source and status
func (r *GormSyncJobRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter sync.JobFilter, page shared.Filter) ([]sync.SyncJob, int64, error) {
	applyJobFilter := func(query *gorm.DB) *gorm.DB {
		query = query.Where("tenant_id = ?", tenantID)
		if filter.SourceID != nil {
			query = query.Where("source_id = ?", *filter.SourceID)
		}
		if filter.Status != nil {
			query = query.Where("status = ?", *filter.Status)
		}
		return query
	}

	var total int64
	if err := applyJobFilter(r.db.WithContext(ctx).Model(&sync.SyncJob{})).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var jobs []sync.SyncJob
	query := applyJobFilter(r.db.WithContext(ctx))
	if err := applyFilter(query, page, "status", "started_at", "finished_at", "created_at", "updated_at").Find(&jobs).Error; err != nil {
		return nil, 0, err
	}
	return jobs, total, nil
}

// FindActiveBySource returns the pending or running job for a source, if any
func (r *GormSyncJobRepository) FindActiveBySource(ctx context.Context, tenantID, sourceID uuid.UUID) (*sync.SyncJob, error) {
	var job sync.SyncJob
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND source_id = ? AND status IN ?",
			tenantID, sourceID, []sync.JobStatus{sync.JobStatusPending, sync.JobStatusRunning}).
		First(&job).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &job, nil
}

// Save persists a job (insert or update)
func (r *GormSyncJobRepository) Save(ctx context.Context, job *sync.SyncJob) error {
	return r.db.WithContext(ctx).Save(job).Error
}

// SaveProgress commits only the running counters. A full-row save here would
// race with CancelJob and write cancel_requested back to false.
func (r *GormSyncJobRepository) SaveProgress(ctx context.Context, job *sync.SyncJob) error {
	return r.db.WithContext(ctx).Model(&sync.SyncJob{}).
		Where("id = ?", job.ID).
		Updates(map[string]interface{}{
			"total_fetched": job.Counts.TotalFetched,
			"inserted":      job.Counts.Inserted,
			"updated":       job.Counts.Updated,
			"unchanged":     job.Counts.Unchanged,
			"skipped":       job.Counts.Skipped,
			"conflicts":     job.Counts.Conflicts,
			"updated_at":    job.UpdatedAt,
		}).Error
}

// IsCancelRequested re-reads only the cancellation flag for a job. The
// engine polls this between pages, so it deliberately avoids loading the
// whole row.
func (r *GormSyncJobRepository) IsCancelRequested(ctx context.Context, jobID uuid.UUID) (bool, error) {
	var cancelRequested bool
	err := r.db.WithContext(ctx).Model(&sync.SyncJob{}).
		Select("cancel_requested").
		Where("id = ?", jobID).
		Scan(&cancelRequested).Error
	if err != nil {
		return false, err
	}
	return cancelRequested, nil
}
