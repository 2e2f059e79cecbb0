package syncapp

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/petshop/backend/internal/domain/shared"
	"github.com/petshop/backend/internal/domain/sync"
)

// Source locks outlive any reasonable job; the TTL only guards against a
// crashed process never releasing its slot.
const sourceLockTTL = 2 * time.Hour

// TriggerSyncInput contains input for starting a synchronization job
type TriggerSyncInput struct {
	TenantID     uuid.UUID
	SourceID     uuid.UUID
	TriggeredBy  string
	SyncType     sync.SyncType
	UpdatedSince *time.Time
	PageSize     int
}

// ListJobsInput narrows and pages a job listing
type ListJobsInput struct {
	TenantID uuid.UUID
	SourceID *uuid.UUID
	Status   *sync.JobStatus
	Filter   shared.Filter
}

// SyncService orchestrates synchronization jobs: triggering, the
// single-active-job-per-source guarantee, cancellation and the read model.
// The reconciliation itself is delegated to the engine on a background
// goroutine; TriggerSync returns as soon as the job is accepted.
type SyncService struct {
	sourceRepo  sync.SourceRepository
	jobRepo     sync.SyncJobRepository
	jobItemRepo sync.SyncJobItemRepository
	lock        SourceLock
	registry    ConnectorRegistry
	engine      *ReconcileEngine
	logger      *zap.Logger
	jobTimeout  time.Duration
	lockTTL     time.Duration
	// wait is called before the background goroutine exits; tests use it to
	// synchronize on job completion
	wait func()
}

// NewSyncService creates a new sync orchestration service
func NewSyncService(
	sourceRepo sync.SourceRepository,
	jobRepo sync.SyncJobRepository,
	jobItemRepo sync.SyncJobItemRepository,
	lock SourceLock,
	registry ConnectorRegistry,
	engine *ReconcileEngine,
	logger *zap.Logger,
	jobTimeout time.Duration,
) *SyncService {
	if jobTimeout <= 0 {
		jobTimeout = time.Hour
	}
	return &SyncService{
		sourceRepo:  sourceRepo,
		jobRepo:     jobRepo,
		jobItemRepo: jobItemRepo,
		lock:        lock,
		registry:    registry,
		engine:      engine,
		logger:      logger.Named("sync"),
		jobTimeout:  jobTimeout,
		lockTTL:     sourceLockTTL,
	}
}

// SetLockTTL overrides the source lock expiry guard
func (s *SyncService) SetLockTTL(ttl time.Duration) {
	if ttl > 0 {
		s.lockTTL = ttl
	}
}

// TriggerSync starts a synchronization job for a source. It validates the
// source, claims the source's single active job slot, persists the job and
// hands it to the engine asynchronously. The returned job is in the running
// state; callers poll GetJob for progress.
func (s *SyncService) TriggerSync(ctx context.Context, input TriggerSyncInput) (*sync.SyncJob, error) {
	source, err := s.sourceRepo.FindByID(ctx, input.TenantID, input.SourceID)
	if err != nil {
		return nil, err
	}
	if source == nil {
		return nil, sync.ErrSourceNotFound
	}
	if !source.Active {
		return nil, sync.ErrSourceInactive
	}

	connector, err := s.registry.Resolve(source.ConnectorType)
	if err != nil {
		return nil, sync.ErrConfigurationInvalid
	}

	job, err := sync.NewSyncJob(input.TenantID, source.ID, input.TriggeredBy, input.SyncType)
	if err != nil {
		return nil, err
	}

	acquired, err := s.lock.TryAcquire(ctx, source.ID, job.ID, s.lockTTL)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, sync.ErrAlreadyRunning
	}

	// The slot is claimed; from here every exit path must release it or
	// hand it to the background runner.
	if err := job.Start(); err != nil {
		s.releaseLock(source.ID, job.ID)
		return nil, err
	}
	if err := s.jobRepo.Save(ctx, job); err != nil {
		s.releaseLock(source.ID, job.ID)
		return nil, err
	}

	s.logger.Info("Sync job accepted",
		zap.String("source_id", source.ID.String()),
		zap.String("job_id", job.ID.String()),
		zap.String("sync_type", string(input.SyncType)),
		zap.String("triggered_by", input.TriggeredBy),
	)

	opts := RunOptions{UpdatedSince: input.UpdatedSince, PageSize: input.PageSize}
	go s.runJob(source, job, connector, opts)

	return job, nil
}

// runJob drives one job to a terminal state on its own context, detached
// from the triggering request.
func (s *SyncService) runJob(source *sync.Source, job *sync.SyncJob, connector sync.Connector, opts RunOptions) {
	defer func() {
		s.releaseLock(source.ID, job.ID)
		if s.wait != nil {
			s.wait()
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
	defer cancel()

	if err := s.engine.Run(ctx, source, job, connector, opts); err != nil {
		// The engine already persisted the terminal state; nothing to do
		// here beyond the release in the deferred cleanup
		s.logger.Warn("Sync job finished with error",
			zap.String("job_id", job.ID.String()),
			zap.Error(err),
		)
	}
}

func (s *SyncService) releaseLock(sourceID, jobID uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.lock.Release(ctx, sourceID, jobID); err != nil {
		s.logger.Error("Failed to release source lock",
			zap.String("source_id", sourceID.String()),
			zap.Error(err),
		)
	}
}

// CancelJob requests cancellation of a running job. The engine observes the
// request between pages; records already applied stay applied.
func (s *SyncService) CancelJob(ctx context.Context, tenantID, jobID uuid.UUID) error {
	job, err := s.jobRepo.FindByID(ctx, tenantID, jobID)
	if err != nil {
		return err
	}
	if job == nil {
		return sync.ErrJobNotFound
	}
	if job.Status.IsTerminal() {
		return sync.ErrJobNotCancellable
	}
	if err := job.RequestCancel(); err != nil {
		return sync.ErrJobNotCancellable
	}
	if err := s.jobRepo.Save(ctx, job); err != nil {
		return err
	}
	s.logger.Info("Sync job cancellation requested", zap.String("job_id", jobID.String()))
	return nil
}

// GetJob returns one job with its counts
func (s *SyncService) GetJob(ctx context.Context, tenantID, jobID uuid.UUID) (*sync.SyncJob, error) {
	job, err := s.jobRepo.FindByID(ctx, tenantID, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, sync.ErrJobNotFound
	}
	return job, nil
}

// ListJobs returns a page of jobs, optionally filtered by source and status
func (s *SyncService) ListJobs(ctx context.Context, input ListJobsInput) (shared.Paginated[sync.SyncJob], error) {
	filter := sync.JobFilter{SourceID: input.SourceID, Status: input.Status}
	jobs, total, err := s.jobRepo.FindAll(ctx, input.TenantID, filter, input.Filter)
	if err != nil {
		return shared.Paginated[sync.SyncJob]{}, err
	}
	return shared.NewPaginated(jobs, total, input.Filter.Page, input.Filter.PageSize), nil
}

// SourceNames resolves the display names of the sources behind the given
// jobs. Sources deleted or outside the tenant are simply absent from the map.
func (s *SyncService) SourceNames(ctx context.Context, tenantID uuid.UUID, jobs []sync.SyncJob) (map[uuid.UUID]string, error) {
	names := make(map[uuid.UUID]string)
	for i := range jobs {
		sourceID := jobs[i].SourceID
		if _, seen := names[sourceID]; seen {
			continue
		}
		source, err := s.sourceRepo.FindByID(ctx, tenantID, sourceID)
		if err != nil {
			return nil, err
		}
		if source != nil {
			names[sourceID] = source.Name
		}
	}
	return names, nil
}

// ListJobItems returns a page of per-record outcomes for one job
func (s *SyncService) ListJobItems(ctx context.Context, tenantID, jobID uuid.UUID, page shared.Filter) (shared.Paginated[sync.SyncJobItem], error) {
	job, err := s.jobRepo.FindByID(ctx, tenantID, jobID)
	if err != nil {
		return shared.Paginated[sync.SyncJobItem]{}, err
	}
	if job == nil {
		return shared.Paginated[sync.SyncJobItem]{}, sync.ErrJobNotFound
	}
	items, total, err := s.jobItemRepo.FindByJob(ctx, tenantID, jobID, page)
	if err != nil {
		return shared.Paginated[sync.SyncJobItem]{}, err
	}
	return shared.NewPaginated(items, total, page.Page, page.PageSize), nil
}
