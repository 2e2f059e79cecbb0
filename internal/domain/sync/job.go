package sync

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/petshop/backend/internal/domain/shared"
)

// SyncType distinguishes full re-reads from incremental ones
type SyncType string

const (
	SyncTypeFull        SyncType = "full"
	SyncTypeIncremental SyncType = "incremental"
)

// IsValid checks if the sync type is valid
func (t SyncType) IsValid() bool {
	return t == SyncTypeFull || t == SyncTypeIncremental
}

// JobStatus represents the status of a synchronization job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// IsValid checks if the status is valid
func (s JobStatus) IsValid() bool {
	switch s {
	case JobStatusPending, JobStatusRunning, JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// IsTerminal returns true if this is a terminal state
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// Counts holds the per-action running totals of a job
type Counts struct {
	TotalFetched int `gorm:"not null;default:0"`
	Inserted     int `gorm:"not null;default:0"`
	Updated      int `gorm:"not null;default:0"`
	Unchanged    int `gorm:"not null;default:0"`
	Skipped      int `gorm:"not null;default:0"`
	Conflicts    int `gorm:"not null;default:0"`
}

// Consistent reports whether the fetched total equals the sum of outcomes
func (c Counts) Consistent() bool {
	return c.TotalFetched == c.Inserted+c.Updated+c.Unchanged+c.Skipped+c.Conflicts
}

// Add returns the counts with one action outcome applied
func (c Counts) Add(action ItemAction) Counts {
	c.TotalFetched++
	switch action {
	case ActionInsert:
		c.Inserted++
	case ActionUpdate:
		c.Updated++
	case ActionUnchanged:
		c.Unchanged++
	case ActionSkip:
		c.Skipped++
	case ActionConflict:
		c.Conflicts++
	}
	return c
}

// SyncJob is one execution of reconciliation against a source. Jobs are
// never deleted; they are the durable record of what synchronization did.
type SyncJob struct {
	shared.TenantAggregateRoot
	SourceID        uuid.UUID `gorm:"type:uuid;not null;index"`
	TriggeredBy     string    `gorm:"type:varchar(100);not null"`
	SyncType        SyncType  `gorm:"type:varchar(20);not null"`
	Status          JobStatus `gorm:"type:varchar(20);not null;default:'pending';index"`
	Counts          Counts    `gorm:"embedded"`
	CancelRequested bool      `gorm:"not null;default:false"`
	StartedAt       *time.Time
	FinishedAt      *time.Time
	ErrorMessage    string `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (SyncJob) TableName() string {
	return "sync_jobs"
}

// NewSyncJob creates a job in the pending state. Pending exists only to
// reserve the single-active-job-per-source slot before the engine starts.
func NewSyncJob(tenantID, sourceID uuid.UUID, triggeredBy string, syncType SyncType) (*SyncJob, error) {
	if sourceID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_SOURCE", "Source ID is required")
	}
	if triggeredBy == "" {
		return nil, shared.NewDomainError("INVALID_ACTOR", "Triggering actor is required")
	}
	if !syncType.IsValid() {
		return nil, shared.NewDomainError("INVALID_SYNC_TYPE", fmt.Sprintf("Invalid sync type: %s", syncType))
	}
	return &SyncJob{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		SourceID:            sourceID,
		TriggeredBy:         triggeredBy,
		SyncType:            syncType,
		Status:              JobStatusPending,
	}, nil
}

// Start transitions the job to running
func (j *SyncJob) Start() error {
	if j.Status != JobStatusPending {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot start job from state: %s", j.Status))
	}
	now := time.Now()
	j.Status = JobStatusRunning
	j.StartedAt = &now
	j.UpdatedAt = now
	j.IncrementVersion()
	return nil
}

// Complete transitions the job to its terminal completed state
func (j *SyncJob) Complete() error {
	if j.Status != JobStatusRunning {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot complete job from state: %s", j.Status))
	}
	if !j.Counts.Consistent() {
		return shared.NewDomainError("INCONSISTENT_COUNTS", "Job counts do not add up to total fetched")
	}
	now := time.Now()
	j.Status = JobStatusCompleted
	j.FinishedAt = &now
	j.UpdatedAt = now
	j.IncrementVersion()
	return nil
}

// Fail transitions the job to failed, preserving whatever counts were
// durably applied before the failure.
func (j *SyncJob) Fail(message string) error {
	if j.Status.IsTerminal() {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot fail job from terminal state: %s", j.Status))
	}
	now := time.Now()
	j.Status = JobStatusFailed
	j.ErrorMessage = message
	j.FinishedAt = &now
	j.UpdatedAt = now
	j.IncrementVersion()
	return nil
}

// RequestCancel marks the job for cancellation. The engine observes the
// flag between pages, never mid-page.
func (j *SyncJob) RequestCancel() error {
	if j.Status.IsTerminal() {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot cancel job in terminal state: %s", j.Status))
	}
	j.CancelRequested = true
	j.UpdatedAt = time.Now()
	j.IncrementVersion()
	return nil
}

// Cancel transitions the job to its terminal cancelled state
func (j *SyncJob) Cancel() error {
	if j.Status.IsTerminal() {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot cancel job from terminal state: %s", j.Status))
	}
	now := time.Now()
	j.Status = JobStatusCancelled
	j.FinishedAt = &now
	j.UpdatedAt = now
	j.IncrementVersion()
	return nil
}

// RecordOutcome accumulates one record decision into the running counts
func (j *SyncJob) RecordOutcome(action ItemAction) {
	j.Counts = j.Counts.Add(action)
	j.UpdatedAt = time.Now()
}

// IsActive returns true while the job occupies its source's active slot
func (j *SyncJob) IsActive() bool {
	return j.Status == JobStatusPending || j.Status == JobStatusRunning
}

// Duration returns how long the job ran, or has been running
func (j *SyncJob) Duration() time.Duration {
	if j.StartedAt == nil {
		return 0
	}
	end := time.Now()
	if j.FinishedAt != nil {
		end = *j.FinishedAt
	}
	return end.Sub(*j.StartedAt)
}
