package sync

import (
	"github.com/google/uuid"
	"github.com/petshop/backend/internal/domain/shared"
)

// ItemAction is the decision taken for one fetched record
type ItemAction string

const (
	ActionInsert    ItemAction = "insert"
	ActionUpdate    ItemAction = "update"
	ActionUnchanged ItemAction = "unchanged"
	ActionSkip      ItemAction = "skip"
	ActionConflict  ItemAction = "conflict"
)

// IsValid checks if the action is valid
func (a ItemAction) IsValid() bool {
	switch a {
	case ActionInsert, ActionUpdate, ActionUnchanged, ActionSkip, ActionConflict:
		return true
	}
	return false
}

// Mutates returns true for actions that change the catalog
func (a ItemAction) Mutates() bool {
	return a == ActionInsert || a == ActionUpdate
}

// SyncJobItem is the per-record decision outcome within a job: exactly one
// row per fetched external record, immutable once written.
type SyncJobItem struct {
	shared.BaseEntity
	TenantID       uuid.UUID  `gorm:"type:uuid;not null;index"`
	JobID          uuid.UUID  `gorm:"type:uuid;not null;index"`
	ExternalID     string     `gorm:"type:varchar(100);index"`
	InternalCode   string     `gorm:"type:varchar(50)"`
	Barcode        string     `gorm:"type:varchar(50)"`
	Action         ItemAction `gorm:"type:varchar(20);not null;index"`
	Reason         string     `gorm:"type:varchar(200)"`
	BeforeSnapshot string     `gorm:"type:jsonb"`
	AfterSnapshot  string     `gorm:"type:jsonb"`
}

// TableName returns the table name for GORM
func (SyncJobItem) TableName() string {
	return "sync_job_items"
}

// NewJobItem records the decision for one fetched record
func NewJobItem(tenantID, jobID uuid.UUID, decision *Decision) (*SyncJobItem, error) {
	if jobID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_JOB", "Job ID is required")
	}
	if decision == nil || !decision.Action.IsValid() {
		return nil, shared.NewDomainError("INVALID_ACTION", "Invalid decision for job item")
	}
	return &SyncJobItem{
		BaseEntity:     shared.NewBaseEntity(),
		TenantID:       tenantID,
		JobID:          jobID,
		ExternalID:     decision.Record.ExternalID,
		InternalCode:   decision.InternalCode(),
		Barcode:        decision.Record.Barcode,
		Action:         decision.Action,
		Reason:         decision.Reason,
		BeforeSnapshot: decision.BeforeSnapshot,
		AfterSnapshot:  decision.AfterSnapshot,
	}, nil
}
