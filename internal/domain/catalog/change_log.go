package catalog

import (
	"time"

	"github.com/google/uuid"
	"github.com/petshop/backend/internal/domain/shared"
)

// Tracked field names used in change log entries. Synchronization compares
// exactly this field set; everything else on a product is local-only.
const (
	FieldName   = "name"
	FieldPrice  = "price_cents"
	FieldCost   = "cost_cents"
	FieldStock  = "stock"
	FieldActive = "active"
)

// ProductChangeLog is a field-level audit entry for a catalog mutation.
// One row per changed field per applied change; rows are append-only.
type ProductChangeLog struct {
	shared.BaseEntity
	TenantID     uuid.UUID    `gorm:"type:uuid;not null;index"`
	ProductID    uuid.UUID    `gorm:"type:uuid;not null;index"`
	ChangeSource ChangeSource `gorm:"type:varchar(20);not null"`
	SourceID     *uuid.UUID   `gorm:"type:uuid;index"`
	SyncJobID    *uuid.UUID   `gorm:"type:uuid;index"`
	FieldName    string       `gorm:"type:varchar(50);not null"`
	OldValue     string       `gorm:"type:text"`
	NewValue     string       `gorm:"type:text"`
	ChangedBy    *uuid.UUID   `gorm:"type:uuid"`
	ChangedAt    time.Time    `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (ProductChangeLog) TableName() string {
	return "product_change_logs"
}

// NewChangeLogEntry creates a field-level change log entry
func NewChangeLogEntry(
	tenantID, productID uuid.UUID,
	source ChangeSource,
	fieldName, oldValue, newValue string,
) (*ProductChangeLog, error) {
	if !source.IsValid() {
		return nil, shared.NewDomainError("INVALID_CHANGE_SOURCE", "Unknown change source")
	}
	if fieldName == "" {
		return nil, shared.NewDomainError("INVALID_FIELD_NAME", "Field name cannot be empty")
	}
	return &ProductChangeLog{
		BaseEntity:   shared.NewBaseEntity(),
		TenantID:     tenantID,
		ProductID:    productID,
		ChangeSource: source,
		FieldName:    fieldName,
		OldValue:     oldValue,
		NewValue:     newValue,
		ChangedAt:    time.Now(),
	}, nil
}

// AttachSyncJob tags the entry with the synchronization job that produced it
func (l *ProductChangeLog) AttachSyncJob(sourceID, jobID uuid.UUID) {
	l.SourceID = &sourceID
	l.SyncJobID = &jobID
}

// AttachUser tags the entry with the acting user for manual/admin edits
func (l *ProductChangeLog) AttachUser(userID uuid.UUID) {
	l.ChangedBy = &userID
}
