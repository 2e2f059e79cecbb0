package sync

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/petshop/backend/internal/domain/shared"
)

// SourceType categorizes where external catalog data comes from
type SourceType string

const (
	SourceTypeSupplierFeed SourceType = "supplier_feed"
	SourceTypeMarketplace  SourceType = "marketplace"
	SourceTypeFileDrop     SourceType = "file_drop"
)

// IsValid checks if the source type is valid
func (t SourceType) IsValid() bool {
	switch t {
	case SourceTypeSupplierFeed, SourceTypeMarketplace, SourceTypeFileDrop:
		return true
	}
	return false
}

// ConnectorType selects the fetch capability bound to a source
type ConnectorType string

const (
	ConnectorTypeREST     ConnectorType = "rest"
	ConnectorTypeFile     ConnectorType = "file"
	ConnectorTypeDatabase ConnectorType = "database"
)

// IsValid checks if the connector type is valid
func (t ConnectorType) IsValid() bool {
	switch t {
	case ConnectorTypeREST, ConnectorTypeFile, ConnectorTypeDatabase:
		return true
	}
	return false
}

// SyncMode controls how a source's jobs are triggered
type SyncMode string

const (
	SyncModeManual    SyncMode = "manual"
	SyncModeScheduled SyncMode = "scheduled"
	SyncModeHybrid    SyncMode = "hybrid"
)

// IsValid checks if the sync mode is valid
func (m SyncMode) IsValid() bool {
	switch m {
	case SyncModeManual, SyncModeScheduled, SyncModeHybrid:
		return true
	}
	return false
}

// RequiresSchedule returns true if the mode needs a schedule expression
func (m SyncMode) RequiresSchedule() bool {
	return m == SyncModeScheduled || m == SyncModeHybrid
}

// ScheduleValidator validates a cron schedule expression. The concrete parser
// lives in the application layer; the domain only needs the contract.
type ScheduleValidator func(expr string) error

// Source is a configured external data origin for catalog synchronization.
// The connection configuration is an opaque JSON payload whose shape is
// connector-type-specific; it is validated against the connector type at
// creation time and never interpreted here.
type Source struct {
	shared.TenantAggregateRoot
	Name          string          `gorm:"type:varchar(100);not null"`
	SourceType    SourceType      `gorm:"type:varchar(30);not null"`
	ConnectorType ConnectorType   `gorm:"type:varchar(20);not null"`
	Config        json.RawMessage `gorm:"type:jsonb;not null"`
	Active        bool            `gorm:"not null;default:true"`
	SyncMode      SyncMode        `gorm:"type:varchar(20);not null;default:'manual'"`
	Schedule      string          `gorm:"type:varchar(100)"`
	LastSyncAt    *time.Time
}

// TableName returns the table name for GORM
func (Source) TableName() string {
	return "sync_sources"
}

// NewSource creates a new synchronization source
func NewSource(
	tenantID uuid.UUID,
	name string,
	sourceType SourceType,
	connectorType ConnectorType,
	config json.RawMessage,
	mode SyncMode,
	schedule string,
	validateSchedule ScheduleValidator,
) (*Source, error) {
	if name == "" {
		return nil, shared.NewDomainError("INVALID_NAME", "Source name cannot be empty")
	}
	if len(name) > 100 {
		return nil, shared.NewDomainError("INVALID_NAME", "Source name cannot exceed 100 characters")
	}
	if !sourceType.IsValid() {
		return nil, shared.NewDomainError("INVALID_SOURCE_TYPE", fmt.Sprintf("Invalid source type: %s", sourceType))
	}
	if !connectorType.IsValid() {
		return nil, shared.NewDomainError("INVALID_CONNECTOR_TYPE", fmt.Sprintf("Invalid connector type: %s", connectorType))
	}
	if !mode.IsValid() {
		return nil, shared.NewDomainError("INVALID_SYNC_MODE", fmt.Sprintf("Invalid sync mode: %s", mode))
	}
	if len(config) == 0 || !json.Valid(config) {
		return nil, shared.NewDomainError("INVALID_CONFIG", "Connection configuration must be a valid JSON payload")
	}
	if err := validateScheduleForMode(mode, schedule, validateSchedule); err != nil {
		return nil, err
	}

	return &Source{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Name:                name,
		SourceType:          sourceType,
		ConnectorType:       connectorType,
		Config:              config,
		Active:              true,
		SyncMode:            mode,
		Schedule:            schedule,
	}, nil
}

// Update updates the source's mutable settings
func (s *Source) Update(
	name string,
	config json.RawMessage,
	mode SyncMode,
	schedule string,
	validateSchedule ScheduleValidator,
) error {
	if name == "" {
		return shared.NewDomainError("INVALID_NAME", "Source name cannot be empty")
	}
	if !mode.IsValid() {
		return shared.NewDomainError("INVALID_SYNC_MODE", fmt.Sprintf("Invalid sync mode: %s", mode))
	}
	if len(config) == 0 || !json.Valid(config) {
		return shared.NewDomainError("INVALID_CONFIG", "Connection configuration must be a valid JSON payload")
	}
	if err := validateScheduleForMode(mode, schedule, validateSchedule); err != nil {
		return err
	}

	s.Name = name
	s.Config = config
	s.SyncMode = mode
	s.Schedule = schedule
	s.UpdatedAt = time.Now()
	s.IncrementVersion()
	return nil
}

// Activate marks the source as active
func (s *Source) Activate() {
	s.Active = true
	s.UpdatedAt = time.Now()
	s.IncrementVersion()
}

// Deactivate marks the source as inactive; triggers against it are rejected
func (s *Source) Deactivate() {
	s.Active = false
	s.UpdatedAt = time.Now()
	s.IncrementVersion()
}

// RecordSuccessfulSync advances the last-successful-sync watermark.
// The watermark is the job's start time, not its finish time, so records
// created mid-run are still picked up by the next incremental run.
func (s *Source) RecordSuccessfulSync(jobStartedAt time.Time) {
	t := jobStartedAt
	s.LastSyncAt = &t
	s.UpdatedAt = time.Now()
	s.IncrementVersion()
}

// IsSchedulable returns true if the source participates in scheduled triggers
func (s *Source) IsSchedulable() bool {
	return s.Active && s.SyncMode.RequiresSchedule() && s.Schedule != ""
}

func validateScheduleForMode(mode SyncMode, schedule string, validate ScheduleValidator) error {
	if !mode.RequiresSchedule() {
		return nil
	}
	if schedule == "" {
		return shared.NewDomainError("MISSING_SCHEDULE", fmt.Sprintf("Sync mode %q requires a schedule expression", mode))
	}
	if validate != nil {
		if err := validate(schedule); err != nil {
			return shared.NewDomainError("INVALID_SCHEDULE", fmt.Sprintf("Invalid schedule expression: %v", err))
		}
	}
	return nil
}
