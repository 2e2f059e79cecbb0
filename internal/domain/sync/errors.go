package sync

import "github.com/petshop/backend/internal/domain/shared"

// Synchronization domain errors
var (
	// ErrAlreadyRunning is returned when a trigger races an active job on the same source
	ErrAlreadyRunning = shared.NewDomainError("SYNC_ALREADY_RUNNING", "A sync job is already running for this source")
	// ErrSourceInactive is returned when triggering against a deactivated source
	ErrSourceInactive = shared.NewDomainError("SYNC_SOURCE_INACTIVE", "Source is inactive")
	// ErrSourceNotFound is returned when the referenced source does not exist
	ErrSourceNotFound = shared.NewDomainError("SYNC_SOURCE_NOT_FOUND", "Source not found")
	// ErrJobNotFound is returned when the referenced job does not exist
	ErrJobNotFound = shared.NewDomainError("SYNC_JOB_NOT_FOUND", "Sync job not found")
	// ErrJobNotCancellable is returned when cancelling a job already in a terminal state
	ErrJobNotCancellable = shared.NewDomainError("SYNC_JOB_NOT_CANCELLABLE", "Sync job is already finished")
	// ErrConfigurationInvalid is returned when a source's connection configuration
	// cannot be parsed by its connector type
	ErrConfigurationInvalid = shared.NewDomainError("SYNC_CONFIG_INVALID", "Connection configuration is invalid for the connector type")
)
