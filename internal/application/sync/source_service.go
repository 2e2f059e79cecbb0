package syncapp

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/petshop/backend/internal/domain/shared"
	"github.com/petshop/backend/internal/domain/sync"
)

// CreateSourceInput contains input for registering a synchronization source
type CreateSourceInput struct {
	TenantID      uuid.UUID
	Name          string
	SourceType    sync.SourceType
	ConnectorType sync.ConnectorType
	Config        json.RawMessage
	SyncMode      sync.SyncMode
	Schedule      string
}

// UpdateSourceInput contains input for updating a source's settings
type UpdateSourceInput struct {
	TenantID uuid.UUID
	SourceID uuid.UUID
	Name     string
	Config   json.RawMessage
	SyncMode sync.SyncMode
	Schedule string
}

// SourceService manages synchronization source configuration
type SourceService struct {
	sourceRepo       sync.SourceRepository
	registry         ConnectorRegistry
	validateSchedule sync.ScheduleValidator
	logger           *zap.Logger
}

// NewSourceService creates a new source management service
func NewSourceService(
	sourceRepo sync.SourceRepository,
	registry ConnectorRegistry,
	validateSchedule sync.ScheduleValidator,
	logger *zap.Logger,
) *SourceService {
	return &SourceService{
		sourceRepo:       sourceRepo,
		registry:         registry,
		validateSchedule: validateSchedule,
		logger:           logger.Named("source"),
	}
}

// CreateSource registers a new source. The connection configuration is
// validated against the connector type before anything is persisted.
func (s *SourceService) CreateSource(ctx context.Context, input CreateSourceInput) (*sync.Source, error) {
	if err := s.registry.ValidateConfig(input.ConnectorType, input.Config); err != nil {
		s.logger.Warn("Rejected source configuration",
			zap.String("connector_type", string(input.ConnectorType)),
			zap.Error(err),
		)
		return nil, sync.ErrConfigurationInvalid
	}

	existing, err := s.sourceRepo.FindByName(ctx, input.TenantID, input.Name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, shared.ErrAlreadyExists
	}

	source, err := sync.NewSource(
		input.TenantID, input.Name, input.SourceType, input.ConnectorType,
		input.Config, input.SyncMode, input.Schedule, s.validateSchedule,
	)
	if err != nil {
		return nil, err
	}
	if err := s.sourceRepo.Save(ctx, source); err != nil {
		return nil, err
	}

	s.logger.Info("Source created",
		zap.String("source_id", source.ID.String()),
		zap.String("name", source.Name),
		zap.String("connector_type", string(source.ConnectorType)),
	)
	return source, nil
}

// UpdateSource updates a source's mutable settings with the same validation
// as creation.
func (s *SourceService) UpdateSource(ctx context.Context, input UpdateSourceInput) (*sync.Source, error) {
	source, err := s.findSource(ctx, input.TenantID, input.SourceID)
	if err != nil {
		return nil, err
	}

	if err := s.registry.ValidateConfig(source.ConnectorType, input.Config); err != nil {
		return nil, sync.ErrConfigurationInvalid
	}

	if input.Name != source.Name {
		existing, err := s.sourceRepo.FindByName(ctx, input.TenantID, input.Name)
		if err != nil {
			return nil, err
		}
		if existing != nil && existing.ID != source.ID {
			return nil, shared.ErrAlreadyExists
		}
	}

	if err := source.Update(input.Name, input.Config, input.SyncMode, input.Schedule, s.validateSchedule); err != nil {
		return nil, err
	}
	if err := s.sourceRepo.Save(ctx, source); err != nil {
		return nil, err
	}
	return source, nil
}

// ActivateSource re-enables triggers against a source
func (s *SourceService) ActivateSource(ctx context.Context, tenantID, sourceID uuid.UUID) error {
	source, err := s.findSource(ctx, tenantID, sourceID)
	if err != nil {
		return err
	}
	source.Activate()
	return s.sourceRepo.Save(ctx, source)
}

// DeactivateSource disables triggers against a source. Running jobs finish;
// new ones are rejected.
func (s *SourceService) DeactivateSource(ctx context.Context, tenantID, sourceID uuid.UUID) error {
	source, err := s.findSource(ctx, tenantID, sourceID)
	if err != nil {
		return err
	}
	source.Deactivate()
	return s.sourceRepo.Save(ctx, source)
}

// GetSource returns one source
func (s *SourceService) GetSource(ctx context.Context, tenantID, sourceID uuid.UUID) (*sync.Source, error) {
	return s.findSource(ctx, tenantID, sourceID)
}

// ListSources returns a page of the tenant's sources
func (s *SourceService) ListSources(ctx context.Context, tenantID uuid.UUID, page shared.Filter) (shared.Paginated[sync.Source], error) {
	sources, total, err := s.sourceRepo.FindAll(ctx, tenantID, page)
	if err != nil {
		return shared.Paginated[sync.Source]{}, err
	}
	return shared.NewPaginated(sources, total, page.Page, page.PageSize), nil
}

// TestSource performs one bounded, side-effect-free fetch against the
// source to verify its configuration and reachability.
func (s *SourceService) TestSource(ctx context.Context, tenantID, sourceID uuid.UUID) (*sync.TestResult, error) {
	source, err := s.findSource(ctx, tenantID, sourceID)
	if err != nil {
		return nil, err
	}
	connector, err := s.registry.Resolve(source.ConnectorType)
	if err != nil {
		return nil, sync.ErrConfigurationInvalid
	}
	result, err := connector.TestConnection(ctx, source)
	if err != nil {
		s.logger.Warn("Source connection test failed",
			zap.String("source_id", sourceID.String()),
			zap.Error(err),
		)
		return nil, err
	}
	return result, nil
}

func (s *SourceService) findSource(ctx context.Context, tenantID, sourceID uuid.UUID) (*sync.Source, error) {
	source, err := s.sourceRepo.FindByID(ctx, tenantID, sourceID)
	if err != nil {
		return nil, err
	}
	if source == nil {
		return nil, sync.ErrSourceNotFound
	}
	return source, nil
}
