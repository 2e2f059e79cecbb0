package syncapp

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/petshop/backend/internal/domain/shared"
	"github.com/petshop/backend/internal/domain/sync"
)

func newSourceService(w *world, registry ConnectorRegistry) *SourceService {
	if registry == nil {
		registry = &fakeRegistry{connector: &fakeConnector{}}
	}
	acceptAll := func(string) error { return nil }
	return NewSourceService(w.sources, registry, acceptAll, zap.NewNop())
}

func TestSourceService_CreateSource(t *testing.T) {
	w := newWorld()
	service := newSourceService(w, nil)
	tenantID := uuid.New()

	source, err := service.CreateSource(context.Background(), CreateSourceInput{
		TenantID:      tenantID,
		Name:          "Acme Feed",
		SourceType:    sync.SourceTypeSupplierFeed,
		ConnectorType: sync.ConnectorTypeREST,
		Config:        []byte(`{"base_url":"https://acme.example.com"}`),
		SyncMode:      sync.SyncModeManual,
	})
	require.NoError(t, err)
	assert.True(t, source.Active)

	// Duplicate name within the tenant is rejected
	_, err = service.CreateSource(context.Background(), CreateSourceInput{
		TenantID:      tenantID,
		Name:          "Acme Feed",
		SourceType:    sync.SourceTypeSupplierFeed,
		ConnectorType: sync.ConnectorTypeREST,
		Config:        []byte(`{"base_url":"https://other.example.com"}`),
		SyncMode:      sync.SyncModeManual,
	})
	assert.ErrorIs(t, err, shared.ErrAlreadyExists)
}

func TestSourceService_CreateSource_RejectsBadConfig(t *testing.T) {
	w := newWorld()
	registry := &fakeRegistry{connector: &fakeConnector{}, configErr: errors.New("missing base_url")}
	service := newSourceService(w, registry)

	_, err := service.CreateSource(context.Background(), CreateSourceInput{
		TenantID:      uuid.New(),
		Name:          "Broken",
		SourceType:    sync.SourceTypeSupplierFeed,
		ConnectorType: sync.ConnectorTypeREST,
		Config:        []byte(`{}`),
		SyncMode:      sync.SyncModeManual,
	})
	assert.ErrorIs(t, err, sync.ErrConfigurationInvalid)
}

func TestSourceService_UpdateSource(t *testing.T) {
	w := newWorld()
	service := newSourceService(w, nil)
	tenantID := uuid.New()
	source := seedSource(t, w, tenantID, nil)

	updated, err := service.UpdateSource(context.Background(), UpdateSourceInput{
		TenantID: tenantID,
		SourceID: source.ID,
		Name:     "Renamed Feed",
		Config:   []byte(`{"base_url":"https://new.example.com"}`),
		SyncMode: sync.SyncModeScheduled,
		Schedule: "0 3 * * *",
	})
	require.NoError(t, err)
	assert.Equal(t, "Renamed Feed", updated.Name)
	assert.Equal(t, sync.SyncModeScheduled, updated.SyncMode)

	_, err = service.UpdateSource(context.Background(), UpdateSourceInput{
		TenantID: tenantID,
		SourceID: uuid.New(),
		Name:     "X",
		Config:   []byte(`{}`),
		SyncMode: sync.SyncModeManual,
	})
	assert.ErrorIs(t, err, sync.ErrSourceNotFound)
}

func TestSourceService_ActivateDeactivate(t *testing.T) {
	w := newWorld()
	service := newSourceService(w, nil)
	tenantID := uuid.New()
	source := seedSource(t, w, tenantID, nil)

	require.NoError(t, service.DeactivateSource(context.Background(), tenantID, source.ID))
	saved, err := service.GetSource(context.Background(), tenantID, source.ID)
	require.NoError(t, err)
	assert.False(t, saved.Active)

	require.NoError(t, service.ActivateSource(context.Background(), tenantID, source.ID))
	saved, err = service.GetSource(context.Background(), tenantID, source.ID)
	require.NoError(t, err)
	assert.True(t, saved.Active)
}

func TestSourceService_TestSource(t *testing.T) {
	w := newWorld()
	service := newSourceService(w, nil)
	tenantID := uuid.New()
	source := seedSource(t, w, tenantID, nil)

	result, err := service.TestSource(context.Background(), tenantID, source.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.SampleCount)

	_, err = service.TestSource(context.Background(), tenantID, uuid.New())
	assert.ErrorIs(t, err, sync.ErrSourceNotFound)
}

func TestSourceService_ListSources(t *testing.T) {
	w := newWorld()
	service := newSourceService(w, nil)
	tenantID := uuid.New()
	seedSource(t, w, tenantID, nil)

	// A second tenant's sources are invisible
	otherTenant := uuid.New()
	otherSource, err := sync.NewSource(
		otherTenant, "Other", sync.SourceTypeMarketplace, sync.ConnectorTypeREST,
		[]byte(`{}`), sync.SyncModeManual, "", nil,
	)
	require.NoError(t, err)
	require.NoError(t, w.sources.Save(context.Background(), otherSource))

	listed, err := service.ListSources(context.Background(), tenantID, shared.DefaultFilter())
	require.NoError(t, err)
	assert.Equal(t, int64(1), listed.Total)
}
