package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	catalogapp "github.com/petshop/backend/internal/application/catalog"
	syncapp "github.com/petshop/backend/internal/application/sync"
	"github.com/petshop/backend/internal/domain/catalog"
	"github.com/petshop/backend/internal/domain/shared"
	syncdomain "github.com/petshop/backend/internal/domain/sync"
	"github.com/petshop/backend/internal/interfaces/http/dto"
)

// MockSyncJobRepository implements sync.SyncJobRepository for testing
type MockSyncJobRepository struct {
	mock.Mock
}

func (m *MockSyncJobRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*syncdomain.SyncJob, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*syncdomain.SyncJob), args.Error(1)
}

func (m *MockSyncJobRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter syncdomain.JobFilter, page shared.Filter) ([]syncdomain.SyncJob, int64, error) {
	args := m.Called(ctx, tenantID, filter, page)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]syncdomain.SyncJob), args.Get(1).(int64), args.Error(2)
}

func (m *MockSyncJobRepository) FindActiveBySource(ctx context.Context, tenantID, sourceID uuid.UUID) (*syncdomain.SyncJob, error) {
	args := m.Called(ctx, tenantID, sourceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*syncdomain.SyncJob), args.Error(1)
}

func (m *MockSyncJobRepository) Save(ctx context.Context, job *syncdomain.SyncJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *MockSyncJobRepository) SaveProgress(ctx context.Context, job *syncdomain.SyncJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *MockSyncJobRepository) IsCancelRequested(ctx context.Context, jobID uuid.UUID) (bool, error) {
	args := m.Called(ctx, jobID)
	return args.Bool(0), args.Error(1)
}

// MockSyncJobItemRepository implements sync.SyncJobItemRepository for testing
type MockSyncJobItemRepository struct {
	mock.Mock
}

func (m *MockSyncJobItemRepository) FindByJob(ctx context.Context, tenantID, jobID uuid.UUID, page shared.Filter) ([]syncdomain.SyncJobItem, int64, error) {
	args := m.Called(ctx, tenantID, jobID, page)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]syncdomain.SyncJobItem), args.Get(1).(int64), args.Error(2)
}

func (m *MockSyncJobItemRepository) Save(ctx context.Context, item *syncdomain.SyncJobItem) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

// stubSourceLock reports a fixed acquisition outcome
type stubSourceLock struct {
	acquired bool
}

func (l *stubSourceLock) TryAcquire(context.Context, uuid.UUID, uuid.UUID, time.Duration) (bool, error) {
	return l.acquired, nil
}

func (l *stubSourceLock) Release(context.Context, uuid.UUID, uuid.UUID) error { return nil }

type jobTestEnv struct {
	sourceRepo    *MockSourceRepository
	jobRepo       *MockSyncJobRepository
	itemRepo      *MockSyncJobItemRepository
	changeLogRepo *MockChangeLogRepository
	lock          *stubSourceLock
	router        *gin.Engine
}

func newJobTestEnv(t *testing.T) *jobTestEnv {
	t.Helper()
	env := &jobTestEnv{
		sourceRepo: new(MockSourceRepository),
		jobRepo:    new(MockSyncJobRepository),
		itemRepo:   new(MockSyncJobItemRepository),
		lock:       &stubSourceLock{acquired: true},
	}

	registry := &stubRegistry{connector: &stubConnector{connectorType: syncdomain.ConnectorTypeREST}}
	syncService := syncapp.NewSyncService(
		env.sourceRepo, env.jobRepo, env.itemRepo,
		env.lock, registry, nil, zap.NewNop(), time.Minute,
	)

	changeLogRepo := new(MockChangeLogRepository)
	auditService := catalogapp.NewAuditService(
		new(MockProductRepository), changeLogRepo, new(MockPriceHistoryRepository), zap.NewNop(),
	)
	env.changeLogRepo = changeLogRepo

	router := gin.New()
	NewSyncJobHandler(syncService, auditService).RegisterRoutes(router.Group("/api/v1"))
	env.router = router
	return env
}

func newRunningJob(t *testing.T, tenantID, sourceID uuid.UUID) *syncdomain.SyncJob {
	t.Helper()
	job, err := syncdomain.NewSyncJob(tenantID, sourceID, "api", syncdomain.SyncTypeFull)
	require.NoError(t, err)
	require.NoError(t, job.Start())
	return job
}

func TestSyncJobHandler_Trigger_SourceNotFound(t *testing.T) {
	tenantID := uuid.New()
	env := newJobTestEnv(t)
	env.sourceRepo.On("FindByID", mock.Anything, tenantID, mock.Anything).Return(nil, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/v1/sync/sources/"+uuid.New().String()+"/jobs",
		bytes.NewBufferString(`{"sync_type":"full"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-ID", tenantID.String())
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSyncJobHandler_Trigger_SourceInactive(t *testing.T) {
	tenantID := uuid.New()
	source := newTestSource(t, tenantID, "feed")
	source.Deactivate()

	env := newJobTestEnv(t)
	env.sourceRepo.On("FindByID", mock.Anything, tenantID, source.ID).Return(source, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/v1/sync/sources/"+source.ID.String()+"/jobs",
		bytes.NewBufferString(`{"sync_type":"incremental"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-ID", tenantID.String())
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, dto.ErrCodeSyncSourceInactive, resp.Error.Code)
}

func TestSyncJobHandler_Trigger_AlreadyRunning(t *testing.T) {
	tenantID := uuid.New()
	source := newTestSource(t, tenantID, "feed")

	env := newJobTestEnv(t)
	env.lock.acquired = false
	env.sourceRepo.On("FindByID", mock.Anything, tenantID, source.ID).Return(source, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/v1/sync/sources/"+source.ID.String()+"/jobs",
		bytes.NewBufferString(`{"sync_type":"full"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-ID", tenantID.String())
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, dto.ErrCodeSyncAlreadyRunning, resp.Error.Code)
}

func TestSyncJobHandler_Trigger_InvalidSyncType(t *testing.T) {
	env := newJobTestEnv(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/v1/sync/sources/"+uuid.New().String()+"/jobs",
		bytes.NewBufferString(`{"sync_type":"partial"}`))
	req.Header.Set("Content-Type", "application/json")
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSyncJobHandler_GetByID(t *testing.T) {
	tenantID := uuid.New()
	source := newTestSource(t, tenantID, "Supplier Feed")
	job := newRunningJob(t, tenantID, source.ID)

	env := newJobTestEnv(t)
	env.jobRepo.On("FindByID", mock.Anything, tenantID, job.ID).Return(job, nil)
	env.sourceRepo.On("FindByID", mock.Anything, tenantID, source.ID).Return(source, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/v1/sync/jobs/"+job.ID.String(), nil)
	req.Header.Set("X-Tenant-ID", tenantID.String())
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, job.ID.String(), data["id"])
	assert.Equal(t, "running", data["status"])
	assert.Equal(t, "full", data["sync_type"])
	assert.Equal(t, source.ID.String(), data["source_id"])
	assert.Equal(t, "Supplier Feed", data["source_name"])
}

func TestSyncJobHandler_GetByID_NotFound(t *testing.T) {
	tenantID := uuid.New()
	env := newJobTestEnv(t)
	env.jobRepo.On("FindByID", mock.Anything, tenantID, mock.Anything).Return(nil, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/v1/sync/jobs/"+uuid.New().String(), nil)
	req.Header.Set("X-Tenant-ID", tenantID.String())
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSyncJobHandler_List_FiltersBySourceAndStatus(t *testing.T) {
	tenantID := uuid.New()
	source := newTestSource(t, tenantID, "Marketplace Feed")
	sourceID := source.ID
	jobs := []syncdomain.SyncJob{*newRunningJob(t, tenantID, sourceID)}

	env := newJobTestEnv(t)
	env.sourceRepo.On("FindByID", mock.Anything, tenantID, sourceID).Return(source, nil)
	env.jobRepo.On("FindAll", mock.Anything, tenantID,
		mock.MatchedBy(func(f syncdomain.JobFilter) bool {
			return f.SourceID != nil && *f.SourceID == sourceID &&
				f.Status != nil && *f.Status == syncdomain.JobStatusRunning
		}),
		mock.AnythingOfType("shared.Filter"),
	).Return(jobs, int64(1), nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET",
		"/api/v1/sync/jobs?source_id="+sourceID.String()+"&status=running", nil)
	req.Header.Set("X-Tenant-ID", tenantID.String())
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Meta)
	assert.Equal(t, int64(1), resp.Meta.Total)
	listed := resp.Data.([]interface{})
	require.Len(t, listed, 1)
	assert.Equal(t, "Marketplace Feed", listed[0].(map[string]interface{})["source_name"])
	env.jobRepo.AssertExpectations(t)
}

func TestSyncJobHandler_Cancel(t *testing.T) {
	tenantID := uuid.New()
	job := newRunningJob(t, tenantID, uuid.New())

	env := newJobTestEnv(t)
	env.jobRepo.On("FindByID", mock.Anything, tenantID, job.ID).Return(job, nil)
	env.jobRepo.On("Save", mock.Anything, job).Return(nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/v1/sync/jobs/"+job.ID.String()+"/cancel", nil)
	req.Header.Set("X-Tenant-ID", tenantID.String())
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.True(t, job.CancelRequested)
}

func TestSyncJobHandler_Cancel_Finished(t *testing.T) {
	tenantID := uuid.New()
	job := newRunningJob(t, tenantID, uuid.New())
	require.NoError(t, job.Complete())

	env := newJobTestEnv(t)
	env.jobRepo.On("FindByID", mock.Anything, tenantID, job.ID).Return(job, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/v1/sync/jobs/"+job.ID.String()+"/cancel", nil)
	req.Header.Set("X-Tenant-ID", tenantID.String())
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestSyncJobHandler_ListItems(t *testing.T) {
	tenantID := uuid.New()
	job := newRunningJob(t, tenantID, uuid.New())

	item, err := syncdomain.NewJobItem(tenantID, job.ID, &syncdomain.Decision{
		Action: syncdomain.ActionSkip,
		Reason: "invalid record",
		Record: &syncdomain.ExternalRecord{ExternalID: "ext-1", Name: "Dog Food"},
	})
	require.NoError(t, err)

	env := newJobTestEnv(t)
	env.jobRepo.On("FindByID", mock.Anything, tenantID, job.ID).Return(job, nil)
	env.itemRepo.On("FindByJob", mock.Anything, tenantID, job.ID, mock.AnythingOfType("shared.Filter")).
		Return([]syncdomain.SyncJobItem{*item}, int64(1), nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/v1/sync/jobs/"+job.ID.String()+"/items", nil)
	req.Header.Set("X-Tenant-ID", tenantID.String())
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	items := resp.Data.([]interface{})
	require.Len(t, items, 1)
	first := items[0].(map[string]interface{})
	assert.Equal(t, "skip", first["action"])
	assert.Equal(t, "invalid record", first["reason"])
	assert.Equal(t, "ext-1", first["external_id"])
}

func TestSyncJobHandler_ListChanges(t *testing.T) {
	tenantID := uuid.New()
	jobID := uuid.New()

	entry, err := catalog.NewChangeLogEntry(tenantID, uuid.New(), catalog.ChangeSourceSync, "price_cents", "1999", "2499")
	require.NoError(t, err)
	entry.AttachSyncJob(uuid.New(), jobID)

	env := newJobTestEnv(t)
	env.changeLogRepo.On("FindBySyncJob", mock.Anything, tenantID, jobID).
		Return([]catalog.ProductChangeLog{*entry}, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/v1/sync/jobs/"+jobID.String()+"/changes", nil)
	req.Header.Set("X-Tenant-ID", tenantID.String())
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	entries := resp.Data.([]interface{})
	require.Len(t, entries, 1)
	first := entries[0].(map[string]interface{})
	assert.Equal(t, "price_cents", first["field_name"])
	assert.Equal(t, "2499", first["new_value"])
}
