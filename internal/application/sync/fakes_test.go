package syncapp

import (
	"context"
	"strings"
	gosync "sync"
	"time"

	"github.com/google/uuid"

	"github.com/petshop/backend/internal/domain/catalog"
	"github.com/petshop/backend/internal/domain/shared"
	"github.com/petshop/backend/internal/domain/sync"
)

// In-memory repository fakes. The engine's behavior spans many repositories
// per record, so full-flow tests run against these instead of call-by-call
// mocks.

type memProductRepo struct {
	mu       gosync.Mutex
	products map[uuid.UUID]*catalog.Product
}

func newMemProductRepo() *memProductRepo {
	return &memProductRepo{products: make(map[uuid.UUID]*catalog.Product)}
}

func (r *memProductRepo) FindByID(_ context.Context, tenantID, id uuid.UUID) (*catalog.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok || p.TenantID != tenantID {
		return nil, nil
	}
	copied := *p
	return &copied, nil
}

func (r *memProductRepo) FindByCode(_ context.Context, tenantID uuid.UUID, code string) (*catalog.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.products {
		if p.TenantID == tenantID && strings.EqualFold(p.Code, code) {
			copied := *p
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *memProductRepo) FindByBarcode(_ context.Context, tenantID uuid.UUID, barcode string) (*catalog.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.products {
		if p.TenantID == tenantID && p.Barcode == barcode {
			copied := *p
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *memProductRepo) FindAll(_ context.Context, tenantID uuid.UUID, _ shared.Filter) ([]catalog.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []catalog.Product
	for _, p := range r.products {
		if p.TenantID == tenantID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *memProductRepo) Save(_ context.Context, product *catalog.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *product
	r.products[product.ID] = &copied
	return nil
}

func (r *memProductRepo) Count(_ context.Context, tenantID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, p := range r.products {
		if p.TenantID == tenantID {
			n++
		}
	}
	return n, nil
}

type memRefRepo struct {
	mu   gosync.Mutex
	refs []catalog.ProductExternalRef
}

func (r *memRefRepo) FindBySource(_ context.Context, tenantID, sourceID uuid.UUID) ([]catalog.ProductExternalRef, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []catalog.ProductExternalRef
	for _, ref := range r.refs {
		if ref.TenantID == tenantID && ref.SourceID == sourceID {
			out = append(out, ref)
		}
	}
	return out, nil
}

func (r *memRefRepo) FindByExternalID(_ context.Context, tenantID, sourceID uuid.UUID, externalID string) (*catalog.ProductExternalRef, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ref := range r.refs {
		if ref.TenantID == tenantID && ref.SourceID == sourceID && ref.ExternalID == externalID {
			copied := ref
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *memRefRepo) Save(_ context.Context, ref *catalog.ProductExternalRef) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refs = append(r.refs, *ref)
	return nil
}

type memChangeLogRepo struct {
	mu      gosync.Mutex
	entries []catalog.ProductChangeLog
}

func (r *memChangeLogRepo) Append(_ context.Context, entries []*catalog.ProductChangeLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range entries {
		r.entries = append(r.entries, *e)
	}
	return nil
}

func (r *memChangeLogRepo) FindByProduct(_ context.Context, tenantID, productID uuid.UUID, _ shared.Filter) ([]catalog.ProductChangeLog, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []catalog.ProductChangeLog
	for _, e := range r.entries {
		if e.TenantID == tenantID && e.ProductID == productID {
			out = append(out, e)
		}
	}
	return out, int64(len(out)), nil
}

func (r *memChangeLogRepo) FindBySyncJob(_ context.Context, tenantID, jobID uuid.UUID) ([]catalog.ProductChangeLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []catalog.ProductChangeLog
	for _, e := range r.entries {
		if e.TenantID == tenantID && e.SyncJobID != nil && *e.SyncJobID == jobID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *memChangeLogRepo) CountSince(_ context.Context, tenantID uuid.UUID, since time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, e := range r.entries {
		if e.TenantID == tenantID && e.ChangedAt.After(since) {
			n++
		}
	}
	return n, nil
}

type memPriceHistoryRepo struct {
	mu      gosync.Mutex
	entries []catalog.ProductPriceHistory
}

func (r *memPriceHistoryRepo) Append(_ context.Context, entry *catalog.ProductPriceHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *memPriceHistoryRepo) FindByProduct(_ context.Context, tenantID, productID uuid.UUID, _ shared.Filter) ([]catalog.ProductPriceHistory, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []catalog.ProductPriceHistory
	for _, e := range r.entries {
		if e.TenantID == tenantID && e.ProductID == productID {
			out = append(out, e)
		}
	}
	return out, int64(len(out)), nil
}

type memSourceRepo struct {
	mu      gosync.Mutex
	sources map[uuid.UUID]*sync.Source
}

func newMemSourceRepo() *memSourceRepo {
	return &memSourceRepo{sources: make(map[uuid.UUID]*sync.Source)}
}

func (r *memSourceRepo) FindByID(_ context.Context, tenantID, id uuid.UUID) (*sync.Source, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sources[id]
	if !ok || s.TenantID != tenantID {
		return nil, nil
	}
	copied := *s
	return &copied, nil
}

func (r *memSourceRepo) FindAll(_ context.Context, tenantID uuid.UUID, _ shared.Filter) ([]sync.Source, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []sync.Source
	for _, s := range r.sources {
		if s.TenantID == tenantID {
			out = append(out, *s)
		}
	}
	return out, int64(len(out)), nil
}

func (r *memSourceRepo) FindSchedulable(_ context.Context) ([]sync.Source, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []sync.Source
	for _, s := range r.sources {
		if s.IsSchedulable() {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (r *memSourceRepo) FindByName(_ context.Context, tenantID uuid.UUID, name string) (*sync.Source, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sources {
		if s.TenantID == tenantID && s.Name == name {
			copied := *s
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *memSourceRepo) Save(_ context.Context, source *sync.Source) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *source
	r.sources[source.ID] = &copied
	return nil
}

type memJobRepo struct {
	mu   gosync.Mutex
	jobs map[uuid.UUID]*sync.SyncJob
}

func newMemJobRepo() *memJobRepo {
	return &memJobRepo{jobs: make(map[uuid.UUID]*sync.SyncJob)}
}

func (r *memJobRepo) FindByID(_ context.Context, tenantID, id uuid.UUID) (*sync.SyncJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok || j.TenantID != tenantID {
		return nil, nil
	}
	copied := *j
	return &copied, nil
}

func (r *memJobRepo) FindAll(_ context.Context, tenantID uuid.UUID, filter sync.JobFilter, _ shared.Filter) ([]sync.SyncJob, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []sync.SyncJob
	for _, j := range r.jobs {
		if j.TenantID != tenantID {
			continue
		}
		if filter.SourceID != nil && j.SourceID != *filter.SourceID {
			continue
		}
		if filter.Status != nil && j.Status != *filter.Status {
			continue
		}
		out = append(out, *j)
	}
	return out, int64(len(out)), nil
}

func (r *memJobRepo) FindActiveBySource(_ context.Context, tenantID, sourceID uuid.UUID) (*sync.SyncJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, j := range r.jobs {
		if j.TenantID == tenantID && j.SourceID == sourceID && j.IsActive() {
			copied := *j
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *memJobRepo) Save(_ context.Context, job *sync.SyncJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *job
	r.jobs[job.ID] = &copied
	return nil
}

func (r *memJobRepo) SaveProgress(_ context.Context, job *sync.SyncJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	// Only the counters are written; the stored cancellation flag survives
	if stored, ok := r.jobs[job.ID]; ok {
		stored.Counts = job.Counts
		stored.UpdatedAt = job.UpdatedAt
	}
	return nil
}

func (r *memJobRepo) IsCancelRequested(_ context.Context, jobID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[jobID]
	if !ok {
		return false, nil
	}
	return j.CancelRequested, nil
}

// requestCancel flips the cancellation flag directly on the stored row, the
// way a concurrent CancelJob call would.
func (r *memJobRepo) requestCancel(jobID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if j, ok := r.jobs[jobID]; ok {
		j.CancelRequested = true
	}
}

type memJobItemRepo struct {
	mu    gosync.Mutex
	items []sync.SyncJobItem
}

func (r *memJobItemRepo) FindByJob(_ context.Context, tenantID, jobID uuid.UUID, _ shared.Filter) ([]sync.SyncJobItem, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []sync.SyncJobItem
	for _, item := range r.items {
		if item.TenantID == tenantID && item.JobID == jobID {
			out = append(out, item)
		}
	}
	return out, int64(len(out)), nil
}

func (r *memJobItemRepo) Save(_ context.Context, item *sync.SyncJobItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, *item)
	return nil
}

type memSourceLock struct {
	mu   gosync.Mutex
	held map[uuid.UUID]uuid.UUID
}

func newMemSourceLock() *memSourceLock {
	return &memSourceLock{held: make(map[uuid.UUID]uuid.UUID)}
}

func (l *memSourceLock) TryAcquire(_ context.Context, sourceID, jobID uuid.UUID, _ time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[sourceID]; ok {
		return false, nil
	}
	l.held[sourceID] = jobID
	return true, nil
}

func (l *memSourceLock) Release(_ context.Context, sourceID, jobID uuid.UUID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if held, ok := l.held[sourceID]; ok && held == jobID {
		delete(l.held, sourceID)
	}
	return nil
}

// fakeConnector serves scripted pages and can inject failures before
// specific fetch attempts.
type fakeConnector struct {
	mu       gosync.Mutex
	pages    [][]sync.ExternalRecord
	failures []error
	fetches  int
	lastReq  sync.FetchRequest
}

func (c *fakeConnector) Type() sync.ConnectorType { return sync.ConnectorTypeREST }

func (c *fakeConnector) Fetch(_ context.Context, _ *sync.Source, req sync.FetchRequest) (*sync.FetchPage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetches++
	c.lastReq = req
	if len(c.failures) > 0 {
		err := c.failures[0]
		c.failures = c.failures[1:]
		if err != nil {
			return nil, err
		}
	}
	pageNum := 0
	if req.Cursor != "" {
		pageNum = int(req.Cursor[0] - '0')
	}
	if pageNum >= len(c.pages) {
		return &sync.FetchPage{}, nil
	}
	page := &sync.FetchPage{Records: c.pages[pageNum]}
	if pageNum+1 < len(c.pages) {
		page.NextCursor = sync.Cursor(rune('0' + pageNum + 1))
		page.HasMore = true
	}
	return page, nil
}

func (c *fakeConnector) TestConnection(_ context.Context, _ *sync.Source) (*sync.TestResult, error) {
	return &sync.TestResult{SampleCount: 1, Message: "ok"}, nil
}

// fakeRegistry resolves every connector type to the same fake
type fakeRegistry struct {
	connector sync.Connector
	configErr error
}

func (r *fakeRegistry) Resolve(_ sync.ConnectorType) (sync.Connector, error) {
	return r.connector, nil
}

func (r *fakeRegistry) ValidateConfig(_ sync.ConnectorType, _ []byte) error {
	return r.configErr
}

// world bundles the fakes behind one transaction scope for engine tests
type world struct {
	products *memProductRepo
	refs     *memRefRepo
	logs     *memChangeLogRepo
	prices   *memPriceHistoryRepo
	sources  *memSourceRepo
	jobs     *memJobRepo
	items    *memJobItemRepo
	scope    *NoOpTransactionScope
}

func newWorld() *world {
	w := &world{
		products: newMemProductRepo(),
		refs:     &memRefRepo{},
		logs:     &memChangeLogRepo{},
		prices:   &memPriceHistoryRepo{},
		sources:  newMemSourceRepo(),
		jobs:     newMemJobRepo(),
		items:    &memJobItemRepo{},
	}
	w.scope = &NoOpTransactionScope{
		Products:     w.products,
		ExternalRefs: w.refs,
		ChangeLogs:   w.logs,
		PriceHistory: w.prices,
		Sources:      w.sources,
		Jobs:         w.jobs,
		JobItems:     w.items,
	}
	return w
}
