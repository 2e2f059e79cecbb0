package syncapp

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/petshop/backend/internal/domain/catalog"
	"github.com/petshop/backend/internal/domain/shared"
	"github.com/petshop/backend/internal/domain/sync"
)

// Retry policy for transient connector failures
const (
	fetchMaxAttempts     = 3
	fetchBackoffBase     = 500 * time.Millisecond
	fetchBackoffCap      = 30 * time.Second
	defaultFetchPageSize = 200
)

// ReconcileEngine pages external records through matching and diffing and
// applies each decision as one atomic unit. It owns the job lifecycle from
// running to its terminal state; triggering, locking and retries across jobs
// belong to SyncService.
type ReconcileEngine struct {
	txScope     TransactionScope
	productRepo catalog.ProductRepository
	refRepo     catalog.ProductExternalRefRepository
	jobRepo     sync.SyncJobRepository
	logger      *zap.Logger
	pageSize    int
	sleep       func(ctx context.Context, d time.Duration) error
}

// NewReconcileEngine creates a reconciliation engine
func NewReconcileEngine(
	txScope TransactionScope,
	productRepo catalog.ProductRepository,
	refRepo catalog.ProductExternalRefRepository,
	jobRepo sync.SyncJobRepository,
	logger *zap.Logger,
	pageSize int,
) *ReconcileEngine {
	if pageSize <= 0 {
		pageSize = defaultFetchPageSize
	}
	return &ReconcileEngine{
		txScope:     txScope,
		productRepo: productRepo,
		refRepo:     refRepo,
		jobRepo:     jobRepo,
		logger:      logger.Named("reconcile"),
		pageSize:    pageSize,
		sleep:       sleepContext,
	}
}

// RunOptions carries per-run overrides from the trigger
type RunOptions struct {
	// UpdatedSince overrides the incremental watermark when set
	UpdatedSince *time.Time
	// PageSize overrides the engine's configured fetch page size when > 0
	PageSize int
}

// Run executes one synchronization job to a terminal state. The job must be
// running when Run is called; the caller persists the pending->running
// transition while it still holds the trigger path.
func (e *ReconcileEngine) Run(
	ctx context.Context,
	source *sync.Source,
	job *sync.SyncJob,
	connector sync.Connector,
	opts RunOptions,
) error {
	log := e.logger.With(
		zap.String("source_id", source.ID.String()),
		zap.String("job_id", job.ID.String()),
		zap.String("sync_type", string(job.SyncType)),
	)
	log.Info("Reconciliation started")

	index, err := e.buildIndex(ctx, source)
	if err != nil {
		return e.failJob(ctx, source, job, fmt.Errorf("build catalog index: %w", err))
	}

	pageSize := e.pageSize
	if opts.PageSize > 0 {
		pageSize = opts.PageSize
	}
	req := sync.FetchRequest{PageSize: pageSize}
	if job.SyncType == sync.SyncTypeIncremental {
		req.UpdatedSince = source.LastSyncAt
	}
	if opts.UpdatedSince != nil {
		req.UpdatedSince = opts.UpdatedSince
	}

	for {
		page, err := e.fetchWithRetry(ctx, connector, source, req)
		if err != nil {
			return e.failJob(ctx, source, job, err)
		}

		for i := range page.Records {
			record := &page.Records[i]
			match := index.Match(record)
			decision := sync.Decide(record, match, source)
			if err := e.applyDecision(ctx, source, job, index, decision); err != nil {
				return e.failJob(ctx, source, job, fmt.Errorf("apply record %q: %w", record.ExternalID, err))
			}
		}

		if !page.HasMore {
			break
		}
		req.Cursor = page.NextCursor

		// Cancellation is observed between pages only, never mid-page
		cancelled, err := e.jobRepo.IsCancelRequested(ctx, job.ID)
		if err != nil {
			return e.failJob(ctx, source, job, fmt.Errorf("poll cancellation: %w", err))
		}
		if cancelled {
			return e.cancelJob(ctx, job)
		}
	}

	return e.completeJob(ctx, source, job)
}

// buildIndex snapshots the tenant's catalog and the source's external refs
// into the in-memory matching index.
func (e *ReconcileEngine) buildIndex(ctx context.Context, source *sync.Source) (*sync.CatalogIndex, error) {
	filter := sharedAllFilter()
	products, err := e.productRepo.FindAll(ctx, source.TenantID, filter)
	if err != nil {
		return nil, err
	}
	refs, err := e.refRepo.FindBySource(ctx, source.TenantID, source.ID)
	if err != nil {
		return nil, err
	}
	pointers := make([]*catalog.Product, len(products))
	for i := range products {
		pointers[i] = &products[i]
	}
	return sync.NewCatalogIndex(pointers, refs), nil
}

// fetchWithRetry retries transient connector failures with exponential
// backoff. Permanent failures and context cancellation return immediately.
func (e *ReconcileEngine) fetchWithRetry(
	ctx context.Context,
	connector sync.Connector,
	source *sync.Source,
	req sync.FetchRequest,
) (*sync.FetchPage, error) {
	var lastErr error
	delay := fetchBackoffBase
	for attempt := 1; attempt <= fetchMaxAttempts; attempt++ {
		page, err := connector.Fetch(ctx, source, req)
		if err == nil {
			return page, nil
		}
		if !sync.IsTransient(err) {
			return nil, err
		}
		lastErr = err
		if attempt == fetchMaxAttempts {
			break
		}
		e.logger.Warn("Transient fetch failure, retrying",
			zap.String("source_id", source.ID.String()),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)
		if err := e.sleep(ctx, delay); err != nil {
			return nil, err
		}
		delay *= 2
		if delay > fetchBackoffCap {
			delay = fetchBackoffCap
		}
	}
	return nil, fmt.Errorf("fetch failed after %d attempts: %w", fetchMaxAttempts, lastErr)
}

// applyDecision commits one record outcome atomically: the catalog mutation,
// its audit rows, the job item and the job counters either all land or none
// do. Audit rows are written before the counter update inside the same
// transaction.
func (e *ReconcileEngine) applyDecision(
	ctx context.Context,
	source *sync.Source,
	job *sync.SyncJob,
	index *sync.CatalogIndex,
	decision *sync.Decision,
) error {
	countsBefore := job.Counts
	err := e.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		switch decision.Action {
		case sync.ActionInsert:
			if err := e.applyInsert(ctx, repos, source, job, index, decision); err != nil {
				return err
			}
		case sync.ActionUpdate:
			if err := e.applyUpdate(ctx, repos, source, job, decision); err != nil {
				return err
			}
		}

		item, err := sync.NewJobItem(source.TenantID, job.ID, decision)
		if err != nil {
			return err
		}
		if err := repos.JobItemRepo().Save(ctx, item); err != nil {
			return err
		}

		job.RecordOutcome(decision.Action)
		// Counters are written field-scoped so a concurrent cancellation
		// request is never overwritten by a stale full-row save
		return repos.JobRepo().SaveProgress(ctx, job)
	})
	if err != nil {
		// Roll the in-memory counters back alongside the transaction
		job.Counts = countsBefore
		return err
	}
	return nil
}

func (e *ReconcileEngine) applyInsert(
	ctx context.Context,
	repos TransactionalRepositories,
	source *sync.Source,
	job *sync.SyncJob,
	index *sync.CatalogIndex,
	decision *sync.Decision,
) error {
	record := decision.Record

	product, err := catalog.NewProduct(source.TenantID, newProductCode(record), record.Name, catalog.ChangeSourceSync)
	if err != nil {
		return err
	}
	if err := product.SetPrices(record.PriceCents, record.CostCents, catalog.ChangeSourceSync); err != nil {
		return err
	}
	if err := product.SetStock(record.Stock, catalog.ChangeSourceSync); err != nil {
		return err
	}
	if record.Barcode != "" {
		if err := product.SetBarcode(record.Barcode, catalog.ChangeSourceSync); err != nil {
			return err
		}
	}
	if !record.Active {
		product.Deactivate(catalog.ChangeSourceSync)
	}
	if err := repos.ProductRepo().Save(ctx, product); err != nil {
		return err
	}

	if record.ExternalID != "" {
		ref, err := catalog.NewProductExternalRef(source.TenantID, product.ID, source.ID, record.ExternalID)
		if err != nil {
			return err
		}
		if err := repos.ExternalRefRepo().Save(ctx, ref); err != nil {
			return err
		}
	}

	// An insert is audited like an update from nothing: one change log row
	// per populated field, tagged with the job that produced it
	entries, err := insertChangeLog(source, job, product, record)
	if err != nil {
		return err
	}
	if err := repos.ChangeLogRepo().Append(ctx, entries); err != nil {
		return err
	}

	history, err := catalog.NewPriceHistory(source.TenantID, product.ID, record.PriceCents, record.CostCents, catalog.ChangeSourceSync)
	if err != nil {
		return err
	}
	history.AttachSyncJob(job.ID)
	if err := repos.PriceHistoryRepo().Append(ctx, history); err != nil {
		return err
	}

	// Later records in this job can now match the new product
	index.Put(product, record.ExternalID)
	return nil
}

// insertChangeLog builds the change log rows for a freshly inserted product.
// Every populated tracked field gets one row with an empty old value.
func insertChangeLog(source *sync.Source, job *sync.SyncJob, product *catalog.Product, record *sync.ExternalRecord) ([]*catalog.ProductChangeLog, error) {
	fields := []struct {
		name  string
		value string
	}{
		{catalog.FieldName, record.Name},
		{catalog.FieldPrice, strconv.FormatInt(record.PriceCents, 10)},
		{catalog.FieldCost, strconv.FormatInt(record.CostCents, 10)},
		{catalog.FieldStock, strconv.FormatInt(record.Stock, 10)},
		{catalog.FieldActive, strconv.FormatBool(record.Active)},
	}

	entries := make([]*catalog.ProductChangeLog, 0, len(fields))
	for _, field := range fields {
		if field.value == "" {
			continue
		}
		entry, err := catalog.NewChangeLogEntry(
			source.TenantID, product.ID, catalog.ChangeSourceSync,
			field.name, "", field.value,
		)
		if err != nil {
			return nil, err
		}
		entry.AttachSyncJob(source.ID, job.ID)
		entries = append(entries, entry)
	}
	return entries, nil
}

func (e *ReconcileEngine) applyUpdate(
	ctx context.Context,
	repos TransactionalRepositories,
	source *sync.Source,
	job *sync.SyncJob,
	decision *sync.Decision,
) error {
	record := decision.Record
	product := decision.Match.Product

	for _, change := range decision.Changes {
		switch change.Field {
		case catalog.FieldName:
			if err := product.Rename(record.Name, catalog.ChangeSourceSync); err != nil {
				return err
			}
		case catalog.FieldPrice, catalog.FieldCost:
			if err := product.SetPrices(record.PriceCents, record.CostCents, catalog.ChangeSourceSync); err != nil {
				return err
			}
		case catalog.FieldStock:
			if err := product.SetStock(record.Stock, catalog.ChangeSourceSync); err != nil {
				return err
			}
		case catalog.FieldActive:
			if record.Active {
				product.Activate(catalog.ChangeSourceSync)
			} else {
				product.Deactivate(catalog.ChangeSourceSync)
			}
		}
	}
	if err := repos.ProductRepo().Save(ctx, product); err != nil {
		return err
	}

	entries := make([]*catalog.ProductChangeLog, 0, len(decision.Changes))
	for _, change := range decision.Changes {
		entry, err := catalog.NewChangeLogEntry(
			source.TenantID, product.ID, catalog.ChangeSourceSync,
			change.Field, change.OldValue, change.NewValue,
		)
		if err != nil {
			return err
		}
		entry.AttachSyncJob(source.ID, job.ID)
		entries = append(entries, entry)
	}
	if err := repos.ChangeLogRepo().Append(ctx, entries); err != nil {
		return err
	}

	if decision.PriceChanged() {
		history, err := catalog.NewPriceHistory(source.TenantID, product.ID, record.PriceCents, record.CostCents, catalog.ChangeSourceSync)
		if err != nil {
			return err
		}
		history.AttachSyncJob(job.ID)
		if err := repos.PriceHistoryRepo().Append(ctx, history); err != nil {
			return err
		}
	}

	// Record the external link when the match came from a weaker key, so the
	// next run matches this product at the highest precedence level
	if record.ExternalID != "" && decision.Match.MatchedBy != sync.MatchKeyExternalID {
		existing, err := repos.ExternalRefRepo().FindByExternalID(ctx, source.TenantID, source.ID, record.ExternalID)
		if err != nil {
			return err
		}
		if existing == nil {
			ref, err := catalog.NewProductExternalRef(source.TenantID, product.ID, source.ID, record.ExternalID)
			if err != nil {
				return err
			}
			if err := repos.ExternalRefRepo().Save(ctx, ref); err != nil {
				return err
			}
		}
	}
	return nil
}

// completeJob commits the terminal completed state together with the
// source's advanced watermark.
func (e *ReconcileEngine) completeJob(ctx context.Context, source *sync.Source, job *sync.SyncJob) error {
	startedAt := time.Now()
	if job.StartedAt != nil {
		startedAt = *job.StartedAt
	}
	err := e.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		if err := job.Complete(); err != nil {
			return err
		}
		if err := repos.JobRepo().Save(ctx, job); err != nil {
			return err
		}
		source.RecordSuccessfulSync(startedAt)
		return repos.SourceRepo().Save(ctx, source)
	})
	if err != nil {
		return err
	}
	e.logger.Info("Reconciliation completed",
		zap.String("job_id", job.ID.String()),
		zap.Int("total_fetched", job.Counts.TotalFetched),
		zap.Int("inserted", job.Counts.Inserted),
		zap.Int("updated", job.Counts.Updated),
		zap.Int("unchanged", job.Counts.Unchanged),
		zap.Int("skipped", job.Counts.Skipped),
		zap.Int("conflicts", job.Counts.Conflicts),
	)
	return nil
}

// cancelJob commits the terminal cancelled state, preserving all counts.
// The watermark does not advance on cancellation.
func (e *ReconcileEngine) cancelJob(ctx context.Context, job *sync.SyncJob) error {
	// The flag was observed from storage; reflect it on the aggregate so the
	// terminal save does not write it back as false
	job.CancelRequested = true
	if err := job.Cancel(); err != nil {
		return err
	}
	if err := e.jobRepo.Save(ctx, job); err != nil {
		return err
	}
	e.logger.Info("Reconciliation cancelled",
		zap.String("job_id", job.ID.String()),
		zap.Int("total_fetched", job.Counts.TotalFetched),
	)
	return nil
}

// failJob commits the terminal failed state with the cause captured
// verbatim. Counts applied before the failure stay durable.
func (e *ReconcileEngine) failJob(ctx context.Context, source *sync.Source, job *sync.SyncJob, cause error) error {
	e.logger.Error("Reconciliation failed",
		zap.String("source_id", source.ID.String()),
		zap.String("job_id", job.ID.String()),
		zap.Error(cause),
	)
	if err := job.Fail(cause.Error()); err != nil {
		return err
	}
	if err := e.jobRepo.Save(ctx, job); err != nil {
		return err
	}
	return cause
}

// newProductCode derives a catalog code for an inserted product. The
// source's own code hint wins; otherwise the external identifiers are
// sanitized into a valid code.
func newProductCode(record *sync.ExternalRecord) string {
	if record.InternalCodeHint != "" {
		return sanitizeCode(record.InternalCodeHint)
	}
	if record.ExternalID != "" {
		return sanitizeCode("EXT-" + record.ExternalID)
	}
	return sanitizeCode("BC-" + record.Barcode)
}

func sanitizeCode(raw string) string {
	out := make([]rune, 0, len(raw))
	for _, r := range raw {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			out = append(out, r)
		default:
			out = append(out, '-')
		}
	}
	if len(out) > 50 {
		out = out[:50]
	}
	return string(out)
}

// sharedAllFilter requests an unpaged listing. PageSize 0 means no limit.
func sharedAllFilter() shared.Filter {
	filter := shared.DefaultFilter()
	filter.PageSize = 0
	return filter
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
