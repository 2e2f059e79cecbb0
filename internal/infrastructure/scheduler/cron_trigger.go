package scheduler

import (
	"context"
	"errors"
	gosync "sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	syncapp "github.com/petshop/backend/internal/application/sync"
	"github.com/petshop/backend/internal/domain/sync"
)

// scheduledTriggeredBy is recorded on jobs started by the cron trigger
const scheduledTriggeredBy = "scheduler"

// SyncTrigger is the slice of the sync service the trigger needs
type SyncTrigger interface {
	TriggerSync(ctx context.Context, input syncapp.TriggerSyncInput) (*sync.SyncJob, error)
}

// Config holds configuration for the cron trigger
type Config struct {
	// Enabled indicates whether scheduled syncs run at all
	Enabled bool
	// ReloadInterval is how often source schedules are re-read from storage
	ReloadInterval time.Duration
}

// DefaultConfig returns the default trigger configuration
func DefaultConfig() Config {
	return Config{
		Enabled:        true,
		ReloadInterval: time.Minute,
	}
}

// CronTrigger starts synchronization jobs for scheduled and hybrid sources.
// It keeps one cron entry per schedulable source and periodically reloads
// the set so that source changes take effect without a restart. The engine
// itself has no time loop; this is the only scheduled entry point.
type CronTrigger struct {
	config  Config
	sources sync.SourceRepository
	trigger SyncTrigger
	logger  *zap.Logger

	cron      *cron.Cron
	entries   map[uuid.UUID]cron.EntryID
	schedules map[uuid.UUID]string
	entriesMu gosync.Mutex

	cancel    context.CancelFunc
	wg        gosync.WaitGroup
	mu        gosync.Mutex
	isRunning bool
}

// NewCronTrigger creates a new cron trigger
func NewCronTrigger(config Config, sources sync.SourceRepository, trigger SyncTrigger, logger *zap.Logger) *CronTrigger {
	if config.ReloadInterval <= 0 {
		config.ReloadInterval = time.Minute
	}
	return &CronTrigger{
		config:    config,
		sources:   sources,
		trigger:   trigger,
		logger:    logger.Named("scheduler"),
		cron:      cron.New(cron.WithParser(scheduleParser), cron.WithChain(cron.Recover(cron.DefaultLogger))),
		entries:   make(map[uuid.UUID]cron.EntryID),
		schedules: make(map[uuid.UUID]string),
	}
}

// Start loads the schedulable sources and begins firing their schedules
func (t *CronTrigger) Start(ctx context.Context) error {
	if !t.config.Enabled {
		t.logger.Info("Scheduled sync trigger disabled")
		return nil
	}

	t.mu.Lock()
	if t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = true
	t.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	t.cron.Start()
	t.reload(ctx)

	t.wg.Add(1)
	go t.reloadLoop(ctx)

	t.logger.Info("Scheduled sync trigger started",
		zap.Duration("reload_interval", t.config.ReloadInterval))
	return nil
}

// Stop halts the trigger and waits for in-flight cron callbacks
func (t *CronTrigger) Stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = false
	t.mu.Unlock()

	if t.cancel != nil {
		t.cancel()
	}

	cronDone := t.cron.Stop()

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		<-cronDone.Done()
		close(done)
	}()

	select {
	case <-done:
		t.logger.Info("Scheduled sync trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *CronTrigger) reloadLoop(ctx context.Context) {
	defer t.wg.Done()

	ticker := time.NewTicker(t.config.ReloadInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.reload(ctx)
		}
	}
}

// reload synchronizes the cron entries with the schedulable sources
func (t *CronTrigger) reload(ctx context.Context) {
	sources, err := t.sources.FindSchedulable(ctx)
	if err != nil {
		t.logger.Error("Failed to load schedulable sources", zap.Error(err))
		return
	}

	t.entriesMu.Lock()
	defer t.entriesMu.Unlock()

	seen := make(map[uuid.UUID]bool, len(sources))
	for i := range sources {
		source := sources[i]
		seen[source.ID] = true

		if t.schedules[source.ID] == source.Schedule {
			continue
		}
		if entryID, exists := t.entries[source.ID]; exists {
			t.cron.Remove(entryID)
		}

		entryID, err := t.cron.AddFunc(source.Schedule, t.fireFunc(source.TenantID, source.ID))
		if err != nil {
			// The expression was validated at save time; a failure here
			// means the source row was mutated out of band
			t.logger.Error("Failed to schedule source",
				zap.String("source_id", source.ID.String()),
				zap.String("schedule", source.Schedule),
				zap.Error(err))
			delete(t.entries, source.ID)
			delete(t.schedules, source.ID)
			continue
		}
		t.entries[source.ID] = entryID
		t.schedules[source.ID] = source.Schedule

		t.logger.Debug("Scheduled source",
			zap.String("source_id", source.ID.String()),
			zap.String("schedule", source.Schedule))
	}

	// Drop entries whose sources were deactivated, deleted or switched to manual
	for sourceID, entryID := range t.entries {
		if !seen[sourceID] {
			t.cron.Remove(entryID)
			delete(t.entries, sourceID)
			delete(t.schedules, sourceID)
			t.logger.Debug("Unscheduled source", zap.String("source_id", sourceID.String()))
		}
	}
}

// fireFunc returns the cron callback for one source. Scheduled runs are
// incremental; a full re-read stays an explicit operator action.
func (t *CronTrigger) fireFunc(tenantID, sourceID uuid.UUID) func() {
	return func() {
		job, err := t.trigger.TriggerSync(context.Background(), syncapp.TriggerSyncInput{
			TenantID:    tenantID,
			SourceID:    sourceID,
			TriggeredBy: scheduledTriggeredBy,
			SyncType:    sync.SyncTypeIncremental,
		})
		if err != nil {
			// A still-running previous job is expected under dense schedules
			if errors.Is(err, sync.ErrAlreadyRunning) {
				t.logger.Info("Skipping scheduled sync, previous job still running",
					zap.String("source_id", sourceID.String()))
				return
			}
			t.logger.Error("Scheduled sync trigger failed",
				zap.String("source_id", sourceID.String()),
				zap.Error(err))
			return
		}
		t.logger.Info("Scheduled sync started",
			zap.String("source_id", sourceID.String()),
			zap.String("job_id", job.ID.String()))
	}
}
