package sync

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSyncJob(t *testing.T) {
	job, err := NewSyncJob(uuid.New(), uuid.New(), "admin", SyncTypeFull)
	require.NoError(t, err)
	assert.Equal(t, JobStatusPending, job.Status)
	assert.True(t, job.IsActive())
	assert.Nil(t, job.StartedAt)

	_, err = NewSyncJob(uuid.New(), uuid.Nil, "admin", SyncTypeFull)
	assert.Error(t, err)

	_, err = NewSyncJob(uuid.New(), uuid.New(), "", SyncTypeFull)
	assert.Error(t, err)

	_, err = NewSyncJob(uuid.New(), uuid.New(), "admin", SyncType("weekly"))
	assert.Error(t, err)
}

func TestSyncJob_Lifecycle(t *testing.T) {
	job, err := NewSyncJob(uuid.New(), uuid.New(), "scheduler", SyncTypeIncremental)
	require.NoError(t, err)

	require.NoError(t, job.Start())
	assert.Equal(t, JobStatusRunning, job.Status)
	require.NotNil(t, job.StartedAt)

	// Cannot start twice
	assert.Error(t, job.Start())

	require.NoError(t, job.Complete())
	assert.Equal(t, JobStatusCompleted, job.Status)
	require.NotNil(t, job.FinishedAt)
	assert.False(t, job.IsActive())

	// Terminal states reject further transitions
	assert.Error(t, job.Fail("boom"))
	assert.Error(t, job.Cancel())
	assert.Error(t, job.RequestCancel())
}

func TestSyncJob_CompleteRequiresConsistentCounts(t *testing.T) {
	job, err := NewSyncJob(uuid.New(), uuid.New(), "admin", SyncTypeFull)
	require.NoError(t, err)
	require.NoError(t, job.Start())

	job.Counts.TotalFetched = 5
	job.Counts.Inserted = 2

	assert.Error(t, job.Complete())
	assert.Equal(t, JobStatusRunning, job.Status)

	job.Counts.Unchanged = 3
	assert.NoError(t, job.Complete())
}

func TestSyncJob_FailPreservesCounts(t *testing.T) {
	job, err := NewSyncJob(uuid.New(), uuid.New(), "admin", SyncTypeFull)
	require.NoError(t, err)
	require.NoError(t, job.Start())

	job.RecordOutcome(ActionInsert)
	job.RecordOutcome(ActionUpdate)

	require.NoError(t, job.Fail("feed went away"))
	assert.Equal(t, JobStatusFailed, job.Status)
	assert.Equal(t, "feed went away", job.ErrorMessage)
	assert.Equal(t, 2, job.Counts.TotalFetched)
	assert.Equal(t, 1, job.Counts.Inserted)
	assert.Equal(t, 1, job.Counts.Updated)
}

func TestSyncJob_CancelFlow(t *testing.T) {
	job, err := NewSyncJob(uuid.New(), uuid.New(), "admin", SyncTypeFull)
	require.NoError(t, err)
	require.NoError(t, job.Start())

	require.NoError(t, job.RequestCancel())
	assert.True(t, job.CancelRequested)
	assert.Equal(t, JobStatusRunning, job.Status)

	require.NoError(t, job.Cancel())
	assert.Equal(t, JobStatusCancelled, job.Status)
	require.NotNil(t, job.FinishedAt)
}

func TestCounts_Add(t *testing.T) {
	var counts Counts
	for _, action := range []ItemAction{
		ActionInsert, ActionInsert, ActionUpdate, ActionUnchanged, ActionSkip, ActionConflict,
	} {
		counts = counts.Add(action)
	}

	assert.Equal(t, 6, counts.TotalFetched)
	assert.Equal(t, 2, counts.Inserted)
	assert.Equal(t, 1, counts.Updated)
	assert.Equal(t, 1, counts.Unchanged)
	assert.Equal(t, 1, counts.Skipped)
	assert.Equal(t, 1, counts.Conflicts)
	assert.True(t, counts.Consistent())
}

func TestItemAction_Mutates(t *testing.T) {
	assert.True(t, ActionInsert.Mutates())
	assert.True(t, ActionUpdate.Mutates())
	assert.False(t, ActionUnchanged.Mutates())
	assert.False(t, ActionSkip.Mutates())
	assert.False(t, ActionConflict.Mutates())
}

func TestNewJobItem(t *testing.T) {
	tenantID := uuid.New()
	jobID := uuid.New()
	record := validRecord()

	decision := Decide(record, MatchResult{}, newTestSource(t, nil))
	item, err := NewJobItem(tenantID, jobID, decision)
	require.NoError(t, err)
	assert.Equal(t, jobID, item.JobID)
	assert.Equal(t, "ext-1", item.ExternalID)
	assert.Equal(t, ActionInsert, item.Action)

	_, err = NewJobItem(tenantID, uuid.Nil, decision)
	assert.Error(t, err)

	_, err = NewJobItem(tenantID, jobID, nil)
	assert.Error(t, err)
}
