package sync

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petshop/backend/internal/domain/catalog"
)

func newTestSource(t *testing.T, lastSyncAt *time.Time) *Source {
	t.Helper()
	source, err := NewSource(
		uuid.New(), "Supplier Feed", SourceTypeSupplierFeed, ConnectorTypeREST,
		[]byte(`{"base_url":"https://feed.example.com"}`), SyncModeManual, "", nil,
	)
	require.NoError(t, err)
	source.LastSyncAt = lastSyncAt
	return source
}

func validRecord() *ExternalRecord {
	return &ExternalRecord{
		ExternalID: "ext-1",
		Name:       "Cat Tree",
		PriceCents: 4999,
		CostCents:  3000,
		Stock:      12,
		Active:     true,
	}
}

func TestDecide_InvalidRecordSkips(t *testing.T) {
	source := newTestSource(t, nil)

	tests := []struct {
		name   string
		record *ExternalRecord
	}{
		{"missing name", &ExternalRecord{ExternalID: "e", PriceCents: 100}},
		{"zero price", &ExternalRecord{ExternalID: "e", Name: "N", PriceCents: 0}},
		{"negative price", &ExternalRecord{ExternalID: "e", Name: "N", PriceCents: -5}},
		{"no identifying key", &ExternalRecord{Name: "N", PriceCents: 100}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := Decide(tt.record, MatchResult{}, source)
			assert.Equal(t, ActionSkip, decision.Action)
			assert.Equal(t, ReasonInvalidRecord, decision.Reason)
		})
	}
}

func TestDecide_AmbiguousMatchSkips(t *testing.T) {
	source := newTestSource(t, nil)

	decision := Decide(validRecord(), MatchResult{MatchedBy: MatchKeyBarcode, Ambiguous: true}, source)

	assert.Equal(t, ActionSkip, decision.Action)
	assert.Equal(t, ReasonAmbiguousMatch, decision.Reason)
}

func TestDecide_NoMatchInserts(t *testing.T) {
	source := newTestSource(t, nil)

	decision := Decide(validRecord(), MatchResult{}, source)

	assert.Equal(t, ActionInsert, decision.Action)
	assert.Empty(t, decision.BeforeSnapshot)
	assert.Contains(t, decision.AfterSnapshot, `"price_cents":4999`)
}

func TestDecide_IdenticalFieldsUnchanged(t *testing.T) {
	source := newTestSource(t, nil)
	record := validRecord()

	product := newTestProduct(t, "CT-1", "")
	require.NoError(t, product.Rename(record.Name, catalog.ChangeSourceSync))
	require.NoError(t, product.SetPrices(record.PriceCents, record.CostCents, catalog.ChangeSourceSync))
	require.NoError(t, product.SetStock(record.Stock, catalog.ChangeSourceSync))

	decision := Decide(record, MatchResult{Product: product, MatchedBy: MatchKeyExternalID}, source)

	assert.Equal(t, ActionUnchanged, decision.Action)
	assert.Empty(t, decision.Changes)
}

func TestDecide_DifferingFieldsUpdate(t *testing.T) {
	source := newTestSource(t, nil)
	record := validRecord()

	product := newTestProduct(t, "CT-1", "")
	require.NoError(t, product.Rename(record.Name, catalog.ChangeSourceSync))
	require.NoError(t, product.SetPrices(3999, record.CostCents, catalog.ChangeSourceSync))
	require.NoError(t, product.SetStock(2, catalog.ChangeSourceSync))

	decision := Decide(record, MatchResult{Product: product, MatchedBy: MatchKeyExternalID}, source)

	require.Equal(t, ActionUpdate, decision.Action)
	require.Len(t, decision.Changes, 2)
	assert.Equal(t, catalog.FieldPrice, decision.Changes[0].Field)
	assert.Equal(t, "3999", decision.Changes[0].OldValue)
	assert.Equal(t, "4999", decision.Changes[0].NewValue)
	assert.Equal(t, catalog.FieldStock, decision.Changes[1].Field)
	assert.True(t, decision.PriceChanged())
	assert.NotEmpty(t, decision.BeforeSnapshot)
	assert.NotEmpty(t, decision.AfterSnapshot)
}

func TestDecide_ExactCentComparison(t *testing.T) {
	// A one-cent difference is a real change; equality must be exact.
	source := newTestSource(t, nil)
	record := validRecord()

	product := newTestProduct(t, "CT-1", "")
	require.NoError(t, product.Rename(record.Name, catalog.ChangeSourceSync))
	require.NoError(t, product.SetPrices(record.PriceCents+1, record.CostCents, catalog.ChangeSourceSync))
	require.NoError(t, product.SetStock(record.Stock, catalog.ChangeSourceSync))

	decision := Decide(record, MatchResult{Product: product, MatchedBy: MatchKeyExternalID}, source)

	require.Equal(t, ActionUpdate, decision.Action)
	require.Len(t, decision.Changes, 1)
	assert.Equal(t, catalog.FieldPrice, decision.Changes[0].Field)
}

func TestDecide_LocalEditConflict(t *testing.T) {
	lastSync := time.Now().Add(-time.Hour)
	source := newTestSource(t, &lastSync)
	record := validRecord()

	// Locally edited after the watermark, and the feed disagrees on price
	product := newTestProduct(t, "CT-1", "")
	require.NoError(t, product.Rename(record.Name, catalog.ChangeSourceAdmin))
	require.NoError(t, product.SetPrices(5999, record.CostCents, catalog.ChangeSourceAdmin))
	require.NoError(t, product.SetStock(record.Stock, catalog.ChangeSourceAdmin))

	decision := Decide(record, MatchResult{Product: product, MatchedBy: MatchKeyExternalID}, source)

	assert.Equal(t, ActionConflict, decision.Action)
	assert.Equal(t, ReasonLocalEdit, decision.Reason)
	assert.Contains(t, decision.BeforeSnapshot, `"price_cents":5999`)
	assert.Contains(t, decision.AfterSnapshot, `"price_cents":4999`)
}

func TestDecide_LocalEditWithoutDifferenceIsUnchanged(t *testing.T) {
	// A local edit that happens to agree with the feed is not a conflict.
	lastSync := time.Now().Add(-time.Hour)
	source := newTestSource(t, &lastSync)
	record := validRecord()

	product := newTestProduct(t, "CT-1", "")
	require.NoError(t, product.Rename(record.Name, catalog.ChangeSourceAdmin))
	require.NoError(t, product.SetPrices(record.PriceCents, record.CostCents, catalog.ChangeSourceAdmin))
	require.NoError(t, product.SetStock(record.Stock, catalog.ChangeSourceAdmin))

	decision := Decide(record, MatchResult{Product: product, MatchedBy: MatchKeyExternalID}, source)

	assert.Equal(t, ActionUnchanged, decision.Action)
}

func TestDecide_SyncEditAfterWatermarkUpdates(t *testing.T) {
	// Writes made by the engine itself never block a later update.
	lastSync := time.Now().Add(-time.Hour)
	source := newTestSource(t, &lastSync)
	record := validRecord()

	product := newTestProduct(t, "CT-1", "")
	require.NoError(t, product.Rename(record.Name, catalog.ChangeSourceSync))
	require.NoError(t, product.SetPrices(3999, record.CostCents, catalog.ChangeSourceSync))
	require.NoError(t, product.SetStock(record.Stock, catalog.ChangeSourceSync))

	decision := Decide(record, MatchResult{Product: product, MatchedBy: MatchKeyExternalID}, source)

	assert.Equal(t, ActionUpdate, decision.Action)
}

func TestDecide_NeverSyncedSourceUpdates(t *testing.T) {
	// With no watermark there is no "since last sync" window, so local
	// edits do not produce conflicts on the first run.
	source := newTestSource(t, nil)
	record := validRecord()

	product := newTestProduct(t, "CT-1", "")
	require.NoError(t, product.SetPrices(3999, record.CostCents, catalog.ChangeSourceAdmin))

	decision := Decide(record, MatchResult{Product: product, MatchedBy: MatchKeyExternalID}, source)

	assert.Equal(t, ActionUpdate, decision.Action)
}

func TestDecide_ActiveFlagTracked(t *testing.T) {
	source := newTestSource(t, nil)
	record := validRecord()
	record.Active = false

	product := newTestProduct(t, "CT-1", "")
	require.NoError(t, product.Rename(record.Name, catalog.ChangeSourceSync))
	require.NoError(t, product.SetPrices(record.PriceCents, record.CostCents, catalog.ChangeSourceSync))
	require.NoError(t, product.SetStock(record.Stock, catalog.ChangeSourceSync))

	decision := Decide(record, MatchResult{Product: product, MatchedBy: MatchKeyExternalID}, source)

	require.Equal(t, ActionUpdate, decision.Action)
	require.Len(t, decision.Changes, 1)
	assert.Equal(t, catalog.FieldActive, decision.Changes[0].Field)
	assert.False(t, decision.PriceChanged())
}
