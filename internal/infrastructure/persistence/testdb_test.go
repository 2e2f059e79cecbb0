package persistence

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/petshop/backend/internal/domain/catalog"
	"github.com/petshop/backend/internal/domain/sync"
)

// newTestDB opens an in-memory sqlite database with the full schema
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&catalog.Product{},
		&catalog.ProductExternalRef{},
		&catalog.ProductChangeLog{},
		&catalog.ProductPriceHistory{},
		&sync.Source{},
		&sync.SyncJob{},
		&sync.SyncJobItem{},
	)
	require.NoError(t, err)
	return db
}
