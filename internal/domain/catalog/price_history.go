package catalog

import (
	"time"

	"github.com/google/uuid"
	"github.com/petshop/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// ProductPriceHistory is an append-only snapshot of a product's price and
// cost, written whenever either changes, regardless of what triggered the
// change. The margin is derived at write time so historical margins survive
// later formula changes.
type ProductPriceHistory struct {
	shared.BaseEntity
	TenantID      uuid.UUID       `gorm:"type:uuid;not null;index"`
	ProductID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	PriceCents    int64           `gorm:"not null"`
	CostCents     int64           `gorm:"not null"`
	MarginPercent decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	ChangeSource  ChangeSource    `gorm:"type:varchar(20);not null"`
	SyncJobID     *uuid.UUID      `gorm:"type:uuid;index"`
	ChangedAt     time.Time       `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (ProductPriceHistory) TableName() string {
	return "product_price_histories"
}

// NewPriceHistory creates a price history snapshot for a product
func NewPriceHistory(
	tenantID, productID uuid.UUID,
	priceCents, costCents int64,
	source ChangeSource,
) (*ProductPriceHistory, error) {
	if priceCents < 0 || costCents < 0 {
		return nil, shared.NewDomainError("INVALID_PRICE", "Price and cost cannot be negative")
	}
	if !source.IsValid() {
		return nil, shared.NewDomainError("INVALID_CHANGE_SOURCE", "Unknown change source")
	}
	return &ProductPriceHistory{
		BaseEntity:    shared.NewBaseEntity(),
		TenantID:      tenantID,
		ProductID:     productID,
		PriceCents:    priceCents,
		CostCents:     costCents,
		MarginPercent: marginPercent(priceCents, costCents),
		ChangeSource:  source,
		ChangedAt:     time.Now(),
	}, nil
}

// AttachSyncJob tags the snapshot with the synchronization job that produced it
func (h *ProductPriceHistory) AttachSyncJob(jobID uuid.UUID) {
	h.SyncJobID = &jobID
}

func marginPercent(priceCents, costCents int64) decimal.Decimal {
	if costCents == 0 {
		return decimal.Zero
	}
	price := decimal.NewFromInt(priceCents)
	cost := decimal.NewFromInt(costCents)
	return price.Sub(cost).Div(cost).Mul(decimal.NewFromInt(100)).Round(2)
}
