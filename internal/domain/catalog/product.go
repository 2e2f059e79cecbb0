package catalog

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/petshop/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// ProductStatus represents the status of a product
type ProductStatus string

const (
	ProductStatusActive   ProductStatus = "active"
	ProductStatusInactive ProductStatus = "inactive"
)

// ChangeSource identifies which actor class last mutated a product.
// Conflict detection depends on distinguishing local edits (manual/admin)
// from synchronization writes.
type ChangeSource string

const (
	ChangeSourceManual ChangeSource = "manual"
	ChangeSourceAdmin  ChangeSource = "admin"
	ChangeSourceSync   ChangeSource = "sync"
)

// IsValid checks if the change source is valid
func (s ChangeSource) IsValid() bool {
	switch s {
	case ChangeSourceManual, ChangeSourceAdmin, ChangeSourceSync:
		return true
	}
	return false
}

// IsLocal returns true for edits made by people rather than the sync engine
func (s ChangeSource) IsLocal() bool {
	return s == ChangeSourceManual || s == ChangeSourceAdmin
}

// Product represents a product/SKU in the catalog.
// Prices are stored in integer minor-currency units (cents) so that
// synchronization comparisons are exact.
type Product struct {
	shared.TenantAggregateRoot
	Code             string        `gorm:"type:varchar(50);not null;uniqueIndex:idx_product_tenant_code,priority:2"`
	Name             string        `gorm:"type:varchar(200);not null"`
	Description      string        `gorm:"type:text"`
	Barcode          string        `gorm:"type:varchar(50);index"`
	PriceCents       int64         `gorm:"not null;default:0"`
	CostCents        int64         `gorm:"not null;default:0"`
	Stock            int64         `gorm:"not null;default:0"`
	Status           ProductStatus `gorm:"type:varchar(20);not null;default:'active'"`
	LastChangeSource ChangeSource  `gorm:"type:varchar(20);not null;default:'manual'"`
	LastChangedAt    time.Time     `gorm:"not null"`
}

// TableName returns the table name for GORM
func (Product) TableName() string {
	return "products"
}

// NewProduct creates a new product
func NewProduct(tenantID uuid.UUID, code, name string, source ChangeSource) (*Product, error) {
	if err := validateProductCode(code); err != nil {
		return nil, err
	}
	if err := validateProductName(name); err != nil {
		return nil, err
	}
	if !source.IsValid() {
		return nil, shared.NewDomainError("INVALID_CHANGE_SOURCE", "Unknown change source")
	}

	product := &Product{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Code:                strings.ToUpper(code),
		Name:                name,
		Status:              ProductStatusActive,
		LastChangeSource:    source,
		LastChangedAt:       time.Now(),
	}

	return product, nil
}

// Rename updates the product name
func (p *Product) Rename(name string, source ChangeSource) error {
	if err := validateProductName(name); err != nil {
		return err
	}
	p.Name = name
	p.touch(source)
	return nil
}

// SetBarcode sets the product barcode
func (p *Product) SetBarcode(barcode string, source ChangeSource) error {
	if barcode != "" && len(barcode) > 50 {
		return shared.NewDomainError("INVALID_BARCODE", "Barcode cannot exceed 50 characters")
	}
	p.Barcode = barcode
	p.touch(source)
	return nil
}

// SetPrices sets selling price and cost in minor-currency units
func (p *Product) SetPrices(priceCents, costCents int64, source ChangeSource) error {
	if priceCents < 0 {
		return shared.NewDomainError("INVALID_PRICE", "Price cannot be negative")
	}
	if costCents < 0 {
		return shared.NewDomainError("INVALID_COST", "Cost cannot be negative")
	}
	p.PriceCents = priceCents
	p.CostCents = costCents
	p.touch(source)
	return nil
}

// SetStock sets the on-hand stock quantity
func (p *Product) SetStock(stock int64, source ChangeSource) error {
	if stock < 0 {
		return shared.NewDomainError("INVALID_STOCK", "Stock cannot be negative")
	}
	p.Stock = stock
	p.touch(source)
	return nil
}

// Activate activates the product
func (p *Product) Activate(source ChangeSource) {
	p.Status = ProductStatusActive
	p.touch(source)
}

// Deactivate deactivates the product
func (p *Product) Deactivate(source ChangeSource) {
	p.Status = ProductStatusInactive
	p.touch(source)
}

// IsActive returns true if the product is active
func (p *Product) IsActive() bool {
	return p.Status == ProductStatusActive
}

// MarginPercent returns the profit margin percentage derived from price and cost.
// Returns 0 when the cost is zero.
func (p *Product) MarginPercent() decimal.Decimal {
	if p.CostCents == 0 {
		return decimal.Zero
	}
	price := decimal.NewFromInt(p.PriceCents)
	cost := decimal.NewFromInt(p.CostCents)
	return price.Sub(cost).Div(cost).Mul(decimal.NewFromInt(100)).Round(2)
}

// EditedLocallyAfter reports whether the product was last changed by a person
// (manual or admin edit) after the given instant.
func (p *Product) EditedLocallyAfter(t time.Time) bool {
	return p.LastChangeSource.IsLocal() && p.LastChangedAt.After(t)
}

func (p *Product) touch(source ChangeSource) {
	now := time.Now()
	p.LastChangeSource = source
	p.LastChangedAt = now
	p.UpdatedAt = now
	p.IncrementVersion()
}

// validateProductCode validates the product code (SKU)
func validateProductCode(code string) error {
	if code == "" {
		return shared.NewDomainError("INVALID_CODE", "Product code cannot be empty")
	}
	if len(code) > 50 {
		return shared.NewDomainError("INVALID_CODE", "Product code cannot exceed 50 characters")
	}
	for _, r := range code {
		if !((r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '-') {
			return shared.NewDomainError("INVALID_CODE", "Product code can only contain letters, numbers, underscores, and hyphens")
		}
	}
	return nil
}

// validateProductName validates the product name
func validateProductName(name string) error {
	if name == "" {
		return shared.NewDomainError("INVALID_NAME", "Product name cannot be empty")
	}
	if len(name) > 200 {
		return shared.NewDomainError("INVALID_NAME", "Product name cannot exceed 200 characters")
	}
	return nil
}
