package catalog

import (
	"github.com/google/uuid"
	"github.com/petshop/backend/internal/domain/shared"
)

// ProductExternalRef records the identifier a product carries on an external
// source. It is the highest-precedence matching key during synchronization:
// once a product has been linked to an external record, subsequent runs find
// it by this mapping before falling back to barcode or code matching.
type ProductExternalRef struct {
	shared.BaseEntity
	TenantID   uuid.UUID `gorm:"type:uuid;not null;index"`
	ProductID  uuid.UUID `gorm:"type:uuid;not null;index"`
	SourceID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_ref_source_external,priority:1"`
	ExternalID string    `gorm:"type:varchar(100);not null;uniqueIndex:idx_ref_source_external,priority:2"`
}

// TableName returns the table name for GORM
func (ProductExternalRef) TableName() string {
	return "product_external_refs"
}

// NewProductExternalRef links a product to its identifier on a source
func NewProductExternalRef(tenantID, productID, sourceID uuid.UUID, externalID string) (*ProductExternalRef, error) {
	if externalID == "" {
		return nil, shared.NewDomainError("INVALID_EXTERNAL_ID", "External ID cannot be empty")
	}
	if len(externalID) > 100 {
		return nil, shared.NewDomainError("INVALID_EXTERNAL_ID", "External ID cannot exceed 100 characters")
	}
	return &ProductExternalRef{
		BaseEntity: shared.NewBaseEntity(),
		TenantID:   tenantID,
		ProductID:  productID,
		SourceID:   sourceID,
		ExternalID: externalID,
	}, nil
}
