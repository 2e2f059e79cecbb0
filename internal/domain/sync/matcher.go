package sync

import (
	"strings"

	"github.com/petshop/backend/internal/domain/catalog"
)

// MatchKey identifies which precedence level produced a match
type MatchKey string

const (
	MatchKeyExternalID MatchKey = "external_id"
	MatchKeyBarcode    MatchKey = "barcode"
	MatchKeyCode       MatchKey = "code"
)

// MatchResult is the outcome of matching one external record against the
// internal catalog. Ambiguity is not resolved here; it surfaces so the
// differ can turn it into a Skip outcome.
type MatchResult struct {
	Product   *catalog.Product
	MatchedBy MatchKey
	Ambiguous bool
}

// Found returns true if exactly one internal product matched
func (r MatchResult) Found() bool {
	return r.Product != nil && !r.Ambiguous
}

// CatalogIndex is an in-memory snapshot of the catalog keyed by the three
// match keys. It is built once per job so that matching is reproducible
// against a fixed catalog state and does not hit the store per record.
type CatalogIndex struct {
	byExternalID map[string][]*catalog.Product
	byBarcode    map[string][]*catalog.Product
	byCode       map[string][]*catalog.Product
}

// NewCatalogIndex builds an index over the given products and the external
// refs recorded for the source being synchronized.
func NewCatalogIndex(products []*catalog.Product, refs []catalog.ProductExternalRef) *CatalogIndex {
	idx := &CatalogIndex{
		byExternalID: make(map[string][]*catalog.Product),
		byBarcode:    make(map[string][]*catalog.Product),
		byCode:       make(map[string][]*catalog.Product),
	}

	byID := make(map[[16]byte]*catalog.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
		if p.Barcode != "" {
			idx.byBarcode[p.Barcode] = append(idx.byBarcode[p.Barcode], p)
		}
		if p.Code != "" {
			idx.byCode[strings.ToUpper(p.Code)] = append(idx.byCode[strings.ToUpper(p.Code)], p)
		}
	}
	for _, ref := range refs {
		if p, ok := byID[ref.ProductID]; ok {
			idx.byExternalID[ref.ExternalID] = append(idx.byExternalID[ref.ExternalID], p)
		}
	}
	return idx
}

// Put registers a product in the index. Used by the engine after inserts so
// later records in the same job can match the newly created product.
func (idx *CatalogIndex) Put(p *catalog.Product, externalID string) {
	if externalID != "" {
		idx.byExternalID[externalID] = append(idx.byExternalID[externalID], p)
	}
	if p.Barcode != "" {
		idx.byBarcode[p.Barcode] = append(idx.byBarcode[p.Barcode], p)
	}
	if p.Code != "" {
		idx.byCode[strings.ToUpper(p.Code)] = append(idx.byCode[strings.ToUpper(p.Code)], p)
	}
}

// Match finds the internal product for an external record using the fixed
// key precedence: recorded external id, then barcode, then internal code.
// First hit wins. A tie at any level is reported as ambiguous rather than
// resolved, so reconciliation stays reproducible for identical inputs.
func (idx *CatalogIndex) Match(record *ExternalRecord) MatchResult {
	if record.ExternalID != "" {
		if result, hit := matchLevel(idx.byExternalID[record.ExternalID], MatchKeyExternalID); hit {
			return result
		}
	}
	if record.Barcode != "" {
		if result, hit := matchLevel(idx.byBarcode[record.Barcode], MatchKeyBarcode); hit {
			return result
		}
	}
	if record.InternalCodeHint != "" {
		if result, hit := matchLevel(idx.byCode[strings.ToUpper(record.InternalCodeHint)], MatchKeyCode); hit {
			return result
		}
	}
	return MatchResult{}
}

func matchLevel(candidates []*catalog.Product, key MatchKey) (MatchResult, bool) {
	switch len(candidates) {
	case 0:
		return MatchResult{}, false
	case 1:
		return MatchResult{Product: candidates[0], MatchedBy: key}, true
	default:
		return MatchResult{MatchedBy: key, Ambiguous: true}, true
	}
}
