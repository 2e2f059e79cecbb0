package sync

import (
	"encoding/json"
	"strconv"

	"github.com/petshop/backend/internal/domain/catalog"
)

// Decision reasons surfaced on job items
const (
	ReasonInvalidRecord  = "invalid record"
	ReasonAmbiguousMatch = "ambiguous match"
	ReasonLocalEdit      = "concurrent local edit"
)

// FieldChange is one differing tracked field between the external record
// and the matched internal product.
type FieldChange struct {
	Field    string `json:"field"`
	OldValue string `json:"old_value"`
	NewValue string `json:"new_value"`
}

// Decision is the outcome of diffing one external record against its match
type Decision struct {
	Action         ItemAction
	Reason         string
	Record         *ExternalRecord
	Match          MatchResult
	Changes        []FieldChange
	BeforeSnapshot string
	AfterSnapshot  string
}

// InternalCode returns the matched product's code, or the record's hint
func (d *Decision) InternalCode() string {
	if d.Match.Product != nil {
		return d.Match.Product.Code
	}
	return d.Record.InternalCodeHint
}

// PriceChanged reports whether the decision includes a price or cost change
func (d *Decision) PriceChanged() bool {
	for _, c := range d.Changes {
		if c.Field == catalog.FieldPrice || c.Field == catalog.FieldCost {
			return true
		}
	}
	return false
}

// Decide classifies the required action for one record. The rules are
// evaluated strictly in order:
//
//  1. invalid record -> Skip; ambiguous match -> Skip
//  2. no match -> Insert
//  3. match edited locally after the source's last successful sync, with
//     differing field values -> Conflict (no mutation)
//  4. no field differences -> Unchanged
//  5. otherwise -> Update, with every differing field recorded
//
// Price and cost comparisons are exact on integer minor-currency units.
// The margin is derived and never compared.
func Decide(record *ExternalRecord, match MatchResult, source *Source) *Decision {
	d := &Decision{Record: record, Match: match}

	if !record.Valid() {
		d.Action = ActionSkip
		d.Reason = ReasonInvalidRecord
		return d
	}
	if match.Ambiguous {
		d.Action = ActionSkip
		d.Reason = ReasonAmbiguousMatch
		return d
	}

	if match.Product == nil {
		d.Action = ActionInsert
		d.AfterSnapshot = recordSnapshot(record)
		return d
	}

	d.Changes = diffTrackedFields(record, match.Product)
	if len(d.Changes) == 0 {
		d.Action = ActionUnchanged
		return d
	}

	if source.LastSyncAt != nil && match.Product.EditedLocallyAfter(*source.LastSyncAt) {
		d.Action = ActionConflict
		d.Reason = ReasonLocalEdit
		d.BeforeSnapshot = productSnapshot(match.Product)
		d.AfterSnapshot = recordSnapshot(record)
		return d
	}

	d.Action = ActionUpdate
	d.BeforeSnapshot = productSnapshot(match.Product)
	d.AfterSnapshot = recordSnapshot(record)
	return d
}

// diffTrackedFields compares the tracked field set: name, price, cost,
// stock and active flag.
func diffTrackedFields(record *ExternalRecord, product *catalog.Product) []FieldChange {
	var changes []FieldChange

	if record.Name != product.Name {
		changes = append(changes, FieldChange{
			Field:    catalog.FieldName,
			OldValue: product.Name,
			NewValue: record.Name,
		})
	}
	if record.PriceCents != product.PriceCents {
		changes = append(changes, FieldChange{
			Field:    catalog.FieldPrice,
			OldValue: strconv.FormatInt(product.PriceCents, 10),
			NewValue: strconv.FormatInt(record.PriceCents, 10),
		})
	}
	if record.CostCents != product.CostCents {
		changes = append(changes, FieldChange{
			Field:    catalog.FieldCost,
			OldValue: strconv.FormatInt(product.CostCents, 10),
			NewValue: strconv.FormatInt(record.CostCents, 10),
		})
	}
	if record.Stock != product.Stock {
		changes = append(changes, FieldChange{
			Field:    catalog.FieldStock,
			OldValue: strconv.FormatInt(product.Stock, 10),
			NewValue: strconv.FormatInt(record.Stock, 10),
		})
	}
	if record.Active != product.IsActive() {
		changes = append(changes, FieldChange{
			Field:    catalog.FieldActive,
			OldValue: strconv.FormatBool(product.IsActive()),
			NewValue: strconv.FormatBool(record.Active),
		})
	}
	return changes
}

type fieldSnapshot struct {
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
	CostCents  int64  `json:"cost_cents"`
	Stock      int64  `json:"stock"`
	Active     bool   `json:"active"`
}

func productSnapshot(p *catalog.Product) string {
	data, err := json.Marshal(fieldSnapshot{
		Name:       p.Name,
		PriceCents: p.PriceCents,
		CostCents:  p.CostCents,
		Stock:      p.Stock,
		Active:     p.IsActive(),
	})
	if err != nil {
		return ""
	}
	return string(data)
}

func recordSnapshot(r *ExternalRecord) string {
	data, err := json.Marshal(fieldSnapshot{
		Name:       r.Name,
		PriceCents: r.PriceCents,
		CostCents:  r.CostCents,
		Stock:      r.Stock,
		Active:     r.Active,
	})
	if err != nil {
		return ""
	}
	return string(data)
}
