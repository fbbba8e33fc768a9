package enrich

import (
	"sort"
	"strings"

	"github.com/yourorg/vacants-enricher/internal/canon"
)

// Store fields the pipeline reads or fills.
const (
	FieldAddress   = "Address"
	FieldLat       = "lat"
	FieldLng       = "lng"
	FieldGeoJSON   = "geojson"
	FieldTaxStatus = "tax_status"
)

// Values of FieldTaxStatus. Only TaxSuccess is written by this pipeline; the
// others may exist on records written by earlier tooling.
const (
	TaxSuccess        = "Success"
	TaxNoAccountFound = "NoAccountFound"
	TaxFailed         = "Failed"
	TaxError          = "Error"
)

// Record is one property row in the shared store.
type Record struct {
	ID     string
	Fields map[string]any
}

// Has reports whether field holds a non-empty value.
func (r Record) Has(field string) bool {
	if r.Fields == nil {
		return false
	}
	v, ok := r.Fields[field]
	return ok && present(v)
}

// Text returns the field as trimmed text, or "" when absent.
func (r Record) Text(field string) string {
	if !r.Has(field) {
		return ""
	}
	switch v := r.Fields[field].(type) {
	case string:
		return strings.TrimSpace(v)
	default:
		return canon.Identifier(v)
	}
}

func present(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(t) != ""
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		return true
	}
}

// Keys names the columns that may hold a record's block and lot. The first
// non-empty column wins.
type Keys struct {
	BlockFields []string
	LotFields   []string
}

// DefaultKeys matches the column names seen in the Vacants table over time.
var DefaultKeys = Keys{
	BlockFields: []string{"Block", "Block #", "Block Number", "BlockNumber"},
	LotFields:   []string{"Lot", "Lot #", "Lot Number", "LotNumber"},
}

// BlockLot returns the record's block and lot as text. Zero Keys read the
// DefaultKeys columns.
func (k Keys) BlockLot(r Record) (block, lot string) {
	if len(k.BlockFields) == 0 && len(k.LotFields) == 0 {
		k = DefaultKeys
	}
	return k.first(r, k.BlockFields), k.first(r, k.LotFields)
}

func (k Keys) first(r Record, names []string) string {
	for _, n := range names {
		if r.Has(n) {
			if s := canon.Identifier(r.Fields[n]); s != "" {
				return s
			}
		}
	}
	return ""
}

// UpdateSet is the merge-patch for one record: only fields that were absent
// and that some source found.
type UpdateSet map[string]any

func (u UpdateSet) Empty() bool { return len(u) == 0 }

// Fields returns the field names in sorted order.
func (u UpdateSet) Fields() []string {
	out := make([]string, 0, len(u))
	for k := range u {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
