package domain

import "time"

// Params is a decoded query string. Repeated keys carry several values.
type Params map[string][]string

// Get returns the first value for key, or "".
func (p Params) Get(key string) string {
	if vs := p[key]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// Set replaces the values for key.
func (p Params) Set(key, value string) {
	p[key] = []string{value}
}

// Clone returns a copy that can be modified without touching p.
func (p Params) Clone() Params {
	c := make(Params, len(p))
	for k, vs := range p {
		c[k] = append([]string(nil), vs...)
	}
	return c
}

// FilterValue is the normalized value of one requested filter.
type FilterValue interface {
	filterValue()
}

// RawValue is a plain filter value. A single entry is a scalar; several
// entries come from a repeated query key.
type RawValue []string

// Scalar reports whether the value holds exactly one entry.
func (v RawValue) Scalar() bool { return len(v) == 1 }

// NumberRange comes from a <field>_range parameter. Min <= Max always holds.
type NumberRange struct {
	Min float64
	Max float64
}

// DateRange comes from a <field>_dateRange parameter.
type DateRange struct {
	Min time.Time
	Max time.Time
}

func (RawValue) filterValue()    {}
func (NumberRange) filterValue() {}
func (DateRange) filterValue()   {}

// SortOrder is a sort direction: 1 ascending, -1 descending.
type SortOrder int

const (
	SortAscending  SortOrder = 1
	SortDescending SortOrder = -1
)

// Intent is a request after normalization and before validation.
// Page, per-page, sort order and bound components are kept as text
// until the validator parses them.
type Intent struct {
	Term    string
	Filters map[string]FilterValue
	Sort    string
	Order   string
	Page    string
	PerPage string

	// Map search only.
	Geo       bool
	GeoParams map[string]string // lat1, lon1, lat2, lon2
}

// OrderTerm is one sort key on a dotted document path.
type OrderTerm struct {
	Path      string
	Direction SortOrder
}

// PopulateDirective resolves the references stored at Path from Collection.
// Match, when non-empty, constrains the referenced documents.
type PopulateDirective struct {
	Path       string
	Collection string
	Match      []Expr
}

// Plan is a fully resolved store query.
type Plan struct {
	Collection string
	Filter     Expr
	Order      []OrderTerm
	Populate   []PopulateDirective
	Skip       int
	Limit      int // 0 means no limit
}

// Document is one stored entity document.
type Document map[string]any

// ResultPage is the outcome of a search. TotalCount is nil when the count
// query failed while the fetch succeeded.
type ResultPage struct {
	Items      []Document
	TotalCount *int64
	Page       int
	PageSize   int
}
