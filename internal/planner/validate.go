package planner

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"docquery-service/internal/domain"
	"docquery-service/internal/geo"
)

const (
	// MaxPageSize caps per_page.
	MaxPageSize = 50
	// DefaultMapPageSize applies to map searches sent without a page.
	DefaultMapPageSize = 50
)

// Condition is one compiled filter. JoinPath is set for filters on a
// referenced entity; their Expr applies to the referenced document.
type Condition struct {
	Field    string
	Type     domain.FilterType
	Expr     domain.Expr
	JoinPath string
}

// SortSpec is the single requested sort key.
type SortSpec struct {
	Field     string
	Kind      domain.SortKind
	Direction domain.SortOrder
}

// Validated is an intent checked against its descriptor.
type Validated struct {
	Descriptor *domain.Descriptor
	Term       string
	Conditions []Condition // ordered by field
	Sort       *SortSpec
	Page       int
	PageSize   int
	Bounds     *geo.Box
}

// Validate checks in against desc and compiles every filter value.
// All problems are collected into a single *domain.ValidationError.
func Validate(desc *domain.Descriptor, in domain.Intent) (*Validated, error) {
	verr := &domain.ValidationError{}
	v := &Validated{Descriptor: desc, Term: in.Term}

	if v.Term != "" && len(desc.SearchFields) == 0 {
		verr.Add(fmt.Sprintf("%s has no searchable fields", desc.Entity), nil)
	}

	for _, name := range sortedFilterNames(in.Filters) {
		ft, ok := desc.FilterFields[name]
		if !ok {
			verr.Add(fmt.Sprintf("%s does not list `%s` field as filterable", desc.Entity, name), nil)
			continue
		}
		cond, err := compileFilter(name, ft, in.Filters[name])
		if err != nil {
			verr.Add(err.Error(), err)
			continue
		}
		v.Conditions = append(v.Conditions, cond)
	}

	v.Sort = validateSort(desc, in, verr)
	v.Page, v.PageSize = validatePaging(in, verr)

	if in.Geo {
		if !desc.GeoSearchable() {
			verr.Add(fmt.Sprintf("%s has no locationField configured for map search", desc.Entity), nil)
		}
		if box, ok := validateBounds(in.GeoParams, verr); ok {
			v.Bounds = &box
		}
	}

	if err := verr.ErrOrNil(); err != nil {
		return nil, err
	}
	return v, nil
}

func validateSort(desc *domain.Descriptor, in domain.Intent, verr *domain.ValidationError) *SortSpec {
	if in.Sort == "" {
		return nil
	}

	kind, ok := desc.SortFields[in.Sort]
	if !ok {
		verr.Add(fmt.Sprintf("%s does not list `%s` field as sortable", desc.Entity, in.Sort), nil)
		return nil
	}

	dir := domain.SortAscending
	if in.Order != "" {
		n, err := strconv.Atoi(in.Order)
		if err != nil || (n != int(domain.SortAscending) && n != int(domain.SortDescending)) {
			verr.Add(fmt.Sprintf("%s sort order value can be 1 or -1, got %q", in.Sort, in.Order), nil)
			return nil
		}
		dir = domain.SortOrder(n)
	}

	return &SortSpec{Field: in.Sort, Kind: kind, Direction: dir}
}

// validatePaging applies the page rules. A blank page resets paging to the
// first page: no limit for plain searches, DefaultMapPageSize for map
// searches. per_page is ignored in that case.
func validatePaging(in domain.Intent, verr *domain.ValidationError) (page, size int) {
	if in.Page == "" {
		if in.Geo {
			return 1, DefaultMapPageSize
		}
		return 1, 0
	}

	page, err := strconv.Atoi(in.Page)
	if err != nil || page < 1 {
		verr.Add(fmt.Sprintf("page must be a positive integer, got %q", in.Page), nil)
		page = 1
	}

	if in.PerPage != "" {
		size, err = strconv.Atoi(in.PerPage)
		if err != nil || size < 0 {
			verr.Add(fmt.Sprintf("per_page must be a non-negative integer, got %q", in.PerPage), nil)
			size = 0
		}
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	// The skip offset, size*(page-1), must fit in an int.
	if size > 0 && page-1 > math.MaxInt/size {
		verr.Add(fmt.Sprintf("page %d is out of range for per_page %d", page, size), nil)
		page = 1
	}
	return page, size
}

// validateBounds reads lat1/lon1 (south-west) and lat2/lon2 (north-east).
// Latitudes given in reverse are swapped. lon1 > lon2 describes a box
// crossing the antimeridian.
func validateBounds(params map[string]string, verr *domain.ValidationError) (geo.Box, bool) {
	var vals [4]float64
	ok := true
	for i, key := range boundKeys {
		raw, present := params[key]
		if !present || raw == "" {
			verr.Add(fmt.Sprintf("map search requires %s", key), nil)
			ok = false
			continue
		}
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			verr.Add(fmt.Sprintf("%s must be a number, got %q", key, raw), nil)
			ok = false
			continue
		}
		limit := 180.0
		if key == KeyLat1 || key == KeyLat2 {
			limit = 90
		}
		if math.Abs(f) > limit {
			verr.Add(fmt.Sprintf("%s must be within [-%g, %g], got %g", key, limit, limit, f), nil)
			ok = false
			continue
		}
		vals[i] = f
	}
	if !ok {
		return geo.Box{}, false
	}

	box := geo.Box{MinLat: vals[0], MinLon: vals[1], MaxLat: vals[2], MaxLon: vals[3]}
	if box.MinLat > box.MaxLat {
		box.MinLat, box.MaxLat = box.MaxLat, box.MinLat
	}
	return box, true
}

func sortedFilterNames(filters map[string]domain.FilterValue) []string {
	names := make([]string, 0, len(filters))
	for k := range filters {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
