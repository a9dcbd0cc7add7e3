// Package domain contains the search engine's core types: entity descriptors,
// filter expressions, query plans and result pages.
// This package has no infrastructure dependencies.
package domain

import (
	"sort"
	"strings"
)

// SearchShape is the value shape of a searchable field.
type SearchShape string

const (
	// SearchShapeString matches the term against a plain string field.
	SearchShapeString SearchShape = "string"
	// SearchShapeObjectArray matches the term against a sub-field of every
	// element of an array of objects. The field is named <outer>_<inner>.
	SearchShapeObjectArray SearchShape = "objectArray"
)

// SortKind is the declared value kind of a sortable field.
type SortKind string

const (
	SortKindString SortKind = "string"
	SortKindNumber SortKind = "number"
	SortKindDate   SortKind = "date"
	// SortKindObject sorts on <outer>.<inner> for a field named <outer>_<inner>.
	SortKindObject SortKind = "object"
)

// FilterKind names a filter type as written in descriptor files.
type FilterKind string

const (
	FilterKindString         FilterKind = "string"
	FilterKindRange          FilterKind = "range"
	FilterKindArray          FilterKind = "array"
	FilterKindArrayObjectIDs FilterKind = "arrayObjectIds"
	FilterKindBool           FilterKind = "bool"
	FilterKindObject         FilterKind = "object"
	FilterKindObjectID       FilterKind = "objectId"
	FilterKindRefObject      FilterKind = "refObject"
)

// FilterType is the declared semantic type of a filterable field.
// The set of implementations is closed; see the concrete types below.
type FilterType interface {
	Kind() FilterKind
	filterType()
}

// StringFilter matches a case-insensitive substring, or any of several values.
type StringFilter struct{}

// RangeFilter matches an inclusive numeric or date range.
type RangeFilter struct{}

// ArrayFilter matches arrays containing one or all of the given elements.
type ArrayFilter struct{}

// ArrayObjectIDsFilter is ArrayFilter over reference ids.
type ArrayObjectIDsFilter struct{}

// BoolFilter matches true for "true" and false for anything else.
type BoolFilter struct{}

// ObjectIDFilter matches a reference id exactly.
type ObjectIDFilter struct{}

// ObjectFilter matches elements of an array of sub-documents stored at Outer
// whose Inner field satisfies the inner type Of.
type ObjectFilter struct {
	Outer string
	Inner string
	Of    FilterType
}

// RefObjectFilter filters the entity referenced at Path on its Field.
// It never reaches the main filter expression; it becomes a population match.
type RefObjectFilter struct {
	Path  string
	Field string
	Of    FilterType
}

func (StringFilter) Kind() FilterKind         { return FilterKindString }
func (RangeFilter) Kind() FilterKind          { return FilterKindRange }
func (ArrayFilter) Kind() FilterKind          { return FilterKindArray }
func (ArrayObjectIDsFilter) Kind() FilterKind { return FilterKindArrayObjectIDs }
func (BoolFilter) Kind() FilterKind           { return FilterKindBool }
func (ObjectIDFilter) Kind() FilterKind       { return FilterKindObjectID }
func (ObjectFilter) Kind() FilterKind         { return FilterKindObject }
func (RefObjectFilter) Kind() FilterKind      { return FilterKindRefObject }

func (StringFilter) filterType()         {}
func (RangeFilter) filterType()          {}
func (ArrayFilter) filterType()          {}
func (ArrayObjectIDsFilter) filterType() {}
func (BoolFilter) filterType()           {}
func (ObjectIDFilter) filterType()       {}
func (ObjectFilter) filterType()         {}
func (RefObjectFilter) filterType()      {}

// ScalarFilterType returns the non-nested filter type for kind.
// Nested kinds (object, refObject) and unknown kinds return false.
func ScalarFilterType(kind FilterKind) (FilterType, bool) {
	switch kind {
	case FilterKindString:
		return StringFilter{}, true
	case FilterKindRange:
		return RangeFilter{}, true
	case FilterKindArray:
		return ArrayFilter{}, true
	case FilterKindArrayObjectIDs:
		return ArrayObjectIDsFilter{}, true
	case FilterKindBool:
		return BoolFilter{}, true
	case FilterKindObjectID:
		return ObjectIDFilter{}, true
	default:
		return nil, false
	}
}

// Descriptor is the static search metadata of one entity.
// It is built once at startup and never mutated afterwards.
type Descriptor struct {
	Entity        string
	Collection    string
	SearchFields  map[string]SearchShape
	FilterFields  map[string]FilterType
	SortFields    map[string]SortKind
	LocationField string
	References    []string
	Joins         map[string]string // reference field -> target collection
}

// GeoSearchable reports whether map searches are allowed on the entity.
func (d *Descriptor) GeoSearchable() bool {
	return d.LocationField != ""
}

// SearchFieldNames returns the searchable field names in a stable order.
func (d *Descriptor) SearchFieldNames() []string {
	return sortedKeys(d.SearchFields)
}

// FilterFieldNames returns the filterable field names in a stable order.
func (d *Descriptor) FilterFieldNames() []string {
	return sortedKeys(d.FilterFields)
}

// SortFieldNames returns the sortable field names in a stable order.
func (d *Descriptor) SortFieldNames() []string {
	return sortedKeys(d.SortFields)
}

// SplitNested splits an <outer>_<inner> field name on its first underscore.
func SplitNested(name string) (outer, inner string, ok bool) {
	outer, inner, ok = strings.Cut(name, "_")
	if !ok || outer == "" || inner == "" {
		return "", "", false
	}
	return outer, inner, true
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
