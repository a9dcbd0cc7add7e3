// Package planner turns raw query parameters into a store plan:
// Normalize -> Validate -> Build. Every step is pure and safe for
// concurrent use.
package planner

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"docquery-service/internal/domain"
)

// Reserved query keys.
const (
	KeyTerm    = "q"
	KeySort    = "sort"
	KeyOrder   = "order"
	KeyPage    = "page"
	KeyPerPage = "per_page"
)

// Bound keys carry the map search rectangle.
const (
	KeyLat1 = "lat1"
	KeyLon1 = "lon1"
	KeyLat2 = "lat2"
	KeyLon2 = "lon2"
)

const (
	rangeSuffix     = "_range"
	dateRangeSuffix = "_dateRange"
)

var boundKeys = []string{KeyLat1, KeyLon1, KeyLat2, KeyLon2}

// dateLayouts are tried in order for _dateRange halves.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Normalize splits params into the reserved keys, compound range filters
// and plain filters. With mapSearch set, the bound keys are moved out of the
// filter set into GeoParams.
//
// Malformed range fragments are dropped. Nothing here fails; the
// validator reports everything else.
func Normalize(params domain.Params, mapSearch bool) domain.Intent {
	in := domain.Intent{
		Filters: make(map[string]domain.FilterValue),
		Geo:     mapSearch,
	}
	if mapSearch {
		in.GeoParams = make(map[string]string, len(boundKeys))
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		values := params[key]
		first := ""
		if len(values) > 0 {
			first = values[0]
		}

		switch key {
		case KeyTerm:
			in.Term = strings.TrimSpace(first)
			continue
		case KeySort:
			in.Sort = strings.TrimSpace(first)
			continue
		case KeyOrder:
			in.Order = strings.TrimSpace(first)
			continue
		case KeyPage:
			in.Page = strings.TrimSpace(first)
			continue
		case KeyPerPage:
			in.PerPage = strings.TrimSpace(first)
			continue
		}

		if mapSearch && isBoundKey(key) {
			in.GeoParams[key] = strings.TrimSpace(first)
			continue
		}

		if name, ok := cutSuffix(key, rangeSuffix); ok {
			if r, ok := parseNumberRange(first); ok {
				in.Filters[name] = r
			}
			continue
		}

		if name, ok := cutSuffix(key, dateRangeSuffix); ok {
			if r, ok := parseDateRange(first); ok {
				in.Filters[name] = r
			}
			continue
		}

		raw := make(domain.RawValue, 0, len(values))
		for _, v := range values {
			if v != "" {
				raw = append(raw, v)
			}
		}
		if len(raw) > 0 {
			in.Filters[key] = raw
		}
	}

	return in
}

// parseNumberRange reads "min,max". The halves are swapped when reversed.
func parseNumberRange(value string) (domain.NumberRange, bool) {
	lo, hi, ok := splitPair(value)
	if !ok {
		return domain.NumberRange{}, false
	}
	minV, err := strconv.ParseFloat(lo, 64)
	if err != nil || math.IsNaN(minV) {
		return domain.NumberRange{}, false
	}
	maxV, err := strconv.ParseFloat(hi, 64)
	if err != nil || math.IsNaN(maxV) {
		return domain.NumberRange{}, false
	}
	if minV > maxV {
		minV, maxV = maxV, minV
	}
	return domain.NumberRange{Min: minV, Max: maxV}, true
}

// parseDateRange reads "first,second". The second half becomes the lower
// bound and the first half the upper bound. The halves are never swapped.
func parseDateRange(value string) (domain.DateRange, bool) {
	first, second, ok := splitPair(value)
	if !ok {
		return domain.DateRange{}, false
	}
	a, ok := parseDate(first)
	if !ok {
		return domain.DateRange{}, false
	}
	b, ok := parseDate(second)
	if !ok {
		return domain.DateRange{}, false
	}
	return domain.DateRange{Min: b, Max: a}, true
}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func splitPair(value string) (string, string, bool) {
	a, b, ok := strings.Cut(value, ",")
	if !ok {
		return "", "", false
	}
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == "" || b == "" {
		return "", "", false
	}
	return a, b, true
}

func cutSuffix(key, suffix string) (string, bool) {
	name, ok := strings.CutSuffix(key, suffix)
	if !ok || name == "" {
		return "", false
	}
	return name, true
}

func isBoundKey(key string) bool {
	for _, k := range boundKeys {
		if k == key {
			return true
		}
	}
	return false
}
