package memstore

import (
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"docquery-service/internal/domain"
)

// match reports whether the JSON document raw satisfies e.
func match(raw string, e domain.Expr) (bool, error) {
	switch x := e.(type) {
	case domain.And:
		for _, sub := range x {
			ok, err := match(raw, sub)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil

	case domain.Or:
		for _, sub := range x {
			ok, err := match(raw, sub)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil

	case domain.Contains:
		needle := strings.ToLower(x.Value)
		return anyValue(get(raw, x.Field), func(v gjson.Result) bool {
			return v.Type == gjson.String && strings.Contains(strings.ToLower(v.Str), needle)
		}), nil

	case domain.Equals:
		return anyValue(get(raw, x.Field), func(v gjson.Result) bool { return equal(v, x.Value) }), nil

	case domain.In:
		return anyValue(get(raw, x.Field), func(v gjson.Result) bool {
			for _, want := range x.Values {
				if equal(v, want) {
					return true
				}
			}
			return false
		}), nil

	case domain.Between:
		return anyValue(get(raw, x.Field), func(v gjson.Result) bool { return between(v, x.Min, x.Max) }), nil

	case domain.ArrayContains:
		return arrayHas(get(raw, x.Field), x.Value), nil

	case domain.ArrayContainsAll:
		arr := get(raw, x.Field)
		if !arr.IsArray() || len(x.Values) == 0 {
			return false, nil
		}
		for _, want := range x.Values {
			if !arrayHas(arr, want) {
				return false, nil
			}
		}
		return true, nil

	case domain.ElemMatch:
		arr := get(raw, x.Field)
		if !arr.IsArray() {
			return false, nil
		}
		for _, elem := range arr.Array() {
			ok, err := match(elem.Raw, x.Cond)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil

	case domain.Within:
		pair := get(raw, x.Field).Array()
		if len(pair) != 2 || pair[0].Type != gjson.Number || pair[1].Type != gjson.Number {
			return false, nil
		}
		return x.Box.Contains(pair[1].Num, pair[0].Num), nil

	default:
		return false, fmt.Errorf("unsupported expression %T", e)
	}
}

// get reads a dotted path. Path separators other than '.' are escaped so
// gjson treats field names literally.
func get(raw, path string) gjson.Result {
	return gjson.Get(raw, escapePath(path))
}

func escapePath(path string) string {
	var b strings.Builder
	for _, r := range path {
		switch r {
		case '*', '?', '|', '#', '@', '\\', '!', '=', '<', '>', '%':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// anyValue applies pred to a scalar, or to each element of an array.
func anyValue(v gjson.Result, pred func(gjson.Result) bool) bool {
	if !v.Exists() {
		return false
	}
	if v.IsArray() {
		for _, e := range v.Array() {
			if pred(e) {
				return true
			}
		}
		return false
	}
	return pred(v)
}

func arrayHas(arr gjson.Result, want any) bool {
	if !arr.IsArray() {
		return false
	}
	for _, e := range arr.Array() {
		if equal(e, want) {
			return true
		}
	}
	return false
}

func equal(v gjson.Result, want any) bool {
	switch w := want.(type) {
	case string:
		return v.Type == gjson.String && v.Str == w
	case float64:
		return v.Type == gjson.Number && v.Num == w
	case bool:
		return (w && v.Type == gjson.True) || (!w && v.Type == gjson.False)
	case time.Time:
		t, ok := asTime(v)
		return ok && t.Equal(w)
	case domain.ReferenceID:
		return v.Type == gjson.String && strings.EqualFold(v.Str, w.String())
	default:
		return false
	}
}

func between(v gjson.Result, lo, hi any) bool {
	switch minV := lo.(type) {
	case float64:
		maxV, ok := hi.(float64)
		return ok && v.Type == gjson.Number && v.Num >= minV && v.Num <= maxV
	case time.Time:
		maxV, ok := hi.(time.Time)
		if !ok {
			return false
		}
		t, ok := asTime(v)
		return ok && !t.Before(minV) && !t.After(maxV)
	default:
		return false
	}
}

func asTime(v gjson.Result) (time.Time, bool) {
	if v.Type != gjson.String {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, v.Str)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// compare orders missing and null values first, then numbers, strings,
// objects and arrays, and booleans last.
func compare(a, b gjson.Result) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return ra - rb
	}
	switch ra {
	case rankNumber:
		switch {
		case a.Num < b.Num:
			return -1
		case a.Num > b.Num:
			return 1
		}
		return 0
	case rankString:
		return strings.Compare(a.Str, b.Str)
	case rankBool:
		switch {
		case a.Type == b.Type:
			return 0
		case a.Type == gjson.False:
			return -1
		}
		return 1
	default:
		return strings.Compare(a.Raw, b.Raw)
	}
}

const (
	rankNull = iota
	rankNumber
	rankString
	rankObject
	rankBool
)

func rank(v gjson.Result) int {
	switch v.Type {
	case gjson.Null:
		return rankNull
	case gjson.Number:
		return rankNumber
	case gjson.String:
		return rankString
	case gjson.True, gjson.False:
		return rankBool
	default:
		return rankObject
	}
}
