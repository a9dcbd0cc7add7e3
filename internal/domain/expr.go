package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"docquery-service/internal/geo"
)

// Expr is a store-native filter expression. Stores translate it into their
// own query language; String renders it in a Mongo-like notation for logs.
//
// Field names are dotted paths relative to the document, or relative to the
// array element when the expression sits inside an ElemMatch. The special
// field IDField addresses the document id.
type Expr interface {
	fmt.Stringer
	expr()
}

// IDField is the field name that addresses a document's reference id.
const IDField = "_id"

// Contains matches a case-insensitive substring of a string field.
type Contains struct {
	Field string
	Value string
}

// Equals matches a field exactly. Value is a string, float64, bool,
// time.Time or ReferenceID.
type Equals struct {
	Field string
	Value any
}

// In matches a field equal to any of Values.
type In struct {
	Field  string
	Values []any
}

// Between matches Min <= field <= Max. Min and Max are both float64 or both
// time.Time.
type Between struct {
	Field string
	Min   any
	Max   any
}

// ArrayContains matches an array field holding Value.
type ArrayContains struct {
	Field string
	Value any
}

// ArrayContainsAll matches an array field holding every one of Values.
type ArrayContainsAll struct {
	Field  string
	Values []any
}

// ElemMatch matches an array of sub-documents with at least one element
// satisfying Cond. Cond's fields are relative to the element.
type ElemMatch struct {
	Field string
	Cond  Expr
}

// Within matches a [lon, lat] coordinate pair lying inside Box.
type Within struct {
	Field string
	Box   geo.Box
}

// And matches when every expression matches. An empty And matches everything.
type And []Expr

// Or matches when any expression matches.
type Or []Expr

func (Contains) expr()         {}
func (Equals) expr()           {}
func (In) expr()               {}
func (Between) expr()          {}
func (ArrayContains) expr()    {}
func (ArrayContainsAll) expr() {}
func (ElemMatch) expr()        {}
func (Within) expr()           {}
func (And) expr()              {}
func (Or) expr()               {}

func (e Contains) String() string {
	return fmt.Sprintf("{%s: {$regex: %q, $options: \"i\"}}", e.Field, e.Value)
}

func (e Equals) String() string {
	return fmt.Sprintf("{%s: %s}", e.Field, formatValue(e.Value))
}

func (e In) String() string {
	return fmt.Sprintf("{%s: {$in: %s}}", e.Field, formatValues(e.Values))
}

func (e Between) String() string {
	return fmt.Sprintf("{%s: {$gte: %s, $lte: %s}}", e.Field, formatValue(e.Min), formatValue(e.Max))
}

func (e ArrayContains) String() string {
	return fmt.Sprintf("{%s: {$elemMatch: {$eq: %s}}}", e.Field, formatValue(e.Value))
}

func (e ArrayContainsAll) String() string {
	return fmt.Sprintf("{%s: {$all: %s}}", e.Field, formatValues(e.Values))
}

func (e ElemMatch) String() string {
	return fmt.Sprintf("{%s: {$elemMatch: %s}}", e.Field, e.Cond)
}

func (e Within) String() string {
	return fmt.Sprintf("{%s: {$within: {$box: [[%g, %g], [%g, %g]]}}}",
		e.Field, e.Box.MinLon, e.Box.MinLat, e.Box.MaxLon, e.Box.MaxLat)
}

func (e And) String() string {
	if len(e) == 0 {
		return "{}"
	}
	return "{$and: " + joinExprs(e) + "}"
}

func (e Or) String() string {
	return "{$or: " + joinExprs(e) + "}"
}

func joinExprs(exprs []Expr) string {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		parts[i] = e.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func formatValues(values []any) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = formatValue(v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func formatValue(v any) string {
	switch val := v.(type) {
	case string:
		return fmt.Sprintf("%q", val)
	case time.Time:
		return fmt.Sprintf("ISODate(%q)", val.UTC().Format(time.RFC3339Nano))
	case ReferenceID:
		return fmt.Sprintf("ObjectId(%q)", val.String())
	default:
		return fmt.Sprintf("%v", val)
	}
}

// Key returns a canonical encoding of e. Two expressions with the same key
// match the same documents. Unlike String, values keep full precision and
// field names are quoted.
func Key(e Expr) string {
	var b strings.Builder
	writeKey(&b, e)
	return b.String()
}

func writeKey(b *strings.Builder, e Expr) {
	switch x := e.(type) {
	case nil:
		b.WriteString("nil")
	case And:
		writeKeyList(b, "and", x)
	case Or:
		writeKeyList(b, "or", x)
	case Contains:
		fmt.Fprintf(b, "contains(%q,%q)", x.Field, x.Value)
	case Equals:
		fmt.Fprintf(b, "eq(%q,%s)", x.Field, keyValue(x.Value))
	case In:
		fmt.Fprintf(b, "in(%q,%s)", x.Field, keyValues(x.Values))
	case Between:
		fmt.Fprintf(b, "between(%q,%s,%s)", x.Field, keyValue(x.Min), keyValue(x.Max))
	case ArrayContains:
		fmt.Fprintf(b, "has(%q,%s)", x.Field, keyValue(x.Value))
	case ArrayContainsAll:
		fmt.Fprintf(b, "hasAll(%q,%s)", x.Field, keyValues(x.Values))
	case ElemMatch:
		fmt.Fprintf(b, "elem(%q,", x.Field)
		writeKey(b, x.Cond)
		b.WriteByte(')')
	case Within:
		fmt.Fprintf(b, "within(%q,%s,%s,%s,%s)", x.Field,
			keyValue(x.Box.MinLat), keyValue(x.Box.MinLon), keyValue(x.Box.MaxLat), keyValue(x.Box.MaxLon))
	default:
		fmt.Fprintf(b, "%T%#v", e, e)
	}
}

func writeKeyList(b *strings.Builder, op string, exprs []Expr) {
	b.WriteString(op)
	b.WriteByte('(')
	for i, e := range exprs {
		if i > 0 {
			b.WriteByte(',')
		}
		writeKey(b, e)
	}
	b.WriteByte(')')
}

func keyValues(values []any) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = keyValue(v)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func keyValue(v any) string {
	switch val := v.(type) {
	case string:
		return strconv.Quote(val)
	case float64:
		return "n:" + strconv.FormatFloat(val, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case time.Time:
		return "t:" + val.UTC().Format(time.RFC3339Nano)
	case ReferenceID:
		return "id:" + val.String()
	default:
		return fmt.Sprintf("%T:%#v", val, val)
	}
}
