package postgres

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"

	"docquery-service/internal/domain"
)

// rootColumn holds the document body.
const rootColumn = "data"

// marker stands in for a bound argument until the fragment is complete,
// so arguments can be bound in any order while the SQL is assembled.
var marker = regexp.MustCompile("\x00([0-9]+)\x00")

// compiler turns a domain.Expr into a parameterized WHERE fragment over the
// JSONB document column. Field paths are bound as text[] parameters and
// never interpolated.
//
// Scalar predicates match a scalar value, or any element of an array value,
// through the doc_values function created by the migrations.
type compiler struct {
	args  []any
	alias int
}

// compileFilter returns the SQL fragment, with ? placeholders, and its
// arguments in placeholder order.
func compileFilter(e domain.Expr) (string, []any, error) {
	if e == nil {
		e = domain.And{}
	}
	c := &compiler{}
	sql, err := c.expr(rootColumn, e)
	if err != nil {
		return "", nil, err
	}

	ordered := make([]any, 0, len(c.args))
	sql = marker.ReplaceAllStringFunc(sql, func(m string) string {
		i, _ := strconv.Atoi(strings.Trim(m, "\x00"))
		ordered = append(ordered, c.args[i])
		return "?"
	})
	return sql, ordered, nil
}

func (c *compiler) expr(root string, e domain.Expr) (string, error) {
	switch x := e.(type) {
	case domain.And:
		return c.join(root, x, " AND ", "TRUE")

	case domain.Or:
		return c.join(root, x, " OR ", "FALSE")

	case domain.Contains:
		v := c.next("v")
		cond := fmt.Sprintf("jsonb_typeof(%[1]s) = 'string' AND %[1]s #>> '{}' ILIKE %[2]s ESCAPE '\\'",
			v, c.bind(likePattern(x.Value)))
		return c.anyValue(root, x.Field, v, cond), nil

	case domain.Equals:
		lit, err := jsonLiteral(x.Value)
		if err != nil {
			return "", fmt.Errorf("%s: %w", x.Field, err)
		}
		v := c.next("v")
		return c.anyValue(root, x.Field, v, fmt.Sprintf("%s = %s::jsonb", v, c.bind(lit))), nil

	case domain.In:
		lits := make([]string, 0, len(x.Values))
		for _, val := range x.Values {
			lit, err := jsonLiteral(val)
			if err != nil {
				return "", fmt.Errorf("%s: %w", x.Field, err)
			}
			lits = append(lits, lit)
		}
		v := c.next("v")
		return c.anyValue(root, x.Field, v, fmt.Sprintf("%s = ANY(%s::jsonb[])", v, c.bind(pq.Array(lits)))), nil

	case domain.Between:
		v := c.next("v")
		cond, err := c.between(v, x)
		if err != nil {
			return "", err
		}
		return c.anyValue(root, x.Field, v, cond), nil

	case domain.ArrayContains:
		return c.containsAll(root, x.Field, []any{x.Value})

	case domain.ArrayContainsAll:
		if len(x.Values) == 0 {
			return "FALSE", nil
		}
		return c.containsAll(root, x.Field, x.Values)

	case domain.ElemMatch:
		src := c.next("a")
		elem := c.next("e")
		cond, err := c.expr(elem, x.Cond)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf(
			"EXISTS (SELECT 1 FROM (SELECT %[1]s AS p) AS %[2]s, "+
				"jsonb_array_elements(CASE WHEN jsonb_typeof(%[2]s.p) = 'array' THEN %[2]s.p ELSE '[]'::jsonb END) AS %[3]s "+
				"WHERE %[4]s)",
			c.path(root, x.Field), src, elem, cond), nil

	case domain.Within:
		return c.within(root, x), nil

	default:
		return "", fmt.Errorf("unsupported expression %T", e)
	}
}

func (c *compiler) join(root string, exprs []domain.Expr, sep, empty string) (string, error) {
	if len(exprs) == 0 {
		return empty, nil
	}
	parts := make([]string, 0, len(exprs))
	for _, sub := range exprs {
		s, err := c.expr(root, sub)
		if err != nil {
			return "", err
		}
		parts = append(parts, "("+s+")")
	}
	return strings.Join(parts, sep), nil
}

func (c *compiler) between(v string, x domain.Between) (string, error) {
	switch lo := x.Min.(type) {
	case float64:
		hi, ok := x.Max.(float64)
		if !ok {
			return "", fmt.Errorf("%s: mismatched range bounds %T and %T", x.Field, x.Min, x.Max)
		}
		return fmt.Sprintf("CASE WHEN jsonb_typeof(%[1]s) = 'number' THEN (%[1]s #>> '{}')::numeric BETWEEN %[2]s AND %[3]s ELSE FALSE END",
			v, c.bind(lo), c.bind(hi)), nil
	case time.Time:
		hi, ok := x.Max.(time.Time)
		if !ok {
			return "", fmt.Errorf("%s: mismatched range bounds %T and %T", x.Field, x.Min, x.Max)
		}
		return fmt.Sprintf("CASE WHEN jsonb_typeof(%[1]s) = 'string' THEN doc_timestamptz(%[1]s #>> '{}') BETWEEN %[2]s AND %[3]s ELSE FALSE END",
			v, c.bind(lo), c.bind(hi)), nil
	default:
		return "", fmt.Errorf("%s: unsupported range bounds %T", x.Field, x.Min)
	}
}

func (c *compiler) containsAll(root, field string, values []any) (string, error) {
	lit, err := jsonLiteral(values)
	if err != nil {
		return "", fmt.Errorf("%s: %w", field, err)
	}
	a := c.next("a")
	return fmt.Sprintf(
		"EXISTS (SELECT 1 FROM (SELECT %[1]s AS p) AS %[2]s WHERE jsonb_typeof(%[2]s.p) = 'array' AND %[2]s.p @> %[3]s::jsonb)",
		c.path(root, field), a, c.bind(lit)), nil
}

// within matches a [lon, lat] pair. A wrapped box accepts longitudes on
// either side of the antimeridian.
func (c *compiler) within(root string, x domain.Within) string {
	loc := c.next("l")
	lat := fmt.Sprintf("(%s.p ->> 1)::float8", loc)
	lon := fmt.Sprintf("(%s.p ->> 0)::float8", loc)

	latCond := fmt.Sprintf("%s BETWEEN %s AND %s", lat, c.bind(x.Box.MinLat), c.bind(x.Box.MaxLat))
	var lonCond string
	if x.Box.Wrapped() {
		lonCond = fmt.Sprintf("(%[1]s >= %[2]s OR %[1]s <= %[3]s)", lon, c.bind(x.Box.MinLon), c.bind(x.Box.MaxLon))
	} else {
		lonCond = fmt.Sprintf("%s BETWEEN %s AND %s", lon, c.bind(x.Box.MinLon), c.bind(x.Box.MaxLon))
	}

	return fmt.Sprintf(
		"EXISTS (SELECT 1 FROM (SELECT %[1]s AS p) AS %[2]s WHERE "+
			"CASE WHEN jsonb_typeof(%[2]s.p -> 0) = 'number' AND jsonb_typeof(%[2]s.p -> 1) = 'number' "+
			"THEN %[3]s AND %[4]s ELSE FALSE END)",
		c.path(root, x.Field), loc, latCond, lonCond)
}

// anyValue wraps cond, written against the alias v, so it holds for the
// value at field or for any element when that value is an array.
func (c *compiler) anyValue(root, field, v, cond string) string {
	return fmt.Sprintf("EXISTS (SELECT 1 FROM doc_values(%s) AS %s WHERE %s)", c.path(root, field), v, cond)
}

// path addresses field below root as a jsonb value.
func (c *compiler) path(root, field string) string {
	return fmt.Sprintf("(%s #> %s::text[])", root, c.bind(pq.Array(strings.Split(field, "."))))
}

func (c *compiler) bind(v any) string {
	c.args = append(c.args, v)
	return fmt.Sprintf("\x00%d\x00", len(c.args)-1)
}

func (c *compiler) next(prefix string) string {
	c.alias++
	return prefix + strconv.Itoa(c.alias)
}

// orderClause returns the ORDER BY list for terms. Insertion order breaks
// ties, so paging is stable.
func orderClause(terms []domain.OrderTerm) (string, []any) {
	parts := make([]string, 0, len(terms)+1)
	args := make([]any, 0, len(terms))
	for _, term := range terms {
		dir := "ASC NULLS FIRST"
		if term.Direction == domain.SortDescending {
			dir = "DESC NULLS LAST"
		}
		parts = append(parts, fmt.Sprintf("%s #> ?::text[] %s", rootColumn, dir))
		args = append(args, pq.Array(strings.Split(term.Path, ".")))
	}
	parts = append(parts, "seq ASC")
	return strings.Join(parts, ", "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likePattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

// jsonLiteral encodes v as it is stored in documents: reference ids and
// times as strings.
func jsonLiteral(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encoding %v: %w", v, err)
	}
	return string(b), nil
}
