package planner

import (
	"fmt"

	"docquery-service/internal/domain"
)

// Build assembles the store plan for a validated intent.
//
// Main filter conditions, the free-text OR and the map bound are ANDed.
// Conditions on referenced entities become population matches instead:
// the descriptor's default references come first, and every path gets
// exactly one directive carrying all of its matches.
func Build(v *Validated) domain.Plan {
	desc := v.Descriptor

	var conds []domain.Expr
	if v.Term != "" {
		conds = append(conds, termCondition(desc, v.Term))
	}
	for _, c := range v.Conditions {
		if c.JoinPath == "" {
			conds = append(conds, c.Expr)
		}
	}
	if v.Bounds != nil {
		conds = append(conds, domain.Within{Field: desc.LocationField, Box: *v.Bounds})
	}

	plan := domain.Plan{
		Collection: desc.Collection,
		Filter:     combine(conds),
		Populate:   populateDirectives(desc, v.Conditions),
		Skip:       v.PageSize * (v.Page - 1),
		Limit:      v.PageSize,
	}
	if v.Sort != nil {
		plan.Order = []domain.OrderTerm{{Path: sortPath(*v.Sort), Direction: v.Sort.Direction}}
	}
	return plan
}

func combine(conds []domain.Expr) domain.Expr {
	if len(conds) == 1 {
		return conds[0]
	}
	return domain.And(conds)
}

func termCondition(desc *domain.Descriptor, term string) domain.Expr {
	var or domain.Or
	for _, name := range desc.SearchFieldNames() {
		if desc.SearchFields[name] == domain.SearchShapeObjectArray {
			outer, inner, _ := domain.SplitNested(name)
			or = append(or, domain.ElemMatch{Field: outer, Cond: domain.Contains{Field: inner, Value: term}})
			continue
		}
		or = append(or, domain.Contains{Field: name, Value: term})
	}
	return or
}

func sortPath(s SortSpec) string {
	if s.Kind == domain.SortKindObject {
		if outer, inner, ok := domain.SplitNested(s.Field); ok {
			return outer + "." + inner
		}
	}
	return s.Field
}

func populateDirectives(desc *domain.Descriptor, conds []Condition) []domain.PopulateDirective {
	var out []domain.PopulateDirective
	index := make(map[string]int)

	for _, ref := range desc.References {
		if _, seen := index[ref]; seen {
			continue
		}
		index[ref] = len(out)
		out = append(out, domain.PopulateDirective{Path: ref, Collection: desc.Joins[ref]})
	}

	for _, c := range conds {
		if c.JoinPath == "" {
			continue
		}
		i, ok := index[c.JoinPath]
		if !ok {
			i = len(out)
			index[c.JoinPath] = i
			out = append(out, domain.PopulateDirective{Path: c.JoinPath, Collection: desc.Joins[c.JoinPath]})
		}
		out[i].Match = append(out[i].Match, c.Expr)
	}

	return out
}

// compileFilter turns one requested filter into its condition.
func compileFilter(name string, ft domain.FilterType, value domain.FilterValue) (Condition, error) {
	cond := Condition{Field: name, Type: ft}

	var err error
	switch t := ft.(type) {
	case domain.StringFilter, domain.RangeFilter, domain.BoolFilter, domain.ObjectIDFilter:
		cond.Expr, err = scalarCondition(name, name, t, value)
	case domain.ArrayFilter:
		cond.Expr, err = arrayCondition(name, value, false)
	case domain.ArrayObjectIDsFilter:
		cond.Expr, err = arrayCondition(name, value, true)
	case domain.ObjectFilter:
		var inner domain.Expr
		inner, err = scalarCondition(name, t.Inner, t.Of, value)
		cond.Expr = domain.ElemMatch{Field: t.Outer, Cond: inner}
	case domain.RefObjectFilter:
		field := t.Field
		if _, isID := t.Of.(domain.ObjectIDFilter); isID {
			field = domain.IDField
		}
		cond.Expr, err = scalarCondition(name, field, t.Of, value)
		cond.JoinPath = t.Path
	default:
		err = fmt.Errorf("%s: unsupported filter type %T", name, ft)
	}
	if err != nil {
		return Condition{}, err
	}
	return cond, nil
}

// scalarCondition builds the condition for the kinds allowed both at the top
// level and inside object and refObject filters. name is the requested
// filter; field is where the condition applies.
func scalarCondition(name, field string, ft domain.FilterType, value domain.FilterValue) (domain.Expr, error) {
	switch ft.(type) {
	case domain.StringFilter:
		raw, ok := value.(domain.RawValue)
		if !ok {
			return nil, shapeError(name, "a plain value", value)
		}
		if raw.Scalar() {
			return domain.Contains{Field: field, Value: raw[0]}, nil
		}
		return domain.In{Field: field, Values: toAny(raw)}, nil

	case domain.RangeFilter:
		switch r := value.(type) {
		case domain.NumberRange:
			return domain.Between{Field: field, Min: r.Min, Max: r.Max}, nil
		case domain.DateRange:
			return domain.Between{Field: field, Min: r.Min, Max: r.Max}, nil
		default:
			return nil, shapeError(name, fmt.Sprintf("%s_range or %s_dateRange", name, name), value)
		}

	case domain.BoolFilter:
		raw, ok := value.(domain.RawValue)
		if !ok || !raw.Scalar() {
			return nil, shapeError(name, "a single value", value)
		}
		return domain.Equals{Field: field, Value: raw[0] == "true"}, nil

	case domain.ObjectIDFilter:
		raw, ok := value.(domain.RawValue)
		if !ok || !raw.Scalar() {
			return nil, shapeError(name, "a single reference id", value)
		}
		id, err := referenceID(name, raw[0])
		if err != nil {
			return nil, err
		}
		return domain.Equals{Field: field, Value: id}, nil

	default:
		return nil, fmt.Errorf("%s: unsupported nested filter type %T", name, ft)
	}
}

func arrayCondition(name string, value domain.FilterValue, ids bool) (domain.Expr, error) {
	raw, ok := value.(domain.RawValue)
	if !ok {
		return nil, shapeError(name, "a plain value", value)
	}

	values := make([]any, 0, len(raw))
	for _, s := range raw {
		if !ids {
			values = append(values, s)
			continue
		}
		id, err := referenceID(name, s)
		if err != nil {
			return nil, err
		}
		values = append(values, id)
	}

	if len(values) == 1 {
		return domain.ArrayContains{Field: name, Value: values[0]}, nil
	}
	return domain.ArrayContainsAll{Field: name, Values: values}, nil
}

func referenceID(name, s string) (domain.ReferenceID, error) {
	id, err := domain.ToReferenceID(s)
	if err != nil {
		return id, fmt.Errorf("%s: %q is not a valid reference id: %w", name, s, err)
	}
	return id, nil
}

func shapeError(name, want string, got domain.FilterValue) error {
	return fmt.Errorf("%s expects %s, got %s: %w", name, want, describe(got), domain.ErrFilterShape)
}

func describe(v domain.FilterValue) string {
	switch val := v.(type) {
	case domain.RawValue:
		if val.Scalar() {
			return "a plain value"
		}
		return fmt.Sprintf("%d values", len(val))
	case domain.NumberRange:
		return "a number range"
	case domain.DateRange:
		return "a date range"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
