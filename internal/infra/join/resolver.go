// Package join resolves population directives for any document store.
//
// A reference field holds either a single id or an array of ids. After
// resolution a single reference holds the referenced document, or nil when
// it is missing or fails the directive's match. An array keeps only the
// referenced documents that exist and match, in their original order.
package join

import (
	"context"
	"fmt"
	"strings"

	"docquery-service/internal/domain"
)

// Fetcher loads the documents of collection whose id is one of ids and
// which satisfy filter.
type Fetcher func(ctx context.Context, collection string, ids []domain.ReferenceID, filter domain.Expr) ([]domain.Document, error)

// Resolve applies every directive to docs in place.
func Resolve(ctx context.Context, docs []domain.Document, directives []domain.PopulateDirective, fetch Fetcher) error {
	for _, d := range directives {
		if err := resolveOne(ctx, docs, d, fetch); err != nil {
			return fmt.Errorf("populating %s from %s: %w", d.Path, d.Collection, err)
		}
	}
	return nil
}

func resolveOne(ctx context.Context, docs []domain.Document, d domain.PopulateDirective, fetch Fetcher) error {
	ids := collectIDs(docs, d.Path)
	if len(ids) == 0 {
		for _, doc := range docs {
			replace(doc, d.Path, nil)
		}
		return nil
	}

	found, err := fetch(ctx, d.Collection, ids, domain.And(d.Match))
	if err != nil {
		return err
	}

	byID := make(map[domain.ReferenceID]domain.Document, len(found))
	for _, doc := range found {
		if id, ok := DocumentID(doc); ok {
			byID[id] = doc
		}
	}

	for _, doc := range docs {
		replace(doc, d.Path, byID)
	}
	return nil
}

// DocumentID returns the parsed IDField of doc.
func DocumentID(doc domain.Document) (domain.ReferenceID, bool) {
	return toID(doc[domain.IDField])
}

func collectIDs(docs []domain.Document, path string) []domain.ReferenceID {
	seen := make(map[domain.ReferenceID]struct{})
	var ids []domain.ReferenceID
	add := func(v any) {
		id, ok := toID(v)
		if !ok {
			return
		}
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	for _, doc := range docs {
		switch v := Get(doc, path).(type) {
		case []any:
			for _, e := range v {
				add(e)
			}
		default:
			add(v)
		}
	}
	return ids
}

func replace(doc domain.Document, path string, byID map[domain.ReferenceID]domain.Document) {
	current, ok := lookup(doc, path)
	if !ok {
		return
	}

	switch v := current.(type) {
	case []any:
		out := make([]any, 0, len(v))
		for _, e := range v {
			id, ok := toID(e)
			if !ok {
				continue
			}
			if ref, ok := byID[id]; ok {
				out = append(out, ref)
			}
		}
		set(doc, path, out)
	default:
		id, ok := toID(v)
		if !ok {
			set(doc, path, nil)
			return
		}
		if ref, ok := byID[id]; ok {
			set(doc, path, ref)
			return
		}
		set(doc, path, nil)
	}
}

func toID(v any) (domain.ReferenceID, bool) {
	s, ok := v.(string)
	if !ok {
		return domain.ReferenceID{}, false
	}
	id, err := domain.ToReferenceID(s)
	if err != nil {
		return domain.ReferenceID{}, false
	}
	return id, true
}

// Get returns the value at a dotted path, or nil.
func Get(doc domain.Document, path string) any {
	v, _ := lookup(doc, path)
	return v
}

func lookup(doc domain.Document, path string) (any, bool) {
	var cur any = map[string]any(doc)
	for _, part := range strings.Split(path, ".") {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func set(doc domain.Document, path string, value any) {
	parts := strings.Split(path, ".")
	m := map[string]any(doc)
	for _, part := range parts[:len(parts)-1] {
		next, ok := asMap(m[part])
		if !ok {
			return
		}
		m = next
	}
	m[parts[len(parts)-1]] = value
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case domain.Document:
		return m, true
	default:
		return nil, false
	}
}
