// Package memstore is an in-memory document store. Filters are evaluated
// over the stored JSON with gjson.
package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"github.com/tidwall/gjson"

	"docquery-service/internal/domain"
	"docquery-service/internal/infra/join"
)

type record struct {
	id  domain.ReferenceID
	raw string
}

// Store implements domain.DocumentStore and domain.DocumentWriter.
// It is safe for concurrent use.
type Store struct {
	mu          sync.RWMutex
	collections map[string][]record
}

// New creates an empty store.
func New() *Store {
	return &Store{collections: make(map[string][]record)}
}

// Find returns the documents of plan.Collection matching plan.Filter,
// ordered, paged and populated.
func (s *Store) Find(ctx context.Context, plan domain.Plan) ([]domain.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	matched, err := s.filter(plan.Collection, plan.Filter)
	if err != nil {
		return nil, fmt.Errorf("finding in %s: %w", plan.Collection, err)
	}

	if len(plan.Order) > 0 {
		sort.SliceStable(matched, func(i, j int) bool {
			for _, o := range plan.Order {
				c := compare(get(matched[i].raw, o.Path), get(matched[j].raw, o.Path))
				if c == 0 {
					continue
				}
				if o.Direction == domain.SortDescending {
					return c > 0
				}
				return c < 0
			}
			return false
		})
	}

	matched = page(matched, plan.Skip, plan.Limit)

	docs, err := decode(matched)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", plan.Collection, err)
	}

	if err := join.Resolve(ctx, docs, plan.Populate, s.fetchByIDs); err != nil {
		return nil, err
	}
	return docs, nil
}

// Count returns the number of documents in collection matching filter.
func (s *Store) Count(ctx context.Context, collection string, filter domain.Expr) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	matched, err := s.filter(collection, filter)
	if err != nil {
		return 0, fmt.Errorf("counting in %s: %w", collection, err)
	}
	return int64(len(matched)), nil
}

// Upsert stores docs, replacing documents with the same id. Documents
// without an id get a new one, written back into the document.
func (s *Store) Upsert(ctx context.Context, collection string, docs []domain.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	records := make([]record, 0, len(docs))
	for _, doc := range docs {
		id, ok := join.DocumentID(doc)
		if !ok {
			id = domain.NewReferenceID()
		}
		doc[domain.IDField] = id.String()

		raw, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("encoding document %s: %w", id, err)
		}
		records = append(records, record{id: id, raw: string(raw)})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.collections[collection]
	index := make(map[domain.ReferenceID]int, len(existing))
	for i, r := range existing {
		index[r.id] = i
	}
	for _, r := range records {
		if i, ok := index[r.id]; ok {
			existing[i] = r
			continue
		}
		index[r.id] = len(existing)
		existing = append(existing, r)
	}
	s.collections[collection] = existing
	return nil
}

// Collections returns the stored collection names and their sizes.
func (s *Store) Collections(ctx context.Context) (map[string]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]int, len(s.collections))
	for name, records := range s.collections {
		out[name] = len(records)
	}
	return out, nil
}

// Seed loads a JSON object mapping collection names to document arrays.
func (s *Store) Seed(ctx context.Context, r io.Reader) error {
	return Seed(ctx, s, r)
}

// SeedFile loads a seed file. See Seed.
func (s *Store) SeedFile(ctx context.Context, path string) error {
	return SeedFile(ctx, s, path)
}

// Seed writes the collections of a JSON seed document through w, in
// collection name order.
func Seed(ctx context.Context, w domain.DocumentWriter, r io.Reader) error {
	var seed map[string][]domain.Document
	if err := json.NewDecoder(r).Decode(&seed); err != nil {
		return fmt.Errorf("decoding seed: %w", err)
	}

	names := make([]string, 0, len(seed))
	for name := range seed {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := w.Upsert(ctx, name, seed[name]); err != nil {
			return fmt.Errorf("seeding %s: %w", name, err)
		}
	}
	return nil
}

// SeedFile opens path and calls Seed.
func SeedFile(ctx context.Context, w domain.DocumentWriter, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening seed file: %w", err)
	}
	defer f.Close()

	return Seed(ctx, w, f)
}

func (s *Store) filter(collection string, filter domain.Expr) ([]record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if filter == nil {
		filter = domain.And{}
	}

	var out []record
	for _, r := range s.collections[collection] {
		ok, err := match(r.raw, filter)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Store) fetchByIDs(ctx context.Context, collection string, ids []domain.ReferenceID, filter domain.Expr) ([]domain.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	wanted := make(map[domain.ReferenceID]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}

	matched, err := s.filter(collection, filter)
	if err != nil {
		return nil, err
	}

	var hits []record
	for _, r := range matched {
		if _, ok := wanted[r.id]; ok {
			hits = append(hits, r)
		}
	}
	return decode(hits)
}

func page(records []record, skip, limit int) []record {
	if skip >= len(records) {
		return nil
	}
	if skip > 0 {
		records = records[skip:]
	}
	if limit > 0 && limit < len(records) {
		records = records[:limit]
	}
	return records
}

func decode(records []record) ([]domain.Document, error) {
	docs := make([]domain.Document, 0, len(records))
	for _, r := range records {
		if !gjson.Valid(r.raw) {
			return nil, fmt.Errorf("document %s is not valid JSON", r.id)
		}
		var doc domain.Document
		if err := json.Unmarshal([]byte(r.raw), &doc); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}
