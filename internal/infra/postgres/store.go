package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"docquery-service/internal/domain"
	"docquery-service/internal/infra/join"
)

// Store implements domain.DocumentStore and domain.DocumentWriter on a
// single JSONB documents table.
type Store struct {
	db *gorm.DB
}

// NewStore creates a new PostgreSQL document store.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Find returns the documents of plan.Collection matching plan.Filter,
// ordered, paged and populated.
func (s *Store) Find(ctx context.Context, plan domain.Plan) ([]domain.Document, error) {
	query, err := s.filtered(ctx, plan.Collection, plan.Filter)
	if err != nil {
		return nil, err
	}

	sql, args := orderClause(plan.Order)
	query = query.Clauses(clause.OrderBy{Expression: gorm.Expr(sql, args...)})

	if plan.Skip > 0 {
		query = query.Offset(plan.Skip)
	}
	if plan.Limit > 0 {
		query = query.Limit(plan.Limit)
	}

	var models []DocumentModel
	if err := query.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("finding in %s: %w", plan.Collection, err)
	}

	docs := toDomain(models)
	if err := join.Resolve(ctx, docs, plan.Populate, s.fetchByIDs); err != nil {
		return nil, err
	}
	return docs, nil
}

// Count returns the number of documents in collection matching filter.
func (s *Store) Count(ctx context.Context, collection string, filter domain.Expr) (int64, error) {
	query, err := s.filtered(ctx, collection, filter)
	if err != nil {
		return 0, err
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("counting in %s: %w", collection, err)
	}

	return count, nil
}

// Upsert creates or replaces docs in a batch. Documents without an id get
// a new one, written back into the document.
func (s *Store) Upsert(ctx context.Context, collection string, docs []domain.Document) error {
	if len(docs) == 0 {
		return nil
	}

	now := time.Now().UTC()
	models := dedupe(FromDomainSlice(collection, docs))
	for _, m := range models {
		m.UpdatedAt = now
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"collection", "data", "updated_at"}),
	}).CreateInBatches(models, 100).Error
	if err != nil {
		return fmt.Errorf("upserting into %s: %w", collection, err)
	}

	return nil
}

// Collections returns the stored collection names and their sizes.
func (s *Store) Collections(ctx context.Context) (map[string]int, error) {
	var rows []struct {
		Collection string
		Total      int
	}
	err := s.db.WithContext(ctx).Model(&DocumentModel{}).
		Select("collection, COUNT(*) AS total").
		Group("collection").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("listing collections: %w", err)
	}

	out := make(map[string]int, len(rows))
	for _, r := range rows {
		out[r.Collection] = r.Total
	}
	return out, nil
}

func (s *Store) filtered(ctx context.Context, collection string, filter domain.Expr) (*gorm.DB, error) {
	where, args, err := compileFilter(filter)
	if err != nil {
		return nil, fmt.Errorf("compiling filter for %s: %w", collection, err)
	}

	return s.db.WithContext(ctx).Model(&DocumentModel{}).
		Where("collection = ?", collection).
		Where(where, args...), nil
}

func (s *Store) fetchByIDs(ctx context.Context, collection string, ids []domain.ReferenceID, filter domain.Expr) ([]domain.Document, error) {
	query, err := s.filtered(ctx, collection, filter)
	if err != nil {
		return nil, err
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = id.String()
	}

	var models []DocumentModel
	if err := query.Where("id IN ?", keys).Order("seq ASC").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("fetching %d documents from %s: %w", len(ids), collection, err)
	}
	return toDomain(models), nil
}

// dedupe keeps the last model for each id. A batch may not touch the same
// row twice.
func dedupe(models []*DocumentModel) []*DocumentModel {
	index := make(map[string]int, len(models))
	out := models[:0]
	for _, m := range models {
		if i, ok := index[m.ID]; ok {
			out[i] = m
			continue
		}
		index[m.ID] = len(out)
		out = append(out, m)
	}
	return out
}

func toDomain(models []DocumentModel) []domain.Document {
	docs := make([]domain.Document, len(models))
	for i := range models {
		docs[i] = models[i].ToDomain()
	}
	return docs
}
