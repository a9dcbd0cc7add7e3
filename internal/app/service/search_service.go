// Package service provides application use cases.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"docquery-service/internal/domain"
	"docquery-service/internal/geo"
	"docquery-service/internal/metrics"
	"docquery-service/internal/planner"
)

// Search modes, used as metric labels.
const (
	ModeList = "list"
	ModeMap  = "map"
	ModeNear = "near"
)

// Descriptors resolves entity names to descriptors.
// Implementations: internal/catalog
type Descriptors interface {
	Get(entity string) (*domain.Descriptor, error)
}

// SearchService runs configured entity searches against a document store.
type SearchService struct {
	store       domain.DocumentStore
	descriptors Descriptors
	counts      domain.CountCache
	logger      *zap.Logger
}

// NewSearchService creates a new SearchService.
func NewSearchService(store domain.DocumentStore, descriptors Descriptors, logger *zap.Logger) *SearchService {
	return &SearchService{
		store:       store,
		descriptors: descriptors,
		logger:      logger,
	}
}

// WithCountCache makes the service reuse totals from cache. It returns s.
func (s *SearchService) WithCountCache(cache domain.CountCache) *SearchService {
	s.counts = cache
	return s
}

// Search runs a plain search.
func (s *SearchService) Search(ctx context.Context, desc *domain.Descriptor, params domain.Params) (*domain.ResultPage, error) {
	return s.run(ctx, desc, params, false, ModeList)
}

// MapSearch runs a search restricted to the box given by lat1, lon1, lat2
// and lon2.
func (s *SearchService) MapSearch(ctx context.Context, desc *domain.Descriptor, params domain.Params) (*domain.ResultPage, error) {
	return s.run(ctx, desc, params, true, ModeMap)
}

// MapSearchStart runs a map search over the box of radiusKm around center.
func (s *SearchService) MapSearchStart(ctx context.Context, desc *domain.Descriptor, params domain.Params, center geo.Point, radiusKm float64) (*domain.ResultPage, error) {
	box, err := geo.BoundingBox(center, radiusKm)
	if err != nil {
		ve := &domain.ValidationError{}
		ve.Add(err.Error(), err)
		return nil, ve
	}

	return s.run(ctx, desc, planner.WithBounds(params, box), true, ModeNear)
}

// SearchEntity resolves entity and runs a plain search.
func (s *SearchService) SearchEntity(ctx context.Context, entity string, params domain.Params) (*domain.ResultPage, error) {
	desc, err := s.descriptors.Get(entity)
	if err != nil {
		return nil, err
	}
	return s.Search(ctx, desc, params)
}

// Descriptor resolves entity.
func (s *SearchService) Descriptor(entity string) (*domain.Descriptor, error) {
	return s.descriptors.Get(entity)
}

func (s *SearchService) run(ctx context.Context, desc *domain.Descriptor, params domain.Params, mapSearch bool, mode string) (*domain.ResultPage, error) {
	start := time.Now()

	v, plan, err := planner.Prepare(desc, params, mapSearch)
	if err != nil {
		metrics.ObserveSearch(desc.Entity, mode, metrics.OutcomeInvalid, time.Since(start))
		s.logger.Debug("search rejected",
			zap.String("entity", desc.Entity),
			zap.String("mode", mode),
			zap.Error(err),
		)
		return nil, err
	}

	s.logger.Debug("searching documents",
		zap.String("entity", desc.Entity),
		zap.String("mode", mode),
		zap.Stringer("filter", plan.Filter),
		zap.Int("page", v.Page),
		zap.Int("page_size", v.PageSize),
	)

	page, err := s.execute(ctx, desc.Entity, plan)
	if err != nil {
		metrics.ObserveSearch(desc.Entity, mode, metrics.OutcomeFailed, time.Since(start))
		s.logger.Error("search failed",
			zap.String("entity", desc.Entity),
			zap.String("mode", mode),
			zap.Error(err),
		)
		return nil, err
	}
	page.Page = v.Page
	page.PageSize = v.PageSize

	outcome := metrics.OutcomeOK
	if page.TotalCount == nil {
		outcome = metrics.OutcomeDegraded
	}
	metrics.ObserveSearch(desc.Entity, mode, outcome, time.Since(start))

	s.logger.Debug("search completed",
		zap.String("entity", desc.Entity),
		zap.Int("count", len(page.Items)),
	)

	return page, nil
}

// execute runs the fetch and the count concurrently. A failed fetch fails
// the search. A failed count only leaves TotalCount nil.
func (s *SearchService) execute(ctx context.Context, entity string, plan domain.Plan) (*domain.ResultPage, error) {
	g, gctx := errgroup.WithContext(ctx)

	var items []domain.Document
	g.Go(func() error {
		docs, err := s.store.Find(gctx, plan)
		if err != nil {
			return err
		}
		items = docs
		return nil
	})

	var total *int64
	g.Go(func() error {
		n, err := s.count(gctx, plan)
		if err != nil {
			if gctx.Err() == nil {
				s.logger.Warn("count query failed, returning results without total",
					zap.String("entity", entity),
					zap.Error(err),
				)
			}
			return nil
		}
		total = &n
		return nil
	})

	if err := g.Wait(); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrQueryExecutionFailed, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if items == nil {
		items = []domain.Document{}
	}
	return &domain.ResultPage{Items: items, TotalCount: total}, nil
}

// count returns the total for plan, from the count cache when it holds one.
// Cache failures fall back to the store.
func (s *SearchService) count(ctx context.Context, plan domain.Plan) (int64, error) {
	if s.counts == nil {
		return s.store.Count(ctx, plan.Collection, plan.Filter)
	}

	key := domain.Key(plan.Filter)
	if n, ok, err := s.counts.GetCount(ctx, plan.Collection, key); err == nil && ok {
		return n, nil
	}

	n, err := s.store.Count(ctx, plan.Collection, plan.Filter)
	if err != nil {
		return 0, err
	}
	if err := s.counts.SetCount(ctx, plan.Collection, key, n); err != nil {
		s.logger.Debug("count not cached", zap.String("collection", plan.Collection), zap.Error(err))
	}
	return n, nil
}
