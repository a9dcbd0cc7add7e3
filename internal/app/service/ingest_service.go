package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"docquery-service/internal/domain"
	"docquery-service/internal/metrics"
)

// IngestService copies documents from external feeds into the store.
type IngestService struct {
	writer domain.DocumentWriter
	feeds  []domain.Feed
	counts domain.CountCache
	logger *zap.Logger
}

// NewIngestService creates a new IngestService.
func NewIngestService(writer domain.DocumentWriter, feeds []domain.Feed, logger *zap.Logger) *IngestService {
	return &IngestService{
		writer: writer,
		feeds:  feeds,
		logger: logger,
	}
}

// WithCountCache makes the service drop cached totals of every collection
// it writes to. It returns s.
func (s *IngestService) WithCountCache(cache domain.CountCache) *IngestService {
	s.counts = cache
	return s
}

// IngestResult holds the result of ingesting one feed.
type IngestResult struct {
	Feed       string
	Collection string
	Count      int
	Duration   time.Duration
	Error      error
}

// IngestAll ingests every feed concurrently. Partial failures are allowed;
// each feed reports its own result.
func (s *IngestService) IngestAll(ctx context.Context) []IngestResult {
	results := make([]IngestResult, len(s.feeds))
	var wg sync.WaitGroup

	s.logger.Info("starting ingest from all feeds",
		zap.Int("feed_count", len(s.feeds)),
	)

	for i, feed := range s.feeds {
		wg.Add(1)
		go func(idx int, f domain.Feed) {
			defer wg.Done()
			results[idx] = s.ingestFeed(ctx, f)
		}(i, feed)
	}

	wg.Wait()

	totalIngested := 0
	totalErrors := 0
	for _, r := range results {
		if r.Error != nil {
			totalErrors++
		} else {
			totalIngested += r.Count
		}
	}

	s.logger.Info("ingest completed",
		zap.Int("total_ingested", totalIngested),
		zap.Int("feeds_failed", totalErrors),
	)

	return results
}

func (s *IngestService) ingestFeed(ctx context.Context, feed domain.Feed) IngestResult {
	start := time.Now()
	result := IngestResult{
		Feed:       feed.Name(),
		Collection: feed.Collection(),
	}
	defer func() {
		metrics.ObserveIngest(result.Feed, result.Count, result.Error)
	}()

	s.logger.Debug("ingesting feed", zap.String("feed", feed.Name()))

	docs, err := feed.Fetch(ctx)
	if err != nil {
		result.Error = err
		result.Duration = time.Since(start)
		s.logger.Warn("feed fetch failed",
			zap.String("feed", feed.Name()),
			zap.Error(err),
		)
		return result
	}

	if len(docs) > 0 {
		if err := s.writer.Upsert(ctx, feed.Collection(), docs); err != nil {
			result.Error = err
			result.Duration = time.Since(start)
			s.logger.Error("upsert failed",
				zap.String("feed", feed.Name()),
				zap.String("collection", feed.Collection()),
				zap.Error(err),
			)
			return result
		}

		if s.counts != nil {
			if err := s.counts.Invalidate(ctx, feed.Collection()); err != nil {
				s.logger.Warn("failed to invalidate cached counts",
					zap.String("collection", feed.Collection()),
					zap.Error(err),
				)
			}
		}
	}

	result.Count = len(docs)
	result.Duration = time.Since(start)

	s.logger.Info("feed ingest completed",
		zap.String("feed", feed.Name()),
		zap.String("collection", feed.Collection()),
		zap.Int("count", result.Count),
		zap.Duration("duration", result.Duration),
	)

	return result
}

// IngestFeed ingests the named feed. The result is nil when no feed has
// that name.
func (s *IngestService) IngestFeed(ctx context.Context, name string) (*IngestResult, error) {
	for _, f := range s.feeds {
		if f.Name() == name {
			result := s.ingestFeed(ctx, f)
			return &result, result.Error
		}
	}
	return nil, nil
}

// FeedNames returns the names of all configured feeds.
func (s *IngestService) FeedNames() []string {
	names := make([]string, len(s.feeds))
	for i, f := range s.feeds {
		names[i] = f.Name()
	}
	return names
}
