package domain

import (
	"context"
)

// DocumentStore executes resolved plans.
// Implementations: internal/infra/postgres, internal/infra/memstore
type DocumentStore interface {
	// Find returns the documents matching plan.Filter, ordered, skipped,
	// limited and with plan.Populate resolved. A nil Populate means no joins.
	Find(ctx context.Context, plan Plan) ([]Document, error)

	// Count returns the number of documents in collection matching filter,
	// ignoring pagination and joins.
	Count(ctx context.Context, collection string, filter Expr) (int64, error)
}

// DocumentWriter stores documents. Documents without an IDField get a new id.
// Documents with a known id are replaced.
type DocumentWriter interface {
	Upsert(ctx context.Context, collection string, docs []Document) error
}

// Feed is an external source of entity documents.
// Implementations: internal/infra/feed
type Feed interface {
	// Name returns the unique identifier for this feed.
	Name() string

	// Collection returns the collection the fetched documents belong to.
	Collection() string

	// Fetch retrieves all documents currently published by the feed.
	Fetch(ctx context.Context) ([]Document, error)

	// HealthCheck verifies the feed is reachable.
	HealthCheck(ctx context.Context) error
}

// CountCache memoizes filter counts per collection. A miss is reported
// with ok false and a nil error.
// Implementations: internal/infra/redis
type CountCache interface {
	GetCount(ctx context.Context, collection, key string) (n int64, ok bool, err error)
	SetCount(ctx context.Context, collection, key string, n int64) error

	// Invalidate drops every cached count of collection.
	Invalidate(ctx context.Context, collection string) error
}
