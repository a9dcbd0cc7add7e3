package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	postgresContainer "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	postgresDriver "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"docquery-service/internal/domain"
	"docquery-service/internal/geo"
	"docquery-service/internal/infra/postgres/migrations"
)

const (
	annID = "1b9d6bcd-bbfd-4b2d-9b5d-ab8dfbbd4bed"
	bobID = "6ec0bd7f-11c0-43da-975e-2a8ad9ebae0b"
	p1ID  = "0f6a4a6e-3d1b-4c4e-8a55-8c1e1b4b0a01"
	p2ID  = "0f6a4a6e-3d1b-4c4e-8a55-8c1e1b4b0a02"
	p3ID  = "0f6a4a6e-3d1b-4c4e-8a55-8c1e1b4b0a03"
)

// setupTestDB creates a PostgreSQL testcontainer and returns a migrated GORM DB.
//
// Prerequisites:
//   - Docker must be running
//
// OR
//   - Skip tests with: go test -short
func setupTestDB(t *testing.T) (*gorm.DB, func()) {
	t.Helper()

	ctx := context.Background()

	pgContainer, err := postgresContainer.Run(ctx,
		"postgres:16-alpine",
		postgresContainer.WithDatabase("testdb"),
		postgresContainer.WithUsername("testuser"),
		postgresContainer.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container (is Docker running? use -short to skip): %v", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "Failed to get connection string")

	db, err := gorm.Open(postgresDriver.Open(connStr), &gorm.Config{})
	require.NoError(t, err, "Failed to connect to test database")

	require.NoError(t, migrations.Run(db), "Failed to run migrations")

	cleanup := func() {
		_ = Close(db)
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	}

	return db, cleanup
}

func seedStore(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, "customers", []domain.Document{
		{"_id": annID, "firstName": "Ann", "age": 31},
		{"_id": bobID, "firstName": "Bob", "age": 52},
	}))
	require.NoError(t, s.Upsert(ctx, "parcels", []domain.Document{
		{
			"_id": p1ID, "content": "Birthday cake", "parcelStatus": "booked", "customer": annID,
			"cost": map[string]any{"amount": 12.5}, "tags": []any{"fragile", "cold"},
			"created": "2024-03-01T10:00:00Z", "fromAddress": map[string]any{"loc": []any{-0.1278, 51.5074}},
			"activityLog": []any{map[string]any{"status": "booked"}},
		},
		{
			"_id": p2ID, "content": "Laptop", "parcelStatus": "delivered", "customer": bobID,
			"cost": map[string]any{"amount": 40}, "tags": []any{"fragile"},
			"created": "2024-01-15T08:00:00Z", "fromAddress": map[string]any{"loc": []any{2.3522, 48.8566}},
			"activityLog": []any{map[string]any{"status": "booked"}, map[string]any{"status": "delivered"}},
		},
		{
			"_id": p3ID, "content": "Cake tins", "parcelStatus": "booked", "customer": bobID,
			"cost": map[string]any{"amount": 7}, "tags": []any{},
			"created": "not a date", "fromAddress": map[string]any{"loc": []any{179.99, 0}},
		},
	}))
}

func docIDs(docs []domain.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i], _ = d[domain.IDField].(string)
	}
	return out
}

func TestStore_Filters(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	db, cleanup := setupTestDB(t)
	defer cleanup()

	s := NewStore(db)
	seedStore(t, s)
	ctx := context.Background()

	pacific, err := geo.BoundingBox(geo.Point{Lat: 0, Lon: -179.99}, 15)
	require.NoError(t, err)

	tests := []struct {
		name   string
		filter domain.Expr
		want   []string
	}{
		{name: "match all", filter: domain.And{}, want: []string{p1ID, p2ID, p3ID}},
		{name: "substring ignores case", filter: domain.Contains{Field: "content", Value: "CAKE"}, want: []string{p1ID, p3ID}},
		{name: "substring is literal", filter: domain.Contains{Field: "content", Value: "c_ke"}, want: []string{}},
		{name: "array element substring", filter: domain.Contains{Field: "tags", Value: "col"}, want: []string{p1ID}},
		{name: "number range", filter: domain.Between{Field: "cost.amount", Min: 7.0, Max: 12.5}, want: []string{p1ID, p3ID}},
		{
			name: "date range skips bad dates",
			filter: domain.Between{
				Field: "created",
				Min:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
				Max:   time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
			},
			want: []string{p1ID, p2ID},
		},
		{name: "array contains all", filter: domain.ArrayContainsAll{Field: "tags", Values: []any{"fragile", "cold"}}, want: []string{p1ID}},
		{
			name:   "elem match",
			filter: domain.ElemMatch{Field: "activityLog", Cond: domain.Contains{Field: "status", Value: "deliv"}},
			want:   []string{p2ID},
		},
		{name: "wrapped box", filter: domain.Within{Field: "fromAddress.loc", Box: pacific}, want: []string{p3ID}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs, err := s.Find(ctx, domain.Plan{Collection: "parcels", Filter: tt.filter})
			require.NoError(t, err)
			assert.Equal(t, tt.want, docIDs(docs))

			n, err := s.Count(ctx, "parcels", tt.filter)
			require.NoError(t, err)
			assert.Equal(t, int64(len(tt.want)), n)
		})
	}
}

func TestStore_OrderPageAndPopulate(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	db, cleanup := setupTestDB(t)
	defer cleanup()

	s := NewStore(db)
	seedStore(t, s)

	docs, err := s.Find(context.Background(), domain.Plan{
		Collection: "parcels",
		Filter:     domain.And{},
		Order:      []domain.OrderTerm{{Path: "cost.amount", Direction: domain.SortDescending}},
		Skip:       1,
		Limit:      2,
		Populate: []domain.PopulateDirective{{
			Path:       "customer",
			Collection: "customers",
			Match:      []domain.Expr{domain.Between{Field: "age", Min: 40.0, Max: 60.0}},
		}},
	})
	require.NoError(t, err)
	require.Equal(t, []string{p1ID, p3ID}, docIDs(docs))

	assert.Nil(t, docs[0]["customer"], "Ann is outside the age match")
	bob, ok := docs[1]["customer"].(domain.Document)
	require.True(t, ok)
	assert.Equal(t, "Bob", bob["firstName"])
}

func TestStore_UpsertReplaces(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	db, cleanup := setupTestDB(t)
	defer cleanup()

	s := NewStore(db)
	ctx := context.Background()

	doc := domain.Document{"name": "first"}
	require.NoError(t, s.Upsert(ctx, "things", []domain.Document{doc}))
	id, ok := doc[domain.IDField].(string)
	require.True(t, ok, "generated id is written back")

	require.NoError(t, s.Upsert(ctx, "things", []domain.Document{{domain.IDField: id, "name": "second"}}))

	docs, err := s.Find(ctx, domain.Plan{Collection: "things", Filter: domain.And{}})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "second", docs[0]["name"])

	collections, err := s.Collections(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"things": 1}, collections)
}
