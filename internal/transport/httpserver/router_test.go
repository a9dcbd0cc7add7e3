package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"docquery-service/internal/app/service"
	"docquery-service/internal/catalog"
	"docquery-service/internal/domain"
	"docquery-service/internal/infra/memstore"
	"docquery-service/internal/transport/httpserver/middleware"
	"docquery-service/internal/validator"
)

const (
	annID = "1b9d6bcd-bbfd-4b2d-9b5d-ab8dfbbd4bed"
	bobID = "6ec0bd7f-11c0-43da-975e-2a8ad9ebae0b"
	p1ID  = "0f6a4a6e-3d1b-4c4e-8a55-8c1e1b4b0a01"
	p2ID  = "0f6a4a6e-3d1b-4c4e-8a55-8c1e1b4b0a02"
	p3ID  = "0f6a4a6e-3d1b-4c4e-8a55-8c1e1b4b0a03"
)

const seedJSON = `{
  "customers": [
    {"_id": "` + annID + `", "firstName": "Ann"},
    {"_id": "` + bobID + `", "firstName": "Bob"}
  ],
  "parcels": [
    {"_id": "` + p1ID + `", "content": "Birthday cake", "parcelStatus": "booked", "customer": "` + annID + `",
     "created": "2024-03-01T10:00:00Z", "fromAddress": {"loc": [-0.1278, 51.5074]}},
    {"_id": "` + p2ID + `", "content": "Laptop", "parcelStatus": "delivered", "customer": "` + bobID + `",
     "created": "2024-01-15T08:00:00Z", "fromAddress": {"loc": [2.3522, 48.8566]}},
    {"_id": "` + p3ID + `", "content": "Cake tins", "parcelStatus": "booked", "customer": "` + bobID + `",
     "created": "2024-02-10T12:00:00Z", "fromAddress": {"loc": [-0.0900, 51.5200]}}
  ]
}`

// brokenStore fails every fetch.
type brokenStore struct{ *memstore.Store }

func (brokenStore) Find(context.Context, domain.Plan) ([]domain.Document, error) {
	return nil, errors.New("connection reset")
}

// stalledStore never answers a fetch before the caller gives up.
type stalledStore struct{ *memstore.Store }

func (stalledStore) Find(ctx context.Context, _ domain.Plan) ([]domain.Document, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type testServerOptions struct {
	store         domain.DocumentStore
	searchTimeout time.Duration
	readiness     []middleware.ReadinessCheck
}

func newTestServer(t *testing.T, opts testServerOptions) *Server {
	t.Helper()

	store := memstore.New()
	require.NoError(t, store.Seed(context.Background(), strings.NewReader(seedJSON)))

	cat, err := catalog.Load("")
	require.NoError(t, err)

	var docs domain.DocumentStore = store
	if opts.store != nil {
		docs = opts.store
	}

	logger := zap.NewNop()
	srv, err := NewServer(ServerConfig{
		DefaultRadiusKm: 15,
		SearchTimeout:   opts.searchTimeout,
		MetricsEnabled:  true,
		MetricsPath:     "/metrics",
	}, Dependencies{
		Search:    service.NewSearchService(docs, cat, logger),
		Ingest:    service.NewIngestService(store, nil, logger),
		Catalog:   cat,
		Counter:   store,
		Validator: validator.New(),
		Readiness: opts.readiness,
	}, logger)
	require.NoError(t, err)
	return srv
}

type searchBody struct {
	Count   *int64           `json:"count"`
	Content []map[string]any `json:"content"`
	Page    int              `json:"page"`
	PerPage int              `json:"per_page"`
}

type errorBody struct {
	Error   string   `json:"error"`
	Code    string   `json:"code"`
	Details []string `json:"details"`
}

func get(t *testing.T, srv *Server, target string, out any) int {
	t.Helper()

	resp, err := srv.App.Test(httptest.NewRequest(http.MethodGet, target, nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func contentIDs(body searchBody) []string {
	out := make([]string, len(body.Content))
	for i, d := range body.Content {
		out[i], _ = d["_id"].(string)
	}
	return out
}

func TestSearchEndpoint(t *testing.T) {
	srv := newTestServer(t, testServerOptions{})

	var body searchBody
	status := get(t, srv, "/api/v1/entities/parcels/search?parcelStatus=booked&sort=created&order=-1&page=1&per_page=10", &body)

	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []string{p1ID, p3ID}, contentIDs(body))
	require.NotNil(t, body.Count)
	assert.Equal(t, int64(2), *body.Count)
	assert.Equal(t, 1, body.Page)
	assert.Equal(t, 10, body.PerPage)

	customer, ok := body.Content[0]["customer"].(map[string]any)
	require.True(t, ok, "references are populated")
	assert.Equal(t, "Ann", customer["firstName"])
}

func TestSearchEndpoint_RepeatedKeys(t *testing.T) {
	srv := newTestServer(t, testServerOptions{})

	var body searchBody
	status := get(t, srv, "/api/v1/entities/parcels/search?parcelStatus=booked&parcelStatus=delivered", &body)

	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body.Content, 3)
}

func TestSearchEndpoint_ValidationError(t *testing.T) {
	srv := newTestServer(t, testServerOptions{})

	var body errorBody
	status := get(t, srv, "/api/v1/entities/parcels/search?colour=red&page=x", &body)

	require.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_ERROR", body.Code)
	assert.Contains(t, body.Details, "parcels does not list `colour` field as filterable")
	assert.Len(t, body.Details, 2)
}

func TestSearchEndpoint_UnknownEntity(t *testing.T) {
	srv := newTestServer(t, testServerOptions{})

	var body errorBody
	status := get(t, srv, "/api/v1/entities/spaceships/search", &body)

	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "UNKNOWN_ENTITY", body.Code)
}

func TestSearchEndpoint_QueryFailure(t *testing.T) {
	srv := newTestServer(t, testServerOptions{store: brokenStore{memstore.New()}})

	var body errorBody
	status := get(t, srv, "/api/v1/entities/parcels/search", &body)

	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, "QUERY_FAILED", body.Code)
}

func TestSearchEndpoint_Timeout(t *testing.T) {
	store := memstore.New()
	srv := newTestServer(t, testServerOptions{
		store:         stalledStore{store},
		searchTimeout: 50 * time.Millisecond,
	})

	var body errorBody
	status := get(t, srv, "/api/v1/entities/parcels/search?parcelStatus=booked", &body)

	assert.Equal(t, http.StatusGatewayTimeout, status)
	assert.Equal(t, "TIMEOUT", body.Code)
}

func TestMapEndpoint(t *testing.T) {
	srv := newTestServer(t, testServerOptions{})

	var body searchBody
	status := get(t, srv, "/api/v1/entities/parcels/map?lat1=48&lon1=2&lat2=49&lon2=3", &body)

	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []string{p2ID}, contentIDs(body))
	assert.Equal(t, 50, body.PerPage)

	var errBody errorBody
	status = get(t, srv, "/api/v1/entities/parcels/map?lat1=48", &errBody)
	require.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, errBody.Details, "map search requires lon1")
}

func TestNearEndpoint(t *testing.T) {
	srv := newTestServer(t, testServerOptions{})

	var body searchBody
	status := get(t, srv, "/api/v1/entities/parcels/near?lat=51.5074&lon=-0.1278&radius=15&sort=created", &body)

	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []string{p3ID, p1ID}, contentIDs(body))

	status = get(t, srv, "/api/v1/entities/parcels/near?lat=51.5074&lon=-0.1278&radius=1", &body)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []string{p1ID}, contentIDs(body))
}

func TestNearEndpoint_InvalidCenter(t *testing.T) {
	srv := newTestServer(t, testServerOptions{})

	tests := []struct {
		name   string
		query  string
		detail string
	}{
		{name: "missing lat", query: "lon=0", detail: "lat is required"},
		{name: "latitude out of range", query: "lat=91&lon=0", detail: "lat must be a latitude within [-90, 90]"},
		{name: "negative radius", query: "lat=0&lon=0&radius=-1", detail: "radius must be at least 0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body errorBody
			status := get(t, srv, "/api/v1/entities/parcels/near?"+tt.query, &body)

			require.Equal(t, http.StatusBadRequest, status)
			assert.Equal(t, "VALIDATION_ERROR", body.Code)
			assert.Contains(t, body.Details, tt.detail)
		})
	}
}

func TestJobsEndpoint(t *testing.T) {
	srv := newTestServer(t, testServerOptions{})

	var body struct {
		Message string     `json:"message"`
		Jobs    searchBody `json:"jobs"`
	}
	status := get(t, srv, "/api/v1/jobs?lat=51.5074&lon=-0.1278&parcelStatus=delivered&sort=created", &body)

	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body.Message)
	assert.Equal(t, []string{p3ID, p1ID}, contentIDs(body.Jobs), "only booked parcels are open")
}

func TestParcelsEndpoint(t *testing.T) {
	srv := newTestServer(t, testServerOptions{})

	var body searchBody
	status := get(t, srv, "/api/v1/parcels?q=cake&sort=created", &body)

	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []string{p3ID, p1ID}, contentIDs(body))
}

func TestAdminEndpoints(t *testing.T) {
	srv := newTestServer(t, testServerOptions{})

	var feeds struct {
		Feeds []string `json:"feeds"`
	}
	require.Equal(t, http.StatusOK, get(t, srv, "/api/v1/admin/feeds", &feeds))
	assert.Empty(t, feeds.Feeds)

	resp, err := srv.App.Test(httptest.NewRequest(http.MethodPost, "/api/v1/admin/ingest/missing", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t, testServerOptions{
		readiness: []middleware.ReadinessCheck{func(context.Context) error { return errors.New("database down") }},
	})

	assert.Equal(t, http.StatusOK, get(t, srv, "/livez", nil))
	assert.Equal(t, http.StatusServiceUnavailable, get(t, srv, "/readyz", nil))

	ready := newTestServer(t, testServerOptions{})
	assert.Equal(t, http.StatusOK, get(t, ready, "/readyz", nil))
}

func TestDashboardAndMetrics(t *testing.T) {
	srv := newTestServer(t, testServerOptions{})

	resp, err := srv.App.Test(httptest.NewRequest(http.MethodGet, "/dashboard", nil), -1)
	require.NoError(t, err)
	page, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(page), "5 documents stored")
	assert.Contains(t, string(page), "/api/v1/entities/parcels/search")

	get(t, srv, "/api/v1/parcels", &searchBody{})

	resp, err = srv.App.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	metrics, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(metrics), `docquery_http_requests_total{method="GET",path="/api/v1/parcels",status="200"}`)
	assert.Contains(t, string(metrics), "docquery_search_requests_total")
}
