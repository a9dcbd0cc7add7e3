package feed

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testEndpoint = "https://parcels-feed.example.com/api/parcels"

func newTestClient(documentsPath string) *Client {
	cfg := Config{
		Name:          "parcels-feed",
		Collection:    "parcels",
		Path:          "/api/parcels",
		DocumentsPath: documentsPath,
		Client: ClientConfig{
			BaseURL: "https://parcels-feed.example.com",
			Timeout: 5 * time.Second,
			Retry: RetryConfig{
				MaxAttempts: 2,
				WaitTime:    10 * time.Millisecond,
				MaxWaitTime: 50 * time.Millisecond,
			},
			CB: CBConfig{
				MaxRequests:  5,
				Interval:     60 * time.Second,
				Timeout:      15 * time.Second,
				FailureRatio: 0.6,
			},
		},
	}
	client := New(cfg, zap.NewNop())

	httpmock.ActivateNonDefault(client.client.GetClient())

	return client
}

func TestFeed_Fetch_Success(t *testing.T) {
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("GET", testEndpoint,
		httpmock.NewStringResponder(200, `{
			"documents": [
				{"_id": "0f6a4a6e-3d1b-4c4e-8a55-8c1e1b4b0a01", "content": "Cake", "cost": {"amount": 12.5}},
				{"content": "Books", "tags": ["paper"]}
			]
		}`))

	client := newTestClient("")
	docs, err := client.Fetch(context.Background())

	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "Cake", docs[0]["content"])
	assert.Equal(t, map[string]any{"amount": 12.5}, docs[0]["cost"])
	assert.Equal(t, []any{"paper"}, docs[1]["tags"])
	assert.Equal(t, "parcels-feed", client.Name())
	assert.Equal(t, "parcels", client.Collection())
}

func TestFeed_Fetch_CustomDocumentsPath(t *testing.T) {
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("GET", testEndpoint,
		httpmock.NewStringResponder(200, `{"data": {"items": [{"content": "Lamp"}]}, "total": 1}`))

	client := newTestClient("data.items")
	docs, err := client.Fetch(context.Background())

	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Lamp", docs[0]["content"])
}

func TestFeed_Fetch_BadBodies(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{name: "not json", body: `<html>`, wantErr: "not valid JSON"},
		{name: "no array", body: `{"documents": {"content": "x"}}`, wantErr: `no document array at "documents"`},
		{name: "scalar element", body: `{"documents": [1]}`, wantErr: "documents.0 is not an object"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer httpmock.DeactivateAndReset()

			httpmock.RegisterResponder("GET", testEndpoint, httpmock.NewStringResponder(200, tt.body))

			client := newTestClient("")
			docs, err := client.Fetch(context.Background())

			require.Error(t, err)
			assert.Nil(t, docs)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestFeed_Fetch_HTTPError_4xx(t *testing.T) {
	defer httpmock.DeactivateAndReset()

	callCount := 0
	httpmock.RegisterResponder("GET", testEndpoint,
		func(_ *http.Request) (*http.Response, error) {
			callCount++
			return httpmock.NewStringResponse(404, "Not Found"), nil
		})

	client := newTestClient("")
	_, err := client.Fetch(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "returned status 404")
	assert.Equal(t, 1, callCount, "4xx responses are not retried")
}

func TestFeed_Retry_SucceedsAfter5xx(t *testing.T) {
	defer httpmock.DeactivateAndReset()

	callCount := 0
	httpmock.RegisterResponder("GET", testEndpoint,
		func(_ *http.Request) (*http.Response, error) {
			callCount++
			if callCount < 3 {
				return httpmock.NewStringResponse(503, "Unavailable"), nil
			}
			return httpmock.NewStringResponse(200, `{"documents": [{"content": "Cake"}]}`), nil
		})

	client := newTestClient("")
	docs, err := client.Fetch(context.Background())

	require.NoError(t, err)
	assert.Len(t, docs, 1)
	assert.Equal(t, 3, callCount)
}

func TestFeed_Fetch_NetworkError(t *testing.T) {
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("GET", testEndpoint,
		httpmock.NewErrorResponder(fmt.Errorf("network error: connection refused")))

	client := newTestClient("")
	docs, err := client.Fetch(context.Background())

	require.Error(t, err)
	assert.Nil(t, docs)
	assert.Contains(t, err.Error(), "fetching from parcels-feed")
}

func TestFeed_CircuitBreaker_Opens(t *testing.T) {
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("GET", testEndpoint,
		httpmock.NewStringResponder(500, "Internal Server Error"))

	client := newTestClient("")
	for i := 0; i < 3; i++ {
		_, err := client.Fetch(context.Background())
		require.Error(t, err)
	}

	calls := httpmock.GetTotalCallCount()
	_, err := client.Fetch(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "circuit breaker is open")
	assert.Equal(t, calls, httpmock.GetTotalCallCount(), "an open breaker makes no request")
}

func TestFeed_HealthCheck(t *testing.T) {
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("GET", "https://parcels-feed.example.com/health",
		httpmock.NewStringResponder(200, "ok"))

	client := newTestClient("")
	require.NoError(t, client.HealthCheck(context.Background()))

	httpmock.RegisterResponder("GET", "https://parcels-feed.example.com/health",
		httpmock.NewStringResponder(503, "down"))
	err := client.HealthCheck(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}
