package join

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docquery-service/internal/domain"
)

const (
	annID = "1b9d6bcd-bbfd-4b2d-9b5d-ab8dfbbd4bed"
	bobID = "6ec0bd7f-11c0-43da-975e-2a8ad9ebae0b"
	zoeID = "a5a2f4f0-8f5c-4a43-9a49-0c3c5a1f7d10"
)

// fakeFetcher serves users and keeps only those whose firstName is allowed.
type fakeFetcher struct {
	users   map[string]domain.Document
	allowed map[string]bool
	calls   int
	gotIDs  []domain.ReferenceID
}

func (f *fakeFetcher) fetch(_ context.Context, collection string, ids []domain.ReferenceID, _ domain.Expr) ([]domain.Document, error) {
	f.calls++
	f.gotIDs = ids
	if collection != "users" {
		return nil, errors.New("unknown collection")
	}
	var out []domain.Document
	for _, id := range ids {
		u, ok := f.users[id.String()]
		if !ok {
			continue
		}
		if f.allowed != nil && !f.allowed[u["firstName"].(string)] {
			continue
		}
		out = append(out, u)
	}
	return out, nil
}

func users() map[string]domain.Document {
	return map[string]domain.Document{
		annID: {"_id": annID, "firstName": "Ann"},
		bobID: {"_id": bobID, "firstName": "Bob"},
	}
}

func TestResolve_SingleReference(t *testing.T) {
	f := &fakeFetcher{users: users()}
	docs := []domain.Document{
		{"_id": "p1", "customer": annID},
		{"_id": "p2", "customer": bobID},
		{"_id": "p3", "customer": annID},
		{"_id": "p4", "customer": zoeID},
		{"_id": "p5"},
	}

	err := Resolve(context.Background(), docs, []domain.PopulateDirective{{Path: "customer", Collection: "users"}}, f.fetch)
	require.NoError(t, err)

	assert.Equal(t, 1, f.calls)
	assert.Len(t, f.gotIDs, 3, "ids are deduplicated")
	assert.Equal(t, "Ann", docs[0]["customer"].(domain.Document)["firstName"])
	assert.Equal(t, "Bob", docs[1]["customer"].(domain.Document)["firstName"])
	assert.Equal(t, "Ann", docs[2]["customer"].(domain.Document)["firstName"])
	assert.Nil(t, docs[3]["customer"], "missing reference resolves to nil")
	assert.NotContains(t, docs[4], "customer", "absent field stays absent")
}

func TestResolve_MatchFiltersReferences(t *testing.T) {
	f := &fakeFetcher{users: users(), allowed: map[string]bool{"Bob": true}}
	docs := []domain.Document{
		{"_id": "p1", "customer": annID, "watchers": []any{annID, bobID, "garbage"}},
	}

	err := Resolve(context.Background(), docs, []domain.PopulateDirective{
		{Path: "customer", Collection: "users", Match: []domain.Expr{domain.Contains{Field: "firstName", Value: "bob"}}},
		{Path: "watchers", Collection: "users", Match: []domain.Expr{domain.Contains{Field: "firstName", Value: "bob"}}},
	}, f.fetch)
	require.NoError(t, err)

	assert.Nil(t, docs[0]["customer"])
	require.Len(t, docs[0]["watchers"], 1)
	assert.Equal(t, "Bob", docs[0]["watchers"].([]any)[0].(domain.Document)["firstName"])
}

func TestResolve_NestedPath(t *testing.T) {
	f := &fakeFetcher{users: users()}
	docs := []domain.Document{
		{"_id": "p1", "delivery": map[string]any{"courier": bobID}},
	}

	err := Resolve(context.Background(), docs, []domain.PopulateDirective{{Path: "delivery.courier", Collection: "users"}}, f.fetch)
	require.NoError(t, err)

	courier := Get(docs[0], "delivery.courier")
	require.IsType(t, domain.Document{}, courier)
	assert.Equal(t, "Bob", courier.(domain.Document)["firstName"])
}

func TestResolve_FetchError(t *testing.T) {
	f := &fakeFetcher{users: users()}
	docs := []domain.Document{{"_id": "p1", "customer": annID}}

	err := Resolve(context.Background(), docs, []domain.PopulateDirective{{Path: "customer", Collection: "teams"}}, f.fetch)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "populating customer from teams")
}

func TestResolve_NoIDsSkipsFetch(t *testing.T) {
	f := &fakeFetcher{users: users()}
	docs := []domain.Document{{"_id": "p1", "customer": "not-an-id"}}

	err := Resolve(context.Background(), docs, []domain.PopulateDirective{{Path: "customer", Collection: "users"}}, f.fetch)
	require.NoError(t, err)

	assert.Equal(t, 0, f.calls)
	assert.Nil(t, docs[0]["customer"])
}
