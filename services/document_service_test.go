package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/carverlane/archivist/server/search"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// emptyPageEngine answers every search with zero hits, standing in for an
// index with no matching documents.
func emptyPageEngine(t *testing.T) *elasticsearch.TypedClient {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Clients refuse to talk to servers that do not identify as
		// Elasticsearch.
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"took":1,"timed_out":false,"_shards":{"total":1,"successful":1,"skipped":0,"failed":0},"hits":{"hits":[],"max_score":null}}`))
	}))
	t.Cleanup(srv.Close)

	client, err := elasticsearch.NewTypedClient(elasticsearch.Config{
		Addresses:    []string{srv.URL},
		DisableRetry: true,
	})
	require.NoError(t, err)

	return client
}

func TestDocumentService_Search_EmptyPageDataIsArray(t *testing.T) {
	service := &DocumentService{
		search: search.NewDocumentSearch(emptyPageEngine(t), search.Config{
			Index:           "archivist-documents",
			DefaultPageSize: 10,
			MaxPageSize:     50,
			CursorKey:       "secret",
		}),
	}

	result, err := service.Search(context.Background(), &search.DocumentSearchOptions{})
	require.NoError(t, err)

	require.NotNil(t, result.Data)
	assert.Empty(t, result.Data)
	assert.False(t, result.HasMore)
	assert.Nil(t, result.NextCursor)

	body, err := json.Marshal(result)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"data":[]`)
}
