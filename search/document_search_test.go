package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/carverlane/archivist/server/models"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/typedapi/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEngine is an in-memory stand-in for the search engine. It implements
// enough of the search endpoint (sorting, size, search_after, totals) for
// pagination to behave like the real thing, and records every request it sees.
type fakeEngine struct {
	t       *testing.T
	index   string
	sources []map[string]any

	// status forces every response to fail with the given HTTP status.
	status int

	mu       sync.Mutex
	searches []capturedSearch
	indexed  []capturedIndex
	deleted  []string
}

type capturedSearch struct {
	path           string
	size           int
	sort           []map[string]string
	searchAfter    []any
	trackTotalHits *bool
	query          map[string]any
}

type capturedIndex struct {
	id      string
	refresh string
	source  map[string]any
}

type fakeSortKey struct {
	field string
	desc  bool
}

func newFakeEngine(t *testing.T, index string, sources []map[string]any) (*fakeEngine, *elasticsearch.TypedClient) {
	f := &fakeEngine{t: t, index: index, sources: sources}

	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	client, err := elasticsearch.NewTypedClient(elasticsearch.Config{
		Addresses:    []string{srv.URL},
		DisableRetry: true,
	})
	require.NoError(t, err)

	return f, client
}

func (f *fakeEngine) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Clients refuse to talk to servers that do not identify as Elasticsearch.
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")

	if f.status != 0 {
		w.WriteHeader(f.status)
		_, _ = w.Write([]byte(`{"error":{"type":"unavailable_shards_exception","reason":"primary shard is not active"},"status":` + fmt.Sprint(f.status) + `}`))
		return
	}

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/"+f.index+"/_search":
		f.handleSearch(w, r)
	case r.Method == http.MethodPut && strings.HasPrefix(r.URL.Path, "/"+f.index+"/_doc/"):
		f.handleIndex(w, r)
	case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/"+f.index+"/_doc/"):
		f.handleDelete(w, r)
	default:
		f.t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"type":"index_not_found_exception","reason":"no such index"},"status":404}`))
	}
}

func (f *fakeEngine) handleSearch(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Size           *int             `json:"size"`
		Sort           []map[string]any `json:"sort"`
		SearchAfter    []any            `json:"search_after"`
		TrackTotalHits *bool            `json:"track_total_hits"`
		Query          map[string]any   `json:"query"`
	}
	decoder := json.NewDecoder(r.Body)
	decoder.UseNumber()
	if err := decoder.Decode(&body); err != nil {
		f.t.Errorf("decoding search request: %v", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	keys := make([]fakeSortKey, 0, len(body.Sort))
	rendered := make([]map[string]string, 0, len(body.Sort))
	for _, entry := range body.Sort {
		for field, raw := range entry {
			order := "asc"
			switch v := raw.(type) {
			case map[string]any:
				if o, ok := v["order"].(string); ok {
					order = o
				}
			case string:
				order = v
			}
			keys = append(keys, fakeSortKey{field: field, desc: order == "desc"})
			rendered = append(rendered, map[string]string{field: order})
		}
	}

	size := 10
	if body.Size != nil {
		size = *body.Size
	}

	f.mu.Lock()
	f.searches = append(f.searches, capturedSearch{
		path:           r.URL.Path,
		size:           size,
		sort:           rendered,
		searchAfter:    body.SearchAfter,
		trackTotalHits: body.TrackTotalHits,
		query:          body.Query,
	})
	f.mu.Unlock()

	docs := make([]map[string]any, len(f.sources))
	copy(docs, f.sources)
	sort.SliceStable(docs, func(i, j int) bool {
		return lessBySortKeys(docs[i], docs[j], keys)
	})

	if body.SearchAfter != nil {
		filtered := docs[:0]
		for _, doc := range docs {
			if afterCursor(doc, body.SearchAfter, keys) {
				filtered = append(filtered, doc)
			}
		}
		docs = filtered
	}

	if len(docs) > size {
		docs = docs[:size]
	}

	hits := make([]map[string]any, 0, len(docs))
	for _, doc := range docs {
		sortValues := make([]any, len(keys))
		for i, k := range keys {
			sortValues[i] = sortValue(doc, k.field)
		}
		hits = append(hits, map[string]any{
			"_index":  f.index,
			"_id":     doc["uuid"],
			"_score":  nil,
			"sort":    sortValues,
			"_source": doc,
		})
	}

	hitsMeta := map[string]any{
		"max_score": nil,
		"hits":      hits,
	}
	if body.TrackTotalHits != nil && *body.TrackTotalHits {
		hitsMeta["total"] = map[string]any{"value": len(f.sources), "relation": "eq"}
	}

	response := map[string]any{
		"took":      1,
		"timed_out": false,
		"_shards":   map[string]any{"total": 1, "successful": 1, "skipped": 0, "failed": 0},
		"hits":      hitsMeta,
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		f.t.Errorf("encoding search response: %v", err)
	}
}

func (f *fakeEngine) handleIndex(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/"+f.index+"/_doc/")

	var source map[string]any
	if err := json.NewDecoder(r.Body).Decode(&source); err != nil {
		f.t.Errorf("decoding index request: %v", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	f.indexed = append(f.indexed, capturedIndex{
		id:      id,
		refresh: r.URL.Query().Get("refresh"),
		source:  source,
	})
	f.mu.Unlock()

	w.WriteHeader(http.StatusCreated)
	_, _ = fmt.Fprintf(w, `{"_index":%q,"_id":%q,"result":"created"}`, f.index, id)
}

func (f *fakeEngine) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/"+f.index+"/_doc/")

	f.mu.Lock()
	f.deleted = append(f.deleted, id)
	f.mu.Unlock()

	for _, doc := range f.sources {
		if doc["uuid"] == id {
			_, _ = fmt.Fprintf(w, `{"_index":%q,"_id":%q,"result":"deleted"}`, f.index, id)
			return
		}
	}

	w.WriteHeader(http.StatusNotFound)
	_, _ = fmt.Fprintf(w, `{"_index":%q,"_id":%q,"result":"not_found"}`, f.index, id)
}

// sortValue resolves an index sort field against a document source. Sub-fields
// sort on their parent value and _score is constant because the fake does not
// rank.
func sortValue(source map[string]any, field string) any {
	switch field {
	case "_score":
		return 0
	case "title.keyword":
		return source["title"]
	default:
		return source[field]
	}
}

func lessBySortKeys(a, b map[string]any, keys []fakeSortKey) bool {
	for _, k := range keys {
		c := compareSortValues(sortValue(a, k.field), sortValue(b, k.field))
		if c == 0 {
			continue
		}
		if k.desc {
			return c > 0
		}
		return c < 0
	}
	return false
}

// afterCursor reports whether doc sorts strictly after the cursor tuple.
func afterCursor(doc map[string]any, cursor []any, keys []fakeSortKey) bool {
	for i, k := range keys {
		if i >= len(cursor) {
			return false
		}
		c := compareSortValues(sortValue(doc, k.field), cursor[i])
		if c == 0 {
			continue
		}
		if k.desc {
			return c < 0
		}
		return c > 0
	}
	return false
}

func compareSortValues(a, b any) int {
	av, aok := numericValue(a)
	bv, bok := numericValue(b)
	if aok && bok {
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(fmt.Sprintf("%v", a), fmt.Sprintf("%v", b))
}

func numericValue(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// testSources builds one document source per given size, with sequential ids
// so duplicate sizes exercise the tiebreaker.
func testSources(sizes ...int) []map[string]any {
	sources := make([]map[string]any, 0, len(sizes))
	for i, size := range sizes {
		id := i + 1
		sources = append(sources, map[string]any{
			"id":         id,
			"uuid":       fmt.Sprintf("doc-%d", id),
			"title":      fmt.Sprintf("Document %d", id),
			"text":       "body",
			"facets":     []string{"test"},
			"size_bytes": size,
			"created_at": fmt.Sprintf("2024-03-%02dT10:00:00Z", id),
			"updated_at": fmt.Sprintf("2024-03-%02dT10:00:00Z", id),
		})
	}
	return sources
}

func newTestSearch(t *testing.T, sources []map[string]any, cfg Config) (*fakeEngine, *DocumentSearch) {
	if cfg.Index == "" {
		cfg.Index = "archivist-documents"
	}
	if cfg.DefaultPageSize == 0 {
		cfg.DefaultPageSize = 10
	}
	if cfg.MaxPageSize == 0 {
		cfg.MaxPageSize = 50
	}
	if cfg.CursorKey == "" {
		cfg.CursorKey = "secret"
	}

	f, client := newFakeEngine(t, cfg.Index, sources)
	return f, NewDocumentSearch(client, cfg)
}

func resultUUIDs(records []*models.DocumentSearchRecord) []string {
	uuids := make([]string, len(records))
	for i, record := range records {
		uuids[i] = record.UUID
	}
	return uuids
}

func TestDocumentSearch_WalksAllPagesWithoutDuplicates(t *testing.T) {
	ctx := context.Background()

	// Five documents with duplicated sort keys, paged two at a time, must come
	// back as exactly three pages with no document repeated or skipped.
	_, s := newTestSearch(t, testSources(10, 20, 20, 30, 30), Config{})

	options := &DocumentSearchOptions{
		Sort:  []SortClause{{Field: DocumentSortBySize, Direction: SortDirectionAsc}},
		Limit: 2,
	}

	page1, err := s.Search(ctx, options)
	require.NoError(t, err)
	assert.Equal(t, []string{"doc-1", "doc-2"}, resultUUIDs(page1.Data))
	assert.True(t, page1.HasMore)
	require.NotNil(t, page1.NextCursor)

	options.StartingAfter = *page1.NextCursor
	page2, err := s.Search(ctx, options)
	require.NoError(t, err)
	assert.Equal(t, []string{"doc-3", "doc-4"}, resultUUIDs(page2.Data))
	assert.True(t, page2.HasMore)
	require.NotNil(t, page2.NextCursor)

	options.StartingAfter = *page2.NextCursor
	page3, err := s.Search(ctx, options)
	require.NoError(t, err)
	assert.Equal(t, []string{"doc-5"}, resultUUIDs(page3.Data))
	assert.False(t, page3.HasMore)
	assert.Nil(t, page3.NextCursor)
}

func TestDocumentSearch_TiebreakerOrdersDuplicateKeys(t *testing.T) {
	ctx := context.Background()

	_, s := newTestSearch(t, testSources(10, 20, 20, 30, 30), Config{})

	result, err := s.Search(ctx, &DocumentSearchOptions{
		Sort: []SortClause{{Field: DocumentSortBySize, Direction: SortDirectionDesc}},
	})
	require.NoError(t, err)

	// Duplicates resolve by ascending id regardless of the outer direction.
	assert.Equal(t, []string{"doc-4", "doc-5", "doc-2", "doc-3", "doc-1"}, resultUUIDs(result.Data))
}

func TestDocumentSearch_Deterministic(t *testing.T) {
	ctx := context.Background()

	_, s := newTestSearch(t, testSources(10, 20, 20, 30, 30), Config{})

	options := &DocumentSearchOptions{
		Sort:  []SortClause{{Field: DocumentSortBySize, Direction: SortDirectionAsc}},
		Limit: 2,
	}

	first, err := s.Search(ctx, options)
	require.NoError(t, err)
	second, err := s.Search(ctx, options)
	require.NoError(t, err)

	assert.Equal(t, resultUUIDs(first.Data), resultUUIDs(second.Data))

	// Identical requests over identical data mint identical cursors.
	require.NotNil(t, first.NextCursor)
	require.NotNil(t, second.NextCursor)
	assert.Equal(t, *first.NextCursor, *second.NextCursor)
}

func TestDocumentSearch_FinalPageExactFit(t *testing.T) {
	ctx := context.Background()

	// When the remaining documents exactly fill the page there is no next
	// cursor, so the extra probed document is the only thing standing between
	// "full page" and "more pages".
	_, s := newTestSearch(t, testSources(10, 20, 30), Config{})

	result, err := s.Search(ctx, &DocumentSearchOptions{
		Sort:  []SortClause{{Field: DocumentSortBySize, Direction: SortDirectionAsc}},
		Limit: 3,
	})
	require.NoError(t, err)

	assert.Len(t, result.Data, 3)
	assert.False(t, result.HasMore)
	assert.Nil(t, result.NextCursor)
}

func TestDocumentSearch_OverfetchesByOne(t *testing.T) {
	ctx := context.Background()

	f, s := newTestSearch(t, testSources(10, 20, 30, 40), Config{})

	result, err := s.Search(ctx, &DocumentSearchOptions{Limit: 2})
	require.NoError(t, err)

	require.Len(t, f.searches, 1)
	assert.Equal(t, 3, f.searches[0].size)
	assert.Len(t, result.Data, 2)
	assert.True(t, result.HasMore)
}

func TestDocumentSearch_ClampsLimitToMax(t *testing.T) {
	ctx := context.Background()

	f, s := newTestSearch(t, testSources(10, 20, 30, 40, 50, 60), Config{MaxPageSize: 4})

	result, err := s.Search(ctx, &DocumentSearchOptions{Limit: 100})
	require.NoError(t, err)

	require.Len(t, f.searches, 1)
	assert.Equal(t, 5, f.searches[0].size)
	assert.Len(t, result.Data, 4)
	assert.True(t, result.HasMore)
}

func TestDocumentSearch_DefaultLimit(t *testing.T) {
	ctx := context.Background()

	f, s := newTestSearch(t, testSources(10, 20), Config{DefaultPageSize: 3})

	_, err := s.Search(ctx, &DocumentSearchOptions{})
	require.NoError(t, err)

	require.Len(t, f.searches, 1)
	assert.Equal(t, 4, f.searches[0].size)
}

func TestDocumentSearch_DefaultSortIsNewestFirst(t *testing.T) {
	ctx := context.Background()

	f, s := newTestSearch(t, testSources(10, 20, 30), Config{})

	result, err := s.Search(ctx, &DocumentSearchOptions{})
	require.NoError(t, err)

	require.Len(t, f.searches, 1)
	assert.Equal(t, []map[string]string{
		{"created_at": "desc"},
		{"id": "asc"},
	}, f.searches[0].sort)
	assert.Equal(t, []string{"doc-3", "doc-2", "doc-1"}, resultUUIDs(result.Data))
}

func TestDocumentSearch_SortRendering(t *testing.T) {
	ctx := context.Background()

	f, s := newTestSearch(t, testSources(10), Config{})

	_, err := s.Search(ctx, &DocumentSearchOptions{
		Sort: []SortClause{
			{Field: DocumentSortByRelevance, Direction: SortDirectionDesc},
			{Field: DocumentSortByCreatedAt, Direction: SortDirectionAsc},
		},
	})
	require.NoError(t, err)

	require.Len(t, f.searches, 1)
	assert.Equal(t, []map[string]string{
		{"_score": "desc"},
		{"created_at": "asc"},
		{"id": "asc"},
	}, f.searches[0].sort)
}

func TestDocumentSearch_SearchAfterPassthrough(t *testing.T) {
	ctx := context.Background()

	f, s := newTestSearch(t, testSources(10, 20, 20, 30, 30), Config{})

	options := &DocumentSearchOptions{
		Sort:  []SortClause{{Field: DocumentSortBySize, Direction: SortDirectionAsc}},
		Limit: 2,
	}

	page1, err := s.Search(ctx, options)
	require.NoError(t, err)
	require.NotNil(t, page1.NextCursor)

	options.StartingAfter = *page1.NextCursor
	_, err = s.Search(ctx, options)
	require.NoError(t, err)

	require.Len(t, f.searches, 2)
	assert.Nil(t, f.searches[0].searchAfter)

	// The second request resumes from the exact sort tuple of the last
	// document on page one, numbers intact.
	assert.Equal(t, []any{json.Number("20"), json.Number("2")}, f.searches[1].searchAfter)
}

func TestDocumentSearch_ExactCounts(t *testing.T) {
	ctx := context.Background()

	f, s := newTestSearch(t, testSources(10, 20, 20, 30, 30), Config{ExactCounts: true})

	result, err := s.Search(ctx, &DocumentSearchOptions{Limit: 2})
	require.NoError(t, err)

	require.Len(t, f.searches, 1)
	require.NotNil(t, f.searches[0].trackTotalHits)
	assert.True(t, *f.searches[0].trackTotalHits)
	assert.Equal(t, int64(5), result.TotalCount)
}

func TestDocumentSearch_ApproximateCounts(t *testing.T) {
	ctx := context.Background()

	f, s := newTestSearch(t, testSources(10, 20, 20, 30, 30), Config{ExactCounts: false})

	result, err := s.Search(ctx, &DocumentSearchOptions{Limit: 2})
	require.NoError(t, err)

	// Total tracking is left to the engine default and an absent total is
	// tolerated.
	require.Len(t, f.searches, 1)
	assert.Nil(t, f.searches[0].trackTotalHits)
	assert.Equal(t, int64(0), result.TotalCount)
	assert.Len(t, result.Data, 2)
}

func TestDocumentSearch_FilterAppliedToQuery(t *testing.T) {
	ctx := context.Background()

	f, s := newTestSearch(t, testSources(10, 20), Config{})

	_, err := s.Search(ctx, &DocumentSearchOptions{
		Filter: &Filter{Term: "report"},
	})
	require.NoError(t, err)

	require.Len(t, f.searches, 1)
	_, ok := f.searches[0].query["bool"]
	assert.True(t, ok, "term filter should render a bool query")
}

func TestDocumentSearch_InvalidFilterRejectedBeforeQuery(t *testing.T) {
	ctx := context.Background()

	f, s := newTestSearch(t, testSources(10), Config{})

	_, err := s.Search(ctx, &DocumentSearchOptions{
		Filter: &Filter{Facets: []string{""}},
	})

	var filterErr *InvalidFilterError
	require.ErrorAs(t, err, &filterErr)
	assert.Empty(t, f.searches, "invalid filters must not reach the engine")
}

func TestDocumentSearch_MalformedCursorRejectedBeforeQuery(t *testing.T) {
	ctx := context.Background()

	f, s := newTestSearch(t, testSources(10, 20), Config{})

	_, err := s.Search(ctx, &DocumentSearchOptions{
		StartingAfter: "!!!not a cursor!!!",
	})

	var malformedErr *MalformedCursorError
	require.ErrorAs(t, err, &malformedErr)
	assert.Empty(t, f.searches)
}

func TestDocumentSearch_IncompatibleCursorRejected(t *testing.T) {
	ctx := context.Background()

	f, s := newTestSearch(t, testSources(10, 20), Config{})

	// Mint a cursor under an updated_at ordering, then replay it against a
	// size ordering.
	token, err := NewCodec("secret").Encode(
		[]types.FieldValue{"2024-03-01T10:00:00Z", json.Number("1")},
		[]string{"updated_at", "id"},
	)
	require.NoError(t, err)

	_, err = s.Search(ctx, &DocumentSearchOptions{
		Sort:          []SortClause{{Field: DocumentSortBySize, Direction: SortDirectionAsc}},
		StartingAfter: token,
	})

	var incompatibleErr *IncompatibleCursorError
	require.ErrorAs(t, err, &incompatibleErr)
	assert.Equal(t, []string{"size_bytes", "id"}, incompatibleErr.Expected)
	assert.Equal(t, []string{"updated_at", "id"}, incompatibleErr.Got)
	assert.Empty(t, f.searches)
}

func TestDocumentSearch_CursorSurvivesSortRestatement(t *testing.T) {
	ctx := context.Background()

	// The same sort restated on the next request is compatible; page two
	// resumes cleanly.
	_, s := newTestSearch(t, testSources(10, 20, 30), Config{})

	options := &DocumentSearchOptions{
		Sort:  []SortClause{{Field: DocumentSortByCreatedAt, Direction: SortDirectionAsc}},
		Limit: 2,
	}

	page1, err := s.Search(ctx, options)
	require.NoError(t, err)
	require.NotNil(t, page1.NextCursor)

	page2, err := s.Search(ctx, &DocumentSearchOptions{
		Sort:          []SortClause{{Field: DocumentSortByCreatedAt, Direction: SortDirectionAsc}},
		Limit:         2,
		StartingAfter: *page1.NextCursor,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"doc-3"}, resultUUIDs(page2.Data))
}

func TestDocumentSearch_EngineFailure(t *testing.T) {
	ctx := context.Background()

	f, s := newTestSearch(t, testSources(10), Config{})
	f.status = http.StatusServiceUnavailable

	_, err := s.Search(ctx, &DocumentSearchOptions{})

	var unavailableErr *SearchUnavailableError
	assert.ErrorAs(t, err, &unavailableErr)
}

func TestDocumentSearch_HitFieldsSurviveMapping(t *testing.T) {
	ctx := context.Background()

	_, s := newTestSearch(t, testSources(1024), Config{})

	result, err := s.Search(ctx, &DocumentSearchOptions{})
	require.NoError(t, err)
	require.Len(t, result.Data, 1)

	record := result.Data[0]
	assert.Equal(t, int64(1), record.ID)
	assert.Equal(t, "doc-1", record.UUID)
	assert.Equal(t, "Document 1", record.Title)
	assert.Equal(t, []string{"test"}, record.Facets)
	assert.Equal(t, int64(1024), record.SizeBytes)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), record.CreatedAt.UTC())
	assert.Nil(t, record.CollectionUUID)
}

func TestDocumentSearch_IndexSendsRefresh(t *testing.T) {
	ctx := context.Background()

	f, s := newTestSearch(t, nil, Config{})

	record := &models.DocumentSearchRecord{
		ID:        9,
		UUID:      "doc-9",
		Title:     "Filed report",
		Text:      "body",
		SizeBytes: 64,
		CreatedAt: time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.Index(ctx, record))

	require.Len(t, f.indexed, 1)
	assert.Equal(t, "doc-9", f.indexed[0].id)
	assert.Equal(t, "true", f.indexed[0].refresh)
	assert.Equal(t, "Filed report", f.indexed[0].source["title"])
}

func TestDocumentSearch_DeleteToleratesMissing(t *testing.T) {
	ctx := context.Background()

	f, s := newTestSearch(t, testSources(10), Config{})

	require.NoError(t, s.Delete(ctx, "doc-1"))
	require.NoError(t, s.Delete(ctx, "doc-404"))

	assert.Equal(t, []string{"doc-1", "doc-404"}, f.deleted)
}
