package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/carverlane/archivist/server/models"
	"github.com/carverlane/archivist/server/utils"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	elastic_search "github.com/elastic/go-elasticsearch/v8/typedapi/core/search"
	"github.com/elastic/go-elasticsearch/v8/typedapi/types"
	"github.com/rs/zerolog/log"
)

// Config carries the injected engine settings. Index is the fully resolved
// index name, page sizes bound every request, and ExactCounts selects whether
// totals are exact or engine-approximated.
type Config struct {
	Index           string
	DefaultPageSize int
	MaxPageSize     int
	ExactCounts     bool
	CursorKey       string
}

type DocumentSearch struct {
	client *elasticsearch.TypedClient
	codec  *Codec
	cfg    Config
}

func NewDocumentSearch(client *elasticsearch.TypedClient, cfg Config) *DocumentSearch {
	return &DocumentSearch{
		client: client,
		codec:  NewCodec(cfg.CursorKey),
		cfg:    cfg,
	}
}

func (s *DocumentSearch) Index(ctx context.Context, record *models.DocumentSearchRecord) error {
	// Marshal the document
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("error marshalling document: %w", err)
	}

	// Create index request
	req := esapi.IndexRequest{
		Index:      s.cfg.Index,
		DocumentID: record.UUID,
		Body:       bytes.NewReader(payload),
		// Make the document immediately searchable
		Refresh: "true",
	}

	// Execute the request
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return fmt.Errorf("error executing index request: %w", err)
	}

	// Handle potential close error
	defer func() {
		if closeErr := res.Body.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("Failed to close Elasticsearch response body")
		}
	}()

	// Check if the request was successful
	if res.IsError() {
		var e map[string]any
		if err := json.NewDecoder(res.Body).Decode(&e); err != nil {
			return fmt.Errorf("error parsing the response body: %w", err)
		}
		return fmt.Errorf("error indexing document [status:%s]: %v", res.Status(), e)
	}

	return nil
}

func (s *DocumentSearch) Delete(ctx context.Context, uuid string) error {
	req := esapi.DeleteRequest{
		Index:      s.cfg.Index,
		DocumentID: uuid,
		Refresh:    "true",
	}

	res, err := req.Do(ctx, s.client)
	if err != nil {
		return fmt.Errorf("error executing delete request: %w", err)
	}

	defer func() {
		if closeErr := res.Body.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("Failed to close Elasticsearch response body")
		}
	}()

	if res.IsError() {
		if res.StatusCode != 404 {
			var e map[string]any
			if err := json.NewDecoder(res.Body).Decode(&e); err != nil {
				return fmt.Errorf("error parsing error response: %w", err)
			} else {
				return fmt.Errorf("error deleting document from index [status: %s]: %v", res.Status(), e)
			}
		}
	}

	return nil
}

type DocumentSearchOptions struct {
	// Filters
	Filter *Filter

	// Sorting
	Sort []SortClause

	// Pagination
	Limit         int
	StartingAfter string // Opaque cursor from the previous page
}

func (s *DocumentSearch) Search(ctx context.Context, options *DocumentSearchOptions) (*utils.PaginatedResult[*models.DocumentSearchRecord], error) {
	// Normalize the limit value
	limit := options.Limit
	if limit <= 0 {
		limit = s.cfg.DefaultPageSize
	} else if limit > s.cfg.MaxPageSize {
		limit = s.cfg.MaxPageSize
	}

	// Fix the ordering first so cursor compatibility is judged against the
	// same field sequence this page will sort by
	spec := Compose(options.Sort)

	var searchAfter []types.FieldValue
	if options.StartingAfter != "" {
		values, fields, err := s.codec.Decode(options.StartingAfter)
		if err != nil {
			return nil, err
		}
		if err := spec.Verify(fields); err != nil {
			return nil, err
		}
		searchAfter = values
	}

	// Build the Elasticsearch query
	query, err := Translate(options.Filter)
	if err != nil {
		return nil, err
	}

	req := &elastic_search.Request{
		Size:  utils.NewPointer(limit + 1), // Extra document to detect more pages
		Query: query,
		Sort:  spec.SortCombinations(),
	}

	// If a StartingAfter cursor was provided, resume from it
	if searchAfter != nil {
		req.SearchAfter = searchAfter
	}

	call := s.client.Search().Index(s.cfg.Index).Request(req)
	if s.cfg.ExactCounts {
		call = call.TrackTotalHits(true)
	}

	// Execute the search
	res, err := call.Do(ctx)
	if err != nil {
		return nil, &SearchUnavailableError{cause: err}
	}

	// Extract total count, which the engine omits or bounds when exact
	// counts are disabled
	var totalHits int64
	if res.Hits.Total != nil {
		totalHits = res.Hits.Total.Value
	}
	hits := res.Hits.Hits

	// Determine if we have more results by checking if we have one extra hit
	hasMore := len(hits) > limit
	if hasMore {
		hits = hits[:limit] // Remove the extra hit from the data set
	}

	// Convert hits to records
	records := make([]*models.DocumentSearchRecord, 0, len(hits))
	var nextCursor *string
	for i, hit := range hits {
		record, err := s.hitToRecord(hit)
		if err != nil {
			return nil, fmt.Errorf("error converting hit to document record: %w", err)
		}
		records = append(records, record)

		// If this is the last hit and there are more results, its "sort"
		// values become the next page's cursor.
		if i == len(hits)-1 && hasMore {
			token, err := s.codec.Encode(hit.Sort, spec.FieldNames())
			if err != nil {
				return nil, fmt.Errorf("error encoding next cursor: %w", err)
			}
			nextCursor = &token
		}
	}

	return &utils.PaginatedResult[*models.DocumentSearchRecord]{
		Data:       records,
		HasMore:    hasMore,
		TotalCount: totalHits,
		NextCursor: nextCursor,
	}, nil
}

// rawDocumentSearchRecord is a helper type for unmarshalling the Elasticsearch hit source.
type rawDocumentSearchRecord struct {
	ID             float64  `json:"id"`
	UUID           string   `json:"uuid"`
	Title          string   `json:"title"`
	Text           string   `json:"text"`
	Facets         []string `json:"facets"`
	CollectionUUID *string  `json:"collection_uuid"`
	CollectionName *string  `json:"collection_name"`
	SizeBytes      int64    `json:"size_bytes"`
	CreatedAt      string   `json:"created_at"`
	UpdatedAt      string   `json:"updated_at"`
}

func (s *DocumentSearch) hitToRecord(hit types.Hit) (*models.DocumentSearchRecord, error) {
	var raw rawDocumentSearchRecord
	if err := json.Unmarshal(hit.Source_, &raw); err != nil {
		return nil, fmt.Errorf("error unmarshalling hit source: %w", err)
	}

	createdAt, err := time.Parse(time.RFC3339, raw.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("error parsing created_at: %w", err)
	}

	updatedAt, err := time.Parse(time.RFC3339, raw.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("error parsing updated_at: %w", err)
	}

	return &models.DocumentSearchRecord{
		ID:             int64(raw.ID),
		UUID:           raw.UUID,
		Title:          raw.Title,
		Text:           raw.Text,
		Facets:         raw.Facets,
		CollectionUUID: raw.CollectionUUID,
		CollectionName: raw.CollectionName,
		SizeBytes:      raw.SizeBytes,
		CreatedAt:      createdAt,
		UpdatedAt:      updatedAt,
	}, nil
}
