package search

import (
	"fmt"

	"github.com/carverlane/archivist/server/utils"
	"github.com/elastic/go-elasticsearch/v8/typedapi/types"
)

// FacetMode selects how multiple facet values combine.
type FacetMode string

const (
	FacetModeAny FacetMode = "any" // at least one value must match
	FacetModeAll FacetMode = "all" // every value must match
)

// Filter describes the text, facet and collection constraints for one search.
// The zero value matches everything.
type Filter struct {
	Term           string
	Facets         []string
	FacetMode      FacetMode
	CollectionUUID *string
}

// Translate renders the filter as a native query. Constraint groups combine as
// AND at the top level; an absent group is omitted rather than matching
// nothing. Pagination is not this function's concern.
func Translate(filter *Filter) (*types.Query, error) {
	if filter == nil {
		return &types.Query{MatchAll: &types.MatchAllQuery{}}, nil
	}

	var musts []types.Query

	// Apply the free-text term across title and body text
	if filter.Term != "" {
		musts = append(musts, types.Query{
			Bool: &types.BoolQuery{
				Should: []types.Query{
					{
						Match: map[string]types.MatchQuery{
							"title": {
								Query: filter.Term,
								Boost: utils.NewPointer(float32(2.0)),
							},
						},
					},
					{
						Match: map[string]types.MatchQuery{
							"text": {
								Query: filter.Term,
							},
						},
					},
				},
				MinimumShouldMatch: 1,
			},
		})
	}

	// Apply facet constraints
	if len(filter.Facets) > 0 {
		for _, facet := range filter.Facets {
			if facet == "" {
				return nil, &InvalidFilterError{Field: "facets", Reason: "facet values must be non-empty"}
			}
		}

		switch filter.FacetMode {
		case FacetModeAll:
			for _, facet := range filter.Facets {
				musts = append(musts, types.Query{
					Term: map[string]types.TermQuery{
						"facets": {Value: facet},
					},
				})
			}
		case FacetModeAny, "":
			values := make([]types.FieldValue, len(filter.Facets))
			for i, facet := range filter.Facets {
				values[i] = facet
			}
			musts = append(musts, types.Query{
				Terms: &types.TermsQuery{
					TermsQuery: map[string]types.TermsQueryField{
						"facets": values,
					},
				},
			})
		default:
			return nil, &InvalidFilterError{Field: "facet_mode", Reason: fmt.Sprintf("unknown mode %q", filter.FacetMode)}
		}
	}

	// Scope to a single collection
	if filter.CollectionUUID != nil && *filter.CollectionUUID != "" {
		musts = append(musts, types.Query{
			Term: map[string]types.TermQuery{
				"collection_uuid": {Value: *filter.CollectionUUID},
			},
		})
	}

	if len(musts) == 0 {
		return &types.Query{MatchAll: &types.MatchAllQuery{}}, nil
	}

	return &types.Query{
		Bool: &types.BoolQuery{
			Must: musts,
		},
	}, nil
}
