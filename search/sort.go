package search

import (
	"github.com/elastic/go-elasticsearch/v8/typedapi/types"
	"github.com/elastic/go-elasticsearch/v8/typedapi/types/enums/sortorder"
)

// SortDirection specifies the sort order
type SortDirection string

// Sort direction constants
const (
	SortDirectionAsc  SortDirection = "asc"
	SortDirectionDesc SortDirection = "desc"
)

type DocumentSortBy string

// Sort field constants for documents. The values are the index-side field
// names, so keyword sub-fields appear where the top-level field is full text.
const (
	DocumentSortByRelevance DocumentSortBy = "_score"
	DocumentSortByCreatedAt DocumentSortBy = "created_at"
	DocumentSortByUpdatedAt DocumentSortBy = "updated_at"
	DocumentSortByTitle     DocumentSortBy = "title.keyword"
	DocumentSortBySize      DocumentSortBy = "size_bytes"
	DocumentSortByID        DocumentSortBy = "id"
)

// tiebreakerField is unique per document and keeps every ordering total.
const tiebreakerField = DocumentSortByID

var sortableFields = map[DocumentSortBy]struct{}{
	DocumentSortByRelevance: {},
	DocumentSortByCreatedAt: {},
	DocumentSortByUpdatedAt: {},
	DocumentSortByTitle:     {},
	DocumentSortBySize:      {},
	DocumentSortByID:        {},
}

// SortClause is one caller-requested ordering field.
type SortClause struct {
	Field     DocumentSortBy
	Direction SortDirection
}

// SortSpec is the final deterministic ordering for one request. It is
// immutable once composed; a cursor is only valid against the spec whose
// field sequence produced it.
type SortSpec struct {
	clauses []SortClause
}

// Compose builds the final ordering from the caller's requested clauses.
// Requested order and directions are preserved, fields without an efficiently
// sortable index representation are dropped, and the unique id tiebreaker is
// always appended last, ascending. An empty request falls back to
// created_at descending.
func Compose(requested []SortClause) SortSpec {
	clauses := make([]SortClause, 0, len(requested)+1)
	for i, clause := range requested {
		if _, ok := sortableFields[clause.Field]; !ok {
			continue
		}
		if clause.Field == tiebreakerField && i == len(requested)-1 {
			// A trailing id clause restates the tiebreaker, which is appended
			// below with its fixed direction. Anywhere earlier, id is an
			// ordinary sort key and keeps its requested place.
			continue
		}
		if clause.Direction == "" {
			clause.Direction = SortDirectionDesc
		}
		clauses = append(clauses, clause)
	}

	if len(clauses) == 0 && len(requested) == 0 {
		clauses = append(clauses, SortClause{Field: DocumentSortByCreatedAt, Direction: SortDirectionDesc})
	}

	clauses = append(clauses, SortClause{Field: tiebreakerField, Direction: SortDirectionAsc})

	return SortSpec{clauses: clauses}
}

// FieldNames returns the index field sequence. It doubles as the cursor
// signature used for compatibility checks.
func (s SortSpec) FieldNames() []string {
	names := make([]string, len(s.clauses))
	for i, clause := range s.clauses {
		names[i] = string(clause.Field)
	}
	return names
}

// Verify checks a decoded cursor signature against this spec, field for field.
func (s SortSpec) Verify(fields []string) error {
	expected := s.FieldNames()
	if len(fields) != len(expected) {
		return &IncompatibleCursorError{Expected: expected, Got: fields}
	}
	for i := range expected {
		if fields[i] != expected[i] {
			return &IncompatibleCursorError{Expected: expected, Got: fields}
		}
	}
	return nil
}

// SortCombinations renders the spec as Elasticsearch sort clauses. Each field
// becomes its own entry so the emitted order matches the spec exactly.
func (s SortSpec) SortCombinations() []types.SortCombinations {
	combinations := make([]types.SortCombinations, 0, len(s.clauses))
	for _, clause := range s.clauses {
		order := sortorder.Desc
		if clause.Direction == SortDirectionAsc {
			order = sortorder.Asc
		}
		combinations = append(combinations, types.SortOptions{
			SortOptions: map[string]types.FieldSort{
				string(clause.Field): {
					Order: &order,
				},
			},
		})
	}
	return combinations
}
