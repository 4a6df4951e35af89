package search

import (
	"testing"

	"github.com/elastic/go-elasticsearch/v8/typedapi/types"
	"github.com/elastic/go-elasticsearch/v8/typedapi/types/enums/sortorder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompose_AppendsTiebreaker(t *testing.T) {
	spec := Compose([]SortClause{{Field: DocumentSortByUpdatedAt, Direction: SortDirectionDesc}})

	assert.Equal(t, []string{"updated_at", "id"}, spec.FieldNames())
}

func TestCompose_PreservesRequestedOrder(t *testing.T) {
	spec := Compose([]SortClause{
		{Field: DocumentSortBySize, Direction: SortDirectionAsc},
		{Field: DocumentSortByTitle, Direction: SortDirectionDesc},
		{Field: DocumentSortByCreatedAt, Direction: SortDirectionAsc},
	})

	assert.Equal(t, []string{"size_bytes", "title.keyword", "created_at", "id"}, spec.FieldNames())
}

func TestCompose_DropsUnknownFields(t *testing.T) {
	spec := Compose([]SortClause{
		{Field: DocumentSortBy("popularity"), Direction: SortDirectionDesc},
		{Field: DocumentSortByCreatedAt, Direction: SortDirectionAsc},
	})

	assert.Equal(t, []string{"created_at", "id"}, spec.FieldNames())
}

func TestCompose_AllFieldsDropped(t *testing.T) {
	// A request that was not empty but lost every field degrades to the bare
	// tiebreaker, not the default ordering.
	spec := Compose([]SortClause{{Field: DocumentSortBy("popularity")}})

	assert.Equal(t, []string{"id"}, spec.FieldNames())
}

func TestCompose_EmptyRequestUsesDefault(t *testing.T) {
	spec := Compose(nil)

	assert.Equal(t, []string{"created_at", "id"}, spec.FieldNames())
}

func TestCompose_NormalizesExplicitTiebreaker(t *testing.T) {
	// A caller-supplied id clause never doubles up, and its direction never
	// overrides the fixed ascending tiebreaker.
	spec := Compose([]SortClause{
		{Field: DocumentSortByTitle, Direction: SortDirectionAsc},
		{Field: DocumentSortByID, Direction: SortDirectionDesc},
	})

	assert.Equal(t, []string{"title.keyword", "id"}, spec.FieldNames())

	combinations := spec.SortCombinations()
	require.Len(t, combinations, 2)

	last, ok := combinations[1].(types.SortOptions)
	require.True(t, ok)
	require.NotNil(t, last.SortOptions["id"].Order)
	assert.Equal(t, sortorder.Asc, *last.SortOptions["id"].Order)
}

func TestCompose_PreservesLeadingIDSortKey(t *testing.T) {
	// An id clause ahead of other fields is a real sort key, not a restated
	// tiebreaker. It keeps its place and direction, and the fixed ascending
	// terminator is still appended.
	spec := Compose([]SortClause{
		{Field: DocumentSortByID, Direction: SortDirectionDesc},
		{Field: DocumentSortByTitle, Direction: SortDirectionAsc},
	})

	assert.Equal(t, []string{"id", "title.keyword", "id"}, spec.FieldNames())

	combinations := spec.SortCombinations()
	require.Len(t, combinations, 3)

	first, ok := combinations[0].(types.SortOptions)
	require.True(t, ok)
	require.NotNil(t, first.SortOptions["id"].Order)
	assert.Equal(t, sortorder.Desc, *first.SortOptions["id"].Order)

	last, ok := combinations[2].(types.SortOptions)
	require.True(t, ok)
	require.NotNil(t, last.SortOptions["id"].Order)
	assert.Equal(t, sortorder.Asc, *last.SortOptions["id"].Order)
}

func TestCompose_KeepsMidSequenceIDInPlace(t *testing.T) {
	spec := Compose([]SortClause{
		{Field: DocumentSortBySize, Direction: SortDirectionDesc},
		{Field: DocumentSortByID, Direction: SortDirectionAsc},
		{Field: DocumentSortByTitle, Direction: SortDirectionAsc},
	})

	assert.Equal(t, []string{"size_bytes", "id", "title.keyword", "id"}, spec.FieldNames())
}

func TestCompose_DefaultsDirectionToDescending(t *testing.T) {
	spec := Compose([]SortClause{{Field: DocumentSortBySize}})

	combinations := spec.SortCombinations()
	require.Len(t, combinations, 2)

	first, ok := combinations[0].(types.SortOptions)
	require.True(t, ok)
	require.NotNil(t, first.SortOptions["size_bytes"].Order)
	assert.Equal(t, sortorder.Desc, *first.SortOptions["size_bytes"].Order)
}

func TestCompose_Deterministic(t *testing.T) {
	requested := []SortClause{
		{Field: DocumentSortByTitle, Direction: SortDirectionAsc},
		{Field: DocumentSortBySize, Direction: SortDirectionDesc},
	}

	expected := Compose(requested).FieldNames()
	for i := 0; i < 50; i++ {
		assert.Equal(t, expected, Compose(requested).FieldNames())
	}
}

func TestSortSpec_Verify(t *testing.T) {
	spec := Compose([]SortClause{{Field: DocumentSortByUpdatedAt, Direction: SortDirectionAsc}})

	assert.NoError(t, spec.Verify([]string{"updated_at", "id"}))

	err := spec.Verify([]string{"created_at", "id"})
	var incompatibleErr *IncompatibleCursorError
	require.ErrorAs(t, err, &incompatibleErr)
	assert.Equal(t, []string{"updated_at", "id"}, incompatibleErr.Expected)
	assert.Equal(t, []string{"created_at", "id"}, incompatibleErr.Got)

	// A prefix of the expected sequence is still incompatible, as is a longer
	// sequence.
	assert.Error(t, spec.Verify([]string{"updated_at"}))
	assert.Error(t, spec.Verify([]string{"updated_at", "id", "size_bytes"}))
}

func TestSortSpec_SortCombinations_OneFieldPerEntry(t *testing.T) {
	spec := Compose([]SortClause{
		{Field: DocumentSortByRelevance, Direction: SortDirectionDesc},
		{Field: DocumentSortByCreatedAt, Direction: SortDirectionAsc},
	})

	combinations := spec.SortCombinations()
	require.Len(t, combinations, 3)

	for i, expected := range []string{"_score", "created_at", "id"} {
		options, ok := combinations[i].(types.SortOptions)
		require.True(t, ok)
		require.Len(t, options.SortOptions, 1)
		_, ok = options.SortOptions[expected]
		assert.True(t, ok, "entry %d should sort on %s", i, expected)
	}
}
