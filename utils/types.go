package utils

// PaginatedResult is the envelope returned by every cursor-paginated listing.
// NextCursor is the opaque token for the next page, absent on the final page.
type PaginatedResult[T any] struct {
	Data       []T     `json:"data"`
	HasMore    bool    `json:"has_more"`
	TotalCount int64   `json:"total_count"`
	NextCursor *string `json:"next_cursor,omitempty"`
}
