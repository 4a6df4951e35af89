package search

import "fmt"

// MalformedCursorError indicates a cursor token that could not be decoded.
// It is a caller error and never worth retrying.
type MalformedCursorError struct {
	cause error
}

func (e *MalformedCursorError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("malformed cursor: %v", e.cause)
	}
	return "malformed cursor"
}

func (e *MalformedCursorError) Unwrap() error {
	return e.cause
}

// IncompatibleCursorError indicates a cursor minted under a different sort than
// the one requested. The only resolution is to restart from the first page.
type IncompatibleCursorError struct {
	Expected []string
	Got      []string
}

func (e *IncompatibleCursorError) Error() string {
	return fmt.Sprintf("cursor was issued for sort %v but the request sorts by %v; restart from the first page", e.Got, e.Expected)
}

// SearchUnavailableError wraps any failure of the index engine call itself,
// transport errors and error responses alike. No retry is attempted here.
type SearchUnavailableError struct {
	cause error
}

func (e *SearchUnavailableError) Error() string {
	return fmt.Sprintf("search unavailable: %v", e.cause)
}

func (e *SearchUnavailableError) Unwrap() error {
	return e.cause
}

// InvalidFilterError indicates a filter referencing unknown fields or values.
type InvalidFilterError struct {
	Field  string
	Reason string
}

func (e *InvalidFilterError) Error() string {
	return fmt.Sprintf("invalid filter on %s: %s", e.Field, e.Reason)
}
