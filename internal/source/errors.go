package source

import "fmt"

// TransportError is a network-level failure talking to a source site
// (connection refused, timeout, non-200 status).
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error fetching %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ExtractionError means the page was fetched and parsed but no usable
// list/content was found in it.
type ExtractionError struct {
	URL    string
	Reason string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed for %s: %s", e.URL, e.Reason)
}

// ValidationError means extracted data failed a sanity check, e.g. a chapter
// body shorter than the accepted minimum.
type ValidationError struct {
	URL    string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.URL, e.Reason)
}
