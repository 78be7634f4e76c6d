package models

import "fmt"

// DataFetchError reports a failed snapshot or health fetch.
type DataFetchError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *DataFetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: unexpected status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *DataFetchError) Unwrap() error { return e.Err }

// Reasons an engagement is dropped at ingestion.
const (
	InvalidMalformed = "malformed"
	InvalidSchema    = "schema"
	InvalidDate      = "date"
	InvalidDuplicate = "duplicate"
)

// InvalidRecordError describes an engagement dropped at ingestion. Kind is
// one of the Invalid* constants.
type InvalidRecordError struct {
	Index  int
	ID     string
	Kind   string
	Reason string
}

func (e *InvalidRecordError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("record %d: %s", e.Index, e.Reason)
	}
	return fmt.Sprintf("record %d (%s): %s", e.Index, e.ID, e.Reason)
}

// CommitError reports a failed report commit. The caller may retry.
type CommitError struct {
	Path string
	Err  error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("commit report to %s: %v", e.Path, e.Err)
}

func (e *CommitError) Unwrap() error { return e.Err }
