package engine

import "fmt"

// FetchError is a transfer failure scoped to one segment. It counts toward
// the job's retry budget.
type FetchError struct {
	SegmentIndex int
	Err          error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("segment %d fetch failed: %v", e.SegmentIndex, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IOError is a local filesystem failure. Retrying will not help, so it fails
// the job immediately.
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("io error on %s: %v", e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}
