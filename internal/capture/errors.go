package capture

import "fmt"

// UpstreamError wraps a failure of an external store.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s: %s", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

func upstream(op string, err error) error {
	return &UpstreamError{Op: op, Err: err}
}
