package models

import "fmt"

// ValidationError reports a required field missing or malformed before a
// remote write is attempted. It is returned synchronously and never reaches
// the remote store.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// RemoteWriteError wraps a create/update/delete failure reported by the remote
// store. The store's message is surfaced verbatim; the orchestrator never
// retries on the caller's behalf.
type RemoteWriteError struct {
	Op         string
	Collection string
	Err        error
}

func (e *RemoteWriteError) Error() string {
	return fmt.Sprintf("remote %s on %s failed: %v", e.Op, e.Collection, e.Err)
}

func (e *RemoteWriteError) Unwrap() error { return e.Err }
