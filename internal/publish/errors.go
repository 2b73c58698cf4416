// Package publish commits policy batches to downstream stores through two
// idempotent protocols: an atomic multi-document upsert and a conditional
// single-blob commit guarded by a revision tag.
package publish

import "fmt"

// ConflictError reports that a concurrent publish revised the destination
// between this run's read and its write. Nothing was mutated; the next
// scheduled run republishes from fresh state.
type ConflictError struct {
	Destination string
	Message     string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("publish conflict on %s: %s", e.Destination, e.Message)
}

// TransportError reports an unreachable destination or a non-success
// response. The whole publish attempt fails; no partial content is visible.
type TransportError struct {
	Destination string
	Message     string
	Cause       error
}

func (e *TransportError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("publish transport error on %s: %s: %v", e.Destination, e.Message, e.Cause)
	}
	return fmt.Sprintf("publish transport error on %s: %s", e.Destination, e.Message)
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}
