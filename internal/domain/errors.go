package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// ValidationReason narrows why an upload was rejected at the boundary.
type ValidationReason string

const (
	ValidationTooLarge    ValidationReason = "too_large"
	ValidationBadType     ValidationReason = "bad_type"
	ValidationUndecodable ValidationReason = "undecodable"
)

// ValidationError rejects bad input before any processing cost is incurred.
type ValidationError struct {
	Reason  ValidationReason
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s", e.Message)
}

// UpstreamKind narrows how the external generation call failed.
type UpstreamKind string

const (
	UpstreamTimeout         UpstreamKind = "timeout"
	UpstreamRemoteError     UpstreamKind = "remote_error"
	UpstreamRemoteRejected  UpstreamKind = "remote_rejected"
	UpstreamInvalidResponse UpstreamKind = "invalid_response"
)

// UpstreamError reports a failed or timed-out external generation call.
type UpstreamError struct {
	Kind UpstreamKind
	Err  error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("generation: %s: %v", e.Kind, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// ProcessingError reports an internal image transform failure. Before the
// generation call it fails the request; after it (logo overlay) it is
// downgraded to a note on the completed record.
type ProcessingError struct {
	Step string
	Err  error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("processing: %s: %v", e.Step, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

// PersistenceError reports a primary store write failure. It is never
// swallowed: the record is the only evidence the work happened.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
