package domain

import (
	"fmt"
	"time"
)

// ErrorKind classifies failures from external capabilities and the
// assessment pipeline
type ErrorKind string

const (
	// ErrorCapabilityUnavailable means the environment lacks the feature;
	// not retryable, surfaced once
	ErrorCapabilityUnavailable ErrorKind = "capability_unavailable"
	// ErrorPermissionDenied means the user declined access; not retryable
	// until an explicit retry
	ErrorPermissionDenied ErrorKind = "permission_denied"
	// ErrorTransientIO means a persistence read or write failed; the
	// in-memory state remains authoritative
	ErrorTransientIO ErrorKind = "transient_io"
	// ErrorAssessmentFault means the scoring or correction pipeline failed;
	// the message is still recorded with default enrichments
	ErrorAssessmentFault ErrorKind = "assessment_fault"
)

// CapabilityError wraps a failure from an external capability with its kind
type CapabilityError struct {
	Kind ErrorKind
	Err  error
}

func (e *CapabilityError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *CapabilityError) Unwrap() error {
	return e.Err
}

// NewCapabilityError creates a classified capability error
func NewCapabilityError(kind ErrorKind, err error) *CapabilityError {
	return &CapabilityError{Kind: kind, Err: err}
}

// NoticeTTL is how long a transient notice stays visible before it is
// auto-dismissed
const NoticeTTL = 5 * time.Second

// Notice is a transient user-visible error surfaced by the controller.
// Notices never corrupt conversation state and none are fatal.
type Notice struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// NewNotice creates a notice stamped with the current time
func NewNotice(kind ErrorKind, message string) Notice {
	return Notice{Kind: kind, Message: message, At: time.Now()}
}

// Expired reports whether the notice should be dismissed at the given time
func (n Notice) Expired(now time.Time) bool {
	return now.Sub(n.At) >= NoticeTTL
}
