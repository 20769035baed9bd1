// Package pinger delivers weblog update notifications to ping targets and
// classifies delivery failures as retryable or permanent.
package pinger

import (
	"errors"
	"fmt"
)

// FailureKind enumerates why a ping could not be delivered.
type FailureKind int

const (
	// KindNetwork covers connection refused, DNS and read failures.
	KindNetwork FailureKind = iota
	// KindTimeout means the target did not answer within the configured timeout.
	KindTimeout
	// KindUnavailable is an HTTP 429 or 5xx answer.
	KindUnavailable
	// KindRejected is a 4xx answer or an XML-RPC fault.
	KindRejected
	// KindProtocol means the answer was not a valid XML-RPC response.
	KindProtocol
	// KindInvalidTarget means the target's ping URL cannot be used at all.
	KindInvalidTarget
)

func (k FailureKind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	case KindUnavailable:
		return "unavailable"
	case KindRejected:
		return "rejected"
	case KindProtocol:
		return "protocol"
	case KindInvalidTarget:
		return "invalid_target"
	}
	return "unknown"
}

// Retryable reports whether the failure is transient.
func (k FailureKind) Retryable() bool {
	switch k {
	case KindNetwork, KindTimeout, KindUnavailable:
		return true
	}
	return false
}

// Error is the only error type returned by Send.
type Error struct {
	Kind       FailureKind
	Target     string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("ping %s: %s (status %d): %v", e.Target, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("ping %s: %s: %v", e.Target, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable classifies err. Anything that is not an *Error is permanent.
func IsRetryable(err error) bool {
	var pe *Error
	if !errors.As(err, &pe) {
		return false
	}
	return pe.Kind.Retryable()
}

// Result carries what the target said about an accepted ping.
// It is informational: a delivered ping counts as processed regardless of FlError.
type Result struct {
	StatusCode int
	FlError    bool
	Message    string
}
