// Package errors provides standardized error types for use across voicecore modules.
//
// ContextualError is the base error type that captures component, operation, and
// optional status code and details. It implements the error and Unwrap interfaces
// for seamless integration with Go's errors package.
//
// Usage:
//
//	err := errors.New("dialer", "DequeueJob", someErr)
//	err = err.WithKind(KindQueueBackendUnavailable).WithDetails(map[string]any{"tenant_id": tenantID})
package errors

import "fmt"

// Kind classifies an error for retry and escalation policy, per the error
// kinds table: ConfigMissing, TransientProvider, FatalProvider,
// MediaTransportClosed, QueueBackendUnavailable, ActionNotAllowed, ConditionSkip.
type Kind string

const (
	// KindConfigMissing marks a missing required configuration value (e.g. unset credential). Fails startup.
	KindConfigMissing Kind = "config_missing"

	// KindTransientProvider marks a recoverable provider failure (network glitch, 5xx). One retry in place, then escalate.
	KindTransientProvider Kind = "transient_provider"

	// KindFatalProvider marks an unrecoverable provider failure (auth failure, 4xx). Surfaces to caller; ends the operation.
	KindFatalProvider Kind = "fatal_provider"

	// KindMediaTransportClosed marks a remote hang-up. Normal call termination, not an escalation.
	KindMediaTransportClosed Kind = "media_transport_closed"

	// KindQueueBackendUnavailable marks the shared queue/session store being unreachable. Fatal in production.
	KindQueueBackendUnavailable Kind = "queue_backend_unavailable"

	// KindActionNotAllowed marks a plan step outside the allowlist. Rejected at plan creation.
	KindActionNotAllowed Kind = "action_not_allowed"

	// KindConditionSkip marks a step whose condition evaluated false. Recorded as skipped, not an error.
	KindConditionSkip Kind = "condition_skip"
)

// ContextualError is a structured error type that provides consistent context
// about where and why an error occurred across voicecore modules.
type ContextualError struct {
	// Component identifies the module that produced the error (e.g. "dialer", "voicepipeline", "actionplan").
	Component string

	// Operation describes what was being done when the error occurred.
	Operation string

	// Kind classifies the error for retry/escalation policy. Zero value means unclassified.
	Kind Kind

	// StatusCode is an optional HTTP or application-level status code.
	StatusCode int

	// Details holds optional structured metadata about the error.
	Details map[string]any

	// Cause is the underlying error, if any.
	Cause error
}

// New creates a ContextualError with the given component, operation, and cause.
func New(component, operation string, cause error) *ContextualError {
	return &ContextualError{
		Component: component,
		Operation: operation,
		Cause:     cause,
	}
}

// NewKind creates a ContextualError already tagged with a Kind.
func NewKind(component, operation string, kind Kind, cause error) *ContextualError {
	return &ContextualError{
		Component: component,
		Operation: operation,
		Kind:      kind,
		Cause:     cause,
	}
}

// Error returns a human-readable representation of the error.
func (e *ContextualError) Error() string {
	base := fmt.Sprintf("[%s] %s", e.Component, e.Operation)

	if e.Kind != "" {
		base += fmt.Sprintf(" (%s)", e.Kind)
	}

	if e.StatusCode != 0 {
		base += fmt.Sprintf(" (status %d)", e.StatusCode)
	}

	if e.Cause != nil {
		base += ": " + e.Cause.Error()
	}

	return base
}

// Unwrap returns the underlying cause, enabling use with errors.Is and errors.As.
func (e *ContextualError) Unwrap() error {
	return e.Cause
}

// WithStatusCode returns a copy of the error with the given status code set.
func (e *ContextualError) WithStatusCode(code int) *ContextualError {
	e.StatusCode = code
	return e
}

// WithDetails returns a copy of the error with the given details map set.
func (e *ContextualError) WithDetails(details map[string]any) *ContextualError {
	e.Details = details
	return e
}

// WithKind returns a copy of the error with the given kind set.
func (e *ContextualError) WithKind(kind Kind) *ContextualError {
	e.Kind = kind
	return e
}

// Is reports whether target is a ContextualError with the same Kind, so
// callers can use errors.Is(err, apperrors.NewKind("", "", apperrors.KindFatalProvider, nil))
// style sentinels, or more simply compare via HasKind.
func (e *ContextualError) Is(target error) bool {
	t, ok := target.(*ContextualError)
	if !ok || t.Kind == "" {
		return false
	}
	return e.Kind == t.Kind
}

// HasKind reports whether err, or any error it wraps, is a ContextualError
// of the given kind.
func HasKind(err error, kind Kind) bool {
	for err != nil {
		if c, ok := err.(*ContextualError); ok && c.Kind == kind {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
