// Package apierr defines the structured errors shared by the provider
// adapters and the retry orchestrator. Every error carries an explicit kind
// tag so that classification survives wrapping by higher layers.
package apierr

import (
	"errors"
	"fmt"
)

// Kind identifies a failure class.
type Kind string

const (
	// KindQuotaExhausted means a credential's daily allowance is used up, or
	// all configured credentials are. Retryable by credential rotation.
	KindQuotaExhausted Kind = "quota_exhausted"
	// KindInvalidResponse means a terminal event stream produced no
	// parseable complete payload. Fatal for the attempt, never retried.
	KindInvalidResponse Kind = "invalid_response"
	// KindUpscaleFailed wraps any internal failure of the upscale adapter.
	KindUpscaleFailed Kind = "upscale_failed"
	// KindOptimizeFailed means the prompt-optimization backend returned
	// non-OK or could not be reached.
	KindOptimizeFailed Kind = "optimize_failed"
	// KindConnectivity is the generic fallback when no more specific cause
	// is known.
	KindConnectivity Kind = "connectivity"
)

// Error is a classified failure with an optional human-readable detail and
// an optional wrapped cause.
type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Detail != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Err)
	case e.Detail != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error without a cause.
func New(kind Kind, detail string) error {
	return &Error{Kind: kind, Detail: detail}
}

// Newf creates a classified error with a formatted detail.
func Newf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind to an existing error, keeping the cause chain intact.
func Wrap(kind Kind, detail string, err error) error {
	return &Error{Kind: kind, Detail: detail, Err: err}
}

// KindOf returns the kind of the outermost classified error in the chain,
// or KindConnectivity if none is found.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindConnectivity
}

// IsQuota reports whether any error in the chain is tagged quota-exhausted.
// The full chain is walked so that a wrapping adapter (for example the
// upscale adapter) cannot hide a quota signal from the retry orchestrator.
func IsQuota(err error) bool {
	for ; err != nil; err = errors.Unwrap(err) {
		if e, ok := err.(*Error); ok && e.Kind == KindQuotaExhausted {
			return true
		}
	}
	return false
}

// messages maps error kinds to the text shown to the user. Unrecognized
// kinds fall back to a generic failure message.
var messages = map[Kind]string{
	KindQuotaExhausted:  "All credentials have reached their daily quota. Add more tokens or try again tomorrow.",
	KindInvalidResponse: "The backend returned a response that could not be parsed.",
	KindUpscaleFailed:   "Upscaling failed. The source image may no longer be available.",
	KindOptimizeFailed:  "Prompt optimization is unavailable right now.",
	KindConnectivity:    "Could not reach the generation backend.",
}

const genericMessage = "Image generation failed. Please try again."

// Message returns the user-facing text for an error.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if msg, ok := messages[e.Kind]; ok {
			return msg
		}
	}
	return genericMessage
}
