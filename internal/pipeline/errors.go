// Package pipeline defines the error taxonomy shared by all stages.
// Classification decides whether a failure is retried, dead-lettered,
// or treated as an idempotent no-op.
package pipeline

import (
	"errors"
	"fmt"
)

// ErrDuplicate signals that an idempotent re-delivery was detected.
// It is a success condition, not a failure: the caller already holds
// the result of the first delivery.
var ErrDuplicate = errors.New("duplicate delivery ignored")

// ErrNotFound signals that a referenced storage object does not exist.
// Enrichment invoked ahead of a completed landing write surfaces this
// instead of producing a malformed record.
var ErrNotFound = errors.New("object not found")

// ValidationError marks input that cannot be processed: malformed
// payloads, missing identifiers, rejected API queries. Never retried.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Msg
}

// Validationf builds a ValidationError with a formatted message.
func Validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// TransientAPIError marks a failure that is expected to clear on its
// own: timeouts, 5xx responses, rate limiting. Retried with backoff up
// to the configured bound.
type TransientAPIError struct {
	Msg        string
	StatusCode int
	Err        error
}

func (e *TransientAPIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transient api error (status %d): %s", e.StatusCode, e.Msg)
	}
	return "transient api error: " + e.Msg
}

func (e *TransientAPIError) Unwrap() error { return e.Err }

// SchemaMismatchError marks an enriched payload missing fields the
// destination table requires. Terminal: it indicates a contract
// problem, so the object is dead-lettered rather than retried.
type SchemaMismatchError struct {
	RecordType string
	Field      string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("schema mismatch: %s payload missing required field %q", e.RecordType, e.Field)
}

// IsTransient reports whether err should be retried.
func IsTransient(err error) bool {
	var t *TransientAPIError
	return errors.As(err, &t)
}

// IsFatal reports whether err is terminal for the current object:
// retrying cannot help and the object belongs in the dead-letter area.
func IsFatal(err error) bool {
	var v *ValidationError
	var s *SchemaMismatchError
	return errors.As(err, &v) || errors.As(err, &s)
}

// Class returns the taxonomy name for err, used when tagging
// dead-letter envelopes and backfill summaries.
func Class(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrDuplicate):
		return "duplicate_ignored"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case IsTransient(err):
		return "transient_api_error"
	default:
		var v *ValidationError
		if errors.As(err, &v) {
			return "validation_error"
		}
		var s *SchemaMismatchError
		if errors.As(err, &s) {
			return "schema_mismatch_error"
		}
		return "internal_error"
	}
}
