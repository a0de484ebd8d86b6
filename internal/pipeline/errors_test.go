package pipeline

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		transient bool
		fatal     bool
		class     string
	}{
		{"nil", nil, false, false, ""},
		{"duplicate", ErrDuplicate, false, false, "duplicate_ignored"},
		{"wrapped duplicate", fmt.Errorf("landing: %w", ErrDuplicate), false, false, "duplicate_ignored"},
		{"not found", fmt.Errorf("key: %w", ErrNotFound), false, false, "not_found"},
		{"validation", Validationf("bad payload"), false, true, "validation_error"},
		{"transient", &TransientAPIError{Msg: "timeout"}, true, false, "transient_api_error"},
		{"wrapped transient", fmt.Errorf("call: %w", &TransientAPIError{StatusCode: 503, Msg: "down"}), true, false, "transient_api_error"},
		{"schema mismatch", &SchemaMismatchError{RecordType: "pdv", Field: "numero"}, false, true, "schema_mismatch_error"},
		{"unknown", errors.New("boom"), false, false, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.transient, IsTransient(tt.err))
			assert.Equal(t, tt.fatal, IsFatal(tt.err))
			assert.Equal(t, tt.class, Class(tt.err))
		})
	}
}

func TestTransientAPIErrorUnwrap(t *testing.T) {
	inner := errors.New("connection refused")
	err := &TransientAPIError{Msg: "request failed", Err: inner}
	assert.ErrorIs(t, err, inner)
}
