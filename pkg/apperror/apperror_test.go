package apperror

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKind(t *testing.T) {
	tests := []struct {
		err       error
		kind      string
		retryable bool
	}{
		{nil, "", false},
		{Invalid("title", "title is required"), "validation", false},
		{NotFound("document", "d1"), "not_found", false},
		{fmt.Errorf("open document: %w", NotFound("document", "d1")), "not_found", false},
		{ErrConflict, "conflict", true},
		{fmt.Errorf("GET /folders: %w: dial tcp", ErrNetwork), "network", true},
		{context.DeadlineExceeded, "network", true},
		{fmt.Errorf("wrapped: %w", ErrSuperseded), "superseded", false},
		{errors.New("pq: syntax error"), "internal", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.kind, Kind(tt.err), "%v", tt.err)
		assert.Equal(t, tt.retryable, Retryable(tt.err), "%v", tt.err)
	}
}

func TestValidationError(t *testing.T) {
	err := fmt.Errorf("create folder: %w", Invalid("name", "folder name is required"))
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.EqualError(t, err, "create folder: name: folder name is required")

	var vErr *ValidationError
	assert.ErrorAs(t, err, &vErr)
	assert.Equal(t, "name", vErr.Field)
}

func TestNotFoundMessage(t *testing.T) {
	assert.EqualError(t, NotFound("folder", "f1"), "folder f1: not found")
}
