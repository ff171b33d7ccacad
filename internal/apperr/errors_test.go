package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("loading item: %w", NotFound("Item %s not found", "abc"))

	assert.Equal(t, KindNotFound, KindOf(wrapped))
	assert.Equal(t, KindUnexpected, KindOf(errors.New("boom")))
	assert.True(t, Is(wrapped, KindNotFound))
	assert.False(t, Is(nil, KindNotFound))
	assert.Equal(t, "Item abc not found", NotFound("Item %s not found", "abc").Error())
}

func TestUnexpectedUnwraps(t *testing.T) {
	cause := errors.New("connection refused")
	err := Unexpected("Database error", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "Database error: connection refused", err.Error())
	assert.Equal(t, "unexpected", err.Kind.String())
}

func TestValidationDetails(t *testing.T) {
	err := Validation("Validation failed", "name: is required", "price: must not be negative")

	assert.Equal(t, KindValidation, err.Kind)
	assert.Len(t, err.Details, 2)
	assert.Equal(t, "validation_failed", err.Kind.String())
}
