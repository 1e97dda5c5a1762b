package apperr_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"recipe-ingest-service/internal/apperr"
)

func TestKindOf_WrappedChain(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := fmt.Errorf("structure: %w", apperr.Wrap(apperr.InvocationError, "recipe parser unavailable", cause))

	assert.Equal(t, apperr.InvocationError, apperr.KindOf(err))
	assert.True(t, apperr.Is(err, apperr.InvocationError))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "recipe parser unavailable", apperr.SafeMessage(err))
}

func TestKindOf_UnclassifiedIsInternal(t *testing.T) {
	err := errors.New("secret provider payload")

	assert.Equal(t, apperr.Internal, apperr.KindOf(err))
	assert.Equal(t, "internal error", apperr.SafeMessage(err))
}

func TestKind_Retryable(t *testing.T) {
	assert.False(t, apperr.Rejected.Retryable())
	assert.False(t, apperr.ValidationError.Retryable())
	assert.False(t, apperr.ContentUnextractable.Retryable())
	assert.True(t, apperr.InvocationError.Retryable())
	assert.True(t, apperr.MalformedOutput.Retryable())
	assert.True(t, apperr.CommitError.Retryable())
}

func TestError_String(t *testing.T) {
	assert.Equal(t, "rejected: not a recipe", apperr.New(apperr.Rejected, "not a recipe").Error())
	assert.Equal(t, "internal: x: boom",
		apperr.Wrap(apperr.Internal, "x", errors.New("boom")).Error())
}
