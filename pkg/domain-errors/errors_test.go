package dErrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasCode(t *testing.T) {
	t.Run("matches direct code", func(t *testing.T) {
		err := New(CodeInsufficientStock, "not enough stock")
		assert.True(t, HasCode(err, CodeInsufficientStock))
		assert.False(t, HasCode(err, CodeConflict))
	})

	t.Run("matches wrapped code", func(t *testing.T) {
		cause := New(CodeConflict, "row version changed")
		err := Wrap(cause, CodeInternal, "transfer failed")
		assert.True(t, HasCode(err, CodeInternal))
		assert.True(t, HasCode(err, CodeConflict))
	})

	t.Run("matches through fmt wrapping", func(t *testing.T) {
		err := fmt.Errorf("execute transfer: %w", New(CodeBatchRecalled, "batch recalled"))
		assert.True(t, HasCode(err, CodeBatchRecalled))
	})

	t.Run("plain errors carry no code", func(t *testing.T) {
		assert.False(t, HasCode(errors.New("boom"), CodeInternal))
	})
}

func TestWrap(t *testing.T) {
	t.Run("nil cause yields nil", func(t *testing.T) {
		assert.NoError(t, Wrap(nil, CodeInternal, "ignored"))
	})

	t.Run("cause stays reachable", func(t *testing.T) {
		cause := errors.New("driver: bad connection")
		err := Wrap(cause, CodeInternal, "reserve stock")
		require.Error(t, err)
		assert.ErrorIs(t, err, cause)
		assert.Equal(t, "reserve stock", err.Error())
	})
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeExpired, CodeOf(New(CodeExpired, "code expired")))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("no code")))
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(New(CodeConflict, "lock timeout")))
	assert.False(t, Retryable(New(CodeInsufficientStock, "not enough stock")))
	assert.False(t, Retryable(New(CodeInvalidInput, "bad quantity")))
}
