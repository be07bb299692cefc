package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesSentinelByKind(t *testing.T) {
	t.Parallel()

	err := New(KindCapExceeded, "daily cap of %.2fh exceeded", 8.0)
	wrapped := fmt.Errorf("stop timer: %w", err)

	assert.ErrorIs(t, wrapped, ErrCapExceeded)
	assert.NotErrorIs(t, wrapped, ErrConflict)
	assert.Equal(t, "daily cap of 8.00h exceeded", err.Error())
}

func TestError_EmptyMessageFallsBackToKind(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "immutable", ErrImmutable.Error())
}

func TestKindOf(t *testing.T) {
	t.Parallel()

	kind, ok := KindOf(fmt.Errorf("outer: %w", NotFound("timesheet %s", "x")))
	assert.True(t, ok)
	assert.Equal(t, KindNotFound, kind)

	_, ok = KindOf(errors.New("plain"))
	assert.False(t, ok)
}
