package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_ErrorAndUnwrap(t *testing.T) {
	cause := stderrors.New("disk full")
	err := NewInternalError(cause)

	assert.Equal(t, "INTERNAL_ERROR: internal server error (disk full)", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, http.StatusInternalServerError, err.Status)
}

func TestConstructors(t *testing.T) {
	assert.Equal(t, "NOT_FOUND: deck not found: d1", NewNotFoundError("deck", "d1").Error())
	assert.Equal(t, http.StatusBadRequest, NewValidationError("name", "required").Status)
	assert.Equal(t, http.StatusConflict, NewConflictError("not now", nil).Status)
	assert.Equal(t, ErrCodeUnavailable, NewUnavailableError("busy", nil).Code)
}

func TestAs(t *testing.T) {
	wrapped := fmt.Errorf("loading: %w", NewNotFoundError("card", "c9"))

	appErr, ok := As(wrapped)
	require.True(t, ok)
	assert.Equal(t, ErrCodeNotFound, appErr.Code)

	_, ok = As(stderrors.New("plain"))
	assert.False(t, ok)
}
