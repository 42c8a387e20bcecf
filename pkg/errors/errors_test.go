package errors

import (
	"database/sql"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromErrorWrapsUnknown(t *testing.T) {
	err := FromError(sql.ErrConnDone)
	assert.Equal(t, ErrInternal.Code, err.Code)
	assert.Equal(t, http.StatusInternalServerError, err.Status)
	assert.ErrorIs(t, err, sql.ErrConnDone)
}

func TestCloneKeepsCode(t *testing.T) {
	err := Clone(ErrNotFound, "work order not found")
	assert.Equal(t, "work order not found", err.Message)
	assert.Equal(t, "resource not found", ErrNotFound.Message)
	assert.True(t, Is(fmt.Errorf("outer: %w", err), ErrNotFound))
	assert.False(t, Is(err, ErrConflict))
}
