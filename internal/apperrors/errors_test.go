package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesByKind(t *testing.T) {
	err := fmt.Errorf("book: %w", Conflict("coach %d is busy", 7))

	assert.True(t, errors.Is(err, ErrConflict))
	assert.False(t, errors.Is(err, ErrInvalidTransition))
	assert.Equal(t, KindConflict, KindOf(err))
}

func TestFromErrorWrapsUntyped(t *testing.T) {
	appErr := FromError(errors.New("boom"))

	assert.Equal(t, KindInternal, appErr.Kind)
	assert.Equal(t, http.StatusInternalServerError, appErr.Status)
	assert.Nil(t, FromError(nil))
}

func TestStatusMapping(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, Validation("bad").Status)
	assert.Equal(t, http.StatusConflict, InvalidTransition("no").Status)
	assert.Equal(t, http.StatusBadGateway, Gateway(errors.New("down"), "charge failed").Status)
	assert.Equal(t, "charge failed: down", Gateway(errors.New("down"), "charge failed").Error())
}
