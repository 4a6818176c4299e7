package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindHTTPStatus(t *testing.T) {
	cases := map[Kind]int{
		KindValidation:        http.StatusBadRequest,
		KindInvalidTransition: http.StatusBadRequest,
		KindNotFound:          http.StatusNotFound,
		KindAuthorization:     http.StatusForbidden,
		KindConflict:          http.StatusConflict,
		KindInternal:          http.StatusInternalServerError,
	}
	for kind, status := range cases {
		assert.Equal(t, status, kind.HTTPStatus(), kind.String())
	}
}

func TestIsMatchesByCode(t *testing.T) {
	detailed := &Error{Kind: KindNotFound, Code: CodeBookingNotFound, Message: "booking abc not found"}
	wrapped := fmt.Errorf("loading: %w", detailed)

	assert.True(t, errors.Is(wrapped, ErrBookingNotFound))
	assert.False(t, errors.Is(wrapped, ErrDriverNotFound))
}

func TestInvalidTransitionMessage(t *testing.T) {
	err := InvalidTransition("PENDING", "COMPLETED")
	assert.Equal(t, KindInvalidTransition, err.Kind)
	assert.Contains(t, err.Message, "PENDING")
	assert.Contains(t, err.Message, "COMPLETED")
}

func TestFromWrapsUnknown(t *testing.T) {
	assert.Nil(t, From(nil))

	e := From(errors.New("boom"))
	assert.Equal(t, KindInternal, e.Kind)
	assert.Equal(t, CodeInternal, e.Code)
	assert.Equal(t, "internal server error", e.Message)

	assert.Equal(t, KindConflict, KindOf(fmt.Errorf("x: %w", ErrStateConflict)))
}
