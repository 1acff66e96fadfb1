package fault

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusOf(t *testing.T) {
	assert.Equal(t, http.StatusUnauthorized, StatusOf(Unauthorized("no token")))
	assert.Equal(t, http.StatusForbidden, StatusOf(Forbidden("not your downline")))
	assert.Equal(t, http.StatusBadRequest, StatusOf(BadRequest("bad field")))
	assert.Equal(t, http.StatusNotFound, StatusOf(NotFound("absent")))
	assert.Equal(t, http.StatusConflict, StatusOf(Conflict("already handled")))
	assert.Equal(t, http.StatusInternalServerError, StatusOf(Internal("boom")))
}

func TestStatusOfWrapped(t *testing.T) {
	err := fmt.Errorf("approve: %w", Conflict("already handled"))
	assert.Equal(t, http.StatusConflict, StatusOf(err))
}

func TestStatusOfPlainError(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, StatusOf(fmt.Errorf("anything")))
}

func TestMessage(t *testing.T) {
	err := NotFound("request %s not found", "abc")
	assert.Equal(t, "request abc not found", err.Error())
}
