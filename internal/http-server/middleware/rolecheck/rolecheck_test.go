package rolecheck

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"matcore/entity"
	"matcore/lib/api/cont"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func serve(t *testing.T, identity *entity.Identity, allowed ...entity.Role) (*httptest.ResponseRecorder, bool) {
	t.Helper()
	reached := false
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		reached = true
		w.WriteHeader(http.StatusOK)
	})

	r := httptest.NewRequest(http.MethodPost, "/v1/licenses", nil)
	if identity != nil {
		r = r.WithContext(cont.PutIdentity(r.Context(), identity))
	}
	w := httptest.NewRecorder()
	Require(testLogger(), allowed...)(next).ServeHTTP(w, r)
	return w, reached
}

func TestAllowedRole(t *testing.T) {
	id := &entity.Identity{AccountId: "acc-1", Role: entity.RolePartner}
	w, reached := serve(t, id, entity.RoleMaster, entity.RolePartner)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, reached)
}

func TestForbiddenRole(t *testing.T) {
	id := &entity.Identity{AccountId: "acc-1", Role: entity.RoleStudent}
	w, reached := serve(t, id, entity.RoleMaster, entity.RolePartner)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.False(t, reached)
}

func TestMissingIdentity(t *testing.T) {
	w, reached := serve(t, nil, entity.RoleMaster)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, reached)
}
