package rolecheck

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"matcore/entity"
	"matcore/lib/api/cont"
	"matcore/lib/api/response"
	"matcore/lib/sl"
)

// Require rejects identities whose role is not in the allowed set. It runs
// after authenticate, which put the identity into the request context; the
// allow-list is fixed per route group so no handler re-derives permissions.
func Require(log *slog.Logger, roles ...entity.Role) func(next http.Handler) http.Handler {
	mod := sl.Module("middleware.rolecheck")
	allowed := make(map[entity.Role]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}

	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			identity := cont.GetIdentity(r.Context())
			if identity.AccountId == "" {
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("Unauthorized"))
				return
			}
			if !allowed[identity.Role] {
				log.With(
					mod,
					slog.String("account", identity.AccountId),
					slog.String("role", string(identity.Role)),
					slog.String("path", r.URL.Path),
				).Warn("role not allowed")
				render.Status(r, http.StatusForbidden)
				render.JSON(w, r, response.Error("Forbidden: insufficient role"))
				return
			}
			next.ServeHTTP(w, r)
		}
		return http.HandlerFunc(fn)
	}
}
