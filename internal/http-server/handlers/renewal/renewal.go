package renewal

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"matcore/entity"
	"matcore/lib/api/cont"
	"matcore/lib/api/fault"
	"matcore/lib/api/response"
	"matcore/lib/sl"
)

type Core interface {
	RenewPartner(ctx context.Context, actor *entity.Identity, targetId string) (*entity.Renewal, error)
	RenewStudent(ctx context.Context, actor *entity.Identity, targetId string) (*entity.Renewal, error)
}

// Partner extends a partner subscription; master or admin only, the role
// gate runs upstream and the ownership check in the core.
func Partner(log *slog.Logger, handler Core) http.HandlerFunc {
	return renew(log, "partner", handler.RenewPartner)
}

// Student extends a learner subscription.
func Student(log *slog.Logger, handler Core) http.HandlerFunc {
	return renew(log, "student", handler.RenewStudent)
}

func renew(log *slog.Logger, tier string, op func(context.Context, *entity.Identity, string) (*entity.Renewal, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.renewal")
		targetId := chi.URLParam(r, "id")

		logger := log.With(
			mod,
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("tier", tier),
			slog.String("target", targetId),
		)

		actor := cont.GetIdentity(r.Context())
		renewed, err := op(r.Context(), actor, targetId)
		if err != nil {
			logger.Error("renew", sl.Err(err))
			render.Status(r, fault.StatusOf(err))
			render.JSON(w, r, response.Error(err.Error()))
			return
		}
		logger.With(
			slog.Time("expiry", renewed.ExpiryDate),
		).Debug("subscription renewed")

		render.JSON(w, r, response.Ok(renewed))
	}
}
