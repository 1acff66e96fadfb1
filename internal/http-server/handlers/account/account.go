package account

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
	DeleteStudent(ctx context.Context, actor *entity.Identity, id string) error
	Hierarchy(ctx context.Context, actor *entity.Identity) ([]*entity.Account, error)
}

// DeleteStudent removes a learner account and its seats on any license.
func DeleteStudent(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.account")
		id := chi.URLParam(r, "id")

		logger := log.With(
			mod,
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("target", id),
		)

		actor := cont.GetIdentity(r.Context())
		if err := handler.DeleteStudent(r.Context(), actor, id); err != nil {
			logger.Error("delete student", sl.Err(err))
			render.Status(r, fault.StatusOf(err))
			render.JSON(w, r, response.Error(err.Error()))
			return
		}
		logger.Debug("student deleted")

		render.JSON(w, r, response.Ok(nil))
	}
}

// Downline lists the actor's active direct downline.
func Downline(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.account")

		logger := log.With(
			mod,
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		actor := cont.GetIdentity(r.Context())
		accounts, err := handler.Hierarchy(r.Context(), actor)
		if err != nil {
			logger.Error("list downline", sl.Err(err))
			render.Status(r, fault.StatusOf(err))
			render.JSON(w, r, response.Error(err.Error()))
			return
		}
		logger.With(slog.Int("count", len(accounts))).Debug("downline listed")

		render.JSON(w, r, response.Ok(accounts))
	}
}
