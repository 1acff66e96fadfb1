package license

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
	CreateLicense(ctx context.Context, actor *entity.Identity, price float64) (*entity.License, error)
	Licenses(ctx context.Context, actor *entity.Identity) (*entity.LicenseList, error)
	AttachLearner(ctx context.Context, actor *entity.Identity, licenseId, userId string) (*entity.License, error)
}

func Create(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.license")

		logger := log.With(
			mod,
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var draft entity.LicenseDraft
		if err := render.Bind(r, &draft); err != nil {
			logger.Error("bind request", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("Invalid request: "+err.Error()))
			return
		}

		actor := cont.GetIdentity(r.Context())
		created, err := handler.CreateLicense(r.Context(), actor, draft.Price)
		if err != nil {
			logger.Error("create license", sl.Err(err))
			render.Status(r, fault.StatusOf(err))
			render.JSON(w, r, response.Error(err.Error()))
			return
		}
		logger.With(
			slog.String("license_id", created.Id),
		).Debug("license created")

		render.JSON(w, r, response.Ok(created))
	}
}

func List(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.license")

		logger := log.With(
			mod,
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		actor := cont.GetIdentity(r.Context())
		list, err := handler.Licenses(r.Context(), actor)
		if err != nil {
			logger.Error("list licenses", sl.Err(err))
			render.Status(r, fault.StatusOf(err))
			render.JSON(w, r, response.Error(err.Error()))
			return
		}
		logger.With(
			slog.Int("count", list.Stats.Total),
		).Debug("licenses listed")

		render.JSON(w, r, response.Ok(list))
	}
}

func Attach(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.license")
		licenseId := chi.URLParam(r, "id")

		logger := log.With(
			mod,
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("license_id", licenseId),
		)

		var attach entity.LearnerAttach
		if err := render.Bind(r, &attach); err != nil {
			logger.Error("bind request", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("Invalid request: "+err.Error()))
			return
		}

		actor := cont.GetIdentity(r.Context())
		updated, err := handler.AttachLearner(r.Context(), actor, licenseId, attach.UserId)
		if err != nil {
			logger.Error("attach learner", sl.Err(err))
			render.Status(r, fault.StatusOf(err))
			render.JSON(w, r, response.Error(err.Error()))
			return
		}
		logger.With(
			slog.String("learner", attach.UserId),
			slog.Int("usage_count", updated.UsageCount),
		).Debug("learner attached")

		render.JSON(w, r, response.Ok(updated))
	}
}
