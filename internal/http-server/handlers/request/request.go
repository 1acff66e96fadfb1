package request

import (
	"context"
	"errors"
	"io"
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
	SubmitRequest(ctx context.Context, actor *entity.Identity, quantity int) (*entity.LicenseRequest, error)
	PendingRequests(ctx context.Context) ([]*entity.LicenseRequest, error)
	ApproveRequest(ctx context.Context, id string) (*entity.LicenseRequest, []*entity.License, error)
	RejectRequest(ctx context.Context, id, reason string) (*entity.LicenseRequest, error)
}

func Submit(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.request")

		logger := log.With(
			mod,
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		// an empty body means the default quantity
		var draft entity.RequestDraft
		if err := render.Bind(r, &draft); err != nil && !errors.Is(err, io.EOF) {
			logger.Error("bind request", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("Invalid request: "+err.Error()))
			return
		}

		actor := cont.GetIdentity(r.Context())
		submitted, err := handler.SubmitRequest(r.Context(), actor, draft.Quantity)
		if err != nil {
			logger.Error("submit request", sl.Err(err))
			render.Status(r, fault.StatusOf(err))
			render.JSON(w, r, response.Error(err.Error()))
			return
		}
		logger.With(
			slog.String("id", submitted.Id),
			slog.Int("quantity", submitted.Quantity),
		).Debug("request submitted")

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, response.Ok(submitted))
	}
}

func Pending(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.request")

		logger := log.With(
			mod,
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		requests, err := handler.PendingRequests(r.Context())
		if err != nil {
			logger.Error("list requests", sl.Err(err))
			render.Status(r, fault.StatusOf(err))
			render.JSON(w, r, response.Error(err.Error()))
			return
		}
		logger.With(slog.Int("count", len(requests))).Debug("pending requests listed")

		render.JSON(w, r, response.Ok(requests))
	}
}

func Approve(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.request")
		id := chi.URLParam(r, "id")

		logger := log.With(
			mod,
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("id", id),
		)

		approved, batch, err := handler.ApproveRequest(r.Context(), id)
		if err != nil {
			logger.Error("approve request", sl.Err(err))
			render.Status(r, fault.StatusOf(err))
			render.JSON(w, r, response.Error(err.Error()))
			return
		}
		logger.With(slog.Int("licenses", len(batch))).Debug("request approved")

		render.JSON(w, r, response.Ok(map[string]interface{}{
			"request":  approved,
			"licenses": batch,
		}))
	}
}

func Reject(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.request")
		id := chi.URLParam(r, "id")

		logger := log.With(
			mod,
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("id", id),
		)

		// the reason body is optional
		var resolution entity.RequestResolution
		if err := render.Bind(r, &resolution); err != nil && !errors.Is(err, io.EOF) {
			logger.Error("bind request", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("Invalid request: "+err.Error()))
			return
		}

		rejected, err := handler.RejectRequest(r.Context(), id, resolution.Reason)
		if err != nil {
			logger.Error("reject request", sl.Err(err))
			render.Status(r, fault.StatusOf(err))
			render.JSON(w, r, response.Error(err.Error()))
			return
		}
		logger.Debug("request rejected")

		render.JSON(w, r, response.Ok(rejected))
	}
}
