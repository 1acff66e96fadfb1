package api

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"matcore/entity"
	"matcore/internal/config"
	"matcore/internal/http-server/handlers/account"
	"matcore/internal/http-server/handlers/errors"
	"matcore/internal/http-server/handlers/license"
	"matcore/internal/http-server/handlers/renewal"
	"matcore/internal/http-server/handlers/request"
	"matcore/internal/http-server/middleware/authenticate"
	"matcore/internal/http-server/middleware/rolecheck"
	"matcore/internal/http-server/middleware/timeout"
	"matcore/lib/sl"
)

type Server struct {
	conf       *config.Config
	httpServer *http.Server
	log        *slog.Logger
}

type Handler interface {
	authenticate.Authenticate
	license.Core
	request.Core
	renewal.Core
	account.Core
}

func New(conf *config.Config, log *slog.Logger, handler Handler) error {

	server := Server{
		conf: conf,
		log:  log.With(sl.Module("api.server")),
	}

	resellers := rolecheck.Require(log, entity.RoleMaster, entity.RolePartner)
	sellers := rolecheck.Require(log, entity.RoleAdmin, entity.RoleMaster, entity.RolePartner)
	approvers := rolecheck.Require(log, entity.RoleAdmin, entity.RoleMaster)
	requesters := rolecheck.Require(log, entity.RoleMaster, entity.RolePartner, entity.RoleStudent)
	studentManagers := rolecheck.Require(log, entity.RoleAdmin, entity.RoleMaster, entity.RolePartner)

	router := chi.NewRouter()
	router.Use(timeout.Timeout(5))
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(render.SetContentType(render.ContentTypeJSON))

	router.NotFound(errors.NotFound(log))
	router.MethodNotAllowed(errors.NotAllowed(log))

	router.Route("/v1", func(rootApi chi.Router) {
		rootApi.Use(authenticate.New(log, handler))
		rootApi.Route("/licenses", func(lc chi.Router) {
			lc.With(resellers).Post("/", license.Create(log, handler))
			lc.With(sellers).Get("/", license.List(log, handler))
			lc.With(resellers).Post("/{id}/learners", license.Attach(log, handler))
		})
		rootApi.Route("/requests", func(rq chi.Router) {
			rq.With(requesters).Post("/", request.Submit(log, handler))
			rq.With(approvers).Get("/", request.Pending(log, handler))
			rq.With(approvers).Post("/{id}/approve", request.Approve(log, handler))
			rq.With(approvers).Post("/{id}/reject", request.Reject(log, handler))
		})
		rootApi.With(approvers).Post("/partners/{id}/renew", renewal.Partner(log, handler))
		rootApi.With(studentManagers).Post("/students/{id}/renew", renewal.Student(log, handler))
		rootApi.With(studentManagers).Delete("/students/{id}", account.DeleteStudent(log, handler))
		rootApi.With(sellers).Get("/downline", account.Downline(log, handler))
	})

	httpLog := slog.NewLogLogger(log.Handler(), slog.LevelError)
	server.httpServer = &http.Server{
		Handler:      router,
		ErrorLog:     httpLog,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverAddress := fmt.Sprintf("%s:%s", conf.Listen.BindIp, conf.Listen.Port)
	listener, err := net.Listen("tcp", serverAddress)
	if err != nil {
		return err
	}

	server.log.Info("starting api server", slog.String("address", serverAddress))

	return server.httpServer.Serve(listener)
}
