package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/casbin/casbin/v2"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/acadamier/backend/core"
	"github.com/acadamier/backend/core/course"
	"github.com/acadamier/backend/core/notification"
	"github.com/acadamier/backend/core/payment"
	"github.com/acadamier/backend/core/progress"
	"github.com/acadamier/backend/core/quiz"
	"github.com/acadamier/backend/core/scorm"
	"github.com/acadamier/backend/core/team"
	"github.com/acadamier/backend/core/user"
)

type (
	ServerDeps struct {
		Conf       *core.Config
		Logger     core.Logger
		Validate   *validator.Validate
		Translator ut.Translator
		Enforcer   *casbin.Enforcer
		OAuth      OAuthProvider // optional

		UserSvc         user.Service
		CourseSvc       course.Service
		QuizSvc         quiz.Service
		EnrollSvc       payment.EnrollmentService
		PaymentSvc      payment.Service
		TeamSvc         team.Service
		ProgressSvc     progress.Service
		ScormSvc        scorm.Service
		NotificationSvc notification.Service

		DisableReqLogs bool
	}

	Server struct {
		deps     ServerDeps
		app      *echo.Echo
		errors   chan error
		shutdown chan os.Signal
	}
)

var _ http.Handler = (*Server)(nil)

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		deps:     deps,
		app:      echo.New(),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.deps.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(tracingMiddleware())

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", home)
	if strings.HasPrefix(conf.Media.URL, "/") {
		s.app.Static(strings.TrimSuffix(conf.Media.URL, "/"), conf.Media.Root)
	}

	v1 := s.app.Group("/v1")
	authed := chain(
		middleware.JWTWithConfig(jwtConfig(conf)),
		accessTokenMiddleware(s.deps.UserSvc),
		authzMiddleware(s.deps.Enforcer, s.deps.UserSvc),
	)
	access := courseAccess{courseSvc: s.deps.CourseSvc, enrollSvc: s.deps.EnrollSvc}

	registerAuthAPI(v1, authed, conf, s.deps.UserSvc, s.deps.OAuth, s.deps.Validate)
	registerUserAPI(v1, authed, s.deps.UserSvc, s.deps.Validate)
	registerCatalogAPI(v1, authed, s.deps.CourseSvc, s.deps.Validate)
	registerCourseAPI(v1, authed, s.deps.UserSvc, access, s.deps.Validate)
	registerLessonAPI(v1, authed, s.deps.UserSvc, access, s.deps.Validate)
	registerQuizAPI(v1, authed, s.deps.UserSvc, access, s.deps.QuizSvc, s.deps.Validate)
	registerReviewAPI(v1, authed, s.deps.UserSvc, access, s.deps.Validate)
	registerPaymentAPI(v1, authed, s.deps.UserSvc, s.deps.PaymentSvc, s.deps.EnrollSvc, s.deps.TeamSvc, s.deps.Logger, s.deps.Validate)
	registerTeamAPI(v1, authed, s.deps.UserSvc, s.deps.TeamSvc, s.deps.Validate)
	registerProgressAPI(v1, authed, s.deps.UserSvc, access, s.deps.ProgressSvc, s.deps.ScormSvc, s.deps.Validate)
	registerScormAPI(v1, authed, s.deps.UserSvc, access, s.deps.ScormSvc, s.deps.Validate)
	registerNotificationAPI(v1, authed, s.deps.NotificationSvc)
}

// chain combines middlewares into one, the first one running first.
func chain(mws ...echo.MiddlewareFunc) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
		return next
	}
}

func (s *Server) Start() {
	s.deps.Logger.Info("API listening on " + s.deps.Conf.Server.Host)
	if err := s.app.Start(s.deps.Conf.Server.Host); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

// Errors reports the error that made the server stop listening.
func (s *Server) Errors() <-chan error {
	return s.errors
}

// ShutdownSignal receives the OS signals, and internal requests, to shut the server down.
func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to Acadamier API!")
}
