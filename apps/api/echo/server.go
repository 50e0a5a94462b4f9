package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/cmeonline/enrollments/core"
	"github.com/cmeonline/enrollments/core/catalog"
	"github.com/cmeonline/enrollments/core/enrollment"
	metricsvc "github.com/cmeonline/enrollments/services/metrics"
)

const apiPrefix = "/api/program_enrollments/v1"

type (
	ServerDeps struct {
		Conf          *core.Config
		Logger        core.Logger
		CatalogSvc    *catalog.Service
		EnrollmentSvc *enrollment.Service
		Metrics       *metricsvc.Collector
		Translator    ut.Translator
	}

	Server struct {
		ServerDeps
		app      *echo.Echo
		errors   chan error
		shutdown chan os.Signal
	}
)

var _ http.Handler = (*Server)(nil)

func NewServer(deps ServerDeps) *Server {
	if deps.Logger == nil {
		deps.Logger = core.NewNopLogger()
	}
	if deps.Metrics == nil {
		deps.Metrics = metricsvc.NewCollector()
	}
	s := &Server{
		ServerDeps: deps,
		app:        echo.New(),
		errors:     make(chan error, 1),
		shutdown:   make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.Server.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(s.metricsMiddleware)

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.Logger, s.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", s.home)
	s.app.GET("/metrics", echo.WrapHandler(s.Metrics.Handler()))

	jwt := middleware.JWTWithConfig(newJWTConfig(conf.SecretKey))
	v1 := s.app.Group(apiPrefix, jwt, staffMiddleware())

	registerEnrollmentAPI(v1, s.CatalogSvc, s.EnrollmentSvc, s.Metrics, conf.Enrollment.DefaultPageSize)
}

// metricsMiddleware observes the duration and final status of every request.
func (s *Server) metricsMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		start := time.Now()
		if err := next(ctx); err != nil {
			ctx.Error(err)
		}
		route := ctx.Path()
		if route == "" {
			route = "unmatched"
		}
		s.Metrics.ObserveRequest(ctx.Request().Method, route, strconv.Itoa(ctx.Response().Status), time.Since(start))
		return nil
	}
}

// Start listens on the configured address. Errors other than a closed server are sent on Errors().
func (s *Server) Start() {
	if err := s.app.Start(s.Conf.Server.Address); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

// Shutdown stops the server gracefully, waiting for outstanding requests until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.Conf.AppName+" API!")
}
