package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"

	"github.com/mattsolo1/grove-mlconsole/internal/metrics"
	"github.com/mattsolo1/grove-mlconsole/pkg/mlflow"
	"github.com/mattsolo1/grove-mlconsole/pkg/mutation"
	"github.com/mattsolo1/grove-mlconsole/pkg/selection"
	"github.com/mattsolo1/grove-mlconsole/pkg/service"
)

// UserHeader carries the authenticated user name, set by the fronting proxy.
const UserHeader = "X-User"

// Server holds the API server dependencies.
type Server struct {
	echo        *echo.Echo
	svc         *service.Service
	logger      logrus.FieldLogger
	defaultUser string
}

// NewServer creates a new API server with all routes configured. defaultUser is used
// for requests without a user header.
func NewServer(svc *service.Service, logger logrus.FieldLogger, defaultUser string) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:        e,
		svc:         svc,
		logger:      logger,
		defaultUser: defaultUser,
	}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(s.requestLogger)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	api := e.Group("/api")

	runs := api.Group("/runs/:run/artifacts")
	runs.GET("", s.getArtifacts)
	runs.POST("/refresh", s.refreshArtifacts)
	runs.POST("/expand", s.expandArtifact)
	runs.POST("/select", s.selectArtifact)
	runs.POST("/select-all", s.selectAllArtifacts)
	runs.DELETE("/selected", s.deleteSelectedArtifacts)
	runs.DELETE("/view", s.closeArtifacts)

	tags := api.Group("/experiments/:exp/tags")
	tags.GET("", s.getTags)
	tags.POST("/edit", s.beginEdit)
	tags.DELETE("/edit", s.cancelEdit)
	tags.POST("/rows", s.insertRow)
	tags.PUT("/rows/:index", s.updateRow)
	tags.DELETE("/rows/:index", s.deleteRow)
	tags.POST("/select", s.selectRow)
	tags.POST("/select-all", s.selectAllRows)
	tags.DELETE("/selected", s.deleteSelectedRows)
	tags.POST("/apply", s.applyTags)

	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start starts the HTTP server on the given address.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}

		req := c.Request()
		status := c.Response().Status
		metrics.RecordHTTPRequest(req.Method, c.Path(), status, time.Since(start))
		s.logger.WithFields(logrus.Fields{
			"method":     req.Method,
			"path":       req.URL.Path,
			"status":     status,
			"duration":   time.Since(start),
			"request_id": c.Response().Header().Get(echo.HeaderXRequestID),
			"user":       s.user(c),
		}).Info("request")
		return nil
	}
}

func (s *Server) user(c echo.Context) string {
	if u := c.Request().Header.Get(UserHeader); u != "" {
		return u
	}
	return s.defaultUser
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, mutation.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, mutation.ErrOperationInProgress):
		return http.StatusConflict
	case errors.Is(err, selection.ErrEmptyKey):
		return http.StatusUnprocessableEntity
	case errors.Is(err, mutation.ErrNothingSelected), errors.Is(err, mutation.ErrNotEditing):
		return http.StatusBadRequest
	case errors.Is(err, mutation.ErrStaleResult):
		return http.StatusGone
	case errors.Is(err, mutation.ErrPersistence):
		return http.StatusBadGateway
	case errors.Is(err, service.ErrViewNotOpen), mlflow.IsNotFound(err):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(c echo.Context, err error) error {
	body := map[string]any{"error": err.Error()}
	var emptyKey *selection.EmptyKeyError
	if errors.As(err, &emptyKey) {
		body["index"] = emptyKey.Index
	}
	var perr *mutation.PersistenceError
	if errors.As(err, &perr) {
		body["reason"] = perr.Reason
	}
	return c.JSON(statusFor(err), body)
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, map[string]string{"error": msg})
}
