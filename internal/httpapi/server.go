// Package httpapi exposes projects, strategies, ingestion, clustering jobs,
// canonical records, and the audit log over HTTP with a jsend envelope.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"collate/internal/cluster"
	"collate/internal/db"
	"collate/internal/globaltime"
	"collate/internal/ingest"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

type Options struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	SessionTTL      time.Duration
	SessionCookie   string
	SessionSecure   bool
	AllowedOrigins  []string
}

type Server struct {
	pool     *db.Pool
	clusters *cluster.Service
	ingester *ingest.Service
	logger   zerolog.Logger
	opts     Options
}

func NewServer(pool *db.Pool, clusters *cluster.Service, ingester *ingest.Service, logger zerolog.Logger, opts Options) *Server {
	host := strings.TrimSpace(opts.Host)
	if host == "" {
		host = "0.0.0.0"
	}
	port := opts.Port
	if port <= 0 {
		port = 8087
	}
	readTimeout := opts.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 10 * time.Second
	}
	writeTimeout := opts.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 30 * time.Second
	}
	shutdownTimeout := opts.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	sessionTTL := opts.SessionTTL
	if sessionTTL <= 0 {
		sessionTTL = 24 * time.Hour
	}
	sessionCookie := strings.TrimSpace(opts.SessionCookie)
	if sessionCookie == "" {
		sessionCookie = "collate_session"
	}
	allowedOrigins := opts.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	return &Server{
		pool:     pool,
		clusters: clusters,
		ingester: ingester,
		logger:   logger,
		opts: Options{
			Host:            host,
			Port:            port,
			ReadTimeout:     readTimeout,
			WriteTimeout:    writeTimeout,
			ShutdownTimeout: shutdownTimeout,
			SessionTTL:      sessionTTL,
			SessionCookie:   sessionCookie,
			SessionSecure:   opts.SessionSecure,
			AllowedOrigins:  allowedOrigins,
		},
	}
}

func (s *Server) Start(ctx context.Context) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("server is not initialized")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.httpErrorHandler

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     s.opts.AllowedOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		AllowCredentials: true,
		MaxAge:           3600,
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				s.logger.Error().
					Err(v.Error).
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Str("remote_ip", v.RemoteIP).
					Str("request_id", v.RequestID).
					Msg("http request failed")
				return nil
			}

			s.logger.Info().
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("remote_ip", v.RemoteIP).
				Str("request_id", v.RequestID).
				Msg("http request")
			return nil
		},
	}))

	api := e.Group("/api")
	api.GET("/health", s.handleHealth)
	api.POST("/auth/login", s.handleLogin)
	api.POST("/auth/logout", s.handleLogout)

	authed := api.Group("", s.requireAuth())
	authed.GET("/auth/me", s.handleMe)

	authed.GET("/projects", s.handleListProjects)
	authed.POST("/projects", s.handleCreateProject)
	authed.GET("/projects/:project_uuid/sources", s.handleListSources)
	authed.POST("/projects/:project_uuid/sources", s.handleCreateSource)
	authed.GET("/projects/:project_uuid/strategies", s.handleListStrategies)
	authed.POST("/projects/:project_uuid/strategies", s.handleCreateStrategy)
	authed.POST("/projects/:project_uuid/items", s.handleIngestItem)
	authed.GET("/projects/:project_uuid/jobs", s.handleListJobs)
	authed.POST("/projects/:project_uuid/jobs", s.handleCreateJob)
	authed.GET("/projects/:project_uuid/jobs/:job_uuid", s.handleJobDetail)
	authed.GET("/projects/:project_uuid/jobs/:job_uuid/audit", s.handleJobAudit)
	authed.GET("/projects/:project_uuid/records", s.handleListRecords)
	authed.GET("/projects/:project_uuid/records/:canonical_uuid/items", s.handleListRecordItems)

	addr := fmt.Sprintf("%s:%d", s.opts.Host, s.opts.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      e,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		if shutdownErr := e.Shutdown(shutdownCtx); shutdownErr != nil {
			s.logger.Error().Err(shutdownErr).Msg("server shutdown failed")
		}
	}()

	s.logger.Info().Str("addr", addr).Msg("collate api server started")

	if err := e.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("start server: %w", err)
	}
	s.logger.Info().Msg("collate api server stopped")
	return nil
}

func (s *Server) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	message := "Internal server error"
	if he, ok := err.(*echo.HTTPError); ok {
		status = he.Code
		switch v := he.Message.(type) {
		case string:
			if strings.TrimSpace(v) != "" {
				message = v
			}
		default:
			if text := strings.TrimSpace(http.StatusText(status)); text != "" {
				message = text
			}
		}
	} else if err != nil {
		message = err.Error()
	}

	if status >= 500 {
		_ = internalError(c, "Internal server error")
		return
	}
	_ = fail(c, status, message, nil)
}

func (s *Server) handleHealth(c echo.Context) error {
	return success(c, map[string]any{
		"service": "collate",
		"time":    globaltime.UTC(),
	})
}

// loadProject resolves the :project_uuid path parameter, writing the jsend
// failure itself. The returned bool reports whether the handler may proceed.
func (s *Server) loadProject(c echo.Context) (db.Project, bool, error) {
	projectUUID := strings.TrimSpace(c.Param("project_uuid"))
	if projectUUID == "" {
		return db.Project{}, false, failValidation(c, map[string]string{"project_uuid": "is required"})
	}

	project, err := s.pool.GetProjectByUUID(c.Request().Context(), projectUUID)
	if err != nil {
		if db.IsNoRows(err) {
			return db.Project{}, false, failNotFound(c, "Project not found")
		}
		s.logger.Error().Err(err).Str("project_uuid", projectUUID).Msg("load project failed")
		return db.Project{}, false, internalError(c, "Failed to load project")
	}
	return project, true, nil
}

func parsePositiveInt(raw string, defaultValue, minValue, maxValue int) (int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return defaultValue, nil
	}

	value, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, fmt.Errorf("must be an integer")
	}
	if value < minValue || value > maxValue {
		return 0, fmt.Errorf("must be between %d and %d", minValue, maxValue)
	}
	return value, nil
}

func parsePagination(c echo.Context) (limit, offset int, err error) {
	limit, err = parsePositiveInt(c.QueryParam("limit"), defaultPageSize, 1, maxPageSize)
	if err != nil {
		return 0, 0, fmt.Errorf("limit %s", err)
	}
	offset, err = parsePositiveInt(c.QueryParam("offset"), 0, 0, 10_000_000)
	if err != nil {
		return 0, 0, fmt.Errorf("offset %s", err)
	}
	return limit, offset, nil
}
