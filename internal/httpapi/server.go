package httpapi

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"todoTracker/internal/auth"
	"todoTracker/internal/config"
	"todoTracker/internal/export"
	"todoTracker/repository"
)

const version = "1.0.0"

// Pinger reports whether the backing database is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Server bundles dependencies and implements the JSON API.
type Server struct {
	Config      *config.Config
	Credentials *auth.Credentials
	Sessions    *auth.SessionStore
	Tasks       repository.TaskRepositoryI
	Exporter    *export.Exporter
	DB          Pinger
	// Now defaults to time.Now; tests pin it.
	Now func() time.Time
}

func (s *Server) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Handler builds the Echo instance with middleware and routes.
func (s *Server) Handler() *echo.Echo {
	if s.Config == nil {
		panic("config is required")
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler

	e.Use(middleware.Recover())
	e.Use(middleware.Logger())
	e.Use(middleware.CORSWithConfig(corsConfig(s.Config.HTTP.AllowedOrigins)))
	if s.Config.RateLimit.Enabled {
		e.Use(rateLimiter(s.Config.RateLimit))
	}

	requireSession := auth.RequireSession(s.Sessions, s.Config.Auth.CookieName)

	api := e.Group("/api")
	api.GET("/health", s.handleHealth)
	api.POST("/register", s.handleRegister)
	api.POST("/login", s.handleLogin)
	api.POST("/logout", s.handleLogout)

	api.GET("/items", s.handleListItems, requireSession)
	api.GET("/upcoming-tasks", s.handleUpcomingTasks, requireSession)
	api.POST("/add", s.handleAddItem, requireSession)
	api.PUT("/update", s.handleUpdateTask, requireSession)
	api.PUT("/mark", s.handleMarkDone, requireSession)
	api.DELETE("/delete", s.handleDeleteItem, requireSession)
	api.GET("/export", s.handleExport, requireSession)
	return e
}

// Start serves the API on addr and returns a shutdown function.
func (s *Server) Start(addr string) (func(context.Context) error, error) {
	e := s.Handler()
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	e.Listener = lis
	e.Server.ReadTimeout = s.Config.HTTP.ReadTimeout
	e.Server.WriteTimeout = s.Config.HTTP.WriteTimeout
	e.Server.IdleTimeout = s.Config.HTTP.IdleTimeout

	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http serve: %v", err)
		}
	}()
	return e.Shutdown, nil
}

func (s *Server) handleHealth(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()
	if s.DB != nil {
		if err := s.DB.PingContext(ctx); err != nil {
			log.Printf("health: db ping: %v", err)
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "unavailable", "error": err.Error()})
		}
	}
	return c.JSON(http.StatusOK, echo.Map{
		"status":      "available",
		"environment": s.Config.Env,
		"version":     version,
	})
}
