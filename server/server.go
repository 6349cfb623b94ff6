// Package server exposes the routing pipeline over HTTP.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/uzsupport/murojaat/ai"
	"github.com/uzsupport/murojaat/internal/profile"
	"github.com/uzsupport/murojaat/routing"
	"github.com/uzsupport/murojaat/store"
)

// Router runs the routing pipeline for one message. Implemented by
// *routing.Pipeline; narrowed to an interface so handlers are testable
// without live providers.
type Router interface {
	Route(ctx context.Context, session *store.Session, message *store.Message, opts *ai.ChatOptions) (*routing.Result, error)
}

// Server is the HTTP surface of the service.
type Server struct {
	e       *echo.Echo
	profile *profile.Profile
	store   *store.Store
	router  Router
}

// NewServer creates the HTTP server and registers all routes.
func NewServer(instanceProfile *profile.Profile, s *store.Store, router Router) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			slog.Debug("http request", "uri", v.URI, "status", v.Status)
			return nil
		},
	}))

	server := &Server{
		e:       e,
		profile: instanceProfile,
		store:   s,
		router:  router,
	}

	e.GET("/healthz", server.healthz)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.POST("/api/v1/messages/route", server.routeMessage)

	return server
}

// Start begins serving and blocks until the listener fails or Shutdown
// is called.
func (s *Server) Start(ctx context.Context) error {
	address := fmt.Sprintf("%s:%d", s.profile.Addr, s.profile.Port)
	slog.Info("server: listening", "address", address)

	if err := s.e.Start(address); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.e.Shutdown(shutdownCtx)
}

func (s *Server) healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"version": s.profile.Version,
	})
}
