// Package admind serves the administrative HTTP API of the IRC daemon.
//
// Every route requires one of the configured admin bearer tokens. State is
// read and changed through the server's serialization point, so the API never
// observes a half-applied command.
package admind

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/presbrey/ircd/irc"
	"github.com/presbrey/ircd/irc/metrics"
)

// Server is the admin API bound to one IRC server
type Server struct {
	irc  *irc.Server
	echo *echo.Echo
}

// New creates the admin API for s
func New(s *irc.Server) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = newValidator()

	a := &Server{irc: s, echo: e}
	a.route(e)
	return a
}

func (a *Server) route(e *echo.Echo) {
	e.Use(metrics.Middleware())
	e.Use(a.authMiddleware)

	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	api := e.Group("/api")
	api.GET("/stats", a.handleStats)
	api.GET("/channels", a.handleChannels)
	api.GET("/channels/:name", a.handleChannel)
	api.POST("/rehash", a.handleRehash)
	api.POST("/modules/unload", a.handleUnload)
	api.GET("/modlog/:channel", a.handleModlog)
}

// Handler returns the HTTP handler of the API
func (a *Server) Handler() http.Handler {
	return a.echo
}

// Start listens on addr until Shutdown is called
func (a *Server) Start(addr string) error {
	zap.S().Infow("admin API listening", "address", addr)
	err := a.echo.Start(addr)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the listener, waiting for running requests
func (a *Server) Shutdown(ctx context.Context) error {
	return a.echo.Shutdown(ctx)
}

// authMiddleware checks the bearer token against the current configuration
func (a *Server) authMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
		}
		token := strings.TrimPrefix(header, "Bearer ")

		var tokens []string
		if err := a.do(c, func() {
			tokens = append(tokens, a.irc.Config().Admin.BearerTokens...)
		}); err != nil {
			return err
		}

		for _, valid := range tokens {
			if valid != "" && subtle.ConstantTimeCompare([]byte(token), []byte(valid)) == 1 {
				return next(c)
			}
		}

		zap.S().Warnw("rejected admin request", "remote", c.RealIP(), "path", c.Path())
		return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	}
}

// do runs fn on the serialization point for the lifetime of the request
func (a *Server) do(c echo.Context, fn func()) error {
	err := a.irc.Do(c.Request().Context(), fn)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, irc.ErrServerClosed):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "IRC server is shutting down")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
