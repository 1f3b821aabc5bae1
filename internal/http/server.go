// Package httpx assembles the request pipeline, mounts the routes and runs
// the HTTP listener.
package httpx

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/valerit/react-kanban/internal/config"
	"github.com/valerit/react-kanban/internal/http/body"
)

// StaticPrefix is the URL prefix static assets are served under.
const StaticPrefix = "/static"

// Authenticator provides the two authentication stages and the /auth routes.
type Authenticator interface {
	Initialize() gin.HandlerFunc
	Session() gin.HandlerFunc
	Routes(r gin.IRouter)
}

// Router registers a group of routes.
type Router interface {
	Routes(r gin.IRouter)
}

type Deps struct {
	Config *config.Config
	Logger *zap.Logger

	// Sessions is the session stage.
	Sessions gin.HandlerFunc
	Auth     Authenticator
	API      Router

	// FetchBoardData and RenderPage handle every unmatched request.
	FetchBoardData gin.HandlerFunc
	RenderPage     gin.HandlerFunc

	// Ping reports database health for /healthz. Optional.
	Ping func(ctx context.Context) error
}

type Server struct {
	R   *gin.Engine
	Now func() time.Time

	cfg    *config.Config
	logger *zap.Logger
	ping   func(ctx context.Context) error
}

func NewServer(deps Deps) (*Server, error) {
	if deps.Config.Development() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	stages, err := Pipeline(deps)
	if err != nil {
		return nil, err
	}

	r := gin.New()
	r.Use(Recovery(deps.Logger))
	r.Use(stages...)
	r.Use(Errors(deps.Logger))

	s := &Server{
		R:      r,
		Now:    time.Now,
		cfg:    deps.Config,
		logger: deps.Logger,
		ping:   deps.Ping,
	}
	s.mountRoutes(deps)
	return s, nil
}

// Pipeline returns the request stages in the order they must run. Body
// parsing precedes the session so a malformed body never reaches the
// session store, and static assets are served before the session stage.
func Pipeline(deps Deps) ([]gin.HandlerFunc, error) {
	compress, err := Compression()
	if err != nil {
		return nil, fmt.Errorf("failed to build compression stage: %w", err)
	}
	favicon, err := Favicon(deps.Config.FaviconPath)
	if err != nil {
		return nil, err
	}

	return []gin.HandlerFunc{
		SecureHeaders(deps.Config.Development()),
		AccessLog(deps.Logger),
		compress,
		favicon,
		body.JSON(body.DefaultLimit),
		body.URLEncoded(body.DefaultLimit),
		Static(StaticPrefix, deps.Config.StaticDir),
		deps.Sessions,
		deps.Auth.Initialize(),
		deps.Auth.Session(),
	}, nil
}

// Run binds the configured port and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done, then shuts down
// gracefully within the configured timeout.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.R,
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
	}

	port := s.cfg.Port
	if addr, ok := ln.Addr().(*net.TCPAddr); ok {
		port = strconv.Itoa(addr.Port)
	}
	s.logger.Info("Server listening on port "+port, zap.String("addr", ln.Addr().String()))

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server stopped: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}
