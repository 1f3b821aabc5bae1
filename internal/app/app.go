// Package app holds the process-wide application context and composes the
// HTTP server once the database is reachable.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/valerit/react-kanban/internal/auth"
	"github.com/valerit/react-kanban/internal/board"
	"github.com/valerit/react-kanban/internal/config"
	"github.com/valerit/react-kanban/internal/db"
	httpx "github.com/valerit/react-kanban/internal/http"
	"github.com/valerit/react-kanban/internal/render"
	"github.com/valerit/react-kanban/internal/session"
)

type App struct {
	Config *config.Config
	Logger *zap.Logger
	Mongo  *db.Client
}

// Connect opens the database connection. Nothing else is built until it
// succeeds.
func Connect(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	logger.Info("connecting to database", zap.String("database", cfg.MongoName))
	client, err := db.Connect(ctx, cfg.MongoURL, cfg.MongoName, cfg.MongoConnectTimeout)
	if err != nil {
		return nil, err
	}
	logger.Info("connected to database")
	return &App{Config: cfg, Logger: logger, Mongo: client}, nil
}

// Server builds the stores over the shared database handle and wires them
// into the HTTP server.
func (a *App) Server(ctx context.Context) (*httpx.Server, error) {
	database := a.Mongo.Database()

	sessionStore, err := a.sessionStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to set up session store: %w", err)
	}
	users, err := auth.NewMongoUserStore(ctx, database)
	if err != nil {
		return nil, fmt.Errorf("failed to set up user store: %w", err)
	}
	boards, err := board.NewMongoRepository(ctx, database)
	if err != nil {
		return nil, fmt.Errorf("failed to set up board repository: %w", err)
	}
	renderer, err := render.New("")
	if err != nil {
		return nil, err
	}

	sessions := session.NewManager(sessionStore, session.Options{
		Secret: a.Config.SessionSecret,
		TTL:    a.Config.SessionTTL,
	}, a.Logger)
	authenticator := auth.NewAuthenticator(users, a.Logger)
	boardHandler := board.NewHandler(boards, a.Logger)

	return httpx.NewServer(httpx.Deps{
		Config:         a.Config,
		Logger:         a.Logger,
		Sessions:       sessions.Middleware(),
		Auth:           authenticator,
		API:            boardHandler,
		FetchBoardData: boardHandler.FetchBoardData(),
		RenderPage:     renderer.Handler(),
		Ping: func(ctx context.Context) error {
			return a.Mongo.Ping(ctx, nil)
		},
	})
}

// sessionStore picks the backend named by SESSION_STORE. The memory store
// loses every session on restart and is not shared between processes.
func (a *App) sessionStore(ctx context.Context) (session.Store, error) {
	if a.Config.SessionStore == config.SessionStoreMemory {
		a.Logger.Warn("sessions are kept in process memory", zap.String("store", a.Config.SessionStore))
		return session.NewMemoryStore(), nil
	}
	return session.NewMongoStore(ctx, a.Mongo.Database())
}

// Close disconnects the database.
func (a *App) Close(ctx context.Context) error {
	if err := a.Mongo.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect: %w", err)
	}
	return nil
}
