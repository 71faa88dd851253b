// cmd/server/main.go
package main

import (
	"context"
	"net/http"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/motdgate/motdgate/internal/auth"
	"github.com/motdgate/motdgate/internal/config"
	"github.com/motdgate/motdgate/internal/events"
	"github.com/motdgate/motdgate/internal/handlers"
	"github.com/motdgate/motdgate/internal/middleware"
	"github.com/motdgate/motdgate/internal/page"
	"github.com/motdgate/motdgate/internal/presenter"
	"github.com/motdgate/motdgate/internal/secrets"
	"github.com/motdgate/motdgate/internal/session"
	"github.com/motdgate/motdgate/internal/transport"
)

func main() {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}

	processSecret, err := auth.LoadOrCreateProcessSecret(cfg.ProcessSecretPath)
	if err != nil {
		logger.Fatalf("failed to initialize process secret: %v", err)
	}
	tokens := auth.NewTokenService(cfg.ServerID, processSecret)

	web, err := auth.NewWebTokenService(cfg.WebTokenExpire)
	if err != nil {
		logger.Fatalf("failed to initialize web token service: %v", err)
	}

	ctx := context.Background()

	var store secrets.Store = secrets.NewMemoryStore()
	if cfg.Postgres.Enabled() {
		pg, err := secrets.NewPostgresStore(ctx, cfg.Postgres.DSN())
		if err != nil {
			logger.Fatalf("failed to connect to Postgres: %v", err)
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			logger.Fatalf("failed to ensure schema: %v", err)
		}
		store = pg
	} else {
		logger.Warn("no Postgres configured, rotating secrets will not survive a restart")
	}

	var ev *events.Publisher
	if cfg.Redis.Enabled() {
		ev, err = events.Connect(ctx, cfg.Redis.Addr, cfg.Redis.DB, cfg.Redis.Queue, logger)
		if err != nil {
			logger.Fatalf("failed to connect to Redis: %v", err)
		}
	}

	table := session.NewTable(store, logger)

	registry := page.NewRegistry()
	if err := registerBuiltinPages(registry, cfg.ServerID); err != nil {
		logger.Fatalf("failed to register builtin pages: %v", err)
	}

	pres := presenter.New(presenter.Options{
		ServerID:    cfg.ServerID,
		ServerAddr:  cfg.ServerAddr,
		URLTemplate: cfg.URLTemplate,
		Tokens:      tokens,
		Web:         web,
		Events:      ev,
		Log:         logger,
		Debug:       cfg.Debug,
	})

	api := &handlers.API{Log: logger, Table: table, Registry: registry, Presenter: pres, Events: ev}

	mux := http.NewServeMux()

	// game server endpoints
	mux.Handle("/identity/active", middleware.LogMiddleware(logger)(http.HandlerFunc(
		api.IdentityActiveHandler,
	)))
	mux.Handle("/identity/dropped", middleware.LogMiddleware(logger)(http.HandlerFunc(
		api.IdentityDroppedHandler,
	)))
	mux.Handle("/level/changed", middleware.LogMiddleware(logger)(http.HandlerFunc(
		api.LevelChangedHandler,
	)))
	mux.Handle("/page/send", middleware.LogMiddleware(logger)(http.HandlerFunc(
		api.SendPageHandler,
	)))

	// channel websocket; logs its own connection lifecycle
	mux.HandleFunc("/channel/ws", transport.ChannelWSHandler(logger, registry, table, ev))

	mux.HandleFunc("/healthz", handlers.HealthzHandler)

	logger.Infof("Running on %s", cfg.ListenAddr)
	if err := http.ListenAndServe(cfg.ListenAddr, mux); err != nil {
		logger.Fatalf("server exited: %v", err)
	}
}
