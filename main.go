package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"social/config"
	"social/database"
	"social/handlers"
	"social/logging"
	"social/middleware"
	"social/routes"
	"social/social"
	"social/users"
	"social/websocket"
)

// store is what the service needs from a document store adapter.
type store interface {
	social.PostRepository
	social.SocialUserRepository
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("invalid configuration")
	}

	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	logging.Info().Str("addr", cfg.Server.Addr()).Str("store", cfg.Store.Driver).Msg("starting social service")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := openStore(ctx, cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to open store")
	}

	identity := users.New(users.Options{
		BaseURL:    cfg.Users.URL,
		Retries:    cfg.Users.Retries,
		Timeout:    cfg.Users.Timeout,
		RetryDelay: cfg.Users.RetryDelay,
	})

	hub := websocket.NewManager()
	hubCtx, stopHub := context.WithCancel(context.Background())
	go hub.Run(hubCtx)

	graph := social.NewGraph(db, identity, hub)
	engagement := social.NewEngagement(db, identity, social.WithNotifier(hub, db))
	feed := social.NewFeed(db, db, identity)

	if cfg.Server.Mode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := routes.SetupRouter(cfg, routes.Deps{
		Handler: handlers.New(graph, engagement, feed, db, cfg.Server.WriteTimeout),
		Tokens:  middleware.NewTokenParser(cfg.Auth.JWTSecret),
		Hub:     hub,
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logging.Info().Str("addr", server.Addr).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	logging.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("forced shutdown")
	}
	stopHub()
	if err := db.Close(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("failed to close store")
	}

	logging.Info().Msg("server stopped")
}

func openStore(ctx context.Context, cfg *config.Config) (store, error) {
	if cfg.Store.Driver == config.DriverMemory {
		logging.Warn().Msg("using in-memory store; data is lost on restart")
		return database.NewMemoryStore(), nil
	}

	db, err := database.ConnectWithRetry(ctx, database.MongoOptions{
		URI:              cfg.Mongo.URI,
		Database:         cfg.Mongo.Database,
		ConnectTimeout:   cfg.Mongo.ConnectTimeout,
		OperationTimeout: cfg.Mongo.OperationTimeout,
	}, cfg.Mongo.ConnectRetries, 2*time.Second)
	if err != nil {
		return nil, err
	}

	idxCtx, cancel := context.WithTimeout(ctx, cfg.Mongo.ConnectTimeout)
	defer cancel()
	if err := db.EnsureIndexes(idxCtx); err != nil {
		_ = db.Close(context.Background())
		return nil, err
	}
	logging.Info().Str("database", cfg.Mongo.Database).Msg("MongoDB connected")
	return db, nil
}
