package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/nkiryanov/taskauth/internal/db"
	"github.com/nkiryanov/taskauth/internal/handlers"
	"github.com/nkiryanov/taskauth/internal/logger"
	"github.com/nkiryanov/taskauth/internal/repository/postgres"
	"github.com/nkiryanov/taskauth/internal/repository/tokencache"
	"github.com/nkiryanov/taskauth/internal/service/auth"
	"github.com/nkiryanov/taskauth/internal/service/auth/sessions"
	"github.com/nkiryanov/taskauth/internal/service/auth/sweeper"
	"github.com/nkiryanov/taskauth/internal/service/auth/tokencodec"
	"github.com/nkiryanov/taskauth/internal/service/auth/tokenissuer"
	"github.com/nkiryanov/taskauth/internal/service/user"
)

const shutdownTimeout = 5 * time.Second

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler

	sweeper *sweeper.Sweeper
	logger  logger.Logger
	pool    *pgxpool.Pool
	redis   *redis.Client
}

func NewServerApp(ctx context.Context, c *Config) (app *ServerApp, err error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config. Err: %w", err)
	}

	// Initialize logger
	l, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	// Token codec refuses keys too short for the algorithm, check it before connecting anywhere
	codec, err := tokencodec.New(tokencodec.Config{SecretKey: c.SecretKey, Alg: c.SigningAlg})
	if err != nil {
		return nil, fmt.Errorf("error while creating token codec. Err: %w", err)
	}
	issuer, err := tokenissuer.New(tokenissuer.Config{AccessTTL: c.AccessTTL, RefreshTTL: c.RefreshTTL}, codec)
	if err != nil {
		return nil, fmt.Errorf("error while creating token issuer. Err: %w", err)
	}

	// Connect to the database and run migrations
	pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}
	defer func() {
		if err != nil {
			pool.Close()
		}
	}()

	redisClient, err := db.ConnectRedis(ctx, c.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to redis. Err: %w", err)
	}
	defer func() {
		if err != nil {
			_ = redisClient.Close()
		}
	}()

	// Initialize repositories
	storage := postgres.NewStorage(pool)
	tokens := tokencache.New(redisClient)

	// Initialize services
	userService := user.NewService(user.DefaultHasher, storage.User(), l)
	coordinator, err := sessions.New(storage, tokens, l)
	if err != nil {
		return nil, fmt.Errorf("error while creating sessions coordinator. Err: %w", err)
	}
	authService, err := auth.NewService(userService, codec, issuer, coordinator, l)
	if err != nil {
		return nil, fmt.Errorf("error while creating auth service. Err: %w", err)
	}

	mux := handlers.NewRouter(
		authService,
		handlers.AuthConfig{SecureCookie: c.Environment == logger.EnvProduction},
		l,
	)

	return &ServerApp{
		ListenAddr: c.ListenAddr,
		Handler:    mux,
		sweeper:    sweeper.New(sweeper.Config{Interval: c.SweepInterval}, storage.Authentication(), l),
		logger:     l,
		pool:       pool,
		redis:      redisClient,
	}, nil
}

// Run starts http server and closes gracefully on context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.ListenAddr,
		Handler:           s.Handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	// Listen and serve until context is cancelled
	g.Go(func() error {
		s.logger.Info("Starting server", "address", s.ListenAddr)
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error. Err: %w", err)
		}
		return nil
	})

	// Clean up expired authentications in background
	g.Go(func() error {
		<-s.sweeper.Run(gctx)
		return nil
	})

	// Then close gracefully connections
	g.Go(func() error {
		<-gctx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); err != nil {
			s.logger.Error("HTTP server shutdown timeout exceeded, forcing shutdown...", "error", err)
			return httpServer.Close()
		}

		s.logger.Info("HTTP server stopped")
		return nil
	})

	return g.Wait()
}

// Close releases db and redis connections
func (s *ServerApp) Close() {
	s.pool.Close()
	if err := s.redis.Close(); err != nil {
		s.logger.Warn("error while closing redis client", "error", err)
	}
}
