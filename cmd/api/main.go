package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/soficodes/bloghub/internal/auth"
	"github.com/soficodes/bloghub/internal/cache"
	"github.com/soficodes/bloghub/internal/config"
	"github.com/soficodes/bloghub/internal/db"
	bloghttp "github.com/soficodes/bloghub/internal/http"
	"github.com/soficodes/bloghub/internal/http/handlers"
	"github.com/soficodes/bloghub/internal/http/middlewares"
	"github.com/soficodes/bloghub/internal/observability"
	"github.com/soficodes/bloghub/internal/repo/memory"
	"github.com/soficodes/bloghub/internal/repo/postgres"
	"github.com/soficodes/bloghub/internal/revocation"
)

func main() {
	cfg := config.Load()

	logger := observability.NewLogger(cfg.Env)
	logger = slog.New(observability.NewTraceHandler(logger.Handler()))
	slog.SetDefault(logger)

	ctx := context.Background()

	if cfg.OTLPEndpoint != "" {
		shutdownTracer, err := observability.InitTracer(ctx, "bloghub", cfg.OTLPEndpoint)
		if err != nil {
			logger.Warn("tracing disabled", "error", err)
		} else {
			defer func() {
				sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = shutdownTracer(sctx)
			}()
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := observability.NewProm(reg)

	jwtManager := auth.NewManager(cfg.JWTSecret, cfg.AccessTTL, cfg.RefreshTTL)

	var (
		usersRepo interface {
			handlers.UserReader
			handlers.UserWriter
			handlers.AdminUsersRepo
		}
		postsRepo interface {
			handlers.PostsRepo
			handlers.PostsCounter
		}
		refreshStore    handlers.RefreshTokenStore
		sessionsRevoker handlers.SessionsRevoker
		ping            func() error
	)

	switch cfg.Backend {
	case "memory":
		logger.Warn("using in-memory backend, data will not survive a restart")
		usersRepo = memory.NewUsersRepo()
		postsRepo = memory.NewPostsRepo()
		ping = func() error { return nil }
	default:
		pool, err := db.NewPool(cfg.DBURL)
		if err != nil {
			logger.Error("database connection failed", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		if err := db.EnsureAdminUser(ctx, pool, cfg); err != nil {
			logger.Error("admin seeding failed", "error", err)
			os.Exit(1)
		}

		usersRepo = postgres.NewUsersRepo(pool)
		postsRepo = postgres.NewPostsRepo(pool, prom)
		refreshRepo := postgres.NewRefreshTokensRepo(pool)
		refreshStore = refreshRepo
		sessionsRevoker = refreshRepo
		ping = func() error {
			pctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return pool.Ping(pctx)
		}
	}

	var (
		revChecker middlewares.RevocationChecker
		revoker    handlers.AccessRevoker
	)

	if cfg.RedisAddr != "" {
		store := revocation.New(revocation.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer func() { _ = store.Close() }()

		if err := store.Ping(ctx); err != nil {
			logger.Warn("redis unreachable, token revocation disabled", "error", err)
		} else {
			revChecker = store
			revoker = store
		}
	}

	authMW := middlewares.NewAuthMiddleware(jwtManager, revChecker)

	listCache := cache.New(cfg.CacheTTL)

	authH := handlers.NewAuthHandler(usersRepo, usersRepo, jwtManager, refreshStore, revoker, cfg)
	postsH := handlers.NewPostsHandler(postsRepo, usersRepo, listCache, prom)
	adminH := handlers.NewAdminHandler(usersRepo, postsRepo, sessionsRevoker)
	healthH := handlers.NewHealthHandler(ping)

	router := bloghttp.NewRouter(cfg, prom, reg, authMW, authH, postsH, adminH, healthH)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("server listening", "port", cfg.Port, "backend", cfg.Backend, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(sctx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}
