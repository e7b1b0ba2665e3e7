package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/atlas-crm/atlas-crm/internal/app"
	"github.com/atlas-crm/atlas-crm/internal/auth"
	"github.com/atlas-crm/atlas-crm/internal/authz"
	"github.com/atlas-crm/atlas-crm/internal/crm/clients"
	"github.com/atlas-crm/atlas-crm/internal/crm/projects"
	"github.com/atlas-crm/atlas-crm/internal/crm/tasks"
	"github.com/atlas-crm/atlas-crm/internal/observability"
	"github.com/atlas-crm/atlas-crm/internal/platform/cache"
	"github.com/atlas-crm/atlas-crm/internal/platform/db"
	"github.com/atlas-crm/atlas-crm/internal/rbac"
	"github.com/atlas-crm/atlas-crm/internal/tenants"
	"github.com/atlas-crm/atlas-crm/internal/users"
	"github.com/atlas-crm/atlas-crm/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	tokens, err := auth.NewTokens(cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		logger.Error("init token signer", slog.Any("error", err))
		os.Exit(1)
	}

	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(authRepo, tokens)
	authHandler := auth.NewHandler(logger, authService, tokens)
	authMiddleware := auth.Middleware{Tokens: tokens, Logger: logger}

	metrics := observability.NewMetrics()

	grantSource := authz.NewPGSource(pool)
	permIndex := authz.NewIndex(grantSource, redisClient, cfg.PermCacheTTL, logger)
	guard := authz.NewGuard(permIndex, logger, metrics, cfg.AuthzDebug)
	guardMiddleware := authz.Middleware{Guard: guard, Logger: logger}

	rbacRepo := rbac.NewRepository(pool)
	rbacService := rbac.NewService(rbacRepo, permIndex, logger)
	rbacHandler := rbac.NewHandler(logger, rbacService, guardMiddleware)

	tenantsRepo := tenants.NewRepository(pool)
	tenantsService := tenants.NewService(tenantsRepo)
	tenantsHandler := tenants.NewHandler(logger, tenantsService, guardMiddleware)

	usersRepo := users.NewRepository(pool)
	usersService := users.NewService(usersRepo, permIndex, logger)
	usersHandler := users.NewHandler(logger, usersService, guardMiddleware)

	sessions := db.NewTenantSessions(pool, metrics)

	clientsService := clients.NewService(sessions, clients.NewRepository())
	clientsHandler := clients.NewHandler(logger, clientsService, guardMiddleware)

	projectsService := projects.NewService(sessions, projects.NewRepository())
	projectsHandler := projects.NewHandler(logger, projectsService, guardMiddleware)

	tasksService := tasks.NewService(sessions, tasks.NewRepository())
	tasksHandler := tasks.NewHandler(logger, tasksService, guardMiddleware)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		AuthMiddleware:  authMiddleware,
		AuthHandler:     authHandler,
		RBACHandler:     rbacHandler,
		TenantsHandler:  tenantsHandler,
		UsersHandler:    usersHandler,
		ClientsHandler:  clientsHandler,
		ProjectsHandler: projectsHandler,
		TasksHandler:    tasksHandler,
		JobsHandler:     jobsHandler,
		Metrics:         metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
