package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rmorley/dqcheck/internal/checks"
	"github.com/rmorley/dqcheck/internal/config"
	"github.com/rmorley/dqcheck/internal/db"
	"github.com/rmorley/dqcheck/internal/export"
	"github.com/rmorley/dqcheck/internal/middleware"
	"github.com/rmorley/dqcheck/internal/platform/logger"
	"github.com/rmorley/dqcheck/internal/repository"
	"github.com/rmorley/dqcheck/internal/resolver"
	"github.com/rmorley/dqcheck/internal/sample"
	"github.com/rmorley/dqcheck/internal/search"
	"github.com/rmorley/dqcheck/internal/updater"
	"github.com/rmorley/dqcheck/internal/validation"
	"github.com/rmorley/dqcheck/internal/workflow"

	"github.com/rs/cors"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, fileLoaded, err := config.Load(".")
	if err != nil {
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		os.Exit(1)
	}
	defer log.Sync()
	if !fileLoaded {
		log.Info("no config.yaml found, using defaults and env vars")
	}

	conn, err := db.NewConnection(ctx, cfg.Database)
	if err != nil {
		log.Fatal("failed to connect to database", "error", err)
	}
	defer conn.Close()

	if err := db.RunMigrations(cfg.Database); err != nil {
		log.Fatal("failed to run migrations", "error", err)
	}

	checkRepo := repository.NewCheckRepository(conn.Pool)
	groupRepo := repository.NewGroupRepository(conn.Pool)
	definitionRepo := repository.NewDefinitionRepository(conn.Pool)
	tableRepo := repository.NewTableRepository(conn.Pool)
	userRepo := repository.NewUserRepository(conn.Pool)
	edgeRepo := repository.NewEdgeRepository(conn.Pool)
	resultStore := repository.NewResultStore(conn.Pool)
	statusStore := repository.NewResolutionStatusStore(conn.Pool)
	extensionStore := repository.NewExtensionRepository(conn.Pool)

	// The search store is an optional acceleration layer. Start without it
	// when redis is unreachable; reads fall back to the time-series store.
	var index checks.SearchIndex
	var searcher resolver.ResultSearcher
	searchStore, err := search.NewStore(ctx, cfg.Search, log)
	if err != nil {
		log.Warn("search store unavailable, continuing without it", "error", err)
	} else {
		defer func() { _ = searchStore.Close() }()
		index = searchStore
		searcher = searchStore
	}

	fieldResolver := resolver.New(edgeRepo, groupRepo, definitionRepo, tableRepo, resultStore, searcher, log)
	validator := validation.NewParameterValidator(log)
	incidents := workflow.NewIncidentWorkflow(checkRepo, statusStore, log)

	service := checks.NewService(checks.Deps{
		Checks:      checkRepo,
		Groups:      groupRepo,
		Definitions: definitionRepo,
		Tables:      tableRepo,
		Edges:       edgeRepo,
		Results:     resultStore,
		Statuses:    statusStore,
		Extensions:  extensionStore,
		Resolver:    fieldResolver,
		Updater:     updater.New(edgeRepo, tableRepo, groupRepo, definitionRepo, fieldResolver, validator, log),
		Validator:   validator,
		Incidents:   incidents,
		Index:       index,
		Log:         log,
	})
	samples := sample.NewService(checkRepo, tableRepo, extensionStore, log)

	tasks := workflow.NewRegistry()
	tasks.Register(workflow.TaskTypeFailureResolution, incidents)

	mux := http.NewServeMux()
	checks.NewHandler(service, samples, tasks, userRepo, log).RegisterRoutes(mux)
	mux.Handle("GET /api/checks/export", export.NewHTTPHandler(export.NewService(checkRepo, fieldResolver, log)))

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000"},
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
	})

	handler := corsHandler.Handler(
		middleware.LoggingMiddleware(log)(
			middleware.ActorMiddleware(
				middleware.DataLoaderMiddleware(checkRepo)(mux),
			),
		),
	)

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("starting server", "addr", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("failed to start server", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal("server forced to shutdown", "error", err)
	}

	log.Info("server exited")
}
