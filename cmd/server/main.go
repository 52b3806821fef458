package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"planscape-backend/internal/artifacts"
	"planscape-backend/internal/builder"
	"planscape-backend/internal/config"
	"planscape-backend/internal/database"
	"planscape-backend/internal/extractor"
	"planscape-backend/internal/handlers"
	"planscape-backend/internal/middleware"
	"planscape-backend/internal/pipeline"
	"planscape-backend/internal/realtime"
	"planscape-backend/internal/store"
	"planscape-backend/internal/usage"
)

func main() {
	// Load .env if present; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	var logger *zap.Logger
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Store selection: Postgres when DATABASE_URL is set, in-memory
	// otherwise (local development only; nothing survives a restart).
	var st store.Store
	if cfg.DatabaseURL != "" {
		migrator, err := database.NewMigrator(cfg.DatabaseURL, logger)
		if err != nil {
			logger.Fatal("failed to initialize migrator", zap.Error(err))
		}
		if err := migrator.Run(); err != nil {
			logger.Fatal("migration failed", zap.Error(err))
		}
		migrator.Close()

		pg, err := store.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		st = pg
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory store")
		st = store.NewMem()
	}
	defer st.Close()

	artifactStore, err := artifacts.NewDiskStore(cfg.ArtifactDir)
	if err != nil {
		logger.Fatal("failed to initialize artifact store", zap.Error(err))
	}

	var publisher *realtime.Publisher
	if cfg.SupabaseURL != "" && cfg.SupabaseKey != "" {
		publisher, err = realtime.NewPublisher(cfg.SupabaseURL, cfg.SupabaseKey, logger)
		if err != nil {
			logger.Warn("failed to initialize realtime publisher", zap.Error(err))
		}
	}

	ledger := usage.NewLedger(st)
	gate := usage.NewGate(ledger, cfg.Quota)
	ext := extractor.NewClient(cfg.ExtractorBaseURL, cfg.ExtractorAPIKey)
	modelBuilder := builder.New(cfg.WallHeightM, cfg.WallThicknessM)

	sm := pipeline.NewStateMachine(st, gate, ledger, ext, modelBuilder,
		artifactStore, publisher, cfg.ExportFormats, logger)
	if cfg.SupabaseURL != "" && cfg.SupabaseKey != "" {
		mirror, err := artifacts.NewBucketMirror(cfg.SupabaseURL, cfg.SupabaseKey, cfg.SupabaseStorageBucket)
		if err != nil {
			logger.Warn("failed to initialize bucket mirror", zap.Error(err))
		} else {
			sm.UseMirror(mirror)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool := pipeline.NewWorkerPool(sm, cfg.Workers*4, logger)
	pool.Start(ctx, cfg.Workers)

	projectsHandler := handlers.NewProjectsHandler(st, sm, cfg, logger)
	processHandler := handlers.NewProcessHandler(st, pool)
	statusHandler := handlers.NewStatusHandler(st, sm)
	filesHandler := handlers.NewFilesHandler(st, ledger, logger)
	usageHandler := handlers.NewUsageHandler(st, ledger)

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	router.GET("/health", handlers.HealthHandler)

	api := router.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(cfg))
	if cfg.CountAPICalls {
		api.Use(middleware.UsageAccounting(ledger, logger))
	}

	api.POST("/projects", projectsHandler.Upload)
	api.GET("/projects", projectsHandler.ListProjects)
	api.GET("/projects/:project_id", projectsHandler.GetProject)
	api.POST("/projects/:project_id/cancel", projectsHandler.CancelProject)
	api.POST("/projects/:project_id/reset", projectsHandler.ResetProject)

	api.POST("/projects/:project_id/process", processHandler.Process)
	api.GET("/projects/:project_id/status", statusHandler.GetStatus)
	api.GET("/projects/:project_id/files", filesHandler.GetFiles)
	api.GET("/projects/:project_id/files/:format", filesHandler.Download)

	api.GET("/usage", usageHandler.GetUsage)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		srv.Shutdown(context.Background())
		pool.Wait()
	}()

	logger.Info("server starting", zap.String("port", cfg.Port))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server failed", zap.Error(err))
	}
	pool.Wait()
}
