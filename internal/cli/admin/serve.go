package admin

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/clio-labs/chronotex/internal/api/handlers"
	"github.com/clio-labs/chronotex/internal/config"
	"github.com/clio-labs/chronotex/internal/database"
	"github.com/clio-labs/chronotex/internal/expansion"
	"github.com/clio-labs/chronotex/internal/jobs"
	"github.com/clio-labs/chronotex/internal/llm"
	"github.com/clio-labs/chronotex/internal/openai"
	"github.com/clio-labs/chronotex/internal/repository"
	"github.com/clio-labs/chronotex/internal/rerank"
	"github.com/clio-labs/chronotex/internal/search"
	"github.com/clio-labs/chronotex/internal/server"
	"github.com/clio-labs/chronotex/internal/service"
	"github.com/clio-labs/chronotex/internal/storage"
	"github.com/clio-labs/chronotex/internal/telemetry"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/panjf2000/ants/v2"
	"github.com/spf13/cobra"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the chronotex API server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize Sentry with tracing if SENTRY_DSN is set
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		environment := os.Getenv("ENVIRONMENT")
		if environment == "" {
			environment = "development"
		}

		// Default to 10% sampling in production, 100% in development
		sampleRate := 0.1
		if environment == "development" {
			sampleRate = 1.0
		}

		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              dsn,
			Environment:      environment,
			TracesSampleRate: sampleRate,
		})
		if err != nil {
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "8080" {
		cfg.Port = portFlag
	}

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()
	log.Println("connected to database")

	// Run migrations unless --no-migrate flag is set
	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if err := runMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	if !cfg.HasOpenAI() {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}

	archiveRepo := repository.NewArchiveRepository(pool)
	exportRepo := repository.NewExportRepository(pool)

	embedClient := openai.NewClientWithConfig(openai.Config{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
	})
	orchestrator := search.NewOrchestrator(archiveRepo, embedClient)

	// One pool for all LLM scoring calls, so concurrent searches share the
	// configured ceiling instead of multiplying it.
	llmPool, err := ants.NewPool(cfg.LLMConcurrency)
	if err != nil {
		return fmt.Errorf("failed to create LLM worker pool: %w", err)
	}
	defer llmPool.Release()

	llmClient := llm.NewOpenAIClientWithBaseURL(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL)
	reranker := rerank.NewReranker(llmClient, llmPool)

	var expander service.KeywordExpanderInterface
	var neighborProvider service.NeighborProviderInterface
	if cfg.HasWordVec() {
		wvClient := expansion.NewHTTPWordVectorClient(cfg.WordVecURL, cfg.WordVecTimeout)
		exp := expansion.NewExpander(wvClient)
		expander = exp
		neighborProvider = exp
		log.Printf("keyword expansion enabled via %s", cfg.WordVecURL)
	}

	var s3Client *storage.S3Client
	var exportObjects service.ExportObjectStoreInterface
	var sweeperObjects jobs.ArtifactStore
	if cfg.HasS3() {
		s3Config := storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		}
		s3Client, err = storage.NewS3Client(ctx, s3Config)
		if err != nil {
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		if err := s3Client.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		log.Printf("S3 bucket '%s' ready", cfg.S3Bucket)
		exportObjects = s3Client
		sweeperObjects = s3Client
	}

	sweeper := jobs.NewExportSweeper(exportRepo, sweeperObjects)
	sweepWorker := jobs.NewWorker(sweeper, cfg.ExportSweepInterval)
	go sweepWorker.Start(ctx)
	log.Println("export sweeper started")

	searchSvc := service.NewSearchService(orchestrator, reranker, expander, cfg)
	analysisSvc := service.NewAnalysisService(llmClient, cfg)
	keywordSvc := service.NewKeywordService(neighborProvider)
	exportSvc := service.NewExportService(exportRepo, exportObjects, cfg.ExportRetention)
	settingsSvc := service.NewSettingsService(cfg)

	routerCfg := server.RouterConfig{
		SearchHandler:   handlers.NewSearchHandler(searchSvc),
		AnalyzeHandler:  handlers.NewAnalyzeHandler(analysisSvc),
		KeywordHandler:  handlers.NewKeywordHandler(keywordSvc),
		ExportHandler:   handlers.NewExportHandler(exportSvc),
		SettingsHandler: handlers.NewSettingsHandler(settingsSvc),
	}

	router := server.NewRouter(routerCfg)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	sweepWorker.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

func runMigrations(databaseURL string) error {
	// Create a sql.DB connection for golang-migrate
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	// Create postgres driver instance
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	// Create migrate instance with file source
	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	// Run migrations
	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	// Get migration version and status
	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if err == migrate.ErrNilVersion {
		log.Println("migrations: database is up to date (no migrations applied)")
	} else if dirty {
		return fmt.Errorf("migration version %d is dirty - manual intervention required", version)
	} else if err == migrate.ErrNoChange {
		log.Printf("migrations: database is up to date (version %d)", version)
	} else {
		log.Printf("migrations: applied successfully (version %d)", version)
	}

	return nil
}
