package main

import (
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/pinggolf/aps-scheduler/internal/config"
	"github.com/pinggolf/aps-scheduler/internal/db"
	"github.com/pinggolf/aps-scheduler/internal/mes"
	"github.com/pinggolf/aps-scheduler/internal/pipeline"
	"github.com/pinggolf/aps-scheduler/internal/queue"
	"github.com/pinggolf/aps-scheduler/internal/refdata"
	"github.com/pinggolf/aps-scheduler/internal/sequence"
	"github.com/pinggolf/aps-scheduler/internal/workers"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Check for migration command
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		runMigrations(cfg)
		return
	}

	// Initialize database connection
	database, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	// Configure connection pool
	database.SetMaxOpenConns(cfg.DatabaseMaxConnections)
	database.SetMaxIdleConns(cfg.DatabaseMaxIdleConnections)
	database.SetConnMaxLifetime(cfg.DatabaseConnectionLifetime)

	// Test database connection
	if err := database.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}
	log.Println("Database connection established")

	// Run database migrations (only if enabled)
	if cfg.RunMigrations {
		log.Println("Running database migrations...")
		if err := db.RunMigrations(database, "migrations"); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
		log.Println("Database migrations completed successfully")
	} else {
		log.Println("Skipping migrations (RUN_MIGRATIONS=false)")
	}

	// Initialize database layer
	queries := db.New(database)

	// Initialize NATS connection
	log.Println("Connecting to NATS...")
	natsManager, err := queue.NewManager(cfg.NATSURL)
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer natsManager.Close()
	log.Println("NATS connection established")

	// Initialize the durable sequence allocator and its per-order-type
	// rate limiters
	limiterFactory := sequence.NewLimiterFactory(cfg.SequenceRateLimitPerSecond, cfg.SequenceRateLimitBurst)
	allocator := sequence.NewAllocator(queries, limiterFactory, cfg.SequenceAllocatorMaxRetries, cfg.SequenceAllocatorBaseBackoff)

	// Reference-Data Provider: batched, run-scoped fetch of machine speeds,
	// feeder/packer relations, the shift calendar and maintenance windows
	refdataProvider := refdata.NewProvider(queries)

	// Build the six-stage pipeline runner
	runner := pipeline.NewRunner(
		allocator,
		cfg.ShiftDuration,
		cfg.MergeGapTolerance,
		cfg.CorrectionHorizon,
		cfg.MaintenanceMaxIterations,
		cfg.PipelineSoftDeadline,
	)

	dispatcher := mes.NewLoggingDispatcher()
	rowSource := workers.DBRowSource{Queries: queries}

	// Start pipeline worker
	log.Println("Starting pipeline worker...")
	pipelineWorker := workers.NewPipelineWorker(natsManager, runner, refdataProvider, rowSource, dispatcher, queries)
	if err := pipelineWorker.Start(); err != nil {
		log.Fatalf("Failed to start pipeline worker: %v", err)
	}
	log.Println("Pipeline worker started")

	// Wait for interrupt signal to gracefully shut down
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down scheduler...")
}

func runMigrations(cfg *config.Config) {
	database, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	log.Println("Running database migrations...")
	if err := db.RunMigrations(database, "migrations"); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Migrations completed successfully")
}
