package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/sci2zero/cris-exchange/internal/config"
	delivery "github.com/sci2zero/cris-exchange/internal/delivery/http"
	"github.com/sci2zero/cris-exchange/internal/metadata"
	"github.com/sci2zero/cris-exchange/internal/registry"
	"github.com/sci2zero/cris-exchange/internal/repository/postgres"
	"github.com/sci2zero/cris-exchange/internal/usecase"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("CRIS Exchange Service Starting...")

	_ = godotenv.Load()

	// Load configuration
	cfg := config.Load()
	log.Printf("Server configured on port %s", cfg.Server.Port)

	// Connect to PostgreSQL with retry
	var pool *pgxpool.Pool
	for attempt := 1; attempt <= 5; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		var err error
		pool, err = pgxpool.New(ctx, cfg.Database.URL)
		if err == nil {
			if pingErr := pool.Ping(ctx); pingErr == nil {
				cancel()
				log.Println("Connected to PostgreSQL")
				break
			} else {
				pool.Close()
				log.Printf("Attempt %d: Failed to ping database: %v", attempt, pingErr)
			}
		} else {
			log.Printf("Attempt %d: Failed to connect to database: %v", attempt, err)
		}
		cancel()
		if attempt == 5 {
			log.Fatalf("Could not connect to database after 5 attempts")
		}
		time.Sleep(time.Duration(attempt) * 2 * time.Second)
	}
	defer pool.Close()

	// Initialize repositories
	exportRepo := postgres.NewExportRepository(pool)
	tokenRepo := postgres.NewResumptionTokenRepository(pool)
	institutionRepo := postgres.NewInstitutionRepository(pool)

	// Metadata strategies are registered at startup; every reload of the
	// handler configurations is validated against them, so a demanded but
	// unimplemented combination fails fast instead of surfacing per
	// request.
	formats := metadata.Default()
	reg, err := registry.New(cfg.Registry.Dir, registry.WithValidator(formats.ValidateAgainst))
	if err != nil {
		log.Fatalf("Failed to load handler configurations: %v", err)
	}
	log.Printf("Loaded %d handler configurations from %s", len(reg.All()), cfg.Registry.Dir)

	protocol := usecase.NewProtocolService(reg, exportRepo, institutionRepo, tokenRepo, formats)

	// Initialize HTTP handler
	handler := delivery.NewHandler(protocol, reg, cfg.Admin.Secret)
	router := delivery.NewRouter(handler, cfg.CORS.AllowedOrigins)

	// Background maintenance: periodic configuration reload and expired
	// token sweep.
	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()
	go reg.Watch(bgCtx, cfg.Registry.ReloadInterval)
	go tokenRepo.Sweep(bgCtx, cfg.Tokens.SweepInterval, log.Printf)

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	fmt.Println()
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped gracefully")
}
