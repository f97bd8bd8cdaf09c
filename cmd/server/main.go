package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	httpadapter "github.com/opsdeck/opsdeck/internal/adapter/http"
	"github.com/opsdeck/opsdeck/internal/bootstrap"
	"github.com/opsdeck/opsdeck/internal/config"
	"github.com/opsdeck/opsdeck/internal/infra/logger"
	"github.com/opsdeck/opsdeck/internal/infra/metrics"
	"github.com/opsdeck/opsdeck/internal/tenant"
)

// Version and build information
var (
	Version   = "development"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	var (
		version  = flag.Bool("version", false, "Show version information")
		migrate  = flag.Bool("migrate", false, "Run store migrations and exit")
		seed     = flag.Bool("seed", false, "Load sample data into -org and exit")
		seedOrg  = flag.String("org", "", "Organization id to seed")
		seedUser = flag.String("user", "", "User id that owns the seeded organization")
	)
	flag.Parse()

	if *version {
		fmt.Printf("OpsDeck MSP Operations Dashboard\n")
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
		fmt.Printf("Git Commit: %s\n", GitCommit)
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	structuredLogger := logger.New(cfg.ToLoggerConfig("opsdeck"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	structuredLogger.Info(ctx, "Application starting", map[string]interface{}{
		"version": Version,
		"env":     cfg.Server.Environment,
	})

	app, err := bootstrap.New(ctx, cfg, structuredLogger)
	if err != nil {
		structuredLogger.Error(ctx, "Failed to initialize application", err, nil)
		os.Exit(1)
	}
	defer app.Close()

	if *migrate {
		if err := app.Migrate(ctx); err != nil {
			structuredLogger.Error(ctx, "Failed to run migrations", err, nil)
			os.Exit(1)
		}
		os.Exit(0)
	}

	if *seed {
		if *seedOrg == "" || *seedUser == "" {
			log.Fatalf("-seed requires -org and -user")
		}
		seedCtx := tenant.WithOrg(tenant.WithPrincipal(ctx, tenant.Principal{UserID: *seedUser}), *seedOrg)
		summary, err := app.Seed.Seed(seedCtx)
		if err != nil {
			structuredLogger.Error(ctx, "Failed to seed organization", err, map[string]interface{}{"organization_id": *seedOrg})
			os.Exit(1)
		}
		fmt.Printf("Seeded %s: %v\n", summary.OrganizationID, summary.Written)
		os.Exit(0)
	}

	if err := app.Migrate(ctx); err != nil {
		structuredLogger.Error(ctx, "Failed to run migrations", err, nil)
		os.Exit(1)
	}

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(":" + cfg.Metrics.Port)
		go func() {
			structuredLogger.Info(ctx, "Metrics server listening", map[string]interface{}{"addr": metricsServer.Addr})
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				structuredLogger.Error(ctx, "Metrics server failed", err, nil)
			}
		}()
	}

	server := httpadapter.NewServer(app.ServerConfig(), app.HTTPDependencies())
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	// stops the fault relay
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		structuredLogger.Error(shutdownCtx, "Error during server shutdown", err, nil)
	}
	if metricsServer != nil {
		metricsServer.Shutdown(shutdownCtx)
	}

	structuredLogger.Info(shutdownCtx, "Server stopped", nil)
}
