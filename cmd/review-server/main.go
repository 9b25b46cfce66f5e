// Package main provides the review server entry point. It hosts the
// reconciliation and review API and, optionally, the extraction drop watcher.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/golang/glog"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/opencne/listreview/internal/db"
	"github.com/opencne/listreview/pkg/api"
	"github.com/opencne/listreview/pkg/export"
	"github.com/opencne/listreview/pkg/extraction"
	"github.com/opencne/listreview/pkg/intake"
	"github.com/opencne/listreview/pkg/review"
)

func main() {
	var (
		listenAddr   string
		databaseType string
		databaseDSN  string
		dropDir      string
		corsOrigins  string
		verbose      bool
	)

	flag.StringVar(&listenAddr, "listen", ":8080", "Address to listen on")
	flag.StringVar(&databaseType, "db-type", "", "Database type (sqlite, postgres, or mysql)")
	flag.StringVar(&databaseDSN, "db-dsn", "", "Database connection string")
	flag.StringVar(&dropDir, "drop-dir", "", "Extraction drop directory to watch (empty disables intake)")
	flag.StringVar(&corsOrigins, "cors-origins", "", "Comma-separated allowed CORS origins")
	flag.BoolVar(&verbose, "verbose", false, "Log SQL statements")
	flag.Parse()

	// Initialize glog for backwards compatibility
	_ = flag.Set("logtostderr", "true")

	// Local development convenience; a missing .env file is not an error.
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("LISTREVIEW")
	v.AutomaticEnv()
	v.SetDefault("db_type", db.TypeSQLite)
	v.SetDefault("db_dsn", "listreview.db")

	if databaseType == "" {
		databaseType = v.GetString("db_type")
	}
	if databaseDSN == "" {
		databaseDSN = v.GetString("db_dsn")
	}
	if dropDir == "" {
		dropDir = v.GetString("drop_dir")
	}
	if corsOrigins == "" {
		corsOrigins = v.GetString("cors_origins")
	}

	// Set up structured logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("starting review server",
		"listen", listenAddr,
		"dbType", databaseType,
		"dropDir", dropDir,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	gormDB, err := db.Connect(db.Config{
		Type:    databaseType,
		DSN:     databaseDSN,
		Verbose: verbose,
	})
	if err != nil {
		glog.Fatalf("Failed to connect to database: %v", err)
	}

	service := review.NewService(gormDB, logger)
	if err := service.AutoMigrate(); err != nil {
		glog.Fatalf("Failed to migrate database: %v", err)
	}

	// Set up reviewer identity resolution based on LISTREVIEW_AUTH_MODE.
	var reviewer review.ReviewerExtractor
	switch authMode := v.GetString("auth_mode"); authMode {
	case "jwt":
		jwtCfg := review.JWTReviewerConfig{
			IdentityClaim: v.GetString("jwt_identity_claim"),
			PublicKeyPath: v.GetString("jwt_public_key_path"),
			Issuer:        v.GetString("jwt_issuer"),
			Audience:      v.GetString("jwt_audience"),
			Logger:        logger,
		}
		reviewer, err = review.NewJWTReviewerExtractor(jwtCfg)
		if err != nil {
			glog.Fatalf("Failed to create JWT reviewer extractor: %v", err)
		}
		logger.Info("using JWT reviewer identity",
			"identityClaim", jwtCfg.IdentityClaim,
			"hasPublicKey", jwtCfg.PublicKeyPath != "")
	case "header", "":
		reviewer = review.HeaderReviewerExtractor
		logger.Info("using header-based reviewer identity", "header", review.ReviewerHeader)
	default:
		glog.Fatalf("Unknown auth mode: %q (expected jwt, header, or empty)", authMode)
	}

	var allowedOrigins []string
	if corsOrigins != "" {
		allowedOrigins = strings.Split(corsOrigins, ",")
	}

	router := api.NewRouter(api.RouterConfig{
		Service:        service,
		Exporter:       export.NewExporter(gormDB),
		Reviewer:       reviewer,
		AllowedOrigins: allowedOrigins,
	})

	// Start the drop watcher when a directory is configured.
	var watcher *intake.Watcher
	if dropDir != "" {
		watcher, err = intake.NewWatcher(dropDir, service, extraction.Defaults{
			Orgao: v.GetString("default_orgao"),
		}, logger)
		if err != nil {
			glog.Fatalf("Failed to create drop watcher: %v", err)
		}
		if err := watcher.Start(ctx); err != nil {
			glog.Fatalf("Failed to start drop watcher: %v", err)
		}
		logger.Info("watching extraction drops", "dir", dropDir)
	}

	logger.Info("review server ready", "listen", listenAddr)

	// Create HTTP server with graceful shutdown
	httpServer := &http.Server{
		Addr:    listenAddr,
		Handler: router,
	}

	// Start HTTP server in goroutine
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			glog.Fatalf("HTTP server error: %v", err)
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()

	logger.Info("shutting down...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}
	if watcher != nil {
		watcher.Stop()
	}

	logger.Info("review server stopped")
}
