/*
main.go - Application entry point

STARTUP SEQUENCE:
  1. Parse flags, load configuration (YAML + CARINS_* env overrides)
  2. Open the SQLite store, seed if empty
  3. Start the policy expiry scanner
  4. Serve HTTP with graceful shutdown on SIGINT/SIGTERM

FLAGS (flags win over the config file):
  -config  Path to YAML config (optional; defaults work standalone)
  -port    HTTP server port
  -db      SQLite database path, ":memory:" for in-memory
  -seed    Seed development data into an empty database
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Calin1302/ProjectCarInsurance/api"
	"github.com/Calin1302/ProjectCarInsurance/config"
	"github.com/Calin1302/ProjectCarInsurance/insurance"
	"github.com/Calin1302/ProjectCarInsurance/logger"
	"github.com/Calin1302/ProjectCarInsurance/metrics"
	"github.com/Calin1302/ProjectCarInsurance/store/sqlite"
)

func main() {
	configPath := flag.String("config", "", "path to YAML configuration file")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	seed := flag.Bool("seed", true, "seed development data into an empty database")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "seed" {
			cfg.Database.Seed = *seed
		}
	})

	log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		log.Fatal("failed to initialize database", zap.Error(err))
	}
	defer store.Close()

	if cfg.Database.Seed {
		if err := store.Seed(context.Background(), time.Now()); err != nil {
			log.Fatal("failed to seed database", zap.Error(err))
		}
	}

	registry := metrics.NewRegistry()

	var scanner *insurance.ExpiryScanner
	if cfg.Scanner.Enabled {
		scanner = insurance.NewExpiryScanner(store, store, store, log)
		scanner.Interval = time.Duration(cfg.Scanner.IntervalSeconds) * time.Second
		scanner.WindowHours = cfg.Scanner.WindowHours
		scanner.Metrics = metrics.NewScannerMetrics(registry)
		scanner.Start()
		defer scanner.Stop()
	}

	handler := api.NewHandler(store)
	router := api.NewRouter(handler, registry)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSeconds) * time.Second,
	}

	go func() {
		log.Info("server starting",
			zap.Int("port", cfg.Server.Port),
			zap.String("db", cfg.Database.Path))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}
