/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the verification ledger engine. Handles
  configuration, dependency wiring, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load settings (.env + environment), apply flag overrides
  2. Open the SQLite lookup index (optional)
  3. Open the JSONL ledger store, rebuild the index from the file
  4. Wrap the store with the lookup cache
  5. Start the tamper watcher and integrity scheduler
  6. Serve HTTP with graceful shutdown

COMMAND-LINE FLAGS:
  -port      HTTP server port (overrides VERITRAIL_PORT)
  -data      Data directory (overrides VERITRAIL_DATA_DIR layout)
  -no-index  Disable the SQLite lookup index

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the integrity scheduler and tamper watcher
  4. Close the index database

EXAMPLES:
  # Run with the default ./data layout
  ./server

  # Run against a dedicated volume
  ./server -data=/var/lib/veritrail

  # Run without the lookup index (pure scan fallback)
  ./server -no-index

SEE ALSO:
  - config/config.go: Settings and environment variables
  - api/server.go: Router configuration
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/veritrail/ledger-engine/api"
	"github.com/veritrail/ledger-engine/config"
	"github.com/veritrail/ledger-engine/document"
	"github.com/veritrail/ledger-engine/graph"
	sqliteindex "github.com/veritrail/ledger-engine/index/sqlite"
	"github.com/veritrail/ledger-engine/ledger"
	"github.com/veritrail/ledger-engine/metrics"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Flags override environment settings.
	port := flag.Int("port", 0, "HTTP server port")
	dataDir := flag.String("data", "", "data directory for ledger, index, and uploads")
	noIndex := flag.Bool("no-index", false, "disable the SQLite lookup index")
	flag.Parse()

	settings, err := config.Load()
	if err != nil {
		return err
	}
	if *port != 0 {
		settings.Port = *port
	}
	if *dataDir != "" {
		settings.DataDir = *dataDir
		settings.LedgerPath = filepath.Join(*dataDir, "ledger.jsonl")
		settings.IndexPath = filepath.Join(*dataDir, "ledger-index.db")
		settings.UploadDir = filepath.Join(*dataDir, "uploads")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: settings.LogLevel}))
	slog.SetDefault(logger)

	m := metrics.New(prometheus.DefaultRegisterer)

	// Ledger store, with the optional lookup index in front of point lookups.
	storeOpts := []ledger.Option{ledger.WithLogger(logger), ledger.WithMetrics(m)}
	var index *sqliteindex.Index
	if !*noIndex && settings.IndexPath != "" {
		index, err = sqliteindex.New(settings.IndexPath)
		if err != nil {
			return fmt.Errorf("open lookup index: %w", err)
		}
		defer index.Close()
		storeOpts = append(storeOpts, ledger.WithIndex(index))
	}

	store, err := ledger.NewFileStore(settings.LedgerPath, storeOpts...)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	if index != nil {
		// The ledger file is the source of truth; the index is derived
		// state and safe to rebuild on every start.
		if err := store.RebuildIndex(context.Background()); err != nil {
			return fmt.Errorf("rebuild lookup index: %w", err)
		}
	}

	cached, err := ledger.NewCachedStore(store,
		ledger.WithCacheSize(settings.CacheSize),
		ledger.WithNegativeTTL(settings.NegativeTTL),
		ledger.WithCacheMetrics(m),
	)
	if err != nil {
		return fmt.Errorf("create lookup cache: %w", err)
	}

	// Tamper watcher is advisory. The hash chain is the proof.
	watcher, err := ledger.NewWatcher(store,
		ledger.WithWatcherLogger(logger),
		ledger.WithWatcherMetrics(m),
	)
	if err != nil {
		return fmt.Errorf("create tamper watcher: %w", err)
	}
	watcher.Start()
	defer watcher.Stop()

	scheduler := api.NewIntegrityScheduler(store, settings.IntegrityInterval, logger)
	scheduler.Start()
	defer scheduler.Stop()

	// Upload boundary. Extraction and scoring are pluggable; the
	// stand-ins record every document as unscored until a real pipeline
	// is attached.
	storage, err := document.NewStorage(settings.UploadDir, logger)
	if err != nil {
		return fmt.Errorf("open document storage: %w", err)
	}
	allowed := make(map[string]bool, len(settings.AllowedExtensions))
	for _, ext := range settings.AllowedExtensions {
		allowed[ext] = true
	}
	files := document.NewService(storage,
		document.WithLogger(logger),
		document.WithLimits(document.Limits{
			MaxUploadSize:     settings.MaxUploadSize,
			AllowedExtensions: allowed,
		}),
	)

	handler := &api.Handler{
		Store:     cached,
		Files:     files,
		Storage:   storage,
		Extractor: document.NoopExtractor{},
		Scorer:    document.FixedScorer{Result: ledger.ValidationResult{RiskLevel: "UNSCORED"}},
		Graph:     graph.NewBuilder(cached, graph.WithLogger(logger)),
		Scheduler: scheduler,
		Settings:  settings,
		Logger:    logger,
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", settings.Port),
		Handler:      api.NewRouter(handler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			"port", settings.Port,
			"environment", settings.Environment,
			"ledger", settings.LedgerPath)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
