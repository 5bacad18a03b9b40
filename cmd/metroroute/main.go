package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/metroroute/internal/api"
	"github.com/metroroute/internal/common/config"
	"github.com/metroroute/internal/common/db"
	"github.com/metroroute/internal/common/discord"
	"github.com/metroroute/internal/common/logger"
	"github.com/metroroute/internal/topology/loader"
	"github.com/metroroute/internal/topology/parser"
	"github.com/metroroute/internal/topology/scraper"
	"github.com/metroroute/internal/topology/snapshot"
	"github.com/metroroute/internal/topology/store"
	"github.com/metroroute/pkg/topology/models"
)

func main() {
	// .env is optional; real deployments set the environment directly
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load configuration:", err)
		os.Exit(1)
	}

	alerts := discord.NewClient(cfg.Logging.DiscordURL)

	logCfg := logger.DefaultConfig()
	logCfg.Level = logger.ParseLogLevel(cfg.Logging.Level)
	logCfg.FilePath = cfg.Logging.FilePath
	logCfg.File = cfg.Logging.FilePath != ""
	if alerts.Enabled() {
		logCfg.Hooks = append(logCfg.Hooks, logger.AlertHook{
			Sender:   alerts,
			MinLevel: zerolog.ErrorLevel,
			Service:  "metroroute",
		})
	}
	log := logger.NewFromConfig(logCfg)

	if envErr != nil && !errors.Is(envErr, os.ErrNotExist) {
		log.Warn("Failed to read .env file", "error", envErr)
	}

	log.Info("Metro route service starting",
		"log_level", cfg.Logging.Level,
		"topology_file", cfg.Topology.File,
		"topology_url", cfg.Topology.URL,
		"database", cfg.Database.Enabled,
		"addr", cfg.HTTP.Addr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var database *db.DB
	if cfg.Database.Enabled {
		database, err = db.New(ctx, cfg.Database.ConnectionString(), log)
		if err != nil {
			log.Fatal("Failed to connect to database", "error", err)
		}
		defer database.Close()

		if err := database.EnsureSchema(ctx); err != nil {
			log.Fatal("Failed to prepare database schema", "error", err)
		}
	}

	ld := loader.New(loader.Config{
		LinesFile:  cfg.Topology.LinesFile,
		ColorsFile: cfg.Topology.ColorsFile,
	}, log)
	holder := snapshot.NewHolder()

	var tracker scraper.VersionTracker = scraper.NewMemoryTracker()
	if database != nil {
		tracker = scraper.NewDBTracker(database, cfg.Topology.KeepInactiveVersions, log)
	}

	if err := loadInitial(ctx, cfg, database, tracker, ld, holder, alerts, log); err != nil {
		if cfg.Topology.URL == "" {
			log.Fatal("Failed to load initial network", "error", err)
		}
		log.Warn("No initial network, waiting for the scheduler", "error", err)
	}

	var wg sync.WaitGroup

	if cfg.Topology.URL != "" {
		sched := scraper.NewScheduler(scraper.Config{
			URL:           cfg.Topology.URL,
			CheckInterval: cfg.Topology.CheckInterval,
			DownloadDir:   cfg.Topology.DownloadDir,
		}, tracker, ld, holder, log, scraper.WithNotifier(alerts))

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := sched.Start(ctx); err != nil {
				log.Error("Topology scheduler error", "error", err)
			}
		}()
	}

	server := api.NewServer(holder, api.Options{
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		CacheTTL:       cfg.HTTP.CacheTTL,
	}, log)
	srv := server.NewHTTPServer(cfg.HTTP.Addr)

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", "addr", cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		log.Info("Shutdown signal received")
	case err := <-serverErrors:
		log.Error("HTTP server error", "error", err)
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown failed", "error", err)
	}

	wg.Wait()

	log.Info("Metro route service stopped")
}

// loadInitial publishes the first network: the active database version when
// there is one, otherwise the configured file. A file loaded while the
// database is enabled is recorded as a version so later restarts find it.
func loadInitial(
	ctx context.Context,
	cfg *config.Config,
	database *db.DB,
	tracker scraper.VersionTracker,
	ld *loader.Loader,
	holder *snapshot.Holder,
	alerts *discord.Client,
	log logger.Logger,
) error {
	var src loader.RecordSource

	if database != nil {
		active, err := db.NewVersionChecker(database).GetActiveVersion(ctx)
		if err != nil {
			return fmt.Errorf("reading active version: %w", err)
		}
		if active != nil {
			src = store.Source{Reader: store.NewReader(database), Version: *active}
		}
	}

	seed := false
	if src == nil {
		if cfg.Topology.File == "" {
			return errors.New("no stored version and no topology file")
		}
		src = loader.FileSource{Parser: parser.New(log), Path: cfg.Topology.File}
		seed = database != nil
	}

	snap, report, err := ld.Load(ctx, src)
	if err != nil {
		return err
	}

	if seed {
		info, err := os.Stat(cfg.Topology.File)
		if err != nil {
			return fmt.Errorf("reading topology file: %w", err)
		}
		meta := &models.SourceMetadata{
			URL:          "file://" + cfg.Topology.File,
			LastModified: info.ModTime(),
			Format:       string(parser.DetectFormat(cfg.Topology.File, nil)),
		}
		if err := tracker.Record(ctx, cfg.Topology.File, snap.Version, meta); err != nil {
			log.Error("Failed to store topology in database", "error", err)
		}
	}

	holder.Store(snap)

	if err := alerts.SendLoadReport(ctx, report.Summary()); err != nil {
		log.Warn("Failed to send load report", "error", err)
	}
	return nil
}
