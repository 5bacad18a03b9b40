package scraper

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/metroroute/internal/common/logger"
	"github.com/metroroute/internal/topology/loader"
	"github.com/metroroute/internal/topology/parser"
	"github.com/metroroute/internal/topology/snapshot"
	"github.com/metroroute/pkg/topology/models"
)

type Config struct {
	URL           string
	CheckInterval time.Duration
	DownloadDir   string
}

// Scheduler polls a remote topology and publishes a rebuilt network whenever
// the source changes. A failed refresh keeps the current snapshot.
type Scheduler struct {
	config          Config
	metadataFetcher MetadataFetcher
	downloader      Downloader
	tracker         VersionTracker
	loader          *loader.Loader
	parser          *parser.Parser
	holder          *snapshot.Holder
	notifier        LoadNotifier
	logger          logger.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool
}

type Option func(*Scheduler)

func WithMetadataFetcher(f MetadataFetcher) Option {
	return func(s *Scheduler) { s.metadataFetcher = f }
}

func WithDownloader(d Downloader) Option {
	return func(s *Scheduler) { s.downloader = d }
}

func WithNotifier(n LoadNotifier) Option {
	return func(s *Scheduler) { s.notifier = n }
}

func NewScheduler(
	config Config,
	tracker VersionTracker,
	ld *loader.Loader,
	holder *snapshot.Holder,
	logger logger.Logger,
	opts ...Option,
) *Scheduler {
	s := &Scheduler{
		config:          config,
		metadataFetcher: NewHTTPMetadataFetcher(logger),
		downloader:      NewHTTPDownloader(logger),
		tracker:         tracker,
		loader:          ld,
		parser:          parser.New(logger),
		holder:          holder,
		logger:          logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start runs an initial check and then one per interval until ctx is done
// or Stop is called. It blocks.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	s.logger.Info("Starting topology scheduler",
		"url", s.config.URL,
		"check_interval", s.config.CheckInterval)

	if err := s.CheckAndUpdate(ctx); err != nil {
		s.logger.Error("Initial check failed", "error", err)
	}

	ticker := time.NewTicker(s.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler stopped")
			return nil
		case <-ticker.C:
			if err := s.CheckAndUpdate(ctx); err != nil {
				s.logger.Error("Scheduled check failed", "error", err)
			}
		}
	}
}

func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return fmt.Errorf("scheduler not running")
	}

	if s.cancel != nil {
		s.cancel()
	}

	s.running = false
	return nil
}

// CheckAndUpdate performs one poll, publishing a new snapshot when the
// source changed.
func (s *Scheduler) CheckAndUpdate(ctx context.Context) error {
	s.logger.Debug("Checking for topology updates", "url", s.config.URL)

	meta, err := s.metadataFetcher.FetchMetadata(ctx, s.config.URL)
	if err != nil {
		return fmt.Errorf("fetching metadata: %w", err)
	}

	hasNewer, err := s.tracker.HasNewerVersion(ctx, meta)
	if err != nil {
		return fmt.Errorf("checking version: %w", err)
	}

	if !hasNewer {
		s.logger.Debug("No new version available")
		return nil
	}

	s.logger.Info("New version detected, starting refresh",
		"last_modified", meta.LastModified,
		"etag", meta.ETag)

	versionName := versionNameFor(meta)
	baseName := "topology_" + time.Now().UTC().Format("20060102_150405")

	downloadPath, err := s.downloader.Download(ctx, meta.URL, s.config.DownloadDir, baseName)
	if err != nil {
		return fmt.Errorf("downloading file: %w", err)
	}
	defer os.Remove(downloadPath)

	if got := parser.DetectFormat(downloadPath, nil); meta.Format != "" && string(got) != meta.Format {
		s.logger.Warn("Source content differs from advertised format",
			"advertised", meta.Format,
			"actual", got)
	}

	// build first so a broken file never becomes the recorded version
	snap, report, err := s.loader.Load(ctx, loader.FileSource{
		Parser:  s.parser,
		Path:    downloadPath,
		Version: versionName,
	})
	if err != nil {
		return fmt.Errorf("building network: %w", err)
	}
	if report.Stations == 0 {
		return fmt.Errorf("building network: source %s has no stations", meta.URL)
	}
	snap.Source = meta.URL

	if err := s.tracker.Record(ctx, downloadPath, versionName, meta); err != nil {
		return fmt.Errorf("recording version: %w", err)
	}

	s.holder.Store(snap)

	s.logger.Info("Published new network",
		"version", versionName,
		"stations", report.Stations,
		"connections", report.Connections)

	if s.notifier != nil {
		report.Source = meta.URL
		if err := s.notifier.SendLoadReport(ctx, report.Summary()); err != nil {
			s.logger.Warn("Failed to send load report", "error", err)
		}
	}

	return nil
}

func versionNameFor(meta *models.SourceMetadata) string {
	name := meta.LastModified.UTC().Format("2006-01-02_15:04:05")
	if meta.ETag != "" {
		name += "_" + meta.ETag
	}
	return name
}
