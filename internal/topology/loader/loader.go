package loader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/metroroute/internal/common/discord"
	"github.com/metroroute/internal/common/logger"
	"github.com/metroroute/internal/topology/lines"
	"github.com/metroroute/internal/topology/parser"
	"github.com/metroroute/internal/topology/snapshot"
	"github.com/metroroute/pkg/metro"
	"github.com/metroroute/pkg/topology/models"
)

// RecordSource streams topology records into parser callbacks.
type RecordSource interface {
	Stream(ctx context.Context, callbacks parser.ParseCallbacks) error
	Describe() (name, version string)
}

// FileSource reads a JSON topology or GTFS zip from disk.
type FileSource struct {
	Parser  *parser.Parser
	Path    string
	Version string // defaults to the file's modification time
}

func (s FileSource) Stream(ctx context.Context, callbacks parser.ParseCallbacks) error {
	return s.Parser.ParseFile(ctx, s.Path, callbacks)
}

func (s FileSource) Describe() (string, string) {
	if s.Version != "" {
		return s.Path, s.Version
	}
	if info, err := os.Stat(s.Path); err == nil {
		return s.Path, info.ModTime().UTC().Format("20060102T150405Z")
	}
	return s.Path, "unknown"
}

// Config points at the optional presentation tables.
type Config struct {
	LinesFile  string
	ColorsFile string
}

// Report summarises one load.
type Report struct {
	Source             string
	Version            string
	Stations           int
	Connections        int
	DroppedStations    int
	DroppedConnections int
	Unresolved         []string
	Duration           time.Duration
}

// Summary converts the report for the alert channel.
func (r *Report) Summary() discord.LoadSummary {
	return discord.LoadSummary{
		Source:             r.Source,
		Version:            r.Version,
		Stations:           r.Stations,
		Connections:        r.Connections,
		DroppedStations:    r.DroppedStations,
		DroppedConnections: r.DroppedConnections,
		Unresolved:         r.Unresolved,
	}
}

type Loader struct {
	config Config
	logger logger.Logger
}

func New(config Config, logger logger.Logger) *Loader {
	return &Loader{config: config, logger: logger}
}

// countingReporter forwards network notices to the logger and counts them.
type countingReporter struct {
	logger  logger.Logger
	dropped int
}

func (r *countingReporter) Warn(msg string, fields ...interface{}) {
	r.dropped++
	r.logger.Warn(msg, fields...)
}

// Load builds a fresh network from src, resolves missing line labels and
// reads line colours. The returned snapshot is ready to publish.
func (l *Loader) Load(ctx context.Context, src RecordSource) (*snapshot.Snapshot, *Report, error) {
	start := time.Now()
	name, version := src.Describe()
	log := l.logger.With("source", name, "version", version)

	reporter := &countingReporter{logger: log}
	network := metro.NewNetwork(metro.WithReporter(reporter))
	report := &Report{Source: name, Version: version}

	callbacks := parser.ParseCallbacks{
		OnStation: func(s *models.StationRecord) error {
			network.AddStation(s.ID, s.Name, s.Line, s.Coordinate())
			return nil
		},
		OnConnection: func(c *models.ConnectionRecord) error {
			if err := network.AddConnection(c.From, c.To, c.Minutes); err != nil {
				if errors.Is(err, metro.ErrNegativeTravelTime) {
					report.DroppedConnections++
					log.Warn("Dropping connection with negative time",
						"from", c.From, "to", c.To, "minutes", c.Minutes)
					return nil
				}
				return err
			}
			return nil
		},
		OnFileComplete: func(_ string, stats parser.Stats) error {
			report.DroppedStations += stats.SkippedStations
			report.DroppedConnections += stats.SkippedConnections
			return nil
		},
	}

	if err := src.Stream(ctx, callbacks); err != nil {
		return nil, nil, fmt.Errorf("streaming topology: %w", err)
	}
	report.DroppedConnections += reporter.dropped

	if l.config.LinesFile != "" {
		table, err := lines.LoadMembershipFile(l.config.LinesFile)
		if err != nil {
			return nil, nil, fmt.Errorf("loading line table: %w", err)
		}
		report.Unresolved = metro.ResolveLines(network, table)
	} else {
		report.Unresolved = metro.ResolveLines(network, nil)
	}

	colors := map[string]string{}
	if l.config.ColorsFile != "" {
		c, err := lines.LoadColorsFile(l.config.ColorsFile)
		if err != nil {
			// colours are cosmetic; a broken table must not block routing
			log.Warn("Failed to load line colors", "path", l.config.ColorsFile, "error", err)
		} else {
			colors = c
		}
	}

	report.Stations = network.Len()
	report.Connections = network.ConnectionCount()
	report.Duration = time.Since(start)

	if len(report.Unresolved) > 0 {
		log.Warn("Stations without line after resolution",
			"count", len(report.Unresolved),
			"stations", report.Unresolved)
	}
	log.Info("Network built",
		"stations", report.Stations,
		"connections", report.Connections,
		"dropped_stations", report.DroppedStations,
		"dropped_connections", report.DroppedConnections,
		"duration", report.Duration)

	snap := &snapshot.Snapshot{
		Network:    network,
		Version:    version,
		Source:     name,
		LoadedAt:   time.Now(),
		Colors:     colors,
		Unresolved: report.Unresolved,
	}
	return snap, report, nil
}
