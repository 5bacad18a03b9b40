package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/metroroute/internal/common/db"
	"github.com/metroroute/internal/topology/parser"
	"github.com/metroroute/pkg/topology/models"
)

// Reader replays a stored topology version through parser callbacks.
type Reader struct {
	db *db.DB
}

func NewReader(database *db.DB) *Reader {
	return &Reader{db: database}
}

// Load streams the stations and then the connections of versionID in their
// original order.
func (r *Reader) Load(ctx context.Context, versionID int, callbacks parser.ParseCallbacks) error {
	var stats parser.Stats

	rows, err := r.db.DB().QueryContext(ctx, `
		SELECT station_id, name, line, lat, lon
		FROM metro.stations
		WHERE version_id = $1
		ORDER BY position
	`, versionID)
	if err != nil {
		return fmt.Errorf("querying stations: %w", err)
	}

	for rows.Next() {
		var (
			rec      models.StationRecord
			lat, lon sql.NullFloat64
		)
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.Line, &lat, &lon); err != nil {
			rows.Close()
			return fmt.Errorf("scanning station: %w", err)
		}
		rec.Lat = floatPtr(lat)
		rec.Lon = floatPtr(lon)

		stats.Stations++
		if callbacks.OnStation != nil {
			if err := callbacks.OnStation(&rec); err != nil {
				rows.Close()
				return err
			}
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("iterating stations: %w", err)
	}
	rows.Close()

	rows, err = r.db.DB().QueryContext(ctx, `
		SELECT from_station, to_station, minutes
		FROM metro.connections
		WHERE version_id = $1
		ORDER BY position
	`, versionID)
	if err != nil {
		return fmt.Errorf("querying connections: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rec models.ConnectionRecord
		if err := rows.Scan(&rec.From, &rec.To, &rec.Minutes); err != nil {
			return fmt.Errorf("scanning connection: %w", err)
		}

		stats.Connections++
		if callbacks.OnConnection != nil {
			if err := callbacks.OnConnection(&rec); err != nil {
				return err
			}
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating connections: %w", err)
	}

	r.db.Logger().Debug("Topology read from database",
		"version_id", versionID,
		"stations", stats.Stations,
		"connections", stats.Connections)

	if callbacks.OnFileComplete != nil {
		return callbacks.OnFileComplete("version "+strconv.Itoa(versionID), stats)
	}
	return nil
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

// Source adapts a stored version to the loader.
type Source struct {
	Reader  *Reader
	Version models.VersionInfo
}

func (s Source) Stream(ctx context.Context, callbacks parser.ParseCallbacks) error {
	return s.Reader.Load(ctx, s.Version.VersionID, callbacks)
}

func (s Source) Describe() (string, string) {
	name := s.Version.SourceURL
	if name == "" {
		name = "database"
	}
	return name, s.Version.VersionName
}
