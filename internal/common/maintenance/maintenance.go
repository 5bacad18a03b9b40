package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/metroroute/internal/common/db"
	"github.com/metroroute/internal/common/logger"
)

// VersionCleanupResult describes one deleted topology version.
type VersionCleanupResult struct {
	VersionID   int    `json:"version_id"`
	VersionName string `json:"version_name"`
}

// Maintenance handles database cleanup and maintenance operations
type Maintenance struct {
	db     *db.DB
	logger logger.Logger
}

func New(database *db.DB, logger logger.Logger) *Maintenance {
	return &Maintenance{
		db:     database,
		logger: logger,
	}
}

var cleanupQuery = `
	DELETE FROM metro.versions
	WHERE version_id IN (
		SELECT version_id
		FROM metro.versions
		WHERE is_active = false
		ORDER BY created_at DESC, version_id DESC
		OFFSET $1
	)
	RETURNING version_id, version_name
`

// CleanupOldVersions removes inactive topology versions, keeping the active
// one and the newest keepInactiveVersions inactive ones. Station and
// connection rows go with their version through ON DELETE CASCADE.
func (m *Maintenance) CleanupOldVersions(ctx context.Context, keepInactiveVersions int) ([]VersionCleanupResult, error) {
	if keepInactiveVersions < 0 {
		keepInactiveVersions = 0
	}
	m.logger.Info("Starting cleanup of old topology versions", "keep_inactive_versions", keepInactiveVersions)

	rows, err := m.db.DB().QueryContext(ctx, cleanupQuery, keepInactiveVersions)
	if err != nil {
		return nil, fmt.Errorf("deleting old versions: %w", err)
	}
	defer rows.Close()

	var results []VersionCleanupResult
	for rows.Next() {
		var result VersionCleanupResult
		if err := rows.Scan(&result.VersionID, &result.VersionName); err != nil {
			return nil, fmt.Errorf("scanning cleanup result: %w", err)
		}
		results = append(results, result)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating cleanup results: %w", err)
	}

	for _, result := range results {
		m.logger.Info("Cleaned up topology version",
			"version_id", result.VersionID,
			"version_name", result.VersionName)
	}

	if len(results) > 0 {
		if err := m.VacuumTables(ctx); err != nil {
			// space is reclaimed by autovacuum eventually
			m.logger.Warn("Failed to vacuum topology tables after cleanup", "error", err)
		}
	}

	return results, nil
}

var vacuumTables = []string{"metro.stations", "metro.connections", "metro.versions"}

// VacuumTables runs VACUUM ANALYZE on the topology tables. It must not run
// inside a transaction.
func (m *Maintenance) VacuumTables(ctx context.Context) error {
	start := time.Now()
	for _, table := range vacuumTables {
		if _, err := m.db.DB().ExecContext(ctx, "VACUUM ANALYZE "+table); err != nil {
			return fmt.Errorf("vacuuming %s: %w", table, err)
		}
	}

	m.logger.Info("VACUUM ANALYZE completed",
		"tables", len(vacuumTables),
		"duration", time.Since(start))
	return nil
}
