package scraper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/metroroute/internal/common/db"
	"github.com/metroroute/internal/common/logger"
	"github.com/metroroute/internal/common/maintenance"
	"github.com/metroroute/internal/topology/importer"
	"github.com/metroroute/pkg/topology/models"
)

// MemoryTracker keeps the live version in process memory. A restart forgets
// it, so the first check after start always refreshes.
type MemoryTracker struct {
	mu     sync.Mutex
	active *models.VersionInfo
}

func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{}
}

func (t *MemoryTracker) HasNewerVersion(_ context.Context, meta *models.SourceMetadata) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return db.IsNewer(t.active, meta), nil
}

func (t *MemoryTracker) Record(_ context.Context, _ string, versionName string, meta *models.SourceMetadata) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active = &models.VersionInfo{
		VersionName: versionName,
		CreatedAt:   time.Now(),
		UpdatedAt:   meta.LastModified,
		IsActive:    true,
		SourceURL:   meta.URL,
		ETag:        meta.ETag,
	}
	return nil
}

// DBTracker stores every version in PostgreSQL and prunes old ones.
type DBTracker struct {
	database    *db.DB
	checker     *db.VersionChecker
	maintenance *maintenance.Maintenance
	keep        int
	logger      logger.Logger
}

func NewDBTracker(database *db.DB, keepInactiveVersions int, logger logger.Logger) *DBTracker {
	return &DBTracker{
		database:    database,
		checker:     db.NewVersionChecker(database),
		maintenance: maintenance.New(database, logger),
		keep:        keepInactiveVersions,
		logger:      logger,
	}
}

func (t *DBTracker) HasNewerVersion(ctx context.Context, meta *models.SourceMetadata) (bool, error) {
	return t.checker.HasNewerVersion(ctx, meta)
}

// Record creates a version, imports path into it and activates it. A failed
// import leaves the version inactive for the next cleanup to remove.
func (t *DBTracker) Record(ctx context.Context, path, versionName string, meta *models.SourceMetadata) error {
	versionID, err := t.checker.CreateNewVersion(ctx, versionName, meta)
	if err != nil {
		return fmt.Errorf("creating version: %w", err)
	}

	if _, err := importer.NewImporter(t.database, versionID).Import(ctx, path); err != nil {
		t.logger.Error("Import failed, version will remain inactive",
			"version_id", versionID,
			"error", err)
		return fmt.Errorf("importing topology: %w", err)
	}

	if err := t.checker.ActivateVersion(ctx, versionID); err != nil {
		return fmt.Errorf("activating version: %w", err)
	}

	if _, err := t.maintenance.CleanupOldVersions(ctx, t.keep); err != nil {
		t.logger.Warn("Version cleanup failed", "error", err)
	}
	return nil
}
