package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/metroroute/pkg/topology/models"
)

type VersionChecker struct {
	db *DB
}

func NewVersionChecker(db *DB) *VersionChecker {
	return &VersionChecker{db: db}
}

func (vc *VersionChecker) GetActiveVersion(ctx context.Context) (*models.VersionInfo, error) {
	query := `
		SELECT version_id, version_name, created_at, updated_at, is_active, source_url, etag, description
		FROM metro.versions
		WHERE is_active = true
		LIMIT 1
	`

	var version models.VersionInfo
	err := vc.db.conn.QueryRowContext(ctx, query).Scan(
		&version.VersionID,
		&version.VersionName,
		&version.CreatedAt,
		&version.UpdatedAt,
		&version.IsActive,
		&version.SourceURL,
		&version.ETag,
		&version.Description,
	)

	if errors.Is(err, sql.ErrNoRows) {
		vc.db.logger.Info("No active version found in database")
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("querying active version: %w", err)
	}

	vc.db.logger.Debug("Found active version",
		"version_id", version.VersionID,
		"version_name", version.VersionName,
		"updated_at", version.UpdatedAt)

	return &version, nil
}

// HasNewerVersion compares the remote metadata with the active version. A
// differing ETag wins over timestamps when both sides carry one.
func (vc *VersionChecker) HasNewerVersion(ctx context.Context, meta *models.SourceMetadata) (bool, error) {
	activeVersion, err := vc.GetActiveVersion(ctx)
	if err != nil {
		return false, fmt.Errorf("getting active version: %w", err)
	}

	if activeVersion == nil {
		vc.db.logger.Info("No active version found, new import needed")
		return true, nil
	}

	isNewer := IsNewer(activeVersion, meta)

	vc.db.logger.Info("Version comparison",
		"source_modified", meta.LastModified,
		"source_etag", meta.ETag,
		"active_version_updated", activeVersion.UpdatedAt,
		"active_version_etag", activeVersion.ETag,
		"is_newer", isNewer)

	return isNewer, nil
}

// IsNewer reports whether meta describes different data than active.
func IsNewer(active *models.VersionInfo, meta *models.SourceMetadata) bool {
	if active == nil {
		return true
	}
	if meta.ETag != "" && active.ETag != "" {
		return meta.ETag != active.ETag
	}
	return meta.LastModified.After(active.UpdatedAt)
}

// CreateNewVersion inserts an inactive version row for meta.
func (vc *VersionChecker) CreateNewVersion(ctx context.Context, versionName string, meta *models.SourceMetadata) (int, error) {
	var versionID int
	query := `
		INSERT INTO metro.versions (version_name, source_url, etag, updated_at, is_active, description)
		VALUES ($1, $2, $3, $4, false, $5)
		RETURNING version_id
	`

	description := fmt.Sprintf("Topology imported from %s at %s", meta.URL, meta.LastModified.Format(time.RFC3339))
	err := vc.db.conn.QueryRowContext(ctx, query, versionName, meta.URL, meta.ETag, meta.LastModified, description).Scan(&versionID)
	if err != nil {
		return 0, fmt.Errorf("creating version: %w", err)
	}

	vc.db.logger.Info("Created new version",
		"version_id", versionID,
		"version_name", versionName)

	return versionID, nil
}

func (vc *VersionChecker) ActivateVersion(ctx context.Context, versionID int) error {
	tx, err := vc.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, "UPDATE metro.versions SET is_active = false WHERE is_active = true")
	if err != nil {
		return fmt.Errorf("deactivating versions: %w", err)
	}

	result, err := tx.ExecContext(ctx, "UPDATE metro.versions SET is_active = true WHERE version_id = $1", versionID)
	if err != nil {
		return fmt.Errorf("activating version: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("version %d not found", versionID)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	vc.db.logger.Info("Activated version", "version_id", versionID)
	return nil
}
