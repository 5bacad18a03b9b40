package scraper

import (
	"context"

	"github.com/metroroute/internal/common/discord"
	"github.com/metroroute/pkg/topology/models"
)

type MetadataFetcher interface {
	FetchMetadata(ctx context.Context, url string) (*models.SourceMetadata, error)
}

// Downloader saves a remote topology into destDir and returns the path it
// wrote, named baseName plus an extension matching the content.
type Downloader interface {
	Download(ctx context.Context, url, destDir, baseName string) (string, error)
}

// VersionTracker remembers which source version is live.
type VersionTracker interface {
	HasNewerVersion(ctx context.Context, meta *models.SourceMetadata) (bool, error)
	// Record makes the downloaded file at path the live version.
	Record(ctx context.Context, path, versionName string, meta *models.SourceMetadata) error
}

// LoadNotifier is told about every published network.
type LoadNotifier interface {
	SendLoadReport(ctx context.Context, summary discord.LoadSummary) error
}
