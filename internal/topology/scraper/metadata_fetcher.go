package scraper

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/metroroute/internal/common/logger"
	"github.com/metroroute/internal/topology/parser"
	"github.com/metroroute/pkg/topology/models"
)

const httpTimeout = 30 * time.Second

// HTTPMetadataFetcher learns a source's version from its response headers.
type HTTPMetadataFetcher struct {
	client *http.Client
	logger logger.Logger
	now    func() time.Time
}

func NewHTTPMetadataFetcher(logger logger.Logger) *HTTPMetadataFetcher {
	return &HTTPMetadataFetcher{
		client: &http.Client{
			Timeout: httpTimeout,
		},
		logger: logger,
		now:    time.Now,
	}
}

// FetchMetadata issues a HEAD request, falling back to GET for servers that
// refuse HEAD. A source without Last-Modified or ETag is stamped with the
// current time, so every check treats it as new.
func (f *HTTPMetadataFetcher) FetchMetadata(ctx context.Context, url string) (*models.SourceMetadata, error) {
	resp, err := f.request(ctx, http.MethodHead, url)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusMethodNotAllowed || resp.StatusCode == http.StatusNotImplemented {
		resp, err = f.request(ctx, http.MethodGet, url)
		if err != nil {
			return nil, err
		}
	}

	if resp.StatusCode != http.StatusOK {
		f.logger.Error("Source returned error status",
			"status_code", resp.StatusCode,
			"url", url)
		return nil, fmt.Errorf("source returned status %d", resp.StatusCode)
	}

	meta := &models.SourceMetadata{
		URL:    url,
		ETag:   strings.Trim(resp.Header.Get("ETag"), `"`),
		Format: string(formatOf(url, resp.Header.Get("Content-Type"))),
	}

	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		t, err := http.ParseTime(lm)
		if err != nil {
			f.logger.Warn("Ignoring unparsable Last-Modified", "value", lm, "error", err)
		} else {
			meta.LastModified = t
		}
	}
	if meta.LastModified.IsZero() && meta.ETag == "" {
		meta.LastModified = f.now()
	}

	f.logger.Info("Metadata fetched successfully",
		"url", url,
		"last_modified", meta.LastModified,
		"etag", meta.ETag,
		"format", meta.Format)

	return meta, nil
}

func (f *HTTPMetadataFetcher) request(ctx context.Context, method, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	f.logger.Debug("Fetching metadata", "url", url, "method", method)

	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Error("Failed to execute request", "url", url, "error", err)
		return nil, fmt.Errorf("executing request to %s: %w", url, err)
	}
	// only headers are needed
	resp.Body.Close()
	return resp, nil
}

func formatOf(url, contentType string) parser.Format {
	if strings.HasSuffix(strings.ToLower(path.Ext(strings.SplitN(url, "?", 2)[0])), "zip") ||
		strings.Contains(contentType, "zip") {
		return parser.FormatGTFS
	}
	return parser.FormatJSON
}
