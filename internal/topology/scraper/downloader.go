package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/metroroute/internal/common/logger"
	"github.com/metroroute/internal/topology/parser"
)

// ErrUnrecognizedContent is returned when a download is neither a JSON
// topology nor a zip archive, typically an HTML error page served with 200.
var ErrUnrecognizedContent = errors.New("downloaded content is not a topology document")

const sniffLen = 512

var extensions = map[parser.Format]string{
	parser.FormatJSON: ".json",
	parser.FormatGTFS: ".zip",
}

type HTTPDownloader struct {
	client *http.Client
	logger logger.Logger
}

func NewHTTPDownloader(logger logger.Logger) *HTTPDownloader {
	return &HTTPDownloader{
		client: &http.Client{Timeout: 5 * time.Minute},
		logger: logger,
	}
}

// Download saves url into destDir as baseName plus the extension of the
// format the body turns out to be. Nothing is left in destDir when the
// transfer fails or the body is not a topology.
func (d *HTTPDownloader) Download(ctx context.Context, url, destDir, baseName string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("creating destination directory: %w", err)
	}
	tmp, err := os.CreateTemp(destDir, baseName+"_*.part")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	head := &headBuffer{limit: sniffLen}
	progress := &progressLogger{logger: d.logger, url: url, total: resp.ContentLength, last: time.Now()}
	written, err := io.Copy(io.MultiWriter(tmp, head, progress), resp.Body)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return "", fmt.Errorf("saving body: %w", err)
	}

	format, ok := parser.SniffFormat(head.buf)
	if !ok {
		d.logger.Warn("Rejecting download",
			"url", url,
			"content_type", resp.Header.Get("Content-Type"),
			"size_bytes", written)
		return "", fmt.Errorf("%s: %w", url, ErrUnrecognizedContent)
	}

	dest := filepath.Join(destDir, baseName+extensions[format])
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return "", fmt.Errorf("moving file to destination: %w", err)
	}

	d.logger.Info("Download completed",
		"url", url,
		"dest", dest,
		"format", format,
		"size_bytes", written)
	return dest, nil
}

// headBuffer keeps the first limit bytes written to it.
type headBuffer struct {
	buf   []byte
	limit int
}

func (h *headBuffer) Write(p []byte) (int, error) {
	if room := h.limit - len(h.buf); room > 0 {
		if len(p) < room {
			room = len(p)
		}
		h.buf = append(h.buf, p[:room]...)
	}
	return len(p), nil
}

// progressLogger reports transfer progress at most every five seconds.
type progressLogger struct {
	logger  logger.Logger
	url     string
	total   int64
	written int64
	last    time.Time
}

func (p *progressLogger) Write(b []byte) (int, error) {
	p.written += int64(len(b))
	if p.total > 0 && time.Since(p.last) > 5*time.Second {
		p.logger.Debug("Download progress",
			"url", p.url,
			"progress_percent", fmt.Sprintf("%.1f", float64(p.written)/float64(p.total)*100),
			"bytes_downloaded", p.written)
		p.last = time.Now()
	}
	return len(b), nil
}
