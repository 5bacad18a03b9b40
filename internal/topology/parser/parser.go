package parser

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/metroroute/internal/common/logger"
	"github.com/metroroute/pkg/topology/models"
)

// Format identifies a topology source encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatGTFS Format = "gtfs"
)

type Parser struct {
	logger logger.Logger
}

func New(logger logger.Logger) *Parser {
	return &Parser{logger: logger}
}

// ParseCallbacks receives records as they are parsed. Stations of a source
// are always delivered before its connections.
type ParseCallbacks struct {
	OnStation      func(station *models.StationRecord) error
	OnConnection   func(connection *models.ConnectionRecord) error
	OnFileComplete func(name string, stats Stats) error
}

// Stats counts what a parse delivered and what it skipped.
type Stats struct {
	Stations           int
	Connections        int
	SkippedStations    int
	SkippedConnections int
}

// DetectFormat guesses the encoding from the file name, falling back to the
// content. Unrecognised content is treated as JSON.
func DetectFormat(path string, head []byte) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zip":
		return FormatGTFS
	case ".json":
		return FormatJSON
	}
	if f, ok := SniffFormat(head); ok {
		return f
	}
	return FormatJSON
}

// SniffFormat recognises a zip archive by its magic number and a JSON
// document by its opening brace, after any byte order mark and whitespace.
func SniffFormat(head []byte) (Format, bool) {
	if bytes.HasPrefix(head, []byte("PK\x03\x04")) {
		return FormatGTFS, true
	}
	head = bytes.TrimLeft(bytes.TrimPrefix(head, []byte{0xEF, 0xBB, 0xBF}), " \t\r\n")
	if len(head) > 0 && head[0] == '{' {
		return FormatJSON, true
	}
	return "", false
}

// ParseFile parses a JSON topology document or a GTFS zip.
func (p *Parser) ParseFile(ctx context.Context, path string, callbacks ParseCallbacks) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening topology file: %w", err)
	}
	defer f.Close()

	head := make([]byte, 4)
	n, _ := io.ReadFull(f, head)
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewinding topology file: %w", err)
	}

	switch DetectFormat(path, head[:n]) {
	case FormatGTFS:
		info, err := f.Stat()
		if err != nil {
			return fmt.Errorf("stat topology file: %w", err)
		}
		p.logger.Info("Parsing GTFS topology", "path", path, "size_bytes", info.Size())
		return p.ParseGTFS(ctx, f, info.Size(), callbacks)
	default:
		p.logger.Info("Parsing JSON topology", "path", path)
		return p.ParseJSON(ctx, f, filepath.Base(path), callbacks)
	}
}

func (p *Parser) complete(callbacks ParseCallbacks, name string, stats Stats) error {
	p.logger.Info("Topology parsed",
		"name", name,
		"stations", stats.Stations,
		"connections", stats.Connections,
		"skipped_stations", stats.SkippedStations,
		"skipped_connections", stats.SkippedConnections)

	if callbacks.OnFileComplete != nil {
		if err := callbacks.OnFileComplete(name, stats); err != nil {
			return fmt.Errorf("file complete callback: %w", err)
		}
	}
	return nil
}

func (p *Parser) emitStation(callbacks ParseCallbacks, s *models.StationRecord, stats *Stats) error {
	stats.Stations++
	if callbacks.OnStation == nil {
		return nil
	}
	return callbacks.OnStation(s)
}

func (p *Parser) emitConnection(callbacks ParseCallbacks, c *models.ConnectionRecord, stats *Stats) error {
	stats.Connections++
	if callbacks.OnConnection == nil {
		return nil
	}
	return callbacks.OnConnection(c)
}

// skipBOM drops a leading UTF-8 byte order mark, common in exported CSVs.
func skipBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if b, err := br.Peek(3); err == nil && bytes.Equal(b, []byte{0xEF, 0xBB, 0xBF}) {
		_, _ = br.Discard(3)
	}
	return br
}
