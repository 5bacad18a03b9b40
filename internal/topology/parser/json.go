package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/metroroute/pkg/topology/models"
)

type jsonDocument struct {
	Stations    []jsonStation    `json:"stations"`
	Connections []jsonConnection `json:"connections"`
}

type jsonStation struct {
	ID   string    `json:"id"`
	Name string    `json:"name"`
	Line string    `json:"line"`
	Lat  jsonFloat `json:"lat"`
	Lon  jsonFloat `json:"lon"`
}

type jsonConnection struct {
	Source string          `json:"source"`
	Target string          `json:"target"`
	Time   json.RawMessage `json:"time"`
}

// jsonFloat accepts a number, a numeric string, or null.
type jsonFloat struct {
	Value *float64
}

func (f *jsonFloat) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		f.Value = nil
		return nil
	}
	s = strings.Trim(s, `"`)
	if strings.TrimSpace(s) == "" {
		f.Value = nil
		return nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return fmt.Errorf("parsing coordinate %q: %w", s, err)
	}
	f.Value = &v
	return nil
}

// parseMinutes accepts integral numbers or numeric strings.
func parseMinutes(raw json.RawMessage) (int, error) {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if s == "" || s == "null" {
		return 0, fmt.Errorf("missing time")
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("time %q is not a whole number of minutes", s)
	}
	return int(f), nil
}

// ParseJSON reads a topology document:
//
//	{"stations": [{"id", "name", "line", "lat", "lon"}],
//	 "connections": [{"source", "target", "time"}]}
func (p *Parser) ParseJSON(ctx context.Context, r io.Reader, name string, callbacks ParseCallbacks) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("reading topology: %w", err)
	}

	var doc jsonDocument
	if err := json.NewDecoder(bytes.NewReader(skipBOMBytes(data))).Decode(&doc); err != nil {
		return fmt.Errorf("decoding topology: %w", err)
	}

	var stats Stats
	for i := range doc.Stations {
		if err := ctx.Err(); err != nil {
			return err
		}

		s := doc.Stations[i]
		if strings.TrimSpace(s.Name) == "" {
			stats.SkippedStations++
			p.logger.Warn("Skipping station without name", "index", i, "id", s.ID)
			continue
		}

		record := &models.StationRecord{
			ID:   s.ID,
			Name: s.Name,
			Line: s.Line,
			Lat:  s.Lat.Value,
			Lon:  s.Lon.Value,
		}
		if record.ID == "" {
			record.ID = record.Name
		}
		if err := p.emitStation(callbacks, record, &stats); err != nil {
			return err
		}
	}

	for i, c := range doc.Connections {
		if err := ctx.Err(); err != nil {
			return err
		}

		if c.Source == "" || c.Target == "" {
			stats.SkippedConnections++
			p.logger.Warn("Skipping connection with missing endpoint",
				"index", i, "source", c.Source, "target", c.Target)
			continue
		}

		minutes, err := parseMinutes(c.Time)
		if err == nil && minutes < 0 {
			err = fmt.Errorf("negative time %d", minutes)
		}
		if err != nil {
			stats.SkippedConnections++
			p.logger.Warn("Skipping connection with invalid time",
				"index", i, "source", c.Source, "target", c.Target, "error", err)
			continue
		}

		record := &models.ConnectionRecord{From: c.Source, To: c.Target, Minutes: minutes}
		if err := p.emitConnection(callbacks, record, &stats); err != nil {
			return err
		}
	}

	return p.complete(callbacks, name, stats)
}

func skipBOMBytes(b []byte) []byte {
	return bytes.TrimPrefix(b, []byte{0xEF, 0xBB, 0xBF})
}
