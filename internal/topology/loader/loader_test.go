package loader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metroroute/internal/common/logger"
	"github.com/metroroute/internal/topology/parser"
	"github.com/metroroute/pkg/metro"
	"github.com/metroroute/pkg/topology/models"
)

const topology = `{
  "stations": [
    {"name": "X", "lat": 41.0, "lon": 29.0},
    {"name": "Y", "line": "L2"},
    {"name": "Z"},
    {"name": "W"}
  ],
  "connections": [
    {"source": "X", "target": "Y", "time": 5},
    {"source": "Y", "target": "Z", "time": 3},
    {"source": "X", "target": "Z", "time": 10},
    {"source": "X", "target": "Nowhere", "time": 1},
    {"target": "X", "time": 1}
  ]
}`

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	topo := writeFile(t, dir, "metro.json", topology)
	linesPath := writeFile(t, dir, "lines.json", `{"L1": ["x", " Z "]}`)
	colorsPath := writeFile(t, dir, "colors.json", `[{"Code": "L1", "Color": "Red"}]`)

	l := New(Config{LinesFile: linesPath, ColorsFile: colorsPath}, logger.Nop())
	snap, report, err := l.Load(context.Background(), FileSource{
		Parser:  parser.New(logger.Nop()),
		Path:    topo,
		Version: "v7",
	})
	require.NoError(t, err)

	assert.Equal(t, "v7", snap.Version)
	assert.Equal(t, topo, snap.Source)
	assert.Equal(t, 4, report.Stations)
	assert.Equal(t, 3, report.Connections)
	assert.Equal(t, 2, report.DroppedConnections, "unknown endpoint and missing source")
	assert.Equal(t, []string{"W"}, report.Unresolved)
	assert.Equal(t, []string{"W"}, snap.Unresolved)
	assert.Equal(t, "red", snap.LineColor("L1", "skyblue"))
	assert.Equal(t, "skyblue", snap.LineColor("L2", "skyblue"))

	route, err := metro.MinimumTime(snap.Network, "X", "Z")
	require.NoError(t, err)
	assert.Equal(t, 8, route.Minutes)

	x, _ := snap.Network.Station("X")
	assert.Equal(t, "L1", x.Line)
}

func TestLoad_BrokenColorsAreIgnored(t *testing.T) {
	dir := t.TempDir()
	topo := writeFile(t, dir, "metro.json", topology)
	colorsPath := writeFile(t, dir, "colors.json", `{not json`)

	snap, _, err := New(Config{ColorsFile: colorsPath}, logger.Nop()).Load(context.Background(), FileSource{
		Parser: parser.New(logger.Nop()),
		Path:   topo,
	})
	require.NoError(t, err)
	assert.Empty(t, snap.Colors)
	assert.NotEmpty(t, snap.Version)
}

func TestLoad_MissingLineTableFails(t *testing.T) {
	dir := t.TempDir()
	topo := writeFile(t, dir, "metro.json", topology)

	_, _, err := New(Config{LinesFile: filepath.Join(dir, "absent.json")}, logger.Nop()).
		Load(context.Background(), FileSource{Parser: parser.New(logger.Nop()), Path: topo})
	assert.Error(t, err)
}

type staticSource struct {
	stations    []models.StationRecord
	connections []models.ConnectionRecord
	err         error
}

func (s staticSource) Stream(_ context.Context, cb parser.ParseCallbacks) error {
	if s.err != nil {
		return s.err
	}
	for i := range s.stations {
		if err := cb.OnStation(&s.stations[i]); err != nil {
			return err
		}
	}
	for i := range s.connections {
		if err := cb.OnConnection(&s.connections[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s staticSource) Describe() (string, string) { return "static", "1" }

func TestLoad_NegativeTimeIsDropped(t *testing.T) {
	src := staticSource{
		stations: []models.StationRecord{{ID: "a", Name: "A"}, {ID: "b", Name: "B"}},
		connections: []models.ConnectionRecord{
			{From: "A", To: "B", Minutes: -4},
			{From: "A", To: "B", Minutes: 4},
		},
	}

	snap, report, err := New(Config{}, logger.Nop()).Load(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, 1, report.DroppedConnections)
	assert.Equal(t, []metro.Neighbor{{Name: "B", Minutes: 4}}, snap.Network.Neighbors("A"))
}

func TestLoad_StreamError(t *testing.T) {
	boom := errors.New("boom")
	_, _, err := New(Config{}, logger.Nop()).Load(context.Background(), staticSource{err: boom})
	assert.ErrorIs(t, err, boom)
}
