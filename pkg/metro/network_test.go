package metro

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingReporter struct {
	messages []string
}

func (r *recordingReporter) Warn(msg string, _ ...interface{}) {
	r.messages = append(r.messages, msg)
}

func TestAddStation_DuplicateKeepsFirstRecord(t *testing.T) {
	n := NewNetwork()

	assert.True(t, n.AddStation("1", "Taksim", "M2", nil))
	assert.False(t, n.AddStation("99", "Taksim", "M9", nil))

	s, ok := n.Station("Taksim")
	require.True(t, ok)
	assert.Equal(t, Station{ID: "1", Name: "Taksim", Line: "M2"}, s)
	assert.Equal(t, 1, n.Len())
}

func TestAddStation_CoordinateRules(t *testing.T) {
	n := NewNetwork()

	n.AddStation("a", "A", "", nil)
	_, ok := n.Coordinate("A")
	assert.False(t, ok, "no coordinate supplied")

	n.AddStation("a", "A", "", &Coordinate{Lat: 41.0, Lon: 0})
	_, ok = n.Coordinate("A")
	assert.False(t, ok, "zero longitude is treated as missing")

	n.AddStation("a", "A", "", &Coordinate{Lat: 41.0, Lon: 29.0})
	c, ok := n.Coordinate("A")
	require.True(t, ok, "first coordinate attaches to an existing station")
	assert.Equal(t, Coordinate{Lat: 41.0, Lon: 29.0}, c)

	n.AddStation("a", "A", "", &Coordinate{Lat: 1, Lon: 2})
	c, _ = n.Coordinate("A")
	assert.Equal(t, Coordinate{Lat: 41.0, Lon: 29.0}, c, "coordinates are never overwritten")
}

func TestAddStation_IdempotentWithoutNewCoordinate(t *testing.T) {
	n := NewNetwork()
	n.AddStation("x", "X", "L1", &Coordinate{Lat: 1, Lon: 1})
	n.AddStation("y", "Y", "L1", nil)
	require.NoError(t, n.AddConnection("X", "Y", 4))

	before := snapshotOf(n)
	n.AddStation("x", "X", "L1", nil)
	assert.Equal(t, before, snapshotOf(n))
}

func TestAddConnection_Symmetric(t *testing.T) {
	n := NewNetwork()
	n.AddStation("A", "A", "", nil)
	n.AddStation("B", "B", "", nil)

	require.NoError(t, n.AddConnection("A", "B", 7))

	assert.Equal(t, []Neighbor{{Name: "B", Minutes: 7}}, n.Neighbors("A"))
	assert.Equal(t, []Neighbor{{Name: "A", Minutes: 7}}, n.Neighbors("B"))
	assert.Equal(t, 1, n.ConnectionCount())
}

func TestAddConnection_UnknownEndpointIsDropped(t *testing.T) {
	rep := &recordingReporter{}
	n := NewNetwork(WithReporter(rep))
	n.AddStation("A", "A", "", nil)

	before := snapshotOf(n)
	assert.NoError(t, n.AddConnection("A", "Ghost", 3))
	assert.NoError(t, n.AddConnection("Ghost", "A", 3))
	assert.Equal(t, before, snapshotOf(n))
	assert.Len(t, rep.messages, 2)
}

func TestAddConnection_RejectsNegativeTime(t *testing.T) {
	n := NewNetwork()
	n.AddStation("A", "A", "", nil)
	n.AddStation("B", "B", "", nil)

	err := n.AddConnection("A", "B", -1)
	assert.ErrorIs(t, err, ErrNegativeTravelTime)
	assert.Empty(t, n.Neighbors("A"))
}

func TestAddConnection_ParallelEdgesKept(t *testing.T) {
	n := NewNetwork()
	n.AddStation("A", "A", "", nil)
	n.AddStation("B", "B", "", nil)
	require.NoError(t, n.AddConnection("A", "B", 5))
	require.NoError(t, n.AddConnection("A", "B", 5))

	assert.Len(t, n.Neighbors("A"), 2)
	assert.Equal(t, 2, n.ConnectionCount())
}

func TestListings(t *testing.T) {
	n := NewNetwork()
	n.AddStation("3", "Levent", "M2", nil)
	n.AddStation("1", "Aksaray", "M1", nil)
	n.AddStation("2", "Kadıköy", "M4", nil)
	n.AddStation("4", "Yenikapı", "", nil)

	assert.Equal(t, []string{"Aksaray", "Kadıköy", "Levent", "Yenikapı"}, n.Names())
	assert.Equal(t, []string{"M1", "M2", "M4"}, n.Lines())
	assert.Equal(t, []string{"Levent"}, n.StationsOnLine("M2"))
	assert.Equal(t, "Aksaray", n.Stations()[0].Name)
	assert.Nil(t, n.Neighbors("missing"))

	// line labels change only through the resolution pass
	assert.Empty(t, ResolveLines(n, []LineMembership{{Line: "M1", Stations: []string{"yenikapı", "missing"}}}))
	assert.Equal(t, []string{"Aksaray", "Yenikapı"}, n.StationsOnLine("M1"))
}

type networkState struct {
	stations  []Station
	neighbors map[string][]Neighbor
	coords    map[string]Coordinate
}

func snapshotOf(n *Network) networkState {
	s := networkState{
		stations:  n.Stations(),
		neighbors: make(map[string][]Neighbor),
		coords:    make(map[string]Coordinate),
	}
	for _, name := range n.Names() {
		s.neighbors[name] = n.Neighbors(name)
		if c, ok := n.Coordinate(name); ok {
			s.coords[name] = c
		}
	}
	return s
}
