package metro

import (
	"errors"
	"sort"
)

// ErrNegativeTravelTime is returned when a connection would carry a negative weight.
var ErrNegativeTravelTime = errors.New("travel time must not be negative")

// Reporter receives notices about records the network chose to ignore.
// logger.Logger satisfies it.
type Reporter interface {
	Warn(msg string, fields ...interface{})
}

type nopReporter struct{}

func (nopReporter) Warn(string, ...interface{}) {}

// Coordinate is a WGS84 position.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Station is the public view of a network node.
type Station struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Line string `json:"line"`
}

// Neighbor is one entry of a station's adjacency list.
type Neighbor struct {
	Name    string `json:"name"`
	Minutes int    `json:"minutes"`
}

type edge struct {
	to      int
	minutes int
}

type node struct {
	Station
	edges []edge
}

// Network is a set of stations addressed by name. Adjacency is stored as
// handles into the station table.
//
// A Network is not safe for concurrent mutation. Once built it may be read by
// any number of goroutines, provided it was handed over through a
// synchronising publish (see snapshot.Holder).
type Network struct {
	nodes    []node
	byName   map[string]int
	coords   map[string]Coordinate
	reporter Reporter
}

// Option configures a Network.
type Option func(*Network)

// WithReporter routes notices about dropped input to r.
func WithReporter(r Reporter) Option {
	return func(n *Network) {
		if r != nil {
			n.reporter = r
		}
	}
}

// NewNetwork returns an empty network.
func NewNetwork(opts ...Option) *Network {
	n := &Network{
		byName:   make(map[string]int),
		coords:   make(map[string]Coordinate),
		reporter: nopReporter{},
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// AddStation registers a station. Re-adding a known name leaves its id and
// line untouched. The coordinate is kept only when both components are
// non-zero and no coordinate was stored before. It reports whether the
// station was new.
func (n *Network) AddStation(id, name, line string, coord *Coordinate) bool {
	_, exists := n.byName[name]
	if !exists {
		n.byName[name] = len(n.nodes)
		n.nodes = append(n.nodes, node{Station: Station{ID: id, Name: name, Line: line}})
	}

	if coord != nil && coord.Lat != 0 && coord.Lon != 0 {
		if _, ok := n.coords[name]; !ok {
			n.coords[name] = *coord
		}
	}

	return !exists
}

// AddConnection links two stations in both directions. A connection naming
// an unknown station is dropped without error.
func (n *Network) AddConnection(from, to string, minutes int) error {
	if minutes < 0 {
		return ErrNegativeTravelTime
	}

	a, okA := n.byName[from]
	b, okB := n.byName[to]
	if !okA || !okB {
		n.reporter.Warn("Dropping connection with unknown station",
			"from", from,
			"to", to,
			"from_known", okA,
			"to_known", okB)
		return nil
	}

	n.nodes[a].edges = append(n.nodes[a].edges, edge{to: b, minutes: minutes})
	n.nodes[b].edges = append(n.nodes[b].edges, edge{to: a, minutes: minutes})
	return nil
}

// Len returns the number of stations.
func (n *Network) Len() int {
	return len(n.nodes)
}

// ConnectionCount returns the number of undirected connections, parallel ones included.
func (n *Network) ConnectionCount() int {
	total := 0
	for i := range n.nodes {
		total += len(n.nodes[i].edges)
	}
	return total / 2
}

// Has reports whether a station with this name exists.
func (n *Network) Has(name string) bool {
	_, ok := n.byName[name]
	return ok
}

// Station looks up a station by name.
func (n *Network) Station(name string) (Station, bool) {
	idx, ok := n.byName[name]
	if !ok {
		return Station{}, false
	}
	return n.nodes[idx].Station, true
}

// Neighbors returns a copy of the adjacency list of name in insertion order.
func (n *Network) Neighbors(name string) []Neighbor {
	idx, ok := n.byName[name]
	if !ok {
		return nil
	}
	out := make([]Neighbor, 0, len(n.nodes[idx].edges))
	for _, e := range n.nodes[idx].edges {
		out = append(out, Neighbor{Name: n.nodes[e.to].Name, Minutes: e.minutes})
	}
	return out
}

// Coordinate returns the stored position of a station, if any.
func (n *Network) Coordinate(name string) (Coordinate, bool) {
	c, ok := n.coords[name]
	return c, ok
}

// Names lists every station name in ascending order.
func (n *Network) Names() []string {
	names := make([]string, 0, len(n.nodes))
	for i := range n.nodes {
		names = append(names, n.nodes[i].Name)
	}
	sort.Strings(names)
	return names
}

// Stations lists every station ordered by name.
func (n *Network) Stations() []Station {
	out := make([]Station, 0, len(n.nodes))
	for i := range n.nodes {
		out = append(out, n.nodes[i].Station)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Lines lists the distinct non-empty line labels in ascending order.
func (n *Network) Lines() []string {
	seen := make(map[string]struct{})
	for i := range n.nodes {
		if l := n.nodes[i].Line; l != "" {
			seen[l] = struct{}{}
		}
	}
	lines := make([]string, 0, len(seen))
	for l := range seen {
		lines = append(lines, l)
	}
	sort.Strings(lines)
	return lines
}

// StationsOnLine lists the names of stations carrying line, ascending.
func (n *Network) StationsOnLine(line string) []string {
	var names []string
	for i := range n.nodes {
		if n.nodes[i].Line == line {
			names = append(names, n.nodes[i].Name)
		}
	}
	sort.Strings(names)
	return names
}

func (n *Network) index(name string) (int, error) {
	idx, ok := n.byName[name]
	if !ok {
		return 0, &StationNotFoundError{Name: name}
	}
	return idx, nil
}
