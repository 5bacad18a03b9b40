package metro

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func xyzNetwork(t *testing.T) *Network {
	t.Helper()
	n := NewNetwork()
	for _, name := range []string{"X", "Y", "Z", "W"} {
		n.AddStation(name, name, "", nil)
	}
	require.NoError(t, n.AddConnection("X", "Y", 5))
	require.NoError(t, n.AddConnection("Y", "Z", 3))
	require.NoError(t, n.AddConnection("X", "Z", 10))
	return n
}

func TestMinimumTime_PrefersCheaperDetour(t *testing.T) {
	n := xyzNetwork(t)

	route, err := MinimumTime(n, "X", "Z")
	require.NoError(t, err)
	assert.Equal(t, []string{"X", "Y", "Z"}, route.Stations)
	assert.Equal(t, 8, route.Minutes)
	assert.Equal(t, 2, route.Stops())
	assert.True(t, route.Found())
}

func TestFewestStops_IgnoresWeights(t *testing.T) {
	n := xyzNetwork(t)

	path, err := FewestStops(n, "X", "Z")
	require.NoError(t, err)
	assert.Equal(t, []string{"X", "Z"}, path)
}

func TestSearches_DisconnectedStation(t *testing.T) {
	n := xyzNetwork(t)

	path, err := FewestStops(n, "X", "W")
	assert.ErrorIs(t, err, ErrNoRoute)
	assert.Nil(t, path)

	route, err := MinimumTime(n, "X", "W")
	assert.ErrorIs(t, err, ErrNoRoute)
	assert.Equal(t, InfiniteTime, route.Minutes)
	assert.Empty(t, route.Stations)
	assert.False(t, route.Found())
}

func TestSearches_UnknownStation(t *testing.T) {
	n := xyzNetwork(t)

	cases := []struct{ start, target, missing string }{
		{"Nowhere", "Z", "Nowhere"},
		{"X", "Nowhere", "Nowhere"},
	}
	for _, tc := range cases {
		path, err := FewestStops(n, tc.start, tc.target)
		require.ErrorIs(t, err, ErrStationNotFound)
		assert.Nil(t, path)

		var nf *StationNotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, tc.missing, nf.Name)

		route, err := MinimumTime(n, tc.start, tc.target)
		require.ErrorIs(t, err, ErrStationNotFound)
		assert.Nil(t, route.Stations)
		assert.Equal(t, InfiniteTime, route.Minutes)
	}
}

func TestSearches_DuplicateConnectionHasNoEffect(t *testing.T) {
	n := xyzNetwork(t)
	require.NoError(t, n.AddConnection("X", "Y", 5))

	route, err := MinimumTime(n, "X", "Y")
	require.NoError(t, err)
	assert.Equal(t, 5, route.Minutes)

	path, err := FewestStops(n, "X", "Y")
	require.NoError(t, err)
	assert.Len(t, path, 2)
}

func TestSearches_SameStartAndTarget(t *testing.T) {
	n := xyzNetwork(t)

	path, err := FewestStops(n, "W", "W")
	require.NoError(t, err)
	assert.Equal(t, []string{"W"}, path)

	route, err := MinimumTime(n, "X", "X")
	require.NoError(t, err)
	assert.Equal(t, Route{Stations: []string{"X"}, Minutes: 0}, route)
}

func TestMinimumTime_EqualTimesBreakByName(t *testing.T) {
	// S-B-T and S-A-T both cost 4; A is explored first.
	n := NewNetwork()
	for _, name := range []string{"S", "B", "A", "T"} {
		n.AddStation(name, name, "", nil)
	}
	require.NoError(t, n.AddConnection("S", "B", 2))
	require.NoError(t, n.AddConnection("S", "A", 2))
	require.NoError(t, n.AddConnection("B", "T", 2))
	require.NoError(t, n.AddConnection("A", "T", 2))

	route, err := MinimumTime(n, "S", "T")
	require.NoError(t, err)
	assert.Equal(t, []string{"S", "A", "T"}, route.Stations)
}

func TestMinimumTime_SameStationEqualTimeBreaksByPath(t *testing.T) {
	// T is reached at 2 minutes both directly and via A; [S A T] sorts before [S T].
	n := NewNetwork()
	for _, name := range []string{"S", "T", "A"} {
		n.AddStation(name, name, "", nil)
	}
	require.NoError(t, n.AddConnection("S", "T", 2))
	require.NoError(t, n.AddConnection("S", "A", 1))
	require.NoError(t, n.AddConnection("A", "T", 1))

	route, err := MinimumTime(n, "S", "T")
	require.NoError(t, err)
	assert.Equal(t, Route{Stations: []string{"S", "A", "T"}, Minutes: 2}, route)
}

func TestComparePaths(t *testing.T) {
	assert.Negative(t, comparePaths([]string{"S", "A", "T"}, []string{"S", "T"}))
	assert.Positive(t, comparePaths([]string{"S", "T"}, []string{"S", "A", "T"}))
	assert.Negative(t, comparePaths([]string{"S"}, []string{"S", "A"}))
	assert.Zero(t, comparePaths([]string{"S", "T"}, []string{"S", "T"}))
}

func TestFewestStops_TieFollowsInsertionOrder(t *testing.T) {
	n := NewNetwork()
	for _, name := range []string{"S", "B", "A", "T"} {
		n.AddStation(name, name, "", nil)
	}
	require.NoError(t, n.AddConnection("S", "B", 9))
	require.NoError(t, n.AddConnection("S", "A", 1))
	require.NoError(t, n.AddConnection("B", "T", 9))
	require.NoError(t, n.AddConnection("A", "T", 1))

	path, err := FewestStops(n, "S", "T")
	require.NoError(t, err)
	assert.Equal(t, []string{"S", "B", "T"}, path)
}

func TestSearches_DoNotMutateNetwork(t *testing.T) {
	n := xyzNetwork(t)
	before := snapshotOf(n)

	_, _ = FewestStops(n, "X", "Z")
	_, _ = MinimumTime(n, "X", "Z")
	_, _ = MinimumTime(n, "X", "W")

	assert.Equal(t, before, snapshotOf(n))
}

func TestSearches_ConcurrentReaders(t *testing.T) {
	n := randomNetwork(rand.New(rand.NewSource(7)), 40, 80)
	names := n.Names()

	want := make(map[[2]string]int)
	for _, a := range names[:5] {
		for _, b := range names[len(names)-5:] {
			r, _ := MinimumTime(n, a, b)
			want[[2]string{a, b}] = r.Minutes
		}
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for pair, minutes := range want {
				r, _ := MinimumTime(n, pair[0], pair[1])
				assert.Equal(t, minutes, r.Minutes)
				_, _ = FewestStops(n, pair[0], pair[1])
			}
		}()
	}
	wg.Wait()
}

// Exhaustive comparison against simple-path enumeration on small graphs.
func TestSearches_OptimalOnRandomGraphs(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 30; round++ {
		n := randomNetwork(rng, 7, 9)
		names := n.Names()

		for _, start := range names {
			for _, target := range names {
				bestHops, bestTime, reachable := bruteForce(n, start, target)

				path, err := FewestStops(n, start, target)
				route, terr := MinimumTime(n, start, target)

				if !reachable {
					assert.ErrorIs(t, err, ErrNoRoute)
					assert.ErrorIs(t, terr, ErrNoRoute)
					continue
				}

				require.NoError(t, err)
				require.NoError(t, terr)
				assertValidPath(t, n, path, start, target)
				assertValidPath(t, n, route.Stations, start, target)
				assert.Equal(t, bestHops, len(path)-1, "round %d %s->%s", round, start, target)
				assert.Equal(t, bestTime, route.Minutes, "round %d %s->%s", round, start, target)
				assert.Equal(t, route.Minutes, pathCost(n, route.Stations))
			}
		}
	}
}

func randomNetwork(rng *rand.Rand, stations, connections int) *Network {
	n := NewNetwork()
	for i := 0; i < stations; i++ {
		name := fmt.Sprintf("S%02d", i)
		n.AddStation(name, name, "", nil)
	}
	for i := 0; i < connections; i++ {
		a := fmt.Sprintf("S%02d", rng.Intn(stations))
		b := fmt.Sprintf("S%02d", rng.Intn(stations))
		if a == b {
			continue
		}
		_ = n.AddConnection(a, b, rng.Intn(10))
	}
	return n
}

func assertValidPath(t *testing.T, n *Network, path []string, start, target string) {
	t.Helper()
	require.NotEmpty(t, path)
	assert.Equal(t, start, path[0])
	assert.Equal(t, target, path[len(path)-1])
	for i := 1; i < len(path); i++ {
		_, ok := cheapestEdge(n, path[i-1], path[i])
		assert.True(t, ok, "%s and %s are not adjacent", path[i-1], path[i])
	}
}

func cheapestEdge(n *Network, a, b string) (int, bool) {
	best, ok := 0, false
	for _, nb := range n.Neighbors(a) {
		if nb.Name == b && (!ok || nb.Minutes < best) {
			best, ok = nb.Minutes, true
		}
	}
	return best, ok
}

func pathCost(n *Network, path []string) int {
	total := 0
	for i := 1; i < len(path); i++ {
		m, _ := cheapestEdge(n, path[i-1], path[i])
		total += m
	}
	return total
}

func bruteForce(n *Network, start, target string) (hops, minutes int, reachable bool) {
	hops, minutes = -1, -1
	visited := map[string]bool{start: true}

	var walk func(cur string, depth, cost int)
	walk = func(cur string, depth, cost int) {
		if cur == target {
			if hops < 0 || depth < hops {
				hops = depth
			}
			if minutes < 0 || cost < minutes {
				minutes = cost
			}
			return
		}
		for _, nb := range n.Neighbors(cur) {
			if visited[nb.Name] {
				continue
			}
			visited[nb.Name] = true
			walk(nb.Name, depth+1, cost+nb.Minutes)
			visited[nb.Name] = false
		}
	}
	walk(start, 0, 0)

	return hops, minutes, hops >= 0
}
