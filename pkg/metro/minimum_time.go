package metro

import (
	"container/heap"
	"math"
)

// InfiniteTime is the Minutes value of a Route that could not be found.
const InfiniteTime = math.MaxInt

// Route is a minimum-time answer.
type Route struct {
	Stations []string `json:"stations"`
	Minutes  int      `json:"minutes"`
}

// Found reports whether the route holds a path.
func (r Route) Found() bool {
	return len(r.Stations) > 0 && r.Minutes != InfiniteTime
}

// Stops is the number of connections travelled.
func (r Route) Stops() int {
	if len(r.Stations) == 0 {
		return 0
	}
	return len(r.Stations) - 1
}

type frontierItem struct {
	minutes  int
	name     string
	seq      int
	hop      *hop
	stations []string // built on first comparison that needs it
}

func (it *frontierItem) path(n *Network) []string {
	if it.stations == nil {
		it.stations = it.hop.path(n)
	}
	return it.stations
}

// frontier orders by accumulated minutes, then station name, then the
// station names along the path compared element by element (a proper prefix
// sorts first), then push order.
type frontier struct {
	net   *Network
	items []*frontierItem
}

func (f *frontier) Len() int { return len(f.items) }

func (f *frontier) Less(i, j int) bool {
	a, b := f.items[i], f.items[j]
	if a.minutes != b.minutes {
		return a.minutes < b.minutes
	}
	if a.name != b.name {
		return a.name < b.name
	}
	if c := comparePaths(a.path(f.net), b.path(f.net)); c != 0 {
		return c < 0
	}
	return a.seq < b.seq
}

func (f *frontier) Swap(i, j int) { f.items[i], f.items[j] = f.items[j], f.items[i] }

func (f *frontier) Push(x interface{}) {
	f.items = append(f.items, x.(*frontierItem))
}

func (f *frontier) Pop() interface{} {
	old := f.items
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	f.items = old[:n-1]
	return item
}

func comparePaths(a, b []string) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return len(a) - len(b)
}

// MinimumTime returns the path from start to target with the smallest total
// travel time. On failure the returned Route has Minutes set to InfiniteTime.
func MinimumTime(n *Network, start, target string) (Route, error) {
	from, err := n.index(start)
	if err != nil {
		return Route{Minutes: InfiniteTime}, err
	}
	to, err := n.index(target)
	if err != nil {
		return Route{Minutes: InfiniteTime}, err
	}

	finalized := make([]bool, len(n.nodes))
	seq := 0
	pq := &frontier{
		net:   n,
		items: []*frontierItem{{minutes: 0, name: n.nodes[from].Name, seq: seq, hop: &hop{station: from}}},
	}

	for pq.Len() > 0 {
		item := heap.Pop(pq).(*frontierItem)
		cur := item.hop.station

		if cur == to {
			return Route{Stations: item.path(n), Minutes: item.minutes}, nil
		}

		// stale entry
		if finalized[cur] {
			continue
		}
		finalized[cur] = true

		for _, e := range n.nodes[cur].edges {
			if finalized[e.to] {
				continue
			}
			seq++
			heap.Push(pq, &frontierItem{
				minutes: item.minutes + e.minutes,
				name:    n.nodes[e.to].Name,
				seq:     seq,
				hop:     &hop{station: e.to, prev: item.hop},
			})
		}
	}

	return Route{Minutes: InfiniteTime}, ErrNoRoute
}
