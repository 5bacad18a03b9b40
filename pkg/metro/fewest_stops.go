package metro

// hop is a queue entry; prev chains back to the start so paths are not copied per step.
type hop struct {
	station int
	prev    *hop
}

func (h *hop) path(n *Network) []string {
	var rev []string
	for cur := h; cur != nil; cur = cur.prev {
		rev = append(rev, n.nodes[cur.station].Name)
	}
	for i, j := 0, len(rev)-1; i < j; i, j = i+1, j-1 {
		rev[i], rev[j] = rev[j], rev[i]
	}
	return rev
}

// FewestStops returns the station names from start to target, both
// inclusive, along a path with the fewest connections. Among equally short
// paths the first one discovered under neighbor insertion order wins.
func FewestStops(n *Network, start, target string) ([]string, error) {
	from, err := n.index(start)
	if err != nil {
		return nil, err
	}
	to, err := n.index(target)
	if err != nil {
		return nil, err
	}

	visited := make([]bool, len(n.nodes))
	visited[from] = true
	queue := []*hop{{station: from}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		if cur.station == to {
			return cur.path(n), nil
		}

		for _, e := range n.nodes[cur.station].edges {
			if visited[e.to] {
				continue
			}
			visited[e.to] = true
			queue = append(queue, &hop{station: e.to, prev: cur})
		}
	}

	return nil, ErrNoRoute
}
