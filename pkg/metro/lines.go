package metro

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"
)

// LineMembership lists the stations served by one line, in line order.
type LineMembership struct {
	Line     string
	Stations []string
}

var folder = cases.Fold()

func normalizeName(name string) string {
	return folder.String(strings.TrimSpace(name))
}

// ResolveLines backfills the line of every station that had none when the
// pass started. Names match after trimming and case folding; when a station
// appears under several lines the later table entry wins. It returns the
// sorted names of stations still without a line.
func ResolveLines(n *Network, table []LineMembership) []string {
	pending := make(map[string]int)
	for i := range n.nodes {
		if n.nodes[i].Line != "" {
			continue
		}
		key := normalizeName(n.nodes[i].Name)
		if _, dup := pending[key]; !dup {
			pending[key] = i
		}
	}

	for _, m := range table {
		for _, name := range m.Stations {
			if idx, ok := pending[normalizeName(name)]; ok {
				n.nodes[idx].Line = m.Line
			}
		}
	}

	var unresolved []string
	for i := range n.nodes {
		if n.nodes[i].Line == "" {
			unresolved = append(unresolved, n.nodes[i].Name)
		}
	}
	sort.Strings(unresolved)
	return unresolved
}
