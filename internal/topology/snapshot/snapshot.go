package snapshot

import (
	"sync/atomic"
	"time"

	"github.com/metroroute/pkg/metro"
)

// Snapshot is an immutable, fully built network plus its presentation data.
// Nothing may mutate Network after the snapshot is stored in a Holder.
type Snapshot struct {
	Network    *metro.Network
	Version    string
	Source     string
	LoadedAt   time.Time
	Colors     map[string]string
	Unresolved []string
}

// LineColor returns the colour for line, or fallback when none is known.
func (s *Snapshot) LineColor(line, fallback string) string {
	if c, ok := s.Colors[line]; ok {
		return c
	}
	return fallback
}

// Holder publishes snapshots to concurrent readers. Store is the
// happens-before boundary between the goroutine that built a network and the
// goroutines that query it.
type Holder struct {
	current atomic.Pointer[Snapshot]
	reloads atomic.Int64
}

func NewHolder() *Holder {
	return &Holder{}
}

// Load returns the current snapshot or nil before the first Store.
func (h *Holder) Load() *Snapshot {
	return h.current.Load()
}

// Store publishes s, replacing the previous snapshot.
func (h *Holder) Store(s *Snapshot) {
	h.current.Store(s)
	h.reloads.Add(1)
}

// Reloads counts how many snapshots have been published.
func (h *Holder) Reloads() int64 {
	return h.reloads.Load()
}
