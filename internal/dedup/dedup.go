// Package dedup admits the first occurrence of each logical exchange.
package dedup

import (
	"crypto/sha256"
	"sync"

	"github.com/janekbaraniewski/ccost/internal/core"
)

type fingerprint [sha256.Size]byte

// Set remembers the dedup keys seen so far in a run. Keys are scoped by
// source kind so the two sources never collide. Safe for concurrent use,
// though the engine feeds it in file order so "first" is reproducible.
type Set struct {
	mu      sync.Mutex
	seen    map[fingerprint]struct{}
	dropped int
}

func New() *Set {
	return &Set{seen: make(map[fingerprint]struct{})}
}

// Admit reports whether the exchange is new. An empty key is always admitted
// and never recorded.
func (s *Set) Admit(kind core.SourceKind, key string) bool {
	if key == "" {
		return true
	}
	fp := fingerprintOf(kind, key)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[fp]; ok {
		s.dropped++
		return false
	}
	s.seen[fp] = struct{}{}
	return true
}

// Filter keeps the admitted events of evs, preserving order.
func (s *Set) Filter(evs []core.UsageEvent) []core.UsageEvent {
	out := make([]core.UsageEvent, 0, len(evs))
	for _, ev := range evs {
		if s.Admit(ev.Source, ev.DedupKey) {
			out = append(out, ev)
		}
	}
	return out
}

func (s *Set) Dropped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

func fingerprintOf(kind core.SourceKind, key string) fingerprint {
	return sha256.Sum256([]byte(string(kind) + "\x00" + key))
}
