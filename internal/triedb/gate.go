package triedb

import (
	"errors"
	"sort"
	"sync"
)

// ErrUnauthorized indicates the caller is not allowed to write.
var ErrUnauthorized = errors.New("caller is not authorized to write")

// WriteGate decides which callers may mutate the trie. Reads and proofs
// are always open; only inserts pass through the gate.
type WriteGate interface {
	// Allow returns ErrUnauthorized if the caller may not write.
	Allow(caller string) error
}

// AllowAll is a WriteGate that admits every caller.
type AllowAll struct{}

// Allow always succeeds.
func (AllowAll) Allow(string) error {
	return nil
}

// StaticList is a WriteGate restricting writes to a fixed set of callers.
type StaticList struct {
	mu      sync.RWMutex
	callers map[string]struct{}
}

// NewStaticList creates a gate admitting exactly the given callers.
func NewStaticList(callers ...string) *StaticList {
	set := make(map[string]struct{}, len(callers))
	for _, c := range callers {
		set[c] = struct{}{}
	}
	return &StaticList{callers: set}
}

// Allow admits only listed callers.
func (g *StaticList) Allow(caller string) error {
	g.mu.RLock()
	_, ok := g.callers[caller]
	g.mu.RUnlock()

	if !ok {
		return ErrUnauthorized
	}
	return nil
}

// Add grants write access to a caller.
func (g *StaticList) Add(caller string) {
	g.mu.Lock()
	g.callers[caller] = struct{}{}
	g.mu.Unlock()
}

// Remove revokes write access from a caller.
func (g *StaticList) Remove(caller string) {
	g.mu.Lock()
	delete(g.callers, caller)
	g.mu.Unlock()
}

// Callers returns the admitted callers in sorted order.
func (g *StaticList) Callers() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	callers := make([]string, 0, len(g.callers))
	for c := range g.callers {
		callers = append(callers, c)
	}
	sort.Strings(callers)
	return callers
}
