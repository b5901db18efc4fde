package idgen

import "sync/atomic"

// Generation returns values 1,2,3... and never wraps.
// Zero is never generated, so it can be used to mean "no generation".
type Generation struct {
	latest atomic.Uint64
}

// Start a new generation, which makes every previous generation stale
func (g *Generation) Next() uint64 {
	return g.latest.Add(1)
}

// Returns the most recently issued generation, or zero if Next has never been called
func (g *Generation) Current() uint64 {
	return g.latest.Load()
}

// Returns true if gen is the most recently issued generation
func (g *Generation) IsCurrent(gen uint64) bool {
	return gen != 0 && g.latest.Load() == gen
}
