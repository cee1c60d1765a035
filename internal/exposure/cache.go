package exposure

import (
	"time"
)

// fingerprint identifies a grid request. Two requests with equal
// fingerprints produce identical grids, so the previous result can be
// served as-is. Comparable by value.
type fingerprint struct {
	north, south, east, west float64
	date                     string
	resolution               int
	step                     time.Duration
	obstacleHash             uint64
}

// cachedGrid pairs a computed grid with the fingerprint that produced it.
// Published atomically; the grid itself is immutable once stored.
type cachedGrid struct {
	key  fingerprint
	grid *Grid
}

func fingerprintOf(req Request) fingerprint {
	return fingerprint{
		north:        req.Bounds.North,
		south:        req.Bounds.South,
		east:         req.Bounds.East,
		west:         req.Bounds.West,
		date:         req.Date.UTC().Format(time.DateOnly),
		resolution:   req.Resolution,
		step:         req.Step,
		obstacleHash: ObstacleSetHash(req.Obstacles),
	}
}

// lookup returns the cached grid if it matches the key, else nil.
func (e *Engine) lookup(key fingerprint) *Grid {
	c := e.cached.Load()
	if c == nil || c.key != key {
		return nil
	}
	return c.grid
}

// Invalidate drops the cached grid. Callers use it when obstacle state
// changes outside a grid request.
func (e *Engine) Invalidate() {
	e.cached.Store(nil)
}
