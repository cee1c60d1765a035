// Package exposure computes sun-hour fields over a sampling grid, the data
// behind the exposure heatmap. Each cell center gets a full daily shade
// integration; cells are independent and computed by a worker pool.
package exposure

import (
	"errors"
	"time"

	"github.com/sunfield/sunfield/internal/geo"
	"github.com/sunfield/sunfield/internal/shade"
	"github.com/sunfield/sunfield/internal/solar"
)

// Resolution limits. A request is rows × cols = resolution² daily
// integrations; the cap keeps a single request's CPU cost bounded.
const (
	MinResolution = 2
	MaxResolution = 128
)

// ErrInvalidResolution reports a grid resolution outside the supported range.
var ErrInvalidResolution = errors.New("invalid resolution")

// Request describes one grid computation. Obstacles are read, never mutated.
type Request struct {
	Bounds     geo.Bounds
	Date       time.Time
	Obstacles  []shade.Obstacle
	Resolution int           // cells per axis
	Step       time.Duration // sampling step passed through to shade.Daily
}

// Validate checks the request before any computation starts.
func (r Request) Validate() error {
	if err := r.Bounds.Validate(); err != nil {
		return err
	}
	if err := solar.ValidateDate(r.Date); err != nil {
		return err
	}
	if err := shade.ValidateAll(r.Obstacles); err != nil {
		return err
	}
	if r.Resolution < MinResolution || r.Resolution > MaxResolution {
		return ErrInvalidResolution
	}
	return nil
}

// Cell is one sampled grid cell: its center point and the effective sun
// hours computed there.
type Cell struct {
	Center   geo.Coordinates `json:"center"`
	Row      int             `json:"row"`
	Col      int             `json:"col"`
	SunHours float64         `json:"sun_hours"`
}

// Grid is the sun-hours field over a bounding box. Cells are row-major,
// row 0 at the southern edge, col 0 at the western edge. Grids are rebuilt
// whole whenever any input changes, never patched incrementally.
type Grid struct {
	Bounds     geo.Bounds `json:"bounds"`
	Date       string     `json:"date"` // YYYY-MM-DD
	Resolution int        `json:"resolution"`
	Cells      []Cell     `json:"cells"`
	MinHours   float64    `json:"min_hours"`
	MaxHours   float64    `json:"max_hours"`
	ComputedAt time.Time  `json:"computed_at"`
}

// cellCenter returns the center coordinates of cell (row, col).
func cellCenter(b geo.Bounds, resolution, row, col int) geo.Coordinates {
	latStep := (b.North - b.South) / float64(resolution)
	lonStep := (b.East - b.West) / float64(resolution)
	return geo.Coordinates{
		Lat: b.South + (float64(row)+0.5)*latStep,
		Lon: b.West + (float64(col)+0.5)*lonStep,
	}
}
