// Package shade models the shadows cast by garden obstacles and integrates
// them over a day to produce per-point sun-hour figures.
package shade

import (
	"errors"
	"fmt"
	"time"

	"github.com/sunfield/sunfield/internal/geo"
)

// ErrInvalidObstacle reports an obstacle with impossible dimensions or an
// unknown kind.
var ErrInvalidObstacle = errors.New("invalid obstacle")

// Kind identifies what casts the shadow. Deciduous trees lose their leaves
// outside the growing season and transmit more light; evergreens and
// buildings are opaque year-round.
type Kind string

const (
	KindDeciduousTree Kind = "deciduous-tree"
	KindEvergreenTree Kind = "evergreen-tree"
	KindBuilding      Kind = "building"
)

// Valid reports whether k is a known obstacle kind.
func (k Kind) Valid() bool {
	switch k {
	case KindDeciduousTree, KindEvergreenTree, KindBuilding:
		return true
	}
	return false
}

// Obstacle is a shadow-casting object. The engine only reads obstacles;
// ownership stays with the caller.
type Obstacle struct {
	ID           string          `json:"id"`
	Name         string          `json:"name,omitempty"`
	Position     geo.Coordinates `json:"position"`
	HeightM      float64         `json:"height_m"`
	CanopyWidthM float64         `json:"canopy_width_m"`
	Kind         Kind            `json:"kind"`
}

// Validate checks the obstacle's dimensions, kind, and position.
func (o Obstacle) Validate() error {
	if err := o.Position.Validate(); err != nil {
		return err
	}
	if o.HeightM <= 0 {
		return fmt.Errorf("%w: height %.2f m must be positive", ErrInvalidObstacle, o.HeightM)
	}
	if o.CanopyWidthM < 0 {
		return fmt.Errorf("%w: canopy width %.2f m must be non-negative", ErrInvalidObstacle, o.CanopyWidthM)
	}
	if !o.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidObstacle, o.Kind)
	}
	return nil
}

// ValidateAll validates every obstacle in a set.
func ValidateAll(obstacles []Obstacle) error {
	for i := range obstacles {
		if err := obstacles[i].Validate(); err != nil {
			return fmt.Errorf("obstacle %d: %w", i, err)
		}
	}
	return nil
}

// bareCanopyFactor scales a deciduous obstacle's effective canopy width
// outside the leaf-on season, approximating bare-branch light transmission.
// A single fixed discount, not a seasonal curve.
const bareCanopyFactor = 0.5

// leafOn reports whether a deciduous tree at the given latitude carries
// leaves on the given date. The growing season is approximated as
// April-October in the northern hemisphere and October-April in the
// southern; tropical latitudes get the hemisphere of their sign.
func leafOn(lat float64, date time.Time) bool {
	m := date.UTC().Month()
	northSeason := m >= time.April && m <= time.October
	if lat >= 0 {
		return northSeason
	}
	return !northSeason
}

// effectiveCanopyM returns the obstacle's shading width for the given date.
func (o Obstacle) effectiveCanopyM(date time.Time) float64 {
	if o.Kind == KindDeciduousTree && !leafOn(o.Position.Lat, date) {
		return o.CanopyWidthM * bareCanopyFactor
	}
	return o.CanopyWidthM
}
