// Package zone defines planting zones and their light classification.
package zone

import (
	"github.com/google/uuid"

	"github.com/sunfield/sunfield/internal/geo"
)

// LightCategory buckets average effective sun hours into the conventional
// horticultural classes.
type LightCategory string

const (
	FullSun   LightCategory = "full-sun"
	PartSun   LightCategory = "part-sun"
	PartShade LightCategory = "part-shade"
	FullShade LightCategory = "full-shade"
)

// Classify maps average sun hours to a light category. Thresholds are
// half-open: >=6 full-sun, [4,6) part-sun, [2,4) part-shade, <2 full-shade.
func Classify(avgSunHours float64) LightCategory {
	switch {
	case avgSunHours >= 6:
		return FullSun
	case avgSunHours >= 4:
		return PartSun
	case avgSunHours >= 2:
		return PartShade
	default:
		return FullShade
	}
}

// Zone is a rectangular planting area. A zone does not own obstacles; it is
// evaluated against whatever obstacle set the caller supplies.
type Zone struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Bounds      geo.Bounds    `json:"bounds"`
	AvgSunHours float64       `json:"avg_sun_hours"`
	Category    LightCategory `json:"category"`
}

// New creates a zone with a fresh ID and unclassified light.
func New(name string, bounds geo.Bounds) (Zone, error) {
	if err := bounds.Validate(); err != nil {
		return Zone{}, err
	}
	return Zone{
		ID:       uuid.NewString(),
		Name:     name,
		Bounds:   bounds,
		Category: FullShade,
	}, nil
}

// SetLight records an analysis result on the zone and reclassifies it.
func (z *Zone) SetLight(avgSunHours float64) {
	z.AvgSunHours = avgSunHours
	z.Category = Classify(avgSunHours)
}

// AreaM2 returns the zone's approximate ground area in square meters.
func (z Zone) AreaM2() float64 {
	return geo.Area(z.Bounds)
}
