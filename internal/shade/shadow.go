package shade

import (
	"math"
	"time"

	"github.com/sunfield/sunfield/internal/geo"
	"github.com/sunfield/sunfield/internal/solar"
)

// maxShadowAltitudeDeg caps tan(altitude) blowup as the sun approaches the
// zenith; above this the shadow is shorter than any canopy radius matters.
const maxShadowAltitudeDeg = 89.9

// Shadowed reports whether point lies inside the shadow the obstacle casts
// for the given sun position on the given date.
//
// With the sun below the horizon the whole area is unlit and Shadowed
// returns true; samplers must exclude such instants from theoretical time
// rather than count them as blocked.
//
// The shadow is a strip starting at the obstacle's base, running opposite
// the sun's azimuth for height/tan(altitude) meters, with the obstacle's
// effective canopy width. Geometry is evaluated in the obstacle's local
// planar frame (east/north meters).
func Shadowed(point geo.Coordinates, o Obstacle, sun solar.Position, date time.Time) bool {
	if sun.AltitudeDeg <= 0 {
		return true
	}

	altRad := math.Min(sun.AltitudeDeg, maxShadowAltitudeDeg) * math.Pi / 180.0
	shadowLenM := o.HeightM / math.Tan(altRad)

	// Shadow bearing: directly away from the sun.
	bearingRad := math.Mod(sun.AzimuthDeg+180.0, 360.0) * math.Pi / 180.0
	dirE := math.Sin(bearingRad)
	dirN := math.Cos(bearingRad)

	eastM, northM := geo.LocalOffset(o.Position, point)

	along := eastM*dirE + northM*dirN
	if along < 0 || along > shadowLenM {
		return false
	}

	cross := math.Abs(eastM*dirN - northM*dirE)
	return cross <= o.effectiveCanopyM(date)/2.0
}

// Eclipsed reports whether any obstacle in the set shadows the point.
// A single blocking obstacle is sufficient.
func Eclipsed(point geo.Coordinates, obstacles []Obstacle, sun solar.Position, date time.Time) bool {
	for i := range obstacles {
		if Shadowed(point, obstacles[i], sun, date) {
			return true
		}
	}
	return false
}
