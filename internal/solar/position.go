// Package solar computes the sun's apparent position and daily event times
// for any geographic location and instant.
//
// The low-precision algorithm (Astronomical Almanac approximate solar
// coordinates) is accurate to a fraction of a degree, which is sufficient
// for sun-exposure planning but not for precision astronomy. All math runs
// in UTC; callers convert for display.
package solar

import (
	"math"
	"time"

	"github.com/sunfield/sunfield/internal/geo"
)

const (
	degToRad = math.Pi / 180.0
	radToDeg = 180.0 / math.Pi
)

// Position is the sun's apparent position seen from a point on the ground.
type Position struct {
	AltitudeDeg float64 `json:"altitude_deg"` // signed degrees above the horizon
	AzimuthDeg  float64 `json:"azimuth_deg"`  // degrees clockwise from true north, [0, 360)
}

// Up reports whether the sun is above the geometric horizon.
func (p Position) Up() bool {
	return p.AltitudeDeg > 0
}

// ephemeris holds the solar coordinates for one instant, shared between the
// position and sun-times paths so both agree on the same model.
type ephemeris struct {
	meanLongDeg    float64 // mean longitude of the sun, degrees
	declinationRad float64
	rightAscRad    float64
}

// solarEphemeris evaluates the approximate solar coordinates for a day count
// from J2000.0.
func solarEphemeris(n float64) ephemeris {
	// Mean longitude and mean anomaly of the sun.
	L := normalizeDeg(280.460 + 0.9856474*n)
	g := normalizeDeg(357.528+0.9856003*n) * degToRad

	// Ecliptic longitude (equation of center applied).
	lambda := (L + 1.915*math.Sin(g) + 0.020*math.Sin(2*g)) * degToRad

	// Obliquity of the ecliptic.
	epsilon := (23.439 - 0.0000004*n) * degToRad

	alpha := math.Atan2(math.Cos(epsilon)*math.Sin(lambda), math.Cos(lambda))
	delta := math.Asin(math.Sin(epsilon) * math.Sin(lambda))

	return ephemeris{
		meanLongDeg:    L,
		declinationRad: delta,
		rightAscRad:    alpha,
	}
}

// equationOfTimeMinutes returns the difference between apparent and mean
// solar time in minutes (positive when the sundial runs ahead of the clock).
func (e ephemeris) equationOfTimeMinutes() float64 {
	// 4 minutes per degree of hour angle.
	return 4.0 * wrapDeg180(e.meanLongDeg-e.rightAscRad*radToDeg)
}

// PositionAt returns the sun's altitude and azimuth for the given location
// and instant. Pure and total: defined for any valid coordinates and any
// instant, past or future, with no error path.
func PositionAt(c geo.Coordinates, at time.Time) Position {
	n := daysSinceJ2000(at)
	eph := solarEphemeris(n)

	// Greenwich mean sidereal time, then the local hour angle of the sun.
	gmstDeg := normalizeDeg(280.460 + 360.9856474*n)
	hourAngle := normalizeDeg(gmstDeg+c.Lon)*degToRad - eph.rightAscRad

	latRad := c.Lat * degToRad
	sinLat, cosLat := math.Sincos(latRad)
	sinDec, cosDec := math.Sincos(eph.declinationRad)
	sinH, cosH := math.Sincos(hourAngle)

	sinAlt := sinLat*sinDec + cosLat*cosDec*cosH
	altitude := math.Asin(clamp(sinAlt, -1, 1))

	// Azimuth via atan2 keeps the computation stable near the zenith, where
	// the acos/cos(altitude) form divides by ~0. The atan2 form is measured
	// from south, so rotate to a north-referenced bearing.
	var azimuth float64
	x := cosH*sinLat - (sinDec/cosDec)*cosLat
	if math.Abs(sinH) < 1e-12 && math.Abs(x) < 1e-12 {
		// Sun exactly at the zenith (or nadir): bearing is undefined,
		// report north.
		azimuth = 0
	} else {
		azimuth = normalizeDeg(math.Atan2(sinH, x)*radToDeg + 180.0)
	}

	return Position{
		AltitudeDeg: altitude * radToDeg,
		AzimuthDeg:  azimuth,
	}
}

// normalizeDeg wraps an angle to [0, 360).
func normalizeDeg(d float64) float64 {
	d = math.Mod(d, 360.0)
	if d < 0 {
		d += 360.0
	}
	return d
}

// wrapDeg180 wraps an angle to (-180, 180].
func wrapDeg180(d float64) float64 {
	d = math.Mod(d+180.0, 360.0)
	if d <= 0 {
		d += 360.0
	}
	return d - 180.0
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
