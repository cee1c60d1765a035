// Package geo provides geographic value types and the small-extent planar
// approximations used throughout the engine. At garden scale (tens of meters)
// a lat/lon rectangle is treated as a flat patch; this is not valid for
// large regions.
package geo

import (
	"errors"
	"fmt"
	"math"
)

// MetersPerDegree is the north-south ground distance of one degree of
// latitude. East-west distance shrinks by cos(latitude).
const MetersPerDegree = 111320.0

// ErrInvalidCoordinates reports a latitude or longitude outside the valid range.
var ErrInvalidCoordinates = errors.New("invalid coordinates")

// ErrInvalidBounds reports a degenerate or inverted bounding box.
var ErrInvalidBounds = errors.New("invalid bounds")

// Coordinates is an immutable geographic point.
// Latitude is in [-90, 90], longitude in [-180, 180], both in degrees.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// NewCoordinates validates and constructs a Coordinates value.
func NewCoordinates(lat, lon float64) (Coordinates, error) {
	c := Coordinates{Lat: lat, Lon: lon}
	if err := c.Validate(); err != nil {
		return Coordinates{}, err
	}
	return c, nil
}

// Validate checks the latitude and longitude ranges.
func (c Coordinates) Validate() error {
	if math.IsNaN(c.Lat) || c.Lat < -90 || c.Lat > 90 {
		return fmt.Errorf("%w: latitude %.6f out of [-90, 90]", ErrInvalidCoordinates, c.Lat)
	}
	if math.IsNaN(c.Lon) || c.Lon < -180 || c.Lon > 180 {
		return fmt.Errorf("%w: longitude %.6f out of [-180, 180]", ErrInvalidCoordinates, c.Lon)
	}
	return nil
}

// LocalOffset returns the planar offset of target relative to origin in
// meters: east is +x, north is +y. East-west distance uses the cosine of
// the origin latitude.
func LocalOffset(origin, target Coordinates) (eastM, northM float64) {
	northM = (target.Lat - origin.Lat) * MetersPerDegree
	eastM = (target.Lon - origin.Lon) * MetersPerDegree * math.Cos(origin.Lat*math.Pi/180.0)
	return eastM, northM
}

// Distance returns the planar ground distance between two points in meters.
func Distance(a, b Coordinates) float64 {
	e, n := LocalOffset(a, b)
	return math.Hypot(e, n)
}

// Bounds is a lat/lon rectangle. North > South and East > West for a
// non-degenerate box; boxes never span the antimeridian.
type Bounds struct {
	North float64 `json:"north"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	West  float64 `json:"west"`
}

// Validate checks corner ordering and coordinate ranges.
func (b Bounds) Validate() error {
	if err := (Coordinates{Lat: b.North, Lon: b.East}).Validate(); err != nil {
		return err
	}
	if err := (Coordinates{Lat: b.South, Lon: b.West}).Validate(); err != nil {
		return err
	}
	if b.North <= b.South {
		return fmt.Errorf("%w: north %.6f must exceed south %.6f", ErrInvalidBounds, b.North, b.South)
	}
	if b.East <= b.West {
		return fmt.Errorf("%w: east %.6f must exceed west %.6f", ErrInvalidBounds, b.East, b.West)
	}
	return nil
}

// Center returns the midpoint of the rectangle.
func (b Bounds) Center() Coordinates {
	return Coordinates{
		Lat: (b.North + b.South) / 2,
		Lon: (b.East + b.West) / 2,
	}
}

// Area returns the approximate area of the rectangle in square meters.
// North-south extent scales by MetersPerDegree; east-west extent scales by
// the same constant times cos(mean latitude) to account for longitude
// convergence toward the poles.
func Area(b Bounds) float64 {
	meanLat := (b.North + b.South) / 2
	heightM := (b.North - b.South) * MetersPerDegree
	widthM := (b.East - b.West) * MetersPerDegree * math.Cos(meanLat*math.Pi/180.0)
	return math.Abs(heightM * widthM)
}
