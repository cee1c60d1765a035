package solar

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sunfield/sunfield/internal/geo"
)

// ErrInvalidDate reports an unparseable or out-of-range calendar date.
var ErrInvalidDate = errors.New("invalid date")

// sunriseAltitudeDeg is the sun altitude defining sunrise and sunset. The
// -0.833° offset is the standard approximation for atmospheric refraction
// plus the solar disk radius.
const sunriseAltitudeDeg = -0.833

// Supported year range. The low-precision ephemeris degrades outside a few
// centuries of J2000, and garden planning has no use for dates beyond it.
const (
	minYear = 1900
	maxYear = 2200
)

// SunTimes holds the daily solar events for one location and date.
// Sunrise and Sunset are nil on polar-day and polar-night dates;
// DayLengthHours is always defined (24 or 0 in those cases) and SolarNoon
// is always defined. All instants are UTC.
type SunTimes struct {
	Sunrise        *time.Time `json:"sunrise,omitempty"`
	Sunset         *time.Time `json:"sunset,omitempty"`
	SolarNoon      time.Time  `json:"solar_noon"`
	DayLengthHours float64    `json:"day_length_hours"`
}

// PolarDay reports a date on which the sun never sets.
func (s SunTimes) PolarDay() bool {
	return s.Sunrise == nil && s.DayLengthHours == 24
}

// PolarNight reports a date on which the sun never rises.
func (s SunTimes) PolarNight() bool {
	return s.Sunrise == nil && s.DayLengthHours == 0
}

// ParseDate parses a calendar date in YYYY-MM-DD form and checks it against
// the supported year range.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q is not a YYYY-MM-DD date", ErrInvalidDate, s)
	}
	return t, ValidateDate(t)
}

// ValidateDate checks that the date falls inside the supported year range.
func ValidateDate(t time.Time) error {
	if y := t.Year(); y < minYear || y > maxYear {
		return fmt.Errorf("%w: year %d outside supported range [%d, %d]", ErrInvalidDate, y, minYear, maxYear)
	}
	return nil
}

// TimesFor computes sunrise, sunset, solar noon, and day length for the
// given location and calendar date. Only the year/month/day of date are
// used; the computation runs on the UTC day.
func TimesFor(c geo.Coordinates, date time.Time) SunTimes {
	y, m, d := date.UTC().Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	// Evaluate the ephemeris near local solar noon: the declination drift
	// over a day is small but this keeps rise/set symmetric about noon.
	approxNoon := midnight.Add(time.Duration((12.0 - c.Lon/15.0) * float64(time.Hour)))
	eph := solarEphemeris(daysSinceJ2000(approxNoon))

	// Solar noon: mean noon corrected by longitude and the equation of time.
	noonHours := 12.0 - c.Lon/15.0 - eph.equationOfTimeMinutes()/60.0
	solarNoon := midnight.Add(time.Duration(noonHours * float64(time.Hour)))

	latRad := c.Lat * degToRad
	sinAlt := math.Sin(sunriseAltitudeDeg * degToRad)

	// Sunrise/sunset hour-angle equation. The arccos argument leaving
	// [-1, 1] signals a polar date: these are legitimate outputs, not
	// errors.
	cosOmega := (sinAlt - math.Sin(latRad)*math.Sin(eph.declinationRad)) /
		(math.Cos(latRad) * math.Cos(eph.declinationRad))

	switch {
	case cosOmega > 1:
		// Sun never rises.
		return SunTimes{SolarNoon: solarNoon, DayLengthHours: 0}
	case cosOmega < -1:
		// Sun never sets.
		return SunTimes{SolarNoon: solarNoon, DayLengthHours: 24}
	}

	// Half-day length: hour angle in degrees at 15°/hour.
	halfDayHours := math.Acos(cosOmega) * radToDeg / 15.0

	sunrise := solarNoon.Add(-time.Duration(halfDayHours * float64(time.Hour)))
	sunset := solarNoon.Add(time.Duration(halfDayHours * float64(time.Hour)))

	return SunTimes{
		Sunrise:        &sunrise,
		Sunset:         &sunset,
		SolarNoon:      solarNoon,
		DayLengthHours: 2 * halfDayHours,
	}
}
