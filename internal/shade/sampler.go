package shade

import (
	"context"
	"time"

	"github.com/sunfield/sunfield/internal/geo"
	"github.com/sunfield/sunfield/internal/solar"
)

// DefaultStep is the default sampling interval for daily integration.
// Finer steps trade cost for accuracy.
const DefaultStep = 10 * time.Minute

// minStep bounds the per-request cost of a single analysis.
const minStep = time.Minute

// Analysis is the per-point daily result: hours of daylight with and
// without obstacles. Derived, never stored by the engine; recompute
// whenever inputs change.
//
// Invariant: 0 <= EffectiveSunHours <= TheoreticalSunHours, and
// PercentBlocked = 100*(theoretical-effective)/theoretical (0 when
// theoretical is 0).
type Analysis struct {
	TheoreticalSunHours float64 `json:"theoretical_sun_hours"`
	EffectiveSunHours   float64 `json:"effective_sun_hours"`
	PercentBlocked      float64 `json:"percent_blocked"`
}

// Daily integrates the obstacle set over the sun-up interval of one date at
// fixed time steps. Each sample is independent of every other; the loop
// checks ctx so an abandoned computation stops cheaply with no state to
// undo.
func Daily(ctx context.Context, point geo.Coordinates, date time.Time, obstacles []Obstacle, step time.Duration) (Analysis, error) {
	if err := point.Validate(); err != nil {
		return Analysis{}, err
	}
	if err := solar.ValidateDate(date); err != nil {
		return Analysis{}, err
	}
	if err := ValidateAll(obstacles); err != nil {
		return Analysis{}, err
	}
	if step <= 0 {
		step = DefaultStep
	}
	if step < minStep {
		step = minStep
	}

	start, end, ok := samplingInterval(point, date)
	if !ok {
		// Polar night: no theoretical sun at all.
		return Analysis{}, nil
	}

	interval := end.Sub(start)
	samples := int(interval / step)
	if samples < 1 {
		samples = 1
	}
	sampleHours := interval.Hours() / float64(samples)

	var theoretical, effective float64
	for i := 0; i < samples; i++ {
		if err := ctx.Err(); err != nil {
			return Analysis{}, err
		}

		// Midpoint of the i-th sub-interval, so contributions sum to the
		// full interval and boundary instants with altitude ~0 are avoided.
		at := start.Add(time.Duration((float64(i) + 0.5) * float64(interval) / float64(samples)))
		sun := solar.PositionAt(point, at)
		if sun.AltitudeDeg <= 0 {
			// Should not occur strictly inside [sunrise, sunset]; guarded
			// because the rise/set model and the position model are only
			// consistent to a fraction of a degree.
			continue
		}

		theoretical += sampleHours
		if !Eclipsed(point, obstacles, sun, date) {
			effective += sampleHours
		}
	}

	return Analysis{
		TheoreticalSunHours: theoretical,
		EffectiveSunHours:   effective,
		PercentBlocked:      percentBlocked(theoretical, effective),
	}, nil
}

// samplingInterval returns the sun-up interval for the date, handling polar
// cases: the full UTC day under a midnight sun, nothing in polar night.
func samplingInterval(point geo.Coordinates, date time.Time) (start, end time.Time, ok bool) {
	st := solar.TimesFor(point, date)

	switch {
	case st.PolarNight():
		return time.Time{}, time.Time{}, false
	case st.PolarDay():
		y, m, d := date.UTC().Date()
		midnight := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		return midnight, midnight.Add(24 * time.Hour), true
	default:
		return *st.Sunrise, *st.Sunset, true
	}
}

func percentBlocked(theoretical, effective float64) float64 {
	if theoretical <= 0 {
		return 0
	}
	pct := 100.0 * (theoretical - effective) / theoretical
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}
