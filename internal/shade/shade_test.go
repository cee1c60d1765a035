package shade

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/sunfield/sunfield/internal/geo"
	"github.com/sunfield/sunfield/internal/solar"
)

var berlin = geo.Coordinates{Lat: 52.52, Lon: 13.405}

// south returns a point the given number of meters due south of c.
func south(c geo.Coordinates, meters float64) geo.Coordinates {
	return geo.Coordinates{Lat: c.Lat - meters/geo.MetersPerDegree, Lon: c.Lon}
}

// east returns a point the given number of meters due east of c.
func east(c geo.Coordinates, meters float64) geo.Coordinates {
	return geo.Coordinates{
		Lat: c.Lat,
		Lon: c.Lon + meters/(geo.MetersPerDegree*math.Cos(c.Lat*math.Pi/180)),
	}
}

func TestObstacle_Validate(t *testing.T) {
	valid := Obstacle{ID: "o1", Position: berlin, HeightM: 5, CanopyWidthM: 3, Kind: KindEvergreenTree}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid obstacle rejected: %v", err)
	}

	tests := []struct {
		name string
		mod  func(o Obstacle) Obstacle
		want error
	}{
		{"zero height", func(o Obstacle) Obstacle { o.HeightM = 0; return o }, ErrInvalidObstacle},
		{"negative canopy", func(o Obstacle) Obstacle { o.CanopyWidthM = -1; return o }, ErrInvalidObstacle},
		{"unknown kind", func(o Obstacle) Obstacle { o.Kind = "hedge"; return o }, ErrInvalidObstacle},
		{"bad position", func(o Obstacle) Obstacle { o.Position.Lat = 91; return o }, geo.ErrInvalidCoordinates},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.mod(valid).Validate(); !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestShadowed_NightIsAlwaysShadowed(t *testing.T) {
	o := Obstacle{ID: "o1", Position: berlin, HeightM: 5, CanopyWidthM: 3, Kind: KindBuilding}
	sun := solar.Position{AltitudeDeg: -5, AzimuthDeg: 270}
	if !Shadowed(south(berlin, 100), o, sun, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)) {
		t.Error("sun below horizon: every point counts as shadowed")
	}
}

func TestShadowed_LengthCutoff(t *testing.T) {
	date := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	// Sun due south at 30°: 10m building casts a 17.3m shadow to the north.
	sun := solar.Position{AltitudeDeg: 30, AzimuthDeg: 180}
	building := Obstacle{ID: "b", Position: berlin, HeightM: 10, CanopyWidthM: 8, Kind: KindBuilding}

	north := func(m float64) geo.Coordinates { return south(berlin, -m) }

	if !Shadowed(north(10), building, sun, date) {
		t.Error("point 10m north should be inside a 17.3m shadow")
	}
	if Shadowed(north(25), building, sun, date) {
		t.Error("point 25m north is beyond the shadow tip")
	}
	if Shadowed(south(berlin, 5), building, sun, date) {
		t.Error("point on the sun side of the building is unshadowed")
	}
}

func TestShadowed_CrossAxisCutoff(t *testing.T) {
	date := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	sun := solar.Position{AltitudeDeg: 20, AzimuthDeg: 180}
	building := Obstacle{ID: "b", Position: berlin, HeightM: 10, CanopyWidthM: 6, Kind: KindBuilding}

	// 10m along the shadow axis, offset sideways.
	inside := east(south(berlin, -10), 2)   // 2m < half-width 3m
	outside := east(south(berlin, -10), 4) // 4m > half-width 3m

	if !Shadowed(inside, building, sun, date) {
		t.Error("point 2m off-axis should be inside a 6m-wide shadow")
	}
	if Shadowed(outside, building, sun, date) {
		t.Error("point 4m off-axis should be outside a 6m-wide shadow")
	}
}

func TestShadowed_AltitudeGovernsReach(t *testing.T) {
	// A 4m building 5m due south of the point: low winter sun reaches the
	// point (16m shadow), high summer sun does not (2.2m shadow).
	date := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	point := berlin
	building := Obstacle{ID: "b", Position: south(point, 5), HeightM: 4, CanopyWidthM: 8, Kind: KindBuilding}

	if !Shadowed(point, building, solar.Position{AltitudeDeg: 14, AzimuthDeg: 180}, date) {
		t.Error("low sun: shadow length 16m should cover the point 5m away")
	}
	if Shadowed(point, building, solar.Position{AltitudeDeg: 61, AzimuthDeg: 180}, date) {
		t.Error("high sun: shadow length 2.2m should fall short of the point 5m away")
	}
}

func TestShadowed_DeciduousSeasonalDiscount(t *testing.T) {
	sun := solar.Position{AltitudeDeg: 10, AzimuthDeg: 180}
	tree := Obstacle{ID: "t", Position: berlin, HeightM: 5, CanopyWidthM: 10, Kind: KindDeciduousTree}

	// 3.5m off-axis: inside the 5m leaf-on half-width, outside the 2.5m
	// bare-branch half-width.
	point := east(south(berlin, -10), 3.5)

	july := time.Date(2024, 7, 15, 0, 0, 0, 0, time.UTC)
	january := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	if !Shadowed(point, tree, sun, july) {
		t.Error("leaf-on deciduous tree should shade at full canopy width")
	}
	if Shadowed(point, tree, sun, january) {
		t.Error("bare deciduous tree should shade at the discounted canopy width")
	}

	// Evergreens ignore the season.
	evergreen := tree
	evergreen.Kind = KindEvergreenTree
	if !Shadowed(point, evergreen, sun, january) {
		t.Error("evergreen shading must not vary with season")
	}
}

func TestLeafOn_Hemispheres(t *testing.T) {
	july := time.Date(2024, 7, 15, 0, 0, 0, 0, time.UTC)
	january := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	if !leafOn(52, july) || leafOn(52, january) {
		t.Error("northern hemisphere: leaves in July, bare in January")
	}
	if leafOn(-34, july) || !leafOn(-34, january) {
		t.Error("southern hemisphere: bare in July, leaves in January")
	}
}

func TestDaily_NoObstacles(t *testing.T) {
	date := time.Date(2024, 6, 21, 0, 0, 0, 0, time.UTC)
	a, err := Daily(context.Background(), berlin, date, nil, 5*time.Minute)
	if err != nil {
		t.Fatalf("Daily: %v", err)
	}

	if a.EffectiveSunHours != a.TheoreticalSunHours {
		t.Errorf("no obstacles: effective %.3f must equal theoretical %.3f",
			a.EffectiveSunHours, a.TheoreticalSunHours)
	}
	if a.PercentBlocked != 0 {
		t.Errorf("no obstacles: percent blocked = %.2f, want 0", a.PercentBlocked)
	}

	dayLen := solar.TimesFor(berlin, date).DayLengthHours
	if a.TheoreticalSunHours > dayLen+1e-9 {
		t.Errorf("theoretical %.3fh exceeds day length %.3fh", a.TheoreticalSunHours, dayLen)
	}
	if math.Abs(a.TheoreticalSunHours-dayLen) > 0.5 {
		t.Errorf("theoretical %.3fh far from day length %.3fh", a.TheoreticalSunHours, dayLen)
	}
}

func TestDaily_CoLocatedObstacleBlocksEverything(t *testing.T) {
	date := time.Date(2024, 6, 21, 0, 0, 0, 0, time.UTC)
	obstacles := []Obstacle{{ID: "b", Position: berlin, HeightM: 30, CanopyWidthM: 20, Kind: KindBuilding}}

	a, err := Daily(context.Background(), berlin, date, obstacles, 10*time.Minute)
	if err != nil {
		t.Fatalf("Daily: %v", err)
	}
	if a.EffectiveSunHours != 0 {
		t.Errorf("point at obstacle base: effective = %.3fh, want 0", a.EffectiveSunHours)
	}
	if math.Abs(a.PercentBlocked-100) > 1e-9 {
		t.Errorf("percent blocked = %.2f, want 100", a.PercentBlocked)
	}
}

func TestDaily_Invariants(t *testing.T) {
	date := time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC)
	obstacles := []Obstacle{
		{ID: "t1", Position: south(berlin, 8), HeightM: 6, CanopyWidthM: 5, Kind: KindDeciduousTree},
		{ID: "b1", Position: east(berlin, 12), HeightM: 9, CanopyWidthM: 7, Kind: KindBuilding},
	}

	a, err := Daily(context.Background(), berlin, date, obstacles, 5*time.Minute)
	if err != nil {
		t.Fatalf("Daily: %v", err)
	}

	if a.EffectiveSunHours < 0 || a.EffectiveSunHours > a.TheoreticalSunHours {
		t.Errorf("invariant violated: 0 <= effective (%.3f) <= theoretical (%.3f)",
			a.EffectiveSunHours, a.TheoreticalSunHours)
	}
	if a.PercentBlocked < 0 || a.PercentBlocked > 100 {
		t.Errorf("percent blocked %.2f out of [0, 100]", a.PercentBlocked)
	}
}

func TestDaily_PolarNight(t *testing.T) {
	svalbard := geo.Coordinates{Lat: 75, Lon: 16}
	a, err := Daily(context.Background(), svalbard, time.Date(2024, 12, 21, 0, 0, 0, 0, time.UTC), nil, 10*time.Minute)
	if err != nil {
		t.Fatalf("Daily: %v", err)
	}
	if a.TheoreticalSunHours != 0 || a.EffectiveSunHours != 0 || a.PercentBlocked != 0 {
		t.Errorf("polar night: want all-zero analysis, got %+v", a)
	}
}

func TestDaily_PolarDay(t *testing.T) {
	svalbard := geo.Coordinates{Lat: 75, Lon: 16}
	a, err := Daily(context.Background(), svalbard, time.Date(2024, 6, 21, 0, 0, 0, 0, time.UTC), nil, 15*time.Minute)
	if err != nil {
		t.Fatalf("Daily: %v", err)
	}
	// Midnight sun: nearly the full 24h counts as theoretical sun.
	if a.TheoreticalSunHours < 23 {
		t.Errorf("polar day theoretical = %.2fh, want close to 24h", a.TheoreticalSunHours)
	}
}

func TestDaily_InputValidation(t *testing.T) {
	ctx := context.Background()
	date := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	_, err := Daily(ctx, geo.Coordinates{Lat: 91, Lon: 0}, date, nil, 0)
	if !errors.Is(err, geo.ErrInvalidCoordinates) {
		t.Errorf("bad point error = %v, want ErrInvalidCoordinates", err)
	}

	_, err = Daily(ctx, berlin, time.Date(1500, 1, 1, 0, 0, 0, 0, time.UTC), nil, 0)
	if !errors.Is(err, solar.ErrInvalidDate) {
		t.Errorf("bad date error = %v, want ErrInvalidDate", err)
	}

	bad := []Obstacle{{ID: "x", Position: berlin, HeightM: -1, Kind: KindBuilding}}
	_, err = Daily(ctx, berlin, date, bad, 0)
	if !errors.Is(err, ErrInvalidObstacle) {
		t.Errorf("bad obstacle error = %v, want ErrInvalidObstacle", err)
	}
}

func TestDaily_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Daily(ctx, berlin, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), nil, time.Minute)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled context error = %v, want context.Canceled", err)
	}
}
