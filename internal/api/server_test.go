package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sunfield/sunfield/internal/auth"
	"github.com/sunfield/sunfield/internal/exposure"
	"github.com/sunfield/sunfield/internal/geo"
	"github.com/sunfield/sunfield/internal/mqtt"
	"github.com/sunfield/sunfield/internal/shade"
	"github.com/sunfield/sunfield/internal/storage"
	"github.com/sunfield/sunfield/internal/zone"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func testServer(t *testing.T, authCfg auth.Config) *Server {
	t.Helper()

	logger := testLogger()
	db, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	publisher, err := mqtt.NewPublisher(mqtt.Config{Enabled: false}, logger)
	require.NoError(t, err)

	return NewServer(":0", logger, Deps{
		Engine:             exposure.NewEngine(2, logger),
		DB:                 db,
		Publisher:          publisher,
		Auth:               authCfg,
		SampleStep:         15 * time.Minute,
		MaxConcurrentGrids: 4,
	})
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestSolarPosition(t *testing.T) {
	s := testServer(t, auth.Config{})

	rec := doJSON(t, s, http.MethodGet, "/api/v1/solar/position?lat=52.52&lon=13.405&at=2024-06-21T12:00:00Z", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		At       string `json:"at"`
		Position struct {
			AltitudeDeg float64 `json:"altitude_deg"`
			AzimuthDeg  float64 `json:"azimuth_deg"`
		} `json:"position"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Greater(t, resp.Position.AltitudeDeg, 50.0, "midsummer noon in Berlin is high sun")
	assert.GreaterOrEqual(t, resp.Position.AzimuthDeg, 0.0)
	assert.Less(t, resp.Position.AzimuthDeg, 360.0)
}

func TestSolarPosition_InvalidCoordinates(t *testing.T) {
	s := testServer(t, auth.Config{})

	rec := doJSON(t, s, http.MethodGet, "/api/v1/solar/position?lat=99&lon=0", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_coordinates")
}

func TestSunTimes_PolarDay(t *testing.T) {
	s := testServer(t, auth.Config{})

	rec := doJSON(t, s, http.MethodGet, "/api/v1/solar/times?lat=75&lon=16&date=2024-06-21", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Sunrise        *string `json:"sunrise"`
		Sunset         *string `json:"sunset"`
		DayLengthHours float64 `json:"day_length_hours"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Nil(t, resp.Sunrise)
	assert.Nil(t, resp.Sunset)
	assert.Equal(t, 24.0, resp.DayLengthHours)
}

func TestSunTimes_InvalidDate(t *testing.T) {
	s := testServer(t, auth.Config{})

	rec := doJSON(t, s, http.MethodGet, "/api/v1/solar/times?lat=52&lon=13&date=junk", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_date")
}

func TestDailyShade_NoObstacles(t *testing.T) {
	s := testServer(t, auth.Config{})

	rec := doJSON(t, s, http.MethodPost, "/api/v1/shade/daily", dailyShadeRequest{
		Point: geo.Coordinates{Lat: 52.52, Lon: 13.405},
		Date:  "2024-06-21",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var a shade.Analysis
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &a))
	assert.Equal(t, a.TheoreticalSunHours, a.EffectiveSunHours)
	assert.Zero(t, a.PercentBlocked)
	assert.Greater(t, a.TheoreticalSunHours, 15.0)
}

func TestDailyShade_InvalidObstacle(t *testing.T) {
	s := testServer(t, auth.Config{})

	rec := doJSON(t, s, http.MethodPost, "/api/v1/shade/daily", dailyShadeRequest{
		Point: geo.Coordinates{Lat: 52.52, Lon: 13.405},
		Date:  "2024-06-21",
		Obstacles: []shade.Obstacle{
			{ID: "bad", Position: geo.Coordinates{Lat: 52.52, Lon: 13.405}, HeightM: -3, Kind: shade.KindBuilding},
		},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_obstacle")
}

func TestExposureGrid(t *testing.T) {
	s := testServer(t, auth.Config{})

	rec := doJSON(t, s, http.MethodPost, "/api/v1/exposure/grid", gridRequest{
		Bounds:      geo.Bounds{North: 52.5203, South: 52.5200, East: 13.4055, West: 13.4050},
		Date:        "2024-06-21",
		Resolution:  4,
		StepMinutes: 30,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var grid exposure.Grid
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &grid))
	assert.Len(t, grid.Cells, 16)
	assert.Equal(t, "2024-06-21", grid.Date)
}

func TestExposureGrid_BudgetExceeded(t *testing.T) {
	s := testServer(t, auth.Config{})

	// 128² cells at 1-minute steps with many obstacles blows the budget.
	obstacles := make([]shade.Obstacle, 20)
	for i := range obstacles {
		obstacles[i] = shade.Obstacle{
			ID: fmt.Sprintf("o%d", i), Position: geo.Coordinates{Lat: 52.52, Lon: 13.405},
			HeightM: 5, CanopyWidthM: 3, Kind: shade.KindEvergreenTree,
		}
	}
	rec := doJSON(t, s, http.MethodPost, "/api/v1/exposure/grid", gridRequest{
		Bounds:      geo.Bounds{North: 52.5203, South: 52.5200, East: 13.4055, West: 13.4050},
		Date:        "2024-06-21",
		Resolution:  128,
		StepMinutes: 1,
		Obstacles:   obstacles,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "budget_exceeded")
}

func TestZoneLifecycle(t *testing.T) {
	s := testServer(t, auth.Config{})
	bounds := geo.Bounds{North: 52.5203, South: 52.5200, East: 13.4055, West: 13.4050}

	// Create.
	rec := doJSON(t, s, http.MethodPost, "/api/v1/zones", createZoneRequest{Name: "herb bed", Bounds: bounds})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created zone.Zone
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)

	// Analyze against an empty obstacle set: full sun in midsummer Berlin.
	rec = doJSON(t, s, http.MethodPost, "/api/v1/zones/"+created.ID+"/analyze", analyzeZoneRequest{
		Date:        "2024-06-21",
		StepMinutes: 30,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var analyzed analyzeZoneResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &analyzed))
	assert.Equal(t, zone.FullSun, analyzed.Zone.Category)
	assert.InDelta(t, 0, analyzed.Analysis.PercentBlocked, 2.0)

	// History has one record.
	rec = doJSON(t, s, http.MethodGet, "/api/v1/zones/"+created.ID+"/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var hist struct {
		History []storage.AnalysisRecord `json:"history"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hist))
	assert.Len(t, hist.History, 1)

	// Delete, then 404.
	rec = doJSON(t, s, http.MethodDelete, "/api/v1/zones/"+created.ID, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = doJSON(t, s, http.MethodGet, "/api/v1/zones/"+created.ID, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestZone_NotFound(t *testing.T) {
	s := testServer(t, auth.Config{})
	rec := doJSON(t, s, http.MethodGet, "/api/v1/zones/does-not-exist", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAuth_ProtectsMutatingEndpoints(t *testing.T) {
	s := testServer(t, auth.Config{Enabled: true, Token: "secret"})

	// Solar queries stay public.
	rec := doJSON(t, s, http.MethodGet, "/api/v1/solar/times?lat=52&lon=13&date=2024-06-21", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Zone creation requires the token.
	rec = doJSON(t, s, http.MethodPost, "/api/v1/zones", createZoneRequest{
		Name:   "bed",
		Bounds: geo.Bounds{North: 1, South: 0, East: 1, West: 0},
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/zones", bytes.NewReader(mustJSON(t, createZoneRequest{
		Name:   "bed",
		Bounds: geo.Bounds{North: 1, South: 0, East: 1, West: 0},
	})))
	req.Header.Set("Authorization", "Bearer secret")
	out := httptest.NewRecorder()
	s.Handler().ServeHTTP(out, req)
	assert.Equal(t, http.StatusCreated, out.Code, out.Body.String())
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}
