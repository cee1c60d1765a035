package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/sunfield/sunfield/internal/exposure"
	"github.com/sunfield/sunfield/internal/geo"
	"github.com/sunfield/sunfield/internal/metrics"
	"github.com/sunfield/sunfield/internal/shade"
	"github.com/sunfield/sunfield/internal/solar"
)

// maxGridCost bounds cells × time samples × obstacles for a single grid
// request so one call cannot consume unbounded CPU.
const maxGridCost = 4_000_000

// parseCoords reads lat/lon query parameters into validated coordinates.
func parseCoords(r *http.Request) (geo.Coordinates, error) {
	lat, err := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	if err != nil {
		return geo.Coordinates{}, fmt.Errorf("%w: missing or malformed lat", geo.ErrInvalidCoordinates)
	}
	lon, err := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	if err != nil {
		return geo.Coordinates{}, fmt.Errorf("%w: missing or malformed lon", geo.ErrInvalidCoordinates)
	}
	return geo.NewCoordinates(lat, lon)
}

// handleSolarPosition serves GET /api/v1/solar/position?lat&lon&at.
// "at" is RFC 3339; it defaults to now.
func (s *Server) handleSolarPosition(w http.ResponseWriter, r *http.Request) {
	coords, err := parseCoords(r)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	at := time.Now().UTC()
	if v := r.URL.Query().Get("at"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "at must be RFC 3339")
			return
		}
		if err := solar.ValidateDate(parsed); err != nil {
			writeEngineError(w, err)
			return
		}
		at = parsed
	}

	writeJSON(w, http.StatusOK, struct {
		At       string         `json:"at"`
		Position solar.Position `json:"position"`
	}{
		At:       at.UTC().Format(time.RFC3339),
		Position: solar.PositionAt(coords, at),
	})
}

// handleSunTimes serves GET /api/v1/solar/times?lat&lon&date.
func (s *Server) handleSunTimes(w http.ResponseWriter, r *http.Request) {
	coords, err := parseCoords(r)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	date := time.Now().UTC()
	if v := r.URL.Query().Get("date"); v != "" {
		date, err = solar.ParseDate(v)
		if err != nil {
			writeEngineError(w, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, struct {
		Date string `json:"date"`
		solar.SunTimes
	}{
		Date:     date.Format(time.DateOnly),
		SunTimes: solar.TimesFor(coords, date),
	})
}

// dailyShadeRequest is the POST body for a per-point analysis.
type dailyShadeRequest struct {
	Point       geo.Coordinates  `json:"point"`
	Date        string           `json:"date"`
	Obstacles   []shade.Obstacle `json:"obstacles"`
	StepMinutes int              `json:"step_minutes"`
}

// handleDailyShade serves POST /api/v1/shade/daily.
func (s *Server) handleDailyShade(w http.ResponseWriter, r *http.Request) {
	var req dailyShadeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}

	date, err := solar.ParseDate(req.Date)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	analysis, err := shade.Daily(r.Context(), req.Point, date, req.Obstacles, stepOf(req.StepMinutes, s.sampleStep))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	metrics.IncShadeAnalysis()

	writeJSON(w, http.StatusOK, analysis)
}

// gridRequest is the POST body for an exposure grid computation.
type gridRequest struct {
	Bounds      geo.Bounds       `json:"bounds"`
	Date        string           `json:"date"`
	Obstacles   []shade.Obstacle `json:"obstacles"`
	Resolution  int              `json:"resolution"`
	StepMinutes int              `json:"step_minutes"`
}

// handleExposureGrid serves POST /api/v1/exposure/grid.
func (s *Server) handleExposureGrid(w http.ResponseWriter, r *http.Request) {
	var req gridRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}

	date, err := solar.ParseDate(req.Date)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	step := stepOf(req.StepMinutes, s.sampleStep)
	if err := checkGridCost(req.Resolution, step, len(req.Obstacles)); err != nil {
		writeError(w, http.StatusBadRequest, "budget_exceeded", err.Error())
		return
	}

	ip := clientIP(r, s.trustProxy)
	if !s.limiter.acquire(ip) {
		s.logger.Warn("grid limit exceeded", "remote_ip", ip)
		w.Header().Set("Retry-After", "5")
		writeError(w, http.StatusTooManyRequests, "too_many_requests", "too many concurrent grid computations")
		return
	}
	defer s.limiter.release(ip)

	grid, err := s.engine.Grid(r.Context(), exposure.Request{
		Bounds:     req.Bounds,
		Date:       date,
		Obstacles:  req.Obstacles,
		Resolution: req.Resolution,
		Step:       step,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, grid)
}

// stepOf converts a request's step_minutes to a duration, falling back to
// the configured default.
func stepOf(stepMinutes int, fallback time.Duration) time.Duration {
	if stepMinutes <= 0 {
		return fallback
	}
	return time.Duration(stepMinutes) * time.Minute
}

// checkGridCost rejects requests whose worst-case sample count exceeds the
// CPU budget. Resolution bounds themselves are enforced by the engine.
func checkGridCost(resolution int, step time.Duration, obstacles int) error {
	if resolution < exposure.MinResolution || resolution > exposure.MaxResolution {
		return nil // let the engine produce its taxonomy error
	}
	samplesPerDay := int((24 * time.Hour) / step)
	factor := obstacles
	if factor < 1 {
		factor = 1
	}
	cost := resolution * resolution * samplesPerDay * factor
	if cost > maxGridCost {
		return fmt.Errorf("request cost %d exceeds budget %d: reduce resolution, coarsen step_minutes, or trim obstacles", cost, maxGridCost)
	}
	return nil
}
