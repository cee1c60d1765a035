package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sunfield/sunfield/internal/exposure"
	"github.com/sunfield/sunfield/internal/geo"
	"github.com/sunfield/sunfield/internal/shade"
	"github.com/sunfield/sunfield/internal/solar"
	"github.com/sunfield/sunfield/internal/storage"
	"github.com/sunfield/sunfield/internal/zone"
)

// zoneAnalysisResolution is the per-axis cell count used when averaging
// sun hours over a zone. Zones are small; a coarse grid is plenty.
const zoneAnalysisResolution = 4

// createZoneRequest is the POST body for zone creation.
type createZoneRequest struct {
	Name   string     `json:"name"`
	Bounds geo.Bounds `json:"bounds"`
}

// handleCreateZone serves POST /api/v1/zones.
func (s *Server) handleCreateZone(w http.ResponseWriter, r *http.Request) {
	var req createZoneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "invalid_body", "name is required")
		return
	}

	z, err := zone.New(req.Name, req.Bounds)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if err := s.db.SaveZone(z); err != nil {
		writeEngineError(w, err)
		return
	}

	s.logger.Info("zone created", "zone_id", z.ID, "name", z.Name, "area_m2", z.AreaM2())
	writeJSON(w, http.StatusCreated, z)
}

// handleListZones serves GET /api/v1/zones.
func (s *Server) handleListZones(w http.ResponseWriter, r *http.Request) {
	zones, err := s.db.ListZones()
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Zones []zone.Zone `json:"zones"`
	}{Zones: zones})
}

// handleGetZone serves GET /api/v1/zones/{id}.
func (s *Server) handleGetZone(w http.ResponseWriter, r *http.Request) {
	z, err := s.db.GetZone(r.PathValue("id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, z)
}

// handleDeleteZone serves DELETE /api/v1/zones/{id}.
func (s *Server) handleDeleteZone(w http.ResponseWriter, r *http.Request) {
	if err := s.db.DeleteZone(r.PathValue("id")); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// analyzeZoneRequest is the POST body for a zone analysis run.
type analyzeZoneRequest struct {
	Date        string           `json:"date"`
	Obstacles   []shade.Obstacle `json:"obstacles"`
	StepMinutes int              `json:"step_minutes"`
}

// analyzeZoneResponse pairs the reclassified zone with the analysis that
// produced it.
type analyzeZoneResponse struct {
	Zone     zone.Zone      `json:"zone"`
	Date     string         `json:"date"`
	Analysis shade.Analysis `json:"analysis"`
}

// handleAnalyzeZone serves POST /api/v1/zones/{id}/analyze: evaluates the
// zone against the posted obstacle set, reclassifies it, and appends to
// its analysis history.
func (s *Server) handleAnalyzeZone(w http.ResponseWriter, r *http.Request) {
	z, err := s.db.GetZone(r.PathValue("id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}

	var req analyzeZoneRequest
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

	// Theoretical hours are effectively uniform over a garden-scale zone;
	// take them from the center point. Effective hours are averaged over a
	// coarse grid so a single shaded corner registers.
	center, err := shade.Daily(r.Context(), z.Bounds.Center(), date, req.Obstacles, step)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	grid, err := s.engine.Grid(r.Context(), exposure.Request{
		Bounds:     z.Bounds,
		Date:       date,
		Obstacles:  req.Obstacles,
		Resolution: zoneAnalysisResolution,
		Step:       step,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}

	var sum float64
	for _, c := range grid.Cells {
		sum += c.SunHours
	}
	avgEffective := sum / float64(len(grid.Cells))

	analysis := shade.Analysis{
		TheoreticalSunHours: center.TheoreticalSunHours,
		EffectiveSunHours:   avgEffective,
		PercentBlocked:      percentOf(center.TheoreticalSunHours, avgEffective),
	}

	z.SetLight(avgEffective)
	if err := s.db.SaveZone(z); err != nil {
		writeEngineError(w, err)
		return
	}
	if err := s.db.SaveAnalysis(storage.AnalysisRecord{
		ZoneID:              z.ID,
		Date:                date.Format(time.DateOnly),
		TheoreticalSunHours: analysis.TheoreticalSunHours,
		EffectiveSunHours:   analysis.EffectiveSunHours,
		PercentBlocked:      analysis.PercentBlocked,
		ObstacleHash:        fmt.Sprintf("%016x", exposure.ObstacleSetHash(req.Obstacles)),
	}); err != nil {
		writeEngineError(w, err)
		return
	}

	if err := s.publisher.PublishZoneSummary(z, date, analysis); err != nil {
		// Summary publication is best-effort; the analysis itself succeeded.
		s.logger.Warn("zone summary publish failed", "zone_id", z.ID, "error", err)
	}

	s.logger.Info("zone analyzed",
		"zone_id", z.ID,
		"date", date.Format(time.DateOnly),
		"avg_sun_hours", avgEffective,
		"category", z.Category,
	)

	writeJSON(w, http.StatusOK, analyzeZoneResponse{
		Zone:     z,
		Date:     date.Format(time.DateOnly),
		Analysis: analysis,
	})
}

// handleZoneHistory serves GET /api/v1/zones/{id}/history.
func (s *Server) handleZoneHistory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.db.GetZone(id); err != nil {
		writeEngineError(w, err)
		return
	}

	history, err := s.db.ListAnalyses(id, 50)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		ZoneID  string                   `json:"zone_id"`
		History []storage.AnalysisRecord `json:"history"`
	}{ZoneID: id, History: history})
}

// percentOf clamps the blocked percentage derived from possibly
// independently-computed theoretical and effective figures.
func percentOf(theoretical, effective float64) float64 {
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
