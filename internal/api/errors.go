package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sunfield/sunfield/internal/exposure"
	"github.com/sunfield/sunfield/internal/geo"
	"github.com/sunfield/sunfield/internal/shade"
	"github.com/sunfield/sunfield/internal/solar"
	"github.com/sunfield/sunfield/internal/storage"
)

// errorBody is the JSON error payload: a stable machine-readable code plus
// a human-readable message.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: code, Message: message})
}

// writeEngineError maps the engine's validation taxonomy onto HTTP statuses.
// Validation failures are 400s; anything else is a 500.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, geo.ErrInvalidCoordinates):
		writeError(w, http.StatusBadRequest, "invalid_coordinates", err.Error())
	case errors.Is(err, geo.ErrInvalidBounds):
		writeError(w, http.StatusBadRequest, "invalid_bounds", err.Error())
	case errors.Is(err, shade.ErrInvalidObstacle):
		writeError(w, http.StatusBadRequest, "invalid_obstacle", err.Error())
	case errors.Is(err, solar.ErrInvalidDate):
		writeError(w, http.StatusBadRequest, "invalid_date", err.Error())
	case errors.Is(err, exposure.ErrInvalidResolution):
		writeError(w, http.StatusBadRequest, "invalid_resolution", err.Error())
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
	}
}
