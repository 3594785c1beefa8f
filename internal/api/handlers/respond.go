package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wonny/mcrisk/internal/contracts"
	"github.com/wonny/mcrisk/internal/risk"
)

// ErrorResponse is the JSON body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
	Stage string `json:"stage,omitempty"`
	Asset string `json:"asset,omitempty"`
}

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, ErrorResponse{Error: message})
}

// respondRunError maps a run failure to its status code and keeps the
// failing stage/asset in the body.
func respondRunError(w http.ResponseWriter, err error) {
	body := ErrorResponse{Error: err.Error()}
	var simErr *risk.SimulationError
	if errors.As(err, &simErr) {
		body.Stage = string(simErr.Stage)
		body.Asset = simErr.Asset
	}
	respondJSON(w, StatusFor(err), body)
}

// StatusFor maps domain errors to HTTP status codes
// ⭐ SSOT: 에러 → HTTP 상태 매핑
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, risk.ErrInvalidConfig), errors.Is(err, risk.ErrInvalidHorizon):
		return http.StatusBadRequest
	case errors.Is(err, contracts.ErrDataUnavailable):
		return http.StatusNotFound
	case errors.Is(err, risk.ErrEmptyPortfolio),
		errors.Is(err, risk.ErrInsufficientHistory),
		errors.Is(err, risk.ErrEmptyReturnSet),
		errors.Is(err, risk.ErrNonPositiveDefinite),
		errors.Is(err, risk.ErrInvalidPrice):
		return http.StatusUnprocessableEntity
	case errors.Is(err, risk.ErrCancelled):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}
