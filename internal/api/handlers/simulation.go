package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/wonny/mcrisk/internal/contracts"
	"github.com/wonny/mcrisk/internal/risk"
	"github.com/wonny/mcrisk/pkg/logger"
)

// maxRequestTrials API 요청당 trial 상한 (CLI는 제한 없음)
const maxRequestTrials = 1_000_000

// CompositionSource builds the composition for one run's estimation window
// (price field + lookback), so request overrides reach the history fetch.
type CompositionSource func(field contracts.PriceField, lookback int) contracts.CompositionProvider

// SimulationHandler runs Monte Carlo projections of the stored portfolio
// ⭐ SSOT: 시뮬레이션 API 핸들러는 이 구조체에서만
type SimulationHandler struct {
	engine      *risk.Engine
	composition CompositionSource
	defaults    risk.Config
	limits      risk.RiskLimits
	logger      *logger.Logger
}

// NewSimulationHandler creates a new simulation handler.
// defaults come from config.SimulationConfig; requests override them.
func NewSimulationHandler(
	engine *risk.Engine,
	composition CompositionSource,
	defaults risk.Config,
	limits risk.RiskLimits,
	log *logger.Logger,
) *SimulationHandler {
	return &SimulationHandler{
		engine:      engine,
		composition: composition,
		defaults:    defaults,
		limits:      limits,
		logger:      log,
	}
}

// SimulationRequest overrides the server defaults. Omitted fields keep them.
type SimulationRequest struct {
	HorizonDays           *int    `json:"horizon_days,omitempty"`
	Trials                *int    `json:"trials,omitempty"`
	BatchSize             *int    `json:"batch_size,omitempty"`
	Seed                  *int64  `json:"seed,omitempty"`
	Workers               *int    `json:"workers,omitempty"`
	Mode                  *string `json:"mode,omitempty"`
	LookbackDays          *int    `json:"lookback_days,omitempty"`
	PriceField            *string `json:"price_field,omitempty"`
	IncludeDistribution   bool    `json:"include_distribution,omitempty"`
	ReturnPartialOnCancel *bool   `json:"return_partial_on_cancel,omitempty"`
}

// Apply merges the request into base and validates the result
func (req SimulationRequest) Apply(base risk.Config) (risk.Config, error) {
	cfg := base
	if req.HorizonDays != nil {
		cfg.HorizonDays = *req.HorizonDays
	}
	if req.Trials != nil {
		cfg.Trials = *req.Trials
	}
	if req.BatchSize != nil {
		cfg.BatchSize = *req.BatchSize
	}
	if req.Seed != nil {
		cfg.Seed = *req.Seed
	}
	if req.Workers != nil {
		cfg.Workers = *req.Workers
	}
	if req.Mode != nil {
		mode, err := risk.ParseMode(*req.Mode)
		if err != nil {
			return cfg, err
		}
		cfg.Mode = mode
	}
	if req.LookbackDays != nil {
		cfg.LookbackDays = *req.LookbackDays
	}
	if req.PriceField != nil {
		field, ok := contracts.ParsePriceField(*req.PriceField)
		if !ok {
			return cfg, fmt.Errorf("%w: unknown price field %q", risk.ErrInvalidConfig, *req.PriceField)
		}
		cfg.PriceField = field
	}
	if req.ReturnPartialOnCancel != nil {
		cfg.ReturnPartialOnCancel = *req.ReturnPartialOnCancel
	}
	cfg.IncludeDistribution = req.IncludeDistribution

	if cfg.Trials > maxRequestTrials {
		return cfg, fmt.Errorf("%w: trials %d exceeds limit %d", risk.ErrInvalidConfig, cfg.Trials, maxRequestTrials)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// SimulationResponse is the body of a finished run
type SimulationResponse struct {
	Summary   *risk.Summary         `json:"summary"`
	RiskCheck *risk.RiskCheckResult `json:"risk_check"`
}

// Run executes a synchronous simulation
// POST /api/simulations
func (h *SimulationHandler) Run(w http.ResponseWriter, r *http.Request) {
	var req SimulationRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	cfg, err := req.Apply(h.defaults)
	if err != nil {
		respondRunError(w, err)
		return
	}

	summary, err := h.run(r.Context(), cfg)
	if err != nil {
		respondRunError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, SimulationResponse{
		Summary:   summary,
		RiskCheck: h.engine.CheckLimits(summary, h.limits),
	})
}

// run loads the composition for cfg's window and simulates it
func (h *SimulationHandler) run(ctx context.Context, cfg risk.Config, opts ...risk.Option) (*risk.Summary, error) {
	comp, err := h.composition(cfg.PriceField, cfg.LookbackDays).Composition(ctx)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load composition")
		return nil, err
	}

	summary, err := h.engine.Run(ctx, comp, cfg, opts...)
	if err != nil {
		h.logger.WithError(err).Warn("Simulation failed")
		return nil, err
	}

	h.logger.WithFields(map[string]interface{}{
		"run_id": summary.RunID,
		"trials": summary.EffectiveTrials,
		"mean":   summary.Mean,
		"var_95": summary.VaR95,
	}).Info("Simulation completed")
	return summary, nil
}
