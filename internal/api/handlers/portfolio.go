package handlers

import (
	"net/http"
	"time"

	"github.com/wonny/mcrisk/internal/contracts"
	"github.com/wonny/mcrisk/internal/s0_data/quality"
	"github.com/wonny/mcrisk/pkg/logger"
)

// PortfolioHandler serves the current composition and its weights
type PortfolioHandler struct {
	composition contracts.CompositionProvider
	quality     quality.Config
	logger      *logger.Logger
}

// NewPortfolioHandler creates a new portfolio handler
func NewPortfolioHandler(composition contracts.CompositionProvider, qc quality.Config, log *logger.Logger) *PortfolioHandler {
	return &PortfolioHandler{
		composition: composition,
		quality:     qc,
		logger:      log,
	}
}

// PositionView is one position with its current valuation
type PositionView struct {
	Ticker       string  `json:"ticker"`
	Quantity     float64 `json:"quantity"`
	AssetClass   string  `json:"asset_class,omitempty"`
	Sector       string  `json:"sector,omitempty"`
	LastPrice    float64 `json:"last_price"`
	Value        float64 `json:"value"`
	Weight       float64 `json:"weight"`
	Observations int     `json:"observations"`
}

// PortfolioResponse is the body of GET /api/portfolio
type PortfolioResponse struct {
	AsOf       time.Time            `json:"as_of"`
	PriceField contracts.PriceField `json:"price_field"`
	TotalValue float64              `json:"total_value"`
	Positions  []PositionView       `json:"positions"`
	Quality    *quality.Report      `json:"quality"`
}

// GetPortfolio returns positions, weights and a history quality report
// GET /api/portfolio
func (h *PortfolioHandler) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	comp, err := h.composition.Composition(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to load composition")
		respondRunError(w, err)
		return
	}

	values := comp.Values()
	weights := comp.Weights()
	resp := PortfolioResponse{
		AsOf:       comp.AsOf,
		PriceField: comp.PriceField,
		TotalValue: comp.TotalValue(),
		Positions:  make([]PositionView, len(comp.Positions)),
		Quality:    quality.Check(comp, h.quality),
	}
	for i, p := range comp.Positions {
		last, _ := p.Series.LastPrice(comp.PriceField)
		resp.Positions[i] = PositionView{
			Ticker:       p.Ticker(),
			Quantity:     p.Quantity,
			AssetClass:   p.AssetClass,
			Sector:       p.Sector,
			LastPrice:    last,
			Value:        values[i],
			Weight:       weights[i],
			Observations: p.Series.Len(),
		}
	}

	respondJSON(w, http.StatusOK, resp)
}

// WeightsResponse is the body of GET /api/portfolio/weights
type WeightsResponse struct {
	By         contracts.GroupBy       `json:"by"`
	TotalValue float64                 `json:"total_value"`
	Groups     []contracts.WeightGroup `json:"groups"`
}

// GetWeights returns value weights grouped by ticker, sector or asset class
// GET /api/portfolio/weights?by=sector
func (h *PortfolioHandler) GetWeights(w http.ResponseWriter, r *http.Request) {
	by, ok := contracts.ParseGroupBy(r.URL.Query().Get("by"))
	if !ok {
		respondError(w, http.StatusBadRequest, "by must be one of: ticker, sector, asset_class")
		return
	}

	comp, err := h.composition.Composition(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to load composition")
		respondRunError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, WeightsResponse{
		By:         by,
		TotalValue: comp.TotalValue(),
		Groups:     comp.WeightsBy(by),
	})
}
