package contracts

import (
	"math"
	"time"
)

// PricePoint is one daily observation for an asset
// ⭐ SSOT: 가격 이력의 최소 단위 (data layer → risk)
type PricePoint struct {
	Date     time.Time `json:"date"`
	Close    float64   `json:"close"`
	AdjClose float64   `json:"adj_close,omitempty"` // 0 = 없음
}

// PriceField selects which column of a PricePoint is used
type PriceField string

const (
	FieldClose    PriceField = "close"
	FieldAdjClose PriceField = "adj_close"
)

// ParsePriceField validates a configured price field name
func ParsePriceField(s string) (PriceField, bool) {
	switch PriceField(s) {
	case FieldClose, FieldAdjClose:
		return PriceField(s), true
	case "":
		return FieldClose, true
	}
	return "", false
}

// Value returns the selected price and whether it is usable.
// 0 이하, NaN, Inf는 결측으로 취급
func (p PricePoint) Value(field PriceField) (float64, bool) {
	v := p.Close
	if field == FieldAdjClose {
		v = p.AdjClose
	}
	if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// AssetSeries is the chronological price history of one asset
type AssetSeries struct {
	Ticker string       `json:"ticker"`
	Points []PricePoint `json:"points"`
}

// Len returns the number of observations
func (s AssetSeries) Len() int {
	return len(s.Points)
}

// Last returns the most recent observation
func (s AssetSeries) Last() (PricePoint, bool) {
	if len(s.Points) == 0 {
		return PricePoint{}, false
	}
	return s.Points[len(s.Points)-1], true
}

// LastPrice returns the most recent usable price for field
func (s AssetSeries) LastPrice(field PriceField) (float64, bool) {
	for i := len(s.Points) - 1; i >= 0; i-- {
		if v, ok := s.Points[i].Value(field); ok {
			return v, true
		}
	}
	return 0, false
}
