package risk

import (
	"math"
	"sort"
)

// =============================================================================
// VaR (Value at Risk) Calculation
// =============================================================================

// CalculateVaR 경험적 분포 기반 VaR 계산
// returns: 수익률 배열 (양수=이익, 음수=손실), 시뮬레이션 최종 수익률에도 그대로 사용
// confidence: 신뢰수준 (예: 0.95, 0.99)
// 반환값: VaR는 손실을 양수로 표현 (예: 0.05 = 5% 손실 가능)
func CalculateVaR(returns []float64, confidence float64) VaRResult {
	if len(returns) == 0 {
		return VaRResult{Confidence: confidence, VaR: 0, CVaR: 0}
	}

	// 수익률 정렬 (오름차순: 손실이 앞에)
	sorted := make([]float64, len(returns))
	copy(sorted, returns)
	sort.Float64s(sorted)

	// VaR: (1-confidence) 백분위수
	// 예: 95% VaR = 하위 5% 백분위수
	percentile := 1.0 - confidence
	idx := int(math.Floor(percentile * float64(len(sorted))))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}

	// VaR = 손실을 양수로 표현
	var varValue float64
	if sorted[idx] < 0 {
		varValue = -sorted[idx]
	} else {
		varValue = 0 // 손실 없음
	}

	// CVaR (Expected Shortfall): VaR 이하의 평균 손실
	cvar := CalculateCVaR(sorted, idx)

	return VaRResult{
		Confidence: confidence,
		VaR:        varValue,
		CVaR:       cvar,
	}
}

// CalculateCVaR Conditional VaR (Expected Shortfall) 계산
// sorted: 오름차순 정렬된 수익률
// varIdx: VaR 인덱스 (이 인덱스 이하의 수익률이 tail)
func CalculateCVaR(sorted []float64, varIdx int) float64 {
	if len(sorted) == 0 || varIdx < 0 {
		return 0
	}

	// VaR 인덱스까지의 수익률 평균 (tail 평균)
	var sum float64
	count := varIdx + 1
	for i := 0; i <= varIdx && i < len(sorted); i++ {
		sum += sorted[i]
	}

	if count == 0 {
		return 0
	}

	avgTailReturn := sum / float64(count)

	// CVaR = 손실을 양수로 표현
	if avgTailReturn < 0 {
		return -avgTailReturn
	}
	return 0
}

// =============================================================================
// 통계 유틸리티
// =============================================================================

// Mean 평균 계산
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// StdDev 표본 표준편차 (n-1), 1개 이하면 0
func StdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := Mean(values)
	var sumSq float64
	for _, v := range values {
		diff := v - mean
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(len(values)-1))
}

// Percentile 백분위수 계산 (선형 보간)
// sorted: 오름차순 정렬, p: 0~100
// index = p/100·(n-1), 예: [10,20,30,40,100] → P5=12, P95=88
func Percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}

	idx := p / 100.0 * float64(len(sorted)-1)
	lower := int(math.Floor(idx))
	upper := lower + 1

	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}

	// 선형 보간
	weight := idx - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}
