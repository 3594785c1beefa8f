package commands

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/wonny/mcrisk/internal/contracts"
	"github.com/wonny/mcrisk/internal/risk"
	"github.com/wonny/mcrisk/internal/s0_data/quality"
)

// ═══════════════════════════════════════════════════════════
// Common Formatting Utilities
// 모든 커맨드가 동일한 출력 포맷을 사용하도록 통일
// ═══════════════════════════════════════════════════════════

const (
	lineSingle = "───────────────────────────────────────────────────────────"
	lineDouble = "═══════════════════════════════════════════════════════════"
	barWidth   = 30
)

// PrintHeader prints a titled block header
func PrintHeader(w io.Writer, title string) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, lineDouble)
	fmt.Fprintf(w, "  %s\n", title)
	fmt.Fprintln(w, lineSingle)
}

// PrintSeparator prints a visual separator
func PrintSeparator(w io.Writer) {
	fmt.Fprintln(w, lineSingle)
}

// PrintWarning prints a warning message
func PrintWarning(w io.Writer, message string) {
	fmt.Fprintf(w, "⚠️  %s\n", message)
}

// PrintSuccess prints a success message
func PrintSuccess(w io.Writer, message string) {
	fmt.Fprintf(w, "✅ %s\n", message)
}

// PrintError prints an error message
func PrintError(w io.Writer, message string) {
	fmt.Fprintf(w, "❌ %s\n", message)
}

// PrintKeyValue prints key-value pairs
func PrintKeyValue(w io.Writer, key string, value string, keyWidth int) {
	fmt.Fprintf(w, "   %-*s : %s\n", keyWidth, key, value)
}

// PrintTableHeader prints a table header
func PrintTableHeader(w io.Writer, columns []string, widths []int) {
	PrintTableRow(w, columns, widths)

	// Separator line
	totalWidth := 0
	for i, width := range widths {
		totalWidth += width
		if i < len(widths)-1 {
			totalWidth += 2 // spacing
		}
	}
	fmt.Fprintln(w, strings.Repeat("─", totalWidth))
}

// PrintTableRow prints a table row
func PrintTableRow(w io.Writer, values []string, widths []int) {
	for i, val := range values {
		fmt.Fprintf(w, "%-*s", widths[i], val)
		if i < len(values)-1 {
			fmt.Fprint(w, "  ")
		}
	}
	fmt.Fprintln(w)
}

// formatMoney formats a value with thousands separators and 2 decimals
func formatMoney(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "n/a"
	}
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	s := fmt.Sprintf("%.2f", v)
	intPart, frac := s[:len(s)-3], s[len(s)-3:]

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + b.String() + frac
}

// formatPct formats a ratio as a percentage (0.1234 → 12.34%)
func formatPct(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "n/a"
	}
	return fmt.Sprintf("%.2f%%", v*100)
}

// bar renders a weight (0~1) as a fixed-width bar
func bar(weight float64) string {
	if weight < 0 || math.IsNaN(weight) {
		weight = 0
	}
	if weight > 1 {
		weight = 1
	}
	n := int(math.Round(weight * barWidth))
	return strings.Repeat("█", n) + strings.Repeat("·", barWidth-n)
}

// formatOutcome formats a terminal outcome by mode
func formatOutcome(mode risk.Mode, v float64) string {
	if mode == risk.ModeReturn {
		return formatPct(v)
	}
	return formatMoney(v)
}

// printSummary prints a simulation summary as a key/value block
func printSummary(w io.Writer, s *risk.Summary) {
	title := "Monte Carlo Projection"
	if s.Partial {
		title += " (PARTIAL)"
	}
	PrintHeader(w, title)

	years := float64(s.HorizonDays) / 252
	PrintKeyValue(w, "Run ID", s.RunID, 14)
	PrintKeyValue(w, "Mode", string(s.Mode), 14)
	PrintKeyValue(w, "Horizon", fmt.Sprintf("%d trading days (%.1f years)", s.HorizonDays, years), 14)
	PrintKeyValue(w, "Trials", fmt.Sprintf("%d of %d requested", s.EffectiveTrials, s.RequestedTrials), 14)
	PrintKeyValue(w, "Seed", fmt.Sprintf("%d", s.Seed), 14)
	PrintKeyValue(w, "Initial value", formatMoney(s.InitialValue), 14)
	PrintKeyValue(w, "Duration", s.Duration.Round(time.Millisecond).String(), 14)
	PrintSeparator(w)

	PrintKeyValue(w, "Mean", formatOutcome(s.Mode, s.Mean), 14)
	PrintKeyValue(w, "Median", formatOutcome(s.Mode, s.Median), 14)
	PrintKeyValue(w, "Std dev", formatOutcome(s.Mode, s.StdDev), 14)
	PrintKeyValue(w, "5th pct", formatOutcome(s.Mode, s.P5), 14)
	PrintKeyValue(w, "95th pct", formatOutcome(s.Mode, s.P95), 14)
	PrintKeyValue(w, "Min / Max", formatOutcome(s.Mode, s.Min)+" / "+formatOutcome(s.Mode, s.Max), 14)
	PrintSeparator(w)

	PrintKeyValue(w, "VaR 95", formatPct(s.VaR95), 14)
	PrintKeyValue(w, "CVaR 95", formatPct(s.CVaR95), 14)
	PrintKeyValue(w, "P(loss)", formatPct(s.ProbabilityLoss), 14)
	fmt.Fprintln(w, lineDouble)
}

// printRiskCheck prints limit check results
func printRiskCheck(w io.Writer, rc *risk.RiskCheckResult) {
	if rc.Passed {
		PrintSuccess(w, "Risk limits OK")
		return
	}
	for _, v := range rc.Violations {
		PrintWarning(w, v)
	}
}

// printWeights prints a weight report with bars
func printWeights(w io.Writer, by contracts.GroupBy, groups []contracts.WeightGroup) {
	widths := []int{16, 16, 8, barWidth}
	PrintTableHeader(w, []string{strings.ToUpper(string(by)), "VALUE", "WEIGHT", ""}, widths)
	for _, g := range groups {
		PrintTableRow(w, []string{g.Key, formatMoney(g.Value), formatPct(g.Weight), bar(g.Weight)}, widths)
	}
}

// printQuality prints quality warnings (nothing when clean)
func printQuality(w io.Writer, r *quality.Report) {
	for _, msg := range r.Warnings {
		PrintWarning(w, msg)
	}
	if !r.Passed {
		PrintWarning(w, fmt.Sprintf("history quality check failed (score %.2f)", r.Score))
	}
}
