// Package analytics computes performance metrics from a run's Trade and
// DayOverview rows.
//
// It provides:
//   - Win rate, total P&L, average P&L (over realized Sell fills)
//   - Maximum drawdown (absolute and percentage) from the daily equity curve
//   - Sharpe ratio (annualized, assuming 252 trading days)
//   - Profit factor (gross profit / gross loss)
//   - Per-stock breakdown
//   - Human-readable formatted report and a PNG equity-curve chart
//
// All functions are stateless and work on the Journal's own row types —
// there is no entry/exit pairing in this schema (each Trade is a single
// booked fill), so hold-time metrics have no equivalent here.
package analytics

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/nitinkhare/stockrs-go/internal/types"
)

// PerformanceReport holds all computed performance metrics.
type PerformanceReport struct {
	// Fill counts: every Buy and Sell ever recorded.
	TotalFills int

	// Realized round-trip stats, counted over Sell fills only — a Buy's
	// profit is always -fee and carries no win/loss information.
	WinningTrades int
	LosingTrades  int
	WinRate       float64 // percentage (0-100)

	TotalPnL    float64
	AveragePnL  float64
	GrossProfit float64
	GrossLoss   float64
	TotalFees   float64

	// Risk metrics, computed from the daily equity curve.
	MaxDrawdown    float64 // absolute, in equity units
	MaxDrawdownPct float64 // percentage drawdown from peak
	SharpeRatio    float64 // annualized
	ProfitFactor   float64 // gross profit / gross loss

	// Per-stock breakdown.
	StockReports map[types.StockCode]*StockReport
}

// StockReport holds per-stock performance metrics.
type StockReport struct {
	Stock         types.StockCode
	TotalFills    int
	WinningTrades int
	LosingTrades  int
	WinRate       float64
	TotalPnL      float64
	AveragePnL    float64
}

// EquityCurvePoint is one day's closing equity, as recorded by the
// overview table's Insert/Update/Finalize lifecycle.
type EquityCurvePoint struct {
	Date     string
	Equity   float64
	Drawdown float64
}

// Analyze computes the full performance report from every fill recorded
// across a run. Drawdown and Sharpe come from overview; when overview is
// empty they stay zero. Returns an empty (non-nil) report when trades is
// empty.
func Analyze(trades []types.Trade, overview []types.DayOverview) *PerformanceReport {
	report := &PerformanceReport{
		StockReports: make(map[types.StockCode]*StockReport),
	}
	if len(trades) == 0 {
		return report
	}

	var realizedPnLs []float64

	for _, t := range trades {
		report.TotalFills++
		report.TotalFees += t.Fee

		sr, ok := report.StockReports[t.Stock]
		if !ok {
			sr = &StockReport{Stock: t.Stock}
			report.StockReports[t.Stock] = sr
		}
		sr.TotalFills++
		sr.TotalPnL += t.Profit

		if t.Side != types.SideSell {
			continue
		}

		report.TotalPnL += t.Profit
		realizedPnLs = append(realizedPnLs, t.Profit)

		if t.Profit > 0 {
			report.WinningTrades++
			report.GrossProfit += t.Profit
			sr.WinningTrades++
		} else if t.Profit < 0 {
			report.LosingTrades++
			report.GrossLoss += math.Abs(t.Profit)
			sr.LosingTrades++
		}
	}

	if len(realizedPnLs) > 0 {
		report.WinRate = float64(report.WinningTrades) / float64(len(realizedPnLs)) * 100
		report.AveragePnL = report.TotalPnL / float64(len(realizedPnLs))
	}

	if report.GrossLoss > 0 {
		report.ProfitFactor = report.GrossProfit / report.GrossLoss
	} else if report.GrossProfit > 0 {
		report.ProfitFactor = math.Inf(1)
	}

	for _, sr := range report.StockReports {
		if sr.WinningTrades+sr.LosingTrades > 0 {
			sr.WinRate = float64(sr.WinningTrades) / float64(sr.WinningTrades+sr.LosingTrades) * 100
		}
		if sr.TotalFills > 0 {
			sr.AveragePnL = sr.TotalPnL / float64(sr.TotalFills)
		}
	}

	curve := EquityCurve(overview)
	report.MaxDrawdown, report.MaxDrawdownPct = maxDrawdown(curve)
	report.SharpeRatio = computeSharpeRatio(dailyReturns(curve))

	return report
}

// EquityCurve reads the closing equity straight off each overview row —
// UpdateOverview tracks the day's running equity in the same
// high/low/close columns a price series would use, so no reconstruction
// from trades is needed. Rows are expected pre-sorted by date (as
// Journal.OverviewRange returns them).
func EquityCurve(overview []types.DayOverview) []EquityCurvePoint {
	if len(overview) == 0 {
		return nil
	}
	points := make([]EquityCurvePoint, 0, len(overview))
	peak := overview[0].Open
	for _, o := range overview {
		if o.Close > peak {
			peak = o.Close
		}
		dd := peak - o.Close
		points = append(points, EquityCurvePoint{Date: o.Date, Equity: o.Close, Drawdown: dd})
	}
	return points
}

// RenderEquityChart renders a PNG line chart of the equity curve, in the
// same single-series line-chart shape used elsewhere in this codebase's
// ancestry for portfolio value over time.
func RenderEquityChart(points []EquityCurvePoint) ([]byte, error) {
	if len(points) < 2 {
		return nil, fmt.Errorf("analytics: need at least 2 equity points, got %d", len(points))
	}

	xValues := make([]time.Time, len(points))
	yValues := make([]float64, len(points))
	for i, p := range points {
		d, err := time.Parse("2006-01-02", p.Date)
		if err != nil {
			return nil, fmt.Errorf("analytics: parse equity point date %q: %w", p.Date, err)
		}
		xValues[i] = d
		yValues[i] = p.Equity
	}

	series := chart.TimeSeries{
		Name: "Equity",
		Style: chart.Style{
			StrokeColor: drawing.ColorFromHex("2563eb"),
			StrokeWidth: 2.5,
		},
		XValues: xValues,
		YValues: yValues,
	}

	graph := chart.Chart{
		Title:  "Equity Curve",
		Width:  900,
		Height: 400,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 10, Right: 20, Bottom: 10},
		},
		XAxis: chart.XAxis{
			TickPosition: chart.TickPositionBetweenTicks,
			ValueFormatter: func(v interface{}) string {
				if t, ok := v.(float64); ok {
					return chart.TimeFromFloat64(t).Format("02 Jan")
				}
				return ""
			},
		},
		YAxis: chart.YAxis{
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return humanize.Commaf(f)
				}
				return ""
			},
		},
		Series: []chart.Series{series},
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("analytics: chart render failed: %w", err)
	}
	return buf.Bytes(), nil
}

// FormatReport returns a human-readable text summary of the performance
// report, currency figures rendered with go-humanize.
func FormatReport(report *PerformanceReport) string {
	if report == nil || report.TotalFills == 0 {
		return "No trades to analyze."
	}

	var b strings.Builder

	b.WriteString("===================================================\n")
	b.WriteString("              PERFORMANCE REPORT\n")
	b.WriteString("===================================================\n\n")

	b.WriteString("-- FILLS --\n")
	fmt.Fprintf(&b, "  Total fills:     %d\n", report.TotalFills)
	fmt.Fprintf(&b, "  Winning trades:  %d (%.1f%%)\n", report.WinningTrades, report.WinRate)
	fmt.Fprintf(&b, "  Losing trades:   %d\n", report.LosingTrades)
	b.WriteString("\n")

	b.WriteString("-- PROFIT & LOSS --\n")
	fmt.Fprintf(&b, "  Total P&L:       Rs. %s\n", humanize.FormatFloat("#,###.##", report.TotalPnL))
	fmt.Fprintf(&b, "  Average P&L:     Rs. %s\n", humanize.FormatFloat("#,###.##", report.AveragePnL))
	fmt.Fprintf(&b, "  Gross profit:    Rs. %s\n", humanize.FormatFloat("#,###.##", report.GrossProfit))
	fmt.Fprintf(&b, "  Gross loss:      Rs. %s\n", humanize.FormatFloat("#,###.##", report.GrossLoss))
	fmt.Fprintf(&b, "  Total fees:      Rs. %s\n", humanize.FormatFloat("#,###.##", report.TotalFees))
	fmt.Fprintf(&b, "  Profit factor:   %.2f\n", report.ProfitFactor)
	b.WriteString("\n")

	b.WriteString("-- RISK METRICS --\n")
	fmt.Fprintf(&b, "  Max drawdown:    Rs. %s (%.2f%%)\n", humanize.FormatFloat("#,###.##", report.MaxDrawdown), report.MaxDrawdownPct)
	fmt.Fprintf(&b, "  Sharpe ratio:    %.2f\n", report.SharpeRatio)
	b.WriteString("\n")

	if len(report.StockReports) > 1 {
		b.WriteString("-- STOCK BREAKDOWN --\n")
		stocks := make([]types.StockCode, 0, len(report.StockReports))
		for s := range report.StockReports {
			stocks = append(stocks, s)
		}
		sort.Slice(stocks, func(i, j int) bool { return stocks[i] < stocks[j] })
		for _, s := range stocks {
			sr := report.StockReports[s]
			fmt.Fprintf(&b, "  [%s]\n", sr.Stock)
			fmt.Fprintf(&b, "    Fills: %d | Win rate: %.1f%% | P&L: Rs. %s\n",
				sr.TotalFills, sr.WinRate, humanize.FormatFloat("#,###.##", sr.TotalPnL))
		}
		b.WriteString("\n")
	}

	b.WriteString("===================================================\n")
	return b.String()
}

// ────────────────────────────────────────────────────────────────────
// Helpers
// ────────────────────────────────────────────────────────────────────

func maxDrawdown(curve []EquityCurvePoint) (absolute, pct float64) {
	for _, p := range curve {
		if p.Drawdown > absolute {
			absolute = p.Drawdown
			if p.Equity+p.Drawdown > 0 {
				pct = p.Drawdown / (p.Equity + p.Drawdown) * 100
			}
		}
	}
	return absolute, pct
}

func dailyReturns(curve []EquityCurvePoint) []float64 {
	if len(curve) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if prev == 0 {
			continue
		}
		returns = append(returns, (curve[i].Equity-prev)/prev)
	}
	return returns
}

// computeSharpeRatio calculates the annualized Sharpe ratio from a slice of
// daily returns. Assumes zero risk-free rate and 252 trading days per year.
func computeSharpeRatio(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}

	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	var variance float64
	for _, r := range returns {
		diff := r - mean
		variance += diff * diff
	}
	variance /= float64(len(returns) - 1)
	stdDev := math.Sqrt(variance)

	if stdDev == 0 {
		return 0
	}

	return (mean / stdDev) * math.Sqrt(252)
}
