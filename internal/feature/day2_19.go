package feature

import (
	"fmt"

	"github.com/nitinkhare/stockrs-go/internal/stockerr"
	"github.com/nitinkhare/stockrs-go/internal/types"
)

// day2/day19 compute the previous trading day's relationship to today's
// open and to the morning window: gap direction, gap-fill behavior, and a
// 20-day rolling gap-frequency summary.

const extremeGapThreshold = 0.03

func priorDay(b Bundle) (types.BarDaily, error) {
	bars, err := b.Market.DailyPrevN(b.Stock, b.Asof, 1)
	if err != nil {
		return types.BarDaily{}, err
	}
	if len(bars) == 0 {
		return types.BarDaily{}, stockerr.New(stockerr.KindNoStockData, "feature.day19", fmt.Sprintf("no prior day for %s before %d", b.Stock, b.Asof))
	}
	return bars[0], nil
}

func gapRatio(todayOpen int64, priorClose int64) float64 {
	if priorClose == 0 {
		return 0
	}
	return (float64(todayOpen) - float64(priorClose)) / float64(priorClose)
}

func init() {
	Register("day19.gap_percent", func(b Bundle) (float64, error) {
		if err := requireWindow(b); err != nil {
			return 0, err
		}
		prior, err := priorDay(b)
		if err != nil {
			return 0, err
		}
		open, _ := b.Window.FirstOpen()
		g := gapRatio(open, prior.Close)
		return clamp(g, -0.1, 0.1) * 10, nil
	})

	Register("day19.gap_up_flag", func(b Bundle) (float64, error) {
		g, err := evalGap(b)
		if err != nil {
			return 0, err
		}
		if g > 0 {
			return 1, nil
		}
		return 0, nil
	})

	Register("day19.gap_down_flag", func(b Bundle) (float64, error) {
		g, err := evalGap(b)
		if err != nil {
			return 0, err
		}
		if g < 0 {
			return 1, nil
		}
		return 0, nil
	})

	Register("day19.gap_above_prior_high_flag", func(b Bundle) (float64, error) {
		if err := requireWindow(b); err != nil {
			return 0, err
		}
		prior, err := priorDay(b)
		if err != nil {
			return 0, err
		}
		open, _ := b.Window.FirstOpen()
		if open > prior.High {
			return 1, nil
		}
		return 0, nil
	})

	Register("day19.gap_below_prior_low_flag", func(b Bundle) (float64, error) {
		if err := requireWindow(b); err != nil {
			return 0, err
		}
		prior, err := priorDay(b)
		if err != nil {
			return 0, err
		}
		open, _ := b.Window.FirstOpen()
		if open < prior.Low {
			return 1, nil
		}
		return 0, nil
	})

	Register("day19.gap_fill_flag", func(b Bundle) (float64, error) {
		filled, _, err := gapFillState(b)
		if err != nil {
			return 0, err
		}
		if filled {
			return 1, nil
		}
		return 0, nil
	})

	Register("day19.gap_unfilled_flag", func(b Bundle) (float64, error) {
		filled, gapped, err := gapFillState(b)
		if err != nil {
			return 0, err
		}
		if gapped && !filled {
			return 1, nil
		}
		return 0, nil
	})

	Register("day19.follow_through_return", func(b Bundle) (float64, error) {
		if err := requireWindow(b); err != nil {
			return 0, err
		}
		open, _ := b.Window.FirstOpen()
		close, _ := b.Window.LastClose()
		if open == 0 {
			return 0, nil
		}
		return (float64(close) - float64(open)) / float64(open), nil
	})

	Register("day19.opening_range_pct", func(b Bundle) (float64, error) {
		if err := requireWindow(b); err != nil {
			return 0, err
		}
		first := b.Window.Bars[0]
		if first.Open == 0 {
			return 0, nil
		}
		return float64(first.High-first.Low) / float64(first.Open), nil
	})

	Register("day19.prior_range_ratio", func(b Bundle) (float64, error) {
		if err := requireWindow(b); err != nil {
			return 0, err
		}
		prior, err := priorDay(b)
		if err != nil {
			return 0, err
		}
		priorRange := float64(prior.High - prior.Low)
		if priorRange == 0 {
			return 0, nil
		}
		high, _ := b.Window.MaxHigh()
		low, _ := b.Window.MinLow()
		return float64(high-low) / priorRange, nil
	})

	Register("day19.current_vs_prior_close", func(b Bundle) (float64, error) {
		if err := requireWindow(b); err != nil {
			return 0, err
		}
		prior, err := priorDay(b)
		if err != nil {
			return 0, err
		}
		close, _ := b.Window.LastClose()
		if prior.Close == 0 {
			return 0, nil
		}
		return (float64(close) - float64(prior.Close)) / float64(prior.Close), nil
	})

	Register("day19.gap_up_freq_20d", func(b Bundle) (float64, error) {
		rates, err := gap20dStats(b)
		if err != nil {
			return 0, err
		}
		return rates.upFreq, nil
	})

	Register("day19.gap_down_freq_20d", func(b Bundle) (float64, error) {
		rates, err := gap20dStats(b)
		if err != nil {
			return 0, err
		}
		return rates.downFreq, nil
	})

	Register("day19.gap_fill_rate_20d", func(b Bundle) (float64, error) {
		rates, err := gap20dStats(b)
		if err != nil {
			return 0, err
		}
		return rates.fillRate, nil
	})

	Register("day19.extreme_gap_flag", func(b Bundle) (float64, error) {
		g, err := evalGap(b)
		if err != nil {
			return 0, err
		}
		if g > extremeGapThreshold || g < -extremeGapThreshold {
			return 1, nil
		}
		return 0, nil
	})
}

func evalGap(b Bundle) (float64, error) {
	if err := requireWindow(b); err != nil {
		return 0, err
	}
	prior, err := priorDay(b)
	if err != nil {
		return 0, err
	}
	open, _ := b.Window.FirstOpen()
	return gapRatio(open, prior.Close), nil
}

// gapFillState reports whether the morning window's range retraced back
// through the prior close after a gap, and whether a gap occurred at all.
func gapFillState(b Bundle) (filled, gapped bool, err error) {
	if err := requireWindow(b); err != nil {
		return false, false, err
	}
	prior, err := priorDay(b)
	if err != nil {
		return false, false, err
	}
	open, _ := b.Window.FirstOpen()
	g := gapRatio(open, prior.Close)
	if g == 0 {
		return false, false, nil
	}
	high, _ := b.Window.MaxHigh()
	low, _ := b.Window.MinLow()
	if g > 0 {
		return low <= prior.Close, true, nil
	}
	return high >= prior.Close, true, nil
}

type gap20d struct {
	upFreq, downFreq, fillRate float64
}

// gap20dStats computes gap-direction and gap-fill frequencies across the
// 20 trading days preceding asof, using only closed daily bars (no
// intraday fill data for historical days, so "fill" here means the next
// day's low/high crossed back through the prior close).
func gap20dStats(b Bundle) (gap20d, error) {
	bars, err := b.Market.DailyPrevN(b.Stock, b.Asof, 21)
	if err != nil {
		return gap20d{}, err
	}
	if len(bars) < 2 {
		return gap20d{}, nil
	}
	var ups, downs, fills, gapped int
	for i := 1; i < len(bars); i++ {
		g := gapRatio(bars[i].Open, bars[i-1].Close)
		if g == 0 {
			continue
		}
		gapped++
		if g > 0 {
			ups++
			if bars[i].Low <= bars[i-1].Close {
				fills++
			}
		} else {
			downs++
			if bars[i].High >= bars[i-1].Close {
				fills++
			}
		}
	}
	n := float64(len(bars) - 1)
	if n == 0 {
		return gap20d{}, nil
	}
	out := gap20d{upFreq: float64(ups) / n, downFreq: float64(downs) / n}
	if gapped > 0 {
		out.fillRate = float64(fills) / float64(gapped)
	}
	return out, nil
}
