package feature

import (
	"fmt"

	"github.com/nitinkhare/stockrs-go/internal/stockerr"
	"github.com/nitinkhare/stockrs-go/internal/types"
)

// day3/day17 describe where the current price sits relative to its own
// recent multi-day history: breakouts, range position, touch counts, and
// range contraction/expansion.

const (
	sixMonthTradingDays = 126
	yearTradingDays     = 252
	touchTolerance      = 0.005
)

func priorWindow(b Bundle, n int) ([]types.BarDaily, error) {
	bars, err := b.Market.DailyPrevN(b.Stock, b.Asof, n)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, stockerr.New(stockerr.KindNoStockData, "feature.day3", fmt.Sprintf("no history for %s before %d", b.Stock, b.Asof))
	}
	return bars, nil
}

func highLow(bars []types.BarDaily) (high, low int64) {
	high, low = bars[0].High, bars[0].Low
	for _, bar := range bars[1:] {
		if bar.High > high {
			high = bar.High
		}
		if bar.Low < low {
			low = bar.Low
		}
	}
	return
}

func init() {
	Register("day3.breaks_6m_high_flag", func(b Bundle) (float64, error) {
		if err := requireWindow(b); err != nil {
			return 0, err
		}
		bars, err := priorWindow(b, sixMonthTradingDays)
		if err != nil {
			return 0, err
		}
		high, _ := highLow(bars)
		close, _ := b.Window.LastClose()
		if close > high {
			return 1, nil
		}
		return 0, nil
	})

	Register("day3.breaks_52w_high_flag", func(b Bundle) (float64, error) {
		if err := requireWindow(b); err != nil {
			return 0, err
		}
		bars, err := priorWindow(b, yearTradingDays)
		if err != nil {
			return 0, err
		}
		high, _ := highLow(bars)
		close, _ := b.Window.LastClose()
		if close > high {
			return 1, nil
		}
		return 0, nil
	})

	registerPositionVsN(20)
	registerPositionVsN(60)

	Register("day17.touches_count_n", func(b Bundle) (float64, error) {
		if err := requireWindow(b); err != nil {
			return 0, err
		}
		bars, err := priorWindow(b, 20)
		if err != nil {
			return 0, err
		}
		high, _ := highLow(bars)
		count := 0
		for _, bar := range bars {
			if float64(high-bar.High)/float64(high) <= touchTolerance {
				count++
			}
		}
		return float64(count), nil
	})

	Register("day17.range_contraction_flag", func(b Bundle) (float64, error) {
		contracted, _, err := rangeTrend(b)
		if err != nil {
			return 0, err
		}
		if contracted {
			return 1, nil
		}
		return 0, nil
	})

	Register("day17.range_expansion_flag", func(b Bundle) (float64, error) {
		_, expanded, err := rangeTrend(b)
		if err != nil {
			return 0, err
		}
		if expanded {
			return 1, nil
		}
		return 0, nil
	})

	Register("day17.double_top_flag", func(b Bundle) (float64, error) {
		top, _, err := doublePattern(b)
		if err != nil {
			return 0, err
		}
		if top {
			return 1, nil
		}
		return 0, nil
	})

	Register("day17.double_bottom_flag", func(b Bundle) (float64, error) {
		_, bottom, err := doublePattern(b)
		if err != nil {
			return 0, err
		}
		if bottom {
			return 1, nil
		}
		return 0, nil
	})
}

func registerPositionVsN(n int) {
	Register(fmt.Sprintf("day3.position_vs_%dd_high", n), func(b Bundle) (float64, error) {
		if err := requireWindow(b); err != nil {
			return 0, err
		}
		bars, err := priorWindow(b, n)
		if err != nil {
			return 0, err
		}
		high, _ := highLow(bars)
		close, _ := b.Window.LastClose()
		if high == 0 {
			return 0, nil
		}
		return (float64(close) - float64(high)) / float64(high), nil
	})
	Register(fmt.Sprintf("day3.position_vs_%dd_low", n), func(b Bundle) (float64, error) {
		if err := requireWindow(b); err != nil {
			return 0, err
		}
		bars, err := priorWindow(b, n)
		if err != nil {
			return 0, err
		}
		_, low := highLow(bars)
		close, _ := b.Window.LastClose()
		if low == 0 {
			return 0, nil
		}
		return (float64(close) - float64(low)) / float64(low), nil
	})
}

// rangeTrend compares the average daily range of the most recent 5 days
// against the preceding 15, reporting contraction (recent << prior) or
// expansion (recent >> prior).
func rangeTrend(b Bundle) (contracted, expanded bool, err error) {
	bars, err := priorWindow(b, 20)
	if err != nil {
		return false, false, err
	}
	if len(bars) < 20 {
		return false, false, nil
	}
	recent := bars[15:]
	prior := bars[:15]
	recentAvg := avgRange(recent)
	priorAvg := avgRange(prior)
	if priorAvg == 0 {
		return false, false, nil
	}
	ratio := recentAvg / priorAvg
	return ratio < 0.7, ratio > 1.3, nil
}

func avgRange(bars []types.BarDaily) float64 {
	var sum float64
	for _, bar := range bars {
		sum += float64(bar.High - bar.Low)
	}
	return sum / float64(len(bars))
}

// doublePattern flags a double-top (two comparable peaks with a trough
// between them) or double-bottom over the last 20 days, using a fixed
// similarity tolerance on the two extrema.
func doublePattern(b Bundle) (top, bottom bool, err error) {
	bars, err := priorWindow(b, 20)
	if err != nil {
		return false, false, err
	}
	if len(bars) < 10 {
		return false, false, nil
	}
	mid := len(bars) / 2
	firstHalf, secondHalf := bars[:mid], bars[mid:]
	h1, l1 := highLow(firstHalf)
	h2, l2 := highLow(secondHalf)
	if h1 != 0 && closeEnough(h1, h2) {
		top = true
	}
	if l1 != 0 && closeEnough(l1, l2) {
		bottom = true
	}
	return top, bottom, nil
}

func closeEnough(a, b int64) bool {
	if a == 0 {
		return false
	}
	diff := float64(a-b) / float64(a)
	if diff < 0 {
		diff = -diff
	}
	return diff <= touchTolerance*2
}
