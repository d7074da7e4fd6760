package feature

import (
	"fmt"

	"github.com/nitinkhare/stockrs-go/internal/stockerr"
)

// day1 computes intraday shape features from the morning window alone: how
// far price moved, where it sits in its own range, and the higher-order
// "jerk" of the close series via the sign-preserving log-derivative
// transform.

const longCandleThreshold = 0.02

// partitionAvg averages closes[a:b]; b must be > a.
func partitionAvg(closes []float64, a, b int) float64 {
	var sum float64
	for _, c := range closes[a:b] {
		sum += c
	}
	return sum / float64(b-a)
}

// secondDerivativeRaw splits the morning close series into thirds and takes
// the discrete second difference of the partition averages:
// last - 2*middle + first. Needs at least 3 observations.
func secondDerivativeRaw(closes []float64) (float64, bool) {
	n := len(closes)
	if n < 3 {
		return 0, false
	}
	third := n / 3
	first := partitionAvg(closes, 0, third)
	middle := partitionAvg(closes, third, 2*third)
	last := partitionAvg(closes, 2*third, n)
	return last - 2*middle + first, true
}

// thirdDerivativeRaw splits the morning close series into quarters and takes
// the discrete third difference of the partition averages (binomial
// coefficients 1,-3,3,-1). Needs at least 4 observations.
func thirdDerivativeRaw(closes []float64) (float64, bool) {
	n := len(closes)
	if n < 4 {
		return 0, false
	}
	q := n / 4
	q1 := partitionAvg(closes, 0, q)
	q2 := partitionAvg(closes, q, 2*q)
	q3 := partitionAvg(closes, 2*q, 3*q)
	q4 := partitionAvg(closes, 3*q, n)
	return q4 - 3*q3 + 3*q2 - q1, true
}

// fourthDerivativeRaw compares the average of the first fifth of the
// morning close series against the average of the last fifth. Needs at
// least 5 observations; fewer yields the documented 0.0 sentinel.
func fourthDerivativeRaw(closes []float64) (float64, bool) {
	n := len(closes)
	if n < 5 {
		return 0, false
	}
	fifth := n / 5
	first := partitionAvg(closes, 0, fifth)
	last := partitionAvg(closes, n-fifth, n)
	return last - first, true
}

// fifthDerivativeRaw compares the average of the first sixth of the
// morning close series against the average of the last sixth. Needs at
// least 6 observations; fewer yields the documented 0.0 sentinel.
func fifthDerivativeRaw(closes []float64) (float64, bool) {
	n := len(closes)
	if n < 6 {
		return 0, false
	}
	sixth := n / 6
	first := partitionAvg(closes, 0, sixth)
	last := partitionAvg(closes, n-sixth, n)
	return last - first, true
}

// sixthDerivativeRaw is not a difference at all but a zero-crossing-count
// ratio: the fraction of consecutive close-to-close moves whose sign flips
// from the move before it. Needs at least 6 observations; fewer yields the
// documented 0.0 sentinel.
func sixthDerivativeRaw(closes []float64) (float64, bool) {
	n := len(closes)
	if n < 6 {
		return 0, false
	}
	var changes int
	for i := 2; i < n; i++ {
		prev := closes[i-1] - closes[i-2]
		curr := closes[i] - closes[i-1]
		if (prev > 0 && curr < 0) || (prev < 0 && curr > 0) {
			changes++
		}
	}
	return float64(changes) / float64(n-2), true
}

func requireWindow(b Bundle) error {
	if len(b.Window.Bars) == 0 {
		return stockerr.New(stockerr.KindNoStockData, "feature.day1", fmt.Sprintf("empty morning window for %s", b.Stock))
	}
	return nil
}

func init() {
	Register("day1.current_price_ratio", func(b Bundle) (float64, error) {
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

	Register("day1.high_price_ratio", func(b Bundle) (float64, error) {
		if err := requireWindow(b); err != nil {
			return 0, err
		}
		open, _ := b.Window.FirstOpen()
		high, _ := b.Window.MaxHigh()
		if open == 0 {
			return 0, nil
		}
		return (float64(high) - float64(open)) / float64(open), nil
	})

	Register("day1.low_price_ratio", func(b Bundle) (float64, error) {
		if err := requireWindow(b); err != nil {
			return 0, err
		}
		open, _ := b.Window.FirstOpen()
		low, _ := b.Window.MinLow()
		if open == 0 {
			return 0, nil
		}
		return (float64(low) - float64(open)) / float64(open), nil
	})

	Register("day1.price_position_ratio", func(b Bundle) (float64, error) {
		if err := requireWindow(b); err != nil {
			return 0, err
		}
		high, _ := b.Window.MaxHigh()
		low, _ := b.Window.MinLow()
		close, _ := b.Window.LastClose()
		rng := float64(high - low)
		if rng == 0 {
			return 0.5, nil
		}
		return (float64(close) - float64(low)) / rng, nil
	})

	Register("day1.vwap_position_ratio", func(b Bundle) (float64, error) {
		if err := requireWindow(b); err != nil {
			return 0, err
		}
		vwap, ok := b.Window.VWAP()
		if !ok || vwap == 0 {
			return 0, nil
		}
		close, _ := b.Window.LastClose()
		return (float64(close) - vwap) / vwap, nil
	})

	Register("day1.volume_vs_morning_avg", func(b Bundle) (float64, error) {
		if err := requireWindow(b); err != nil {
			return 0, err
		}
		n := len(b.Window.Bars)
		avg := float64(b.Window.CumulativeVolume()) / float64(n)
		if avg == 0 {
			return 0, nil
		}
		last := b.Window.Bars[n-1].Volume
		return float64(last) / avg, nil
	})

	Register("day1.long_candle_flag", func(b Bundle) (float64, error) {
		if err := requireWindow(b); err != nil {
			return 0, err
		}
		close, open, _, _, _ := b.Window.LastCandle()
		if open == 0 {
			return 0, nil
		}
		body := float64(close-open) / float64(open)
		if body < 0 {
			body = -body
		}
		if body > longCandleThreshold {
			return 1, nil
		}
		return 0, nil
	})

	// 2nd/3rd derivatives have no documented sentinel in the original
	// source (it errors outright below the minimum sample size); 4th/5th/
	// 6th explicitly return the 0.0 sentinel instead.
	Register("day1.second_derivative", func(b Bundle) (float64, error) {
		if err := requireWindow(b); err != nil {
			return 0, err
		}
		v, ok := secondDerivativeRaw(b.Window.Closes())
		if !ok {
			return 0, stockerr.New(stockerr.KindNoStockData, "feature.day1", fmt.Sprintf("need at least 3 morning closes for %s", b.Stock))
		}
		return signedLogDerivative(v), nil
	})

	Register("day1.third_derivative", func(b Bundle) (float64, error) {
		if err := requireWindow(b); err != nil {
			return 0, err
		}
		v, ok := thirdDerivativeRaw(b.Window.Closes())
		if !ok {
			return 0, stockerr.New(stockerr.KindNoStockData, "feature.day1", fmt.Sprintf("need at least 4 morning closes for %s", b.Stock))
		}
		return signedLogDerivative(v), nil
	})

	Register("day1.fourth_derivative", func(b Bundle) (float64, error) {
		if err := requireWindow(b); err != nil {
			return 0, err
		}
		v, ok := fourthDerivativeRaw(b.Window.Closes())
		if !ok {
			return 0, nil
		}
		return signedLogDerivative(v), nil
	})

	Register("day1.fifth_derivative", func(b Bundle) (float64, error) {
		if err := requireWindow(b); err != nil {
			return 0, err
		}
		v, ok := fifthDerivativeRaw(b.Window.Closes())
		if !ok {
			return 0, nil
		}
		return signedLogDerivative(v), nil
	})

	Register("day1.sixth_derivative", func(b Bundle) (float64, error) {
		if err := requireWindow(b); err != nil {
			return 0, err
		}
		v, ok := sixthDerivativeRaw(b.Window.Closes())
		if !ok {
			return 0, nil
		}
		return signedLogDerivative(v), nil
	})
}
