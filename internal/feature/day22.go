package feature

import (
	"fmt"
	"math"
	"sort"
)

// day22 computes rolling return statistics over several daily-return
// windows: mean, volatility, skew/kurtosis/IQR/range, and risk-adjusted
// Sharpe-like / Sortino-like ratios.

var statWindows = []int{5, 10, 20, 60}

func downsideDeviation(rets []float64) float64 {
	var sumSq float64
	var n int
	for _, r := range rets {
		if r < 0 {
			sumSq += r * r
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return math.Sqrt(sumSq / float64(n))
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := p * float64(len(sorted)-1)
	lo := int(math.Floor(idx))
	hi := int(math.Ceil(idx))
	if lo == hi {
		return sorted[lo]
	}
	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

func init() {
	for _, n := range statWindows {
		window := n
		Register(fmt.Sprintf("day22.rolling_mean_return_%d", window), func(b Bundle) (float64, error) {
			closes, err := riskWindow(b, window+1)
			if err != nil {
				return 0, err
			}
			return mean(returnsOf(closes)), nil
		})
		Register(fmt.Sprintf("day22.rolling_vol_return_%d", window), func(b Bundle) (float64, error) {
			closes, err := riskWindow(b, window+1)
			if err != nil {
				return 0, err
			}
			return stddev(returnsOf(closes)), nil
		})
		Register(fmt.Sprintf("day22.sharpe_like_%d", window), func(b Bundle) (float64, error) {
			closes, err := riskWindow(b, window+1)
			if err != nil {
				return 0, err
			}
			rets := returnsOf(closes)
			sd := stddev(rets)
			if sd == 0 {
				return 0, nil
			}
			return mean(rets) / sd, nil
		})
		Register(fmt.Sprintf("day22.sortino_like_%d", window), func(b Bundle) (float64, error) {
			closes, err := riskWindow(b, window+1)
			if err != nil {
				return 0, err
			}
			rets := returnsOf(closes)
			dd := downsideDeviation(rets)
			if dd == 0 {
				return 0, nil
			}
			return mean(rets) / dd, nil
		})
	}

	Register("day22.return_skew", func(b Bundle) (float64, error) {
		closes, err := riskWindow(b, 60)
		if err != nil {
			return 0, err
		}
		return skewness(returnsOf(closes)), nil
	})

	Register("day22.return_kurtosis", func(b Bundle) (float64, error) {
		closes, err := riskWindow(b, 60)
		if err != nil {
			return 0, err
		}
		return kurtosis(returnsOf(closes)), nil
	})

	Register("day22.return_iqr", func(b Bundle) (float64, error) {
		closes, err := riskWindow(b, 60)
		if err != nil {
			return 0, err
		}
		rets := returnsOf(closes)
		if len(rets) == 0 {
			return 0, nil
		}
		sorted := append([]float64(nil), rets...)
		sort.Float64s(sorted)
		return percentile(sorted, 0.75) - percentile(sorted, 0.25), nil
	})

	Register("day22.return_range", func(b Bundle) (float64, error) {
		closes, err := riskWindow(b, 60)
		if err != nil {
			return 0, err
		}
		rets := returnsOf(closes)
		if len(rets) == 0 {
			return 0, nil
		}
		min, max := rets[0], rets[0]
		for _, r := range rets[1:] {
			if r < min {
				min = r
			}
			if r > max {
				max = r
			}
		}
		return max - min, nil
	})
}
