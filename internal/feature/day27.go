package feature

import "math"

// day27 computes drawdown-based risk measures over rolling daily windows:
// max drawdown, ulcer/pain indices, parametric VaR/CVaR, and the shape of
// the drawdown distribution.

const varConfidenceZ = 1.645 // one-sided 95% normal quantile

func drawdownSeries(closes []float64) []float64 {
	if len(closes) == 0 {
		return nil
	}
	out := make([]float64, len(closes))
	runningMax := closes[0]
	for i, c := range closes {
		if c > runningMax {
			runningMax = c
		}
		if runningMax == 0 {
			out[i] = 0
			continue
		}
		out[i] = (c - runningMax) / runningMax
	}
	return out
}

func returnsOf(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	out := make([]float64, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			continue
		}
		out[i-1] = (closes[i] - closes[i-1]) / closes[i-1]
	}
	return out
}

func skewness(xs []float64) float64 {
	if len(xs) < 3 {
		return 0
	}
	m := mean(xs)
	sd := stddev(xs)
	if sd == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += math.Pow((x-m)/sd, 3)
	}
	return sum / float64(len(xs))
}

func kurtosis(xs []float64) float64 {
	if len(xs) < 4 {
		return 0
	}
	m := mean(xs)
	sd := stddev(xs)
	if sd == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += math.Pow((x-m)/sd, 4)
	}
	return sum/float64(len(xs)) - 3 // excess kurtosis
}

func riskWindow(b Bundle, n int) ([]float64, error) {
	bars, err := priorWindow(b, n)
	if err != nil {
		return nil, err
	}
	return closesOf(bars), nil
}

func registerMaxDrawdown(n int, name string) {
	Register(name, func(b Bundle) (float64, error) {
		closes, err := riskWindow(b, n)
		if err != nil {
			return 0, err
		}
		dd := drawdownSeries(closes)
		if len(dd) == 0 {
			return 0, nil
		}
		min := dd[0]
		for _, v := range dd[1:] {
			if v < min {
				min = v
			}
		}
		return min, nil
	})
}

func init() {
	registerMaxDrawdown(20, "day27.max_drawdown_20d")
	registerMaxDrawdown(60, "day27.max_drawdown_60d")

	Register("day27.ulcer_index", func(b Bundle) (float64, error) {
		closes, err := riskWindow(b, 20)
		if err != nil {
			return 0, err
		}
		dd := drawdownSeries(closes)
		if len(dd) == 0 {
			return 0, nil
		}
		var sumSq float64
		for _, v := range dd {
			sumSq += v * v
		}
		return math.Sqrt(sumSq / float64(len(dd))), nil
	})

	Register("day27.pain_index", func(b Bundle) (float64, error) {
		closes, err := riskWindow(b, 20)
		if err != nil {
			return 0, err
		}
		dd := drawdownSeries(closes)
		if len(dd) == 0 {
			return 0, nil
		}
		var sum float64
		for _, v := range dd {
			sum += math.Abs(v)
		}
		return sum / float64(len(dd)), nil
	})

	Register("day27.parametric_var", func(b Bundle) (float64, error) {
		closes, err := riskWindow(b, 60)
		if err != nil {
			return 0, err
		}
		rets := returnsOf(closes)
		if len(rets) == 0 {
			return 0, nil
		}
		return mean(rets) - varConfidenceZ*stddev(rets), nil
	})

	Register("day27.parametric_cvar", func(b Bundle) (float64, error) {
		closes, err := riskWindow(b, 60)
		if err != nil {
			return 0, err
		}
		rets := returnsOf(closes)
		if len(rets) == 0 {
			return 0, nil
		}
		// normal-distribution CVaR closed form: mu - sigma*phi(z)/(1-conf)
		phi := math.Exp(-0.5*varConfidenceZ*varConfidenceZ) / math.Sqrt(2*math.Pi)
		return mean(rets) - stddev(rets)*phi/0.05, nil
	})

	Register("day27.drawdown_skew", func(b Bundle) (float64, error) {
		closes, err := riskWindow(b, 60)
		if err != nil {
			return 0, err
		}
		return skewness(drawdownSeries(closes)), nil
	})

	Register("day27.drawdown_kurtosis", func(b Bundle) (float64, error) {
		closes, err := riskWindow(b, 60)
		if err != nil {
			return 0, err
		}
		return kurtosis(drawdownSeries(closes)), nil
	})

	Register("day27.kelly_ruin_proxy", func(b Bundle) (float64, error) {
		closes, err := riskWindow(b, 60)
		if err != nil {
			return 0, err
		}
		rets := returnsOf(closes)
		if len(rets) == 0 {
			return 0, nil
		}
		variance := stddev(rets) * stddev(rets)
		if variance == 0 {
			return 0, nil
		}
		return mean(rets) / variance, nil
	})
}
