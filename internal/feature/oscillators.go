package feature

import (
	"math"

	"github.com/nitinkhare/stockrs-go/internal/types"
)

// day4/day6/day14/day15/day16 compute oscillators and moving-average
// derived signals from daily history: MACD, RSI, stochastics, ATR, ADX,
// Aroon, Donchian, and the volume-flow family (OBV, MFI, ADL, Chaikin, CMF).

const oscillatorLookback = 80

func dailyHistory(b Bundle) ([]types.BarDaily, error) {
	return priorWindow(b, oscillatorLookback)
}

func closesOf(bars []types.BarDaily) []float64 {
	out := make([]float64, len(bars))
	for i, bar := range bars {
		out[i] = float64(bar.Close)
	}
	return out
}

func highsOf(bars []types.BarDaily) []float64 {
	out := make([]float64, len(bars))
	for i, bar := range bars {
		out[i] = float64(bar.High)
	}
	return out
}

func lowsOf(bars []types.BarDaily) []float64 {
	out := make([]float64, len(bars))
	for i, bar := range bars {
		out[i] = float64(bar.Low)
	}
	return out
}

func volumesOf(bars []types.BarDaily) []float64 {
	out := make([]float64, len(bars))
	for i, bar := range bars {
		out[i] = float64(bar.Volume)
	}
	return out
}

// macdCompute derives the MACD line, signal, and histogram from a closing
// price series using two seeded EMAs and a seeded EMA of their difference.
func macdCompute(closes []float64, fast, slow, signalPeriod int) (line, signal, hist float64) {
	if len(closes) < slow+signalPeriod {
		return 0, 0, 0
	}
	fastSeries := emaSeries(closes, fast)
	slowSeries := emaSeries(closes, slow)
	macdSeries := make([]float64, len(closes))
	for i := range closes {
		macdSeries[i] = fastSeries[i] - slowSeries[i]
	}
	signalSeries := emaSeries(macdSeries, signalPeriod)
	line = macdSeries[len(macdSeries)-1]
	signal = signalSeries[len(signalSeries)-1]
	hist = line - signal
	return
}

func trueRange(cur, prevClose float64, high, low float64) float64 {
	a := high - low
	b := math.Abs(high - prevClose)
	c := math.Abs(low - prevClose)
	return math.Max(a, math.Max(b, c))
}

func init() {
	Register("day4.macd_3_6_line", func(b Bundle) (float64, error) {
		bars, err := dailyHistory(b)
		if err != nil {
			return 0, err
		}
		line, _, _ := macdCompute(closesOf(bars), 3, 6, 3)
		return line, nil
	})
	Register("day4.macd_3_6_signal", func(b Bundle) (float64, error) {
		bars, err := dailyHistory(b)
		if err != nil {
			return 0, err
		}
		_, signal, _ := macdCompute(closesOf(bars), 3, 6, 3)
		return signal, nil
	})
	Register("day4.macd_3_6_hist", func(b Bundle) (float64, error) {
		bars, err := dailyHistory(b)
		if err != nil {
			return 0, err
		}
		_, _, hist := macdCompute(closesOf(bars), 3, 6, 3)
		return hist, nil
	})
	Register("day6.macd_12_26_line", func(b Bundle) (float64, error) {
		bars, err := dailyHistory(b)
		if err != nil {
			return 0, err
		}
		line, _, _ := macdCompute(closesOf(bars), 12, 26, 9)
		return line, nil
	})
	Register("day6.macd_12_26_signal", func(b Bundle) (float64, error) {
		bars, err := dailyHistory(b)
		if err != nil {
			return 0, err
		}
		_, signal, _ := macdCompute(closesOf(bars), 12, 26, 9)
		return signal, nil
	})
	Register("day6.macd_12_26_hist", func(b Bundle) (float64, error) {
		bars, err := dailyHistory(b)
		if err != nil {
			return 0, err
		}
		_, _, hist := macdCompute(closesOf(bars), 12, 26, 9)
		return hist, nil
	})

	Register("day14.rsi_6_intraday", func(b Bundle) (float64, error) {
		if err := requireWindow(b); err != nil {
			return 0, err
		}
		closes := b.Window.Closes()
		if len(closes) > 7 {
			closes = closes[len(closes)-7:]
		}
		return simpleRSI(closes), nil
	})

	Register("day14.rsi_14_daily", func(b Bundle) (float64, error) {
		bars, err := dailyHistory(b)
		if err != nil {
			return 0, err
		}
		closes := closesOf(bars)
		if len(closes) > 15 {
			closes = closes[len(closes)-15:]
		}
		return simpleRSI(closes), nil
	})

	Register("day14.stoch_k", func(b Bundle) (float64, error) {
		bars, err := dailyHistory(b)
		if err != nil {
			return 0, err
		}
		n := 14
		if len(bars) < n {
			return 50, nil
		}
		window := bars[len(bars)-n:]
		high, low := highLow(window)
		if high == low {
			return 50, nil
		}
		return (float64(window[n-1].Close) - float64(low)) / float64(high-low) * 100, nil
	})

	Register("day15.atr_relative", func(b Bundle) (float64, error) {
		bars, err := dailyHistory(b)
		if err != nil {
			return 0, err
		}
		n := 14
		if len(bars) <= n {
			return 0, nil
		}
		var sum float64
		for i := len(bars) - n; i < len(bars); i++ {
			sum += trueRange(float64(bars[i].Close), float64(bars[i-1].Close), float64(bars[i].High), float64(bars[i].Low))
		}
		atr := sum / float64(n)
		last := float64(bars[len(bars)-1].Close)
		if last == 0 {
			return 0, nil
		}
		return atr / last, nil
	})

	Register("day15.adx", func(b Bundle) (float64, error) {
		adx, _, _, err := adxCompute(b)
		return adx, err
	})
	Register("day15.plus_di", func(b Bundle) (float64, error) {
		_, plus, _, err := adxCompute(b)
		return plus, err
	})
	Register("day15.minus_di", func(b Bundle) (float64, error) {
		_, _, minus, err := adxCompute(b)
		return minus, err
	})

	Register("day16.aroon_up", func(b Bundle) (float64, error) {
		up, _, err := aroonCompute(b)
		return up, err
	})
	Register("day16.aroon_down", func(b Bundle) (float64, error) {
		_, down, err := aroonCompute(b)
		return down, err
	})

	Register("day16.donchian_break_strength", func(b Bundle) (float64, error) {
		bars, err := dailyHistory(b)
		if err != nil {
			return 0, err
		}
		n := 20
		if len(bars) <= n {
			return 0, nil
		}
		window := bars[len(bars)-n-1 : len(bars)-1]
		high, low := highLow(window)
		rng := float64(high - low)
		if rng == 0 {
			return 0, nil
		}
		last := float64(bars[len(bars)-1].Close)
		if last > float64(high) {
			return (last - float64(high)) / rng, nil
		}
		if last < float64(low) {
			return (last - float64(low)) / rng, nil
		}
		return 0, nil
	})

	Register("day16.obv_zscore", func(b Bundle) (float64, error) {
		bars, err := dailyHistory(b)
		if err != nil {
			return 0, err
		}
		series := obvSeries(bars)
		if len(series) < 2 {
			return 0, nil
		}
		sd := stddev(series)
		if sd == 0 {
			return 0, nil
		}
		return (series[len(series)-1] - mean(series)) / sd, nil
	})

	Register("day16.mfi", func(b Bundle) (float64, error) {
		bars, err := dailyHistory(b)
		if err != nil {
			return 0, err
		}
		return mfiCompute(bars, 14), nil
	})

	Register("day16.adl", func(b Bundle) (float64, error) {
		bars, err := dailyHistory(b)
		if err != nil {
			return 0, err
		}
		series := adlSeries(bars)
		if len(series) == 0 {
			return 0, nil
		}
		return series[len(series)-1], nil
	})

	Register("day16.chaikin_oscillator", func(b Bundle) (float64, error) {
		bars, err := dailyHistory(b)
		if err != nil {
			return 0, err
		}
		series := adlSeries(bars)
		if len(series) < 10 {
			return 0, nil
		}
		fast := emaSeries(series, 3)
		slow := emaSeries(series, 10)
		return fast[len(fast)-1] - slow[len(slow)-1], nil
	})

	Register("day16.cmf", func(b Bundle) (float64, error) {
		bars, err := dailyHistory(b)
		if err != nil {
			return 0, err
		}
		n := 20
		if len(bars) < n {
			return 0, nil
		}
		window := bars[len(bars)-n:]
		var mfv, vol float64
		for _, bar := range window {
			rng := float64(bar.High - bar.Low)
			if rng == 0 {
				continue
			}
			mult := ((float64(bar.Close) - float64(bar.Low)) - (float64(bar.High) - float64(bar.Close))) / rng
			mfv += mult * float64(bar.Volume)
			vol += float64(bar.Volume)
		}
		if vol == 0 {
			return 0, nil
		}
		return mfv / vol, nil
	})

	Register("day16.volume_rsi", func(b Bundle) (float64, error) {
		bars, err := dailyHistory(b)
		if err != nil {
			return 0, err
		}
		vols := volumesOf(bars)
		if len(vols) > 15 {
			vols = vols[len(vols)-15:]
		}
		return simpleRSI(vols), nil
	})

	Register("day16.price_volume_divergence", func(b Bundle) (float64, error) {
		bars, err := dailyHistory(b)
		if err != nil {
			return 0, err
		}
		n := 10
		if len(bars) <= n {
			return 0, nil
		}
		window := bars[len(bars)-n:]
		priceChange := float64(window[n-1].Close - window[0].Close)
		volChange := float64(window[n-1].Volume - window[0].Volume)
		if sign(priceChange) != sign(volChange) {
			return 1, nil
		}
		return 0, nil
	})
}

func sign(x float64) float64 {
	if x > 0 {
		return 1
	}
	if x < 0 {
		return -1
	}
	return 0
}

func obvSeries(bars []types.BarDaily) []float64 {
	if len(bars) == 0 {
		return nil
	}
	out := make([]float64, len(bars))
	for i := 1; i < len(bars); i++ {
		switch {
		case bars[i].Close > bars[i-1].Close:
			out[i] = out[i-1] + float64(bars[i].Volume)
		case bars[i].Close < bars[i-1].Close:
			out[i] = out[i-1] - float64(bars[i].Volume)
		default:
			out[i] = out[i-1]
		}
	}
	return out
}

func adlSeries(bars []types.BarDaily) []float64 {
	if len(bars) == 0 {
		return nil
	}
	out := make([]float64, len(bars))
	for i, bar := range bars {
		rng := float64(bar.High - bar.Low)
		var mult float64
		if rng != 0 {
			mult = ((float64(bar.Close) - float64(bar.Low)) - (float64(bar.High) - float64(bar.Close))) / rng
		}
		prev := 0.0
		if i > 0 {
			prev = out[i-1]
		}
		out[i] = prev + mult*float64(bar.Volume)
	}
	return out
}

func mfiCompute(bars []types.BarDaily, n int) float64 {
	if len(bars) <= n {
		return 50
	}
	window := bars[len(bars)-n-1:]
	var posFlow, negFlow float64
	for i := 1; i < len(window); i++ {
		tp := (float64(window[i].High) + float64(window[i].Low) + float64(window[i].Close)) / 3
		prevTp := (float64(window[i-1].High) + float64(window[i-1].Low) + float64(window[i-1].Close)) / 3
		mf := tp * float64(window[i].Volume)
		if tp > prevTp {
			posFlow += mf
		} else if tp < prevTp {
			negFlow += mf
		}
	}
	if negFlow == 0 {
		return 100
	}
	ratio := posFlow / negFlow
	return 100 - 100/(1+ratio)
}

// adxCompute derives +DI/-DI and ADX over a 14-period Wilder-style window,
// reusing simple (non-smoothed) averaging consistent with simpleRSI.
func adxCompute(b Bundle) (adx, plusDI, minusDI float64, err error) {
	bars, err := dailyHistory(b)
	if err != nil {
		return 0, 0, 0, err
	}
	n := 14
	if len(bars) <= n+1 {
		return 0, 0, 0, nil
	}
	var trSum, plusDMSum, minusDMSum float64
	start := len(bars) - n
	for i := start; i < len(bars); i++ {
		upMove := float64(bars[i].High - bars[i-1].High)
		downMove := float64(bars[i-1].Low - bars[i].Low)
		if upMove > downMove && upMove > 0 {
			plusDMSum += upMove
		}
		if downMove > upMove && downMove > 0 {
			minusDMSum += downMove
		}
		trSum += trueRange(float64(bars[i].Close), float64(bars[i-1].Close), float64(bars[i].High), float64(bars[i].Low))
	}
	if trSum == 0 {
		return 0, 0, 0, nil
	}
	plusDI = 100 * plusDMSum / trSum
	minusDI = 100 * minusDMSum / trSum
	diSum := plusDI + minusDI
	if diSum == 0 {
		return 0, plusDI, minusDI, nil
	}
	dx := 100 * math.Abs(plusDI-minusDI) / diSum
	return dx, plusDI, minusDI, nil
}

// aroonCompute reports the standard 25-period Aroon up/down oscillator.
func aroonCompute(b Bundle) (up, down float64, err error) {
	bars, err := dailyHistory(b)
	if err != nil {
		return 0, 0, err
	}
	n := 25
	if len(bars) < n {
		return 0, 0, nil
	}
	window := bars[len(bars)-n:]
	highIdx, lowIdx := 0, 0
	for i, bar := range window {
		if bar.High > window[highIdx].High {
			highIdx = i
		}
		if bar.Low < window[lowIdx].Low {
			lowIdx = i
		}
	}
	up = float64(highIdx) / float64(n-1) * 100
	down = float64(lowIdx) / float64(n-1) * 100
	return up, down, nil
}
