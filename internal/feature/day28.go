package feature

// day28 computes classic floor-trader pivot points from the prior day's
// high/low/close and measures today's close against them.

type pivotLevels struct {
	pivot, r1, r2, r3, s1, s2, s3 float64
}

func computePivots(b Bundle) (pivotLevels, float64, error) {
	prior, err := priorDay(b)
	if err != nil {
		return pivotLevels{}, 0, err
	}
	if err := requireWindow(b); err != nil {
		return pivotLevels{}, 0, err
	}
	h, l, c := float64(prior.High), float64(prior.Low), float64(prior.Close)
	p := (h + l + c) / 3
	lv := pivotLevels{
		pivot: p,
		r1:    2*p - l,
		s1:    2*p - h,
		r2:    p + (h - l),
		s2:    p - (h - l),
		r3:    h + 2*(p-l),
		s3:    l - 2*(h-p),
	}
	close, _ := b.Window.LastClose()
	return lv, float64(close), nil
}

func init() {
	Register("day28.pivot", func(b Bundle) (float64, error) {
		lv, _, err := computePivots(b)
		return lv.pivot, err
	})
	Register("day28.r1", func(b Bundle) (float64, error) {
		lv, _, err := computePivots(b)
		return lv.r1, err
	})
	Register("day28.r2", func(b Bundle) (float64, error) {
		lv, _, err := computePivots(b)
		return lv.r2, err
	})
	Register("day28.r3", func(b Bundle) (float64, error) {
		lv, _, err := computePivots(b)
		return lv.r3, err
	})
	Register("day28.s1", func(b Bundle) (float64, error) {
		lv, _, err := computePivots(b)
		return lv.s1, err
	})
	Register("day28.s2", func(b Bundle) (float64, error) {
		lv, _, err := computePivots(b)
		return lv.s2, err
	})
	Register("day28.s3", func(b Bundle) (float64, error) {
		lv, _, err := computePivots(b)
		return lv.s3, err
	})

	Register("day28.price_vs_pivot", func(b Bundle) (float64, error) {
		lv, close, err := computePivots(b)
		if err != nil {
			return 0, err
		}
		if lv.pivot == 0 {
			return 0, nil
		}
		return (close - lv.pivot) / lv.pivot, nil
	})

	Register("day28.pivot_breach_flag", func(b Bundle) (float64, error) {
		lv, close, err := computePivots(b)
		if err != nil {
			return 0, err
		}
		open, _ := b.Window.FirstOpen()
		if (float64(open) < lv.pivot && close > lv.pivot) || (float64(open) > lv.pivot && close < lv.pivot) {
			return 1, nil
		}
		return 0, nil
	})

	Register("day28.r1_breach_flag", func(b Bundle) (float64, error) {
		lv, close, err := computePivots(b)
		if err != nil {
			return 0, err
		}
		if close > lv.r1 {
			return 1, nil
		}
		return 0, nil
	})

	Register("day28.s1_breach_flag", func(b Bundle) (float64, error) {
		lv, close, err := computePivots(b)
		if err != nil {
			return 0, err
		}
		if close < lv.s1 {
			return 1, nil
		}
		return 0, nil
	})

	Register("day28.pivot_bandwidth", func(b Bundle) (float64, error) {
		lv, _, err := computePivots(b)
		if err != nil {
			return 0, err
		}
		if lv.pivot == 0 {
			return 0, nil
		}
		return (lv.r1 - lv.s1) / lv.pivot, nil
	})

	Register("day28.pivot_regime_score", func(b Bundle) (float64, error) {
		lv, close, err := computePivots(b)
		if err != nil {
			return 0, err
		}
		return clampLinear(close, lv.s1, lv.r1), nil
	})
}
