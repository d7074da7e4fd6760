// Package feature implements the FeatureEngine: a registry mapping a
// feature name to a pure function (stock, asof, MarketStore, Calendar) ->
// scalar. Families mirror the original source's day1..day28 files; see
// SPEC_FULL.md section 4.4/12 for the full catalogue.
package feature

import (
	"fmt"
	"math"
	"sync"

	"github.com/phuslu/log"

	"github.com/nitinkhare/stockrs-go/internal/calendar"
	"github.com/nitinkhare/stockrs-go/internal/marketstore"
	"github.com/nitinkhare/stockrs-go/internal/stockerr"
	"github.com/nitinkhare/stockrs-go/internal/types"
)

// Bundle is computed once per (stock, asof) event and passed into every
// feature, per the Design Notes' "morning-window derivation repeated in
// many features" guidance: compute it once, cache for the lifetime of one
// event.
type Bundle struct {
	Stock   types.StockCode
	Asof    int // YYYYMMDD
	Window  types.MorningWindow
	Market  *marketstore.Store
	Cal     *calendar.Calendar
}

// Func is a single feature's pure computation.
type Func func(b Bundle) (float64, error)

// Registry is the compile-time feature name -> function map, built once at
// package init via family-specific registration files (day1.go, day2_19.go,
// ...). An unknown name is not a build error (names are looked up by
// string, same as the upstream ONNX feature list), but Engine.Eval logs and
// returns 0.0, per section 4.4's failure policy.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]Func
}

var global = &Registry{funcs: make(map[string]Func)}

// Register adds a feature under name. Family init() functions call this at
// package load; a duplicate name is a programmer error and panics
// immediately rather than silently shadowing.
func Register(name string, fn Func) {
	global.mu.Lock()
	defer global.mu.Unlock()
	if _, dup := global.funcs[name]; dup {
		panic(fmt.Sprintf("feature: duplicate registration for %q", name))
	}
	global.funcs[name] = fn
}

// Engine evaluates registered (or user-supplied, see Expression) features
// against a Bundle.
type Engine struct {
	reg *Registry
}

// NewEngine returns an Engine backed by the global compile-time registry.
func NewEngine() *Engine {
	return &Engine{reg: global}
}

// Names returns every registered feature name, for enumeration / testing.
func (e *Engine) Names() []string {
	e.reg.mu.RLock()
	defer e.reg.mu.RUnlock()
	out := make([]string, 0, len(e.reg.funcs))
	for n := range e.reg.funcs {
		out = append(out, n)
	}
	return out
}

// Eval computes the named feature. An unknown name yields 0.0 and is logged
// here, per section 4.4's failure policy: "an unknown
// feature name is logged and yields 0.0".
func (e *Engine) Eval(name string, b Bundle) (float64, bool, error) {
	e.reg.mu.RLock()
	fn, ok := e.reg.funcs[name]
	e.reg.mu.RUnlock()
	if !ok {
		log.Warn().Str("feature", name).Msg("feature: unknown feature name, yielding 0.0")
		return 0.0, false, nil
	}
	v, err := fn(b)
	if err != nil {
		return 0, true, err
	}
	return v, true, nil
}

// EvalVector computes every name in names, returning a (name -> value) map.
// A feature whose required data is missing and which raises an error
// aborts evaluation for that candidate only — the caller (Predictor) is
// responsible for treating an error as "skip this candidate", not a fatal
// Runner abort.
func (e *Engine) EvalVector(names []string, b Bundle) (map[string]float64, error) {
	out := make(map[string]float64, len(names))
	for _, n := range names {
		v, known, err := e.Eval(n, b)
		if err != nil {
			return nil, stockerr.Wrap(stockerr.KindModelInference, "feature", fmt.Sprintf("eval %s for %s", n, b.Stock), err)
		}
		if !known {
			v = 0.0
		}
		out[n] = v
	}
	return out, nil
}

// --- shared math helpers used across families ---

// signedLogDerivative implements the sign-preserving log-derivative
// transform used throughout day1/day4: sign(d)*ln(1+|d|).
func signedLogDerivative(d float64) float64 {
	if d == 0 {
		return 0
	}
	sign := 1.0
	if d < 0 {
		sign = -1.0
	}
	return sign * math.Log(1+math.Abs(d))
}

// ema computes the exponential moving average of series with period n,
// seeded on the first observation: ema_0 = x_0, ema_t = a*x_t + (1-a)*ema_{t-1}
// with a = 2/(n+1), per the glossary's EMA(n) definition.
func ema(series []float64, n int) float64 {
	if len(series) == 0 {
		return 0
	}
	alpha := 2.0 / (float64(n) + 1.0)
	e := series[0]
	for _, x := range series[1:] {
		e = alpha*x + (1-alpha)*e
	}
	return e
}

// emaSeries returns the full EMA series (same length as input), needed by
// MACD signal-line computation (a seeded EMA of the MACD series itself).
func emaSeries(series []float64, n int) []float64 {
	if len(series) == 0 {
		return nil
	}
	alpha := 2.0 / (float64(n) + 1.0)
	out := make([]float64, len(series))
	out[0] = series[0]
	for i := 1; i < len(series); i++ {
		out[i] = alpha*series[i] + (1-alpha)*out[i-1]
	}
	return out
}

// simpleRSI computes RSI via simple (non-Wilder) average gains/losses over
// the window, per section 4.4's exact definition: avg_loss=0 => rsi=100.
func simpleRSI(series []float64) float64 {
	if len(series) < 2 {
		return 50.0
	}
	var gainSum, lossSum float64
	n := 0
	for i := 1; i < len(series); i++ {
		d := series[i] - series[i-1]
		if d > 0 {
			gainSum += d
		} else {
			lossSum += -d
		}
		n++
	}
	avgGain := gainSum / float64(n)
	avgLoss := lossSum / float64(n)
	if avgLoss == 0 {
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - 100.0/(1.0+rs)
}

// clampLinear maps x linearly from [lo, hi] to [0, 1], clamped at the
// edges, the piecewise normalization convention named in section 4.4.
func clampLinear(x, lo, hi float64) float64 {
	if hi == lo {
		return 0
	}
	t := (x - lo) / (hi - lo)
	if t < 0 {
		return 0
	}
	if t > 1 {
		return 1
	}
	return t
}

// clamp restricts x to [lo, hi] without rescaling.
func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var s float64
	for _, x := range xs {
		s += x
	}
	return s / float64(len(xs))
}

func stddev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	var sq float64
	for _, x := range xs {
		sq += (x - m) * (x - m)
	}
	return math.Sqrt(sq / float64(len(xs)-1))
}
