// Package predictor scores a universe of candidate stocks against a
// configured feature vector and returns the single best candidate, mirroring
// the ONNX-backed model-selection step of the original source but behind a
// pluggable Backend so any scoring function — a hand-rolled rule, a
// regression, a future native ONNX binding — can be wired in without
// touching the fan-out/argmax logic.
package predictor

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/nitinkhare/stockrs-go/internal/calendar"
	"github.com/nitinkhare/stockrs-go/internal/feature"
	"github.com/nitinkhare/stockrs-go/internal/marketstore"
	"github.com/nitinkhare/stockrs-go/internal/stockerr"
	"github.com/nitinkhare/stockrs-go/internal/types"
)

// Backend scores one feature vector. Implementations are pure and
// stateless; the Predictor owns all I/O.
type Backend interface {
	Score(features map[string]float64) (float64, error)
}

// Config controls which features feed the Backend and how much candidate
// fan-out may run concurrently.
type Config struct {
	FeatureNames []string
	Concurrency  int // <= 0 means unlimited
}

// Candidate is one scored stock.
type Candidate struct {
	Stock types.StockCode
	Score float64
}

// Predictor evaluates a candidate universe for one asof date and selects
// the argmax by Score. A candidate whose feature evaluation or Backend
// scoring errors is skipped, not fatal — one bad candidate must not abort
// the rest of the universe.
type Predictor struct {
	engine  *feature.Engine
	backend Backend
	cfg     Config
	market  *marketstore.Store
	cal     *calendar.Calendar
}

// New builds a Predictor over market and cal, scoring with backend.
func New(engine *feature.Engine, backend Backend, market *marketstore.Store, cal *calendar.Calendar, cfg Config) *Predictor {
	return &Predictor{engine: engine, backend: backend, market: market, cal: cal, cfg: cfg}
}

// Predict evaluates every candidate's feature vector and Backend score
// concurrently (bounded by cfg.Concurrency), then returns the
// highest-scoring candidate. An empty result set (every candidate errored,
// or candidates was empty) is reported as stockerr.KindModelInference.
func (p *Predictor) Predict(ctx context.Context, candidates []types.StockCode, asof int) (Candidate, error) {
	results := make([]Candidate, len(candidates))
	ok := make([]bool, len(candidates))

	g, ctx := errgroup.WithContext(ctx)
	if p.cfg.Concurrency > 0 {
		g.SetLimit(p.cfg.Concurrency)
	}

	for i, stock := range candidates {
		i, stock := i, stock
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			score, scored, err := p.scoreOne(stock, asof)
			if err != nil {
				return nil // skip, not fatal
			}
			if scored {
				results[i] = Candidate{Stock: stock, Score: score}
				ok[i] = true
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Candidate{}, stockerr.Wrap(stockerr.KindModelInference, "predictor", "predict", err)
	}

	var scored []Candidate
	for i, v := range ok {
		if v {
			scored = append(scored, results[i])
		}
	}
	if len(scored) == 0 {
		return Candidate{}, stockerr.New(stockerr.KindModelInference, "predictor", "no candidate produced a score")
	}

	sort.Slice(scored, func(a, b int) bool { return scored[a].Score > scored[b].Score })
	return scored[0], nil
}

// Rank returns every successfully scored candidate, ordered best-first, for
// callers that want more than the single argmax (e.g. a diversified
// top-N allocator).
func (p *Predictor) Rank(ctx context.Context, candidates []types.StockCode, asof int) ([]Candidate, error) {
	results := make([]Candidate, 0, len(candidates))
	for _, stock := range candidates {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		score, scored, err := p.scoreOne(stock, asof)
		if err != nil || !scored {
			continue
		}
		results = append(results, Candidate{Stock: stock, Score: score})
	}
	sort.Slice(results, func(a, b int) bool { return results[a].Score > results[b].Score })
	return results, nil
}

func (p *Predictor) scoreOne(stock types.StockCode, asof int) (float64, bool, error) {
	win, err := p.market.Morning(stock, asof)
	if err != nil {
		return 0, false, err
	}
	b := feature.Bundle{Stock: stock, Asof: asof, Window: win, Market: p.market, Cal: p.cal}
	vec, err := p.engine.EvalVector(p.cfg.FeatureNames, b)
	if err != nil {
		return 0, false, err
	}
	score, err := p.backend.Score(vec)
	if err != nil {
		return 0, false, err
	}
	return score, true, nil
}
