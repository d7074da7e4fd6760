package predictor

// LinearBackend scores a feature vector as a fixed weighted sum, the
// simplest Backend implementation and the one used by the backtest CLI
// default config. A real deployment would swap this for a trained model's
// binding; no such Go binding exists among the examples this repo draws
// from, so the interface boundary is the adaptation point, not a concrete
// inference runtime.
type LinearBackend struct {
	Weights map[string]float64
	Bias    float64
}

// Score computes bias + sum(weight[name] * features[name]) over the
// configured weights; a feature present in the vector but absent from
// Weights contributes nothing.
func (l LinearBackend) Score(features map[string]float64) (float64, error) {
	total := l.Bias
	for name, w := range l.Weights {
		total += w * features[name]
	}
	return total, nil
}
