package feature

import (
	"github.com/Knetic/govaluate"

	"github.com/nitinkhare/stockrs-go/internal/stockerr"
)

// Expression evaluates a user-supplied feature formula at runtime, for
// config-driven feature sets that reference registered features by name
// inside an arithmetic expression (e.g. "day1.current_price_ratio * 2 -
// day19.gap_percent") instead of needing a compiled registration.
type Expression struct {
	expr *govaluate.EvaluableExpression
}

// NewExpression parses formula once; reuse the returned Expression across
// evaluations to avoid re-parsing on every event.
func NewExpression(formula string) (*Expression, error) {
	expr, err := govaluate.NewEvaluableExpression(formula)
	if err != nil {
		return nil, stockerr.Wrap(stockerr.KindParsing, "feature", "parse expression", err)
	}
	return &Expression{expr: expr}, nil
}

// Eval resolves every feature name the expression references against e,
// then evaluates the formula.
func (x *Expression) Eval(e *Engine, b Bundle) (float64, error) {
	vars := make(map[string]interface{})
	for _, v := range x.expr.Vars() {
		val, _, err := e.Eval(v, b)
		if err != nil {
			return 0, err
		}
		vars[v] = val
	}
	result, err := x.expr.Evaluate(vars)
	if err != nil {
		return 0, stockerr.Wrap(stockerr.KindModelInference, "feature", "evaluate expression", err)
	}
	f, ok := result.(float64)
	if !ok {
		return 0, stockerr.New(stockerr.KindTypeConversion, "feature", "expression result is not numeric")
	}
	return f, nil
}
