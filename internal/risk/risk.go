// Package risk implements hard guardrails a Model-proposed Order must clear
// before the Runner hands it to the Broker.
//
// Design rules (carried forward from the teacher's risk package):
//   - Risk rules are implemented in Go, never delegated to the Model.
//   - They CANNOT be overridden by the Predictor or Model.
//   - Capital preservation > returns — prefer not trading over a bad trade.
package risk

import (
	"fmt"

	"github.com/nitinkhare/stockrs-go/internal/config"
	"github.com/nitinkhare/stockrs-go/internal/types"
)

// RejectionReason explains why an order was rejected by risk management.
type RejectionReason struct {
	Rule    string
	Message string
}

func (r RejectionReason) Error() string {
	return fmt.Sprintf("risk rejected [%s]: %s", r.Rule, r.Message)
}

// ValidationResult holds the outcome of risk validation.
type ValidationResult struct {
	Approved   bool
	Order      types.Order
	Rejections []RejectionReason
}

// Manager enforces risk_management's guardrails ahead of the Broker: the
// final gatekeeper before any Order is placed, deliberately stricter than
// the Model — a confident Model does not get to bypass it.
type Manager struct {
	cfg config.RiskManagementConfig
}

// NewManager creates a Manager over the given risk configuration.
func NewManager(cfg config.RiskManagementConfig) *Manager {
	return &Manager{cfg: cfg}
}

// UpdateConfig replaces the risk configuration atomically, used by config
// hot-reload to update risk params without restarting the Runner.
func (m *Manager) UpdateConfig(cfg config.RiskManagementConfig) {
	m.cfg = cfg
}

// Validate checks a proposed Order against the configured ratios. Sell
// orders are always allowed through — risk management caps new exposure,
// it never blocks closing a position. equity is the account's current
// total asset value; currentQty is the stock's existing holding size
// before this order (0 if none), used to size the post-trade concentration.
func (m *Manager) Validate(order types.Order, equity float64, currentQty uint32) ValidationResult {
	result := ValidationResult{Approved: true, Order: order}

	if order.Side == types.SideSell {
		return result
	}

	notional := order.Price * float64(order.Qty)

	if m.cfg.MaxInvestmentRatio > 0 && equity > 0 {
		maxDeployable := equity * m.cfg.MaxInvestmentRatio
		if notional > maxDeployable {
			m.reject(&result, "MAX_INVESTMENT_RATIO", fmt.Sprintf(
				"order notional %.2f exceeds max deployable %.2f (%.0f%% of equity %.2f)",
				notional, maxDeployable, m.cfg.MaxInvestmentRatio*100, equity))
		}
	}

	if m.cfg.MaxSingleStockRatio > 0 && equity > 0 {
		postTradeQty := float64(currentQty) + float64(order.Qty)
		postTradeNotional := postTradeQty * order.Price
		maxSingle := equity * m.cfg.MaxSingleStockRatio
		if postTradeNotional > maxSingle {
			m.reject(&result, "MAX_SINGLE_STOCK_RATIO", fmt.Sprintf(
				"post-trade position %.2f in %s exceeds max single-stock exposure %.2f (%.0f%% of equity %.2f)",
				postTradeNotional, order.Stock, maxSingle, m.cfg.MaxSingleStockRatio*100, equity))
		}
	}

	return result
}

// ValidateDailyLoss halts new entries once the day's running loss reaches
// daily_max_loss. dayProfit is the overview row's running profit so far
// today (negative means a loss).
func (m *Manager) ValidateDailyLoss(dayProfit float64) *RejectionReason {
	if m.cfg.DailyMaxLoss == 0 {
		return nil
	}
	if dayProfit < 0 && -dayProfit >= float64(m.cfg.DailyMaxLoss) {
		return &RejectionReason{
			Rule:    "MAX_DAILY_LOSS",
			Message: fmt.Sprintf("daily loss %.2f has reached limit %d", -dayProfit, m.cfg.DailyMaxLoss),
		}
	}
	return nil
}

func (m *Manager) reject(result *ValidationResult, rule, message string) {
	result.Approved = false
	result.Rejections = append(result.Rejections, RejectionReason{Rule: rule, Message: message})
}
