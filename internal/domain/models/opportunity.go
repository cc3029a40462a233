package models

import "time"

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Validation is the strategy engine's verdict attached to an opportunity.
type Validation struct {
	Approved       bool    `json:"approved"`
	ConsensusScore float64 `json:"consensus_score"`
	Reasoning      string  `json:"reasoning,omitempty"`
	RiskAssessment string  `json:"risk_assessment,omitempty"`
}

// Opportunity is the reconciled, dashboard-facing view of a raw backend
// record. Immutable after reconciliation.
type Opportunity struct {
	Symbol             string     `json:"symbol"`
	Side               Side       `json:"side"`
	Strategy           string     `json:"strategy"`
	Confidence         float64    `json:"confidence"` // 0-100
	EntryPrice         float64    `json:"entry_price"`
	StopLoss           float64    `json:"stop_loss,omitempty"`
	TakeProfit         float64    `json:"take_profit,omitempty"`
	PositionSize       float64    `json:"position_size,omitempty"`
	MaxLossUSD         float64    `json:"max_loss_usd"`
	RiskPercent        float64    `json:"risk_percent"`
	ProfitPotentialUSD float64    `json:"profit_potential_usd"`
	RequiredCapitalUSD float64    `json:"required_capital_usd"`
	RiskLevel          string     `json:"risk_level,omitempty"`
	Validation         Validation `json:"validation"`
	AIValidated        bool       `json:"ai_validated"`
	DiscoveredAt       time.Time  `json:"discovered_at"`
	ExpiresAt          time.Time  `json:"expires_at"`
}

// Expired reports whether the freshness window has passed.
func (o *Opportunity) Expired(now time.Time) bool {
	return now.After(o.ExpiresAt)
}

// ScanOutcome is the terminal artifact of a scan: reconciled opportunities
// split into tiers plus cost aggregates. At most one per ScanHandle.
type ScanOutcome struct {
	ScanID         string        `json:"scan_id"`
	Validated      []Opportunity `json:"validated"`
	NonValidated   []Opportunity `json:"non_validated"`
	TotalCount     int           `json:"total_count"`
	ValidatedCount int           `json:"validated_count"`
	ScanCost       float64       `json:"scan_cost"`
	ValidationCost float64       `json:"validation_cost"`
	TotalScanCost  float64       `json:"total_scan_cost"`
	ExecutionCost  float64       `json:"execution_cost_per_trade"`
	FallbackUsed   bool          `json:"fallback_used"`
	Best           *Opportunity  `json:"best,omitempty"`
	CompletedAt    time.Time     `json:"completed_at"`
}

// ExecutionReceipt is the backend's acknowledgement of a submitted trade.
type ExecutionReceipt struct {
	Symbol  string `json:"symbol"`
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}
