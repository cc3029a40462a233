package models

// Requests for the dashboard-facing scan endpoints. Defined in domain for
// consistency and reuse.

type StartScanRequest struct {
	SessionID    string   `query:"session" json:"session_id" default:"default"`
	Symbols      []string `json:"symbols"`
	AssetTiers   []string `json:"asset_tiers" validate:"omitempty,dive,oneof=core satellite speculative"`
	StrategyIDs  []string `json:"strategy_ids"`
	ForceRefresh bool     `json:"force_refresh"`
}

type SessionQuery struct {
	SessionID string `query:"session" json:"session_id" default:"default"`
}

type ValidateOpportunityRequest struct {
	SessionID string `query:"session" json:"session_id" default:"default"`
	Symbol    string `json:"symbol" validate:"required"`
}

type ExecuteBatchRequest struct {
	SessionID string        `query:"session" json:"session_id" default:"default"`
	Trades    []Opportunity `json:"trades" validate:"required,min=1"`
}
