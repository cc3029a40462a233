package models

// PricingConfig holds per-unit costs for scan/validation/execution.
// Fetched once at session start and read-only afterwards; defaults apply
// when the pricing endpoint is unreachable.
type PricingConfig struct {
	OpportunityScanCost float64 `json:"opportunity_scan_cost"`
	ValidationCost      float64 `json:"validation_cost"`
	ExecutionCost       float64 `json:"execution_cost"`
	PerCallEstimate     float64 `json:"per_call_estimate"`
}
