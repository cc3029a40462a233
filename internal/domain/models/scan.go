package models

import (
	"strings"
	"time"

	"OppScan/pkg/util"
)

// JobState is the closed set of states the polling loop acts on.
type JobState string

const (
	StateComplete JobState = "complete"
	StateRunning  JobState = "running"
	StateNotFound JobState = "not_found"
	StateFailed   JobState = "failed"
	// StateUnknown means the server sent a status string this build does not
	// know; the loop keeps polling instead of failing.
	StateUnknown JobState = "unknown"
)

// serverStatusStates maps raw backend status strings to loop states.
// Unlisted strings map to StateUnknown.
var serverStatusStates = map[string]JobState{
	"complete":     StateComplete,
	"completed":    StateComplete,
	"done":         StateComplete,
	"finished":     StateComplete,
	"scanning":     StateRunning,
	"running":      StateRunning,
	"in_progress":  StateRunning,
	"processing":   StateRunning,
	"queued":       StateRunning,
	"pending":      StateRunning,
	"initiated":    StateRunning,
	"initializing": StateRunning,
	"not_found":    StateNotFound,
	"failed":       StateFailed,
	"error":        StateFailed,
}

// MapServerStatus normalizes a raw server status string to a JobState.
func MapServerStatus(raw string) JobState {
	s := strings.ToLower(strings.TrimSpace(raw))
	if st, ok := serverStatusStates[s]; ok {
		return st
	}
	return StateUnknown
}

// ScanRequest describes the filters for a discovery run. Empty lists mean
// no restriction.
type ScanRequest struct {
	Symbols      []string
	AssetTiers   []string
	StrategyIDs  []string
	ForceRefresh bool
}

// Normalize trims, dedupes and case-normalizes the filter lists in place.
func (r *ScanRequest) Normalize() {
	r.Symbols = util.NormalizeList(r.Symbols, strings.ToUpper)
	r.AssetTiers = util.NormalizeList(r.AssetTiers, strings.ToLower)
	r.StrategyIDs = util.NormalizeList(r.StrategyIDs, nil)
}

// ScanHandle identifies a scan job on the backend. Created once per
// initiation and never recreated for the same logical scan.
type ScanHandle struct {
	ScanID                     string  `json:"scan_id"`
	PollingIntervalSeconds     float64 `json:"polling_interval_seconds"`
	EstimatedCompletionSeconds float64 `json:"estimated_completion_seconds"`
}

// ScanProgress carries per-poll progress counters when the backend
// reports them.
type ScanProgress struct {
	StrategiesCompleted int     `json:"strategies_completed"`
	TotalStrategies     int     `json:"total_strategies"`
	Percentage          float64 `json:"percentage"`
}

// ScanStatus is the result of a single status poll. Superseded on the
// next poll, never mutated.
type ScanStatus struct {
	State          JobState
	Raw            string
	Reason         string
	Progress       *ScanProgress
	PartialResults []RawOpportunity
}

// RawOpportunity is the backend's record for a candidate trade. Read-only
// to this subsystem.
type RawOpportunity struct {
	Symbol             string                 `json:"symbol"`
	OpportunityType    string                 `json:"opportunity_type"`
	ConfidenceScore    float64                `json:"confidence_score"`
	EntryPrice         float64                `json:"entry_price"`
	ProfitPotentialUSD float64                `json:"profit_potential_usd"`
	RequiredCapitalUSD float64                `json:"required_capital_usd"`
	RiskLevel          string                 `json:"risk_level"`
	StrategyName       string                 `json:"strategy_name"`
	StrategyID         string                 `json:"strategy_id"`
	Metadata           map[string]interface{} `json:"metadata"`
}

// MetaFloat reads a numeric metadata field, returning def when absent or
// not a number.
func (r *RawOpportunity) MetaFloat(key string, def float64) float64 {
	if r.Metadata == nil {
		return def
	}
	switch v := r.Metadata[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return def
	}
}

// MetaString reads a string metadata field.
func (r *RawOpportunity) MetaString(key string) string {
	if r.Metadata == nil {
		return ""
	}
	if s, ok := r.Metadata[key].(string); ok {
		return s
	}
	return ""
}

// ScanResults is the full payload of the results endpoint.
type ScanResults struct {
	Opportunities      []RawOpportunity       `json:"opportunities"`
	TotalOpportunities int                    `json:"total_opportunities"`
	Metadata           map[string]interface{} `json:"metadata"`
}

// ScanEvent is a state transition or progress notification flowing from
// the poll loop to notifier sinks.
type ScanEvent struct {
	Kind      string        `json:"kind"` // initiated, progress, not_found, warning, terminal
	ScanID    string        `json:"scan_id"`
	State     JobState      `json:"state"`
	Attempt   int           `json:"attempt,omitempty"`
	Progress  *ScanProgress `json:"progress,omitempty"`
	Message   string        `json:"message,omitempty"`
	Outcome   *ScanOutcome  `json:"outcome,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// Terminal reports whether the event closes out its scan.
func (e *ScanEvent) Terminal() bool { return e.Kind == "terminal" }
