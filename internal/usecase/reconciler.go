package usecase

import (
	"math"
	"strings"
	"time"

	"OppScan/internal/domain/models"
)

// opportunityTTL is the freshness window stamped on every reconciled
// opportunity. Downstream consumers enforce it; this subsystem does not
// re-validate.
const opportunityTTL = 5 * time.Minute

// Reconciler maps raw backend opportunity records into the tiered domain
// model and computes cost aggregates from the session pricing.
type Reconciler struct {
	now func() time.Time
}

func NewReconciler() *Reconciler {
	return &Reconciler{now: time.Now}
}

// Reconcile builds the terminal ScanOutcome from raw records. Everything
// coming out of the scan path is treated as pre-validated by the strategy
// engine, so the non-validated tier stays empty; the separate validation
// entrypoint fills it for other flows.
func (r *Reconciler) Reconcile(scanID string, raws []models.RawOpportunity, pricing *models.PricingConfig, fallback bool) *models.ScanOutcome {
	now := r.now()
	validated := make([]models.Opportunity, 0, len(raws))
	for i := range raws {
		validated = append(validated, r.reconcileOne(&raws[i], now))
	}

	n := float64(len(validated))
	out := &models.ScanOutcome{
		ScanID:         scanID,
		Validated:      validated,
		NonValidated:   []models.Opportunity{},
		TotalCount:     len(validated),
		ValidatedCount: len(validated),
		ScanCost:       n * pricing.OpportunityScanCost,
		ValidationCost: n * pricing.ValidationCost,
		ExecutionCost:  pricing.ExecutionCost,
		FallbackUsed:   fallback,
		CompletedAt:    now,
	}
	out.TotalScanCost = out.ScanCost + out.ValidationCost
	out.Best = bestOpportunity(out.Validated)
	return out
}

func (r *Reconciler) reconcileOne(raw *models.RawOpportunity, now time.Time) models.Opportunity {
	side := inferSide(raw.OpportunityType)
	stop := raw.MetaFloat("stop_loss", 0)
	size := raw.MetaFloat("position_size", 0)

	strategy := raw.StrategyName
	if strategy == "" {
		strategy = raw.StrategyID
	}

	consensus := raw.MetaFloat("consensus_score", raw.ConfidenceScore*100)

	opp := models.Opportunity{
		Symbol:             raw.Symbol,
		Side:               side,
		Strategy:           strategy,
		Confidence:         raw.ConfidenceScore * 100,
		EntryPrice:         raw.EntryPrice,
		StopLoss:           stop,
		TakeProfit:         raw.MetaFloat("take_profit", 0),
		PositionSize:       size,
		ProfitPotentialUSD: raw.ProfitPotentialUSD,
		RequiredCapitalUSD: raw.RequiredCapitalUSD,
		RiskLevel:          raw.RiskLevel,
		Validation: models.Validation{
			Approved:       true,
			ConsensusScore: consensus,
			Reasoning:      raw.MetaString("reasoning"),
			RiskAssessment: raw.RiskLevel,
		},
		AIValidated:  true,
		DiscoveredAt: now,
		ExpiresAt:    now.Add(opportunityTTL),
	}

	if stop > 0 {
		opp.MaxLossUSD = math.Abs(raw.EntryPrice-stop) * size
		opp.RiskPercent = riskPercent(side, raw.EntryPrice, stop)
	}

	return opp
}

// inferSide derives the trade side from the free-form opportunity type.
// Unrecognized types default to sell; observed upstream behavior kept
// intact rather than silently corrected.
func inferSide(opportunityType string) models.Side {
	t := strings.ToLower(opportunityType)
	if strings.Contains(t, "long") || strings.Contains(t, "buy") {
		return models.SideBuy
	}
	return models.SideSell
}

// riskPercent is the stop distance relative to entry, signed by side: a
// buy loses when price falls to the stop, a sell when it rises.
func riskPercent(side models.Side, entry, stop float64) float64 {
	if entry == 0 {
		return 0
	}
	if side == models.SideBuy {
		return (entry - stop) / entry * 100
	}
	return (stop - entry) / entry * 100
}

// bestOpportunity picks the highest consensus score; ties keep discovery
// order (first wins).
func bestOpportunity(opps []models.Opportunity) *models.Opportunity {
	if len(opps) == 0 {
		return nil
	}
	best := 0
	for i := 1; i < len(opps); i++ {
		if opps[i].Validation.ConsensusScore > opps[best].Validation.ConsensusScore {
			best = i
		}
	}
	return &opps[best]
}
