package usecase

import (
    "testing"
    "time"

    "OppScan/internal/domain/models"
)

var testPricing = &models.PricingConfig{
    OpportunityScanCost: 1,
    ValidationCost:      2,
    ExecutionCost:       0.5,
    PerCallEstimate:     0.1,
}

func fixedReconciler(t *testing.T) (*Reconciler, time.Time) {
    t.Helper()
    now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
    r := NewReconciler()
    r.now = func() time.Time { return now }
    return r, now
}

func TestInferSideVectors(t *testing.T) {
    cases := map[string]models.Side{
        "SHORT_BREAKOUT": models.SideSell,
        "long_momentum":  models.SideBuy,
        "BUY_DIP":        models.SideBuy,
        "sell_rally":     models.SideSell,
        // Ambiguous types keep the observed sell default.
        "unknown": models.SideSell,
    }
    for typ, want := range cases {
        if got := inferSide(typ); got != want {
            t.Fatalf("inferSide(%q) = %v, want %v", typ, got, want)
        }
    }
}

func TestCostArithmetic(t *testing.T) {
    r, _ := fixedReconciler(t)
    raws := make([]models.RawOpportunity, 10)
    for i := range raws {
        raws[i] = models.RawOpportunity{Symbol: "BTC", OpportunityType: "long", ConfidenceScore: 0.5}
    }
    out := r.Reconcile("scan-1", raws, testPricing, false)
    if out.ScanCost != 10 || out.ValidationCost != 20 || out.TotalScanCost != 30 {
        t.Fatalf("costs = %v/%v/%v", out.ScanCost, out.ValidationCost, out.TotalScanCost)
    }
    if out.ExecutionCost != 0.5 {
        t.Fatalf("execution cost = %v", out.ExecutionCost)
    }
}

func TestRiskFigures(t *testing.T) {
    r, _ := fixedReconciler(t)
    raws := []models.RawOpportunity{{
        Symbol:          "ETH",
        OpportunityType: "long",
        ConfidenceScore: 0.8,
        EntryPrice:      100,
        Metadata: map[string]interface{}{
            "stop_loss":     95.0,
            "position_size": 2.0,
        },
    }}
    out := r.Reconcile("scan-1", raws, testPricing, false)
    opp := out.Validated[0]
    if opp.MaxLossUSD != 10 {
        t.Fatalf("max loss = %v", opp.MaxLossUSD)
    }
    if opp.RiskPercent != 5 {
        t.Fatalf("risk pct = %v", opp.RiskPercent)
    }
    if opp.Confidence != 80 {
        t.Fatalf("confidence = %v", opp.Confidence)
    }
}

func TestRiskPercentSignRespectsShortSide(t *testing.T) {
    // A short loses when price rises to the stop above entry.
    if got := riskPercent(models.SideSell, 100, 110); got != 10 {
        t.Fatalf("short risk pct = %v", got)
    }
    if got := riskPercent(models.SideBuy, 100, 90); got != 10 {
        t.Fatalf("long risk pct = %v", got)
    }
}

func TestNoStopLossMeansZeroRisk(t *testing.T) {
    r, _ := fixedReconciler(t)
    out := r.Reconcile("scan-1", []models.RawOpportunity{{Symbol: "SOL", OpportunityType: "short", EntryPrice: 50}}, testPricing, false)
    if out.Validated[0].MaxLossUSD != 0 || out.Validated[0].RiskPercent != 0 {
        t.Fatalf("risk figures must be zero without a stop loss")
    }
}

func TestExpiryStamp(t *testing.T) {
    r, now := fixedReconciler(t)
    out := r.Reconcile("scan-1", []models.RawOpportunity{{Symbol: "BTC", OpportunityType: "long"}}, testPricing, false)
    if !out.Validated[0].ExpiresAt.Equal(now.Add(5 * time.Minute)) {
        t.Fatalf("expiry = %v", out.Validated[0].ExpiresAt)
    }
}

func TestBestOpportunityStableTieBreak(t *testing.T) {
    r, _ := fixedReconciler(t)
    raws := []models.RawOpportunity{
        {Symbol: "FIRST", OpportunityType: "long", Metadata: map[string]interface{}{"consensus_score": 90.0}},
        {Symbol: "SECOND", OpportunityType: "long", Metadata: map[string]interface{}{"consensus_score": 90.0}},
        {Symbol: "THIRD", OpportunityType: "long", Metadata: map[string]interface{}{"consensus_score": 80.0}},
    }
    out := r.Reconcile("scan-1", raws, testPricing, false)
    if out.Best == nil || out.Best.Symbol != "FIRST" {
        t.Fatalf("best = %+v, want FIRST on tie", out.Best)
    }
}

func TestScanPathIsAllPreValidated(t *testing.T) {
    r, _ := fixedReconciler(t)
    out := r.Reconcile("scan-1", []models.RawOpportunity{{Symbol: "BTC", OpportunityType: "long"}}, testPricing, true)
    if len(out.NonValidated) != 0 {
        t.Fatalf("non-validated tier must be empty in the scan path")
    }
    if !out.FallbackUsed {
        t.Fatalf("fallback flag lost")
    }
    if !out.Validated[0].AIValidated || !out.Validated[0].Validation.Approved {
        t.Fatalf("scan-path opportunities are pre-validated")
    }
}
