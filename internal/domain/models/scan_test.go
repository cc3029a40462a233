package models

import (
	"reflect"
	"testing"
)

func TestMapServerStatus(t *testing.T) {
	cases := map[string]JobState{
		"complete":     StateComplete,
		"COMPLETED":    StateComplete,
		" done ":       StateComplete,
		"scanning":     StateRunning,
		"in_progress":  StateRunning,
		"queued":       StateRunning,
		"initializing": StateRunning,
		"not_found":    StateNotFound,
		"failed":       StateFailed,
		"error":        StateFailed,
		"wat":          StateUnknown,
		"":             StateUnknown,
	}
	for raw, want := range cases {
		if got := MapServerStatus(raw); got != want {
			t.Fatalf("MapServerStatus(%q) = %v, want %v", raw, got, want)
		}
	}
}

func TestScanRequestNormalize(t *testing.T) {
	r := &ScanRequest{
		Symbols:     []string{" btc", "ETH ", "btc", ""},
		AssetTiers:  []string{"Core", "SATELLITE", "core"},
		StrategyIDs: []string{"momentum-v2", " momentum-v2 "},
	}
	r.Normalize()

	if !reflect.DeepEqual(r.Symbols, []string{"BTC", "ETH"}) {
		t.Fatalf("symbols = %v", r.Symbols)
	}
	if !reflect.DeepEqual(r.AssetTiers, []string{"core", "satellite"}) {
		t.Fatalf("tiers = %v", r.AssetTiers)
	}
	if !reflect.DeepEqual(r.StrategyIDs, []string{"momentum-v2"}) {
		t.Fatalf("strategy ids = %v", r.StrategyIDs)
	}
}

func TestMetaFloatFallsBack(t *testing.T) {
	raw := &RawOpportunity{Metadata: map[string]interface{}{
		"stop_loss": 95.5,
		"count":     3,
		"label":     "x",
	}}
	if got := raw.MetaFloat("stop_loss", 0); got != 95.5 {
		t.Fatalf("stop_loss = %v", got)
	}
	if got := raw.MetaFloat("count", 0); got != 3 {
		t.Fatalf("count = %v", got)
	}
	if got := raw.MetaFloat("label", 7); got != 7 {
		t.Fatalf("non-numeric must fall back, got %v", got)
	}
	if got := raw.MetaFloat("missing", 1.5); got != 1.5 {
		t.Fatalf("missing must fall back, got %v", got)
	}
}
