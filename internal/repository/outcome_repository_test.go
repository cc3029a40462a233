package repository

import (
	"context"
	"testing"
	"time"

	"OppScan/internal/domain/models"
	"OppScan/pkg/cache"
)

func TestOutcomeRoundTrip(t *testing.T) {
	mc := cache.NewMemoryCache()
	defer mc.Close()
	store := NewCachedOutcomeStore(mc, time.Minute)

	out := &models.ScanOutcome{ScanID: "scan-1", TotalCount: 2, FallbackUsed: true}
	if err := store.StoreOutcome(context.Background(), "dash", out); err != nil {
		t.Fatalf("store: %v", err)
	}

	got, err := store.LastOutcome(context.Background(), "dash")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got == nil || got.ScanID != "scan-1" || got.TotalCount != 2 || !got.FallbackUsed {
		t.Fatalf("outcome = %+v", got)
	}
}

func TestLastOutcomeMissingSession(t *testing.T) {
	mc := cache.NewMemoryCache()
	defer mc.Close()
	store := NewCachedOutcomeStore(mc, time.Minute)

	got, err := store.LastOutcome(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("miss must not error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil outcome, got %+v", got)
	}
}
