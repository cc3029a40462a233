package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"OppScan/internal/domain/models"
)

type memOutcomes struct {
	mu sync.Mutex
	m  map[string]*models.ScanOutcome
}

func newMemOutcomes() *memOutcomes {
	return &memOutcomes{m: make(map[string]*models.ScanOutcome)}
}

func (c *memOutcomes) StoreOutcome(_ context.Context, session string, out *models.ScanOutcome) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[session] = out
	return nil
}

func (c *memOutcomes) LastOutcome(_ context.Context, session string) (*models.ScanOutcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.m[session], nil
}

// eventually polls cond until it holds or the deadline passes.
func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func hangingBackend() *scriptBackend {
	return &scriptBackend{
		statusFn: func(int) (*models.ScanStatus, error) { return runningStatus() },
	}
}

func TestStartScanSupersedesPrevious(t *testing.T) {
	backend := hangingBackend()
	o := newTestOrchestrator(t, backend, &recordingNotifier{})
	// Block each poll iteration until the scan context is cancelled so the
	// first scan stays in flight until superseded.
	o.wait = func(ctx context.Context, _ time.Duration) error {
		<-ctx.Done()
		return ctx.Err()
	}
	m := NewSessionManager(o, newMemOutcomes(), testLogger(t))
	defer m.Shutdown(context.Background())

	first, err := m.StartScan(context.Background(), "dash", &models.ScanRequest{Symbols: []string{"BTC"}})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if got := m.Active(); len(got) != 1 || got[0].ScanID != first.ScanID {
		t.Fatalf("active = %+v", got)
	}

	second, err := m.StartScan(context.Background(), "dash", &models.ScanRequest{Symbols: []string{"ETH"}})
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	eventually(t, func() bool {
		got := m.Active()
		return len(got) == 1 && got[0].ScanID == second.ScanID
	}, "second scan did not supersede the first")
}

func TestOutcomeCachedAfterCompletion(t *testing.T) {
	backend := &scriptBackend{
		statusFn: func(int) (*models.ScanStatus, error) {
			return &models.ScanStatus{State: models.StateComplete, Raw: "complete"}, nil
		},
		resultsFn: func(int) (*models.ScanResults, error) {
			return &models.ScanResults{Opportunities: []models.RawOpportunity{
				{Symbol: "BTC", OpportunityType: "long", ConfidenceScore: 0.9},
			}}, nil
		},
	}
	o := newTestOrchestrator(t, backend, &recordingNotifier{})
	outcomes := newMemOutcomes()
	m := NewSessionManager(o, outcomes, testLogger(t))
	defer m.Shutdown(context.Background())

	if _, err := m.StartScan(context.Background(), "", &models.ScanRequest{Symbols: []string{"BTC"}}); err != nil {
		t.Fatalf("start: %v", err)
	}
	eventually(t, func() bool {
		out, _ := m.Outcome(context.Background(), DefaultSession)
		return out != nil && out.TotalCount == 1
	}, "outcome was not cached after completion")

	if got := m.Active(); len(got) != 0 {
		t.Fatalf("completed scan still listed active: %+v", got)
	}
}

func TestCancelStopsInFlightScan(t *testing.T) {
	o := newTestOrchestrator(t, hangingBackend(), &recordingNotifier{})
	o.wait = func(ctx context.Context, _ time.Duration) error {
		<-ctx.Done()
		return ctx.Err()
	}
	m := NewSessionManager(o, newMemOutcomes(), testLogger(t))
	defer m.Shutdown(context.Background())

	if _, err := m.StartScan(context.Background(), "dash", &models.ScanRequest{Symbols: []string{"BTC"}}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !m.Cancel("dash") {
		t.Fatal("cancel reported no scan in flight")
	}
	eventually(t, func() bool { return len(m.Active()) == 0 }, "cancelled scan still active")
	if m.Cancel("dash") {
		t.Fatal("second cancel should find nothing to stop")
	}
}

func TestShutdownRejectsNewScans(t *testing.T) {
	o := newTestOrchestrator(t, hangingBackend(), &recordingNotifier{})
	m := NewSessionManager(o, newMemOutcomes(), testLogger(t))

	if err := m.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if _, err := m.StartScan(context.Background(), "dash", &models.ScanRequest{Symbols: []string{"BTC"}}); err == nil {
		t.Fatal("start after shutdown must fail")
	}
}
