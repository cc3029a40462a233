package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"OppScan/internal/domain/models"
	"OppScan/internal/service/discovery"
	"OppScan/internal/service/pricing"
	xhttp "OppScan/pkg/http"
	applogger "OppScan/pkg/logger"
)

// scriptBackend plays back scripted status and results responses, counting
// calls so tests can assert how far the loop ran.
type scriptBackend struct {
	discoverFn func(req *models.ScanRequest) (*models.ScanHandle, error)
	statusFn   func(call int) (*models.ScanStatus, error)
	resultsFn  func(call int) (*models.ScanResults, error)

	statusCalls  int
	resultsCalls int
}

func (b *scriptBackend) Discover(_ context.Context, req *models.ScanRequest) (*models.ScanHandle, error) {
	if b.discoverFn != nil {
		return b.discoverFn(req)
	}
	return &models.ScanHandle{ScanID: "scan-1", PollingIntervalSeconds: 3, EstimatedCompletionSeconds: 60}, nil
}

func (b *scriptBackend) Status(_ context.Context, _ string) (*models.ScanStatus, error) {
	b.statusCalls++
	return b.statusFn(b.statusCalls)
}

func (b *scriptBackend) Results(_ context.Context, _ string) (*models.ScanResults, error) {
	b.resultsCalls++
	if b.resultsFn == nil {
		return nil, &xhttp.StatusError{StatusCode: 202, Code: "SCAN_IN_PROGRESS"}
	}
	return b.resultsFn(b.resultsCalls)
}

func (b *scriptBackend) Pricing(_ context.Context) (*models.PricingConfig, error) {
	return testPricing, nil
}

func (b *scriptBackend) Validate(_ context.Context, _ string, _ *models.Opportunity) (*models.Validation, error) {
	return nil, errors.New("not scripted")
}

func (b *scriptBackend) Execute(_ context.Context, _ *models.Opportunity) (*models.ExecutionReceipt, error) {
	return nil, errors.New("not scripted")
}

type recordingNotifier struct {
	events []*models.ScanEvent
}

func (r *recordingNotifier) Notify(_ context.Context, ev *models.ScanEvent) {
	r.events = append(r.events, ev)
}

func (r *recordingNotifier) countKind(kind string) int {
	n := 0
	for _, ev := range r.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func (r *recordingNotifier) last() *models.ScanEvent {
	if len(r.events) == 0 {
		return nil
	}
	return r.events[len(r.events)-1]
}

type nopMetrics struct{}

func (nopMetrics) RecordPoll(string)            {}
func (nopMetrics) RecordError(string)           {}
func (nopMetrics) RecordScanOutcome(int, bool)  {}
func (nopMetrics) RecordLatency(string, float64) {}

func testLogger(t *testing.T) *applogger.Logger {
	t.Helper()
	l, err := applogger.New(&applogger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

func newTestOrchestrator(t *testing.T, backend *scriptBackend, notify *recordingNotifier) *ScanOrchestrator {
	t.Helper()
	logger := testLogger(t)
	o := NewScanOrchestrator(backend, pricing.New(backend, *testPricing, logger), NewReconciler(), notify, nopMetrics{}, logger)
	o.wait = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	return o
}

func testHandle() *models.ScanHandle {
	return &models.ScanHandle{ScanID: "scan-1", PollingIntervalSeconds: 3, EstimatedCompletionSeconds: 60}
}

func serverErr() error  { return &xhttp.StatusError{StatusCode: 500, Message: "internal"} }
func pendingErr() error { return &xhttp.StatusError{StatusCode: 202, Code: "SCAN_IN_PROGRESS"} }

func runningStatus() (*models.ScanStatus, error) {
	return &models.ScanStatus{State: models.StateRunning, Raw: "scanning"}, nil
}

func TestPollCompletesAndReconciles(t *testing.T) {
	backend := &scriptBackend{
		statusFn: func(int) (*models.ScanStatus, error) {
			return &models.ScanStatus{State: models.StateComplete, Raw: "complete"}, nil
		},
		resultsFn: func(int) (*models.ScanResults, error) {
			return &models.ScanResults{Opportunities: []models.RawOpportunity{
				{Symbol: "BTC", OpportunityType: "long", ConfidenceScore: 0.9},
				{Symbol: "ETH", OpportunityType: "short", ConfidenceScore: 0.7},
			}}, nil
		},
	}
	notify := &recordingNotifier{}
	o := newTestOrchestrator(t, backend, notify)

	out, err := o.Poll(context.Background(), testHandle())
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if out.TotalCount != 2 || out.FallbackUsed {
		t.Fatalf("outcome = %+v", out)
	}
	last := notify.last()
	if last == nil || !last.Terminal() || last.Outcome == nil {
		t.Fatalf("terminal event missing, last = %+v", last)
	}
}

func TestBreakerTripsAfterThreeConsecutiveErrors(t *testing.T) {
	backend := &scriptBackend{
		statusFn: func(int) (*models.ScanStatus, error) { return nil, serverErr() },
	}
	notify := &recordingNotifier{}
	o := newTestOrchestrator(t, backend, notify)

	_, err := o.Poll(context.Background(), testHandle())
	if err == nil {
		t.Fatal("expected abort")
	}
	if backend.statusCalls != 3 {
		t.Fatalf("status calls = %d, want 3", backend.statusCalls)
	}
	if !strings.Contains(err.Error(), "consecutive") {
		t.Fatalf("error = %v", err)
	}
	if last := notify.last(); last == nil || !last.Terminal() {
		t.Fatalf("breaker abort must emit a terminal event, last = %+v", last)
	}
}

func TestBreakerResetsOnSuccessfulPoll(t *testing.T) {
	// err, ok, err, err, err: the success in between must reset the count,
	// so the abort lands on the fifth call, not the fourth.
	backend := &scriptBackend{
		statusFn: func(call int) (*models.ScanStatus, error) {
			if call == 2 {
				return runningStatus()
			}
			return nil, serverErr()
		},
	}
	o := newTestOrchestrator(t, backend, &recordingNotifier{})

	_, err := o.Poll(context.Background(), testHandle())
	if err == nil {
		t.Fatal("expected abort")
	}
	if backend.statusCalls != 5 {
		t.Fatalf("status calls = %d, want 5", backend.statusCalls)
	}
}

func TestThrownNotFoundIsTerminal(t *testing.T) {
	backend := &scriptBackend{
		statusFn: func(int) (*models.ScanStatus, error) {
			return nil, &xhttp.StatusError{StatusCode: 404, Code: "SCAN_NOT_FOUND"}
		},
	}
	o := newTestOrchestrator(t, backend, &recordingNotifier{})

	_, err := o.Poll(context.Background(), testHandle())
	var se *discovery.ScanError
	if !errors.As(err, &se) || se.Kind != discovery.KindNotFound {
		t.Fatalf("error = %v", err)
	}
	if backend.statusCalls != 1 {
		t.Fatalf("status calls = %d, want 1", backend.statusCalls)
	}
}

func TestFailedStatusIsTerminal(t *testing.T) {
	backend := &scriptBackend{
		statusFn: func(int) (*models.ScanStatus, error) {
			return &models.ScanStatus{State: models.StateFailed, Raw: "failed", Reason: "strategy engine crashed"}, nil
		},
	}
	o := newTestOrchestrator(t, backend, &recordingNotifier{})

	_, err := o.Poll(context.Background(), testHandle())
	var se *discovery.ScanError
	if !errors.As(err, &se) || se.Kind != discovery.KindBackendFailed {
		t.Fatalf("error = %v", err)
	}
	if !strings.Contains(err.Error(), "strategy engine crashed") {
		t.Fatalf("reason lost: %v", err)
	}
}

func TestPartialFallbackOnTimeout(t *testing.T) {
	partials := []models.RawOpportunity{{Symbol: "SOL", OpportunityType: "long", ConfidenceScore: 0.6}}
	backend := &scriptBackend{
		statusFn: func(int) (*models.ScanStatus, error) {
			return &models.ScanStatus{State: models.StateRunning, Raw: "scanning", PartialResults: partials}, nil
		},
		resultsFn: func(int) (*models.ScanResults, error) { return nil, pendingErr() },
	}
	notify := &recordingNotifier{}
	o := newTestOrchestrator(t, backend, notify)

	out, err := o.Poll(context.Background(), testHandle())
	if err != nil {
		t.Fatalf("fallback path must not error: %v", err)
	}
	if !out.FallbackUsed || out.TotalCount != 1 || out.Validated[0].Symbol != "SOL" {
		t.Fatalf("outcome = %+v", out)
	}
	if last := notify.last(); last == nil || !last.Terminal() || last.Outcome == nil {
		t.Fatalf("fallback must still emit a terminal outcome event")
	}
}

func TestTimeoutWithoutPartials(t *testing.T) {
	backend := &scriptBackend{
		statusFn:  func(int) (*models.ScanStatus, error) { return runningStatus() },
		resultsFn: func(int) (*models.ScanResults, error) { return nil, pendingErr() },
	}
	o := newTestOrchestrator(t, backend, &recordingNotifier{})

	out, err := o.Poll(context.Background(), testHandle())
	if out != nil {
		t.Fatalf("no outcome expected, got %+v", out)
	}
	var se *discovery.ScanError
	if !errors.As(err, &se) || se.Kind != discovery.KindScanTimeout {
		t.Fatalf("error = %v", err)
	}
	if backend.statusCalls != 40 {
		t.Fatalf("status calls = %d, want full budget of 40", backend.statusCalls)
	}
}

func TestDuplicateNotFoundEventsSuppressed(t *testing.T) {
	backend := &scriptBackend{
		statusFn: func(int) (*models.ScanStatus, error) {
			return &models.ScanStatus{State: models.StateNotFound, Raw: "not_found"}, nil
		},
		resultsFn: func(call int) (*models.ScanResults, error) {
			if call < 3 {
				return nil, pendingErr()
			}
			return &models.ScanResults{Opportunities: []models.RawOpportunity{
				{Symbol: "BTC", OpportunityType: "long", ConfidenceScore: 0.9},
			}}, nil
		},
	}
	notify := &recordingNotifier{}
	o := newTestOrchestrator(t, backend, notify)

	out, err := o.Poll(context.Background(), testHandle())
	if err != nil {
		t.Fatalf("probe recovery failed: %v", err)
	}
	if out.TotalCount != 1 {
		t.Fatalf("outcome = %+v", out)
	}
	if n := notify.countKind("not_found"); n != 1 {
		t.Fatalf("not_found events = %d, want consecutive duplicates suppressed to 1", n)
	}
}

func TestEarlyProbePicksUpFinishedScan(t *testing.T) {
	backend := &scriptBackend{
		statusFn: func(int) (*models.ScanStatus, error) { return runningStatus() },
		resultsFn: func(int) (*models.ScanResults, error) {
			return &models.ScanResults{Opportunities: []models.RawOpportunity{
				{Symbol: "ETH", OpportunityType: "long", ConfidenceScore: 0.8},
			}}, nil
		},
	}
	o := newTestOrchestrator(t, backend, &recordingNotifier{})

	out, err := o.Poll(context.Background(), testHandle())
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	// First early probe fires on the third attempt.
	if backend.statusCalls != 3 {
		t.Fatalf("status calls = %d, want 3", backend.statusCalls)
	}
	if out.FallbackUsed {
		t.Fatal("an early full fetch is not a fallback")
	}
}

func TestCompleteButResultsPendingKeepsPolling(t *testing.T) {
	backend := &scriptBackend{
		statusFn: func(int) (*models.ScanStatus, error) {
			return &models.ScanStatus{State: models.StateComplete, Raw: "complete"}, nil
		},
		resultsFn: func(call int) (*models.ScanResults, error) {
			if call < 3 {
				return nil, pendingErr()
			}
			return &models.ScanResults{Opportunities: nil}, nil
		},
	}
	notify := &recordingNotifier{}
	o := newTestOrchestrator(t, backend, notify)

	out, err := o.Poll(context.Background(), testHandle())
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if backend.statusCalls != 3 {
		t.Fatalf("status calls = %d, want 3", backend.statusCalls)
	}
	if out.TotalCount != 0 {
		t.Fatalf("empty result set is a valid outcome, got %+v", out)
	}
	if n := notify.countKind("warning"); n != 1 {
		t.Fatalf("warning events = %d, want duplicates suppressed to 1", n)
	}
}

func TestCancelledContextStopsBeforePolling(t *testing.T) {
	backend := &scriptBackend{
		statusFn: func(int) (*models.ScanStatus, error) { return runningStatus() },
	}
	o := newTestOrchestrator(t, backend, &recordingNotifier{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := o.Poll(ctx, testHandle())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v", err)
	}
	if backend.statusCalls != 0 {
		t.Fatalf("status calls = %d, want 0 after cancellation", backend.statusCalls)
	}
}

func TestInitiateNormalizesRequest(t *testing.T) {
	var seen *models.ScanRequest
	backend := &scriptBackend{
		discoverFn: func(req *models.ScanRequest) (*models.ScanHandle, error) {
			seen = req
			return testHandle(), nil
		},
	}
	notify := &recordingNotifier{}
	o := newTestOrchestrator(t, backend, notify)

	_, err := o.Initiate(context.Background(), &models.ScanRequest{
		Symbols:    []string{" btc", "ETH", "btc"},
		AssetTiers: []string{"CORE"},
	})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if len(seen.Symbols) != 2 || seen.Symbols[0] != "BTC" || seen.Symbols[1] != "ETH" {
		t.Fatalf("symbols = %v", seen.Symbols)
	}
	if seen.AssetTiers[0] != "core" {
		t.Fatalf("tiers = %v", seen.AssetTiers)
	}
	if notify.countKind("initiated") != 1 {
		t.Fatal("initiated event missing")
	}
}
