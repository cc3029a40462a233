package middleware

import (
	"context"
	"sync"
	"testing"
	"time"

	"OppScan/internal/domain/models"
	domrepo "OppScan/internal/domain/repository"
)

type countMetrics struct {
	mu     sync.Mutex
	errors map[string]int
}

func newCountMetrics() *countMetrics {
	return &countMetrics{errors: make(map[string]int)}
}

func (m *countMetrics) RecordPoll(string)           {}
func (m *countMetrics) RecordScanOutcome(int, bool) {}
func (m *countMetrics) RecordLatency(string, float64) {}
func (m *countMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[kind]++
}

func (m *countMetrics) errorCount(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errors[kind]
}

type captureSink struct {
	mu     sync.Mutex
	events []*models.ScanEvent
}

func (s *captureSink) Notify(_ context.Context, ev *models.ScanEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *captureSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func TestProgressThrottledPerScan(t *testing.T) {
	metrics := newCountMetrics()
	p := NewEventPipeline(metrics, nil, WithProgressThrottle(time.Hour))

	for i := 0; i < 3; i++ {
		p.Notify(context.Background(), &models.ScanEvent{Kind: "progress", ScanID: "scan-1"})
	}
	// A different scan has its own throttle window.
	p.Notify(context.Background(), &models.ScanEvent{Kind: "progress", ScanID: "scan-2"})

	if got := len(p.bufCh); got != 2 {
		t.Fatalf("buffered = %d, want one progress event per scan", got)
	}
	if metrics.errorCount("pipeline_throttle") != 2 {
		t.Fatalf("throttle drops = %d", metrics.errorCount("pipeline_throttle"))
	}
}

func TestTerminalBypassesThrottle(t *testing.T) {
	p := NewEventPipeline(newCountMetrics(), nil, WithProgressThrottle(time.Hour))

	p.Notify(context.Background(), &models.ScanEvent{Kind: "progress", ScanID: "scan-1"})
	p.Notify(context.Background(), &models.ScanEvent{Kind: "terminal", ScanID: "scan-1"})
	// The terminal event reset the scan's throttle state, so a fresh
	// progress event passes again.
	p.Notify(context.Background(), &models.ScanEvent{Kind: "progress", ScanID: "scan-1"})

	if got := len(p.bufCh); got != 3 {
		t.Fatalf("buffered = %d, want 3", got)
	}
}

func TestOverflowDropsInsteadOfBlocking(t *testing.T) {
	metrics := newCountMetrics()
	p := NewEventPipeline(metrics, nil, WithBufferSize(1))

	p.Notify(context.Background(), &models.ScanEvent{Kind: "initiated", ScanID: "scan-1"})
	p.Notify(context.Background(), &models.ScanEvent{Kind: "warning", ScanID: "scan-1"})

	if metrics.errorCount("pipeline_buffer_full") != 1 {
		t.Fatalf("overflow drops = %d", metrics.errorCount("pipeline_buffer_full"))
	}
}

func TestDispatchFansOutToSinks(t *testing.T) {
	a, b := &captureSink{}, &captureSink{}
	p := NewEventPipeline(newCountMetrics(), []domrepo.Notifier{a, b})
	p.Start(context.Background())
	defer p.Stop()

	p.Notify(context.Background(), &models.ScanEvent{Kind: "initiated", ScanID: "scan-1"})
	p.Notify(context.Background(), &models.ScanEvent{Kind: "terminal", ScanID: "scan-1"})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if a.count() == 2 && b.count() == 2 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("sinks received %d/%d events, want 2 each", a.count(), b.count())
}
