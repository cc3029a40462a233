package middleware

import (
	"context"
	"sync"
	"time"

	"OppScan/internal/domain/models"
	domrepo "OppScan/internal/domain/repository"
)

// EventPipeline is a middleware between the poll loop and the outbound
// sinks (log, WebSocket hub, Kafka). It throttles chatty progress events
// per scan, buffers so a slow sink never blocks polling, and fans each
// accepted event out to every sink from a single background goroutine.
type EventPipeline struct {
	sinks   []domrepo.Notifier
	metrics domrepo.Metrics
	minGap  time.Duration
	bufSize int
	bufCh   chan *models.ScanEvent
	stopCh  chan struct{}
	started bool
	mu      sync.Mutex
	lastFwd map[string]time.Time // per-scan last forwarded progress time
}

type PipelineOption func(*EventPipeline)

// WithProgressThrottle sets the minimum gap between forwarded progress
// events of one scan.
func WithProgressThrottle(d time.Duration) PipelineOption {
	return func(p *EventPipeline) {
		if d > 0 {
			p.minGap = d
		}
	}
}

// WithBufferSize sets the event buffer between the poll loop and the sinks.
func WithBufferSize(n int) PipelineOption {
	return func(p *EventPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

func NewEventPipeline(metrics domrepo.Metrics, sinks []domrepo.Notifier, opts ...PipelineOption) *EventPipeline {
	p := &EventPipeline{
		sinks:   sinks,
		metrics: metrics,
		minGap:  time.Second,
		bufSize: 256,
		stopCh:  make(chan struct{}),
		lastFwd: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.bufCh = make(chan *models.ScanEvent, p.bufSize)
	return p
}

// Start launches the background dispatcher.
func (p *EventPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		for {
			select {
			case <-p.stopCh:
				return
			case ev := <-p.bufCh:
				if ev == nil {
					continue
				}
				for _, sink := range p.sinks {
					sink.Notify(ctx, ev)
				}
			}
		}
	}()
}

// Stop stops the dispatcher. Buffered events not yet dispatched are lost.
func (p *EventPipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
}

// Notify accepts an event from the poll loop. It never blocks: progress
// events beyond the per-scan rate are dropped, and a full buffer drops
// the event with a metric rather than stalling the caller.
func (p *EventPipeline) Notify(_ context.Context, ev *models.ScanEvent) {
	if ev == nil || ev.ScanID == "" {
		p.metrics.RecordError("pipeline_validate")
		return
	}
	if !p.allow(ev) {
		p.metrics.RecordError("pipeline_throttle")
		return
	}

	select {
	case p.bufCh <- ev:
		p.metrics.RecordLatency("pipeline_buffer_depth", float64(len(p.bufCh)))
	default:
		p.metrics.RecordError("pipeline_buffer_full")
	}
}

// allow throttles progress events per scan; every other kind passes, and
// a terminal event clears the scan's throttle state.
func (p *EventPipeline) allow(ev *models.ScanEvent) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if ev.Terminal() {
		delete(p.lastFwd, ev.ScanID)
		return true
	}
	if ev.Kind != "progress" {
		return true
	}

	now := time.Now()
	last, ok := p.lastFwd[ev.ScanID]
	if ok && now.Sub(last) < p.minGap {
		return false
	}
	p.lastFwd[ev.ScanID] = now
	return true
}
