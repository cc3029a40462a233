package usecase

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"OppScan/internal/domain/models"
	drepo "OppScan/internal/domain/repository"
	applogger "OppScan/pkg/logger"
)

// DefaultSession is used when a caller does not identify itself.
const DefaultSession = "default"

// ActiveScan is the externally visible view of a scan in flight.
type ActiveScan struct {
	SessionID string    `json:"session_id"`
	ScanID    string    `json:"scan_id"`
	StartedAt time.Time `json:"started_at"`
}

type activeScan struct {
	scanID    string
	startedAt time.Time
	cancel    context.CancelFunc
	done      chan struct{}
}

// SessionManager owns the scan lifecycle per consumer session: at most one
// scan in flight per session, a new start supersedes the previous one, and
// the last terminal outcome is cached so a reconnecting consumer does not
// trigger a rescan.
type SessionManager struct {
	orch     *ScanOrchestrator
	outcomes drepo.OutcomeCache
	logger   *applogger.Logger

	mu     sync.Mutex
	active map[string]*activeScan
	wg     sync.WaitGroup
	closed bool
}

func NewSessionManager(orch *ScanOrchestrator, outcomes drepo.OutcomeCache, logger *applogger.Logger) *SessionManager {
	return &SessionManager{
		orch:     orch,
		outcomes: outcomes,
		logger:   logger,
		active:   make(map[string]*activeScan),
	}
}

// StartScan initiates synchronously so the caller gets the scan ID or the
// initiation failure directly; polling continues in the background,
// detached from the caller's request context.
func (m *SessionManager) StartScan(ctx context.Context, session string, req *models.ScanRequest) (*models.ScanHandle, error) {
	if session == "" {
		session = DefaultSession
	}

	handle, err := m.orch.Initiate(ctx, req)
	if err != nil {
		return nil, err
	}

	pollCtx, cancel := context.WithCancel(context.Background())
	scan := &activeScan{
		scanID:    handle.ScanID,
		startedAt: time.Now(),
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		cancel()
		return nil, errors.New("session manager is shut down")
	}
	if prev, ok := m.active[session]; ok {
		m.logger.Info("superseding active scan",
			applogger.String("session", session),
			applogger.String("old_scan_id", prev.scanID),
			applogger.String("new_scan_id", handle.ScanID),
		)
		prev.cancel()
	}
	m.active[session] = scan
	m.wg.Add(1)
	m.mu.Unlock()

	go m.pollToOutcome(pollCtx, cancel, session, scan, handle)
	return handle, nil
}

func (m *SessionManager) pollToOutcome(ctx context.Context, cancel context.CancelFunc, session string, scan *activeScan, handle *models.ScanHandle) {
	defer m.wg.Done()
	defer close(scan.done)
	defer cancel()

	out, err := m.orch.Poll(ctx, handle)

	m.mu.Lock()
	if m.active[session] == scan {
		delete(m.active, session)
	}
	m.mu.Unlock()

	if err != nil {
		if errors.Is(err, context.Canceled) {
			m.logger.Info("scan cancelled",
				applogger.String("session", session),
				applogger.String("scan_id", scan.scanID),
			)
			return
		}
		m.logger.Error("scan ended with error",
			applogger.String("session", session),
			applogger.String("scan_id", scan.scanID),
			applogger.Error(err),
		)
		return
	}

	// The poll context may already be cancelled; caching the outcome
	// should not depend on it.
	if cerr := m.outcomes.StoreOutcome(context.Background(), session, out); cerr != nil {
		m.logger.Warn("failed to cache scan outcome",
			applogger.String("session", session),
			applogger.Error(cerr),
		)
	}
}

// Active lists scans currently in flight, ordered by session for stable
// output.
func (m *SessionManager) Active() []ActiveScan {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ActiveScan, 0, len(m.active))
	for session, scan := range m.active {
		out = append(out, ActiveScan{SessionID: session, ScanID: scan.scanID, StartedAt: scan.startedAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out
}

// Outcome returns the last cached terminal outcome for the session, nil
// when none exists yet.
func (m *SessionManager) Outcome(ctx context.Context, session string) (*models.ScanOutcome, error) {
	if session == "" {
		session = DefaultSession
	}
	return m.outcomes.LastOutcome(ctx, session)
}

// Cancel stops the session's in-flight scan if any. It reports whether a
// scan was running.
func (m *SessionManager) Cancel(session string) bool {
	if session == "" {
		session = DefaultSession
	}
	m.mu.Lock()
	scan, ok := m.active[session]
	m.mu.Unlock()
	if !ok {
		return false
	}
	scan.cancel()
	return true
}

// Shutdown cancels every in-flight scan and waits for the poll goroutines
// to drain, bounded by ctx.
func (m *SessionManager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	for _, scan := range m.active {
		scan.cancel()
	}
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
