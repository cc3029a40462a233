package usecase

import (
	"context"
	"fmt"
	"time"

	"OppScan/internal/domain/models"
	drepo "OppScan/internal/domain/repository"
	"OppScan/internal/service/discovery"
	"OppScan/internal/service/pricing"
	applogger "OppScan/pkg/logger"
)

const (
	// breakerLimit aborts the scan after this many back-to-back
	// classified errors; any successful poll resets the count.
	breakerLimit = 3
	// notFoundProbeAfter triggers an early results fetch as a recovery
	// probe after this many consecutive not-found statuses.
	notFoundProbeAfter = 3
	// earlyProbeStart / earlyProbeEvery schedule opportunistic results
	// fetches while the job is still reported running; backends may
	// finish between status polls.
	earlyProbeStart = 3
	earlyProbeEvery = 5
)

// ScanOrchestrator drives one scan job from initiation through polling to
// a terminal outcome. One orchestrator instance is shared; all loop state
// is local to a Poll call.
type ScanOrchestrator struct {
	backend drepo.ScanBackend
	pricing *pricing.Service
	rec     *Reconciler
	notify  drepo.Notifier
	metrics drepo.Metrics
	logger  *applogger.Logger

	// wait is injectable so tests can run the loop without real sleeps.
	wait func(ctx context.Context, d time.Duration) error
}

func NewScanOrchestrator(
	backend drepo.ScanBackend,
	pricingSvc *pricing.Service,
	rec *Reconciler,
	notify drepo.Notifier,
	metrics drepo.Metrics,
	logger *applogger.Logger,
) *ScanOrchestrator {
	return &ScanOrchestrator{
		backend: backend,
		pricing: pricingSvc,
		rec:     rec,
		notify:  notify,
		metrics: metrics,
		logger:  logger,
		wait:    sleepWait,
	}
}

func sleepWait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Run initiates a scan and polls it to completion.
func (o *ScanOrchestrator) Run(ctx context.Context, req *models.ScanRequest) (*models.ScanOutcome, error) {
	handle, err := o.Initiate(ctx, req)
	if err != nil {
		return nil, err
	}
	return o.Poll(ctx, handle)
}

// Initiate submits the scan request and returns the job handle. No
// retries: an initiation failure is terminal for this call.
func (o *ScanOrchestrator) Initiate(ctx context.Context, req *models.ScanRequest) (*models.ScanHandle, error) {
	req.Normalize()

	start := time.Now()
	handle, err := o.backend.Discover(ctx, req)
	o.metrics.RecordLatency("discover", time.Since(start).Seconds())
	if err != nil {
		o.metrics.RecordError("initiation")
		return nil, err
	}

	o.logger.Info("scan initiated",
		applogger.String("scan_id", handle.ScanID),
		applogger.Any("poll_interval_s", handle.PollingIntervalSeconds),
		applogger.Any("estimate_s", handle.EstimatedCompletionSeconds),
	)
	o.notify.Notify(ctx, &models.ScanEvent{
		Kind:      "initiated",
		ScanID:    handle.ScanID,
		State:     models.StateRunning,
		Message:   "scan initiated",
		Timestamp: time.Now(),
	})
	return handle, nil
}

// Poll runs the polling state machine until a terminal state: complete,
// failed, timed out with partial fallback, or timed out with nothing.
func (o *ScanOrchestrator) Poll(ctx context.Context, handle *models.ScanHandle) (*models.ScanOutcome, error) {
	budget := ComputeBudget(handle)
	start := time.Now()

	var (
		consecutiveErrs int
		notFoundStreak  int
		partial         []models.RawOpportunity
		lastEmitted     string
	)

	// emit forwards an event to the notifier, suppressing consecutive
	// duplicates with identical content.
	emit := func(ev *models.ScanEvent) {
		key := ev.Kind + "|" + ev.Message
		if key == lastEmitted && !ev.Terminal() {
			return
		}
		lastEmitted = key
		ev.ScanID = handle.ScanID
		ev.Timestamp = time.Now()
		o.notify.Notify(ctx, ev)
	}

	finish := func(raws []models.RawOpportunity, fallback bool) (*models.ScanOutcome, error) {
		out := o.rec.Reconcile(handle.ScanID, raws, o.pricing.Get(ctx), fallback)
		o.metrics.RecordScanOutcome(out.TotalCount, fallback)
		o.metrics.RecordLatency("scan_total", time.Since(start).Seconds())
		msg := "scan complete"
		if fallback {
			msg = "scan timed out, showing partial results"
		}
		emit(&models.ScanEvent{Kind: "terminal", State: models.StateComplete, Message: msg, Outcome: out})
		return out, nil
	}

	fail := func(state models.JobState, err error) (*models.ScanOutcome, error) {
		emit(&models.ScanEvent{Kind: "terminal", State: state, Message: err.Error()})
		return nil, err
	}

	// countErr applies the consecutive-error circuit breaker. It returns
	// the aggregate abort error once the limit is hit, nil otherwise.
	countErr := func(se *discovery.ScanError, attempt int) error {
		o.metrics.RecordError(se.Kind.String())
		consecutiveErrs++
		if se.Kind == discovery.KindAuth {
			o.logger.Error("auth failure while polling scan",
				applogger.String("scan_id", handle.ScanID),
				applogger.Int("attempt", attempt),
				applogger.Error(se),
			)
		} else {
			o.logger.Warn("transient poll error",
				applogger.String("scan_id", handle.ScanID),
				applogger.Int("attempt", attempt),
				applogger.String("kind", se.Kind.String()),
				applogger.Error(se),
			)
		}
		if consecutiveErrs >= breakerLimit {
			return fmt.Errorf("scan backend unavailable after %d consecutive errors: %w", consecutiveErrs, se)
		}
		return nil
	}

	for attempt := 1; attempt <= budget.MaxAttempts; attempt++ {
		if err := o.wait(ctx, budget.PollInterval); err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		status, err := o.backend.Status(ctx, handle.ScanID)
		if err != nil {
			se := discovery.Classify(err)
			if se.Kind == discovery.KindNotFound {
				// A thrown not-found (unlike the status value) means the
				// job is genuinely gone; no amount of polling recovers it.
				o.metrics.RecordError(se.Kind.String())
				return fail(models.StateNotFound,
					fmt.Errorf("scan not found, start a new scan: %w", se))
			}
			if abort := countErr(se, attempt); abort != nil {
				return fail(models.StateFailed, abort)
			}
			continue
		}
		consecutiveErrs = 0
		o.metrics.RecordPoll(string(status.State))

		switch status.State {
		case models.StateComplete:
			res, pending, err := o.fetchResults(ctx, handle.ScanID)
			if err != nil {
				se := discovery.Classify(err)
				if abort := countErr(se, attempt); abort != nil {
					return fail(models.StateFailed, abort)
				}
				continue
			}
			if pending {
				// Completion signal and results materialization are not
				// atomically consistent; keep polling.
				emit(&models.ScanEvent{Kind: "warning", State: models.StateComplete, Attempt: attempt,
					Message: "scan reported complete but results not ready yet"})
				continue
			}
			return finish(res.Opportunities, false)

		case models.StateRunning:
			notFoundStreak = 0
			if len(status.PartialResults) > 0 {
				partial = status.PartialResults
			}
			emit(&models.ScanEvent{Kind: "progress", State: models.StateRunning, Attempt: attempt,
				Progress: status.Progress, Message: progressMessage(status.Progress)})
			if attempt >= earlyProbeStart && (attempt-earlyProbeStart)%earlyProbeEvery == 0 {
				if res, ok := o.probeResults(ctx, handle.ScanID); ok {
					return finish(res.Opportunities, false)
				}
			}

		case models.StateNotFound:
			notFoundStreak++
			emit(&models.ScanEvent{Kind: "not_found", State: models.StateNotFound, Attempt: attempt,
				Message: "scan not yet visible on backend"})
			if notFoundStreak >= notFoundProbeAfter {
				if res, ok := o.probeResults(ctx, handle.ScanID); ok {
					return finish(res.Opportunities, false)
				}
			}

		case models.StateFailed:
			return fail(models.StateFailed, discovery.NewBackendFailure(status.Reason))

		default:
			o.logger.Warn("unrecognized scan status, continuing to poll",
				applogger.String("scan_id", handle.ScanID),
				applogger.String("status", status.Raw),
			)
			emit(&models.ScanEvent{Kind: "warning", State: models.StateUnknown, Attempt: attempt,
				Message: fmt.Sprintf("unrecognized scan status %q", status.Raw)})
		}
	}

	// Budget exhausted: one last fetch, then the partial-results fallback.
	if res, ok := o.probeResults(ctx, handle.ScanID); ok {
		return finish(res.Opportunities, false)
	}
	if len(partial) > 0 {
		o.logger.Warn("scan timed out, falling back to partial results",
			applogger.String("scan_id", handle.ScanID),
			applogger.Int("count", len(partial)),
		)
		return finish(partial, true)
	}
	return fail(models.StateFailed, discovery.NewScanTimeout(handle.ScanID, budget.MaxAttempts))
}

// fetchResults fetches results, distinguishing "not ready yet" from real
// failures.
func (o *ScanOrchestrator) fetchResults(ctx context.Context, scanID string) (*models.ScanResults, bool, error) {
	res, err := o.backend.Results(ctx, scanID)
	if err != nil {
		if discovery.IsPending(err) {
			return nil, true, nil
		}
		return nil, false, err
	}
	return res, false, nil
}

// probeResults is a best-effort early fetch; any failure, pending or
// otherwise, just means "keep polling".
func (o *ScanOrchestrator) probeResults(ctx context.Context, scanID string) (*models.ScanResults, bool) {
	if ctx.Err() != nil {
		return nil, false
	}
	res, pending, err := o.fetchResults(ctx, scanID)
	if err != nil || pending {
		if err != nil {
			o.metrics.RecordError("results_probe")
		}
		return nil, false
	}
	return res, true
}

func progressMessage(p *models.ScanProgress) string {
	if p == nil {
		return "scan running"
	}
	return fmt.Sprintf("scan running: %d/%d strategies (%.0f%%)",
		p.StrategiesCompleted, p.TotalStrategies, p.Percentage)
}
