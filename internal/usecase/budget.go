package usecase

import (
	"math"
	"time"

	"OppScan/internal/domain/models"
)

const (
	defaultPollIntervalSeconds = 3
	defaultEstimateSeconds     = 120
	minWait                    = 120 * time.Second
	minPollAttempts            = 40
	// estimateMargin pads the server's completion estimate; backends
	// habitually under-estimate.
	estimateMargin = 1.5
)

// Budget bounds one polling run: cadence, total wait, and attempt cap.
type Budget struct {
	PollInterval time.Duration
	MaxWait      time.Duration
	MaxAttempts  int
}

// ComputeBudget derives the polling budget from server-supplied estimates,
// with a floor of 2 minutes / 40 attempts when the server under-estimates.
func ComputeBudget(h *models.ScanHandle) Budget {
	intervalSec := h.PollingIntervalSeconds
	if intervalSec <= 0 {
		intervalSec = defaultPollIntervalSeconds
	}
	estimateSec := h.EstimatedCompletionSeconds
	if estimateSec <= 0 {
		estimateSec = defaultEstimateSeconds
	}

	pollInterval := time.Duration(intervalSec * float64(time.Second))

	maxWait := time.Duration(estimateSec * estimateMargin * float64(time.Second))
	if maxWait < minWait {
		maxWait = minWait
	}

	// Attempts are computed against an interval floor of 1s so a
	// pathologically small server interval cannot explode the cap.
	divisor := pollInterval
	if divisor < time.Second {
		divisor = time.Second
	}
	attempts := int(math.Ceil(float64(maxWait) / float64(divisor)))
	if attempts < minPollAttempts {
		attempts = minPollAttempts
	}

	return Budget{
		PollInterval: pollInterval,
		MaxWait:      maxWait,
		MaxAttempts:  attempts,
	}
}
