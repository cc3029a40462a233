package repository

import (
	"context"

	"OppScan/internal/domain/models"
)

// ScanBackend is the remote discovery service this subsystem drives.
type ScanBackend interface {
	Discover(ctx context.Context, req *models.ScanRequest) (*models.ScanHandle, error)
	Status(ctx context.Context, scanID string) (*models.ScanStatus, error)
	Results(ctx context.Context, scanID string) (*models.ScanResults, error)
	Pricing(ctx context.Context) (*models.PricingConfig, error)
	Validate(ctx context.Context, symbol string, opp *models.Opportunity) (*models.Validation, error)
	Execute(ctx context.Context, opp *models.Opportunity) (*models.ExecutionReceipt, error)
}

// Notifier receives scan state transitions and terminal outcomes.
// Implementations must not block the poll loop.
type Notifier interface {
	Notify(ctx context.Context, ev *models.ScanEvent)
}

// OutcomeCache keeps the last terminal outcome per UI session so a
// dashboard reload does not trigger a rescan.
type OutcomeCache interface {
	StoreOutcome(ctx context.Context, session string, out *models.ScanOutcome) error
	LastOutcome(ctx context.Context, session string) (*models.ScanOutcome, error)
}

type Metrics interface {
	RecordPoll(state string)
	RecordError(kind string)
	RecordScanOutcome(opportunities int, fallback bool)
	RecordLatency(op string, seconds float64)
}
