package usecase

import (
	"context"
	"errors"
	"time"

	"OppScan/internal/domain/models"
	drepo "OppScan/internal/domain/repository"
	"OppScan/internal/service/discovery"
	applogger "OppScan/pkg/logger"
)

// Validator runs on-demand validation for a single opportunity outside
// the scan path. Scan results arrive pre-validated; this entrypoint is
// for opportunities sourced elsewhere or re-checked by a consumer.
type Validator struct {
	backend drepo.ScanBackend
	metrics drepo.Metrics
	logger  *applogger.Logger
}

func NewValidator(backend drepo.ScanBackend, metrics drepo.Metrics, logger *applogger.Logger) *Validator {
	return &Validator{backend: backend, metrics: metrics, logger: logger}
}

// Validate submits the opportunity to the backend validator and applies
// the verdict in place.
func (v *Validator) Validate(ctx context.Context, opp *models.Opportunity) (*models.Validation, error) {
	if opp == nil || opp.Symbol == "" {
		return nil, errors.New("opportunity symbol is required")
	}

	start := time.Now()
	verdict, err := v.backend.Validate(ctx, opp.Symbol, opp)
	v.metrics.RecordLatency("validate", time.Since(start).Seconds())
	if err != nil {
		v.metrics.RecordError("validation")
		return nil, discovery.NewValidationError(opp.Symbol, err)
	}

	opp.Validation = *verdict
	opp.AIValidated = verdict.Approved
	v.logger.Info("opportunity validated",
		applogger.String("symbol", opp.Symbol),
		applogger.Bool("approved", verdict.Approved),
		applogger.Any("consensus", verdict.ConsensusScore),
	)
	return verdict, nil
}
