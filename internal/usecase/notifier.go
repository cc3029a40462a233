package usecase

import (
	"context"

	"OppScan/internal/domain/models"
	drepo "OppScan/internal/domain/repository"
	applogger "OppScan/pkg/logger"
)

// LogNotifier writes scan events to the structured log. It is the
// baseline sink; the WebSocket hub and Kafka publisher are layered on via
// the event pipeline.
type LogNotifier struct {
	logger *applogger.Logger
}

func NewLogNotifier(logger *applogger.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, ev *models.ScanEvent) {
	fields := []applogger.Field{
		applogger.String("scan_id", ev.ScanID),
		applogger.String("state", string(ev.State)),
		applogger.Int("attempt", ev.Attempt),
	}
	if ev.Progress != nil {
		fields = append(fields,
			applogger.Int("strategies_done", ev.Progress.StrategiesCompleted),
			applogger.Int("strategies_total", ev.Progress.TotalStrategies),
			applogger.Any("percentage", ev.Progress.Percentage),
		)
	}
	if ev.Outcome != nil {
		fields = append(fields,
			applogger.Int("opportunities", ev.Outcome.TotalCount),
			applogger.Bool("fallback_used", ev.Outcome.FallbackUsed),
		)
	}

	switch ev.Kind {
	case "warning", "not_found":
		n.logger.Warn(ev.Message, fields...)
	default:
		n.logger.Info(ev.Message, fields...)
	}
}

// MultiNotifier fans one event out to several sinks in order.
type MultiNotifier []drepo.Notifier

func (m MultiNotifier) Notify(ctx context.Context, ev *models.ScanEvent) {
	for _, n := range m {
		n.Notify(ctx, ev)
	}
}
