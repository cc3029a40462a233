package usecase

import (
	"context"
	"sync"
	"time"

	"OppScan/internal/domain/models"
	drepo "OppScan/internal/domain/repository"
	applogger "OppScan/pkg/logger"
)

// BatchResult tallies a concurrent execution fan-out.
type BatchResult struct {
	Receipts  []models.ExecutionReceipt `json:"receipts"`
	Succeeded int                       `json:"succeeded"`
	Failed    int                       `json:"failed"`
}

// BatchExecutor submits a set of opportunities for execution
// concurrently. Order of receipts matches the input order; individual
// failures do not stop the batch.
type BatchExecutor struct {
	backend drepo.ScanBackend
	metrics drepo.Metrics
	logger  *applogger.Logger
}

func NewBatchExecutor(backend drepo.ScanBackend, metrics drepo.Metrics, logger *applogger.Logger) *BatchExecutor {
	return &BatchExecutor{backend: backend, metrics: metrics, logger: logger}
}

func (b *BatchExecutor) ExecuteAll(ctx context.Context, opps []models.Opportunity) *BatchResult {
	res := &BatchResult{Receipts: make([]models.ExecutionReceipt, len(opps))}
	if len(opps) == 0 {
		return res
	}

	start := time.Now()
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for i := range opps {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			opp := &opps[i]
			receipt, err := b.backend.Execute(ctx, opp)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Failed++
				res.Receipts[i] = models.ExecutionReceipt{Symbol: opp.Symbol, Status: "failed"}
				b.metrics.RecordError("execution")
				b.logger.Error("trade execution failed",
					applogger.String("symbol", opp.Symbol),
					applogger.Error(err),
				)
				return
			}
			res.Succeeded++
			res.Receipts[i] = *receipt
		}(i)
	}
	wg.Wait()

	b.metrics.RecordLatency("execute_batch", time.Since(start).Seconds())
	b.logger.Info("batch execution finished",
		applogger.Int("succeeded", res.Succeeded),
		applogger.Int("failed", res.Failed),
	)
	return res
}
