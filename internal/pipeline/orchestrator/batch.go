// internal/pipeline/orchestrator/batch.go
package orchestrator

import (
	"context"
	"sync"

	"support-triage/internal/models"
)

// ProcessBatch runs independent turns with at most maxConcurrency in flight.
// Results are indexed identically to the inputs regardless of completion
// order. A turn's failure cannot abort its siblings: ProcessTurn already
// converts every failure into the red fallback result.
func (o *Orchestrator) ProcessBatch(ctx context.Context, turns []*models.ConversationTurn, maxConcurrency int) []*models.WorkflowResult {
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}

	results := make([]*models.WorkflowResult, len(turns))
	sem := make(chan struct{}, maxConcurrency)
	var wg sync.WaitGroup

	for i, turn := range turns {
		wg.Add(1)
		go func(i int, turn *models.ConversationTurn) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				results[i] = o.failureResult()
				return
			}
			defer func() { <-sem }()

			results[i] = o.ProcessTurn(ctx, turn)
		}(i, turn)
	}

	wg.Wait()
	return results
}
