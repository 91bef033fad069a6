package agents

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// fanOut esegue n task in parallelo e restituisce i risultati nell'ordine di
// sottomissione. Un task fallito o in panic non cancella gli altri; ognuno ha
// il proprio timeout derivato dal contesto della richiesta.
func fanOut(ctx context.Context, n int, timeout time.Duration, task func(ctx context.Context, i int) Outcome) []Outcome {
	results := make([]Outcome, n)
	var wg sync.WaitGroup

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					log.Error().
						Int("task", idx).
						Interface("panic", r).
						Msg("Parallel task panicked")
					results[idx] = Failure(fmt.Sprintf("internal error: %v", r))
				}
			}()

			taskCtx := ctx
			if timeout > 0 {
				var cancel context.CancelFunc
				taskCtx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			results[idx] = task(taskCtx, idx)
		}(i)
	}

	wg.Wait()
	return results
}

// successes filtra i risultati riusciti mantenendo l'ordine
func successes(results []Outcome) []string {
	out := make([]string, 0, len(results))
	for _, r := range results {
		if r.OK() {
			out = append(out, r.Text())
		}
	}
	return out
}
