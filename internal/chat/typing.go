package chat

import (
	"context"
	"sync"
	"time"
)

// RunWithTyping esegue task mentre ping viene chiamato subito e poi ogni
// interval. Il timer viene sempre fermato e atteso prima di restituire,
// sia in caso di successo che di errore o panic del task.
func RunWithTyping[T any](ctx context.Context, interval time.Duration, ping func(context.Context), task func(context.Context) (T, error)) (T, error) {
	if interval <= 0 {
		interval = 4 * time.Second
	}

	pingCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			ping(pingCtx)
			select {
			case <-pingCtx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	defer func() {
		cancel()
		wg.Wait()
	}()

	return task(ctx)
}
