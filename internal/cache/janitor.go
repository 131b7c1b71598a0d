package cache

import (
	"context"
	"time"
)

// RunJanitor evicts idle values every interval until ctx is done.
func (c *SessionCache[V]) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.EvictIdle()
		}
	}
}
