package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/culturalbot/eventbot/internal/cache"
)

// MediaSweep returns a job that removes expired media cache entries.
func MediaSweep(c cache.MediaCache) Job {
	return func(ctx context.Context) error {
		n, err := c.Sweep(ctx)
		if err != nil {
			return fmt.Errorf("sweep media cache: %w", err)
		}
		slog.Info("media cache swept", "removed", n)
		return nil
	}
}
