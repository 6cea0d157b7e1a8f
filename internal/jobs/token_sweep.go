package jobs

import (
	"context"
	"log/slog"
	"time"

	"spedermath/internal/config"
)

type ExpiredTokenDeleter interface {
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// SweepTokens removes login tokens that expired, or were used, longer than
// retention ago.
func SweepTokens(ctx context.Context, store ExpiredTokenDeleter, now time.Time, retention time.Duration) (int64, error) {
	if retention < 0 {
		retention = 0
	}
	return store.DeleteExpired(ctx, now.Add(-retention))
}

func StartTokenSweepJob(ctx context.Context, cfg config.Config, store ExpiredTokenDeleter, logger *slog.Logger) {
	if !cfg.TokenSweepEnabled {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}
	if store == nil {
		logger.Warn("token sweep job disabled: no token store configured")
		return
	}
	interval := cfg.TokenSweepInterval
	if interval <= 0 {
		interval = time.Hour
	}
	timeout := cfg.TokenSweepTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				tickCtx, cancel := context.WithTimeout(ctx, timeout)
				removed, err := SweepTokens(tickCtx, store, time.Now().UTC(), cfg.TokenSweepRetention)
				cancel()
				if err != nil {
					logger.Error("token sweep job error", "error", err)
					continue
				}
				if removed > 0 {
					logger.Info("token sweep job removed login tokens", "count", removed)
				}
			}
		}
	}()
}
