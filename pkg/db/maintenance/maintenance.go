package maintenance

import (
	"context"
	"log/slog"
	"time"

	"echopaths/pkg/db"
)

// Options controls what Run prunes.
type Options struct {
	CacheMaxAge time.Duration // 0 disables cache pruning
	KeepStories int           // 0 disables archive pruning
}

// DefaultOptions keeps a month of audio cache and the last 50 stories.
func DefaultOptions() Options {
	return Options{
		CacheMaxAge: 30 * 24 * time.Hour,
		KeepStories: 50,
	}
}

// Run executes all maintenance tasks. Failures are logged, not returned,
// so a broken maintenance step never blocks startup.
// It blocks until completion.
func Run(ctx context.Context, d *db.DB, opts Options) error {
	slog.Info("Starting database maintenance...")

	if err := ctx.Err(); err != nil {
		return err
	}

	if opts.CacheMaxAge > 0 {
		n, err := d.PruneCache(opts.CacheMaxAge)
		if err != nil {
			slog.Error("Cache pruning failed", "error", err)
		} else {
			slog.Info("Cache pruning completed", "removed", n)
		}
	}

	if opts.KeepStories > 0 {
		n, err := d.PruneStories(opts.KeepStories)
		if err != nil {
			slog.Error("Story archive pruning failed", "error", err)
		} else {
			slog.Info("Story archive pruning completed", "removed", n)
		}
	}

	return nil
}
