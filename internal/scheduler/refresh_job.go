package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/Hahasky-afk/my-portfolio-dashboard/internal/modules/refresh"
)

// Refresher triggers a full dashboard data refresh.
type Refresher interface {
	Run(ctx context.Context) (*refresh.Result, error)
}

// RefreshJob periodically recomputes the snapshot and history artifacts,
// the in-process equivalent of the cron-triggered update endpoint.
type RefreshJob struct {
	refresher Refresher
	timeout   time.Duration
	log       zerolog.Logger
}

// NewRefreshJob creates a refresh job with a per-run timeout.
func NewRefreshJob(refresher Refresher, timeout time.Duration, log zerolog.Logger) *RefreshJob {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &RefreshJob{
		refresher: refresher,
		timeout:   timeout,
		log:       log.With().Str("job", "refresh").Logger(),
	}
}

// Name returns the job name.
func (j *RefreshJob) Name() string {
	return "portfolio_refresh"
}

// Run executes one refresh with the configured timeout.
func (j *RefreshJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	_, err := j.refresher.Run(ctx)
	return err
}
