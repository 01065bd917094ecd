package notify

import (
	"context"
	"fmt"
	"time"

	"garagebook/internal/domain"
	"garagebook/internal/models"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

type StatsSource interface {
	DashboardStats(ctx context.Context) (*models.DashboardStats, error)
}

// DigestScheduler mails the admin a periodic summary of active bookings.
type DigestScheduler struct {
	cron   *cron.Cron
	stats  StatsSource
	queue  domain.NotificationQueue
	logger *zerolog.Logger
}

// NewDigestScheduler registers the job; schedule is a standard 5-field cron spec.
func NewDigestScheduler(schedule string, stats StatsSource, queue domain.NotificationQueue, logger *zerolog.Logger) (*DigestScheduler, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	d := &DigestScheduler{
		cron:   cron.New(),
		stats:  stats,
		queue:  queue,
		logger: logger,
	}

	if _, err := d.cron.AddFunc(schedule, d.run); err != nil {
		return nil, fmt.Errorf("invalid digest schedule %q: %w", schedule, err)
	}
	return d, nil
}

func (d *DigestScheduler) Start() {
	d.cron.Start()
	d.logger.Info().Msg("Digest scheduler started")
}

// Stop waits for a running job to finish or ctx to expire.
func (d *DigestScheduler) Stop(ctx context.Context) {
	select {
	case <-d.cron.Stop().Done():
	case <-ctx.Done():
	}
}

func (d *DigestScheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := d.RunOnce(ctx); err != nil {
		d.logger.Error().Err(err).Msg("Digest job failed")
	}
}

// RunOnce computes the current stats and enqueues a digest task.
func (d *DigestScheduler) RunOnce(ctx context.Context) error {
	stats, err := d.stats.DashboardStats(ctx)
	if err != nil {
		return fmt.Errorf("digest stats: %w", err)
	}
	return d.queue.Enqueue(ctx, models.NotificationTask{Type: models.TaskPendingDigest, Stats: stats})
}
