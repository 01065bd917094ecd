package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"garagebook/internal/domain"

	"github.com/rs/zerolog"
)

const recoveryInterval = time.Minute

// FailoverAttemptLimiter uses the primary limiter until it errors, then the
// fallback, retrying the primary once per recoveryInterval.
type FailoverAttemptLimiter struct {
	primary   domain.AttemptLimiter
	fallback  domain.AttemptLimiter
	logger    *zerolog.Logger
	isDown    atomic.Bool
	mu        sync.Mutex
	lastCheck time.Time
}

func NewFailoverAttemptLimiter(primary, fallback domain.AttemptLimiter, logger *zerolog.Logger) *FailoverAttemptLimiter {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &FailoverAttemptLimiter{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverAttemptLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.primary != nil && (!r.isDown.Load() || r.recoveryDue()) {
		allowed, err := r.primary.Allow(ctx, key, limit, window)
		if err == nil {
			if r.isDown.Swap(false) {
				r.logger.Info().Msg("Primary attempt limiter recovered")
			}
			return allowed, nil
		}
		if !r.isDown.Swap(true) {
			r.logger.Error().Err(err).Msg("Primary attempt limiter failed, falling back to memory")
		}
		r.markChecked()
	}

	return r.fallback.Allow(ctx, key, limit, window)
}

func (r *FailoverAttemptLimiter) recoveryDue() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return time.Since(r.lastCheck) > recoveryInterval
}

func (r *FailoverAttemptLimiter) markChecked() {
	r.mu.Lock()
	r.lastCheck = time.Now()
	r.mu.Unlock()
}
