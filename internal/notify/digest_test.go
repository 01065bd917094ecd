package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"garagebook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubStats struct {
	stats *models.DashboardStats
	err   error
}

func (s stubStats) DashboardStats(context.Context) (*models.DashboardStats, error) {
	return s.stats, s.err
}

func TestDigestScheduler_RunOnce(t *testing.T) {
	queue := &fakeQueue{}
	d, err := NewDigestScheduler("0 8 * * *", stubStats{stats: &models.DashboardStats{Total: 4, Pending: 3, Completed: 1}}, queue, nil)
	require.NoError(t, err)

	require.NoError(t, d.RunOnce(context.Background()))
	require.Len(t, queue.tasks, 1)
	assert.Equal(t, models.TaskPendingDigest, queue.tasks[0].Type)
	assert.Equal(t, int64(3), queue.tasks[0].Stats.Pending)
}

func TestDigestScheduler_StatsError(t *testing.T) {
	queue := &fakeQueue{}
	d, err := NewDigestScheduler("@daily", stubStats{err: errors.New("db down")}, queue, nil)
	require.NoError(t, err)

	assert.Error(t, d.RunOnce(context.Background()))
	assert.Empty(t, queue.tasks)
}

func TestDigestScheduler_InvalidSchedule(t *testing.T) {
	_, err := NewDigestScheduler("every morning", stubStats{}, &fakeQueue{}, nil)
	assert.Error(t, err)
}

func TestDigestScheduler_StartStop(t *testing.T) {
	d, err := NewDigestScheduler("@hourly", stubStats{stats: &models.DashboardStats{}}, &fakeQueue{}, nil)
	require.NoError(t, err)

	d.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	d.Stop(ctx)
	assert.NoError(t, ctx.Err())
}
