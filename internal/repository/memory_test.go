package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"garagebook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryAttemptLimiter(t *testing.T) {
	limiter := NewMemoryAttemptLimiter()
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := limiter.Allow(ctx, "ip", 2, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, _ := limiter.Allow(ctx, "ip", 2, time.Minute)
	assert.False(t, ok)

	now = now.Add(61 * time.Second)
	ok, _ = limiter.Allow(ctx, "ip", 2, time.Minute)
	assert.True(t, ok)
}

func TestMemoryAttemptLimiter_Concurrent(t *testing.T) {
	limiter := NewMemoryAttemptLimiter()
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, _ := limiter.Allow(ctx, "shared", 10, time.Minute)
			if ok {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 10, allowed)
}

func TestMemoryBookingRepository(t *testing.T) {
	repo := NewMemoryBookingRepository()
	ctx := context.Background()

	create := func(name, service, phone string) *models.Booking {
		b := &models.Booking{
			Name:     name,
			Email:    "x@example.com",
			Phone:    phone,
			Service:  service,
			Date:     "2024-05-01",
			CarModel: models.DefaultCarModel,
			Status:   models.StatusPending,
		}
		require.NoError(t, repo.CreateBooking(ctx, b))
		require.NotEmpty(t, b.ID)
		return b
	}

	first := create("Tomás", "Oil Change", "555-0001")
	second := create("Ana", "Brake Pads", "555-0002")
	third := create("Zed", "Tyres", "555-0003")

	t.Run("ListNewestFirst", func(t *testing.T) {
		list, err := repo.ListActiveBookings(ctx)
		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.Equal(t, third.ID, list[0].ID)
		assert.Equal(t, first.ID, list[2].ID)
	})

	t.Run("SearchCaseInsensitive", func(t *testing.T) {
		got, err := repo.SearchBookings(ctx, "TOM")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, first.ID, got[0].ID)

		got, err = repo.SearchBookings(ctx, "0002")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, second.ID, got[0].ID)
	})

	t.Run("ArchiveHides", func(t *testing.T) {
		matched, err := repo.ArchiveBooking(ctx, third.ID)
		require.NoError(t, err)
		assert.True(t, matched)
		list, err := repo.ListActiveBookings(ctx)
		require.NoError(t, err)
		assert.Len(t, list, 2)

		got, err := repo.SearchBookings(ctx, "zed")
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("CountsAndStatus", func(t *testing.T) {
		matched, err := repo.UpdateBookingStatus(ctx, first.ID, models.StatusCompleted)
		require.NoError(t, err)
		assert.True(t, matched)

		total, _ := repo.CountActiveBookings(ctx, "")
		pending, _ := repo.CountActiveBookings(ctx, models.StatusPending)
		completed, _ := repo.CountActiveBookings(ctx, models.StatusCompleted)
		assert.Equal(t, int64(2), total)
		assert.Equal(t, int64(1), pending)
		assert.Equal(t, int64(1), completed)
	})

	t.Run("MissingIDs", func(t *testing.T) {
		got, err := repo.GetBooking(ctx, "missing")
		assert.NoError(t, err)
		assert.Nil(t, got)
		for name, op := range map[string]func() (bool, error){
			"complete": func() (bool, error) { return repo.UpdateBookingStatus(ctx, "missing", models.StatusCompleted) },
			"archive":  func() (bool, error) { return repo.ArchiveBooking(ctx, "missing") },
			"delete":   func() (bool, error) { return repo.DeleteBooking(ctx, "missing") },
		} {
			matched, err := op()
			assert.NoError(t, err, name)
			assert.False(t, matched, name)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		matched, err := repo.DeleteBooking(ctx, second.ID)
		require.NoError(t, err)
		assert.True(t, matched)
		got, err := repo.GetBooking(ctx, second.ID)
		assert.NoError(t, err)
		assert.Nil(t, got)
	})
}
