package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"garagebook/internal/models"

	"github.com/google/uuid"
)

// MemoryBookingRepository keeps bookings in process memory. Used for local
// runs and tests.
type MemoryBookingRepository struct {
	mu       sync.RWMutex
	bookings map[string]models.Booking
	seq      int64
}

func NewMemoryBookingRepository() *MemoryBookingRepository {
	return &MemoryBookingRepository{bookings: make(map[string]models.Booking)}
}

func (r *MemoryBookingRepository) CreateBooking(ctx context.Context, booking *models.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	booking.ID = uuid.NewString()
	if booking.CreatedAt.IsZero() {
		// sequence keeps ordering stable for bookings created in the same instant
		r.seq++
		booking.CreatedAt = now.Add(time.Duration(r.seq))
	}
	booking.UpdatedAt = now
	r.bookings[booking.ID] = *booking
	return nil
}

func (r *MemoryBookingRepository) ListActiveBookings(ctx context.Context) ([]models.Booking, error) {
	return r.filter(func(b models.Booking) bool { return !b.Archived }), nil
}

func (r *MemoryBookingRepository) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.bookings[id]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (r *MemoryBookingRepository) SearchBookings(ctx context.Context, term string) ([]models.Booking, error) {
	needle := strings.ToLower(term)
	return r.filter(func(b models.Booking) bool {
		if b.Archived {
			return false
		}
		return strings.Contains(strings.ToLower(b.Name), needle) ||
			strings.Contains(strings.ToLower(b.Phone), needle) ||
			strings.Contains(strings.ToLower(b.Service), needle)
	}), nil
}

func (r *MemoryBookingRepository) UpdateBookingStatus(ctx context.Context, id string, status string) (bool, error) {
	return r.mutate(id, func(b *models.Booking) { b.Status = status }), nil
}

func (r *MemoryBookingRepository) ArchiveBooking(ctx context.Context, id string) (bool, error) {
	return r.mutate(id, func(b *models.Booking) { b.Archived = true }), nil
}

func (r *MemoryBookingRepository) DeleteBooking(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.bookings[id]
	delete(r.bookings, id)
	return ok, nil
}

func (r *MemoryBookingRepository) CountActiveBookings(ctx context.Context, status string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var n int64
	for _, b := range r.bookings {
		if b.Archived {
			continue
		}
		if status == "" || b.Status == status {
			n++
		}
	}
	return n, nil
}

func (r *MemoryBookingRepository) Ping(ctx context.Context) error {
	return nil
}

func (r *MemoryBookingRepository) mutate(id string, fn func(b *models.Booking)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.bookings[id]
	if !ok {
		return false
	}
	fn(&b)
	b.UpdatedAt = time.Now().UTC()
	r.bookings[id] = b
	return true
}

func (r *MemoryBookingRepository) filter(keep func(b models.Booking) bool) []models.Booking {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Booking, 0, len(r.bookings))
	for _, b := range r.bookings {
		if keep(b) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}
