package notify

import (
	"context"
	"sync"

	"garagebook/internal/models"
)

type fakeMailer struct {
	mu   sync.Mutex
	sent []Message
	err  error
}

func (f *fakeMailer) Send(_ context.Context, msg Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

type fakeQueue struct {
	mu    sync.Mutex
	tasks []models.NotificationTask
	err   error
}

func (f *fakeQueue) Enqueue(_ context.Context, task models.NotificationTask) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.tasks = append(f.tasks, task)
	return nil
}

func (f *fakeQueue) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.tasks))
	for _, t := range f.tasks {
		out = append(out, t.Type)
	}
	return out
}

type fakeAlerter struct {
	calls int
	err   error
}

func (f *fakeAlerter) NotifyBooking(_ context.Context, _ *models.Booking) error {
	f.calls++
	return f.err
}

type fakeAppender struct {
	calls int
}

func (f *fakeAppender) AppendBooking(_ context.Context, _ *models.Booking) error {
	f.calls++
	return nil
}

func sampleBooking() *models.Booking {
	return &models.Booking{
		ID:       "b1",
		Name:     "Ana <script>",
		Email:    "ana@example.com",
		Phone:    "555",
		Service:  "Oil Change",
		Date:     "2024-05-01",
		CarModel: models.DefaultCarModel,
		Status:   models.StatusPending,
	}
}
