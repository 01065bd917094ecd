package domain

import (
	"context"
	"time"

	"garagebook/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// BookingRepository is the document store contract. Lookups by an unknown or
// malformed id return (nil, nil); mutations of a missing id are no-ops that
// report matched=false.
type BookingRepository interface {
	CreateBooking(ctx context.Context, booking *models.Booking) error
	ListActiveBookings(ctx context.Context) ([]models.Booking, error)
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	SearchBookings(ctx context.Context, term string) ([]models.Booking, error)
	UpdateBookingStatus(ctx context.Context, id string, status string) (bool, error)
	ArchiveBooking(ctx context.Context, id string) (bool, error)
	DeleteBooking(ctx context.Context, id string) (bool, error)
	CountActiveBookings(ctx context.Context, status string) (int64, error)
	Ping(ctx context.Context) error
}

type AttemptLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

type NotificationQueue interface {
	Enqueue(ctx context.Context, task models.NotificationTask) error
}

type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type BookingService interface {
	CreateBooking(ctx context.Context, input models.BookingInput) (*models.Booking, error)
	ListActive(ctx context.Context) ([]models.Booking, error)
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	Search(ctx context.Context, term string) ([]models.Booking, error)
	MarkCompleted(ctx context.Context, id string) error
	Archive(ctx context.Context, id string) error
	DeleteBooking(ctx context.Context, id string) error
	DashboardStats(ctx context.Context) (*models.DashboardStats, error)
}

type AuthService interface {
	Login(ctx context.Context, email, password, clientKey string) (string, error)
}
