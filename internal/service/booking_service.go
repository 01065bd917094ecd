package service

import (
	"context"
	"fmt"

	"garagebook/internal/domain"
	"garagebook/internal/events"
	"garagebook/internal/metrics"
	"garagebook/internal/models"

	"github.com/rs/zerolog"
)

type BookingService struct {
	repo     domain.BookingRepository
	eventBus domain.EventPublisher
	logger   *zerolog.Logger
}

func NewBookingService(repo domain.BookingRepository, eventBus domain.EventPublisher, logger *zerolog.Logger) *BookingService {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &BookingService{
		repo:     repo,
		eventBus: eventBus,
		logger:   logger,
	}
}

// CreateBooking validates and persists a public submission. Notification
// failures are handled downstream and never fail the create.
func (s *BookingService) CreateBooking(ctx context.Context, input models.BookingInput) (*models.Booking, error) {
	input = input.Normalize()
	if missing := input.Missing(); len(missing) > 0 {
		return nil, &ValidationError{Fields: missing}
	}

	booking := input.ToBooking()
	if err := s.repo.CreateBooking(ctx, booking); err != nil {
		return nil, fmt.Errorf("create booking: %w", err)
	}
	metrics.IncBookingsCreated()

	s.logger.Info().Str("booking_id", booking.ID).Str("service", booking.Service).Msg("Booking created")
	s.publishEvent(events.EventBookingCreated, booking.ID, booking)

	return booking, nil
}

func (s *BookingService) ListActive(ctx context.Context) ([]models.Booking, error) {
	bookings, err := s.repo.ListActiveBookings(ctx)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	return bookings, nil
}

// GetBooking returns nil without error when the id is unknown or malformed.
func (s *BookingService) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	booking, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get booking %s: %w", id, err)
	}
	return booking, nil
}

func (s *BookingService) Search(ctx context.Context, term string) ([]models.Booking, error) {
	bookings, err := s.repo.SearchBookings(ctx, term)
	if err != nil {
		return nil, fmt.Errorf("search bookings: %w", err)
	}
	return bookings, nil
}

// MarkCompleted, Archive and DeleteBooking are no-ops for unknown ids; events
// are published only when a booking matched.
func (s *BookingService) MarkCompleted(ctx context.Context, id string) error {
	matched, err := s.repo.UpdateBookingStatus(ctx, id, models.StatusCompleted)
	if err != nil {
		return fmt.Errorf("complete booking %s: %w", id, err)
	}
	s.publishIfMatched(matched, events.EventBookingCompleted, id)
	return nil
}

func (s *BookingService) Archive(ctx context.Context, id string) error {
	matched, err := s.repo.ArchiveBooking(ctx, id)
	if err != nil {
		return fmt.Errorf("archive booking %s: %w", id, err)
	}
	s.publishIfMatched(matched, events.EventBookingArchived, id)
	return nil
}

func (s *BookingService) DeleteBooking(ctx context.Context, id string) error {
	matched, err := s.repo.DeleteBooking(ctx, id)
	if err != nil {
		return fmt.Errorf("delete booking %s: %w", id, err)
	}
	s.publishIfMatched(matched, events.EventBookingDeleted, id)
	return nil
}

func (s *BookingService) DashboardStats(ctx context.Context) (*models.DashboardStats, error) {
	total, err := s.repo.CountActiveBookings(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("count bookings: %w", err)
	}
	pending, err := s.repo.CountActiveBookings(ctx, models.StatusPending)
	if err != nil {
		return nil, fmt.Errorf("count pending bookings: %w", err)
	}
	completed, err := s.repo.CountActiveBookings(ctx, models.StatusCompleted)
	if err != nil {
		return nil, fmt.Errorf("count completed bookings: %w", err)
	}

	return &models.DashboardStats{Total: total, Pending: pending, Completed: completed}, nil
}

func (s *BookingService) publishIfMatched(matched bool, eventType, bookingID string) {
	if !matched {
		s.logger.Debug().Str("event_type", eventType).Str("booking_id", bookingID).Msg("No booking matched, nothing to publish")
		return
	}
	s.publishEvent(eventType, bookingID, nil)
}

func (s *BookingService) publishEvent(eventType, bookingID string, booking *models.Booking) {
	if s.eventBus == nil {
		return
	}

	payload := events.BookingEventPayload{BookingID: bookingID, Booking: booking}
	if booking != nil {
		payload.Status = booking.Status
	}
	if eventType == events.EventBookingCompleted {
		payload.Status = models.StatusCompleted
	}

	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Str("booking_id", bookingID).Msg("publish event error")
	}
}
