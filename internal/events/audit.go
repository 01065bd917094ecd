package events

import "github.com/rs/zerolog"

// SubscribeAudit logs every booking lifecycle event.
func SubscribeAudit(bus *EventBus, logger *zerolog.Logger) {
	for _, eventType := range []string{EventBookingCreated, EventBookingCompleted, EventBookingArchived, EventBookingDeleted} {
		bus.Subscribe(eventType, func(event *Event) error {
			p, err := event.Decode()
			if err != nil {
				logger.Warn().Err(err).Str("event_type", event.Type).Msg("Undecodable event payload")
				return nil
			}
			logger.Info().
				Str("event_type", event.Type).
				Str("booking_id", p.BookingID).
				Str("status", p.Status).
				Time("at", event.CreatedAt).
				Msg("Booking event")
			return nil
		})
	}
}
