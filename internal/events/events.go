package events

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"garagebook/internal/models"
)

const (
	EventBookingCreated   = "booking_created"
	EventBookingCompleted = "booking_completed"
	EventBookingArchived  = "booking_archived"
	EventBookingDeleted   = "booking_deleted"
)

// BookingEventPayload is the booking snapshot handed to subscribers.
// Deleted events carry only the id.
type BookingEventPayload struct {
	BookingID string          `json:"booking_id"`
	Status    string          `json:"status,omitempty"`
	Booking   *models.Booking `json:"booking,omitempty"`
}

type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// Decode unmarshals the payload into a booking payload.
func (e *Event) Decode() (BookingEventPayload, error) {
	var p BookingEventPayload
	err := json.Unmarshal(e.Payload, &p)
	return p, err
}

type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub. Handlers run synchronously in
// subscription order and must not block.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish runs every handler of the event type and returns their joined errors.
// A failing handler does not stop the others.
func (b *EventBus) Publish(event *Event) error {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	var errs []error
	for _, handler := range handlers {
		if err := handler(event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	return b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
}
