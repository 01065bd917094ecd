package notify

import (
	"context"
	"errors"
	"fmt"

	"garagebook/internal/domain"
	"garagebook/internal/events"
	"garagebook/internal/models"
	"garagebook/internal/worker"

	"github.com/rs/zerolog"
)

var errNotConfigured = errors.New("channel not configured")

type BookingAlerter interface {
	NotifyBooking(ctx context.Context, b *models.Booking) error
}

type BookingAppender interface {
	AppendBooking(ctx context.Context, b *models.Booking) error
}

// Channels holds the optional delivery backends. Nil fields are disabled.
type Channels struct {
	Mailer       Mailer
	Telegram     BookingAlerter
	Sheets       BookingAppender
	AdminAddress string
}

// Dispatcher turns booking events into notification tasks and delivers
// them when the worker hands them back.
type Dispatcher struct {
	queue    domain.NotificationQueue
	channels Channels
	logger   *zerolog.Logger
}

func NewDispatcher(queue domain.NotificationQueue, channels Channels, logger *zerolog.Logger) *Dispatcher {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Dispatcher{queue: queue, channels: channels, logger: logger}
}

func (d *Dispatcher) Subscribe(bus *events.EventBus) {
	bus.Subscribe(events.EventBookingCreated, d.onBookingCreated)
}

func (d *Dispatcher) onBookingCreated(ev *events.Event) error {
	payload, err := ev.Decode()
	if err != nil {
		d.logger.Error().Err(err).Msg("Failed to decode booking_created payload")
		return err
	}
	if payload.Booking == nil {
		return errors.New("booking_created without booking")
	}

	ctx := context.Background()
	var errs []error
	for _, taskType := range d.tasksFor() {
		task := models.NotificationTask{Type: taskType, Booking: payload.Booking}
		if err := d.queue.Enqueue(ctx, task); err != nil {
			d.logger.Error().Err(err).Str("type", taskType).Str("booking_id", payload.BookingID).Msg("Failed to enqueue notification")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) tasksFor() []string {
	var types []string
	if d.channels.Mailer != nil {
		types = append(types, models.TaskCustomerConfirmation)
		if d.channels.AdminAddress != "" {
			types = append(types, models.TaskAdminAlert)
		}
	}
	if d.channels.Telegram != nil {
		types = append(types, models.TaskTelegramAlert)
	}
	if d.channels.Sheets != nil {
		types = append(types, models.TaskSheetsAppend)
	}
	return types
}

// Handle delivers one task. Tasks that can never succeed are returned as
// permanent errors so the worker dead-letters them without retrying.
func (d *Dispatcher) Handle(ctx context.Context, task models.NotificationTask) error {
	switch task.Type {
	case models.TaskCustomerConfirmation:
		if err := d.needMailer(task); err != nil {
			return err
		}
		if task.Booking.Email == "" {
			return worker.Permanent(errors.New("customer email missing"))
		}
		return d.channels.Mailer.Send(ctx, customerConfirmation(task.Booking))

	case models.TaskAdminAlert:
		if err := d.needMailer(task); err != nil {
			return err
		}
		if d.channels.AdminAddress == "" {
			return worker.Permanent(fmt.Errorf("admin address: %w", errNotConfigured))
		}
		return d.channels.Mailer.Send(ctx, adminAlert(task.Booking, d.channels.AdminAddress))

	case models.TaskPendingDigest:
		if d.channels.Mailer == nil || d.channels.AdminAddress == "" {
			return worker.Permanent(fmt.Errorf("digest mail: %w", errNotConfigured))
		}
		if task.Stats == nil {
			return worker.Permanent(errors.New("digest stats missing"))
		}
		return d.channels.Mailer.Send(ctx, pendingDigest(task.Stats, d.channels.AdminAddress))

	case models.TaskTelegramAlert:
		if d.channels.Telegram == nil {
			return worker.Permanent(fmt.Errorf("telegram: %w", errNotConfigured))
		}
		if task.Booking == nil {
			return worker.Permanent(errors.New("booking payload missing"))
		}
		return d.channels.Telegram.NotifyBooking(ctx, task.Booking)

	case models.TaskSheetsAppend:
		if d.channels.Sheets == nil {
			return worker.Permanent(fmt.Errorf("sheets: %w", errNotConfigured))
		}
		if task.Booking == nil {
			return worker.Permanent(errors.New("booking payload missing"))
		}
		return d.channels.Sheets.AppendBooking(ctx, task.Booking)

	default:
		return worker.Permanent(fmt.Errorf("unknown task type: %s", task.Type))
	}
}

func (d *Dispatcher) needMailer(task models.NotificationTask) error {
	if d.channels.Mailer == nil {
		return worker.Permanent(fmt.Errorf("mail: %w", errNotConfigured))
	}
	if task.Booking == nil {
		return worker.Permanent(errors.New("booking payload missing"))
	}
	return nil
}
