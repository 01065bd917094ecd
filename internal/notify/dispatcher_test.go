package notify

import (
	"context"
	"errors"
	"testing"

	"garagebook/internal/events"
	"garagebook/internal/models"
	"garagebook/internal/worker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcher_EnqueuesOnBookingCreated(t *testing.T) {
	queue := &fakeQueue{}
	d := NewDispatcher(queue, Channels{
		Mailer:       &fakeMailer{},
		Telegram:     &fakeAlerter{},
		Sheets:       &fakeAppender{},
		AdminAddress: "owner@shop.com",
	}, nil)
	bus := events.NewEventBus()
	d.Subscribe(bus)

	b := sampleBooking()
	require.NoError(t, bus.PublishJSON(events.EventBookingCreated, events.BookingEventPayload{BookingID: b.ID, Booking: b}))

	assert.Equal(t, []string{
		models.TaskCustomerConfirmation,
		models.TaskAdminAlert,
		models.TaskTelegramAlert,
		models.TaskSheetsAppend,
	}, queue.types())
	assert.Equal(t, "b1", queue.tasks[0].Booking.ID)
}

func TestDispatcher_OnlyConfiguredChannels(t *testing.T) {
	queue := &fakeQueue{}
	d := NewDispatcher(queue, Channels{Mailer: &fakeMailer{}}, nil)
	bus := events.NewEventBus()
	d.Subscribe(bus)

	b := sampleBooking()
	require.NoError(t, bus.PublishJSON(events.EventBookingCreated, events.BookingEventPayload{BookingID: b.ID, Booking: b}))
	assert.Equal(t, []string{models.TaskCustomerConfirmation}, queue.types())
}

func TestDispatcher_EnqueueFailureIsReported(t *testing.T) {
	queue := &fakeQueue{err: worker.ErrQueueFull}
	d := NewDispatcher(queue, Channels{Mailer: &fakeMailer{}}, nil)
	bus := events.NewEventBus()
	d.Subscribe(bus)

	b := sampleBooking()
	err := bus.PublishJSON(events.EventBookingCreated, events.BookingEventPayload{BookingID: b.ID, Booking: b})
	assert.ErrorIs(t, err, worker.ErrQueueFull)
}

func TestDispatcher_Handle(t *testing.T) {
	ctx := context.Background()
	mailer := &fakeMailer{}
	alerter := &fakeAlerter{}
	appender := &fakeAppender{}
	d := NewDispatcher(&fakeQueue{}, Channels{
		Mailer:       mailer,
		Telegram:     alerter,
		Sheets:       appender,
		AdminAddress: "owner@shop.com",
	}, nil)
	b := sampleBooking()

	require.NoError(t, d.Handle(ctx, models.NotificationTask{Type: models.TaskCustomerConfirmation, Booking: b}))
	require.NoError(t, d.Handle(ctx, models.NotificationTask{Type: models.TaskAdminAlert, Booking: b}))
	require.NoError(t, d.Handle(ctx, models.NotificationTask{Type: models.TaskPendingDigest, Stats: &models.DashboardStats{Pending: 2}}))
	require.NoError(t, d.Handle(ctx, models.NotificationTask{Type: models.TaskTelegramAlert, Booking: b}))
	require.NoError(t, d.Handle(ctx, models.NotificationTask{Type: models.TaskSheetsAppend, Booking: b}))

	require.Len(t, mailer.sent, 3)
	assert.Equal(t, "ana@example.com", mailer.sent[0].To)
	assert.Equal(t, "owner@shop.com", mailer.sent[1].To)
	assert.Equal(t, "owner@shop.com", mailer.sent[2].To)
	assert.Equal(t, 1, alerter.calls)
	assert.Equal(t, 1, appender.calls)
}

func TestDispatcher_HandleErrors(t *testing.T) {
	ctx := context.Background()
	b := sampleBooking()

	t.Run("TransientMailError", func(t *testing.T) {
		d := NewDispatcher(&fakeQueue{}, Channels{Mailer: &fakeMailer{err: errors.New("smtp timeout")}}, nil)
		err := d.Handle(ctx, models.NotificationTask{Type: models.TaskCustomerConfirmation, Booking: b})
		assert.Error(t, err)
		assert.False(t, worker.IsPermanent(err))
	})

	permanent := []struct {
		name     string
		channels Channels
		task     models.NotificationTask
	}{
		{"NoMailer", Channels{}, models.NotificationTask{Type: models.TaskCustomerConfirmation, Booking: b}},
		{"NoBooking", Channels{Mailer: &fakeMailer{}}, models.NotificationTask{Type: models.TaskCustomerConfirmation}},
		{"NoCustomerEmail", Channels{Mailer: &fakeMailer{}}, models.NotificationTask{Type: models.TaskCustomerConfirmation, Booking: &models.Booking{}}},
		{"NoAdminAddress", Channels{Mailer: &fakeMailer{}}, models.NotificationTask{Type: models.TaskAdminAlert, Booking: b}},
		{"NoDigestStats", Channels{Mailer: &fakeMailer{}, AdminAddress: "o@s.c"}, models.NotificationTask{Type: models.TaskPendingDigest}},
		{"NoTelegram", Channels{}, models.NotificationTask{Type: models.TaskTelegramAlert, Booking: b}},
		{"NoSheets", Channels{}, models.NotificationTask{Type: models.TaskSheetsAppend, Booking: b}},
		{"UnknownType", Channels{}, models.NotificationTask{Type: "sms"}},
	}
	for _, tc := range permanent {
		t.Run(tc.name, func(t *testing.T) {
			d := NewDispatcher(&fakeQueue{}, tc.channels, nil)
			err := d.Handle(ctx, tc.task)
			assert.True(t, worker.IsPermanent(err), "%v", err)
		})
	}
}
