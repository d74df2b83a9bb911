package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/Freeeeeet/session_booking/internal/model"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func sampleNotice(event model.NoticeEvent) model.BookingNotice {
	start := time.Date(2026, 5, 3, 18, 0, 0, 0, time.UTC)
	reason := "болею"
	tg := int64(4242)
	return model.BookingNotice{
		Event: event,
		Booking: &model.Booking{
			ID:              17,
			OwnerID:         100,
			SessionType:     "group",
			Status:          model.BookingStatusCancelled,
			CancelledReason: &reason,
			Slot:            &model.ScheduleSlot{StartTime: start, EndTime: start.Add(time.Hour)},
			Package:         &model.UserPackage{TotalCredits: 10, SessionsUsed: 3},
		},
		Owner: &model.User{ID: 100, TelegramID: &tg, Phone: "+15550001111", FirstName: "Анна"},
	}
}

func TestFormatText(t *testing.T) {
	text := FormatText(sampleNotice(model.NoticeBookingCancelled))
	assert.Contains(t, text, "Запись отменена")
	assert.Contains(t, text, "Анна, бронирование #17 (group)")
	assert.Contains(t, text, "Воскресенье, 03.05.2026 18:00 - 19:00 (1 ч)")
	assert.Contains(t, text, "Причина: болею")
	assert.Contains(t, text, "В пакете осталось 7 занятий")

	reminder := FormatText(sampleNotice(model.NoticeBookingReminder))
	assert.Contains(t, reminder, "Напоминание")
	assert.NotContains(t, reminder, "Причина")
	assert.NotContains(t, reminder, "В пакете")
}

func TestPluralizeSessions(t *testing.T) {
	cases := map[int]string{
		0: "занятий", 1: "занятие", 2: "занятия", 4: "занятия", 5: "занятий",
		11: "занятий", 12: "занятий", 21: "занятие", 22: "занятия", 111: "занятий",
	}
	for n, want := range cases {
		assert.Equal(t, want, pluralizeSessions(n), "count %d", n)
	}
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "45 мин", formatDuration(45*time.Minute))
	assert.Equal(t, "2 ч", formatDuration(2*time.Hour))
	assert.Equal(t, "1 ч 30 мин", formatDuration(90*time.Minute))
}

type fakeSender struct {
	params []*bot.SendMessageParams
	err    error
}

func (f *fakeSender) SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error) {
	f.params = append(f.params, params)
	return &models.Message{}, f.err
}

func TestTelegramNotifier(t *testing.T) {
	sender := &fakeSender{}
	n := &TelegramNotifier{sender: sender}

	require.NoError(t, n.Notify(context.Background(), sampleNotice(model.NoticeBookingCreated)))
	require.Len(t, sender.params, 1)
	assert.Equal(t, int64(4242), sender.params[0].ChatID)
	assert.Contains(t, sender.params[0].Text, "Запись подтверждена")

	noChat := sampleNotice(model.NoticeBookingCreated)
	noChat.Owner.TelegramID = nil
	require.NoError(t, n.Notify(context.Background(), noChat))

	unknown := sampleNotice(model.NoticeBookingCreated)
	unknown.Owner = nil
	require.NoError(t, n.Notify(context.Background(), unknown))
	assert.Len(t, sender.params, 1, "owners without a chat are skipped")

	sender.err = errors.New("chat not found")
	assert.Error(t, n.Notify(context.Background(), sampleNotice(model.NoticeBookingCreated)))
}

type fakeSNS struct {
	inputs []*sns.PublishInput
}

func (f *fakeSNS) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.inputs = append(f.inputs, params)
	return &sns.PublishOutput{MessageId: aws.String("m-1")}, nil
}

func TestSMSNotifier(t *testing.T) {
	client := &fakeSNS{}
	n := &SMSNotifier{client: client}

	require.NoError(t, n.Notify(context.Background(), sampleNotice(model.NoticeBookingReminder)))
	require.Len(t, client.inputs, 1)
	assert.Equal(t, "+15550001111", aws.ToString(client.inputs[0].PhoneNumber))
	assert.Contains(t, aws.ToString(client.inputs[0].Message), "Напоминание")

	noPhone := sampleNotice(model.NoticeBookingReminder)
	noPhone.Owner.Phone = ""
	require.NoError(t, n.Notify(context.Background(), noPhone))
	assert.Len(t, client.inputs, 1)
}

type published struct {
	exchange, key string
	msg           amqp.Publishing
}

type fakeChannel struct {
	sent []published
}

func (f *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	f.sent = append(f.sent, published{exchange: exchange, key: key, msg: msg})
	return nil
}

func (f *fakeChannel) Close() error { return nil }

func TestRabbitPublisher(t *testing.T) {
	ch := &fakeChannel{}
	at := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	p := &RabbitPublisher{ch: ch, exchange: "booking.events", now: func() time.Time { return at }}

	require.NoError(t, p.Notify(context.Background(), sampleNotice(model.NoticeBookingCancelled)))
	require.Len(t, ch.sent, 1)

	sent := ch.sent[0]
	assert.Equal(t, "booking.events", sent.exchange)
	assert.Equal(t, "booking.cancelled", sent.key)
	assert.Equal(t, "application/json", sent.msg.ContentType)
	assert.Equal(t, amqp.Persistent, sent.msg.DeliveryMode)

	var event Event
	require.NoError(t, json.Unmarshal(sent.msg.Body, &event))
	assert.Equal(t, sent.msg.MessageId, event.ID.String())
	assert.Equal(t, model.NoticeBookingCancelled, event.Type)
	assert.True(t, event.OccurredAt.Equal(at))
	assert.Equal(t, int64(17), event.Booking.ID)
}

type stubNotifier struct {
	calls int
	err   error
}

func (s *stubNotifier) Notify(ctx context.Context, notice model.BookingNotice) error {
	s.calls++
	return s.err
}

func TestMulti_FansOutDespiteFailures(t *testing.T) {
	failing := &stubNotifier{err: errors.New("boom")}
	ok := &stubNotifier{}

	m := NewMulti(zap.NewNop(),
		Channel{Name: "telegram", Notifier: failing},
		Channel{Name: "disabled"},
		Channel{Name: "events", Notifier: ok},
	)
	assert.Equal(t, 2, m.Len())

	err := m.Notify(context.Background(), sampleNotice(model.NoticeBookingCreated))
	assert.ErrorIs(t, err, failing.err)
	assert.Equal(t, 1, failing.calls)
	assert.Equal(t, 1, ok.calls)
}
