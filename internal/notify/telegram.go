package notify

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/session_booking/internal/model"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// messageSender - часть *bot.Bot, нужная для отправки
type messageSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// TelegramNotifier пишет владельцу в Telegram, если известен его chat id
type TelegramNotifier struct {
	sender messageSender
}

// NewTelegramNotifier создаёт клиента бота без запуска long polling
func NewTelegramNotifier(token string) (*TelegramNotifier, error) {
	b, err := bot.New(token, bot.WithSkipGetMe())
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &TelegramNotifier{sender: b}, nil
}

func (n *TelegramNotifier) Notify(ctx context.Context, notice model.BookingNotice) error {
	if notice.Owner == nil || notice.Owner.TelegramID == nil {
		return nil
	}

	_, err := n.sender.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: *notice.Owner.TelegramID,
		Text:   FormatText(notice),
	})
	if err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}
