package notify

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Messenger sends a plain-text chat message.
type Messenger interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// TelegramMessenger sends through the Telegram Bot API.
type TelegramMessenger struct {
	bot *tgbotapi.BotAPI
}

// NewTelegramMessenger authenticates token against the Bot API.
func NewTelegramMessenger(token string) (*TelegramMessenger, error) {
	if token == "" {
		return nil, errors.New("telegram bot token is empty")
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram login: %w", err)
	}
	return &TelegramMessenger{bot: bot}, nil
}

// NewTelegramMessengerWithAPI uses an already configured client.
func NewTelegramMessengerWithAPI(bot *tgbotapi.BotAPI) *TelegramMessenger {
	return &TelegramMessenger{bot: bot}
}

// Send posts text to chatID. The Bot API client has no context support, so
// ctx is only checked before the call.
func (m *TelegramMessenger) Send(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if chatID == 0 {
		return errors.New("telegram chat id is empty")
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := m.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}
