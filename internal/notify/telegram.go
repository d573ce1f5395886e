package notify

import (
	"context"
	"errors"
	"fmt"
	"html"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"usaha/internal/reminder"
)

type chatSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram posts reminders to the owner's chat. Owners without a chat id are
// skipped.
type Telegram struct {
	bot chatSender
}

var _ reminder.Notifier = (*Telegram)(nil)

// NewTelegram connects to the Bot API with token.
func NewTelegram(token string) (*Telegram, error) {
	if token == "" {
		return nil, errors.New("missing Telegram bot token")
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return &Telegram{bot: api}, nil
}

func (t *Telegram) Name() string { return "telegram" }

func (t *Telegram) Notify(ctx context.Context, to reminder.Recipient, msg reminder.Message) error {
	if to.ChatID == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m := tgbotapi.NewMessage(to.ChatID, "🔔 <b>"+html.EscapeString(msg.Subject)+"</b>\n"+html.EscapeString(msg.Text))
	m.ParseMode = tgbotapi.ModeHTML
	if _, err := t.bot.Send(m); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}
