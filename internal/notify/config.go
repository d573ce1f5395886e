package notify

import (
	"usaha/internal/config"
	"usaha/internal/log"
	"usaha/internal/reminder"
)

// FromConfig builds every channel that has credentials. A channel that
// fails to start is logged and left out.
func FromConfig(cfg *config.Config, logger *log.Logger) []reminder.Notifier {
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentNotify)

	var out []reminder.Notifier
	if cfg.ResendAPIKey != "" {
		email, err := NewEmail(cfg.ResendAPIKey, cfg.EmailFrom)
		if err != nil {
			logger.Warn("Email channel disabled", log.FieldError, err.Error())
		} else {
			out = append(out, email)
		}
	}
	if cfg.TelegramBotToken != "" {
		tg, err := NewTelegram(cfg.TelegramBotToken)
		if err != nil {
			logger.Warn("Telegram channel disabled", log.FieldError, err.Error())
		} else {
			out = append(out, tg)
		}
	}
	for _, n := range out {
		logger.Info("Notification channel enabled", "channel", n.Name())
	}
	return out
}
