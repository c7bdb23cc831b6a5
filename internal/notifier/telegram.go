package notifier

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"backend/internal/config"
)

// TelegramNotifier pushes a short message to the moderator chat whenever the
// classifier flags a comment into the review queue. A nil notifier is valid
// and does nothing.
type TelegramNotifier struct {
	api    *tgbotapi.BotAPI
	chatID int64
	logger *zap.Logger
}

// NewTelegramNotifier returns nil when notifications are disabled.
func NewTelegramNotifier(cfg *config.Config, logger *zap.Logger) (*TelegramNotifier, error) {
	if !cfg.Telegram.Enabled || cfg.Telegram.BotToken == "" {
		logger.Info("Telegram notifications disabled")
		return nil, nil
	}

	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot API: %w", err)
	}

	logger.Info("Telegram bot authorized", zap.String("username", botAPI.Self.UserName))

	return &TelegramNotifier{
		api:    botAPI,
		chatID: cfg.Telegram.ChatID,
		logger: logger,
	}, nil
}

// NotifyFlagged reports a newly flagged comment. Delivery failures are
// logged, never propagated into the request path.
func (n *TelegramNotifier) NotifyFlagged(commentID, text string, confidence float64) {
	if n == nil {
		return
	}

	msg := tgbotapi.NewMessage(n.chatID, fmt.Sprintf(
		"Comment flagged for review\nid: %s\nconfidence: %.2f\n\n%s",
		commentID, confidence, text,
	))
	if _, err := n.api.Send(msg); err != nil {
		n.logger.Error("Failed to send Telegram notification", zap.String("comment_id", commentID), zap.Error(err))
	}
}
