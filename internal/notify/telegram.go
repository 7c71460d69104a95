package notify

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/linkhub/linkhub/internal/config"
	"github.com/linkhub/linkhub/internal/logging"
)

// sender is the slice of tgbotapi.BotAPI the notifier needs; tests swap it.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram pushes operational events to a Telegram chat.
type Telegram struct {
	bot    sender
	chatID int64
	logger *logging.Logger
}

// NewTelegram connects the bot. Returns an error when the token is rejected.
func NewTelegram(cfg config.TelegramConfig, logger *logging.Logger) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(strings.TrimSpace(cfg.BotToken))
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}
	return &Telegram{bot: bot, chatID: cfg.ChatID, logger: logger}, nil
}

func (t *Telegram) ProviderConnected(ctx context.Context, provider, userID string) {
	t.send(ctx, fmt.Sprintf("✅ *%s* connected for user `%s`", provider, userID))
}

func (t *Telegram) SyncFailed(ctx context.Context, provider, userID string, err error) {
	t.send(ctx, fmt.Sprintf("⚠️ *%s* sync failed for user `%s`:\n`%v`", provider, userID, err))
}

func (t *Telegram) send(ctx context.Context, text string) {
	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.ParseMode = "Markdown"
	if _, err := t.bot.Send(msg); err != nil {
		t.logger.WarnWithContext(ctx, "telegram notify failed", "error", err.Error())
	}
}

var _ Notifier = (*Telegram)(nil)
