package notify

import (
	"context"
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v4"

	"stockwatch/internal/catalog"
	"stockwatch/internal/config"
)

// TelegramSink sends notifications to a subscriber's chat via the Bot
// API. The bot is outbound-only; no update poller is started.
type TelegramSink struct {
	bot *tele.Bot
}

func NewTelegram(cfg config.TelegramConfig) (*TelegramSink, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, fmt.Errorf("notify.telegram.token is required")
	}
	bot, err := tele.NewBot(tele.Settings{Token: cfg.Token})
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return &TelegramSink{bot: bot}, nil
}

func (t *TelegramSink) Send(ctx context.Context, sub *catalog.Subscriber, msg Message) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	text := msg.Subject + "\n" + msg.Body
	_, err := t.bot.Send(&tele.Chat{ID: sub.ChatID}, text, &tele.SendOptions{
		DisableWebPagePreview: true,
	})
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}
