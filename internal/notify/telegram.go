// Package notify tells platform moderators about new work: groups waiting for
// review and incoming feedback. Delivery is best effort.
package notify

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/Spok95/campus-community/internal/models"
	"github.com/Spok95/campus-community/internal/observability"
)

// Sender is the part of *tgbotapi.BotAPI used here.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram sends moderator notifications to a fixed list of chats.
type Telegram struct {
	bot     Sender
	chatIDs []int64
	log     *zap.Logger
	timeout time.Duration
}

func NewTelegram(bot Sender, chatIDs []int64, log *zap.Logger) *Telegram {
	if log == nil {
		log = zap.NewNop()
	}
	return &Telegram{bot: bot, chatIDs: chatIDs, log: log, timeout: 10 * time.Second}
}

// Connect creates the bot client; an empty token disables notifications.
func Connect(token string, chatIDs []int64, log *zap.Logger) (*Telegram, error) {
	if token == "" || len(chatIDs) == 0 {
		return nil, nil
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	log.Info("telegram notifier ready", zap.String("bot", bot.Self.UserName), zap.Int("chats", len(chatIDs)))
	return NewTelegram(bot, chatIDs, log), nil
}

func (t *Telegram) GroupSubmitted(ctx context.Context, g models.Group) {
	text := fmt.Sprintf("🆕 <b>New group waiting for review</b>\n%s (<code>%s</code>), category: %s",
		html.EscapeString(g.Name), html.EscapeString(g.Slug), g.Category)
	t.async(ctx, text)
}

func (t *Telegram) FeedbackSubmitted(ctx context.Context, f models.Feedback) {
	text := fmt.Sprintf("📝 <b>New feedback</b> [%s]\n%s\n<i>%s</i>",
		f.TargetType, html.EscapeString(f.Title), html.EscapeString(f.TargetDesc))
	t.async(ctx, text)
}

// Broadcast sends text synchronously to every moderator chat and returns the first error.
func (t *Telegram) Broadcast(ctx context.Context, text string) error {
	var first error
	for _, id := range t.chatIDs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		msg := tgbotapi.NewMessage(id, text)
		msg.ParseMode = tgbotapi.ModeHTML
		msg.DisableWebPagePreview = true
		if _, err := send(t.bot, msg); err != nil {
			t.log.Warn("telegram send failed", zap.Int64("chat_id", id), zap.Error(err))
			if first == nil {
				first = err
			}
		}
	}
	return first
}

func (t *Telegram) async(ctx context.Context, text string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.timeout)
	go func() {
		defer cancel()
		_ = t.Broadcast(ctx, text)
	}()
}

// Only 5xx, 429 and timeouts are worth reporting; 400-class Telegram validation errors are not.
func isSystemErr(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "429") || strings.Contains(s, "502") ||
		strings.Contains(s, "503") || strings.Contains(s, "timeout")
}

func send(bot Sender, msg tgbotapi.Chattable) (tgbotapi.Message, error) {
	m, err := bot.Send(msg)
	if isSystemErr(err) {
		observability.CaptureErr(err)
	}
	return m, err
}
