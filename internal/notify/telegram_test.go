package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Spok95/campus-community/internal/models"
)

type fakeBot struct {
	mu   sync.Mutex
	sent []tgbotapi.MessageConfig
	err  error
	done chan struct{}
}

func (f *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, m)
	}
	if f.done != nil {
		select {
		case f.done <- struct{}{}:
		default:
		}
	}
	return tgbotapi.Message{}, f.err
}

func TestBroadcast(t *testing.T) {
	bot := &fakeBot{}
	n := NewTelegram(bot, []int64{10, 20}, nil)

	if err := n.Broadcast(context.Background(), "digest"); err != nil {
		t.Fatalf("Broadcast: %v", err)
	}
	if len(bot.sent) != 2 || bot.sent[1].ChatID != 20 || bot.sent[0].ParseMode != tgbotapi.ModeHTML {
		t.Fatalf("unexpected sends %+v", bot.sent)
	}

	bot.err = errors.New("Bad Request: chat not found")
	if err := n.Broadcast(context.Background(), "digest"); err == nil {
		t.Fatal("want first error back")
	}
}

func TestGroupSubmittedEscapesAndRunsAsync(t *testing.T) {
	bot := &fakeBot{done: make(chan struct{}, 1)}
	n := NewTelegram(bot, []int64{1}, nil)

	n.GroupSubmitted(context.Background(), models.Group{Name: "<b>Chess</b>", Slug: "chess", Category: models.CategoryClub})

	select {
	case <-bot.done:
	case <-time.After(2 * time.Second):
		t.Fatal("notification not sent")
	}
	bot.mu.Lock()
	defer bot.mu.Unlock()
	if !strings.Contains(bot.sent[0].Text, "&lt;b&gt;Chess&lt;/b&gt;") {
		t.Fatalf("name not escaped: %q", bot.sent[0].Text)
	}
}

func TestIsSystemErr(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("Too Many Requests: retry after 5 (429)"), true},
		{errors.New("context deadline exceeded (Client.Timeout exceeded while awaiting headers): timeout"), true},
		{errors.New("Bad Request: message is not modified"), false},
	}
	for _, tt := range tests {
		if got := isSystemErr(tt.err); got != tt.want {
			t.Fatalf("isSystemErr(%v) = %v", tt.err, got)
		}
	}
}
