package telegram

import (
	"context"
	"errors"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"

	"github.com/iconidentify/reelbot/internal/domain"
	"github.com/iconidentify/reelbot/internal/links"
	"github.com/iconidentify/reelbot/internal/worker"
)

// BusyNotice is sent when the message queue has no room.
const BusyNotice = "I'm busy with other videos right now. Please send the link again in a minute."

// UpdateSource is the subset of *tgbotapi.BotAPI that streams updates.
type UpdateSource interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Submitter queues messages for processing.
type Submitter interface {
	Submit(msg domain.Message) error
}

// Bot receives updates by long polling and hands messages with video
// links to a Submitter.
type Bot struct {
	updates       UpdateSource
	submitter     Submitter
	transport     *Transport
	updateTimeout int
	logger        *slog.Logger
}

// NewBot creates a bot. updateTimeout is the long-poll timeout in seconds.
func NewBot(updates UpdateSource, submitter Submitter, transport *Transport, updateTimeout int, logger *slog.Logger) *Bot {
	return &Bot{
		updates:       updates,
		submitter:     submitter,
		transport:     transport,
		updateTimeout: updateTimeout,
		logger:        logger,
	}
}

// Run dispatches updates until ctx is cancelled or the update stream ends.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.updateTimeout

	ch := b.updates.GetUpdatesChan(u)
	b.logger.Info("bot receiving updates", "timeout", b.updateTimeout)

	for {
		select {
		case <-ctx.Done():
			b.updates.StopReceivingUpdates()
			return nil
		case update, ok := <-ch:
			if !ok {
				return nil
			}
			b.dispatch(ctx, update)
		}
	}
}

func (b *Bot) dispatch(ctx context.Context, update tgbotapi.Update) {
	m := update.Message
	if m == nil {
		m = update.ChannelPost
	}
	if m == nil || m.Chat == nil {
		return
	}

	text := m.Text
	if text == "" {
		text = m.Caption
	}
	if len(links.Extract(text)) == 0 {
		return
	}

	msg := domain.Message{
		ChatID:    m.Chat.ID,
		MessageID: m.MessageID,
		Text:      text,
		TraceID:   uuid.New().String(),
	}

	if err := b.submitter.Submit(msg); err != nil {
		b.logger.Warn("message rejected", "chat_id", msg.ChatID, "trace_id", msg.TraceID, "error", err)
		if errors.Is(err, worker.ErrQueueFull) {
			b.reply(ctx, msg.ChatID, BusyNotice)
		}
		return
	}
	b.logger.Debug("message queued", "chat_id", msg.ChatID, "trace_id", msg.TraceID)
}

func (b *Bot) reply(ctx context.Context, chatID int64, text string) {
	if err := b.transport.SendMessage(ctx, chatID, text); err != nil {
		b.logger.Error("reply failed", "chat_id", chatID, "error", err)
	}
}
