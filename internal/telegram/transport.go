// Package telegram connects the fetch coordinator to the Telegram Bot API.
package telegram

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/iconidentify/reelbot/internal/domain"
)

// Sender is the subset of *tgbotapi.BotAPI used to talk to chats.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Transport delivers videos and notices through the Bot API.
type Transport struct {
	api Sender
}

// NewTransport creates a transport backed by api.
func NewTransport(api Sender) *Transport {
	return &Transport{api: api}
}

// SendTyping shows the typing indicator in chatID.
func (t *Transport) SendTyping(ctx context.Context, chatID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := t.api.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping))
	return err
}

// SendVideo uploads a local file or re-sends a stored file handle and
// returns the handle Telegram assigned to the video.
func (t *Transport) SendVideo(ctx context.Context, chatID int64, src domain.VideoSource, caption string) (*domain.Delivery, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var file tgbotapi.RequestFileData
	if src.IsCached() {
		file = tgbotapi.FileID(src.Handle)
	} else {
		file = tgbotapi.FilePath(src.FilePath)
	}

	video := tgbotapi.NewVideo(chatID, file)
	video.Caption = caption
	video.SupportsStreaming = true

	msg, err := t.api.Send(video)
	if err != nil {
		return nil, fmt.Errorf("send video: %w", err)
	}

	handle := fileHandle(msg)
	if handle == "" {
		return nil, errors.New("send video: response carries no file id")
	}
	return &domain.Delivery{MessageID: msg.MessageID, Handle: handle}, nil
}

// EditCaption replaces the caption of an already delivered video.
func (t *Transport) EditCaption(ctx context.Context, chatID int64, messageID int, caption string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := t.api.Request(tgbotapi.NewEditMessageCaption(chatID, messageID, caption)); err != nil {
		return fmt.Errorf("edit caption: %w", err)
	}
	return nil
}

// SendMessage posts a plain text message to chatID.
func (t *Transport) SendMessage(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := t.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// fileHandle returns the reusable file id of a delivered video. Telegram
// may store uploads it cannot stream as documents or animations.
func fileHandle(msg tgbotapi.Message) string {
	switch {
	case msg.Video != nil:
		return msg.Video.FileID
	case msg.Animation != nil:
		return msg.Animation.FileID
	case msg.Document != nil:
		return msg.Document.FileID
	}
	return ""
}
