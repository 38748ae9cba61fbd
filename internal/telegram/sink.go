package telegram

import (
	"context"

	"github.com/go-telegram/bot"

	"github.com/BatmanBruc/bat-bot-renamer/internal/messages"
	"github.com/BatmanBruc/bat-bot-renamer/internal/progress"
)

// Sink shows batch status as one HTML message that is edited in place.
type Sink struct {
	bot *bot.Bot
}

func NewSink(b *bot.Bot) *Sink {
	return &Sink{bot: b}
}

func (s *Sink) Create(ctx context.Context, chatID int64, text string) (progress.Handle, error) {
	msg, err := s.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: messages.ParseModeHTML,
	})
	if err != nil {
		return progress.Handle{}, translate(err)
	}
	return progress.Handle{ChatID: chatID, MessageID: msg.ID}, nil
}

func (s *Sink) Update(ctx context.Context, h progress.Handle, text string) error {
	_, err := s.bot.EditMessageText(ctx, &bot.EditMessageTextParams{
		ChatID:    h.ChatID,
		MessageID: h.MessageID,
		Text:      text,
		ParseMode: messages.ParseModeHTML,
	})
	if isNotModified(err) {
		return nil
	}
	return translate(err)
}
