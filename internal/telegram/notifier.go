package telegram

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/BatmanBruc/bat-bot-renamer/internal/messages"
)

// Notifier sends standalone HTML replies outside of a batch status message.
type Notifier struct {
	bot *bot.Bot
}

func NewNotifier(b *bot.Bot) *Notifier {
	return &Notifier{bot: b}
}

func (n *Notifier) Notify(ctx context.Context, chatID int64, text string) error {
	_, err := n.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: messages.ParseModeHTML,
	})
	return translate(err)
}

func (n *Notifier) SendPhoto(ctx context.Context, chatID int64, fileID, caption string) error {
	_, err := n.bot.SendPhoto(ctx, &bot.SendPhotoParams{
		ChatID:    chatID,
		Photo:     &models.InputFileString{Data: fileID},
		Caption:   caption,
		ParseMode: messages.ParseModeHTML,
	})
	return translate(err)
}

func (n *Notifier) NotifyWithKeyboard(ctx context.Context, chatID int64, text string, kb models.InlineKeyboardMarkup) error {
	_, err := n.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        text,
		ParseMode:   messages.ParseModeHTML,
		ReplyMarkup: &kb,
	})
	return translate(err)
}

func (n *Notifier) AnswerCallback(ctx context.Context, callbackID, text string) error {
	_, err := n.bot.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
		Text:            text,
	})
	return translate(err)
}
