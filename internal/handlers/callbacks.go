package handlers

import (
	"context"
	"strings"

	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog/log"

	"github.com/BatmanBruc/bat-bot-renamer/internal/contextkeys"
	"github.com/BatmanBruc/bat-bot-renamer/internal/messages"
	"github.com/BatmanBruc/bat-bot-renamer/types"
)

const (
	callbackManual    = "menu_manual"
	callbackAutomatic = "menu_auto"
	callbackProcess   = "menu_process"
	callbackStatus    = "menu_status"
)

func buildMenuKeyboard() models.InlineKeyboardMarkup {
	return models.InlineKeyboardMarkup{InlineKeyboard: [][]models.InlineKeyboardButton{
		{
			{Text: messages.BtnManual(), CallbackData: callbackManual},
			{Text: messages.BtnAutomatic(), CallbackData: callbackAutomatic},
		},
		{
			{Text: messages.BtnProcess(), CallbackData: callbackProcess},
			{Text: messages.BtnStatus(), CallbackData: callbackStatus},
		},
	}}
}

func (bh *Handlers) sendMainMenu(ctx context.Context, chatID int64, text string) {
	if err := bh.replier.NotifyWithKeyboard(ctx, chatID, text, buildMenuKeyboard()); err != nil {
		log.Warn().Err(err).Int64("chat_id", chatID).Msg("failed to send menu")
	}
}

func (bh *Handlers) HandleClickButton(ctx context.Context, update *models.Update, sender contextkeys.Sender) {
	if update.CallbackQuery == nil {
		return
	}
	data, _ := contextkeys.GetCallbackData(ctx)
	if data == "" {
		data = update.CallbackQuery.Data
	}

	answer := ""
	switch strings.TrimSpace(data) {
	case callbackManual:
		bh.setMode(ctx, sender, types.ModeManual)
	case callbackAutomatic:
		bh.setMode(ctx, sender, types.ModeAuto)
	case callbackProcess:
		bh.processBatch(ctx, sender)
	case callbackStatus:
		bh.sendStatus(ctx, sender)
	default:
		answer = messages.CallbackInvalid()
	}

	if err := bh.replier.AnswerCallback(ctx, update.CallbackQuery.ID, answer); err != nil {
		log.Warn().Err(err).Str("callback_id", update.CallbackQuery.ID).Msg("failed to answer callback")
	}
}
