package handlers

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog/log"

	"github.com/BatmanBruc/bat-bot-renamer/internal/contextkeys"
	"github.com/BatmanBruc/bat-bot-renamer/internal/messages"
	"github.com/BatmanBruc/bat-bot-renamer/internal/session"
	"github.com/BatmanBruc/bat-bot-renamer/types"
)

type SessionStore interface {
	CreateSession(ctx context.Context, userID, chatID int64) error
	AddFile(ctx context.Context, userID int64, file types.QueuedFile) (int, error)
	CountFiles(ctx context.Context, userID int64) (int, error)
	SetRenameConfig(ctx context.Context, userID int64, cfg types.RenameConfig) error
	ResetSession(ctx context.Context, userID int64) error
}

type ProfileStore interface {
	SetThumbnail(ctx context.Context, userID int64, fileID string) error
	GetThumbnail(ctx context.Context, userID int64) (string, error)
	DeleteThumbnail(ctx context.Context, userID int64) error
	GetStats(ctx context.Context, userID int64) (*types.UserStats, error)
	RecentBatches(ctx context.Context, userID int64, limit int) ([]types.BatchRecord, error)
}

type BatchEnqueuer interface {
	EnqueueBatch(uid, chatID int64) bool
	CancelQueued(uid int64) bool
}

// Replier is how handlers talk back to the user.
type Replier interface {
	Notify(ctx context.Context, chatID int64, text string) error
	NotifyWithKeyboard(ctx context.Context, chatID int64, text string, kb models.InlineKeyboardMarkup) error
	SendPhoto(ctx context.Context, chatID int64, fileID, caption string) error
	AnswerCallback(ctx context.Context, callbackID, text string) error
}

type QueueMetrics interface {
	FileQueued()
}

type Handlers struct {
	sessions  SessionStore
	profiles  ProfileStore
	registry  *session.Registry
	scheduler BatchEnqueuer
	replier   Replier
	metrics   QueueMetrics
	maxFiles  int
}

func NewHandlers(
	sessions SessionStore,
	profiles ProfileStore,
	registry *session.Registry,
	scheduler BatchEnqueuer,
	replier Replier,
	metrics QueueMetrics,
	maxFiles int,
) *Handlers {
	return &Handlers{
		sessions:  sessions,
		profiles:  profiles,
		registry:  registry,
		scheduler: scheduler,
		replier:   replier,
		metrics:   metrics,
		maxFiles:  maxFiles,
	}
}

func (bh *Handlers) MainHandler(ctx context.Context, _ *bot.Bot, update *models.Update) {
	sender, ok := contextkeys.GetSender(ctx)
	if !ok {
		log.Error().Msg("sender not found in context")
		return
	}
	_ = bh.registry.Touch(sender.UserID)

	messageType, _ := contextkeys.GetMessageType(ctx)
	switch messageType {
	case contextkeys.MessageTypeCommand:
		bh.HandleCommand(ctx, update, sender)
	case contextkeys.MessageTypeDocument, contextkeys.MessageTypeVideo,
		contextkeys.MessageTypeAudio, contextkeys.MessageTypePhoto:
		bh.HandleFile(ctx, update, sender)
	case contextkeys.MessageTypeText:
		bh.HandleText(ctx, update, sender)
	case contextkeys.MessageTypeClickButton:
		bh.HandleClickButton(ctx, update, sender)
	default:
		bh.reply(ctx, sender.ChatID, messages.ErrorUnsupportedMessageType())
	}
}

func (bh *Handlers) reply(ctx context.Context, chatID int64, text string) {
	if err := bh.replier.Notify(ctx, chatID, text); err != nil {
		log.Warn().Err(err).Int64("chat_id", chatID).Msg("failed to send reply")
	}
}

func (bh *Handlers) fail(ctx context.Context, chatID int64, err error, msg string) {
	log.Error().Err(err).Int64("chat_id", chatID).Msg(msg)
	bh.reply(ctx, chatID, messages.ErrorDefault())
}
