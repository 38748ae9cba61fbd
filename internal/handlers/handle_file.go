package handlers

import (
	"context"
	"errors"

	"github.com/go-telegram/bot/models"

	"github.com/BatmanBruc/bat-bot-renamer/internal/contextkeys"
	"github.com/BatmanBruc/bat-bot-renamer/internal/messages"
	"github.com/BatmanBruc/bat-bot-renamer/store"
	"github.com/BatmanBruc/bat-bot-renamer/types"
)

func (bh *Handlers) HandleFile(ctx context.Context, update *models.Update, sender contextkeys.Sender) {
	fi, ok := contextkeys.GetFileInfo(ctx, 0)
	if !ok {
		bh.reply(ctx, sender.ChatID, messages.ErrorUnsupportedMessageType())
		return
	}

	if fi.FileType == contextkeys.MessageTypePhoto {
		bh.saveThumbnail(ctx, sender, fi)
		return
	}

	if bh.registry.Running(sender.UserID) {
		bh.reply(ctx, sender.ChatID, messages.BatchAlreadyRunning())
		return
	}

	var messageID int
	if update != nil && update.Message != nil {
		messageID = update.Message.ID
	}
	var size uint64
	if fi.FileSize > 0 {
		size = uint64(fi.FileSize)
	}
	pos, err := bh.sessions.AddFile(ctx, sender.UserID, types.QueuedFile{
		ChatID:    sender.ChatID,
		MessageID: messageID,
		FileID:    fi.FileID,
		FileName:  fi.FileName,
		Size:      size,
	})
	if errors.Is(err, store.ErrQueueFull) {
		bh.reply(ctx, sender.ChatID, messages.QueueFull(bh.maxFiles))
		return
	}
	if err != nil {
		bh.fail(ctx, sender.ChatID, err, "failed to queue file")
		return
	}
	if bh.metrics != nil {
		bh.metrics.FileQueued()
	}
	bh.reply(ctx, sender.ChatID, messages.FileQueued(fi.FileName, pos, bh.maxFiles))
}

// saveThumbnail keeps the photo only after /setthumb.
func (bh *Handlers) saveThumbnail(ctx context.Context, sender contextkeys.Sender, fi contextkeys.FileInfo) {
	if !bh.registry.Snapshot(sender.UserID).AwaitingThumbnail {
		bh.reply(ctx, sender.ChatID, messages.ThumbNotAwaited())
		return
	}
	if err := bh.profiles.SetThumbnail(ctx, sender.UserID, fi.FileID); err != nil {
		bh.fail(ctx, sender.ChatID, err, "failed to save thumbnail")
		return
	}
	_ = bh.registry.SetAwaitingThumbnail(sender.UserID, false)
	bh.reply(ctx, sender.ChatID, messages.ThumbSaved())
}
