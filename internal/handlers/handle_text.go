package handlers

import (
	"context"
	"strings"

	"github.com/go-telegram/bot/models"

	"github.com/BatmanBruc/bat-bot-renamer/internal/contextkeys"
	"github.com/BatmanBruc/bat-bot-renamer/internal/messages"
	"github.com/BatmanBruc/bat-bot-renamer/types"
)

// HandleText records manual names. Every non-empty line is one name.
func (bh *Handlers) HandleText(ctx context.Context, update *models.Update, sender contextkeys.Sender) {
	if bh.registry.Snapshot(sender.UserID).Mode != types.ModeManual {
		bh.reply(ctx, sender.ChatID, messages.NotManualMode())
		return
	}

	files, err := bh.sessions.CountFiles(ctx, sender.UserID)
	if err != nil {
		bh.fail(ctx, sender.ChatID, err, "failed to count queued files")
		return
	}

	var lines []string
	for _, line := range strings.Split(update.Message.Text, "\n") {
		name := strings.TrimSpace(line)
		if name == "" {
			continue
		}
		count, err := bh.registry.AppendManualName(sender.UserID, name)
		if err != nil {
			bh.fail(ctx, sender.ChatID, err, "failed to append manual name")
			return
		}
		lines = append(lines, messages.ManualNameAdded(name, count, files))
	}
	if len(lines) == 0 {
		return
	}
	bh.reply(ctx, sender.ChatID, strings.Join(lines, "\n"))
}
