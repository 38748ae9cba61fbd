package handlers

import (
	"context"
	"strconv"
	"strings"

	"github.com/go-telegram/bot/models"

	"github.com/BatmanBruc/bat-bot-renamer/internal/contextkeys"
	"github.com/BatmanBruc/bat-bot-renamer/internal/messages"
	"github.com/BatmanBruc/bat-bot-renamer/internal/naming"
	"github.com/BatmanBruc/bat-bot-renamer/internal/progress"
	"github.com/BatmanBruc/bat-bot-renamer/types"
)

func (bh *Handlers) HandleCommand(ctx context.Context, update *models.Update, sender contextkeys.Sender) {
	fields := strings.Fields(strings.TrimSpace(update.Message.Text))
	if len(fields) == 0 {
		return
	}
	cmd := strings.ToLower(fields[0])
	if strings.Contains(cmd, "@") {
		cmd = strings.SplitN(cmd, "@", 2)[0]
	}
	args := fields[1:]

	switch cmd {
	case "/start":
		bh.startBatch(ctx, sender)
	case "/rename":
		bh.setRenamePattern(ctx, sender, strings.Join(args, " "))
	case "/manual":
		bh.setMode(ctx, sender, types.ModeManual)
	case "/automatic", "/auto":
		bh.setMode(ctx, sender, types.ModeAuto)
	case "/process":
		bh.processBatch(ctx, sender)
	case "/cancel":
		if bh.registry.Cancel(sender.UserID) || bh.scheduler.CancelQueued(sender.UserID) {
			bh.reply(ctx, sender.ChatID, messages.CancelRequested())
			return
		}
		bh.reply(ctx, sender.ChatID, messages.NothingToCancel())
	case "/stop":
		bh.scheduler.CancelQueued(sender.UserID)
		bh.registry.StopSession(sender.UserID)
		if err := bh.sessions.ResetSession(ctx, sender.UserID); err != nil {
			bh.fail(ctx, sender.ChatID, err, "failed to reset batch session")
			return
		}
		bh.reply(ctx, sender.ChatID, messages.SessionStopped())
	case "/status":
		bh.sendStatus(ctx, sender)
	case "/setthumb":
		_ = bh.registry.SetAwaitingThumbnail(sender.UserID, true)
		bh.reply(ctx, sender.ChatID, messages.ThumbSend())
	case "/viewthumb":
		bh.viewThumbnail(ctx, sender)
	case "/deletethumb":
		if err := bh.profiles.DeleteThumbnail(ctx, sender.UserID); err != nil {
			bh.fail(ctx, sender.ChatID, err, "failed to delete thumbnail")
			return
		}
		bh.reply(ctx, sender.ChatID, messages.ThumbDeleted())
	case "/help":
		bh.reply(ctx, sender.ChatID, messages.Help())
	default:
		bh.reply(ctx, sender.ChatID, messages.ErrorUnknownCommand())
	}
}

// startBatch throws away the previous batch, including a running one.
func (bh *Handlers) startBatch(ctx context.Context, sender contextkeys.Sender) {
	bh.scheduler.CancelQueued(sender.UserID)
	bh.registry.StartSession(sender.UserID)
	if err := bh.sessions.ResetSession(ctx, sender.UserID); err != nil {
		bh.fail(ctx, sender.ChatID, err, "failed to reset batch session")
		return
	}
	if err := bh.sessions.CreateSession(ctx, sender.UserID, sender.ChatID); err != nil {
		bh.fail(ctx, sender.ChatID, err, "failed to create batch session")
		return
	}
	bh.sendMainMenu(ctx, sender.ChatID, messages.StartWelcome())
}

func (bh *Handlers) setRenamePattern(ctx context.Context, sender contextkeys.Sender, args string) {
	cfg, err := naming.ParseRenameArgs(args)
	if err != nil {
		bh.reply(ctx, sender.ChatID, messages.RenameUsage())
		return
	}
	if err := bh.registry.SetAutoConfig(sender.UserID, cfg); err != nil {
		bh.fail(ctx, sender.ChatID, err, "failed to set rename config")
		return
	}
	_ = bh.registry.SetMode(sender.UserID, types.ModeAuto)
	if err := bh.sessions.SetRenameConfig(ctx, sender.UserID, cfg); err != nil {
		bh.fail(ctx, sender.ChatID, err, "failed to persist rename config")
		return
	}
	preview := naming.Format(cfg.BaseTitle, cfg.Season, cfg.StartEpisode, cfg.ZeroPad, cfg.Quality, cfg.Tag)
	bh.reply(ctx, sender.ChatID, messages.RenameSaved(preview))
}

func (bh *Handlers) setMode(ctx context.Context, sender contextkeys.Sender, mode types.RenameMode) {
	if err := bh.registry.SetMode(sender.UserID, mode); err != nil {
		bh.fail(ctx, sender.ChatID, err, "failed to set mode")
		return
	}
	if mode == types.ModeManual {
		bh.reply(ctx, sender.ChatID, messages.ModeManual())
		return
	}
	bh.reply(ctx, sender.ChatID, messages.ModeAutomatic())
}

func (bh *Handlers) processBatch(ctx context.Context, sender contextkeys.Sender) {
	if bh.registry.Running(sender.UserID) {
		bh.reply(ctx, sender.ChatID, messages.BatchAlreadyRunning())
		return
	}
	n, err := bh.sessions.CountFiles(ctx, sender.UserID)
	if err != nil {
		bh.fail(ctx, sender.ChatID, err, "failed to count queued files")
		return
	}
	if n == 0 {
		bh.reply(ctx, sender.ChatID, messages.NoFiles())
		return
	}
	if !bh.scheduler.EnqueueBatch(sender.UserID, sender.ChatID) {
		bh.reply(ctx, sender.ChatID, messages.BatchAlreadyRunning())
		return
	}
	bh.reply(ctx, sender.ChatID, messages.BatchQueued(n))
}

func (bh *Handlers) sendStatus(ctx context.Context, sender contextkeys.Sender) {
	snap := bh.registry.Snapshot(sender.UserID)
	files, err := bh.sessions.CountFiles(ctx, sender.UserID)
	if err != nil {
		bh.fail(ctx, sender.ChatID, err, "failed to count queued files")
		return
	}
	stats, err := bh.profiles.GetStats(ctx, sender.UserID)
	if err != nil {
		bh.fail(ctx, sender.ChatID, err, "failed to load stats")
		return
	}
	thumb, err := bh.profiles.GetThumbnail(ctx, sender.UserID)
	if err != nil {
		bh.fail(ctx, sender.ChatID, err, "failed to load thumbnail")
		return
	}
	recent, err := bh.profiles.RecentBatches(ctx, sender.UserID, recentBatches)
	if err != nil {
		bh.fail(ctx, sender.ChatID, err, "failed to load batch history")
		return
	}
	history := make([]string, 0, len(recent))
	for _, rec := range recent {
		history = append(history, messages.HistoryLine(rec.CreatedAt, rec.Outcome, rec.Completed, rec.Total, progress.HumanBytes(rec.Bytes)))
	}

	bh.reply(ctx, sender.ChatID, messages.Status(
		modeLabel(snap.Mode),
		files,
		len(snap.ManualNames),
		snap.Active,
		thumb != "",
		strconv.FormatInt(stats.TotalFiles, 10),
		progress.HumanBytes(uint64(max(stats.TotalBytes, 0))),
		stats.Batches,
	)+messages.History(history))
}

const recentBatches = 3

func modeLabel(mode types.RenameMode) string {
	if mode == types.ModeManual {
		return "manual"
	}
	return "automatic"
}

func (bh *Handlers) viewThumbnail(ctx context.Context, sender contextkeys.Sender) {
	fileID, err := bh.profiles.GetThumbnail(ctx, sender.UserID)
	if err != nil {
		bh.fail(ctx, sender.ChatID, err, "failed to load thumbnail")
		return
	}
	if fileID == "" {
		bh.reply(ctx, sender.ChatID, messages.ThumbNone())
		return
	}
	if err := bh.replier.SendPhoto(ctx, sender.ChatID, fileID, ""); err != nil {
		bh.fail(ctx, sender.ChatID, err, "failed to send thumbnail")
	}
}
