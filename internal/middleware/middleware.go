package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog/log"

	"github.com/BatmanBruc/bat-bot-renamer/internal/contextkeys"
	"github.com/BatmanBruc/bat-bot-renamer/internal/messages"
	"github.com/BatmanBruc/bat-bot-renamer/internal/session"
	"github.com/BatmanBruc/bat-bot-renamer/store"
	"github.com/BatmanBruc/bat-bot-renamer/types"
)

type SessionStore interface {
	GetSession(ctx context.Context, userID int64) (*types.BatchMeta, error)
	CreateSession(ctx context.Context, userID, chatID int64) error
}

type UserStore interface {
	UpsertUser(ctx context.Context, user types.User) error
}

type Notifier interface {
	Notify(ctx context.Context, chatID int64, text string) error
}

type Middlewares struct {
	sessions SessionStore
	users    UserStore
	registry *session.Registry
	notifier Notifier
}

func NewMiddlewares(sessions SessionStore, users UserStore, registry *session.Registry, notifier Notifier) *Middlewares {
	return &Middlewares{
		sessions: sessions,
		users:    users,
		registry: registry,
		notifier: notifier,
	}
}

// EnsureSessionMiddleware makes sure the sender has a runtime entry and a
// durable batch before any handler runs.
func (m *Middlewares) EnsureSessionMiddleware(next bot.HandlerFunc) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		sender, from, ok := senderFromUpdate(update)
		if !ok {
			return
		}

		created := m.registry.Ensure(sender.UserID)

		if _, err := m.sessions.GetSession(ctx, sender.UserID); err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				log.Warn().Err(err).Int64("user_id", sender.UserID).Msg("failed to load batch session")
			}
			if err := m.sessions.CreateSession(ctx, sender.UserID, sender.ChatID); err != nil {
				log.Error().Err(err).Int64("user_id", sender.UserID).Msg("failed to create batch session")
				_ = m.notifier.Notify(ctx, sender.ChatID, messages.ErrorDefault())
				return
			}
		}

		if created && m.users != nil && from != nil {
			err := m.users.UpsertUser(ctx, types.User{
				UserID:    sender.UserID,
				ChatID:    sender.ChatID,
				Username:  from.Username,
				FirstName: from.FirstName,
				LastName:  from.LastName,
			})
			if err != nil {
				log.Warn().Err(err).Int64("user_id", sender.UserID).Msg("failed to upsert user")
			}
		}

		next(contextkeys.WithSender(ctx, sender), b, update)
	}
}

func senderFromUpdate(update *models.Update) (contextkeys.Sender, *models.User, bool) {
	switch {
	case update == nil:
		return contextkeys.Sender{}, nil, false
	case update.Message != nil && update.Message.From != nil:
		return contextkeys.Sender{UserID: update.Message.From.ID, ChatID: update.Message.Chat.ID}, update.Message.From, true
	case update.CallbackQuery != nil:
		chatID := getChatIDFromMaybeInaccessibleMessage(update.CallbackQuery.Message)
		if chatID == 0 {
			return contextkeys.Sender{}, nil, false
		}
		from := update.CallbackQuery.From
		return contextkeys.Sender{UserID: from.ID, ChatID: chatID}, &from, from.ID != 0
	}
	return contextkeys.Sender{}, nil, false
}

func getChatIDFromMaybeInaccessibleMessage(m models.MaybeInaccessibleMessage) int64 {
	if m.Message != nil {
		return m.Message.Chat.ID
	}
	if m.InaccessibleMessage != nil {
		return m.InaccessibleMessage.Chat.ID
	}
	return 0
}

func AnalyzeMessageMiddleware(next bot.HandlerFunc) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		next(Analyze(ctx, update), b, update)
	}
}

// Analyze stores the message type and any attached file in ctx.
func Analyze(ctx context.Context, update *models.Update) context.Context {
	if update.CallbackQuery != nil && update.CallbackQuery.Data != "" {
		ctx = contextkeys.WithMessageType(ctx, contextkeys.MessageTypeClickButton)
		return contextkeys.WithCallbackData(ctx, update.CallbackQuery.Data)
	}

	msg := update.Message
	if msg == nil {
		return ctx
	}
	if strings.HasPrefix(msg.Text, "/") {
		return contextkeys.WithMessageType(ctx, contextkeys.MessageTypeCommand)
	}

	ctx = contextkeys.WithMessageType(ctx, determineMessageType(msg))
	if files := analyzeFilesInMessage(msg); files.HasFiles {
		ctx = contextkeys.WithFilesInfo(ctx, files)
	}
	return ctx
}

func determineMessageType(msg *models.Message) contextkeys.MessageType {
	switch {
	case len(msg.Photo) > 0:
		return contextkeys.MessageTypePhoto
	case msg.Video != nil:
		return contextkeys.MessageTypeVideo
	case msg.Document != nil:
		return contextkeys.MessageTypeDocument
	case msg.Audio != nil:
		return contextkeys.MessageTypeAudio
	case msg.Voice != nil:
		return contextkeys.MessageTypeVoice
	case msg.Sticker != nil:
		return contextkeys.MessageTypeSticker
	case msg.Text != "":
		return contextkeys.MessageTypeText
	}
	return contextkeys.MessageTypeUnknown
}

func analyzeFilesInMessage(msg *models.Message) *contextkeys.FilesInfo {
	files := make([]contextkeys.FileInfo, 0, 1)

	if len(msg.Photo) > 0 {
		best := thumbnailSize(msg.Photo)
		files = append(files, contextkeys.FileInfo{
			FileType: contextkeys.MessageTypePhoto,
			FileID:   best.FileID,
			FileSize: int64(best.FileSize),
			Width:    best.Width,
			Height:   best.Height,
			FileName: "photo.jpg",
		})
	}
	if msg.Video != nil {
		files = append(files, analyzeVideo(msg.Video))
	}
	if msg.Document != nil {
		files = append(files, analyzeDocument(msg.Document))
	}
	if msg.Audio != nil {
		files = append(files, analyzeAudio(msg.Audio))
	}

	return &contextkeys.FilesInfo{
		TotalFiles: len(files),
		Files:      files,
		HasFiles:   len(files) > 0,
	}
}

// Document thumbnails must be JPEG, at most 320px per side and 200 kB.
const (
	thumbMaxSide  = 320
	thumbMaxBytes = 200 * 1024
)

// thumbnailSize picks the largest photo size Telegram accepts as a document
// thumbnail, or the smallest size when none fits.
func thumbnailSize(sizes []models.PhotoSize) models.PhotoSize {
	area := func(p models.PhotoSize) int { return p.Width * p.Height }
	fits := func(p models.PhotoSize) bool {
		return p.Width <= thumbMaxSide && p.Height <= thumbMaxSide && p.FileSize <= thumbMaxBytes
	}

	var best *models.PhotoSize
	smallest := sizes[0]
	for i := range sizes {
		p := sizes[i]
		if area(p) < area(smallest) {
			smallest = p
		}
		if fits(p) && (best == nil || area(p) > area(*best)) {
			best = &sizes[i]
		}
	}
	if best == nil {
		return smallest
	}
	return *best
}

func analyzeVideo(video *models.Video) contextkeys.FileInfo {
	return contextkeys.FileInfo{
		FileType: contextkeys.MessageTypeVideo,
		FileID:   video.FileID,
		FileSize: int64(video.FileSize),
		MimeType: video.MimeType,
		FileName: withExtension(video.FileName, "video", video.MimeType, "mp4"),
		Duration: video.Duration,
		Width:    video.Width,
		Height:   video.Height,
	}
}

func analyzeDocument(doc *models.Document) contextkeys.FileInfo {
	return contextkeys.FileInfo{
		FileType: contextkeys.MessageTypeDocument,
		FileID:   doc.FileID,
		FileSize: int64(doc.FileSize),
		MimeType: doc.MimeType,
		FileName: withExtension(doc.FileName, "document", doc.MimeType, ""),
	}
}

func analyzeAudio(audio *models.Audio) contextkeys.FileInfo {
	return contextkeys.FileInfo{
		FileType: contextkeys.MessageTypeAudio,
		FileID:   audio.FileID,
		FileSize: int64(audio.FileSize),
		MimeType: audio.MimeType,
		FileName: withExtension(audio.FileName, "audio", audio.MimeType, "mp3"),
		Duration: audio.Duration,
	}
}

// withExtension fills in a missing name or extension from the MIME type.
func withExtension(fileName, fallback, mimeType, defaultExt string) string {
	fileName = strings.TrimSpace(fileName)
	if fileName != "" && strings.Contains(fileName, ".") {
		return fileName
	}
	if fileName == "" {
		fileName = fallback
	}
	if ext := extensionFromMimeType(mimeType, defaultExt); ext != "" {
		return fileName + "." + ext
	}
	return fileName
}

var mimeToExt = map[string]string{
	"mp4":              "mp4",
	"x-matroska":       "mkv",
	"webm":             "webm",
	"quicktime":        "mov",
	"x-msvideo":        "avi",
	"x-flv":            "flv",
	"mp2t":             "ts",
	"3gpp":             "3gp",
	"mpeg":             "mpg",
	"x-ms-wmv":         "wmv",
	"mp3":              "mp3",
	"ogg":              "ogg",
	"flac":             "flac",
	"x-m4a":            "m4a",
	"aac":              "aac",
	"x-subrip":         "srt",
	"vtt":              "vtt",
	"x-ssa":            "ssa",
	"x-ass":            "ass",
	"zip":              "zip",
	"pdf":              "pdf",
	"jpeg":             "jpg",
	"png":              "png",
	"x-rar-compressed": "rar",
}

func extensionFromMimeType(mimeType, defaultExt string) string {
	parts := strings.Split(mimeType, "/")
	if len(parts) != 2 {
		return defaultExt
	}
	subtype := strings.ToLower(strings.TrimSpace(strings.SplitN(parts[1], ";", 2)[0]))
	if ext := mimeToExt[subtype]; ext != "" {
		return ext
	}
	return defaultExt
}
