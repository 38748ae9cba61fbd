package contextkeys

import "context"

type messageTypeKey struct{}
type filesInfoKey struct{}
type senderKey struct{}
type callbackDataKey struct{}

type MessageType string

const (
	MessageTypeText        MessageType = "text"
	MessageTypePhoto       MessageType = "photo"
	MessageTypeVideo       MessageType = "video"
	MessageTypeDocument    MessageType = "document"
	MessageTypeAudio       MessageType = "audio"
	MessageTypeVoice       MessageType = "voice"
	MessageTypeSticker     MessageType = "sticker"
	MessageTypeUnknown     MessageType = "unknown"
	MessageTypeCommand     MessageType = "command"
	MessageTypeClickButton MessageType = "clickButton"
)

type FileInfo struct {
	FileType MessageType `json:"file_type"`
	FileID   string      `json:"file_id"`
	FileSize int64       `json:"file_size,omitempty"`
	MimeType string      `json:"mime_type,omitempty"`
	FileName string      `json:"file_name,omitempty"`
	Duration int         `json:"duration,omitempty"`
	Width    int         `json:"width,omitempty"`
	Height   int         `json:"height,omitempty"`
}

type FilesInfo struct {
	TotalFiles int        `json:"total_files"`
	Files      []FileInfo `json:"files"`
	HasFiles   bool       `json:"has_files"`
}

// Sender identifies who sent the update and where to answer.
type Sender struct {
	UserID int64
	ChatID int64
}

func WithMessageType(ctx context.Context, msgType MessageType) context.Context {
	return context.WithValue(ctx, messageTypeKey{}, msgType)
}

func GetMessageType(ctx context.Context) (MessageType, bool) {
	v, ok := ctx.Value(messageTypeKey{}).(MessageType)
	if !ok {
		return MessageTypeUnknown, false
	}
	return v, true
}

func WithFilesInfo(ctx context.Context, info *FilesInfo) context.Context {
	return context.WithValue(ctx, filesInfoKey{}, info)
}

func GetFilesInfo(ctx context.Context) (*FilesInfo, bool) {
	v, ok := ctx.Value(filesInfoKey{}).(*FilesInfo)
	return v, ok
}

func HasFiles(ctx context.Context) bool {
	info, ok := GetFilesInfo(ctx)
	return ok && info != nil && info.HasFiles
}

func GetFileInfo(ctx context.Context, index int) (FileInfo, bool) {
	info, ok := GetFilesInfo(ctx)
	if !ok || info == nil || index < 0 || index >= len(info.Files) {
		return FileInfo{}, false
	}
	return info.Files[index], true
}

func WithSender(ctx context.Context, s Sender) context.Context {
	return context.WithValue(ctx, senderKey{}, s)
}

func GetSender(ctx context.Context) (Sender, bool) {
	v, ok := ctx.Value(senderKey{}).(Sender)
	return v, ok
}

func WithCallbackData(ctx context.Context, data string) context.Context {
	return context.WithValue(ctx, callbackDataKey{}, data)
}

func GetCallbackData(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(callbackDataKey{}).(string)
	return v, ok
}
