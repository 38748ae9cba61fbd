package types

import (
	"fmt"
	"time"
)

// QueuedFile is one media message waiting in a user's batch.
type QueuedFile struct {
	ChatID    int64  `msgpack:"chat_id" json:"chat_id"`
	MessageID int    `msgpack:"message_id" json:"message_id"`
	FileID    string `msgpack:"file_id" json:"file_id"`
	FileName  string `msgpack:"file_name" json:"file_name"`
	Size      uint64 `msgpack:"size" json:"size"`
}

// RenameConfig drives automatic naming: "{base} S{season}E{episode} {quality} {tag}".
type RenameConfig struct {
	BaseTitle    string `msgpack:"base_title" json:"base_title"`
	Season       uint   `msgpack:"season" json:"season"`
	StartEpisode uint   `msgpack:"start_episode" json:"start_episode"`
	ZeroPad      bool   `msgpack:"zero_pad" json:"zero_pad"`
	Quality      string `msgpack:"quality,omitempty" json:"quality,omitempty"`
	Tag          string `msgpack:"tag,omitempty" json:"tag,omitempty"`
}

type BatchMeta struct {
	UserID    int64     `msgpack:"user_id"`
	ChatID    int64     `msgpack:"chat_id"`
	CreatedAt time.Time `msgpack:"created_at"`
	UpdatedAt time.Time `msgpack:"updated_at"`
}

// RateLimitError is returned by transports when Telegram asks the caller to back off.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}
