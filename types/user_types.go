package types

import (
	"context"
	"time"
)

type User struct {
	UserID    int64
	ChatID    int64
	Username  string
	FirstName string
	LastName  string
}

type UserStats struct {
	UserID     int64
	TotalFiles int64
	TotalBytes int64
	Batches    int64
}

// BatchRecord is one finished batch kept for /status history.
type BatchRecord struct {
	UserID    int64
	RunID     string
	Total     int
	Completed int
	Bytes     uint64
	Outcome   string
	Elapsed   time.Duration
	CreatedAt time.Time
}

// UserStore persists user profiles, thumbnails and batch statistics.
type UserStore interface {
	UpsertUser(ctx context.Context, user User) error

	SetThumbnail(ctx context.Context, userID int64, fileID string) error
	GetThumbnail(ctx context.Context, userID int64) (string, error)
	DeleteThumbnail(ctx context.Context, userID int64) error

	RecordBatch(ctx context.Context, rec BatchRecord) error
	GetStats(ctx context.Context, userID int64) (*UserStats, error)
	RecentBatches(ctx context.Context, userID int64, limit int) ([]BatchRecord, error)
}

// SessionStore is the durable half of a batch: the ordered file queue and the rename config.
type SessionStore interface {
	CreateSession(ctx context.Context, userID, chatID int64) error
	AddFile(ctx context.Context, userID int64, file QueuedFile) (int, error)
	GetQueuedFiles(ctx context.Context, userID int64) ([]QueuedFile, error)
	CountFiles(ctx context.Context, userID int64) (int, error)
	SetRenameConfig(ctx context.Context, userID int64, cfg RenameConfig) error
	GetRenameConfig(ctx context.Context, userID int64) (*RenameConfig, error)
	ResetSession(ctx context.Context, userID int64) error
}
