package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/BatmanBruc/bat-bot-renamer/types"
)

var ErrQueueFull = errors.New("store: batch queue is full")

var _ types.SessionStore = (*RedisSessionStore)(nil)

// RedisSessionStore keeps the durable half of a batch:
//
//	<prefix>:batch:<uid>:meta    BatchMeta
//	<prefix>:batch:<uid>:files   list of QueuedFile, insertion order
//	<prefix>:batch:<uid>:rename  RenameConfig
type RedisSessionStore struct {
	client   *RedisClient
	ttl      time.Duration
	maxFiles int
}

func NewRedisSessionStore(redisClient *RedisClient, ttl time.Duration, maxFiles int) *RedisSessionStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisSessionStore{
		client:   redisClient,
		ttl:      ttl,
		maxFiles: maxFiles,
	}
}

func (s *RedisSessionStore) key(userID int64, part string) string {
	return s.client.generateKey("batch", strconv.FormatInt(userID, 10), part)
}

func (s *RedisSessionStore) CreateSession(ctx context.Context, userID, chatID int64) error {
	now := time.Now()
	meta := types.BatchMeta{
		UserID:    userID,
		ChatID:    chatID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return s.client.Set(ctx, s.key(userID, "meta"), meta, s.ttl)
}

func (s *RedisSessionStore) GetSession(ctx context.Context, userID int64) (*types.BatchMeta, error) {
	var meta types.BatchMeta
	if err := s.client.Get(ctx, s.key(userID, "meta"), &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// AddFile appends file to the queue and returns its 1-based position.
// ErrQueueFull is returned, and the queue left unchanged, once maxFiles is reached.
func (s *RedisSessionStore) AddFile(ctx context.Context, userID int64, file types.QueuedFile) (int, error) {
	key := s.key(userID, "files")
	n, err := s.client.Push(ctx, key, file, s.ttl)
	if err != nil {
		return 0, err
	}
	if s.maxFiles > 0 && n > int64(s.maxFiles) {
		if err := s.client.PopLast(ctx, key); err != nil {
			return 0, fmt.Errorf("undo overflow push: %w", err)
		}
		return s.maxFiles, ErrQueueFull
	}
	return int(n), nil
}

func (s *RedisSessionStore) GetQueuedFiles(ctx context.Context, userID int64) ([]types.QueuedFile, error) {
	raw, err := s.client.Range(ctx, s.key(userID, "files"))
	if err != nil {
		return nil, err
	}
	files := make([]types.QueuedFile, 0, len(raw))
	for i, data := range raw {
		var f types.QueuedFile
		if err := msgpack.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("decode queued file %d: %w", i, err)
		}
		files = append(files, f)
	}
	return files, nil
}

func (s *RedisSessionStore) CountFiles(ctx context.Context, userID int64) (int, error) {
	n, err := s.client.Len(ctx, s.key(userID, "files"))
	return int(n), err
}

func (s *RedisSessionStore) SetRenameConfig(ctx context.Context, userID int64, cfg types.RenameConfig) error {
	return s.client.Set(ctx, s.key(userID, "rename"), cfg, s.ttl)
}

// GetRenameConfig returns nil without error when no pattern was set.
func (s *RedisSessionStore) GetRenameConfig(ctx context.Context, userID int64) (*types.RenameConfig, error) {
	var cfg types.RenameConfig
	if err := s.client.Get(ctx, s.key(userID, "rename"), &cfg); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cfg, nil
}

func (s *RedisSessionStore) ResetSession(ctx context.Context, userID int64) error {
	return s.client.Del(ctx,
		s.key(userID, "meta"),
		s.key(userID, "files"),
		s.key(userID, "rename"),
	)
}
