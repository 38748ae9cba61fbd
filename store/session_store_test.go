package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/BatmanBruc/bat-bot-renamer/types"
)

func newTestSessionStore(t *testing.T, maxFiles int) (*RedisSessionStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client, err := NewRedisClient(context.Background(), mr.Addr(), "", 0, "test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisSessionStore(client, time.Hour, maxFiles), mr
}

func TestSessionStoreQueueOrder(t *testing.T) {
	t.Parallel()
	require := require.New(t)
	ctx := context.Background()

	s, mr := newTestSessionStore(t, 30)
	require.NoError(s.CreateSession(ctx, 1, 100))

	meta, err := s.GetSession(ctx, 1)
	require.NoError(err)
	require.Equal(int64(100), meta.ChatID)

	for i := 0; i < 5; i++ {
		pos, err := s.AddFile(ctx, 1, types.QueuedFile{
			ChatID: 100, MessageID: i, FileID: fmt.Sprintf("f%d", i),
			FileName: fmt.Sprintf("ep%d.mkv", i), Size: uint64(i * 10),
		})
		require.NoError(err)
		require.Equal(i+1, pos)
	}

	files, err := s.GetQueuedFiles(ctx, 1)
	require.NoError(err)
	require.Len(files, 5)
	for i, f := range files {
		require.Equal(fmt.Sprintf("f%d", i), f.FileID)
		require.Equal(uint64(i*10), f.Size)
	}

	n, err := s.CountFiles(ctx, 1)
	require.NoError(err)
	require.Equal(5, n)

	require.True(mr.Exists("test:batch:1:files"))
	require.Equal(time.Hour, mr.TTL("test:batch:1:files"))
}

func TestSessionStoreQueueFull(t *testing.T) {
	t.Parallel()
	require := require.New(t)
	ctx := context.Background()

	s, _ := newTestSessionStore(t, 2)
	for i := 0; i < 2; i++ {
		_, err := s.AddFile(ctx, 7, types.QueuedFile{FileID: fmt.Sprintf("f%d", i)})
		require.NoError(err)
	}

	pos, err := s.AddFile(ctx, 7, types.QueuedFile{FileID: "overflow"})
	require.ErrorIs(err, ErrQueueFull)
	require.Equal(2, pos)

	files, err := s.GetQueuedFiles(ctx, 7)
	require.NoError(err)
	require.Len(files, 2)
	require.Equal("f1", files[1].FileID)
}

func TestSessionStoreRenameConfigAndReset(t *testing.T) {
	t.Parallel()
	require := require.New(t)
	ctx := context.Background()

	s, _ := newTestSessionStore(t, 30)

	cfg, err := s.GetRenameConfig(ctx, 3)
	require.NoError(err)
	require.Nil(cfg)

	want := types.RenameConfig{BaseTitle: "Show", Season: 1, StartEpisode: 3, ZeroPad: true, Quality: "720p"}
	require.NoError(s.SetRenameConfig(ctx, 3, want))
	cfg, err = s.GetRenameConfig(ctx, 3)
	require.NoError(err)
	require.Equal(want, *cfg)

	require.NoError(s.CreateSession(ctx, 3, 30))
	_, err = s.AddFile(ctx, 3, types.QueuedFile{FileID: "x"})
	require.NoError(err)

	require.NoError(s.ResetSession(ctx, 3))
	require.NoError(s.ResetSession(ctx, 3))

	cfg, err = s.GetRenameConfig(ctx, 3)
	require.NoError(err)
	require.Nil(cfg)
	files, err := s.GetQueuedFiles(ctx, 3)
	require.NoError(err)
	require.Empty(files)
	_, err = s.GetSession(ctx, 3)
	require.ErrorIs(err, ErrNotFound)
}

func TestSessionStoreIsolation(t *testing.T) {
	t.Parallel()
	require := require.New(t)
	ctx := context.Background()

	s, _ := newTestSessionStore(t, 30)
	_, err := s.AddFile(ctx, 1, types.QueuedFile{FileID: "a"})
	require.NoError(err)
	_, err = s.AddFile(ctx, 2, types.QueuedFile{FileID: "b"})
	require.NoError(err)

	require.NoError(s.ResetSession(ctx, 1))
	n, err := s.CountFiles(ctx, 2)
	require.NoError(err)
	require.Equal(1, n)
}
