package telegram

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-telegram/bot"
	"github.com/stretchr/testify/require"

	"github.com/BatmanBruc/bat-bot-renamer/internal/batch"
	"github.com/BatmanBruc/bat-bot-renamer/types"
)

func TestDownload(t *testing.T) {
	payload := strings.Repeat("x", 4096)

	tests := []struct {
		name       string
		handler    http.HandlerFunc
		size       uint64
		wantN      uint64
		wantErr    bool
		wantRetry  time.Duration
		wantCalls  bool
		checkTotal uint64
	}{
		{
			name: "ok with known size",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(payload))
			},
			size:       4096,
			wantN:      4096,
			wantCalls:  true,
			checkTotal: 4096,
		},
		{
			name: "content length used when size unknown",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Length", "4096")
				_, _ = w.Write([]byte(payload))
			},
			wantN:      4096,
			wantCalls:  true,
			checkTotal: 4096,
		},
		{
			name: "rate limited",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Retry-After", "7")
				w.WriteHeader(http.StatusTooManyRequests)
			},
			wantErr:   true,
			wantRetry: 7 * time.Second,
		},
		{
			name: "rate limited without header",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
			},
			wantErr:   true,
			wantRetry: time.Second,
		},
		{
			name: "not found",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			var (
				buf       bytes.Buffer
				lastCur   uint64
				lastTotal uint64
				calls     int
			)
			n, err := download(context.Background(), srv.Client(), batch.Remote{URL: srv.URL, Size: tt.size}, &buf, func(cur, total uint64) {
				calls++
				lastCur, lastTotal = cur, total
			})

			if tt.wantErr {
				require.Error(err)
				var rl *types.RateLimitError
				if tt.wantRetry > 0 {
					require.ErrorAs(err, &rl)
					require.Equal(tt.wantRetry, rl.RetryAfter)
				} else {
					require.False(errors.As(err, &rl))
				}
				require.Zero(buf.Len())
				return
			}
			require.NoError(err)
			require.Equal(tt.wantN, n)
			require.Equal(payload, buf.String())
			require.Equal(tt.wantCalls, calls > 0)
			require.Equal(tt.wantN, lastCur)
			require.Equal(tt.checkTotal, lastTotal)
		})
	}
}

func TestDownloadCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("data"))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	_, err := download(ctx, srv.Client(), batch.Remote{URL: srv.URL}, &buf, nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestTransferClientOutlivesSlowBody(t *testing.T) {
	require := require.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "8")
		_, _ = w.Write([]byte("data"))
		w.(http.Flusher).Flush()
		time.Sleep(150 * time.Millisecond)
		_, _ = w.Write([]byte("more"))
	}))
	defer srv.Close()

	client := NewTransferClient()
	require.Zero(client.Timeout)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var buf bytes.Buffer
	n, err := download(ctx, client, batch.Remote{URL: srv.URL}, &buf, nil)
	require.NoError(err)
	require.Equal(uint64(8), n)
	require.Equal("datamore", buf.String())

	require.Zero(NewTransport(nil, "", nil).httpClient.Timeout)
}

func TestProgressReader(t *testing.T) {
	require := require.New(t)

	var seen []uint64
	r := &progressReader{r: strings.NewReader("abcdefghij"), total: 10, onProgress: func(cur, total uint64) {
		require.Equal(uint64(10), total)
		seen = append(seen, cur)
	}}

	buf := make([]byte, 4)
	for {
		_, err := r.Read(buf)
		if err != nil {
			break
		}
	}
	require.Equal([]uint64{4, 8, 10}, seen)
}

func TestFileURL(t *testing.T) {
	require.Equal(t, "https://api.telegram.org/file/bot123:abc/documents/file_1.mkv",
		fileURL("https://api.telegram.org", "123:abc", "documents/file_1.mkv"))
}

func TestTranslate(t *testing.T) {
	require := require.New(t)

	require.NoError(translate(nil))

	plain := errors.New("boom")
	require.Same(plain, translate(plain))

	wrapped := fmt.Errorf("send: %w", &bot.TooManyRequestsError{Message: "Too Many Requests", RetryAfter: 12})
	var rl *types.RateLimitError
	require.ErrorAs(translate(wrapped), &rl)
	require.Equal(12*time.Second, rl.RetryAfter)

	require.True(isNotModified(errors.New("bad request, Bad Request: message is not modified: specified new message content")))
	require.False(isNotModified(nil))
	require.False(isNotModified(plain))
}
