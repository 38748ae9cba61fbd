package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/BatmanBruc/bat-bot-renamer/internal/batch"
)

// Transport downloads files through the Bot API file endpoint and sends them
// back as documents.
type Transport struct {
	bot        *bot.Bot
	apiURL     string
	httpClient *http.Client
}

// NewTransferClient returns the HTTP client for file transfers. It has no
// Timeout: a client timeout covers the whole body, so large files are bounded
// by the caller's context deadline instead.
func NewTransferClient() *http.Client {
	return &http.Client{Transport: http.DefaultTransport}
}

func NewTransport(b *bot.Bot, apiURL string, httpClient *http.Client) *Transport {
	if apiURL == "" {
		apiURL = "https://api.telegram.org"
	}
	if httpClient == nil {
		httpClient = NewTransferClient()
	}
	return &Transport{
		bot:        b,
		apiURL:     strings.TrimRight(apiURL, "/"),
		httpClient: httpClient,
	}
}

func (t *Transport) Resolve(ctx context.Context, fileID string) (batch.Remote, error) {
	f, err := t.bot.GetFile(ctx, &bot.GetFileParams{FileID: fileID})
	if err != nil {
		return batch.Remote{}, translate(err)
	}
	if f.FilePath == "" {
		return batch.Remote{}, fmt.Errorf("telegram returned no file path for %s", fileID)
	}
	var size uint64
	if f.FileSize > 0 {
		size = uint64(f.FileSize)
	}
	return batch.Remote{
		URL:  fileURL(t.apiURL, t.bot.Token(), f.FilePath),
		Size: size,
	}, nil
}

func fileURL(apiURL, token, filePath string) string {
	return fmt.Sprintf("%s/file/bot%s/%s", apiURL, token, filePath)
}

func (t *Transport) Download(ctx context.Context, src batch.Remote, dst io.Writer, onProgress batch.ProgressFunc) (uint64, error) {
	return download(ctx, t.httpClient, src, dst, onProgress)
}

func download(ctx context.Context, client *http.Client, src batch.Remote, dst io.Writer, onProgress batch.ProgressFunc) (uint64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return 0, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return 0, rateLimited(retryAfter(resp))
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("download failed: status %d", resp.StatusCode)
	}

	total := src.Size
	if total == 0 && resp.ContentLength > 0 {
		total = uint64(resp.ContentLength)
	}
	w := &progressWriter{w: dst, total: total, onProgress: onProgress}
	n, err := io.Copy(w, resp.Body)
	return uint64(n), err
}

func (t *Transport) Upload(ctx context.Context, u batch.Upload, onProgress batch.ProgressFunc) error {
	file, err := os.Open(u.Path)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}

	name := strings.TrimSpace(u.FileName)
	if name == "" {
		name = filepath.Base(u.Path)
	}

	params := &bot.SendDocumentParams{
		ChatID: u.ChatID,
		Document: &models.InputFileUpload{
			Filename: name,
			Data:     &progressReader{r: file, total: uint64(info.Size()), onProgress: onProgress},
		},
		Caption:                     u.Caption,
		DisableContentTypeDetection: true,
	}

	if u.Thumbnail != "" {
		thumb, err := os.Open(u.Thumbnail)
		if err != nil {
			return fmt.Errorf("open thumbnail: %w", err)
		}
		defer thumb.Close()
		params.Thumbnail = &models.InputFileUpload{Filename: "thumb.jpg", Data: thumb}
	}

	_, err = t.bot.SendDocument(ctx, params)
	return translate(err)
}

type progressWriter struct {
	w          io.Writer
	written    uint64
	total      uint64
	onProgress batch.ProgressFunc
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	p.written += uint64(n)
	if p.onProgress != nil {
		p.onProgress(p.written, p.total)
	}
	return n, err
}

type progressReader struct {
	r          io.Reader
	read       uint64
	total      uint64
	onProgress batch.ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.read += uint64(n)
	if p.onProgress != nil && n > 0 {
		p.onProgress(p.read, p.total)
	}
	return n, err
}
