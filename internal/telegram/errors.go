package telegram

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-telegram/bot"

	"github.com/BatmanBruc/bat-bot-renamer/types"
)

// translate turns Telegram's flood-control error into *types.RateLimitError.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var tm *bot.TooManyRequestsError
	if errors.As(err, &tm) {
		return &types.RateLimitError{RetryAfter: time.Duration(tm.RetryAfter) * time.Second}
	}
	return err
}

func isNotModified(err error) bool {
	return err != nil && strings.Contains(err.Error(), "message is not modified")
}

// retryAfter reads the Retry-After header of a 429 file download.
func retryAfter(resp *http.Response) time.Duration {
	if secs, err := strconv.Atoi(strings.TrimSpace(resp.Header.Get("Retry-After"))); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return time.Second
}

func rateLimited(d time.Duration) error {
	return &types.RateLimitError{RetryAfter: d}
}
