package batch

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sethvargo/go-retry"

	"github.com/BatmanBruc/bat-bot-renamer/types"
)

// withRateLimit repeats fn after the server-requested pause whenever it is rate limited.
// Other errors are returned at once.
func (p *Processor) withRateLimit(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(p.cfg.RateLimitRetries, retry.NewConstant(time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		var rl *types.RateLimitError
		if !errors.As(err, &rl) {
			return err
		}

		p.metrics.RateLimited(op)
		wait := rl.RetryAfter
		if p.cfg.MaxBackoff > 0 && wait > p.cfg.MaxBackoff {
			wait = p.cfg.MaxBackoff
		}
		log.Warn().Str("op", op).Dur("retry_after", rl.RetryAfter).Dur("wait", wait).Msg("rate limited, backing off")
		if serr := p.sleep(ctx, wait); serr != nil {
			return serr
		}
		return retry.RetryableError(err)
	})
}
