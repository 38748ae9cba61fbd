package progress

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/BatmanBruc/bat-bot-renamer/internal/messages"
	"github.com/BatmanBruc/bat-bot-renamer/types"
)

const barWidth = 20

// Handle points at one status message that is created once and edited many times.
type Handle struct {
	ChatID    int64
	MessageID int
}

// Sink delivers status text to the user.
type Sink interface {
	Create(ctx context.Context, chatID int64, text string) (Handle, error)
	Update(ctx context.Context, h Handle, text string) error
}

// ThrottleState is owned by the caller and threaded through every Report call
// for one transfer phase.
type ThrottleState struct {
	lastEmit  time.Time
	lastBytes uint64
	lastAt    time.Time
	observed  bool
}

// Reset starts a new throttle window so the first update of the next phase is not suppressed.
func (s *ThrottleState) Reset() {
	*s = ThrottleState{}
}

type Reporter struct {
	sink       Sink
	interval   time.Duration
	maxBackoff time.Duration
	now        func() time.Time
	sleep      func(ctx context.Context, d time.Duration) error
}

type Option func(*Reporter)

func WithClock(now func() time.Time) Option {
	return func(r *Reporter) { r.now = now }
}

func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(r *Reporter) { r.sleep = sleep }
}

func NewReporter(sink Sink, interval, maxBackoff time.Duration, opts ...Option) *Reporter {
	r := &Reporter{
		sink:       sink,
		interval:   interval,
		maxBackoff: maxBackoff,
		now:        time.Now,
		sleep:      Sleep,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Reporter) Sink() Sink {
	return r.sink
}

// Report renders and emits one progress update. Intermediate updates are dropped
// while inside the throttle interval; the 100% update always goes out.
func (r *Reporter) Report(ctx context.Context, h Handle, current, total uint64, start time.Time, label string, st *ThrottleState) error {
	if total == 0 {
		return nil
	}

	now := r.now()
	final := current >= total
	if !final && !st.lastEmit.IsZero() && now.Sub(st.lastEmit) < r.interval {
		return nil
	}

	var speed float64
	if st.observed && current >= st.lastBytes {
		if dt := now.Sub(st.lastAt).Seconds(); dt > 0 {
			speed = float64(current-st.lastBytes) / dt
		}
	}

	var eta time.Duration
	if speed > 0 && !final {
		eta = time.Duration(float64(total-current) / speed * float64(time.Second))
	}

	st.lastEmit = now
	st.lastBytes = current
	st.lastAt = now
	st.observed = true

	text := Render(label, current, total, speed, eta, now.Sub(start))
	err := r.sink.Update(ctx, h, text)
	if err == nil {
		return nil
	}

	var rl *types.RateLimitError
	if errors.As(err, &rl) {
		wait := rl.RetryAfter
		if r.maxBackoff > 0 && wait > r.maxBackoff {
			wait = r.maxBackoff
		}
		log.Debug().Dur("retry_after", rl.RetryAfter).Dur("wait", wait).Msg("progress update rate limited")
		return r.sleep(ctx, wait)
	}

	if final {
		return fmt.Errorf("progress: final update: %w", err)
	}
	log.Debug().Err(err).Str("label", label).Msg("progress update dropped")
	return nil
}

// Percent is floor(current*100/total), capped at 100.
func Percent(current, total uint64) uint64 {
	if total == 0 {
		return 0
	}
	if current >= total {
		return 100
	}
	return uint64(float64(current) * 100 / float64(total))
}

func Render(label string, current, total uint64, speed float64, eta, elapsed time.Duration) string {
	pct := Percent(current, total)
	filled := int(pct) * barWidth / 100

	var sb strings.Builder
	fmt.Fprintf(&sb, "<b>%s</b>\n", messages.Escape(label))
	fmt.Fprintf(&sb, "[%s%s] %d%%\n", strings.Repeat("█", filled), strings.Repeat("░", barWidth-filled), pct)
	fmt.Fprintf(&sb, "📦 %s / %s\n", HumanBytes(current), HumanBytes(total))
	fmt.Fprintf(&sb, "🚀 %.2f MB/s\n", speed/(1024*1024))
	fmt.Fprintf(&sb, "⏳ ETA: %s\n", eta.Round(time.Second))
	fmt.Fprintf(&sb, "⏱ Elapsed: %s", elapsed.Round(time.Second))
	return sb.String()
}

func HumanBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
