package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/BatmanBruc/bat-bot-renamer/internal/messages"
	"github.com/BatmanBruc/bat-bot-renamer/internal/naming"
	"github.com/BatmanBruc/bat-bot-renamer/internal/progress"
	"github.com/BatmanBruc/bat-bot-renamer/internal/session"
	"github.com/BatmanBruc/bat-bot-renamer/types"
)

const (
	OutcomeSuccess   = "success"
	OutcomeCancelled = "cancelled"
	OutcomeFailed    = "failed"
)

// FileStore is the durable batch state the processor reads and finally resets.
type FileStore interface {
	GetQueuedFiles(ctx context.Context, userID int64) ([]types.QueuedFile, error)
	GetRenameConfig(ctx context.Context, userID int64) (*types.RenameConfig, error)
	ResetSession(ctx context.Context, userID int64) error
}

// ProfileStore owns the thumbnail and keeps batch history.
type ProfileStore interface {
	GetThumbnail(ctx context.Context, userID int64) (string, error)
	RecordBatch(ctx context.Context, rec types.BatchRecord) error
}

// Remote is a resolved, downloadable source.
type Remote struct {
	URL  string
	Size uint64
}

type ProgressFunc func(current, total uint64)

type Upload struct {
	ChatID    int64
	FileName  string
	Path      string
	Thumbnail string
	Caption   string
}

// Transport moves bytes between Telegram and the staging directory.
// Implementations return *types.RateLimitError when asked to back off.
type Transport interface {
	Resolve(ctx context.Context, fileID string) (Remote, error)
	Download(ctx context.Context, src Remote, dst io.Writer, onProgress ProgressFunc) (uint64, error)
	Upload(ctx context.Context, u Upload, onProgress ProgressFunc) error
}

type Metrics interface {
	BatchStarted()
	BatchFinished(outcome string, elapsed time.Duration)
	FileProcessed(bytes uint64)
	RateLimited(op string)
}

type Config struct {
	StagingDir       string
	MinSizeRatio     float64
	FileTimeout      time.Duration
	RateLimitRetries uint64
	MaxBackoff       time.Duration
}

type Summary struct {
	RunID     string
	Total     int
	Completed int
	Bytes     uint64
	Elapsed   time.Duration
	Success   bool
	Cancelled bool
	Files     []string
}

type Processor struct {
	files     FileStore
	profiles  ProfileStore
	transport Transport
	registry  *session.Registry
	reporter  *progress.Reporter
	metrics   Metrics
	cfg       Config

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
	runID func() string
}

type Option func(*Processor)

func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(p *Processor) { p.sleep = sleep }
}

func WithRunID(fn func() string) Option {
	return func(p *Processor) { p.runID = fn }
}

func NewProcessor(
	files FileStore,
	profiles ProfileStore,
	transport Transport,
	registry *session.Registry,
	reporter *progress.Reporter,
	metrics Metrics,
	cfg Config,
	opts ...Option,
) *Processor {
	if cfg.MinSizeRatio <= 0 {
		cfg.MinSizeRatio = 0.98
	}
	p := &Processor{
		files:     files,
		profiles:  profiles,
		transport: transport,
		registry:  registry,
		reporter:  reporter,
		metrics:   metrics,
		cfg:       cfg,
		now:       time.Now,
		sleep:     progress.Sleep,
		runID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// plan is what the preconditions produced: files in queue order and one name source.
type plan struct {
	files  []types.QueuedFile
	names  []string
	config *types.RenameConfig
}

func (pl plan) target(i int) string {
	if pl.names != nil {
		return pl.names[i]
	}
	return naming.Target(*pl.config, pl.files[i].FileName, i)
}

func (p *Processor) prepare(ctx context.Context, uid int64) (plan, error) {
	p.registry.Ensure(uid)
	if p.registry.Running(uid) {
		return plan{}, &PreconditionError{Reason: ReasonBusy}
	}
	snap := p.registry.Snapshot(uid)

	files, err := p.files.GetQueuedFiles(ctx, uid)
	if err != nil {
		return plan{}, &FatalError{Step: "load queue", Err: err}
	}
	if len(files) == 0 {
		return plan{}, &PreconditionError{Reason: ReasonNoFiles}
	}

	if snap.Mode == types.ModeManual {
		if len(snap.ManualNames) != len(files) {
			return plan{}, &PreconditionError{Reason: ReasonNameMismatch, Files: len(files), Names: len(snap.ManualNames)}
		}
		return plan{files: files, names: snap.ManualNames}, nil
	}

	cfg := snap.AutoConfig
	if cfg == nil {
		cfg, err = p.files.GetRenameConfig(ctx, uid)
		if err != nil {
			return plan{}, &FatalError{Step: "load rename config", Err: err}
		}
	}
	if cfg == nil {
		return plan{}, &PreconditionError{Reason: ReasonMissingConfig, Files: len(files)}
	}
	return plan{files: files, config: cfg}, nil
}

// Process renames and re-sends the user's queued files one by one.
// Cancellation is not an error: it is reported through Summary.Cancelled.
func (p *Processor) Process(ctx context.Context, uid, chatID int64) (Summary, error) {
	pl, err := p.prepare(ctx, uid)
	if err != nil {
		return Summary{}, err
	}

	runCtx, err := p.registry.Begin(ctx, uid)
	if err != nil {
		if errors.Is(err, session.ErrBusy) {
			return Summary{}, &PreconditionError{Reason: ReasonBusy}
		}
		return Summary{}, &FatalError{Step: "begin", Err: err}
	}

	r := p.newRun(runCtx, uid, chatID, len(pl.files))
	outcome := OutcomeFailed
	defer func() { r.cleanup(outcome) }()

	logger := log.With().Int64("user_id", uid).Str("run_id", r.id).Int("files", len(pl.files)).Logger()
	logger.Info().Msg("batch started")

	h, err := p.reporter.Sink().Create(runCtx, chatID, messages.BatchStarted(r.id, len(pl.files)))
	if err != nil {
		return r.summary, &FatalError{Step: "status message", Err: err}
	}
	r.handle = h

	thumb := p.stageThumbnail(r)

	for i, f := range pl.files {
		if !r.alive() {
			break
		}
		_ = p.registry.Touch(uid)

		name := naming.UploadName(pl.target(i), f.FileName)
		n, err := p.processFile(r, i, f, name, thumb)
		if err != nil {
			if errors.Is(err, errCancelled) || !r.alive() {
				break
			}
			logger.Error().Err(err).Int("index", i).Str("file", f.FileName).Msg("batch halted")
			r.summary.Elapsed = p.now().Sub(r.start)
			p.finish(r, OutcomeFailed, failureReason(err, name))
			return r.summary, err
		}

		r.summary.Completed++
		r.summary.Bytes += n
		r.summary.Files = append(r.summary.Files, name)
		p.metrics.FileProcessed(n)
		logger.Debug().Int("index", i).Str("name", name).Uint64("bytes", n).Msg("file sent")
	}

	r.summary.Elapsed = p.now().Sub(r.start)
	if r.summary.Completed < r.summary.Total {
		outcome = OutcomeCancelled
		r.summary.Cancelled = true
		logger.Info().Int("completed", r.summary.Completed).Msg("batch cancelled")
	} else {
		outcome = OutcomeSuccess
		r.summary.Success = true
		logger.Info().Uint64("bytes", r.summary.Bytes).Dur("elapsed", r.summary.Elapsed).Msg("batch finished")
	}
	p.finish(r, outcome, "")
	return r.summary, nil
}

func failureReason(err error, name string) string {
	var inc *IncompleteTransferError
	if errors.As(err, &inc) {
		return messages.IncompleteTransfer(name)
	}
	return messages.GenericFailure()
}

// finish edits the status message with the terminal state and records history.
func (p *Processor) finish(r *run, outcome, reason string) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var text string
	switch outcome {
	case OutcomeSuccess:
		text = messages.BatchDone(r.summary.Completed, progress.HumanBytes(r.summary.Bytes), r.summary.Elapsed)
	case OutcomeCancelled:
		text = messages.BatchCancelled(r.summary.Completed, r.summary.Total)
	default:
		text = messages.BatchFailed(r.summary.Completed, r.summary.Total, reason)
	}
	if err := p.reporter.Sink().Update(ctx, r.handle, text); err != nil {
		log.Warn().Err(err).Int64("user_id", r.uid).Msg("final status update failed")
	}

	if p.profiles == nil {
		return
	}
	rec := types.BatchRecord{
		UserID:    r.uid,
		RunID:     r.id,
		Total:     r.summary.Total,
		Completed: r.summary.Completed,
		Bytes:     r.summary.Bytes,
		Outcome:   outcome,
		Elapsed:   r.summary.Elapsed,
		CreatedAt: r.start,
	}
	if err := p.profiles.RecordBatch(ctx, rec); err != nil {
		log.Warn().Err(err).Int64("user_id", r.uid).Msg("failed to record batch history")
	}
}

// stageThumbnail downloads the user's thumbnail once per run. Failures only disable it.
func (p *Processor) stageThumbnail(r *run) string {
	if p.profiles == nil {
		return ""
	}
	fileID, err := p.profiles.GetThumbnail(r.ctx, r.uid)
	if err != nil {
		log.Warn().Err(err).Int64("user_id", r.uid).Msg("thumbnail lookup failed")
		return ""
	}
	if fileID == "" {
		return ""
	}

	path := r.staging.thumbnail()
	var remote Remote
	err = p.withRateLimit(r.ctx, "resolve", func(ctx context.Context) error {
		var err error
		remote, err = p.transport.Resolve(ctx, fileID)
		return err
	})
	if err == nil {
		_, err = p.download(r.ctx, r, remote, path, 0, nil)
	}
	if err != nil {
		log.Warn().Err(err).Int64("user_id", r.uid).Msg("thumbnail download failed, sending without")
		r.staging.discard(path)
		return ""
	}
	return path
}

func (p *Processor) processFile(r *run, index int, f types.QueuedFile, name, thumb string) (uint64, error) {
	ctx := r.ctx
	if p.cfg.FileTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.FileTimeout)
		defer cancel()
	}
	label := messages.FileProgressLabel(index+1, r.summary.Total, name)

	var remote Remote
	err := p.withRateLimit(ctx, "resolve", func(ctx context.Context) error {
		var err error
		remote, err = p.transport.Resolve(ctx, f.FileID)
		return err
	})
	if err != nil {
		return 0, p.stepError(r, "resolve", err)
	}
	if !r.alive() {
		return 0, errCancelled
	}

	expected := remote.Size
	if expected == 0 {
		expected = f.Size
	}

	staged := r.staging.file(index, naming.Extension(f.FileName))
	r.throttle.Reset()
	started := p.now()
	got, err := p.download(ctx, r, remote, staged, expected, func(cur, total uint64) {
		p.report(ctx, r, cur, total, started, "📥 Downloading "+label)
	})
	if err != nil {
		r.staging.discard(staged)
		var inc *IncompleteTransferError
		if errors.As(err, &inc) {
			inc.File = name
			return 0, inc
		}
		return 0, p.stepError(r, "download", err)
	}
	defer r.staging.discard(staged)

	if !r.alive() {
		return 0, errCancelled
	}

	r.throttle.Reset()
	started = p.now()
	up := Upload{ChatID: r.chatID, FileName: name, Path: staged, Caption: name}
	onProgress := func(cur, total uint64) {
		p.report(ctx, r, cur, total, started, "📤 Uploading "+label)
	}
	send := func(u Upload) func(ctx context.Context) error {
		return func(ctx context.Context) error {
			return p.withRateLimit(ctx, "upload", func(ctx context.Context) error {
				return p.transport.Upload(ctx, u, onProgress)
			})
		}
	}

	attempts := []attempt{{name: "plain", run: send(up)}}
	if thumb != "" {
		withThumb := up
		withThumb.Thumbnail = thumb
		attempts = append([]attempt{{name: "with_thumbnail", run: send(withThumb)}}, attempts...)
	}

	used, errs := firstSuccess(ctx, attempts...)
	if used == "" {
		if !r.alive() {
			return 0, errCancelled
		}
		if thumb != "" && len(errs) == 2 {
			return 0, &AttachmentError{WithThumbnail: errs[0], WithoutThumbnail: errs[1]}
		}
		return 0, p.stepError(r, "upload", errors.Join(errs...))
	}
	if len(errs) > 0 {
		log.Warn().Err(errs[0]).Int64("user_id", r.uid).Str("name", name).Msg("upload with thumbnail failed, sent without")
	}
	r.throttle.Reset()
	return got, nil
}

func (p *Processor) stepError(r *run, step string, err error) error {
	if !r.alive() {
		return errCancelled
	}
	return &FatalError{Step: step, Err: err}
}

func (p *Processor) report(ctx context.Context, r *run, cur, total uint64, started time.Time, label string) {
	if err := p.reporter.Report(ctx, r.handle, cur, total, started, label, r.throttle); err != nil {
		log.Debug().Err(err).Int64("user_id", r.uid).Msg("progress report failed")
	}
}

// download writes src to <dst>.part and renames it to dst only once the size check passes.
func (p *Processor) download(ctx context.Context, r *run, src Remote, dst string, expected uint64, onProgress ProgressFunc) (uint64, error) {
	var got uint64
	err := p.withRateLimit(ctx, "download", func(ctx context.Context) error {
		f, err := r.staging.create(dst)
		if err != nil {
			return err
		}
		n, err := p.transport.Download(ctx, src, f, onProgress)
		if cerr := f.Close(); err == nil && cerr != nil {
			err = cerr
		}
		got = n
		return err
	})
	if err != nil {
		return got, err
	}

	if expected > 0 && float64(got) < float64(expected)*p.cfg.MinSizeRatio {
		return got, &IncompleteTransferError{Got: got, Expected: expected}
	}
	if err := r.staging.commit(dst); err != nil {
		return got, &IncompleteTransferError{Got: got, Expected: expected}
	}
	return got, nil
}

// run is the state of one Process call.
type run struct {
	p        *Processor
	ctx      context.Context
	uid      int64
	chatID   int64
	id       string
	start    time.Time
	staging  staging
	handle   progress.Handle
	throttle *progress.ThrottleState
	summary  Summary

	once sync.Once
}

func (p *Processor) newRun(ctx context.Context, uid, chatID int64, total int) *run {
	id := p.runID()
	p.metrics.BatchStarted()
	return &run{
		p:        p,
		ctx:      ctx,
		uid:      uid,
		chatID:   chatID,
		id:       id,
		start:    p.now(),
		staging:  newStaging(p.cfg.StagingDir, uid, id),
		throttle: &progress.ThrottleState{},
		summary:  Summary{RunID: id, Total: total},
	}
}

// alive is the cooperative cancellation check between pipeline steps.
func (r *run) alive() bool {
	return r.ctx.Err() == nil && r.p.registry.IsActive(r.uid)
}

// cleanup runs on every exit path. Only the first call does anything.
func (r *run) cleanup(outcome string) {
	r.once.Do(func() {
		owned := r.p.registry.End(r.uid, r.ctx)
		r.throttle.Reset()
		if n := r.staging.purge(); n > 0 {
			log.Debug().Int64("user_id", r.uid).Int("removed", n).Msg("purged staging files")
		}

		// A replaced or removed entry means /start, /stop or the reaper already
		// reset the durable batch, possibly with new files in it.
		if owned {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := r.p.files.ResetSession(ctx, r.uid); err != nil {
				log.Warn().Err(err).Int64("user_id", r.uid).Msg("failed to reset session")
			}
		}
		r.p.metrics.BatchFinished(outcome, r.p.now().Sub(r.start))
	})
}

// String is used in logs.
func (s Summary) String() string {
	return fmt.Sprintf("%d/%d files, %d bytes, %s", s.Completed, s.Total, s.Bytes, s.Elapsed.Round(time.Second))
}
