package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/BatmanBruc/bat-bot-renamer/internal/batch"
	"github.com/BatmanBruc/bat-bot-renamer/internal/messages"
)

type Runner interface {
	Process(ctx context.Context, uid, chatID int64) (batch.Summary, error)
}

type Notifier interface {
	Notify(ctx context.Context, chatID int64, text string) error
}

type Scheduler struct {
	runner   Runner
	notifier Notifier
	workers  int
	slots    *semaphore.Weighted
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	mu       sync.Mutex
	running  bool

	inFlight   map[int64]*inFlightEntry
	inFlightMu sync.RWMutex
}

type inFlightEntry struct {
	chatID   int64
	queuedAt time.Time
	started  bool
	// cancel aborts the wait for a worker slot.
	cancel context.CancelFunc
}

type Config struct {
	Workers int
}

func NewScheduler(runner Runner, notifier Notifier, config Config) *Scheduler {
	if config.Workers <= 0 {
		config.Workers = 3
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		runner:   runner,
		notifier: notifier,
		workers:  config.Workers,
		slots:    semaphore.NewWeighted(int64(config.Workers)),
		ctx:      ctx,
		cancel:   cancel,
		inFlight: make(map[int64]*inFlightEntry),
	}
}

func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	log.Info().Int("workers", s.workers).Msg("scheduler started")
}

// Stop cancels every running batch and waits for their cleanup to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	log.Info().Msg("stopping scheduler")
	s.cancel()
	s.wg.Wait()
	log.Info().Msg("scheduler stopped")
}

// EnqueueBatch starts the user's batch in the background. It returns false
// when the scheduler is stopped or the user already has a batch in flight.
func (s *Scheduler) EnqueueBatch(uid, chatID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return false
	}

	s.inFlightMu.Lock()
	if _, exists := s.inFlight[uid]; exists {
		s.inFlightMu.Unlock()
		return false
	}
	waitCtx, cancel := context.WithCancel(s.ctx)
	e := &inFlightEntry{chatID: chatID, queuedAt: time.Now(), cancel: cancel}
	s.inFlight[uid] = e
	s.inFlightMu.Unlock()

	s.wg.Add(1)
	go s.run(uid, e, waitCtx)
	return true
}

func (s *Scheduler) InFlight(uid int64) bool {
	s.inFlightMu.RLock()
	defer s.inFlightMu.RUnlock()
	_, ok := s.inFlight[uid]
	return ok
}

// CancelQueued drops a batch still waiting for a worker slot. It returns false
// when the user has no batch queued or it has already started.
func (s *Scheduler) CancelQueued(uid int64) bool {
	s.inFlightMu.Lock()
	defer s.inFlightMu.Unlock()
	e, ok := s.inFlight[uid]
	if !ok || e.started {
		return false
	}
	e.cancel()
	delete(s.inFlight, uid)
	return true
}

// claim marks e as started unless it was cancelled while queued.
func (s *Scheduler) claim(uid int64, e *inFlightEntry, waitCtx context.Context) bool {
	s.inFlightMu.Lock()
	defer s.inFlightMu.Unlock()
	if waitCtx.Err() != nil || s.inFlight[uid] != e {
		return false
	}
	e.started = true
	return true
}

func (s *Scheduler) run(uid int64, e *inFlightEntry, waitCtx context.Context) {
	defer s.wg.Done()
	defer func() {
		s.inFlightMu.Lock()
		if s.inFlight[uid] == e {
			delete(s.inFlight, uid)
		}
		s.inFlightMu.Unlock()
		e.cancel()
	}()

	if err := s.slots.Acquire(waitCtx, 1); err != nil {
		if s.ctx.Err() == nil {
			log.Info().Int64("user_id", uid).Dur("queued_for", time.Since(e.queuedAt)).Msg("queued batch cancelled")
		}
		return
	}
	defer s.slots.Release(1)

	if !s.claim(uid, e, waitCtx) {
		log.Info().Int64("user_id", uid).Msg("queued batch cancelled")
		return
	}

	summary, err := s.runner.Process(s.ctx, uid, e.chatID)
	if err != nil {
		log.Error().Err(err).Int64("user_id", uid).Msg("batch did not complete")
		if text, ok := userMessage(err); ok {
			s.notify(e.chatID, text)
		}
		return
	}
	log.Info().Int64("user_id", uid).Str("summary", summary.String()).Msg("batch processed")
}

func (s *Scheduler) notify(chatID int64, text string) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := s.notifier.Notify(ctx, chatID, text); err != nil {
		log.Warn().Err(err).Int64("chat_id", chatID).Msg("failed to notify user")
	}
}

// userMessage maps errors that happened before the status message existed to
// a reply. Failures after that point are already shown in the status message.
func userMessage(err error) (string, bool) {
	var pre *batch.PreconditionError
	if errors.As(err, &pre) {
		switch pre.Reason {
		case batch.ReasonNoFiles:
			return messages.NoFiles(), true
		case batch.ReasonNameMismatch:
			return messages.NameMismatch(pre.Names, pre.Files), true
		case batch.ReasonMissingConfig:
			return messages.MissingConfig(), true
		case batch.ReasonBusy:
			return messages.BatchAlreadyRunning(), true
		}
		return messages.ErrorDefault(), true
	}

	var fatal *batch.FatalError
	if errors.As(err, &fatal) {
		switch fatal.Step {
		case "load queue", "load rename config", "begin", "status message":
			return messages.ErrorDefault(), true
		}
	}
	return "", false
}
