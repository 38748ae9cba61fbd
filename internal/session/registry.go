package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/BatmanBruc/bat-bot-renamer/types"
)

var (
	ErrNoSession = errors.New("session: no session")
	ErrBusy      = errors.New("session: batch already running")
)

type entry struct {
	mu sync.Mutex

	mode          types.RenameMode
	manualNames   []string
	autoConfig    *types.RenameConfig
	awaitingThumb bool
	active        bool
	cancel        context.CancelFunc
	runCtx        context.Context
	lastActivity  time.Time
}

// Snapshot is a copy of one entry. Exists is false when the user has no session.
type Snapshot struct {
	Exists            bool
	Mode              types.RenameMode
	ManualNames       []string
	AutoConfig        *types.RenameConfig
	AwaitingThumbnail bool
	Active            bool
	LastActivity      time.Time
}

// Reaped describes one entry removed by Sweep.
type Reaped struct {
	UserID  int64
	IdleFor time.Duration
}

// Registry keeps the runtime side of every user's batch in one place.
// The map lock guards membership only; each entry carries its own mutex.
type Registry struct {
	mu      sync.RWMutex
	entries map[int64]*entry
	now     func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[int64]*entry),
		now:     time.Now,
	}
}

// SetClock replaces the time source. Tests only.
func (r *Registry) SetClock(now func() time.Time) {
	r.now = now
}

func (r *Registry) get(uid int64) *entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries[uid]
}

// StartSession replaces any existing entry with a fresh one. A running batch
// on the old entry is cancelled.
func (r *Registry) StartSession(uid int64) {
	r.mu.Lock()
	old := r.entries[uid]
	r.entries[uid] = &entry{lastActivity: r.now()}
	r.mu.Unlock()

	if old != nil {
		old.mu.Lock()
		if old.cancel != nil {
			old.cancel()
		}
		old.mu.Unlock()
	}
}

// StopSession cancels any running batch and forgets the user. It reports whether an entry existed.
func (r *Registry) StopSession(uid int64) bool {
	r.mu.Lock()
	e, ok := r.entries[uid]
	delete(r.entries, uid)
	r.mu.Unlock()

	if !ok {
		return false
	}
	e.mu.Lock()
	if e.cancel != nil {
		e.cancel()
	}
	e.active = false
	e.mu.Unlock()
	return true
}

// Ensure creates an entry when missing and refreshes its activity time.
func (r *Registry) Ensure(uid int64) bool {
	r.mu.Lock()
	e, ok := r.entries[uid]
	if !ok {
		e = &entry{}
		r.entries[uid] = e
	}
	r.mu.Unlock()

	e.mu.Lock()
	e.lastActivity = r.now()
	e.mu.Unlock()
	return !ok
}

func (r *Registry) with(uid int64, fn func(e *entry)) error {
	e := r.get(uid)
	if e == nil {
		return ErrNoSession
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastActivity = r.now()
	fn(e)
	return nil
}

// SetMode switches naming mode. Switching to manual starts a fresh name list.
func (r *Registry) SetMode(uid int64, mode types.RenameMode) error {
	return r.with(uid, func(e *entry) {
		if mode == types.ModeManual && e.mode != types.ModeManual {
			e.manualNames = nil
		}
		e.mode = mode
	})
}

// AppendManualName adds the next name and returns how many are collected.
func (r *Registry) AppendManualName(uid int64, name string) (int, error) {
	var n int
	err := r.with(uid, func(e *entry) {
		e.manualNames = append(e.manualNames, name)
		n = len(e.manualNames)
	})
	return n, err
}

func (r *Registry) SetAutoConfig(uid int64, cfg types.RenameConfig) error {
	return r.with(uid, func(e *entry) {
		c := cfg
		e.autoConfig = &c
	})
}

func (r *Registry) SetAwaitingThumbnail(uid int64, awaiting bool) error {
	return r.with(uid, func(e *entry) {
		e.awaitingThumb = awaiting
	})
}

func (r *Registry) Touch(uid int64) error {
	return r.with(uid, func(*entry) {})
}

func (r *Registry) IsActive(uid int64) bool {
	e := r.get(uid)
	if e == nil {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// Running reports whether a batch has begun and not yet ended, including one
// that was cancelled and is finishing its current transfer.
func (r *Registry) Running(uid int64) bool {
	e := r.get(uid)
	if e == nil {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancel != nil
}

// Cancel clears the active flag. The running batch stops at its next check
// point; a transfer already in flight is allowed to finish. It returns false
// when nothing was running.
func (r *Registry) Cancel(uid int64) bool {
	e := r.get(uid)
	if e == nil {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.active {
		return false
	}
	e.active = false
	return true
}

// Begin marks the batch active and derives the run context every I/O call of the
// batch must use. StartSession, StopSession and Sweep cancel it. A batch that was
// cancelled but has not reached End still counts as busy.
func (r *Registry) Begin(ctx context.Context, uid int64) (context.Context, error) {
	e := r.get(uid)
	if e == nil {
		return nil, ErrNoSession
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active || e.cancel != nil {
		return nil, ErrBusy
	}
	runCtx, cancel := context.WithCancel(ctx)
	e.active = true
	e.cancel = cancel
	e.runCtx = runCtx
	e.lastActivity = r.now()
	return runCtx, nil
}

// End finishes the batch started by the Begin call that returned runCtx: the
// active flag and batch fields are cleared and the run context released.
// It returns false when the entry is gone, was replaced, or already ended.
func (r *Registry) End(uid int64, runCtx context.Context) bool {
	e := r.get(uid)
	if e == nil || runCtx == nil {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel == nil || e.runCtx != runCtx {
		return false
	}
	e.cancel()
	e.cancel = nil
	e.runCtx = nil
	e.active = false
	e.manualNames = nil
	e.autoConfig = nil
	e.lastActivity = r.now()
	return true
}

func (r *Registry) Snapshot(uid int64) Snapshot {
	e := r.get(uid)
	if e == nil {
		return Snapshot{}
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	s := Snapshot{
		Exists:            true,
		Mode:              e.mode,
		AwaitingThumbnail: e.awaitingThumb,
		Active:            e.active,
		LastActivity:      e.lastActivity,
	}
	if e.manualNames != nil {
		s.ManualNames = append([]string(nil), e.manualNames...)
	}
	if e.autoConfig != nil {
		c := *e.autoConfig
		s.AutoConfig = &c
	}
	return s
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Sweep removes entries idle for longer than idle. Entries with a batch in
// progress are never idle, however long a single transfer takes.
func (r *Registry) Sweep(idle time.Duration) []Reaped {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()
	var reaped []Reaped
	for uid, e := range r.entries {
		e.mu.Lock()
		idleFor := now.Sub(e.lastActivity)
		if e.cancel == nil && idleFor > idle {
			reaped = append(reaped, Reaped{UserID: uid, IdleFor: idleFor})
			delete(r.entries, uid)
		}
		e.mu.Unlock()
	}
	return reaped
}
