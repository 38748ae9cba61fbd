package session

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Resetter clears the durable half of a session.
type Resetter interface {
	ResetSession(ctx context.Context, userID int64) error
}

// Reaper periodically drops sessions nobody has touched for IdleTimeout.
type Reaper struct {
	registry *Registry
	store    Resetter
	idle     time.Duration
	schedule string
	onReap   func(n int)

	cron *cron.Cron
}

func NewReaper(registry *Registry, store Resetter, idle time.Duration, schedule string, onReap func(n int)) *Reaper {
	if schedule == "" {
		schedule = "@every 1m"
	}
	return &Reaper{
		registry: registry,
		store:    store,
		idle:     idle,
		schedule: schedule,
		onReap:   onReap,
		cron:     cron.New(),
	}
}

func (r *Reaper) Start() error {
	if _, err := r.cron.AddFunc(r.schedule, func() { r.RunOnce(context.Background()) }); err != nil {
		return fmt.Errorf("reaper: bad schedule %q: %w", r.schedule, err)
	}
	r.cron.Start()
	log.Info().Str("schedule", r.schedule).Dur("idle_timeout", r.idle).Msg("idle reaper started")
	return nil
}

// Stop waits for a running sweep to finish.
func (r *Reaper) Stop() {
	<-r.cron.Stop().Done()
	log.Info().Msg("idle reaper stopped")
}

// RunOnce sweeps the registry and resets the durable session of every reaped user.
func (r *Reaper) RunOnce(ctx context.Context) int {
	reaped := r.registry.Sweep(r.idle)
	for _, s := range reaped {
		if r.store != nil {
			if err := r.store.ResetSession(ctx, s.UserID); err != nil {
				log.Warn().Err(err).Int64("user_id", s.UserID).Msg("reset of reaped session failed")
			}
		}
		log.Info().
			Int64("user_id", s.UserID).
			Dur("idle_for", s.IdleFor).
			Msg("session reaped")
	}
	if r.onReap != nil && len(reaped) > 0 {
		r.onReap(len(reaped))
	}
	return len(reaped)
}
