package core

import (
	"context"
	"time"

	"github.com/danmuck/dapcore/internal/observability"
	"github.com/danmuck/dapcore/internal/protocol/frame"
	"github.com/danmuck/dapcore/internal/protocol/session"
	"github.com/rs/zerolog/log"
)

// Enqueuer receives scheduler frames.
type Enqueuer interface {
	Push(frame.Frame)
}

// Sweeper evicts expired dedup entries.
type Sweeper interface {
	Sweep(now time.Time) int
}

// ScheduleConfig selects the periodic jobs of one session.
type ScheduleConfig struct {
	Callsign       string
	SendTimeUTC    bool
	SendTimeLocal  bool
	KeepaliveTicks int
	BeaconEvery    int
	Location       *time.Location
}

// Scheduler generates keepalive, time broadcast and beacon frames. It only
// enqueues; the drain worker owns the link.
type Scheduler struct {
	cfg     ScheduleConfig
	queue   Enqueuer
	sweeper Sweeper

	ticks      int
	lastMinute int
	lastBeacon int64
}

// NewScheduler starts minute and beacon tracking at start; the initial beacon
// is sent by the session, so the next one is due BeaconEvery minutes later.
func NewScheduler(cfg ScheduleConfig, q Enqueuer, sweeper Sweeper, start time.Time) *Scheduler {
	if cfg.KeepaliveTicks <= 0 {
		cfg.KeepaliveTicks = session.DefaultConfig().KeepaliveTicks()
	}
	if cfg.BeaconEvery <= 0 {
		cfg.BeaconEvery = session.DefaultConfig().BeaconEvery
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &Scheduler{
		cfg:        cfg,
		queue:      q,
		sweeper:    sweeper,
		lastMinute: start.In(cfg.Location).Minute(),
		lastBeacon: unixMinute(start),
	}
}

// Run ticks every period until ctx is done or offline is closed.
func (s *Scheduler) Run(ctx context.Context, period time.Duration, now func() time.Time, offline <-chan struct{}) error {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-offline:
			return nil
		case <-ticker.C:
			s.Tick(now())
		}
	}
}

// Tick runs one scheduler step at now.
func (s *Scheduler) Tick(now time.Time) {
	s.ticks++
	if s.ticks >= s.cfg.KeepaliveTicks {
		s.ticks = 0
		s.push("keepalive", session.SyncAck())
	}

	minute := now.In(s.cfg.Location).Minute()
	if minute != s.lastMinute {
		s.lastMinute = minute
		s.broadcastTime(now, minute)
		if s.sweeper != nil {
			removed := s.sweeper.Sweep(now)
			observability.RecordSwept(removed)
			log.Debug().Int("removed", removed).Msg("core.Scheduler clean history")
		}
	}

	if m := unixMinute(now); m-s.lastBeacon >= int64(s.cfg.BeaconEvery) {
		s.lastBeacon = m
		log.Info().Str("callsign", s.cfg.Callsign).Msg("core.Scheduler beacon")
		s.push("beacon", BeaconFrame(s.cfg.Callsign))
	}
}

func (s *Scheduler) broadcastTime(now time.Time, minute int) {
	if minute%2 == 0 {
		if !s.cfg.SendTimeUTC {
			return
		}
		for _, f := range UTCTimeFrames(now) {
			s.push("time_utc", f)
		}
		return
	}
	if !s.cfg.SendTimeLocal {
		return
	}
	for _, f := range LocalTimeFrames(now, s.cfg.Location) {
		s.push("time_local", f)
	}
}

func (s *Scheduler) push(job string, f frame.Frame) {
	log.Debug().Str("job", job).Str("frame", f.String()).Msg("core.Scheduler enqueue")
	s.queue.Push(f)
	observability.RecordScheduled(job)
}

func unixMinute(t time.Time) int64 {
	return t.Unix() / 60
}
