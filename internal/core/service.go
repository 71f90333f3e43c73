package core

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/danmuck/dapcore/internal/admin"
	"github.com/danmuck/dapcore/internal/auth"
	"github.com/danmuck/dapcore/internal/dedup"
	"github.com/danmuck/dapcore/internal/ingest"
	"github.com/danmuck/dapcore/internal/observability"
	"github.com/danmuck/dapcore/internal/protocol/session"
	"github.com/danmuck/dapcore/internal/queue"
	"github.com/rs/zerolog/log"
)

var ErrBindExhausted = errors.New("core: bind retries exhausted")

// ServiceConfig configures the core server and its local front ends.
type ServiceConfig struct {
	ListenAddr string
	// Callsign is sent in beacons; empty uses the transmitter's login callsign.
	Callsign      string
	Slots         string
	SendTimeUTC   bool
	SendTimeLocal bool
	BlockInterval time.Duration

	UseSocket         bool
	SocketPath        string
	SocketIdleTimeout time.Duration
	UsePipe           bool
	PipePath          string

	AdminListenAddr  string
	AdminCorsOrigins []string
	// AdminToken guards POST /messages; empty leaves it open.
	AdminToken string

	// JoinTimeout bounds the wait for each background activity at shutdown.
	JoinTimeout time.Duration
	Session     session.Config

	Location *time.Location
	Now      func() time.Time
}

// DefaultServiceConfig mirrors a single-transmitter DAPNET setup.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		ListenAddr:        "127.0.0.1:43434",
		Callsign:          "do6uk-dau",
		Slots:             "2389D",
		SendTimeUTC:       true,
		SendTimeLocal:     true,
		BlockInterval:     dedup.DefaultBlockInterval,
		UseSocket:         true,
		SocketPath:        ingest.DefaultSocketPath,
		SocketIdleTimeout: ingest.DefaultSocketIdleTimeout,
		UsePipe:           true,
		PipePath:          ingest.DefaultPipePath,
		AdminListenAddr:   "",
		JoinTimeout:       5 * time.Second,
		Session:           session.DefaultConfig(),
	}
}

// Service runs the transmitter listener, one link session at a time.
type Service struct {
	cfg ServiceConfig

	queue     *queue.Queue
	cache     *dedup.Cache
	submitter *ingest.Submitter

	mu     sync.RWMutex
	active *LinkSession

	sessionsServed atomic.Uint64
}

func NewService() *Service {
	return NewServiceWithConfig(DefaultServiceConfig())
}

func NewServiceWithConfig(cfg ServiceConfig) *Service {
	def := DefaultServiceConfig()
	if strings.TrimSpace(cfg.ListenAddr) == "" {
		cfg.ListenAddr = def.ListenAddr
	}
	if strings.TrimSpace(cfg.Slots) == "" {
		cfg.Slots = def.Slots
	}
	if cfg.JoinTimeout <= 0 {
		cfg.JoinTimeout = def.JoinTimeout
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	cfg.Session = cfg.Session.WithDefaults()

	q := queue.New()
	cache := dedup.NewWithClock(cfg.BlockInterval, cfg.Now)
	return &Service{
		cfg:       cfg,
		queue:     q,
		cache:     cache,
		submitter: ingest.NewSubmitter(q, cache),
	}
}

func (s *Service) Queue() *queue.Queue {
	return s.queue
}

func (s *Service) Cache() *dedup.Cache {
	return s.cache
}

func (s *Service) Submitter() *ingest.Submitter {
	return s.submitter
}

// Run binds every endpoint and blocks until SIGINT/SIGTERM.
func (s *Service) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return s.RunContext(ctx)
}

// RunContext is Run with an explicit lifetime. Local endpoints accept
// submissions while the transmitter port is still being bound.
func (s *Service) RunContext(ctx context.Context) error {
	bgCtx, cancelBg := context.WithCancel(ctx)
	defer cancelBg()
	background := s.startBackground(bgCtx)
	stop := func() {
		cancelBg()
		s.queue.Clear()
		for _, bg := range background {
			s.join(bg)
		}
	}

	ln, err := s.Listen(ctx)
	if err != nil {
		stop()
		return err
	}
	log.Info().Str("addr", ln.Addr().String()).Msg("core.Service listening")

	serveErr := s.Serve(ctx, ln)
	log.Info().Msg("core.Service request shutdown")
	stop()
	log.Info().Msg("core.Service cleanly closed")
	return serveErr
}

// Listen binds the transmitter endpoint, retrying address-in-use with a
// fixed delay up to Session.BindMaxAttempts retries.
func (s *Service) Listen(ctx context.Context) (net.Listener, error) {
	var lc net.ListenConfig
	for attempt := 1; ; attempt++ {
		ln, err := lc.Listen(ctx, "tcp", s.cfg.ListenAddr)
		if err == nil {
			return ln, nil
		}
		if !errors.Is(err, syscall.EADDRINUSE) {
			return nil, err
		}
		if attempt > s.cfg.Session.BindMaxAttempts {
			return nil, fmt.Errorf("%w: %s after %d attempts: %w", ErrBindExhausted, s.cfg.ListenAddr, attempt, err)
		}
		delay := session.BindRetryDelay(s.cfg.Session.Bind, attempt)
		log.Warn().Int("attempt", attempt).Dur("retry_in", delay).Str("addr", s.cfg.ListenAddr).Msg("core.Service address in use - retry")
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
}

// Serve accepts transmitter connections sequentially on ln until ctx is done.
func (s *Service) Serve(ctx context.Context, ln net.Listener) error {
	defer ln.Close()
	go func() {
		<-ctx.Done()
		_ = ln.Close()
		s.closeActive()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		s.handleConn(ctx, conn)
	}
}

func (s *Service) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	link := newLinkSession(conn, linkDeps{
		session: s.cfg.Session,
		schedule: ScheduleConfig{
			Callsign:       s.cfg.Callsign,
			SendTimeUTC:    s.cfg.SendTimeUTC,
			SendTimeLocal:  s.cfg.SendTimeLocal,
			KeepaliveTicks: s.cfg.Session.KeepaliveTicks(),
			BeaconEvery:    s.cfg.Session.BeaconEvery,
			Location:       s.cfg.Location,
		},
		slots:   s.cfg.Slots,
		queue:   s.queue,
		sweeper: s.cache,
		now:     s.cfg.Now,
	})
	s.setActive(link)
	defer s.setActive(nil)
	served := s.sessionsServed.Add(1)
	log.Info().Str("remote", link.Remote()).Uint64("session", served).Msg("core.Service connected")

	err := link.Run(ctx)
	switch {
	case ctx.Err() != nil:
	case errors.Is(err, session.ErrInvalidLogin):
		observability.RecordSession("invalid_login")
		log.Warn().Str("remote", link.Remote()).Err(err).Msg("core.Service login rejected")
	case err != nil:
		observability.RecordSession("handshake_failed")
		log.Warn().Str("remote", link.Remote()).Err(err).Msg("core.Service session ended")
	}
	log.Info().Str("remote", link.Remote()).Msg("core.Service disconnected")
}

func (s *Service) setActive(link *LinkSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = link
}

func (s *Service) closeActive() {
	s.mu.RLock()
	link := s.active
	s.mu.RUnlock()
	if link != nil {
		link.close()
	}
}

// Status reports the live session and buffer state.
func (s *Service) Status() admin.Status {
	st := admin.Status{
		State:          "idle",
		QueueDepth:     s.queue.Len(),
		DedupEntries:   s.cache.Len(),
		BlockInterval:  s.cache.BlockInterval().String(),
		SessionsServed: s.sessionsServed.Load(),
	}
	s.mu.RLock()
	link := s.active
	s.mu.RUnlock()
	if link == nil {
		return st
	}
	login := link.Login()
	st.State = link.State().String()
	st.Online = link.Online()
	st.Remote = link.Remote()
	st.DeviceType = login.DeviceType
	st.Version = login.Version
	st.Callsign = login.Callsign
	return st
}

type backgroundTask struct {
	name string
	done chan struct{}
}

func (s *Service) startBackground(ctx context.Context) []backgroundTask {
	var tasks []backgroundTask
	spawn := func(name string, fn func(context.Context) error) {
		task := backgroundTask{name: name, done: make(chan struct{})}
		tasks = append(tasks, task)
		go func() {
			defer close(task.done)
			if err := fn(ctx); err != nil && ctx.Err() == nil {
				log.Error().Str("task", name).Err(err).Msg("core.Service background task failed")
			}
		}()
	}

	if s.cfg.UseSocket {
		sock := ingest.NewSocketEndpoint(ingest.SocketConfig{
			Path:        s.cfg.SocketPath,
			IdleTimeout: s.cfg.SocketIdleTimeout,
		}, s.submitter)
		spawn("socket", sock.Serve)
	}
	if s.cfg.UsePipe {
		pipe := ingest.NewPipeEndpoint(s.cfg.PipePath, s.submitter)
		spawn("pipe", pipe.Serve)
	}
	if addr := strings.TrimSpace(s.cfg.AdminListenAddr); addr != "" {
		srv := admin.New(addr, s, s.submitter, s.cfg.AdminCorsOrigins)
		if token := strings.TrimSpace(s.cfg.AdminToken); token != "" {
			srv.RequireToken(auth.StaticToken{Token: token})
		}
		spawn("admin", srv.Serve)
	}
	return tasks
}

// join waits for one background task; a timeout is logged, not fatal.
func (s *Service) join(task backgroundTask) {
	t := time.NewTimer(s.cfg.JoinTimeout)
	defer t.Stop()
	select {
	case <-task.done:
		log.Debug().Str("task", task.name).Msg("core.Service task closed")
	case <-t.C:
		log.Warn().Str("task", task.name).Dur("timeout", s.cfg.JoinTimeout).Msg("core.Service task did not stop in time")
	}
}
