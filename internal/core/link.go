package core

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/dapcore/internal/observability"
	"github.com/danmuck/dapcore/internal/protocol/frame"
	"github.com/danmuck/dapcore/internal/protocol/session"
	"github.com/danmuck/dapcore/internal/queue"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

var ErrLinkOffline = errors.New("core: link offline")

// linkDeps are the shared components injected into every link session.
type linkDeps struct {
	session  session.Config
	schedule ScheduleConfig
	slots    string
	queue    *queue.Queue
	sweeper  Sweeper
	now      func() time.Time
}

// LinkSession owns one accepted transmitter connection.
type LinkSession struct {
	deps   linkDeps
	conn   net.Conn
	reader *bufio.Reader
	remote string

	seq session.Sequence

	mu    sync.RWMutex
	login session.Login
	state session.State

	online      atomic.Bool
	offline     chan struct{}
	offlineOnce sync.Once
}

func newLinkSession(conn net.Conn, deps linkDeps) *LinkSession {
	if deps.now == nil {
		deps.now = time.Now
	}
	return &LinkSession{
		deps:    deps,
		conn:    conn,
		reader:  bufio.NewReader(conn),
		remote:  conn.RemoteAddr().String(),
		state:   session.StateAwaitLogin,
		offline: make(chan struct{}),
	}
}

// Run drives the handshake and then the active phase until the link drops or
// ctx is done.
func (l *LinkSession) Run(ctx context.Context) error {
	defer l.setState(session.StateClosed)
	l.goOnline()
	if err := l.handshake(ctx); err != nil {
		l.markOffline()
		return err
	}
	return l.active(ctx)
}

func (l *LinkSession) goOnline() {
	l.seq.Reset()
	l.online.Store(true)
}

// markOffline flips the session offline once; workers observe it via Offline.
func (l *LinkSession) markOffline() {
	l.online.Store(false)
	l.offlineOnce.Do(func() { close(l.offline) })
}

func (l *LinkSession) Online() bool {
	return l.online.Load()
}

// Offline is closed when the session leaves the online state.
func (l *LinkSession) Offline() <-chan struct{} {
	return l.offline
}

func (l *LinkSession) State() session.State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

func (l *LinkSession) Login() session.Login {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.login
}

func (l *LinkSession) Remote() string {
	return l.remote
}

func (l *LinkSession) setState(s session.State) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = s
}

// advance moves to the next handshake state.
func (l *LinkSession) advance() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = l.state.Next()
}

func (l *LinkSession) handshake(ctx context.Context) error {
	cfg := l.deps.session

	l.setState(session.StateAwaitLogin)
	line, err := l.readLine(cfg.HandshakeTimeout)
	if err != nil {
		return fmt.Errorf("%w: read login: %w", ErrLinkOffline, err)
	}
	login, err := session.ParseLogin(line)
	if err != nil {
		return err
	}
	l.mu.Lock()
	l.login = login
	l.mu.Unlock()
	log.Info().
		Str("type", login.DeviceType).
		Str("version", login.Version).
		Str("callsign", login.Callsign).
		Str("remote", l.remote).
		Msg("core.LinkSession login")

	l.advance()
	for round := 0; round < cfg.TimeSyncRounds; round++ {
		log.Debug().Int("round", round).Msg("core.LinkSession time sync")
		if err := l.write(session.TimeSyncProbe(round), 0); err != nil {
			return err
		}
		if err := l.settle(ctx); err != nil {
			return err
		}
		reply, err := l.readLine(cfg.HandshakeTimeout)
		if errors.Is(err, os.ErrDeadlineExceeded) {
			log.Warn().Int("round", round).Msg("core.LinkSession time sync no response")
			continue
		}
		if err != nil {
			return fmt.Errorf("%w: time sync round %d: %w", ErrLinkOffline, round, err)
		}
		if ts, err := session.ParseTimeSyncReply(reply); err != nil {
			log.Warn().Int("round", round).Str("reply", strings.TrimSpace(reply)).Msg("core.LinkSession time sync invalid response")
		} else {
			log.Debug().Int("round", round).Str("a", ts.First).Str("b", ts.Second).Msg("core.LinkSession time sync received")
		}
	}

	l.advance()
	if err := l.requirePositive(ctx, session.SyncAck()); err != nil {
		return err
	}

	l.advance()
	log.Info().Str("slots", l.deps.slots).Msg("core.LinkSession set timeslots")
	if err := l.requirePositive(ctx, session.SlotConfig(l.deps.slots)); err != nil {
		return err
	}
	return nil
}

func (l *LinkSession) requirePositive(ctx context.Context, f frame.Frame) error {
	ack, _, err := l.exchange(ctx, f)
	if err != nil {
		return err
	}
	if ack.Status != frame.AckOK {
		return fmt.Errorf("%w: %s got %q", session.ErrHandshakeRejected, f.Encode(0), ack.Raw)
	}
	return nil
}

func (l *LinkSession) active(ctx context.Context) error {
	l.advance()
	observability.RecordSession("active")

	if dropped := l.deps.queue.Clear(); dropped > 0 {
		log.Info().Int("dropped", dropped).Msg("core.LinkSession cleared stale queue")
	}
	callsign := l.beaconCallsign()
	log.Info().Str("callsign", callsign).Msg("core.LinkSession beacon")
	l.deps.queue.Push(BeaconFrame(callsign))

	schedCfg := l.deps.schedule
	schedCfg.Callsign = callsign
	sched := NewScheduler(schedCfg, l.deps.queue, l.deps.sweeper, l.deps.now())

	sessCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(sessCtx)
	g.Go(func() error {
		return l.drain(gctx)
	})
	g.Go(func() error {
		return sched.Run(gctx, l.deps.session.Tick, l.deps.now, l.offline)
	})

	select {
	case <-ctx.Done():
	case <-l.offline:
	}
	l.markOffline()
	cancel()
	return g.Wait()
}

func (l *LinkSession) beaconCallsign() string {
	if cs := strings.TrimSpace(l.deps.schedule.Callsign); cs != "" {
		return cs
	}
	return l.Login().Callsign
}

// exchange sends one frame and classifies its reply. A MSG frame takes the
// next sequence number. Link failures flip the session offline.
func (l *LinkSession) exchange(ctx context.Context, f frame.Frame) (frame.Ack, uint8, error) {
	var seq uint8
	if f.Kind == frame.KindMsg && !f.Control {
		seq = l.seq.Next()
	}
	if err := l.write(f, seq); err != nil {
		return frame.Ack{}, seq, err
	}
	if err := l.settle(ctx); err != nil {
		return frame.Ack{}, seq, err
	}
	reply, err := l.readLine(l.deps.session.AckTimeout)
	if err != nil {
		l.markOffline()
		return frame.Ack{}, seq, fmt.Errorf("%w: %w", ErrLinkOffline, err)
	}
	return frame.ClassifyAck(f.Kind, reply, seq, l.deps.session.StrictAck), seq, nil
}

func (l *LinkSession) write(f frame.Frame, seq uint8) error {
	if !l.Online() {
		return ErrLinkOffline
	}
	_ = l.conn.SetWriteDeadline(time.Now().Add(l.deps.session.WriteTimeout))
	if err := frame.WriteFrame(l.conn, f, seq); err != nil {
		l.markOffline()
		return fmt.Errorf("%w: write: %w", ErrLinkOffline, err)
	}
	return nil
}

func (l *LinkSession) settle(ctx context.Context) error {
	if l.deps.session.SettleDelay <= 0 {
		return nil
	}
	t := time.NewTimer(l.deps.session.SettleDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		l.markOffline()
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// readLine reads one reply within timeout. Partial data before a timeout is
// returned as the reply; no data at all is a link failure.
func (l *LinkSession) readLine(timeout time.Duration) (string, error) {
	_ = l.conn.SetReadDeadline(time.Now().Add(timeout))
	line, err := l.reader.ReadString('\n')
	_ = l.conn.SetReadDeadline(time.Time{})
	if err != nil {
		if line != "" {
			return line, nil
		}
		return "", err
	}
	return line, nil
}

// close releases the connection; used by the service on shutdown.
func (l *LinkSession) close() {
	l.markOffline()
	_ = l.conn.Close()
}
