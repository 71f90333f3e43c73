package receiver

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// ForwarderConfig addresses the core's submission socket.
type ForwarderConfig struct {
	SocketPath string
	RetryDelay time.Duration
	AckTimeout time.Duration
}

// Forwarder delivers submission lines over the core's Unix socket. A
// connection is held only while lines are pending.
type Forwarder struct {
	cfg    ForwarderConfig
	dialer net.Dialer
}

type socketLink struct {
	conn net.Conn
	r    *bufio.Reader
}

const deliverAttempts = 2

func NewForwarder(cfg ForwarderConfig) *Forwarder {
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 3 * time.Second
	}
	if cfg.AckTimeout <= 0 {
		cfg.AckTimeout = 2 * time.Second
	}
	return &Forwarder{cfg: cfg}
}

// Run forwards lines from in until in is closed and drained or ctx is done.
func (f *Forwarder) Run(ctx context.Context, in <-chan string) error {
	var link *socketLink
	defer func() { f.hangup(link) }()

	for {
		if ctx.Err() != nil {
			return nil
		}
		var (
			line string
			ok   bool
		)
		select {
		case line, ok = <-in:
		default:
			// queue drained: release the socket until the next line
			if link != nil {
				f.hangup(link)
				link = nil
			}
			select {
			case <-ctx.Done():
				return nil
			case line, ok = <-in:
			}
		}
		if !ok {
			return nil
		}
		link = f.forward(ctx, link, line)
	}
}

// forward delivers one line, reconnecting once on a broken link. The line is
// dropped after a second failure.
func (f *Forwarder) forward(ctx context.Context, link *socketLink, line string) *socketLink {
	for attempt := 1; attempt <= deliverAttempts; attempt++ {
		if link == nil {
			var err error
			if link, err = f.connect(ctx); err != nil {
				return nil
			}
		}
		err := f.exchange(link, line)
		if err == nil {
			return link
		}
		log.Warn().Err(err).Int("attempt", attempt).Msg("receiver.forward connection lost - retry")
		f.hangup(link)
		link = nil
	}
	log.Warn().Str("line", line).Msg("receiver.forward message dropped")
	return nil
}

// connect dials until the socket accepts or ctx is done.
func (f *Forwarder) connect(ctx context.Context) (*socketLink, error) {
	for {
		conn, err := f.dialer.DialContext(ctx, "unix", f.cfg.SocketPath)
		if err == nil {
			log.Debug().Str("path", f.cfg.SocketPath).Msg("receiver.forward connected")
			return &socketLink{conn: conn, r: bufio.NewReader(conn)}, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Warn().Str("path", f.cfg.SocketPath).Err(err).Dur("retry_in", f.cfg.RetryDelay).Msg("receiver.forward not connected - retry")
		t := time.NewTimer(f.cfg.RetryDelay)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
}

// exchange writes one line and reads its receipt. A reply other than "+" is
// logged; only transport failures are errors.
func (f *Forwarder) exchange(link *socketLink, line string) error {
	deadline := time.Now().Add(f.cfg.AckTimeout)
	_ = link.conn.SetDeadline(deadline)
	defer link.conn.SetDeadline(time.Time{})

	log.Debug().Str("line", line).Msg("receiver.forward MSG")
	if _, err := io.WriteString(link.conn, line+"\n"); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	reply, err := link.r.ReadString('\n')
	if err != nil && reply == "" {
		return fmt.Errorf("read ack: %w", err)
	}
	if strings.HasPrefix(reply, "+") {
		log.Debug().Msg("receiver.forward MSG ACK")
		return nil
	}
	log.Warn().Str("reply", strings.TrimSpace(reply)).Msg("receiver.forward received invalid response")
	return nil
}

func (f *Forwarder) hangup(link *socketLink) {
	if link == nil {
		return
	}
	_ = link.conn.Close()
	log.Debug().Msg("receiver.forward closed")
}
