package ingest

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	SourceSocket = "socket"

	// DefaultSocketPath is where dapreceiver expects the core.
	DefaultSocketPath = "/tmp/dapnet_dau.s"

	DefaultSocketIdleTimeout = 2 * time.Second

	socketAck = "+\r\n"
)

var ErrSocketPathRequired = errors.New("ingest: socket path required")

type SocketConfig struct {
	Path        string
	IdleTimeout time.Duration
}

// SocketEndpoint serves one Unix-socket client at a time and answers every
// received line with "+".
type SocketEndpoint struct {
	cfg SocketConfig
	sub *Submitter

	mu   sync.Mutex
	ln   net.Listener
	conn net.Conn
}

func NewSocketEndpoint(cfg SocketConfig, sub *Submitter) *SocketEndpoint {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultSocketIdleTimeout
	}
	return &SocketEndpoint{cfg: cfg, sub: sub}
}

// Listen removes a stale socket file and binds the path.
func (e *SocketEndpoint) Listen() error {
	path := strings.TrimSpace(e.cfg.Path)
	if path == "" {
		return ErrSocketPathRequired
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	ln, err := net.Listen("unix", path)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.ln = ln
	e.mu.Unlock()
	log.Info().Str("path", path).Msg("ingest.socket ready")
	return nil
}

// Serve accepts clients until ctx is done. Listen is called if needed.
func (e *SocketEndpoint) Serve(ctx context.Context) error {
	e.mu.Lock()
	ln := e.ln
	e.mu.Unlock()
	if ln == nil {
		if err := e.Listen(); err != nil {
			return err
		}
		e.mu.Lock()
		ln = e.ln
		e.mu.Unlock()
	}
	defer e.cleanup()

	stop := context.AfterFunc(ctx, e.close)
	defer stop()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		e.mu.Lock()
		e.conn = conn
		e.mu.Unlock()
		e.handleConn(ctx, conn)
		e.mu.Lock()
		e.conn = nil
		e.mu.Unlock()
	}
}

func (e *SocketEndpoint) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	log.Debug().Msg("ingest.socket client connected")
	reader := bufio.NewReader(conn)
	for {
		_ = conn.SetReadDeadline(time.Now().Add(e.cfg.IdleTimeout))
		line, err := reader.ReadString('\n')
		if strings.TrimSpace(line) != "" {
			_, _ = e.sub.Submit(SourceSocket, line)
			if _, werr := conn.Write([]byte(socketAck)); werr != nil {
				if ctx.Err() == nil {
					log.Warn().Err(werr).Msg("ingest.socket write ack")
				}
				return
			}
		}
		if err != nil {
			if ctx.Err() == nil && !isQuietClose(err) {
				log.Debug().Err(err).Msg("ingest.socket client closed")
			}
			return
		}
	}
}

func (e *SocketEndpoint) close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.conn != nil {
		_ = e.conn.Close()
	}
	if e.ln != nil {
		_ = e.ln.Close()
	}
}

func (e *SocketEndpoint) cleanup() {
	e.close()
	e.mu.Lock()
	e.ln = nil
	e.mu.Unlock()
	_ = os.Remove(e.cfg.Path)
}

func isQuietClose(err error) bool {
	return errors.Is(err, net.ErrClosed) || errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, io.EOF)
}
