package ingest

import (
	"bufio"
	"context"
	"errors"
	"io/fs"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sys/unix"
)

const (
	SourcePipe = "pipe"

	DefaultPipePath = "./dapnet_dau.fifo"

	pipeMode      = 0o660
	pipePokeEvery = 100 * time.Millisecond
	pipeRetry     = time.Second
)

var (
	ErrPipePathRequired = errors.New("ingest: pipe path required")
	ErrNotAPipe         = errors.New("ingest: path exists and is not a named pipe")
)

// PipeEndpoint reads submission lines from a named pipe. Every open/EOF cycle
// is one writer session; nothing is written back.
type PipeEndpoint struct {
	path string
	sub  *Submitter

	mu   sync.Mutex
	file *os.File
}

func NewPipeEndpoint(path string, sub *Submitter) *PipeEndpoint {
	return &PipeEndpoint{path: path, sub: sub}
}

// Ensure creates the FIFO if absent. A regular file at the path is replaced.
func (p *PipeEndpoint) Ensure() error {
	path := strings.TrimSpace(p.path)
	if path == "" {
		return ErrPipePathRequired
	}
	info, err := os.Lstat(path)
	switch {
	case err == nil && info.Mode()&fs.ModeNamedPipe != 0:
		log.Debug().Str("path", path).Msg("ingest.pipe named pipe already there")
		return nil
	case err == nil && info.IsDir():
		return ErrNotAPipe
	case err == nil:
		if err := os.Remove(path); err != nil {
			return err
		}
	case !errors.Is(err, fs.ErrNotExist):
		return err
	}
	if err := unix.Mkfifo(path, pipeMode); err != nil && !errors.Is(err, unix.EEXIST) {
		return err
	}
	log.Info().Str("path", path).Msg("ingest.pipe ready")
	return nil
}

// Serve reads writer sessions until ctx is done, then unlinks the pipe.
func (p *PipeEndpoint) Serve(ctx context.Context) error {
	if err := p.Ensure(); err != nil {
		return err
	}
	defer func() {
		if err := os.Remove(p.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			log.Warn().Str("path", p.path).Err(err).Msg("ingest.pipe unlink")
		}
	}()

	done := make(chan struct{})
	defer close(done)
	go p.interruptOnDone(ctx, done)

	for ctx.Err() == nil {
		// blocks until a writer opens the pipe
		f, err := os.OpenFile(p.path, os.O_RDONLY, 0)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Warn().Str("path", p.path).Err(err).Msg("ingest.pipe open")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(pipeRetry):
			}
			continue
		}
		p.setFile(f)
		if ctx.Err() == nil {
			p.readSession(ctx, f)
		}
		p.setFile(nil)
		_ = f.Close()
		log.Debug().Str("path", p.path).Msg("ingest.pipe writer closed")
	}
	return nil
}

func (p *PipeEndpoint) readSession(ctx context.Context, f *os.File) {
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		_, _ = p.sub.Submit(SourcePipe, line)
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		log.Warn().Str("path", p.path).Err(err).Msg("ingest.pipe read")
	}
}

// interruptOnDone releases a reader blocked in open or read once ctx is done:
// the open file is closed and a non-blocking writer is opened and dropped
// until Serve returns.
func (p *PipeEndpoint) interruptOnDone(ctx context.Context, done <-chan struct{}) {
	select {
	case <-done:
		return
	case <-ctx.Done():
	}
	ticker := time.NewTicker(pipePokeEvery)
	defer ticker.Stop()
	for {
		p.mu.Lock()
		if p.file != nil {
			_ = p.file.Close()
		}
		p.mu.Unlock()
		if fd, err := unix.Open(p.path, unix.O_WRONLY|unix.O_NONBLOCK, 0); err == nil {
			_ = unix.Close(fd)
		}
		select {
		case <-done:
			return
		case <-ticker.C:
		}
	}
}

func (p *PipeEndpoint) setFile(f *os.File) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.file = f
}
