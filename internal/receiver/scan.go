package receiver

import (
	"bufio"
	"context"
	"io"

	"github.com/rs/zerolog/log"
)

// Scanner filters decoder output into submission lines.
type Scanner struct {
	blacklist map[uint32]struct{}
}

func NewScanner(blacklist []uint32) *Scanner {
	bl := make(map[uint32]struct{}, len(blacklist))
	for _, ric := range blacklist {
		bl[ric] = struct{}{}
	}
	return &Scanner{blacklist: bl}
}

// Accept converts one decoder line. ok is false for unparsable lines and
// blacklisted RICs.
func (s *Scanner) Accept(line string) (string, bool) {
	d, err := ParseDecoderLine(line)
	if err != nil {
		log.Debug().Str("line", line).Msg("receiver.scan received invalid message")
		return "", false
	}
	log.Info().
		Uint32("ric", d.RIC).
		Uint8("function", d.Function).
		Str("kind", d.Kind).
		Str("text", d.Text).
		Msg("receiver.scan MSG")
	if _, blocked := s.blacklist[d.RIC]; blocked {
		log.Info().Uint32("ric", d.RIC).Msg("receiver.scan message dropped - address blacklisted")
		return "", false
	}
	return d.Submission(), true
}

// Run reads r line by line and sends accepted submissions to out. out is
// closed when r is exhausted or ctx is done.
func (s *Scanner) Run(ctx context.Context, r io.Reader, out chan<- string) error {
	defer close(out)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line, ok := s.Accept(sc.Text())
		if !ok {
			continue
		}
		select {
		case out <- line:
		case <-ctx.Done():
			return nil
		}
	}
	return sc.Err()
}
