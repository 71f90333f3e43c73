package core

import (
	"context"
	"time"

	"github.com/danmuck/dapcore/internal/observability"
	"github.com/danmuck/dapcore/internal/protocol/frame"
	"github.com/rs/zerolog/log"
)

// drain delivers queued frames one at a time under the ack protocol until
// the session goes offline or ctx is done. Unsent frames stay queued and are
// cleared when the next session becomes active.
func (l *LinkSession) drain(ctx context.Context) error {
	log.Debug().Msg("core.drain handler running")
	defer log.Debug().Msg("core.drain handler stopped")

	q := l.deps.queue
	for {
		if ctx.Err() != nil || !l.Online() {
			return nil
		}
		f, ok := q.Pop()
		observability.SetQueueDepth(q.Len())
		if !ok {
			if !l.idle(ctx) {
				return nil
			}
			continue
		}
		l.deliver(ctx, f)
	}
}

// idle waits for the next push or one poll period. It returns false when the
// worker must stop.
func (l *LinkSession) idle(ctx context.Context) bool {
	t := time.NewTimer(l.deps.session.IdlePoll)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-l.offline:
		return false
	case <-l.deps.queue.Ready():
		return true
	case <-t.C:
		return true
	}
}

func (l *LinkSession) deliver(ctx context.Context, f frame.Frame) {
	kind := f.Kind.String()
	if f.Kind == frame.KindMsg {
		log.Info().Str("frame", f.String()).Msg("core.drain MSG_SEND")
	} else {
		log.Debug().Str("frame", f.String()).Msg("core.drain DATA_SEND")
	}

	ack, seq, err := l.exchange(ctx, f)
	if err != nil {
		if ctx.Err() == nil {
			log.Warn().Str("kind", kind).Err(err).Msg("core.drain not answered - frame dropped")
		}
		observability.RecordLinkFrame(kind, "dropped")
		return
	}

	switch ack.Status {
	case frame.AckOK:
		ev := log.Debug().Str("kind", kind).Uint8("seq", seq)
		if ack.HasSeq {
			ev = ev.Uint8("acked_seq", ack.Seq)
		}
		ev.Msg("core.drain ack")
	case frame.AckSeqMismatch:
		log.Warn().
			Str("kind", kind).
			Uint8("sent_seq", seq).
			Uint8("acked_seq", ack.Seq).
			Msg("core.drain ack sequence mismatch")
	default:
		log.Warn().Str("kind", kind).Str("reply", ack.Raw).Msg("core.drain NAK invalid response")
	}
	observability.RecordLinkFrame(kind, ack.Status.String())
}
