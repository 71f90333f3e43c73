// Package ingest accepts submission lines from local front ends (Unix socket,
// named pipe, admin HTTP) and feeds accepted frames to the outbound queue.
package ingest

import (
	"errors"

	"github.com/danmuck/dapcore/internal/observability"
	"github.com/danmuck/dapcore/internal/protocol/frame"
	"github.com/rs/zerolog/log"
)

var ErrNoQueue = errors.New("ingest: no queue configured")

// Enqueuer receives accepted frames.
type Enqueuer interface {
	Push(frame.Frame)
}

// Deduper gates repeated (address, payload) pairs.
type Deduper interface {
	Accept(address uint32, payload string) bool
}

// Result is the outcome of one submission line.
type Result int

const (
	ResultQueued Result = iota
	ResultDuplicate
	ResultMalformed
)

func (r Result) String() string {
	switch r {
	case ResultQueued:
		return "queued"
	case ResultDuplicate:
		return "duplicate"
	case ResultMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Submitter is shared by every ingestion endpoint.
type Submitter struct {
	queue Enqueuer
	dedup Deduper
}

// NewSubmitter wires a queue and an optional dedup gate.
func NewSubmitter(q Enqueuer, d Deduper) *Submitter {
	return &Submitter{queue: q, dedup: d}
}

// Submit parses one line and enqueues it unless it is a duplicate within the
// block interval. Malformed lines return the parse error.
func (s *Submitter) Submit(source, line string) (Result, error) {
	if s.queue == nil {
		return ResultMalformed, ErrNoQueue
	}
	f, err := frame.ParseSubmission(line)
	if err != nil {
		log.Warn().Str("source", source).Err(err).Msg("ingest.Submit received invalid message")
		observability.RecordSubmission(source, ResultMalformed.String())
		return ResultMalformed, err
	}
	if s.dedup != nil && !s.dedup.Accept(f.Address, f.Payload) {
		log.Info().
			Str("source", source).
			Uint32("ric", f.Address).
			Str("payload", f.Payload).
			Msg("ingest.Submit message in blocktime - dropped")
		observability.RecordSubmission(source, ResultDuplicate.String())
		return ResultDuplicate, nil
	}
	log.Info().
		Str("source", source).
		Uint8("type", f.ContentType).
		Uint8("speed", f.Speed).
		Uint32("ric", f.Address).
		Uint8("function", f.Function).
		Str("payload", f.Payload).
		Msg("ingest.Submit queued")
	s.queue.Push(f)
	observability.RecordSubmission(source, ResultQueued.String())
	return ResultQueued, nil
}
