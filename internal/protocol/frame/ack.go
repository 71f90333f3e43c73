package frame

import (
	"regexp"
	"strconv"
	"strings"
)

// AckStatus classifies one transmitter reply.
type AckStatus int

const (
	AckOK AckStatus = iota
	// AckNak is a reply that does not have the acknowledgement form for the frame kind.
	AckNak
	// AckSeqMismatch is a well-formed MSG ack echoing a different sequence (strict mode only).
	AckSeqMismatch
)

func (s AckStatus) String() string {
	switch s {
	case AckOK:
		return "ack"
	case AckNak:
		return "nak"
	case AckSeqMismatch:
		return "seq_mismatch"
	default:
		return "unknown"
	}
}

// Ack is the classified reply to one sent frame.
type Ack struct {
	Status AckStatus
	Seq    uint8
	HasSeq bool
	Raw    string
}

var msgAckPattern = regexp.MustCompile(`^#([0-9A-Fa-f]{2})\s\+`)

// ParseMsgAck extracts the echoed sequence of a "#<seq> +" reply.
func ParseMsgAck(reply string) (uint8, bool) {
	m := msgAckPattern.FindStringSubmatch(reply)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseUint(m[1], 16, 8)
	if err != nil {
		return 0, false
	}
	return uint8(v), true
}

// IsPositiveAck reports a bare "+" reply.
func IsPositiveAck(reply string) bool {
	return strings.TrimSpace(reply) == "+"
}

// ClassifyAck matches reply against the acknowledgement form for kind. Without
// strict, any well-formed MSG ack is accepted regardless of the echoed sequence.
func ClassifyAck(kind Kind, reply string, sentSeq uint8, strict bool) Ack {
	ack := Ack{Status: AckNak, Raw: strings.TrimRight(reply, "\r\n")}
	if kind == KindMsg {
		seq, ok := ParseMsgAck(reply)
		if !ok {
			return ack
		}
		ack.Seq = seq
		ack.HasSeq = true
		if strict && seq != sentSeq {
			ack.Status = AckSeqMismatch
			return ack
		}
		ack.Status = AckOK
		return ack
	}
	if IsPositiveAck(reply) {
		ack.Status = AckOK
	}
	return ack
}
