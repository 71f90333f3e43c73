package session

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/danmuck/dapcore/internal/protocol/frame"
)

var (
	ErrInvalidLogin      = errors.New("session: invalid login")
	ErrInvalidTimeSync   = errors.New("session: invalid time sync reply")
	ErrHandshakeRejected = errors.New("session: handshake step rejected")
)

// Control frame codes of the handshake and keepalive.
const (
	CodeTimeSync   uint8 = 2
	CodeSyncAck    uint8 = 3
	CodeSlotConfig uint8 = 4

	SyncAckPayload = "+0000"
)

// State is one step of the link handshake.
type State int

const (
	StateAwaitLogin State = iota
	StateTimeSync
	StateSyncAck
	StateSlotConfig
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateAwaitLogin:
		return "await_login"
	case StateTimeSync:
		return "time_sync"
	case StateSyncAck:
		return "sync_ack"
	case StateSlotConfig:
		return "slot_config"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Next returns the following handshake state. Closed is terminal.
func (s State) Next() State {
	if s >= StateClosed {
		return StateClosed
	}
	return s + 1
}

// Login is the transmitter identity sent as the first line of a session.
type Login struct {
	DeviceType string
	Version    string
	Callsign   string
	// Key is accepted but never validated.
	Key string
}

var (
	loginPattern    = regexp.MustCompile(`^\[(\S+)\s+(v\S+)\s+(\S+)\s+([^\]\s]+)\]`)
	timeSyncPattern = regexp.MustCompile(`^2:(.{4}):(.{4})`)
)

// ParseLogin parses "[<type> v<version> <callsign> <key>]".
func ParseLogin(line string) (Login, error) {
	line = strings.TrimSpace(line)
	m := loginPattern.FindStringSubmatch(line)
	if m == nil {
		return Login{}, fmt.Errorf("%w: %q", ErrInvalidLogin, line)
	}
	return Login{
		DeviceType: m[1],
		Version:    m[2],
		Callsign:   m[3],
		Key:        m[4],
	}, nil
}

// TimeSyncReply is the two 4-character fields of a "2:XXXX:YYYY" reply.
type TimeSyncReply struct {
	First  string
	Second string
}

func ParseTimeSyncReply(line string) (TimeSyncReply, error) {
	line = strings.TrimRight(line, "\r\n")
	m := timeSyncPattern.FindStringSubmatch(line)
	if m == nil {
		return TimeSyncReply{}, fmt.Errorf("%w: %q", ErrInvalidTimeSync, line)
	}
	return TimeSyncReply{First: m[1], Second: m[2]}, nil
}

// TimeSyncProbe is the unacknowledged frame of one time sync round.
func TimeSyncProbe(round int) frame.Frame {
	return frame.NewControl(CodeTimeSync, fmt.Sprintf("%04x", round))
}

// SyncAck signals time sync complete; it doubles as the keepalive probe.
func SyncAck() frame.Frame {
	return frame.NewControl(CodeSyncAck, SyncAckPayload)
}

// SlotConfig carries the transmitter's time slot identifiers.
func SlotConfig(slots string) frame.Frame {
	return frame.NewControl(CodeSlotConfig, slots)
}
