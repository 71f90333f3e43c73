// Package receiver turns POCSAG decoder output into submission lines and
// forwards them to the core's Unix socket.
package receiver

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/danmuck/dapcore/internal/protocol/frame"
)

var ErrNotPOCSAG = errors.New("receiver: not a POCSAG1200 message line")

const (
	contentOther   uint8 = 0
	contentNumeric uint8 = 5
	contentAlpha   uint8 = 6
	speed1200      uint8 = 1
)

var multimonPattern = regexp.MustCompile(`^POCSAG1200:\sAddress:\s+(\d+)\s+Function:\s+(\d)\s+(Alpha|Numeric):\s+(.+)`)

// controlMarkers are the "<XXX>" renderings of control characters in decoder text.
var controlMarkers = strings.NewReplacer(
	"<DEL>", "", "<NUL>", "", "<DLE>", "", "<SOH>", "", "<DC>", "", "<STX>", "",
	"<ETX>", "", "<EOT>", "", "<ENQ>", "", "<NAK>", "", "<ACK>", "", "<SYN>", "",
	"<BEL>", "", "<ETB>", "", "<BS>", "", "<CAN>", "", "<HT>", "", "<EM>", "",
	"<LF>", "", "<SUB>", "", "<VT>", "", "<ESC>", "", "<FF>", "", "<FS>", "",
	"<CR>", "", "<GS>", "", "<SO>", "", "<RS>", "", "<SI>", "", "<US>", "",
)

// Decoded is one received pager message.
type Decoded struct {
	RIC      uint32
	Function uint8
	Kind     string
	Text     string
}

// ParseDecoderLine parses
// "POCSAG1200: Address: <ric> Function: <f> Alpha|Numeric: <text>".
func ParseDecoderLine(line string) (Decoded, error) {
	line = strings.TrimRight(line, " \t\r\n")
	m := multimonPattern.FindStringSubmatch(line)
	if m == nil {
		return Decoded{}, fmt.Errorf("%w: %q", ErrNotPOCSAG, line)
	}
	ric, err := strconv.ParseUint(m[1], 10, 32)
	if err != nil {
		return Decoded{}, fmt.Errorf("%w: address %q: %w", ErrNotPOCSAG, m[1], err)
	}
	fn, _ := strconv.ParseUint(m[2], 10, 8)
	return Decoded{
		RIC:      uint32(ric),
		Function: uint8(fn),
		Kind:     m[3],
		Text:     CleanMarkers(m[4]),
	}, nil
}

func CleanMarkers(s string) string {
	return controlMarkers.Replace(s)
}

// ContentType maps the decoder's message kind to a submission content type.
func (d Decoded) ContentType() uint8 {
	switch strings.ToLower(d.Kind) {
	case "alpha":
		return contentAlpha
	case "numeric":
		return contentNumeric
	default:
		return contentOther
	}
}

// Submission renders "type:1:ric:function:text".
func (d Decoded) Submission() string {
	return frame.NewMessage(d.ContentType(), speed1200, d.RIC, d.Function, d.Text).Submission()
}
