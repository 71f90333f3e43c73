package frame

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var ErrInvalidSubmission = errors.New("frame: invalid submission line")

var submissionPattern = regexp.MustCompile(`^(\d):(\d):(\d+):(\d):(.+)$`)

// ParseSubmission parses "type:speed:address:function:payload" into a MSG frame.
// The payload runs to end of line; trailing CR/LF are dropped.
func ParseSubmission(line string) (Frame, error) {
	line = strings.TrimRight(line, "\r\n")
	m := submissionPattern.FindStringSubmatch(line)
	if m == nil {
		return Frame{}, fmt.Errorf("%w: %q", ErrInvalidSubmission, line)
	}
	contentType, _ := strconv.ParseUint(m[1], 10, 8)
	speed, _ := strconv.ParseUint(m[2], 10, 8)
	address, err := strconv.ParseUint(m[3], 10, 32)
	if err != nil {
		return Frame{}, fmt.Errorf("%w: address %q", ErrInvalidSubmission, m[3])
	}
	function, _ := strconv.ParseUint(m[4], 10, 8)

	f := NewMessage(uint8(contentType), uint8(speed), uint32(address), uint8(function), m[5])
	if err := f.Validate(); err != nil {
		return Frame{}, fmt.Errorf("%w: %w", ErrInvalidSubmission, err)
	}
	return f, nil
}
