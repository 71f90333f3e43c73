package frame

import (
	"errors"
	"fmt"
	"io"
)

// LineTerminator ends every line written to the transmitter link.
const LineTerminator = "\r\n"

const (
	MaxContentType = 9
	MaxFunction    = 3
)

var (
	ErrInvalidContentType = errors.New("frame: content type out of range")
	ErrInvalidFunction    = errors.New("frame: function out of range")
	ErrEmptyPayload       = errors.New("frame: empty payload")
)

// Kind selects the sequencing and acknowledgement discipline of a frame.
type Kind uint8

const (
	// KindData frames carry no sequence number and expect a bare "+".
	KindData Kind = iota
	// KindMsg frames carry a 2-hex-digit sequence number and expect "#<seq> +".
	KindMsg
)

func (k Kind) String() string {
	switch k {
	case KindMsg:
		return "MSG"
	case KindData:
		return "DATA"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Frame is one unit of transmission on the transmitter link.
type Frame struct {
	Kind        Kind
	ContentType uint8
	Speed       uint8
	Address     uint32
	Function    uint8
	Payload     string

	// Control marks DATA frames rendered as "<type>:<payload>" (time sync,
	// sync ack, slot config).
	Control bool
}

// NewMessage builds a sequenced MSG frame addressed to one RIC.
func NewMessage(contentType, speed uint8, address uint32, function uint8, payload string) Frame {
	return Frame{
		Kind:        KindMsg,
		ContentType: contentType,
		Speed:       speed,
		Address:     address,
		Function:    function,
		Payload:     payload,
	}
}

// NewData builds an unsequenced DATA frame addressed to one RIC.
func NewData(contentType, speed uint8, address uint32, function uint8, payload string) Frame {
	f := NewMessage(contentType, speed, address, function, payload)
	f.Kind = KindData
	return f
}

// NewControl builds a short-form DATA frame such as "3:+0000".
func NewControl(code uint8, payload string) Frame {
	return Frame{
		Kind:        KindData,
		ContentType: code,
		Payload:     payload,
		Control:     true,
	}
}

func (f Frame) Validate() error {
	if f.ContentType > MaxContentType {
		return fmt.Errorf("%w: %d", ErrInvalidContentType, f.ContentType)
	}
	if f.Control {
		return nil
	}
	if f.Function > MaxFunction {
		return fmt.Errorf("%w: %d", ErrInvalidFunction, f.Function)
	}
	if f.Payload == "" {
		return ErrEmptyPayload
	}
	return nil
}

// Encode renders the frame without line terminator. seq is ignored for DATA frames.
func (f Frame) Encode(seq uint8) string {
	if f.Control {
		return fmt.Sprintf("%d:%s", f.ContentType, f.Payload)
	}
	if f.Kind == KindMsg {
		return fmt.Sprintf("#%02X %d:%d:%x:%d:%s", seq, f.ContentType, f.Speed, f.Address, f.Function, f.Payload)
	}
	return fmt.Sprintf("%d:%d:%d:%d:%s", f.ContentType, f.Speed, f.Address, f.Function, f.Payload)
}

// Submission renders the frame in the ingestion line format.
func (f Frame) Submission() string {
	return fmt.Sprintf("%d:%d:%d:%d:%s", f.ContentType, f.Speed, f.Address, f.Function, f.Payload)
}

func (f Frame) String() string {
	return f.Kind.String() + " " + f.Submission()
}

// WriteFrame writes one CRLF-terminated frame line.
func WriteFrame(w io.Writer, f Frame, seq uint8) error {
	_, err := io.WriteString(w, f.Encode(seq)+LineTerminator)
	return err
}
