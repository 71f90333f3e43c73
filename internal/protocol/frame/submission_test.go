package frame

import (
	"errors"
	"testing"
)

func TestParseSubmission(t *testing.T) {
	f, err := ParseSubmission("6:1:8:3:DO6UK-1\r\n")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := NewMessage(6, 1, 8, 3, "DO6UK-1")
	if f != want {
		t.Fatalf("got=%+v want=%+v", f, want)
	}
}

func TestParseSubmissionPayloadKeepsColons(t *testing.T) {
	f, err := ParseSubmission("6:1:2504:0:YYYYMMDDHHMMSS 12:00:00")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if f.Address != 2504 || f.Payload != "YYYYMMDDHHMMSS 12:00:00" {
		t.Fatalf("unexpected frame: %+v", f)
	}
}

func TestParseSubmissionRejectsMalformed(t *testing.T) {
	lines := []string{
		"",
		"hello world",
		"6:1:8:3:",
		"12:1:8:3:two digit type",
		"6:1:8:4:function out of range",
		"6:1:-8:3:negative",
		"6:1:99999999999:3:address overflow",
		"6:12:8:3:two digit speed",
		"6:300:8:3:speed overflow",
	}
	for _, line := range lines {
		if _, err := ParseSubmission(line); !errors.Is(err, ErrInvalidSubmission) {
			t.Fatalf("line %q: expected ErrInvalidSubmission, got %v", line, err)
		}
	}
}
