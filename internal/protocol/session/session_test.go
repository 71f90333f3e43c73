package session

import (
	"errors"
	"testing"
	"time"

	"github.com/danmuck/dapcore/internal/testutil/testlog"
)

func TestBindRetryDelayGrowsToCap(t *testing.T) {
	testlog.Start(t)
	cfg := BackoffConfig{
		InitialDelay: 250 * time.Millisecond,
		Multiplier:   2.0,
		MaxDelay:     5 * time.Second,
	}
	if got := BindRetryDelay(cfg, 1); got != 250*time.Millisecond {
		t.Fatalf("attempt1 got=%v", got)
	}
	if got := BindRetryDelay(cfg, 2); got != 500*time.Millisecond {
		t.Fatalf("attempt2 got=%v", got)
	}
	if got := BindRetryDelay(cfg, 6); got != 5*time.Second {
		t.Fatalf("attempt6 got=%v", got)
	}
}

func TestBindRetryDelayIsFixedByDefault(t *testing.T) {
	testlog.Start(t)
	cfg := DefaultConfig().Bind
	for attempt := 1; attempt <= 10; attempt++ {
		if got := BindRetryDelay(cfg, attempt); got != 6*time.Second {
			t.Fatalf("attempt%d got=%v", attempt, got)
		}
	}
	if got := BindRetryDelay(BackoffConfig{}, 3); got != 0 {
		t.Fatalf("zero config got=%v", got)
	}
}

func TestConfigWithDefaults(t *testing.T) {
	testlog.Start(t)
	cfg := Config{AckTimeout: time.Second}.WithDefaults()
	if cfg.AckTimeout != time.Second {
		t.Fatalf("explicit value overwritten: %v", cfg.AckTimeout)
	}
	if cfg.Tick != 500*time.Millisecond || cfg.TimeSyncRounds != 4 || cfg.BeaconEvery != 10 {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if got := DefaultConfig().KeepaliveTicks(); got != 60 {
		t.Fatalf("keepalive ticks got=%d", got)
	}
}

func TestParseLogin(t *testing.T) {
	testlog.Start(t)
	login, err := ParseLogin("[DAP v2.0 DO6UK-1 01234]\r\n")
	if err != nil {
		t.Fatalf("parse login: %v", err)
	}
	if login.DeviceType != "DAP" || login.Version != "v2.0" || login.Callsign != "DO6UK-1" || login.Key != "01234" {
		t.Fatalf("unexpected login: %+v", login)
	}

	login, err = ParseLogin("[UniPager-SDR v1.0.2 do6uk 0123456789]")
	if err != nil {
		t.Fatalf("parse login: %v", err)
	}
	if login.DeviceType != "UniPager-SDR" || login.Callsign != "do6uk" {
		t.Fatalf("unexpected login: %+v", login)
	}
}

func TestParseLoginRejectsMalformed(t *testing.T) {
	testlog.Start(t)
	for _, line := range []string{"", "hello", "[DAP 2.0 DO6UK-1 01234]", "[DAP v2.0 DO6UK-1]", "DAP v2.0 DO6UK-1 01234"} {
		if _, err := ParseLogin(line); !errors.Is(err, ErrInvalidLogin) {
			t.Fatalf("line %q: expected ErrInvalidLogin, got %v", line, err)
		}
	}
}

func TestTimeSyncFrames(t *testing.T) {
	testlog.Start(t)
	if got := TimeSyncProbe(3).Encode(0); got != "2:0003" {
		t.Fatalf("unexpected probe: %q", got)
	}
	if got := SyncAck().Encode(0); got != "3:+0000" {
		t.Fatalf("unexpected sync ack: %q", got)
	}
	if got := SlotConfig("2389D").Encode(0); got != "4:2389D" {
		t.Fatalf("unexpected slot config: %q", got)
	}
	reply, err := ParseTimeSyncReply("2:0003:1a2b\r\n")
	if err != nil {
		t.Fatalf("parse reply: %v", err)
	}
	if reply.First != "0003" || reply.Second != "1a2b" {
		t.Fatalf("unexpected reply: %+v", reply)
	}
	if _, err := ParseTimeSyncReply("+"); !errors.Is(err, ErrInvalidTimeSync) {
		t.Fatalf("expected ErrInvalidTimeSync, got %v", err)
	}
}

func TestStateOrder(t *testing.T) {
	testlog.Start(t)
	want := []State{StateTimeSync, StateSyncAck, StateSlotConfig, StateActive, StateClosed, StateClosed}
	s := StateAwaitLogin
	for i, w := range want {
		s = s.Next()
		if s != w {
			t.Fatalf("step %d got=%s want=%s", i, s, w)
		}
	}
}

func TestSequenceIncrementsAndWraps(t *testing.T) {
	testlog.Start(t)
	var seq Sequence
	for v := 0; v < 255; v++ {
		seq.Set(uint8(v))
		if got := seq.Next(); int(got) != v+1 {
			t.Fatalf("after %d got=%d", v, got)
		}
	}
	seq.Set(255)
	if got := seq.Next(); got != 0 {
		t.Fatalf("expected wrap to 0, got=%d", got)
	}
}

func TestSequenceResetOnOnline(t *testing.T) {
	testlog.Start(t)
	var seq Sequence
	seq.Set(0x7F)
	seq.Reset()
	if got := seq.Next(); got != 1 {
		t.Fatalf("first MSG after reset got=%d", got)
	}
}
