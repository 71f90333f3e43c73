package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		" INFO ":  zerolog.InfoLevel,
		"warning": zerolog.WarnLevel,
		"silent":  zerolog.WarnLevel,
		"off":     zerolog.Disabled,
	}
	for raw, want := range cases {
		got, ok := parseLevel(raw)
		if !ok || got != want {
			t.Fatalf("parseLevel(%q) got=%v ok=%v", raw, got, ok)
		}
	}
	if _, ok := parseLevel("loud"); ok {
		t.Fatalf("expected unknown level to be rejected")
	}
}

func TestProfileDefaults(t *testing.T) {
	if cfg := defaultConfig(ProfileSilent); cfg.Level != zerolog.WarnLevel {
		t.Fatalf("silent level got=%v", cfg.Level)
	}
	if cfg := defaultConfig(ProfileDebug); cfg.Level != zerolog.DebugLevel {
		t.Fatalf("debug level got=%v", cfg.Level)
	}
	if cfg := defaultConfig(ProfileTest); cfg.Timestamp {
		t.Fatalf("test profile should drop timestamps")
	}
}

func TestEnvOverrideWins(t *testing.T) {
	t.Setenv(EnvLogLevel, "error")
	t.Setenv(EnvLogNoColor, "true")
	cfg := defaultConfig(ProfileDebug)
	applyEnvOverrides(&cfg)
	if cfg.Level != zerolog.ErrorLevel || !cfg.NoColor {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestApplyWritesConsoleLines(t *testing.T) {
	prevLogger := log.Logger
	prevLevel := zerolog.GlobalLevel()
	defer func() {
		log.Logger = prevLogger
		zerolog.SetGlobalLevel(prevLevel)
	}()

	var buf bytes.Buffer
	Apply(Config{Level: zerolog.InfoLevel, NoColor: true, Out: &buf})
	log.Debug().Msg("hidden")
	log.Info().Str("callsign", "do6uk-dau").Msg("visible")
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "callsign=do6uk-dau") {
		t.Fatalf("unexpected output: %q", out)
	}
}
