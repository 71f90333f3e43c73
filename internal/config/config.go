package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/danmuck/dapcore/internal/ingest"
	"github.com/pelletier/go-toml/v2"
)

// ReceiverConfig is the resolved dapreceiver configuration.
type ReceiverConfig struct {
	SocketPath   string
	RICBlacklist []uint32
	RetryDelay   time.Duration
	AckTimeout   time.Duration
}

type receiverFile struct {
	SocketPath   string   `toml:"socket_path"`
	RICBlacklist []uint32 `toml:"ric_blacklist"`
	RetryDelay   string   `toml:"retry_delay"`
	AckTimeout   string   `toml:"ack_timeout"`
}

// CoreKeys are the keys accepted in a dapcore config file.
var CoreKeys = []string{
	"listen_addr", "callsign", "slots",
	"send_time_utc", "send_time_local", "timezone", "block_interval",
	"use_socket", "socket_path", "socket_idle_timeout", "use_pipe", "pipe_path",
	"admin_listen_addr", "admin_cors_origins", "admin_token",
	"ping_interval_seconds", "beacon_every", "strict_ack",
	"bind_retry_delay", "bind_max_attempts",
	"silent", "debug",
}

var ErrUnknownKey = errors.New("config: unknown key")

func DefaultReceiverConfig() ReceiverConfig {
	return ReceiverConfig{
		SocketPath:   ingest.DefaultSocketPath,
		RICBlacklist: []uint32{},
		RetryDelay:   3 * time.Second,
		AckTimeout:   2 * time.Second,
	}
}

// LoadReceiverConfig overlays the file at path on DefaultReceiverConfig.
// Unknown keys are rejected.
func LoadReceiverConfig(path string) (ReceiverConfig, error) {
	var raw receiverFile
	if err := loadToml(path, &raw, true); err != nil {
		return ReceiverConfig{}, err
	}

	cfg := DefaultReceiverConfig()
	if v := strings.TrimSpace(raw.SocketPath); v != "" {
		cfg.SocketPath = v
	}
	if raw.RICBlacklist != nil {
		cfg.RICBlacklist = raw.RICBlacklist
	}
	if v := strings.TrimSpace(raw.RetryDelay); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return ReceiverConfig{}, fmt.Errorf("parse retry_delay: %w", err)
		}
		cfg.RetryDelay = d
	}
	if v := strings.TrimSpace(raw.AckTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return ReceiverConfig{}, fmt.Errorf("parse ack_timeout: %w", err)
		}
		cfg.AckTimeout = d
	}
	if err := ValidateReceiverConfig(cfg); err != nil {
		return ReceiverConfig{}, err
	}
	return cfg, nil
}

func ValidateReceiverConfig(cfg ReceiverConfig) error {
	if strings.TrimSpace(cfg.SocketPath) == "" {
		return fmt.Errorf("receiver config missing socket_path")
	}
	if cfg.RetryDelay <= 0 {
		return fmt.Errorf("receiver retry_delay must be > 0")
	}
	if cfg.AckTimeout <= 0 {
		return fmt.Errorf("receiver ack_timeout must be > 0")
	}
	return nil
}

// ValidateCoreFile checks a dapcore config for syntax and unknown keys. Value
// semantics are checked by the dapcore loader itself.
func ValidateCoreFile(path string) error {
	var raw map[string]any
	if err := loadToml(path, &raw, false); err != nil {
		return err
	}
	known := make(map[string]struct{}, len(CoreKeys))
	for _, k := range CoreKeys {
		known[k] = struct{}{}
	}
	for k := range raw {
		if _, ok := known[k]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownKey, k)
		}
	}
	return nil
}

func loadToml(path string, out any, strict bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	dec := toml.NewDecoder(bytes.NewReader(data))
	if strict {
		dec.DisallowUnknownFields()
	}
	if err := dec.Decode(out); err != nil {
		var strictErr *toml.StrictMissingError
		if errors.As(err, &strictErr) {
			return fmt.Errorf("%w (%s): %s", ErrUnknownKey, path, strings.TrimSpace(strictErr.String()))
		}
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}
