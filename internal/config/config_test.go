package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadReceiverConfigOverlay(t *testing.T) {
	path := writeConfig(t, `
socket_path = "/run/dap.s"
ric_blacklist = [8, 2504]
retry_delay = "500ms"
`)
	cfg, err := LoadReceiverConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.SocketPath != "/run/dap.s" {
		t.Fatalf("unexpected socket path: %q", cfg.SocketPath)
	}
	if len(cfg.RICBlacklist) != 2 || cfg.RICBlacklist[0] != 8 || cfg.RICBlacklist[1] != 2504 {
		t.Fatalf("unexpected blacklist: %+v", cfg.RICBlacklist)
	}
	if cfg.RetryDelay != 500*time.Millisecond {
		t.Fatalf("unexpected retry delay: %v", cfg.RetryDelay)
	}
	if cfg.AckTimeout != 2*time.Second {
		t.Fatalf("expected default ack timeout, got %v", cfg.AckTimeout)
	}
}

func TestLoadReceiverConfigRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, `sockt_path = "/tmp/x"`)
	_, err := LoadReceiverConfig(path)
	if !errors.Is(err, ErrUnknownKey) {
		t.Fatalf("expected unknown key error, got %v", err)
	}
}

func TestLoadReceiverConfigRejectsBadDuration(t *testing.T) {
	path := writeConfig(t, `retry_delay = "-3s"`)
	if _, err := LoadReceiverConfig(path); err == nil {
		t.Fatalf("expected validation error")
	}
	path = writeConfig(t, `ack_timeout = "later"`)
	if _, err := LoadReceiverConfig(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestLoadReceiverConfigMissingFile(t *testing.T) {
	if _, err := LoadReceiverConfig(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatalf("expected load error")
	}
}

func TestTemplatesValidate(t *testing.T) {
	dir := t.TempDir()

	receiverPath := filepath.Join(dir, "receiver.toml")
	if err := WriteTemplate(receiverPath, "receiver", false); err != nil {
		t.Fatalf("write receiver template: %v", err)
	}
	if _, err := LoadReceiverConfig(receiverPath); err != nil {
		t.Fatalf("receiver template invalid: %v", err)
	}

	corePath := filepath.Join(dir, "dapcore.toml")
	if err := WriteTemplate(corePath, "dapcore", false); err != nil {
		t.Fatalf("write core template: %v", err)
	}
	if err := ValidateCoreFile(corePath); err != nil {
		t.Fatalf("core template invalid: %v", err)
	}

	if err := WriteTemplate(corePath, "dapcore", false); err == nil {
		t.Fatalf("expected refusal to overwrite")
	}
	if err := WriteTemplate(corePath, "dapcore", true); err != nil {
		t.Fatalf("forced overwrite: %v", err)
	}
	if _, err := Template("ghost"); err == nil {
		t.Fatalf("expected unknown kind error")
	}
}

func TestValidateCoreFileUnknownKey(t *testing.T) {
	path := writeConfig(t, `
listen_addr = "127.0.0.1:1"
listen_adress = "typo"
`)
	if err := ValidateCoreFile(path); !errors.Is(err, ErrUnknownKey) {
		t.Fatalf("expected unknown key error, got %v", err)
	}
}
