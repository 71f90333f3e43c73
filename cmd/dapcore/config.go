package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/dapcore/internal/core"
)

// dapcore config.toml key mapping to core runtime settings.
type fileConfig struct {
	ListenAddr          string   `toml:"listen_addr"`
	Callsign            string   `toml:"callsign"`
	Slots               string   `toml:"slots"`
	SendTimeUTC         bool     `toml:"send_time_utc"`
	SendTimeLocal       bool     `toml:"send_time_local"`
	Timezone            string   `toml:"timezone"`
	BlockInterval       string   `toml:"block_interval"`
	UseSocket           bool     `toml:"use_socket"`
	SocketPath          string   `toml:"socket_path"`
	SocketIdleTimeout   string   `toml:"socket_idle_timeout"`
	UsePipe             bool     `toml:"use_pipe"`
	PipePath            string   `toml:"pipe_path"`
	AdminListenAddr     string   `toml:"admin_listen_addr"`
	AdminCorsOrigins    []string `toml:"admin_cors_origins"`
	AdminToken          string   `toml:"admin_token"`
	PingIntervalSeconds int      `toml:"ping_interval_seconds"`
	BeaconEvery         int      `toml:"beacon_every"`
	StrictAck           bool     `toml:"strict_ack"`
	BindRetryDelay      string   `toml:"bind_retry_delay"`
	BindMaxAttempts     int      `toml:"bind_max_attempts"`
	Silent              bool     `toml:"silent"`
	Debug               bool     `toml:"debug"`
}

// runConfig is the resolved service config plus process-level switches.
type runConfig struct {
	Service core.ServiceConfig
	Silent  bool
	Debug   bool
}

// dapcore loader for TOML config with default overlay.
func loadServiceConfig(path string) (runConfig, error) {
	out := runConfig{Service: core.DefaultServiceConfig()}
	cfg := &out.Service

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return runConfig{}, fmt.Errorf("load dapcore config: %w", err)
	}

	if meta.IsDefined("listen_addr") {
		cfg.ListenAddr = strings.TrimSpace(raw.ListenAddr)
	}
	if meta.IsDefined("callsign") {
		cfg.Callsign = strings.TrimSpace(raw.Callsign)
	}
	if meta.IsDefined("slots") {
		cfg.Slots = strings.TrimSpace(raw.Slots)
	}
	if meta.IsDefined("send_time_utc") {
		cfg.SendTimeUTC = raw.SendTimeUTC
	}
	if meta.IsDefined("send_time_local") {
		cfg.SendTimeLocal = raw.SendTimeLocal
	}
	if meta.IsDefined("timezone") {
		loc, err := time.LoadLocation(strings.TrimSpace(raw.Timezone))
		if err != nil {
			return runConfig{}, fmt.Errorf("parse timezone: %w", err)
		}
		cfg.Location = loc
	}
	if meta.IsDefined("block_interval") {
		d, err := parsePositiveDuration("block_interval", raw.BlockInterval)
		if err != nil {
			return runConfig{}, err
		}
		cfg.BlockInterval = d
	}

	if meta.IsDefined("use_socket") {
		cfg.UseSocket = raw.UseSocket
	}
	if meta.IsDefined("socket_path") {
		cfg.SocketPath = strings.TrimSpace(raw.SocketPath)
	}
	if meta.IsDefined("socket_idle_timeout") {
		d, err := parsePositiveDuration("socket_idle_timeout", raw.SocketIdleTimeout)
		if err != nil {
			return runConfig{}, err
		}
		cfg.SocketIdleTimeout = d
	}
	if meta.IsDefined("use_pipe") {
		cfg.UsePipe = raw.UsePipe
	}
	if meta.IsDefined("pipe_path") {
		cfg.PipePath = strings.TrimSpace(raw.PipePath)
	}

	if meta.IsDefined("admin_listen_addr") {
		cfg.AdminListenAddr = strings.TrimSpace(raw.AdminListenAddr)
	}
	if meta.IsDefined("admin_cors_origins") {
		cfg.AdminCorsOrigins = normalizeList(raw.AdminCorsOrigins)
	}
	if meta.IsDefined("admin_token") {
		cfg.AdminToken = strings.TrimSpace(raw.AdminToken)
	}

	if meta.IsDefined("ping_interval_seconds") {
		if raw.PingIntervalSeconds <= 0 {
			return runConfig{}, fmt.Errorf("ping_interval_seconds must be > 0")
		}
		cfg.Session.PingInterval = time.Duration(raw.PingIntervalSeconds) * time.Second
	}
	if meta.IsDefined("beacon_every") {
		if raw.BeaconEvery <= 0 {
			return runConfig{}, fmt.Errorf("beacon_every must be > 0")
		}
		cfg.Session.BeaconEvery = raw.BeaconEvery
	}
	if meta.IsDefined("strict_ack") {
		cfg.Session.StrictAck = raw.StrictAck
	}
	if meta.IsDefined("bind_retry_delay") {
		d, err := parsePositiveDuration("bind_retry_delay", raw.BindRetryDelay)
		if err != nil {
			return runConfig{}, err
		}
		cfg.Session.Bind.InitialDelay = d
		cfg.Session.Bind.MaxDelay = d
	}
	if meta.IsDefined("bind_max_attempts") {
		if raw.BindMaxAttempts < 0 {
			return runConfig{}, fmt.Errorf("bind_max_attempts must be >= 0")
		}
		cfg.Session.BindMaxAttempts = raw.BindMaxAttempts
	}

	if meta.IsDefined("silent") {
		out.Silent = raw.Silent
	}
	if meta.IsDefined("debug") {
		out.Debug = raw.Debug
	}
	return out, nil
}

func parsePositiveDuration(key, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be > 0", key)
	}
	return d, nil
}

func normalizeList(in []string) []string {
	if len(in) == 0 {
		return []string{}
	}
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
