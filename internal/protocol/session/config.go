package session

import "time"

// BackoffConfig spaces transmitter bind retries.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
}

// Config defines link timing for one transmitter session.
type Config struct {
	// HandshakeTimeout bounds each read during login and time sync.
	HandshakeTimeout time.Duration
	// AckTimeout bounds the wait for one acknowledgement.
	AckTimeout time.Duration
	// SettleDelay is slept between writing a frame and reading its ack.
	SettleDelay  time.Duration
	WriteTimeout time.Duration
	// IdlePoll is the drain worker sleep while the queue is empty.
	IdlePoll time.Duration
	// Tick is the scheduler period.
	Tick time.Duration
	// PingInterval is the keepalive period; the scheduler counts 2*seconds ticks.
	PingInterval time.Duration
	// BeaconEvery is the beacon period in minutes.
	BeaconEvery int
	// TimeSyncRounds is the number of "2:%04x" probes.
	TimeSyncRounds int
	// StrictAck requires echoed MSG sequence numbers to match.
	StrictAck bool
	// Bind retries EADDRINUSE with a fixed delay.
	BindMaxAttempts int
	Bind            BackoffConfig
}

// DefaultConfig returns the link timing used by DAPNET transmitters.
func DefaultConfig() Config {
	return Config{
		HandshakeTimeout: 2 * time.Second,
		AckTimeout:       2 * time.Second,
		SettleDelay:      100 * time.Millisecond,
		WriteTimeout:     2 * time.Second,
		IdlePoll:         100 * time.Millisecond,
		Tick:             500 * time.Millisecond,
		PingInterval:     30 * time.Second,
		BeaconEvery:      10,
		TimeSyncRounds:   4,
		StrictAck:        false,
		BindMaxAttempts:  10,
		Bind: BackoffConfig{
			InitialDelay: 6 * time.Second,
			Multiplier:   1.0,
			MaxDelay:     6 * time.Second,
		},
	}
}

// WithDefaults fills zero values from DefaultConfig.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = def.HandshakeTimeout
	}
	if c.AckTimeout <= 0 {
		c.AckTimeout = def.AckTimeout
	}
	if c.SettleDelay < 0 {
		c.SettleDelay = 0
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.IdlePoll <= 0 {
		c.IdlePoll = def.IdlePoll
	}
	if c.Tick <= 0 {
		c.Tick = def.Tick
	}
	if c.PingInterval <= 0 {
		c.PingInterval = def.PingInterval
	}
	if c.BeaconEvery <= 0 {
		c.BeaconEvery = def.BeaconEvery
	}
	if c.TimeSyncRounds <= 0 {
		c.TimeSyncRounds = def.TimeSyncRounds
	}
	if c.BindMaxAttempts < 0 {
		c.BindMaxAttempts = 0
	}
	if c.Bind.InitialDelay <= 0 {
		c.Bind = def.Bind
	}
	return c
}

// KeepaliveTicks is the scheduler tick count between keepalive probes.
func (c Config) KeepaliveTicks() int {
	n := int(2 * c.PingInterval / time.Second)
	if n < 1 {
		n = 1
	}
	return n
}
