package session

import "time"

// BindRetryDelay returns the wait before bind retry N (1-based). A Multiplier
// of 1 or less keeps every retry at InitialDelay; larger values grow the delay
// up to MaxDelay.
func BindRetryDelay(cfg BackoffConfig, attempt int) time.Duration {
	if cfg.InitialDelay <= 0 {
		return 0
	}
	delay := cfg.InitialDelay
	if cfg.Multiplier > 1 {
		for i := 1; i < attempt; i++ {
			delay = time.Duration(float64(delay) * cfg.Multiplier)
			if cfg.MaxDelay > 0 && delay >= cfg.MaxDelay {
				break
			}
		}
	}
	if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
		delay = cfg.MaxDelay
	}
	return delay
}
