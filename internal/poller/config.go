package poller

import "time"

// Config 控制轮询节奏。
type Config struct {
	Interval time.Duration
	// Timeout 单次拉取的超时时间。
	Timeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Interval: 10 * time.Second,
		Timeout:  8 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.Interval <= 0 {
		c.Interval = defaults.Interval
	}
	if c.Timeout <= 0 {
		c.Timeout = defaults.Timeout
	}
	return c
}
