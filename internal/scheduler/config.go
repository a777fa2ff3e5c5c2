package scheduler

import "time"

// Config controls how often the scheduler wakes up and when the daily
// invoicing run fires.
type Config struct {
	// InvoiceAt is the HH:MM wall time of the daily run.
	InvoiceAt string
	// PollInterval bounds how stale the wake-up check can be.
	PollInterval time.Duration
	// JobTimeout caps a single invoicing sweep.
	JobTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		InvoiceAt:    "08:00",
		PollInterval: time.Minute,
		JobTimeout:   10 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.InvoiceAt == "" {
		c.InvoiceAt = defaults.InvoiceAt
	}
	if c.PollInterval <= 0 {
		c.PollInterval = defaults.PollInterval
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	return c
}
