package runner

import "log/slog"

// Option configures a Runner.
type Option interface {
	ApplyRunner(*Config)
}

type optionFunc func(*Config)

func (f optionFunc) ApplyRunner(c *Config) { f(c) }

// Config holds runner configuration.
type Config struct {
	Name        string
	Logger      *slog.Logger
	EventBuffer int
}

// WithName sets the schedule name used in events, reports, and logs.
func WithName(name string) Option {
	return optionFunc(func(c *Config) {
		c.Name = name
	})
}

// WithLogger sets the logger used for run failures.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *Config) {
		if l != nil {
			c.Logger = l
		}
	})
}

// WithEventBuffer sets the event channel capacity. Events are dropped
// rather than delivered once the buffer is full.
func WithEventBuffer(n int) Option {
	return optionFunc(func(c *Config) {
		if n > 0 {
			c.EventBuffer = n
		}
	})
}
