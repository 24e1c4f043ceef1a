package domain

import (
	"log/slog"
	"runtime"
	"time"

	"dario.cat/mergo"
)

type EngineConfig struct {
	// Workers bounds the worker pool shared across runs.
	Workers int `json:"workers"`

	// DefaultNodeTimeout is the hard per-node execution timeout applied
	// when neither the node instance nor its template specifies one.
	DefaultNodeTimeout time.Duration `json:"default_node_timeout"`

	// SubscriberBuffer sizes each log subscriber's channel. A subscriber
	// that falls this far behind is disconnected rather than blocking the
	// run.
	SubscriberBuffer int `json:"subscriber_buffer"`

	Logger *slog.Logger `json:"-"`
}

func DefaultEngineConfig() EngineConfig {
	workers := runtime.NumCPU()
	if workers < 2 {
		workers = 2
	}
	return EngineConfig{
		Workers:            workers,
		DefaultNodeTimeout: 30 * time.Second,
		SubscriberBuffer:   256,
	}
}

// ApplyDefaults fills every unset field from DefaultEngineConfig, leaving
// caller-provided values untouched.
func (c *EngineConfig) ApplyDefaults() error {
	defaults := DefaultEngineConfig()
	if err := mergo.Merge(c, defaults); err != nil {
		return err
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return nil
}

func (c *EngineConfig) Validate() error {
	if c.Workers <= 0 {
		return ErrInvalidConfig
	}
	if c.DefaultNodeTimeout <= 0 {
		return ErrInvalidConfig
	}
	if c.SubscriberBuffer <= 0 {
		return ErrInvalidConfig
	}
	return nil
}
