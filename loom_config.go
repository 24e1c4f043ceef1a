package loom

import (
	"log/slog"
	"time"

	"github.com/eleven-am/loom/internal/domain"
	"github.com/eleven-am/loom/internal/ports"
)

// Config configures an Engine. The zero value is usable: unset fields
// take the engine defaults.
type Config struct {
	// Workers bounds the worker pool shared across runs. Defaults to the
	// available parallelism, never below 2.
	Workers int

	// DefaultNodeTimeout is the hard per-node execution timeout used when
	// neither the node instance nor its template specifies one. Defaults
	// to 30s.
	DefaultNodeTimeout time.Duration

	// SubscriberBuffer sizes each log subscriber's channel. Defaults to
	// 256.
	SubscriberBuffer int

	// Logger receives engine diagnostics. Defaults to slog.Default().
	Logger *slog.Logger

	// Persistence sinks receive each run's final snapshot exactly once,
	// on the terminal transition. Sink errors are logged, never fatal.
	Persistence []ports.Persistence
}

func (c Config) build() (domain.EngineConfig, error) {
	config := domain.EngineConfig{
		Workers:            c.Workers,
		DefaultNodeTimeout: c.DefaultNodeTimeout,
		SubscriberBuffer:   c.SubscriberBuffer,
		Logger:             c.Logger,
	}

	if err := config.ApplyDefaults(); err != nil {
		return domain.EngineConfig{}, err
	}
	if err := config.Validate(); err != nil {
		return domain.EngineConfig{}, err
	}

	return config, nil
}
