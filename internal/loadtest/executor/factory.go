package executor

import (
	"context"
	"fmt"

	"github.com/rokkincat/trackload/internal/config"
)

// NewExecutor creates a new executor of the specified type.
//
// Returns an uninitialized executor. Call Init() before Run().
func NewExecutor(executorType Type) (Executor, error) {
	switch executorType {
	case TypeConstantVUs:
		return NewConstantVUs(), nil
	case TypeRampingVUs:
		return NewRampingVUs(), nil
	default:
		return nil, fmt.Errorf("unknown executor type: %s (supported: %v)", executorType, GetSupportedExecutors())
	}
}

// CreateAndInitExecutor creates and initializes an executor with the given config.
func CreateAndInitExecutor(ctx context.Context, cfg *Config) (Executor, error) {
	exec, err := NewExecutor(cfg.Type)
	if err != nil {
		return nil, err
	}

	if err := exec.Init(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize executor: %w", err)
	}

	return exec, nil
}

// ConfigFromLoad converts the load section of the run configuration into an
// executor Config.
func ConfigFromLoad(name string, lc *config.LoadConfig) *Config {
	cfg := &Config{
		Name:         name,
		Type:         Type(lc.Executor),
		VUs:          lc.VUs,
		Duration:     lc.Duration.Std(),
		GracefulStop: lc.GracefulStop.Std(),
	}

	for _, s := range lc.Stages {
		cfg.Stages = append(cfg.Stages, Stage{
			Duration: s.Duration.Std(),
			Target:   s.Target,
			Name:     s.Name,
		})
	}

	if lc.Pacing != nil {
		cfg.Pacing = &PacingConfig{
			Type:     PacingType(lc.Pacing.Type),
			Duration: lc.Pacing.Duration.Std(),
			Min:      lc.Pacing.Min.Std(),
			Max:      lc.Pacing.Max.Std(),
		}
	}

	return cfg
}

// GetSupportedExecutors returns a list of all supported executor types.
func GetSupportedExecutors() []Type {
	return []Type{TypeConstantVUs, TypeRampingVUs}
}

// CalculateMaxVUs returns the maximum number of VUs that might be used.
func CalculateMaxVUs(cfg *Config) int {
	if cfg.Type != TypeRampingVUs {
		return cfg.VUs
	}

	maxVUs := 0
	for _, stage := range cfg.Stages {
		if stage.Target > maxVUs {
			maxVUs = stage.Target
		}
	}
	return maxVUs
}
