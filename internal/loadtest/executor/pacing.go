package executor

import (
	"context"
	"math/rand"
	"time"
)

// next returns how long to wait before the following iteration.
func (p *PacingConfig) next() time.Duration {
	if p == nil {
		return 0
	}

	switch p.Type {
	case PacingConstant:
		return p.Duration
	case PacingRandom:
		diff := p.Max - p.Min
		if diff > 0 {
			return p.Min + time.Duration(rand.Int63n(int64(diff)))
		}
		return p.Min
	default:
		return 0
	}
}

// pace waits out the pacing delay. It returns false if ctx ended or stop
// closed first, meaning the VU should not start another iteration.
func pace(ctx context.Context, stop <-chan struct{}, p *PacingConfig) bool {
	wait := p.next()
	if wait <= 0 {
		return true
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-stop:
		return false
	case <-timer.C:
		return true
	}
}
