package executor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/rokkincat/trackload/internal/loadtest"
)

// vuPool runs VU goroutines for an executor.
//
// Iterations get iterCtx, which outlives the load profile so that in-flight
// iterations can finish during the graceful stop. The loop itself watches
// runCtx and the VU's stop channel.
type vuPool struct {
	scheduler *loadtest.VUScheduler
	pacing    *PacingConfig

	iterCtx    context.Context
	iterCancel context.CancelFunc

	active     atomic.Int32
	iterations atomic.Int64
	wg         sync.WaitGroup
}

func newVUPool(parent context.Context, scheduler *loadtest.VUScheduler, pacing *PacingConfig) *vuPool {
	iterCtx, cancel := context.WithCancel(context.WithoutCancel(parent))
	return &vuPool{
		scheduler:  scheduler,
		pacing:     pacing,
		iterCtx:    iterCtx,
		iterCancel: cancel,
	}
}

// start runs vu in its own goroutine until runCtx ends or the VU is stopped.
func (p *vuPool) start(runCtx context.Context, vu *loadtest.VirtualUser) {
	p.wg.Add(1)
	p.active.Add(1)

	go func() {
		defer p.wg.Done()
		defer p.active.Add(-1)
		defer p.scheduler.RemoveVU(vu.ID)

		for {
			select {
			case <-runCtx.Done():
				return
			case <-vu.StopCh():
				return
			default:
			}

			if !p.runOnce(vu) {
				return
			}

			if !pace(runCtx, vu.StopCh(), p.pacing) {
				return
			}
		}
	}()
}

// runOnce runs one iteration and counts it. It returns false when the VU
// was already stopping or the iteration was interrupted.
func (p *vuPool) runOnce(vu *loadtest.VirtualUser) bool {
	err := vu.RunIteration(p.iterCtx)
	if errors.Is(err, loadtest.ErrVUStopped) || (err != nil && p.iterCtx.Err() != nil) {
		return false
	}
	p.iterations.Add(1)
	return true
}

// shutdown stops every VU and waits up to graceful for iterations to
// finish, then cancels whatever is still running.
func (p *vuPool) shutdown(graceful time.Duration, logger *zap.Logger) {
	p.scheduler.StopAllVUs()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(graceful)
	defer timer.Stop()

	select {
	case <-done:
	case <-timer.C:
		logger.Warn("graceful stop expired, interrupting iterations",
			zap.Duration("gracefulStop", graceful),
			zap.Int32("running", p.active.Load()))
		p.iterCancel()
		<-done
	}

	p.iterCancel()
}
