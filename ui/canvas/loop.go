package canvas

import (
	"context"
	"sync"

	"coco-annotator/internal/tools"

	"go.uber.org/zap"
)

// Loop serialises access to the session. Widget callbacks and the apply step
// of background work both run under its lock, so the session only ever sees
// one caller at a time.
type Loop struct {
	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger *zap.Logger
}

// NewLoop creates a loop. Background work gets a context cancelled by Stop.
func NewLoop(logger *zap.Logger) *Loop {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Loop{ctx: ctx, cancel: cancel, logger: logger}
}

// Do runs fn under the loop lock.
func (l *Loop) Do(fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fn()
}

// Async runs work on its own goroutine and applies the result under the
// loop lock. It has the signature of tools.AsyncFunc.
func (l *Loop) Async(work func(ctx context.Context) (func() error, error)) {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		apply, err := work(l.ctx)
		if err != nil {
			l.logger.Debug("background work failed", zap.Error(err))
			return
		}
		if apply == nil || l.ctx.Err() != nil {
			return
		}
		l.Do(func() {
			if err := apply(); err != nil {
				l.logger.Warn("apply background result", zap.Error(err))
			}
		})
	}()
}

// Stop cancels outstanding work and waits for it to finish.
func (l *Loop) Stop() {
	l.cancel()
	l.wg.Wait()
}

var _ tools.AsyncFunc = (*Loop)(nil).Async
