package sync

import (
	"context"
	"sync/atomic"

	"github.com/fieldsales/vendorsync/internal/infrastructure/connectivity"
	"go.uber.org/zap"
)

// FullSyncer runs a full sync
type FullSyncer interface {
	FullSync(ctx context.Context) *Result
}

// AutoSync runs a full sync every time connectivity transitions into
// Connected. It is the only sync trigger that is not user-initiated.
type AutoSync struct {
	syncer     FullSyncer
	watcher    connectivity.Watcher
	onComplete func(*Result)
	logger     *zap.Logger

	runs       atomic.Int64
	ready      chan struct{}
	readyFired atomic.Bool
}

// NewAutoSync creates an AutoSync. onComplete may be nil.
func NewAutoSync(syncer FullSyncer, watcher connectivity.Watcher, onComplete func(*Result), logger *zap.Logger) *AutoSync {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AutoSync{
		syncer:     syncer,
		watcher:    watcher,
		onComplete: onComplete,
		logger:     logger,
		ready:      make(chan struct{}),
	}
}

// Ready is closed once Run has subscribed to the watcher
func (a *AutoSync) Ready() <-chan struct{} {
	return a.ready
}

// Runs returns the number of syncs started by the listener
func (a *AutoSync) Runs() int64 {
	return a.runs.Load()
}

// Run listens until ctx is cancelled. The watcher only publishes
// transitions, so every Connected received starts a sync. Syncs run on the
// listener goroutine; transitions arriving during a run collapse into the
// latest state.
func (a *AutoSync) Run(ctx context.Context) error {
	states, unsubscribe := a.watcher.Subscribe()
	defer unsubscribe()
	if a.readyFired.CompareAndSwap(false, true) {
		close(a.ready)
	}

	a.logger.Info("Auto-sync listener started")
	for {
		select {
		case <-ctx.Done():
			a.logger.Info("Auto-sync listener stopped")
			return nil
		case state, ok := <-states:
			if !ok {
				return nil
			}
			if state != connectivity.StateConnected {
				continue
			}

			a.logger.Info("Connection detected, starting automatic sync")
			a.runs.Add(1)
			result := a.syncer.FullSync(WithTrigger(ctx, TriggerAuto))
			a.logger.Info("Automatic sync finished",
				zap.Bool("success", result.Success),
				zap.String("message", result.Message),
			)
			if a.onComplete != nil {
				a.onComplete(result)
			}
		}
	}
}
