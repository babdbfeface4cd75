package engine

import (
	"context"
	"sync"
	"time"
)

// ExpiryDispatcher receives epoch-expiry events without the engine
// depending on the service layer directly.
type ExpiryDispatcher interface {
	DispatchMarketExpired(subjectID uint64, expiry time.Time)
}

// EpochWatcher periodically scans the factory's markets and dispatches
// one market.expired notification per epoch when a market crosses its
// expiry. Closing positions stays admin-driven; the watcher only
// signals.
type EpochWatcher struct {
	interval   time.Duration
	factory    *MarketFactory
	dispatcher ExpiryDispatcher

	mu       sync.Mutex
	notified map[string]time.Time // market id → expiry already announced
}

// NewEpochWatcher creates an EpochWatcher with the given scan interval.
func NewEpochWatcher(interval time.Duration, factory *MarketFactory, dispatcher ExpiryDispatcher) *EpochWatcher {
	return &EpochWatcher{
		interval:   interval,
		factory:    factory,
		dispatcher: dispatcher,
		notified:   make(map[string]time.Time),
	}
}

// Start launches a background goroutine that ticks at the configured
// interval. It stops when ctx is cancelled.
func (w *EpochWatcher) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case t := <-ticker.C:
				w.tick(t)
			}
		}
	}()
}

// tick announces every market whose current epoch has expired and has
// not been announced yet. A reset advances the expiry, so the next
// epoch is announced independently.
func (w *EpochWatcher) tick(now time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, m := range w.factory.List() {
		expiry := m.Expiry()
		if now.Before(expiry) {
			continue
		}
		if last, ok := w.notified[m.ID()]; ok && last.Equal(expiry) {
			continue
		}
		w.notified[m.ID()] = expiry
		if w.dispatcher != nil {
			w.dispatcher.DispatchMarketExpired(m.SubjectID(), expiry)
		}
	}
}
