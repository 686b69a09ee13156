// Package notify wakes long polls when a folder changes.
//
// A notification carries no data: it only tells a waiting poll to re-read
// the store, so dropped or duplicated signals never affect correctness.
package notify

import (
	"context"
	"sync"

	"github.com/todomini/todomini-server/pkg/metrics"
)

// Notifier publishes and delivers per-folder change signals.
type Notifier interface {
	// Publish signals every subscriber of folder.
	Publish(ctx context.Context, folder string) error
	// Subscribe returns a channel that receives a value after each change to
	// folder, and a cancel func the caller must invoke when done.
	Subscribe(folder string) (<-chan struct{}, func())
}

// Broadcaster is the in-process Notifier. Each subscriber channel has a
// buffer of one, so bursts of changes coalesce into a single wake-up and
// Publish never blocks.
type Broadcaster struct {
	mu      sync.RWMutex
	folders map[string]map[chan struct{}]struct{}
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{folders: make(map[string]map[chan struct{}]struct{})}
}

func (b *Broadcaster) Subscribe(folder string) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	b.mu.Lock()
	subs, ok := b.folders[folder]
	if !ok {
		subs = make(map[chan struct{}]struct{})
		b.folders[folder] = subs
	}
	subs[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(subs, ch)
			if len(subs) == 0 {
				delete(b.folders, folder)
			}
		})
	}
}

func (b *Broadcaster) Publish(_ context.Context, folder string) error {
	b.deliver(folder, "local")
	return nil
}

func (b *Broadcaster) deliver(folder, source string) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.folders[folder] {
		select {
		case ch <- struct{}{}:
		default:
			// a wake-up is already pending
		}
	}
	metrics.Notifications.WithLabelValues(source).Inc()
}

// Count returns the number of subscribers of folder.
func (b *Broadcaster) Count(folder string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.folders[folder])
}
