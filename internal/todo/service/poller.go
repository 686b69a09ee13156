package service

import (
	"context"
	"errors"
	"time"

	"github.com/todomini/todomini-server/internal/clock"
	"github.com/todomini/todomini-server/internal/todo"
	"github.com/todomini/todomini-server/internal/todo/notify"
	"github.com/todomini/todomini-server/internal/todo/repository"
	"github.com/todomini/todomini-server/pkg/metrics"
)

// MaxWait is the upper bound, in seconds, of a single long poll.
const MaxWait = 25

// tick is the loop granularity.
const tick = time.Second

// ChangePoller answers "has folder changed since t?", holding the request
// open until a change appears or the wait budget runs out.
type ChangePoller struct {
	store    repository.Store
	clock    clock.Clock
	notifier notify.Notifier
	maxWait  int
}

// NewChangePoller wires the poller. notifier may be nil, in which case only
// the one-second tick wakes waiting polls. maxWait outside (0, MaxWait] is
// replaced by MaxWait.
func NewChangePoller(store repository.Store, clk clock.Clock, notifier notify.Notifier, maxWait int) *ChangePoller {
	if maxWait <= 0 || maxWait > MaxWait {
		maxWait = MaxWait
	}
	return &ChangePoller{store: store, clock: clk, notifier: notifier, maxWait: maxWait}
}

// DefaultWait is the wait applied when a client sends none.
func (p *ChangePoller) DefaultWait() int { return p.maxWait }

// ClampWait bounds a requested wait to [0, maxWait].
func (p *ChangePoller) ClampWait(wait int) int {
	if wait < 0 {
		return 0
	}
	if wait > p.maxWait {
		return p.maxWait
	}
	return wait
}

// Poll waits up to maxWait seconds for a document in folder to be modified
// after since.
//
// The loop reads the newest document once per tick. It stops early when the
// folder is empty or the newest document is newer than since. Notifications
// wake the loop between ticks without spending budget; the overall deadline
// still bounds the call. A wait of zero never reads the folder and answers
// with the unchanged sentinel.
func (p *ChangePoller) Poll(ctx context.Context, folder string, since time.Time, maxWait int) (result *todo.PollResult, err error) {
	maxWait = p.ClampWait(maxWait)
	start := p.clock.Now()
	deadline := start.Add(time.Duration(maxWait) * tick)

	metrics.ActivePolls.Inc()
	defer func() {
		metrics.ActivePolls.Dec()
		metrics.PollWait.Observe(p.clock.Now().Sub(start).Seconds())
		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			metrics.Polls.WithLabelValues("canceled").Inc()
		case err != nil:
			metrics.Polls.WithLabelValues("error").Inc()
		case result.Changed:
			metrics.Polls.WithLabelValues("changed").Inc()
		default:
			metrics.Polls.WithLabelValues("unchanged").Inc()
		}
	}()

	if maxWait == 0 {
		return &todo.PollResult{Timestamp: p.sentinel()}, nil
	}

	// subscribe before the first read so a write between the read and the
	// wait still wakes us
	var wake <-chan struct{}
	if p.notifier != nil {
		ch, cancel := p.notifier.Subscribe(folder)
		defer cancel()
		wake = ch
	}

	var last *todo.Document
	remaining := maxWait
	for {
		last, err = p.store.Latest(ctx, folder)
		if err != nil {
			return nil, err
		}
		if last == nil || last.ModifiedAt.After(since) {
			break
		}
		if remaining <= 0 || !p.clock.Now().Before(deadline) {
			break
		}
		select {
		case <-p.clock.After(tick):
			remaining--
		case <-wake:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if last != nil && last.ModifiedAt.After(since) {
		files, err := p.store.List(ctx, folder)
		if err != nil {
			return nil, err
		}
		if len(files) > 0 {
			return &todo.PollResult{Timestamp: files[0].ModifiedAt, Changed: true, Files: files}, nil
		}
		// emptied between the two reads
		last = nil
	}
	if last != nil {
		return &todo.PollResult{Timestamp: last.ModifiedAt}, nil
	}
	return &todo.PollResult{Timestamp: p.sentinel()}, nil
}

// sentinel is the timestamp reported when no document was seen: a time
// strictly before now, so a write landing in the current second is still
// newer on the next poll.
func (p *ChangePoller) sentinel() time.Time {
	return todo.Truncate(p.clock.Now().Add(-time.Second))
}
