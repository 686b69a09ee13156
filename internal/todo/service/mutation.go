package service

import (
	"context"

	"github.com/todomini/todomini-server/internal/clock"
	"github.com/todomini/todomini-server/internal/todo"
	"github.com/todomini/todomini-server/internal/todo/notify"
	"github.com/todomini/todomini-server/internal/todo/repository"
	"github.com/todomini/todomini-server/pkg/logger"
	"github.com/todomini/todomini-server/pkg/metrics"
	"go.uber.org/zap"
)

// MutationService validates and applies writes. Results are epoch seconds;
// ok is false when the filename was rejected, in which case nothing was
// written.
type MutationService struct {
	store    repository.Store
	clock    clock.Clock
	notifier notify.Notifier
	suffix   string
}

// NewMutationService wires a store and clock. notifier may be nil; suffix
// defaults to todo.DefaultSuffix.
func NewMutationService(store repository.Store, clk clock.Clock, notifier notify.Notifier, suffix string) *MutationService {
	if suffix == "" {
		suffix = todo.DefaultSuffix
	}
	return &MutationService{store: store, clock: clk, notifier: notifier, suffix: suffix}
}

// Upsert creates or overwrites folder/filename and returns its new
// modification time.
func (s *MutationService) Upsert(ctx context.Context, folder, filename, content string) (ts float64, ok bool, err error) {
	if !todo.ValidFilename(filename, s.suffix) {
		metrics.Mutations.WithLabelValues("upsert", "rejected").Inc()
		return 0, false, nil
	}
	now := todo.Truncate(s.clock.Now())
	if err := s.store.Upsert(ctx, folder, filename, content, now); err != nil {
		metrics.Mutations.WithLabelValues("upsert", "error").Inc()
		return 0, false, err
	}
	metrics.Mutations.WithLabelValues("upsert", "applied").Inc()
	s.publish(ctx, folder)
	return todo.EpochSeconds(now), true, nil
}

// Delete removes folder/filename if present and returns the current time,
// whether or not anything was removed.
func (s *MutationService) Delete(ctx context.Context, folder, filename string) (ts float64, ok bool, err error) {
	if !todo.ValidFilename(filename, s.suffix) {
		metrics.Mutations.WithLabelValues("delete", "rejected").Inc()
		return 0, false, nil
	}
	removed, err := s.store.Delete(ctx, folder, filename)
	if err != nil {
		metrics.Mutations.WithLabelValues("delete", "error").Inc()
		return 0, false, err
	}
	metrics.Mutations.WithLabelValues("delete", "applied").Inc()
	if removed {
		s.publish(ctx, folder)
	}
	return todo.EpochSeconds(todo.Truncate(s.clock.Now())), true, nil
}

// List returns the documents of folder, newest first.
func (s *MutationService) List(ctx context.Context, folder string) ([]*todo.Document, error) {
	return s.store.List(ctx, folder)
}

func (s *MutationService) publish(ctx context.Context, folder string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Publish(ctx, folder); err != nil {
		logger.L().Warn("change notification failed", zap.String("folder", folder), zap.Error(err))
	}
}
