package repository

import (
	"context"
	"sync"
	"time"

	"github.com/todomini/todomini-server/internal/todo"
)

type docKey struct {
	folder   string
	filename string
}

// MemoryRepo is an in-memory Store used for single-process deployments and
// unit tests.
type MemoryRepo struct {
	mu    sync.RWMutex
	store map[docKey]*todo.Document
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{store: make(map[docKey]*todo.Document)}
}

func (m *MemoryRepo) Upsert(_ context.Context, folder, filename, content string, at time.Time) error {
	at = todo.Truncate(at)
	m.mu.Lock()
	defer m.mu.Unlock()
	k := docKey{folder, filename}
	if d, ok := m.store[k]; ok {
		d.Content = content
		d.ModifiedAt = at
		return nil
	}
	m.store[k] = &todo.Document{
		Folder:     folder,
		Filename:   filename,
		Content:    content,
		CreatedAt:  at,
		ModifiedAt: at,
	}
	return nil
}

func (m *MemoryRepo) Delete(_ context.Context, folder, filename string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := docKey{folder, filename}
	if _, ok := m.store[k]; !ok {
		return false, nil
	}
	delete(m.store, k)
	return true, nil
}

func (m *MemoryRepo) Latest(_ context.Context, folder string) (*todo.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var latest *todo.Document
	for k, d := range m.store {
		if k.folder != folder {
			continue
		}
		if latest == nil || d.ModifiedAt.After(latest.ModifiedAt) ||
			(d.ModifiedAt.Equal(latest.ModifiedAt) && d.Filename < latest.Filename) {
			latest = d
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (m *MemoryRepo) List(_ context.Context, folder string) ([]*todo.Document, error) {
	m.mu.RLock()
	out := make([]*todo.Document, 0)
	for k, d := range m.store {
		if k.folder == folder {
			cp := *d
			out = append(out, &cp)
		}
	}
	m.mu.RUnlock()
	sortNewestFirst(out)
	return out, nil
}
