package repository

import (
	"context"
	"sort"
	"time"

	"github.com/todomini/todomini-server/internal/todo"
)

// Store persists todo documents keyed by (folder, filename).
//
// Implementations must make each Upsert and Delete atomic, and must order
// List results by ModifiedAt descending.
type Store interface {
	// Upsert creates the document or overwrites its content. CreatedAt is
	// only set on creation; ModifiedAt is always set to at.
	Upsert(ctx context.Context, folder, filename, content string, at time.Time) error
	// Delete removes the document and reports whether it existed.
	Delete(ctx context.Context, folder, filename string) (bool, error)
	// Latest returns the most recently modified document in folder, or nil
	// when the folder is empty.
	Latest(ctx context.Context, folder string) (*todo.Document, error)
	// List returns every document in folder, newest first.
	List(ctx context.Context, folder string) ([]*todo.Document, error)
}

// sortNewestFirst orders docs by ModifiedAt descending, then filename.
func sortNewestFirst(docs []*todo.Document) {
	sort.SliceStable(docs, func(i, j int) bool {
		if !docs[i].ModifiedAt.Equal(docs[j].ModifiedAt) {
			return docs[i].ModifiedAt.After(docs[j].ModifiedAt)
		}
		return docs[i].Filename < docs[j].Filename
	})
}
