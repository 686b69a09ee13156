package repository

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/todomini/todomini-server/internal/storage"
	"github.com/todomini/todomini-server/internal/todo"
)

const (
	metaCreated  = "created-at"
	metaModified = "modified-at"
)

// ObjectStore is the subset of an object storage client ObjectRepo needs.
// *storage.MinIOStorage satisfies it.
type ObjectStore interface {
	PutObject(ctx context.Context, key string, data []byte, meta map[string]string) error
	StatObject(ctx context.Context, key string) (map[string]string, error)
	GetObject(ctx context.Context, key string) ([]byte, map[string]string, error)
	ListKeys(ctx context.Context, prefix string) ([]string, error)
	RemoveObject(ctx context.Context, key string) error
}

// ObjectRepo stores one object per todo file at "<escaped folder>/<filename>",
// the same layout as a plain data directory. The root folder lives under
// rootSegment. Timestamps live in user
// metadata because object LastModified only has second precision.
//
// Reads list and stat the folder's objects, so this backend suits the small
// folders todo lists produce rather than large collections.
type ObjectRepo struct {
	objects ObjectStore
}

func NewObjectRepo(objects ObjectStore) *ObjectRepo {
	return &ObjectRepo{objects: objects}
}

// rootSegment holds the root folder's objects. url.PathEscape always escapes
// ';', so no named folder maps onto it.
const rootSegment = ";root"

func folderPrefix(folder string) string {
	if folder == "" {
		return rootSegment + "/"
	}
	return url.PathEscape(folder) + "/"
}

func (o *ObjectRepo) Upsert(ctx context.Context, folder, filename, content string, at time.Time) error {
	key := folderPrefix(folder) + filename
	us := strconv.FormatInt(todo.Truncate(at).UnixMicro(), 10)
	created := us
	meta, err := o.objects.StatObject(ctx, key)
	switch {
	case err == nil:
		if v, ok := meta[metaCreated]; ok {
			created = v
		}
	case !errors.Is(err, storage.ErrObjectNotFound):
		return fmt.Errorf("stat %s: %w", key, err)
	}
	err = o.objects.PutObject(ctx, key, []byte(content), map[string]string{
		metaCreated:  created,
		metaModified: us,
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

func (o *ObjectRepo) Delete(ctx context.Context, folder, filename string) (bool, error) {
	key := folderPrefix(folder) + filename
	if _, err := o.objects.StatObject(ctx, key); err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("stat %s: %w", key, err)
	}
	if err := o.objects.RemoveObject(ctx, key); err != nil {
		return false, fmt.Errorf("remove %s: %w", key, err)
	}
	return true, nil
}

func (o *ObjectRepo) Latest(ctx context.Context, folder string) (*todo.Document, error) {
	keys, err := o.objects.ListKeys(ctx, folderPrefix(folder))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", folder, err)
	}
	var latest *todo.Document
	for _, key := range keys {
		meta, err := o.objects.StatObject(ctx, key)
		if errors.Is(err, storage.ErrObjectNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", key, err)
		}
		d := docFromMeta(folder, key, meta)
		if latest == nil || d.ModifiedAt.After(latest.ModifiedAt) ||
			(d.ModifiedAt.Equal(latest.ModifiedAt) && d.Filename < latest.Filename) {
			latest = d
		}
	}
	if latest == nil {
		return nil, nil
	}
	data, _, err := o.objects.GetObject(ctx, folderPrefix(folder)+latest.Filename)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", folder, latest.Filename, err)
	}
	latest.Content = string(data)
	return latest, nil
}

func (o *ObjectRepo) List(ctx context.Context, folder string) ([]*todo.Document, error) {
	keys, err := o.objects.ListKeys(ctx, folderPrefix(folder))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", folder, err)
	}
	out := make([]*todo.Document, 0, len(keys))
	for _, key := range keys {
		data, meta, err := o.objects.GetObject(ctx, key)
		if errors.Is(err, storage.ErrObjectNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get %s: %w", key, err)
		}
		d := docFromMeta(folder, key, meta)
		d.Content = string(data)
		out = append(out, d)
	}
	sortNewestFirst(out)
	return out, nil
}

func docFromMeta(folder, key string, meta map[string]string) *todo.Document {
	modified := parseMicros(meta[metaModified])
	created := modified
	if v, ok := meta[metaCreated]; ok {
		created = parseMicros(v)
	}
	return &todo.Document{
		Folder:     folder,
		Filename:   key[strings.LastIndex(key, "/")+1:],
		CreatedAt:  created,
		ModifiedAt: modified,
	}
}

func parseMicros(s string) time.Time {
	v, _ := strconv.ParseInt(s, 10, 64)
	return time.UnixMicro(v).UTC()
}
