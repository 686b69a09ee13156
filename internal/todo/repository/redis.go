package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/todomini/todomini-server/internal/todo"
)

// RedisRepo implements Store on Redis. Each folder uses three keys:
//
//	<prefix><folder>:content   hash  filename -> content
//	<prefix><folder>:created   hash  filename -> createdAt (µs)
//	<prefix><folder>:modified  zset  filename scored by modifiedAt (µs)
//
// Scores stay below 2^53 for any realistic date, so float64 holds them exactly.
type RedisRepo struct {
	client *redis.Client
	prefix string
}

// NewRedisRepo creates a Redis-backed store. Prefix may be empty.
func NewRedisRepo(client *redis.Client, prefix string) *RedisRepo {
	if prefix == "" {
		prefix = "todo:"
	}
	return &RedisRepo{client: client, prefix: prefix}
}

func (r *RedisRepo) contentKey(folder string) string  { return r.prefix + folder + ":content" }
func (r *RedisRepo) createdKey(folder string) string  { return r.prefix + folder + ":created" }
func (r *RedisRepo) modifiedKey(folder string) string { return r.prefix + folder + ":modified" }

func (r *RedisRepo) Upsert(ctx context.Context, folder, filename, content string, at time.Time) error {
	us := todo.Truncate(at).UnixMicro()
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, r.contentKey(folder), filename, content)
		p.HSetNX(ctx, r.createdKey(folder), filename, us)
		p.ZAdd(ctx, r.modifiedKey(folder), redis.Z{Score: float64(us), Member: filename})
		return nil
	})
	if err != nil {
		return fmt.Errorf("upsert %s/%s: %w", folder, filename, err)
	}
	return nil
}

func (r *RedisRepo) Delete(ctx context.Context, folder, filename string) (bool, error) {
	var removed *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HDel(ctx, r.contentKey(folder), filename)
		p.HDel(ctx, r.createdKey(folder), filename)
		removed = p.ZRem(ctx, r.modifiedKey(folder), filename)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("delete %s/%s: %w", folder, filename, err)
	}
	return removed.Val() > 0, nil
}

func (r *RedisRepo) Latest(ctx context.Context, folder string) (*todo.Document, error) {
	docs, err := r.load(ctx, folder, 0)
	if err != nil || len(docs) == 0 {
		return nil, err
	}
	return docs[0], nil
}

func (r *RedisRepo) List(ctx context.Context, folder string) ([]*todo.Document, error) {
	return r.load(ctx, folder, -1)
}

// load reads the newest documents of folder, up to index stop (-1 for all).
func (r *RedisRepo) load(ctx context.Context, folder string, stop int64) ([]*todo.Document, error) {
	zs, err := r.client.ZRevRangeWithScores(ctx, r.modifiedKey(folder), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", folder, err)
	}
	out := make([]*todo.Document, 0, len(zs))
	if len(zs) == 0 {
		return out, nil
	}
	names := make([]string, len(zs))
	for i, z := range zs {
		names[i] = z.Member.(string)
	}

	var contents, created *redis.SliceCmd
	_, err = r.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		contents = p.HMGet(ctx, r.contentKey(folder), names...)
		created = p.HMGet(ctx, r.createdKey(folder), names...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", folder, err)
	}

	for i, z := range zs {
		content, ok := contents.Val()[i].(string)
		if !ok {
			// deleted between the two reads
			continue
		}
		modified := int64(z.Score)
		createdUs := modified
		if s, ok := created.Val()[i].(string); ok {
			if v, err := strconv.ParseInt(s, 10, 64); err == nil {
				createdUs = v
			}
		}
		out = append(out, &todo.Document{
			Folder:     folder,
			Filename:   names[i],
			Content:    content,
			CreatedAt:  time.UnixMicro(createdUs).UTC(),
			ModifiedAt: time.UnixMicro(modified).UTC(),
		})
	}
	sortNewestFirst(out)
	return out, nil
}
