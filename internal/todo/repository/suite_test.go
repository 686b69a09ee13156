package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// runStoreSuite exercises the Store contract against any backend. Each call
// must receive a fresh, empty store.
func runStoreSuite(t *testing.T, newStore func(t *testing.T) Store) {
	t.Helper()
	base := time.Date(2019, 2, 11, 11, 34, 31, 144612000, time.UTC)

	t.Run("EmptyFolder", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		latest, err := s.Latest(ctx, "home")
		require.NoError(t, err)
		require.Nil(t, latest)
		list, err := s.List(ctx, "home")
		require.NoError(t, err)
		require.Empty(t, list)
	})

	t.Run("UpsertCreatesThenOverwrites", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Upsert(ctx, "home", "Shopping.txt", "* [ ] milk", base))

		got, err := s.Latest(ctx, "home")
		require.NoError(t, err)
		require.NotNil(t, got)
		require.Equal(t, "home", got.Folder)
		require.Equal(t, "Shopping.txt", got.Filename)
		require.Equal(t, "* [ ] milk", got.Content)
		require.True(t, got.CreatedAt.Equal(base))
		require.True(t, got.ModifiedAt.Equal(base))

		later := base.Add(3 * time.Second)
		require.NoError(t, s.Upsert(ctx, "home", "Shopping.txt", "* [x] milk", later))
		got, err = s.Latest(ctx, "home")
		require.NoError(t, err)
		require.Equal(t, "* [x] milk", got.Content)
		require.True(t, got.CreatedAt.Equal(base), "createdAt must survive updates")
		require.True(t, got.ModifiedAt.Equal(later))

		list, err := s.List(ctx, "home")
		require.NoError(t, err)
		require.Len(t, list, 1)
	})

	t.Run("ListNewestFirstAndFolderIsolation", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Upsert(ctx, "home", "A.txt", "a", base))
		require.NoError(t, s.Upsert(ctx, "home", "B.txt", "b", base.Add(2*time.Second)))
		require.NoError(t, s.Upsert(ctx, "home", "C.txt", "c", base.Add(time.Second)))
		require.NoError(t, s.Upsert(ctx, "work", "Z.txt", "z", base.Add(10*time.Second)))

		latest, err := s.Latest(ctx, "home")
		require.NoError(t, err)
		require.Equal(t, "B.txt", latest.Filename)

		list, err := s.List(ctx, "home")
		require.NoError(t, err)
		require.Len(t, list, 3)
		require.Equal(t, []string{"B.txt", "C.txt", "A.txt"}, []string{list[0].Filename, list[1].Filename, list[2].Filename})
		require.True(t, list[1].ModifiedAt.Equal(base.Add(time.Second)))
	})

	t.Run("DeleteIsIdempotent", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Upsert(ctx, "home", "A.txt", "a", base))

		removed, err := s.Delete(ctx, "home", "missing.txt")
		require.NoError(t, err)
		require.False(t, removed)

		removed, err = s.Delete(ctx, "home", "A.txt")
		require.NoError(t, err)
		require.True(t, removed)

		removed, err = s.Delete(ctx, "home", "A.txt")
		require.NoError(t, err)
		require.False(t, removed)

		latest, err := s.Latest(ctx, "home")
		require.NoError(t, err)
		require.Nil(t, latest)
	})
}
