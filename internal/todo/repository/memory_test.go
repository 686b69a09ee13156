package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryRepo(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) Store { return NewMemoryRepo() })
}

func TestMemoryRepoReturnsCopies(t *testing.T) {
	r := NewMemoryRepo()
	ctx := context.Background()
	require.NoError(t, r.Upsert(ctx, "home", "A.txt", "a", time.Now()))

	got, err := r.Latest(ctx, "home")
	require.NoError(t, err)
	got.Content = "mutated"

	again, err := r.Latest(ctx, "home")
	require.NoError(t, err)
	require.Equal(t, "a", again.Content)
}
