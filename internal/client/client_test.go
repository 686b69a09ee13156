package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/todomini/todomini-server/internal/clock"
	"github.com/todomini/todomini-server/internal/todo/handler"
	"github.com/todomini/todomini-server/internal/todo/notify"
	"github.com/todomini/todomini-server/internal/todo/repository"
	"github.com/todomini/todomini-server/internal/todo/service"
	"github.com/todomini/todomini-server/pkg/middleware"
)

func testServer(t *testing.T, extra ...gin.HandlerFunc) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := repository.NewMemoryRepo()
	bus := notify.NewBroadcaster()
	g := gin.New()
	handler.RegisterTodoRoutes(g,
		service.NewMutationService(store, clock.Real{}, bus, ""),
		service.NewChangePoller(store, clock.Real{}, bus, 0),
		extra...)
	srv := httptest.NewServer(g)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_PutPollRemove(t *testing.T) {
	srv := testServer(t)
	c, err := New(srv.URL, "")
	require.NoError(t, err)
	ctx := context.Background()

	ts, err := c.Put(ctx, "home", "Shopping.txt", "* [ ] milk")
	require.NoError(t, err)

	snap, err := c.Poll(ctx, "home", 0, 1)
	require.NoError(t, err)
	require.True(t, snap.Changed())
	assert.Equal(t, ts, snap.Timestamp)
	assert.Equal(t, "* [ ] milk", snap.Files["Shopping.txt"])

	snap, err = c.Poll(ctx, "home", ts, 1)
	require.NoError(t, err)
	assert.False(t, snap.Changed())
	assert.Equal(t, ts, snap.Timestamp)

	_, err = c.Remove(ctx, "home", "Shopping.txt")
	require.NoError(t, err)
	snap, err = c.Poll(ctx, "home", ts, 5)
	require.NoError(t, err)
	assert.False(t, snap.Changed())
}

func TestClient_Rejected(t *testing.T) {
	srv := testServer(t)
	c, err := New(srv.URL, "")
	require.NoError(t, err)
	_, err = c.Put(context.Background(), "home", "notes.md", "x")
	assert.ErrorIs(t, err, ErrRejected)
}

func TestClient_ErrorBody(t *testing.T) {
	deny := func(c *gin.Context) { c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "folder not permitted by token"}) }
	srv := testServer(t, deny)
	c, err := New(srv.URL, "tok")
	require.NoError(t, err)
	_, err = c.Poll(context.Background(), "home", 0, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "folder not permitted")
}

func TestClient_SendsBearerToken(t *testing.T) {
	var seen string
	srv := testServer(t, func(c *gin.Context) {
		seen = c.GetHeader("Authorization")
		c.Next()
	}, middleware.FolderScope())
	c, err := New(srv.URL, "abc")
	require.NoError(t, err)
	_, err = c.Poll(context.Background(), "home", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "Bearer abc", seen)
}

func TestClient_WatchDeliversChanges(t *testing.T) {
	srv := testServer(t)
	c, err := New(srv.URL, "")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err = c.Put(ctx, "home", "Shopping.txt", "milk")
	require.NoError(t, err)

	got := make(chan *Snapshot, 4)
	done := make(chan error, 1)
	go func() {
		done <- c.Watch(ctx, "home", 0, 5, func(s *Snapshot) { got <- s }, nil)
	}()

	first := <-got
	assert.Equal(t, "milk", first.Files["Shopping.txt"])

	_, err = c.Put(ctx, "home", "Shopping.txt", "eggs")
	require.NoError(t, err)
	select {
	case second := <-got:
		assert.Equal(t, "eggs", second.Files["Shopping.txt"])
	case <-ctx.Done():
		t.Fatal("watch did not see the second write")
	}

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
