package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/todomini/todomini-server/internal/clock"
	"github.com/todomini/todomini-server/internal/config"
	"github.com/todomini/todomini-server/internal/tokens"
)

const jwtSecret = "app-test-secret-32-bytes-xxxxxxxxxx"

func baseConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Environment: "test", WriteTimeout: 35 * time.Second},
		Store:  config.StoreConfig{Backend: config.BackendMemory},
		Redis:  config.RedisConfig{Prefix: "todo:"},
		Poll:   config.PollConfig{MaxWait: 25, Notify: config.NotifyLocal},
		Todo:   config.TodoConfig{Suffix: ".txt"},
	}
}

func newApp(t *testing.T, cfg *config.Config, opts Options) *App {
	t.Helper()
	if opts.Clock == nil {
		opts.Clock = clock.NewFake(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	}
	a, err := New(context.Background(), cfg, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func serve(a *App, method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.Engine.ServeHTTP(w, req)
	return w
}

func roundTrip(t *testing.T, a *App, token string) {
	t.Helper()
	w := serve(a, http.MethodPost, "/home", `{"filename":"Shopping.txt","content":"milk"}`, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var ts float64
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ts))

	w = serve(a, http.MethodGet, "/home?since=0&maxWait=1", "", token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var out struct {
		Timestamp float64           `json:"timestamp"`
		Files     map[string]string `json:"files"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, ts, out.Timestamp)
	assert.Equal(t, map[string]string{"Shopping.txt": "milk"}, out.Files)
}

func TestNew_MemoryBackend(t *testing.T) {
	a := newApp(t, baseConfig(), Options{})
	roundTrip(t, a, "")

	w := serve(a, http.MethodGet, "/ready", "", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(a, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "todomini_mutations_total")
	assert.Contains(t, w.Body.String(), "todomini_polls_total")

	w = serve(a, http.MethodOptions, "/home", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestNew_SQLiteBackend(t *testing.T) {
	cfg := baseConfig()
	cfg.Store.Backend = config.BackendSQLite
	cfg.SQL.SQLitePath = filepath.Join(t.TempDir(), "todo.db")
	a := newApp(t, cfg, Options{})
	roundTrip(t, a, "")
	assert.Equal(t, http.StatusOK, serve(a, http.MethodGet, "/ready", "", "").Code)
}

func TestNew_RedisBackendAndNotifier(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()
	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	defer client.Close()

	cfg := baseConfig()
	cfg.Store.Backend = config.BackendRedis
	cfg.Poll.Notify = config.NotifyRedis
	a := newApp(t, cfg, Options{Redis: client})
	roundTrip(t, a, "")
	assert.NotEmpty(t, m.Keys())
}

func TestNew_JWTAuthAndFolderScope(t *testing.T) {
	cfg := baseConfig()
	cfg.Auth.JWTSecret = jwtSecret
	a := newApp(t, cfg, Options{})

	assert.Equal(t, http.StatusUnauthorized, serve(a, http.MethodGet, "/home?maxWait=0", "", "").Code)

	home, err := tokens.GenerateAccessToken(jwtSecret, "alice", []string{"home"}, time.Minute)
	require.NoError(t, err)
	roundTrip(t, a, home)
	assert.Equal(t, http.StatusForbidden, serve(a, http.MethodGet, "/work?maxWait=0", "", home).Code)

	// infrastructure routes stay open
	assert.Equal(t, http.StatusOK, serve(a, http.MethodGet, "/health", "", "").Code)
}

func TestNew_RateLimit(t *testing.T) {
	cfg := baseConfig()
	cfg.RateLimit = config.RateLimitConfig{Enabled: true, RPS: 0.1, Burst: 1}
	a := newApp(t, cfg, Options{})

	assert.Equal(t, http.StatusOK, serve(a, http.MethodGet, "/home?maxWait=0", "", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(a, http.MethodGet, "/home?maxWait=0", "", "").Code)
}

func TestNew_UnknownBackend(t *testing.T) {
	cfg := baseConfig()
	cfg.Store.Backend = "dynamo"
	_, err := New(context.Background(), cfg, Options{})
	require.Error(t, err)
}

func TestNew_RedisUnreachable(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	host, port := m.Host(), m.Port()
	m.Close()

	cfg := baseConfig()
	cfg.Store.Backend = config.BackendRedis
	cfg.Redis.Host, cfg.Redis.Port = host, port
	_, err = New(context.Background(), cfg, Options{})
	require.Error(t, err)
}
