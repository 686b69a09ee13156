// Package client talks to a todo server: it long-polls a folder and issues
// writes.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// ErrRejected is returned when the server answered null: the filename was
// not accepted and nothing was written.
var ErrRejected = errors.New("client: filename rejected by server")

// Snapshot is the decoded poll response. Files is nil when nothing changed.
type Snapshot struct {
	Timestamp          float64            `json:"timestamp"`
	Files              map[string]string  `json:"files,omitempty"`
	ModifiedTimestamps map[string]float64 `json:"modifiedTimestamps,omitempty"`
}

// Changed reports whether the snapshot carries folder contents.
func (s *Snapshot) Changed() bool { return s.Files != nil }

// Client is safe for concurrent use.
type Client struct {
	base  *url.URL
	token string
	http  *http.Client
}

// New returns a client for the server at baseURL. token, when non-empty, is
// sent as a bearer token.
func New(baseURL, token string) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("client: bad base url: %w", err)
	}
	// the server holds polls for up to 25s
	return &Client{base: u, token: token, http: &http.Client{Timeout: 40 * time.Second}}, nil
}

func (c *Client) folderURL(folder string) *url.URL {
	return c.base.JoinPath(url.PathEscape(folder))
}

// Poll asks whether folder changed after since, waiting up to maxWait
// seconds on the server.
func (c *Client) Poll(ctx context.Context, folder string, since float64, maxWait int) (*Snapshot, error) {
	u := c.folderURL(folder)
	q := u.Query()
	q.Set("since", strconv.FormatFloat(since, 'f', -1, 64))
	q.Set("maxWait", strconv.Itoa(maxWait))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := c.do(req, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Put creates or overwrites folder/filename and returns its new timestamp.
func (c *Client) Put(ctx context.Context, folder, filename, content string) (float64, error) {
	return c.write(ctx, folder, map[string]string{"filename": filename, "content": content})
}

// Remove deletes folder/filename; removing a missing file is not an error.
func (c *Client) Remove(ctx context.Context, folder, filename string) (float64, error) {
	return c.write(ctx, folder, map[string]string{"delete": filename})
}

func (c *Client) write(ctx context.Context, folder string, body map[string]string) (float64, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.folderURL(folder).String(), bytes.NewReader(raw))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	var ts *float64
	if err := c.do(req, &ts); err != nil {
		return 0, err
	}
	if ts == nil {
		return 0, ErrRejected
	}
	return *ts, nil
}

func (c *Client) do(req *http.Request, out interface{}) error {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("client: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			return fmt.Errorf("client: %s %s: %d: %s", req.Method, req.URL.Path, resp.StatusCode, e.Error)
		}
		return fmt.Errorf("client: %s %s: unexpected status %d", req.Method, req.URL.Path, resp.StatusCode)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("client: decode response: %w", err)
	}
	return nil
}

// Watch long-polls folder until ctx is done, calling fn with every changed
// snapshot. Transport errors are passed to onErr (when set) and retried
// after a pause. An empty folder answers immediately, so quick unchanged
// answers are spaced at least minInterval apart.
func (c *Client) Watch(ctx context.Context, folder string, since float64, maxWait int, fn func(*Snapshot), onErr func(error)) error {
	const (
		backoff     = 2 * time.Second
		minInterval = time.Second
	)
	for {
		start := time.Now()
		snap, err := c.Poll(ctx, folder, since, maxWait)
		var pause time.Duration
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if onErr != nil {
				onErr(err)
			}
			pause = backoff
		case snap.Changed():
			fn(snap)
			since = snap.Timestamp
		default:
			since = snap.Timestamp
			pause = minInterval - time.Since(start)
		}
		if pause <= 0 {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}
		select {
		case <-time.After(pause):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
