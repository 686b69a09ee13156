// Package handler exposes the todo sync API over gin.
package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/todomini/todomini-server/internal/todo"
	"github.com/todomini/todomini-server/pkg/logger"
	"go.uber.org/zap"
)

// ErrNoParameters is the body of a POST carrying neither a write nor a delete.
const ErrNoParameters = "Request for those parameters not found."

// Mutator applies writes to a folder.
type Mutator interface {
	Upsert(ctx context.Context, folder, filename, content string) (float64, bool, error)
	Delete(ctx context.Context, folder, filename string) (float64, bool, error)
	List(ctx context.Context, folder string) ([]*todo.Document, error)
}

// Poller answers long polls.
type Poller interface {
	Poll(ctx context.Context, folder string, since time.Time, maxWait int) (*todo.PollResult, error)
	DefaultWait() int
}

type writeRequest struct {
	Filename *string `form:"filename" json:"filename"`
	Content  *string `form:"content" json:"content"`
	Delete   *string `form:"delete" json:"delete"`
}

// RegisterTodoRoutes mounts the poll and write endpoints on r. The folder is
// the single path segment; "/" addresses the empty folder. Extra handlers
// (auth, scope checks) run before each route.
func RegisterTodoRoutes(r gin.IRouter, mut Mutator, poller Poller, extra ...gin.HandlerFunc) {
	h := &todoHandler{mut: mut, poller: poller}

	get := append(append([]gin.HandlerFunc{}, extra...), h.get)
	post := append(append([]gin.HandlerFunc{}, extra...), h.post)
	list := append(append([]gin.HandlerFunc{}, extra...), h.list)

	r.GET("/", get...)
	r.POST("/", post...)
	r.GET("/:folder", get...)
	r.POST("/:folder", post...)
	r.GET("/api/v1/folders/:folder/documents", list...)
}

type todoHandler struct {
	mut    Mutator
	poller Poller
}

func (h *todoHandler) get(c *gin.Context) {
	folder := c.Param("folder")
	if name, ok := c.GetQuery("delete"); ok {
		h.respondWrite(c, folder, "delete", func(ctx context.Context) (float64, bool, error) {
			return h.mut.Delete(ctx, folder, name)
		})
		return
	}

	since := todo.FromEpochSeconds(parseSince(firstQuery(c, "since", "timestamp")))
	wait := parseWait(firstQuery(c, "maxWait", "live_for"), h.poller.DefaultWait())

	res, err := h.poller.Poll(c.Request.Context(), folder, since, wait)
	if err != nil {
		if c.Request.Context().Err() != nil {
			// client went away
			c.Abort()
			return
		}
		logger.L().Error("poll failed", zap.String("folder", folder), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, pollBody(res))
}

func (h *todoHandler) post(c *gin.Context) {
	folder := c.Param("folder")
	var req writeRequest
	if err := c.ShouldBind(&req); err != nil {
		logger.Debugf("todo: unreadable write body for folder %q: %v", folder, err)
		req = writeRequest{}
	}

	switch {
	case req.Filename != nil && req.Content != nil:
		h.respondWrite(c, folder, "upsert", func(ctx context.Context) (float64, bool, error) {
			return h.mut.Upsert(ctx, folder, *req.Filename, *req.Content)
		})
	case req.Delete != nil:
		h.respondWrite(c, folder, "delete", func(ctx context.Context) (float64, bool, error) {
			return h.mut.Delete(ctx, folder, *req.Delete)
		})
	default:
		c.JSON(http.StatusNotFound, gin.H{"error": ErrNoParameters})
	}
}

func (h *todoHandler) respondWrite(c *gin.Context, folder, op string, fn func(context.Context) (float64, bool, error)) {
	ts, ok, err := fn(c.Request.Context())
	if err != nil {
		logger.L().Error("write failed", zap.String("op", op), zap.String("folder", folder), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !ok {
		c.JSON(http.StatusOK, nil)
		return
	}
	c.JSON(http.StatusOK, ts)
}

type listing struct {
	Filename   string    `json:"filename"`
	CreatedAt  time.Time `json:"createdAt"`
	ModifiedAt time.Time `json:"modifiedAt"`
	DaysUsed   float64   `json:"daysUsed"`
}

func (h *todoHandler) list(c *gin.Context) {
	folder := c.Param("folder")
	docs, err := h.mut.List(c.Request.Context(), folder)
	if err != nil {
		logger.L().Error("list failed", zap.String("folder", folder), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	out := make([]listing, 0, len(docs))
	for _, d := range docs {
		out = append(out, listing{
			Filename:   d.Filename,
			CreatedAt:  d.CreatedAt,
			ModifiedAt: d.ModifiedAt,
			DaysUsed:   d.ModifiedAt.Sub(d.CreatedAt).Hours() / 24,
		})
	}
	c.JSON(http.StatusOK, gin.H{"folder": folder, "documents": out})
}

func pollBody(res *todo.PollResult) gin.H {
	body := gin.H{"timestamp": todo.EpochSeconds(res.Timestamp)}
	if !res.Changed {
		return body
	}
	files := make(map[string]string, len(res.Files))
	modified := make(map[string]float64, len(res.Files))
	for _, d := range res.Files {
		files[d.Filename] = d.Content
		modified[d.Filename] = todo.EpochSeconds(d.ModifiedAt)
	}
	body["files"] = files
	body["modifiedTimestamps"] = modified
	body["creation_timestamps"] = modified
	return body
}

func firstQuery(c *gin.Context, names ...string) string {
	for _, n := range names {
		if v, ok := c.GetQuery(n); ok {
			return v
		}
	}
	return ""
}

// parseSince maps anything unparsable to zero. Non-finite values are left to
// todo.FromEpochSeconds.
func parseSince(v string) float64 {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0
	}
	return f
}

// parseWait accepts integers and integral floats ("25.0"); the poller clamps
// the range.
func parseWait(v string, def int) int {
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil && f == float64(int(f)) {
		return int(f)
	}
	return def
}
