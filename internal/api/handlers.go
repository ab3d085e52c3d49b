// ABOUTME: HTTP handlers for the feed cache: items, state, refresh, and event streams
// ABOUTME: Reads go to the local store; refreshes go through the state controller

package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/harper/feedsync/internal/content"
	"github.com/harper/feedsync/internal/feedstate"
	"github.com/harper/feedsync/internal/models"
	"github.com/harper/feedsync/internal/storage"
	"github.com/harper/feedsync/internal/syncer"
	"github.com/harper/feedsync/internal/timeutil"
)

// Handler handles HTTP requests for the feed cache.
type Handler struct {
	syncer *syncer.Syncer
	ctrl   *feedstate.Controller
	store  storage.LocalStore
	logger *slog.Logger
	now    func() time.Time
}

// NewHandler creates a handler over a syncer and its started controller.
func NewHandler(s *syncer.Syncer, ctrl *feedstate.Controller, logger *slog.Logger) *Handler {
	return &Handler{
		syncer: s,
		ctrl:   ctrl,
		store:  s.Store(),
		logger: logger,
		now:    time.Now,
	}
}

// Item is the JSON shape of one cached record.
type Item struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Link         string     `json:"link,omitempty"`
	ThumbnailURL string     `json:"thumbnail_url,omitempty"`
	Author       string     `json:"author,omitempty"`
	PublishedAt  *time.Time `json:"published_at,omitempty"`
	Excerpt      string     `json:"excerpt,omitempty"`
	Content      string     `json:"content,omitempty"`
	Premium      bool       `json:"premium"`
	Seen         bool       `json:"seen"`
}

// State is the JSON shape of the controller state plus refresh counters.
type State struct {
	IsLoading bool         `json:"is_loading"`
	IsEmpty   bool         `json:"is_empty"`
	LastError string       `json:"last_error,omitempty"`
	Count     int          `json:"count"`
	Stats     syncer.Stats `json:"stats"`
}

// HealthCheck handles the health check endpoint
func (h *Handler) HealthCheck(c *gin.Context) {
	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": h.now().Format(time.RFC3339),
	}

	count, err := h.store.Count(c.Request.Context())
	if err != nil {
		health["status"] = "degraded"
		health["store_error"] = err.Error()
		c.JSON(http.StatusServiceUnavailable, health)
		return
	}
	health["items"] = count

	if rl, ok := h.store.(replaceLog); ok {
		at, n, found, err := rl.LastReplaced(c.Request.Context())
		if err != nil {
			h.logger.Warn("read replace log", "error", err)
		} else if found {
			health["last_replaced"] = at.UTC().Format(time.RFC3339)
			health["last_replaced_records"] = n
		}
	}

	c.JSON(http.StatusOK, health)
}

// replaceLog is implemented by stores that record each full replace.
type replaceLog interface {
	LastReplaced(ctx context.Context) (at time.Time, count int, ok bool, err error)
}

// GetState reports the controller state.
func (h *Handler) GetState(c *gin.Context) {
	c.JSON(http.StatusOK, h.stateOutput(h.ctrl.State()))
}

// ListItems returns cached items in feed order, optionally filtered.
func (h *Handler) ListItems(c *gin.Context) {
	filter, err := h.parseFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	records, err := h.store.ListAll(c.Request.Context())
	if err != nil {
		h.logger.Error("list items", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve items"})
		return
	}

	matched := filter.Apply(records)
	items := make([]Item, 0, len(matched))
	for _, r := range matched {
		items = append(items, toItem(r, false))
	}

	c.JSON(http.StatusOK, gin.H{
		"items":   items,
		"count":   len(items),
		"total":   len(records),
		"filters": filter.Describe(),
	})
}

// GetItem returns one item by ID or unique prefix, with markdown content.
func (h *Handler) GetItem(c *gin.Context) {
	record, err := storage.Lookup(c.Request.Context(), h.store, c.Param("id"))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, toItem(record, true))
	case errors.Is(err, storage.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Item not found"})
	case errors.Is(err, storage.ErrAmbiguous):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.logger.Error("get item", "id", c.Param("id"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve item"})
	}
}

// Refresh starts a refresh. With wait=true it blocks and reports the outcome.
func (h *Handler) Refresh(c *gin.Context) {
	wait, err := queryBool(c, "wait")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !wait {
		h.ctrl.Refresh()
		c.JSON(http.StatusAccepted, gin.H{
			"started": true,
			"state":   "/state",
		})
		return
	}

	ctx := c.Request.Context()
	err = h.ctrl.RefreshAndWait(ctx)
	if errors.Is(err, feedstate.ErrDisposed) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Server is shutting down"})
		return
	}
	if err != nil && ctx.Err() != nil {
		// Client went away; the shared refresh keeps running.
		c.AbortWithStatus(http.StatusServiceUnavailable)
		return
	}

	count, countErr := h.store.Count(ctx)
	if countErr != nil {
		h.logger.Error("count items", "error", countErr)
	}

	if err != nil {
		body := gin.H{
			"success": false,
			"message": feedstate.Message(err),
			"records": count,
		}
		var rerr *syncer.RefreshError
		if errors.As(err, &rerr) {
			body["failure_kind"] = rerr.Kind.String()
		}
		c.JSON(http.StatusBadGateway, body)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"records": count,
	})
}

// Events streams state snapshots and one-shot error events as SSE.
func (h *Handler) Events(c *gin.Context) {
	states := h.ctrl.States().Subscribe()
	defer states.Close()
	errs := h.ctrl.Errors().Subscribe()
	defer errs.Close()

	ctx := c.Request.Context()
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case st, ok := <-states.C():
			if !ok {
				return false
			}
			c.SSEvent("state", h.stateOutput(st))
			return true
		case ev, ok := <-errs.C():
			if !ok {
				return false
			}
			if msg, fresh := ev.Take(); fresh {
				c.SSEvent("error", gin.H{"message": msg})
			}
			return true
		}
	})
}

func (h *Handler) stateOutput(st feedstate.FeedState) State {
	return State{
		IsLoading: st.IsLoading,
		IsEmpty:   st.IsEmpty,
		LastError: st.LastError,
		Count:     len(st.Items),
		Stats:     h.syncer.Stats(),
	}
}

func (h *Handler) parseFilter(c *gin.Context) (models.Filter, error) {
	var filter models.Filter

	if since := c.Query("since"); since != "" {
		t, err := timeutil.ParseSince(h.now(), since)
		if err != nil {
			return filter, err
		}
		filter.Since = &t
	}

	var err error
	if filter.UnseenOnly, err = queryBool(c, "unseen"); err != nil {
		return filter, err
	}
	if filter.PremiumOnly, err = queryBool(c, "premium"); err != nil {
		return filter, err
	}

	if limit := c.Query("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			return filter, errors.New("limit must be a non-negative integer")
		}
		filter.Limit = n
	}

	return filter, nil
}

func queryBool(c *gin.Context, name string) (bool, error) {
	raw := c.Query(name)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, errors.New(name + " must be a boolean")
	}
	return v, nil
}

func toItem(r models.FeedRecord, full bool) Item {
	item := Item{
		ID:           r.ID,
		Title:        r.DisplayTitle(),
		Link:         r.Link,
		ThumbnailURL: r.ThumbnailURL,
		Author:       r.Author,
		PublishedAt:  r.PublishedAt,
		Premium:      r.Premium,
		Seen:         r.Seen,
	}
	if full {
		item.Content = content.ToMarkdown(r.Summary)
	} else {
		item.Excerpt = content.Excerpt(r.Summary, 200)
	}
	return item
}
