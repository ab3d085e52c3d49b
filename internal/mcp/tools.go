// ABOUTME: MCP tool definitions and handlers for the feed cache
// ABOUTME: Refreshes through the single-flight syncer and reads records from the local store

package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/harper/feedsync/internal/content"
	"github.com/harper/feedsync/internal/feedstate"
	"github.com/harper/feedsync/internal/models"
	"github.com/harper/feedsync/internal/storage"
	"github.com/harper/feedsync/internal/syncer"
	"github.com/harper/feedsync/internal/timeutil"
	"github.com/mark3labs/mcp-go/mcp"
)

type RefreshFeedInput struct {
	Wait *bool `json:"wait,omitempty"`
}

type RefreshFeedOutput struct {
	Success     bool         `json:"success"`
	Started     bool         `json:"started"`
	Message     string       `json:"message"`
	FailureKind string       `json:"failure_kind,omitempty"`
	Records     int          `json:"records"`
	Stats       syncer.Stats `json:"stats"`
}

type ListItemsInput struct {
	Since       *string `json:"since,omitempty"`
	UnseenOnly  *bool   `json:"unseen_only,omitempty"`
	PremiumOnly *bool   `json:"premium_only,omitempty"`
	Limit       *int    `json:"limit,omitempty"`
}

type ItemOutput struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Link         string     `json:"link,omitempty"`
	ThumbnailURL string     `json:"thumbnail_url,omitempty"`
	Author       string     `json:"author,omitempty"`
	PublishedAt  *time.Time `json:"published_at,omitempty"`
	Excerpt      string     `json:"excerpt,omitempty"`
	Premium      bool       `json:"premium"`
	Seen         bool       `json:"seen"`
}

type ListItemsOutput struct {
	Items   []ItemOutput   `json:"items"`
	Count   int            `json:"count"`
	Total   int            `json:"total"`
	Filters map[string]any `json:"filters"`
}

type GetItemInput struct {
	ItemID string `json:"item_id"`
}

type GetItemOutput struct {
	ItemOutput
	Content string `json:"content,omitempty"`
}

type FeedStateOutput struct {
	IsLoading bool         `json:"is_loading"`
	IsEmpty   bool         `json:"is_empty"`
	LastError string       `json:"last_error,omitempty"`
	Count     int          `json:"count"`
	Stats     syncer.Stats `json:"stats"`
}

func (s *Server) registerTools() {
	s.registerRefreshFeedTool()
	s.registerListItemsTool()
	s.registerGetItemTool()
	s.registerFeedStateTool()
}

func (s *Server) registerRefreshFeedTool() {
	tool := mcp.Tool{
		Name:        "refresh_feed",
		Description: "Fetch the remote feed and replace the local cache with it. Concurrent refreshes share one fetch. By default waits for the outcome; pass wait=false to start a refresh in the background and poll feed_state.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"wait": map[string]interface{}{
					"type":        "boolean",
					"description": "Wait for the refresh to finish (default: true)",
				},
			},
		},
	}
	s.mcpServer.AddTool(tool, s.handleRefreshFeed)
}

func (s *Server) registerListItemsTool() {
	tool := mcp.Tool{
		Name:        "list_items",
		Description: "List cached feed items in feed order. Optional filters narrow by publish time, seen status, or premium flag. Returns short excerpts; use get_item for full content.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"since": map[string]interface{}{
					"type":        "string",
					"description": "Only items published after this point: today, yesterday, week, month, a duration like 36h, a day count like 3d, or YYYY-MM-DD",
				},
				"unseen_only": map[string]interface{}{
					"type":        "boolean",
					"description": "Only items not yet marked seen",
				},
				"premium_only": map[string]interface{}{
					"type":        "boolean",
					"description": "Only premium items",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of items to return",
				},
			},
		},
	}
	s.mcpServer.AddTool(tool, s.handleListItems)
}

func (s *Server) registerGetItemTool() {
	tool := mcp.Tool{
		Name:        "get_item",
		Description: "Get one cached item by ID or unique ID prefix, with its summary converted to markdown.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"item_id": map[string]interface{}{
					"type":        "string",
					"description": "Item ID or a unique prefix of at least 4 characters",
				},
			},
			Required: []string{"item_id"},
		},
	}
	s.mcpServer.AddTool(tool, s.handleGetItem)
}

func (s *Server) registerFeedStateTool() {
	tool := mcp.Tool{
		Name:        "feed_state",
		Description: "Report whether a refresh is in progress, whether the cache is empty, the last refresh error, and refresh counters.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
	s.mcpServer.AddTool(tool, s.handleFeedState)
}

func (s *Server) handleRefreshFeed(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var input RefreshFeedInput
	if err := req.BindArguments(&input); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	if input.Wait != nil && !*input.Wait {
		s.ctrl.Refresh()
		return jsonResult(RefreshFeedOutput{
			Started: true,
			Message: "Refresh started; check feed_state for progress",
			Stats:   s.syncer.Stats(),
		})
	}

	output := RefreshFeedOutput{Started: true}
	err := s.ctrl.RefreshAndWait(ctx)
	switch {
	case err == nil:
		output.Success = true
		output.Message = "Cache replaced with the latest feed"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded), errors.Is(err, feedstate.ErrDisposed):
		return nil, fmt.Errorf("refresh abandoned: %w", err)
	default:
		output.Message = feedstate.Message(err)
		var rerr *syncer.RefreshError
		if errors.As(err, &rerr) {
			output.FailureKind = rerr.Kind.String()
		}
	}

	count, countErr := s.store.Count(ctx)
	if countErr != nil {
		return nil, fmt.Errorf("failed to count records: %w", countErr)
	}
	output.Records = count
	output.Stats = s.syncer.Stats()

	return jsonResult(output)
}

func (s *Server) handleListItems(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var input ListItemsInput
	if err := req.BindArguments(&input); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	filter, err := s.buildFilter(input)
	if err != nil {
		return nil, err
	}

	records, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}

	matched := filter.Apply(records)
	items := make([]ItemOutput, 0, len(matched))
	for _, r := range matched {
		items = append(items, toItemOutput(r))
	}

	return jsonResult(ListItemsOutput{
		Items:   items,
		Count:   len(items),
		Total:   len(records),
		Filters: filter.Describe(),
	})
}

func (s *Server) handleGetItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var input GetItemInput
	if err := req.BindArguments(&input); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	if input.ItemID == "" {
		return nil, fmt.Errorf("item_id is required")
	}

	record, err := storage.Lookup(ctx, s.store, input.ItemID)
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}

	return jsonResult(GetItemOutput{
		ItemOutput: toItemOutput(record),
		Content:    content.ToMarkdown(record.Summary),
	})
}

func (s *Server) handleFeedState(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	state := s.ctrl.State()
	count, err := s.store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count records: %w", err)
	}

	return jsonResult(FeedStateOutput{
		IsLoading: state.IsLoading,
		IsEmpty:   state.IsEmpty,
		LastError: state.LastError,
		Count:     count,
		Stats:     s.syncer.Stats(),
	})
}

func (s *Server) buildFilter(input ListItemsInput) (models.Filter, error) {
	var filter models.Filter
	if input.Since != nil && *input.Since != "" {
		since, err := timeutil.ParseSince(s.now(), *input.Since)
		if err != nil {
			return filter, fmt.Errorf("invalid since value: %w", err)
		}
		filter.Since = &since
	}
	if input.Limit != nil {
		if *input.Limit < 0 {
			return filter, fmt.Errorf("limit must be non-negative, got %d", *input.Limit)
		}
		filter.Limit = *input.Limit
	}
	filter.UnseenOnly = input.UnseenOnly != nil && *input.UnseenOnly
	filter.PremiumOnly = input.PremiumOnly != nil && *input.PremiumOnly
	return filter, nil
}

func toItemOutput(r models.FeedRecord) ItemOutput {
	return ItemOutput{
		ID:           r.ID,
		Title:        r.DisplayTitle(),
		Link:         r.Link,
		ThumbnailURL: r.ThumbnailURL,
		Author:       r.Author,
		PublishedAt:  r.PublishedAt,
		Excerpt:      content.Excerpt(r.Summary, 200),
		Premium:      r.Premium,
		Seen:         r.Seen,
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal output: %w", err)
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}
