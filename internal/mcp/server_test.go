// ABOUTME: Tests for MCP tool, resource, and prompt handlers
// ABOUTME: Uses a memory store behind a real syncer and controller for isolated testing

package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/harper/feedsync/internal/feedstate"
	"github.com/harper/feedsync/internal/models"
	"github.com/harper/feedsync/internal/source"
	"github.com/harper/feedsync/internal/storage"
	"github.com/harper/feedsync/internal/syncer"
	"github.com/mark3labs/mcp-go/mcp"
)

var testNow = time.Date(2025, 3, 12, 15, 0, 0, 0, time.UTC)

func ts(hoursAgo int) *time.Time {
	t := testNow.Add(-time.Duration(hoursAgo) * time.Hour)
	return &t
}

func remoteRecords() []models.FeedRecord {
	return []models.FeedRecord{
		{ID: "item-0001", Title: "Fresh", Link: "https://example.com/1", Summary: "<p>Hello <strong>world</strong></p>", PublishedAt: ts(1)},
		{ID: "item-0002", Title: "Older", PublishedAt: ts(30), Seen: true},
		{ID: "item-0003", Title: "", PublishedAt: ts(200), Premium: true},
	}
}

// setupTestServer wires a server to a memory store and a source returning
// records or err.
func setupTestServer(t *testing.T, records []models.FeedRecord, err error) (*Server, *storage.MemoryStore) {
	t.Helper()

	store := storage.NewMemoryStore()
	src := source.Func(func(context.Context) ([]models.FeedRecord, error) {
		if err != nil {
			return nil, err
		}
		return models.Clone(records), nil
	})

	s := syncer.New(store, src)
	ctrl := feedstate.New(s)
	if err := ctrl.Start(context.Background()); err != nil {
		t.Fatalf("start controller: %v", err)
	}
	t.Cleanup(func() {
		ctrl.Dispose()
		store.Close()
	})

	srv := NewServer(s, ctrl)
	srv.now = func() time.Time { return testNow }
	return srv, store
}

func callTool(t *testing.T, handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]interface{}, out interface{}) {
	t.Helper()

	req := mcp.CallToolRequest{}
	req.Params.Arguments = args

	result, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	text := result.Content[0].(mcp.TextContent).Text
	if err := json.Unmarshal([]byte(text), out); err != nil {
		t.Fatalf("failed to parse result: %v\n%s", err, text)
	}
}

func TestNewServer(t *testing.T) {
	srv, store := setupTestServer(t, nil, nil)
	if srv.mcpServer == nil {
		t.Fatal("expected mcp server to be created")
	}
	if srv.store != store {
		t.Error("expected server to read from the syncer's store")
	}
}

func TestHandleRefreshFeed_Success(t *testing.T) {
	srv, store := setupTestServer(t, remoteRecords(), nil)

	var out RefreshFeedOutput
	callTool(t, srv.handleRefreshFeed, map[string]interface{}{}, &out)

	if !out.Success {
		t.Fatalf("expected success, got %+v", out)
	}
	if out.Records != 3 {
		t.Errorf("expected 3 records, got %d", out.Records)
	}
	if out.Stats.Succeeded != 1 {
		t.Errorf("expected 1 successful operation, got %d", out.Stats.Succeeded)
	}

	n, _ := store.Count(context.Background())
	if n != 3 {
		t.Errorf("expected store to hold 3 records, got %d", n)
	}
}

func TestHandleRefreshFeed_Failure(t *testing.T) {
	srv, store := setupTestServer(t, nil, errors.New("connection reset"))
	if err := store.ReplaceAll(context.Background(), []models.FeedRecord{{ID: "cached"}}); err != nil {
		t.Fatal(err)
	}

	var out RefreshFeedOutput
	callTool(t, srv.handleRefreshFeed, map[string]interface{}{"wait": true}, &out)

	if out.Success {
		t.Fatal("expected failure")
	}
	if out.Message != "connection reset" {
		t.Errorf("expected cause message, got %q", out.Message)
	}
	if out.FailureKind != "fetch" {
		t.Errorf("expected fetch failure kind, got %q", out.FailureKind)
	}
	if out.Records != 1 {
		t.Errorf("expected cached record to survive, got %d", out.Records)
	}

	state := srv.ctrl.State()
	if state.IsLoading {
		t.Error("expected loading to be cleared once the tool returns")
	}
	if state.LastError != "connection reset" {
		t.Errorf("expected controller to record the failure, got %q", state.LastError)
	}
	if state.IsEmpty {
		t.Error("expected cached record to keep the cache non-empty")
	}
}

func TestHandleRefreshFeed_NoWait(t *testing.T) {
	srv, store := setupTestServer(t, remoteRecords(), nil)

	var out RefreshFeedOutput
	callTool(t, srv.handleRefreshFeed, map[string]interface{}{"wait": false}, &out)

	if !out.Started || out.Success {
		t.Errorf("expected started but not yet successful, got %+v", out)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if n, _ := store.Count(context.Background()); n == 3 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Error("background refresh never filled the store")
}

func TestHandleListItems(t *testing.T) {
	srv, store := setupTestServer(t, nil, nil)
	if err := store.ReplaceAll(context.Background(), remoteRecords()); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		args map[string]interface{}
		want []string
	}{
		{"all", map[string]interface{}{}, []string{"item-0001", "item-0002", "item-0003"}},
		{"since today", map[string]interface{}{"since": "today"}, []string{"item-0001"}},
		{"since duration", map[string]interface{}{"since": "48h"}, []string{"item-0001", "item-0002"}},
		{"unseen", map[string]interface{}{"unseen_only": true}, []string{"item-0001", "item-0003"}},
		{"premium", map[string]interface{}{"premium_only": true}, []string{"item-0003"}},
		{"limit", map[string]interface{}{"limit": 1}, []string{"item-0001"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out ListItemsOutput
			callTool(t, srv.handleListItems, tt.args, &out)

			if out.Count != len(tt.want) {
				t.Fatalf("expected %d items, got %d", len(tt.want), out.Count)
			}
			if out.Total != 3 {
				t.Errorf("expected total 3, got %d", out.Total)
			}
			for i, id := range tt.want {
				if out.Items[i].ID != id {
					t.Errorf("position %d: expected %s, got %s", i, id, out.Items[i].ID)
				}
			}
		})
	}
}

func TestHandleListItems_ExcerptAndTitle(t *testing.T) {
	srv, store := setupTestServer(t, nil, nil)
	if err := store.ReplaceAll(context.Background(), remoteRecords()); err != nil {
		t.Fatal(err)
	}

	var out ListItemsOutput
	callTool(t, srv.handleListItems, map[string]interface{}{}, &out)

	if out.Items[0].Excerpt != "Hello **world**" {
		t.Errorf("expected markdown excerpt, got %q", out.Items[0].Excerpt)
	}
	if out.Items[2].Title != "Untitled" {
		t.Errorf("expected placeholder title, got %q", out.Items[2].Title)
	}
}

func TestHandleListItems_InvalidInput(t *testing.T) {
	srv, _ := setupTestServer(t, nil, nil)

	tests := []struct {
		name    string
		args    map[string]interface{}
		wantErr string
	}{
		{"bad since", map[string]interface{}{"since": "whenever"}, "invalid since value"},
		{"negative limit", map[string]interface{}{"limit": -5}, "limit must be non-negative, got -5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := mcp.CallToolRequest{}
			req.Params.Arguments = tt.args

			result, err := srv.handleListItems(context.Background(), req)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
			if result != nil {
				t.Errorf("expected nil result, got %v", result)
			}
		})
	}
}

func TestHandleGetItem(t *testing.T) {
	srv, store := setupTestServer(t, nil, nil)
	if err := store.ReplaceAll(context.Background(), remoteRecords()); err != nil {
		t.Fatal(err)
	}

	var out GetItemOutput
	callTool(t, srv.handleGetItem, map[string]interface{}{"item_id": "item-0001"}, &out)
	if out.ID != "item-0001" || out.Title != "Fresh" {
		t.Errorf("unexpected item: %+v", out)
	}
	if out.Content != "Hello **world**" {
		t.Errorf("expected markdown content, got %q", out.Content)
	}

	records := append(remoteRecords(), models.FeedRecord{ID: "zeta-1234", Title: "Zeta"})
	if err := store.ReplaceAll(context.Background(), records); err != nil {
		t.Fatal(err)
	}
	callTool(t, srv.handleGetItem, map[string]interface{}{"item_id": "zeta"}, &out)
	if out.ID != "zeta-1234" {
		t.Errorf("expected prefix lookup to find zeta-1234, got %s", out.ID)
	}
}

func TestHandleGetItem_Errors(t *testing.T) {
	srv, store := setupTestServer(t, nil, nil)
	if err := store.ReplaceAll(context.Background(), remoteRecords()); err != nil {
		t.Fatal(err)
	}

	for _, id := range []string{"", "missing", "item-000"} {
		req := mcp.CallToolRequest{}
		req.Params.Arguments = map[string]interface{}{"item_id": id}
		if _, err := srv.handleGetItem(context.Background(), req); err == nil {
			t.Errorf("expected error for item_id %q", id)
		}
	}
}

func TestHandleFeedState(t *testing.T) {
	srv, _ := setupTestServer(t, nil, errors.New("dns failure"))

	srv.ctrl.Refresh()
	deadline := time.Now().Add(2 * time.Second)
	for srv.ctrl.State().LastError == "" && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	var out FeedStateOutput
	callTool(t, srv.handleFeedState, map[string]interface{}{}, &out)

	if out.IsLoading {
		t.Error("expected loading to have ended")
	}
	if out.LastError != "dns failure" {
		t.Errorf("expected last error, got %q", out.LastError)
	}
	if out.Stats.Failed != 1 {
		t.Errorf("expected 1 failed operation, got %d", out.Stats.Failed)
	}
}

func TestItemsResource(t *testing.T) {
	srv, store := setupTestServer(t, nil, nil)
	if err := store.ReplaceAll(context.Background(), remoteRecords()); err != nil {
		t.Fatal(err)
	}

	req := mcp.ReadResourceRequest{}
	req.Params.URI = ItemsURI

	contents, err := srv.handleItemsResource(context.Background(), req)
	if err != nil {
		t.Fatalf("read resource: %v", err)
	}
	text := contents[0].(*mcp.TextResourceContents)
	if text.MIMEType != "application/json" {
		t.Errorf("expected json mime type, got %s", text.MIMEType)
	}

	var data struct {
		Metadata ResourceMetadata  `json:"metadata"`
		Data     []ItemOutput      `json:"data"`
		Links    map[string]string `json:"links"`
	}
	if err := json.Unmarshal([]byte(text.Text), &data); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if data.Metadata.Count != 3 || len(data.Data) != 3 {
		t.Errorf("expected 3 items, got %d/%d", data.Metadata.Count, len(data.Data))
	}
	if !data.Metadata.Timestamp.Equal(testNow) {
		t.Errorf("expected timestamp %v, got %v", testNow, data.Metadata.Timestamp)
	}
	if data.Links["state"] != StateURI {
		t.Errorf("expected link to state resource, got %v", data.Links)
	}
}

func TestStateResource(t *testing.T) {
	srv, _ := setupTestServer(t, nil, nil)

	req := mcp.ReadResourceRequest{}
	req.Params.URI = StateURI

	contents, err := srv.handleStateResource(context.Background(), req)
	if err != nil {
		t.Fatalf("read resource: %v", err)
	}

	var data struct {
		Data FeedStateOutput `json:"data"`
	}
	if err := json.Unmarshal([]byte(contents[0].(*mcp.TextResourceContents).Text), &data); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if data.Data.IsLoading {
		t.Error("expected idle controller")
	}
}

func TestCatchUpPrompt(t *testing.T) {
	srv, _ := setupTestServer(t, nil, nil)

	req := mcp.GetPromptRequest{}
	req.Params.Arguments = map[string]string{"since": "week"}

	result, err := srv.handleCatchUp(context.Background(), req)
	if err != nil {
		t.Fatalf("prompt: %v", err)
	}
	if len(result.Messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(result.Messages))
	}
	text := result.Messages[0].Content.(mcp.TextContent).Text
	if !strings.Contains(text, `since="week"`) {
		t.Errorf("expected since argument in template, got:\n%s", text)
	}
	if !strings.Contains(result.Description, "week") {
		t.Errorf("expected description to mention since, got %q", result.Description)
	}

	result, err = srv.handleCatchUp(context.Background(), mcp.GetPromptRequest{})
	if err != nil {
		t.Fatalf("prompt: %v", err)
	}
	if !strings.Contains(result.Messages[0].Content.(mcp.TextContent).Text, `since="today"`) {
		t.Error("expected default since of today")
	}
}
