// ABOUTME: MCP resource providers for feedsync
// ABOUTME: Exposes read-only JSON views of the cached items and the controller state

package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
)

const (
	ItemsURI = "feedsync://items"
	StateURI = "feedsync://state"
)

// ResourceData is the standard response format for all resources.
type ResourceData struct {
	Metadata ResourceMetadata  `json:"metadata"`
	Data     interface{}       `json:"data"`
	Links    map[string]string `json:"links"`
}

// ResourceMetadata contains metadata about the resource response.
type ResourceMetadata struct {
	Timestamp   time.Time `json:"timestamp"`
	Count       int       `json:"count"`
	ResourceURI string    `json:"resource_uri"`
}

func (s *Server) registerResources() {
	s.registerItemsResource()
	s.registerStateResource()
}

func (s *Server) registerItemsResource() {
	s.mcpServer.AddResource(
		mcp.Resource{
			URI:         ItemsURI,
			Name:        "Cached Items",
			Description: "Every cached feed item in feed order with title, link, author, publish time, and flags",
			MIMEType:    "application/json",
		},
		s.handleItemsResource,
	)
}

func (s *Server) registerStateResource() {
	s.mcpServer.AddResource(
		mcp.Resource{
			URI:         StateURI,
			Name:        "Feed State",
			Description: "Loading and empty flags, the last refresh error, and refresh counters",
			MIMEType:    "application/json",
		},
		s.handleStateResource,
	)
}

func (s *Server) handleItemsResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	records, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}

	items := make([]ItemOutput, 0, len(records))
	for _, r := range records {
		items = append(items, toItemOutput(r))
	}

	return s.resourceJSON(req.Params.URI, len(items), items, map[string]string{
		"state": StateURI,
	})
}

func (s *Server) handleStateResource(_ context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	state := s.ctrl.State()
	data := FeedStateOutput{
		IsLoading: state.IsLoading,
		IsEmpty:   state.IsEmpty,
		LastError: state.LastError,
		Count:     len(state.Items),
		Stats:     s.syncer.Stats(),
	}
	return s.resourceJSON(req.Params.URI, data.Count, data, map[string]string{
		"items": ItemsURI,
	})
}

func (s *Server) resourceJSON(uri string, count int, data interface{}, links map[string]string) ([]mcp.ResourceContents, error) {
	payload := ResourceData{
		Metadata: ResourceMetadata{
			Timestamp:   s.now(),
			Count:       count,
			ResourceURI: uri,
		},
		Data:  data,
		Links: links,
	}

	jsonBytes, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal resource: %w", err)
	}

	return []mcp.ResourceContents{
		&mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(jsonBytes),
		},
	}, nil
}
