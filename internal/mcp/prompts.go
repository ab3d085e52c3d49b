// ABOUTME: MCP prompt definitions and handlers
// ABOUTME: Provides a catch-up workflow template built on the feedsync tools

package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerPrompts() {
	s.registerCatchUpPrompt()
}

func (s *Server) registerCatchUpPrompt() {
	s.mcpServer.AddPrompt(
		mcp.Prompt{
			Name:        "catch-up",
			Description: "Refresh the feed and summarize what was published recently",
			Arguments: []mcp.PromptArgument{
				{
					Name:        "since",
					Description: "How far back to look: today, yesterday, week, month, 36h, 3d, or YYYY-MM-DD (default: today)",
					Required:    false,
				},
			},
		},
		s.handleCatchUp,
	)
}

func (s *Server) handleCatchUp(_ context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	since := "today"
	if req.Params.Arguments != nil {
		if v, ok := req.Params.Arguments["since"]; ok && v != "" {
			since = v
		}
	}

	template := fmt.Sprintf(`# Catch Up on the Feed

## Step 1: Refresh
Call refresh_feed. If it reports success=false, tell the user the refresh failed
with its message and continue with the cached items; they are still valid.

## Step 2: List recent items
Call list_items with since=%q and unseen_only=true. If nothing comes back, retry
without unseen_only before reporting an empty feed.

## Step 3: Read the interesting ones
For items whose title or excerpt looks substantial, call get_item to read the
full content. Skip items marked premium unless the user asks for them.

## Step 4: Summarize
Group related items, lead with the most significant, and give each a one or two
sentence summary with its link. Mention how many items you skipped.

## Reference
- feed_state tells you whether a refresh is still running and the last error.
- %s lists every cached item; %s has the same state as feed_state.
`, since, ItemsURI, StateURI)

	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Catch up on feed items since %s", since),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: template,
				},
			},
		},
	}, nil
}
