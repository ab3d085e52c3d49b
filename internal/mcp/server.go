// ABOUTME: MCP server implementation for feedsync
// ABOUTME: Provides tools, resources, and prompts for AI agents to refresh and read the feed cache

package mcp

import (
	"time"

	"github.com/harper/feedsync/internal/feedstate"
	"github.com/harper/feedsync/internal/storage"
	"github.com/harper/feedsync/internal/syncer"
	"github.com/mark3labs/mcp-go/server"
)

// Server wraps the MCP server with the feed cache it serves.
type Server struct {
	mcpServer *server.MCPServer
	syncer    *syncer.Syncer
	ctrl      *feedstate.Controller
	store     storage.LocalStore
	now       func() time.Time
}

// NewServer creates a new MCP server instance. The controller must already be
// started so feed_state reflects the cache.
func NewServer(s *syncer.Syncer, ctrl *feedstate.Controller) *Server {
	srv := &Server{
		syncer: s,
		ctrl:   ctrl,
		store:  s.Store(),
		now:    time.Now,
	}

	srv.mcpServer = server.NewMCPServer(
		"feedsync",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, false),
		server.WithPromptCapabilities(true),
	)

	srv.registerTools()
	srv.registerResources()
	srv.registerPrompts()

	return srv
}

// ServeStdio starts the MCP server on stdio
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
