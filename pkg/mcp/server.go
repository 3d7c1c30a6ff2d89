// Package mcp exposes the shopper tool registry as a Model Context Protocol
// server over stdio.
package mcp

import (
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	"github.com/jllopis/shopper/pkg/tools"
)

// Server wraps the mcp-go server with the registry's tools registered.
type Server struct {
	mcpServer *server.MCPServer
	registry  *tools.Registry
}

// NewServer creates an MCP server offering every tool in registry.
func NewServer(name, version string, registry *tools.Registry) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(name, version, server.WithToolCapabilities(false)),
		registry:  registry,
	}
	for _, t := range registry.Tools() {
		s.mcpServer.AddTool(ToolSpec(t), ToolHandler(t))
	}
	slog.Debug("mcp.server.tools", slog.Int("count", registry.Len()))
	return s
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *server.MCPServer { return s.mcpServer }

// ServeStdio serves requests on stdin/stdout until stdin closes.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
