package mcp

import (
	"log/slog"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/faucetdb/licensed/internal/license"
)

// ServerName identifies the MCP server to clients.
const ServerName = "Licensed License Server"

// MCPServer wraps the mcp-go server with the license tools and resources.
// It lets agents mint codes, inspect bindings and release hardware without
// going through the REST API.
type MCPServer struct {
	generator *license.Generator
	gateway   *license.Gateway
	engine    *license.Engine
	logger    *slog.Logger
	server    *server.MCPServer
}

// NewMCPServer creates an MCPServer with every license tool and resource
// registered. The returned server is ready to serve over stdio or HTTP.
func NewMCPServer(gen *license.Generator, gw *license.Gateway, engine *license.Engine, version string, logger *slog.Logger) *MCPServer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &MCPServer{
		generator: gen,
		gateway:   gw,
		engine:    engine,
		logger:    logger,
	}

	mcpServer := server.NewMCPServer(
		ServerName,
		version,
		server.WithResourceCapabilities(true, false),
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	s.registerTools(mcpServer)
	s.registerResources(mcpServer)

	s.server = mcpServer
	return s
}

// Server returns the underlying mcp-go MCPServer instance.
func (s *MCPServer) Server() *server.MCPServer {
	return s.server
}

// ServeStdio serves MCP over stdin/stdout until the client disconnects.
// Logs must not go to stdout in this mode.
func (s *MCPServer) ServeStdio() error {
	s.logger.Info("starting MCP server in stdio mode")
	return server.ServeStdio(s.server)
}

// ServeHTTP starts a standalone Streamable HTTP listener on addr.
func (s *MCPServer) ServeHTTP(addr string) error {
	httpServer := server.NewStreamableHTTPServer(s.server)
	s.logger.Info("MCP HTTP server starting", "addr", addr)
	return httpServer.Start(addr)
}

// Handler returns the Streamable HTTP transport as an http.Handler so the
// main server can mount it behind its own auth middleware.
func (s *MCPServer) Handler() http.Handler {
	return server.NewStreamableHTTPServer(s.server)
}

func readOnlyAnnotation() mcp.ToolAnnotation {
	return mcp.ToolAnnotation{
		ReadOnlyHint: boolPtr(true),
	}
}

func mutatingAnnotation() mcp.ToolAnnotation {
	return mcp.ToolAnnotation{
		ReadOnlyHint:    boolPtr(false),
		DestructiveHint: boolPtr(false),
	}
}

// destructiveAnnotation marks tools that remove rows.
func destructiveAnnotation() mcp.ToolAnnotation {
	return mcp.ToolAnnotation{
		ReadOnlyHint:    boolPtr(false),
		DestructiveHint: boolPtr(true),
	}
}

func boolPtr(b bool) *bool {
	return &b
}
