// Package server runs the railway map MCP server over stdio and the HTTP
// endpoint used for metrics, health and map inspection.
package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/NERVsystems/railmap/pkg/tools"
	"github.com/NERVsystems/railmap/pkg/version"
)

// ServerName is the name of the MCP server
const ServerName = "railmap-mcp-server"

// Server encapsulates the MCP server with the railway map tools.
type Server struct {
	srv    *mcpserver.MCPServer
	logger *slog.Logger
	in     io.Reader
	out    io.Writer

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	doneCh  chan struct{}
}

// NewServer creates an MCP server with every tool of registry registered.
func NewServer(registry *tools.Registry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("initializing railway map MCP server",
		"name", ServerName,
		"version", version.BuildVersion)

	srv := mcpserver.NewMCPServer(
		ServerName,
		version.BuildVersion,
		mcpserver.WithToolCapabilities(false),
		mcpserver.WithRecovery(),
	)
	registry.RegisterTools(srv)

	return &Server{
		srv:    srv,
		logger: logger,
		in:     os.Stdin,
		out:    os.Stdout,
		doneCh: make(chan struct{}),
	}
}

// SetIO replaces stdin and stdout. It must be called before Run.
func (s *Server) SetIO(in io.Reader, out io.Writer) {
	s.in, s.out = in, out
}

// Run serves MCP over stdio until the input ends or Shutdown is called.
func (s *Server) Run() error {
	return s.RunWithContext(context.Background())
}

// RunWithContext serves MCP over stdio until the input ends, ctx is done or
// Shutdown is called. A second call while running returns immediately.
func (s *Server) RunWithContext(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	defer close(s.doneCh)
	defer s.cancel()

	stdio := mcpserver.NewStdioServer(s.srv)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))

	err := stdio.Listen(ctx, s.in, s.out)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, io.EOF) {
		s.logger.Error("server error", "error", err)
		return err
	}
	s.logger.Info("MCP server stopped")
	return nil
}

// Shutdown signals the server to stop. It does not block.
func (s *Server) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}

// WaitForShutdown blocks until a running server has fully shut down.
func (s *Server) WaitForShutdown() {
	<-s.doneCh
}

// MCPServer returns the underlying MCP server
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.srv
}
