package mcp

import (
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/sourpat/payresolve/internal/samples"
	"github.com/sourpat/payresolve/internal/workflow"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Server wraps an MCP server that exposes the diagnosis workflow to agents.
type Server struct {
	client   workflow.Diagnoser
	samples  *samples.Library
	recorder workflow.Recorder
	logger   *zap.Logger
	mcp      *server.MCPServer
}

// NewServer creates a new MCP server. recorder may be nil.
func NewServer(client workflow.Diagnoser, lib *samples.Library, recorder workflow.Recorder, logger *zap.Logger) *Server {
	if lib == nil {
		lib = samples.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		client:   client,
		samples:  lib,
		recorder: recorder,
		logger:   logger,
	}

	s.mcp = server.NewMCPServer(
		"payresolve",
		Version,
		server.WithToolCapabilities(false),
	)

	s.registerTools()

	return s
}

// registerTools adds all tool definitions and their handlers to the MCP server.
func (s *Server) registerTools() {
	s.mcp.AddTool(listSamplesTool, s.handleListSamples)
	s.mcp.AddTool(getSampleTool, s.handleGetSample)
	s.mcp.AddTool(pingAPITool, s.handlePingAPI)
	s.mcp.AddTool(diagnoseIncidentTool, s.handleDiagnoseIncident)
}

// Serve starts the MCP server on stdio. Stdout is used for MCP protocol
// messages; all logging must go to stderr.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcp)
}
