// Package mcp exposes acttest over the Model Context Protocol so agents can
// run workflows, list jobs, parse transcripts and rewrite steps.
package mcp

import (
	"context"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/stevehiehn/acttest/internal/act"
)

// ActFactory returns an Act rooted at cwd.
type ActFactory func(cwd string) (*act.Act, error)

// Deps holds what the server needs to run act.
type Deps struct {
	NewAct ActFactory
	// WorkDir resolves relative cwd arguments. Defaults to the process
	// working directory.
	WorkDir string
	Logger  *zap.Logger
	Version string
}

// Server wraps an MCP server with the acttest tool handlers.
type Server struct {
	newAct    ActFactory
	workDir   string
	log       *zap.Logger
	mcpServer *server.MCPServer
}

func NewServer(deps Deps) *Server {
	s := &Server{
		newAct:  deps.NewAct,
		workDir: deps.WorkDir,
		log:     deps.Logger,
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.workDir == "" {
		s.workDir, _ = os.Getwd()
	}
	if s.newAct == nil {
		s.newAct = func(cwd string) (*act.Act, error) {
			return act.New(cwd, "", act.WithLogger(s.log))
		}
	}
	version := deps.Version
	if version == "" {
		version = "dev"
	}

	mcpSrv := server.NewMCPServer(
		"acttest",
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("acttest runs GitHub Actions workflows locally through act. Use acttest.list to discover jobs, acttest.run to execute a job or event with optional step and HTTP mocks, acttest.mock to rewrite steps in place, acttest.validate to check mock files and acttest.parse to turn a saved act transcript into step results."),
	)
	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	return s
}

// Serve runs the stdio transport until ctx is cancelled or stdin closes.
func (s *Server) Serve(ctx context.Context) error {
	s.log.Info("mcp server listening on stdio")
	return server.NewStdioServer(s.mcpServer).Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying server for custom transports.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *Server) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: runTool(), Handler: s.handleRun},
		{Tool: listTool(), Handler: s.handleList},
		{Tool: mockTool(), Handler: s.handleMock},
		{Tool: validateTool(), Handler: s.handleValidate},
		{Tool: parseTool(), Handler: s.handleParse},
	}
}

func runTool() mcp.Tool {
	return mcp.NewTool("acttest.run",
		mcp.WithDescription("Run a job or event with act and return the parsed step results"),
		mcp.WithString("job", mcp.Description("Job id to run")),
		mcp.WithString("event", mcp.Description("Event to trigger (default push when no job is given)")),
		mcp.WithString("workflow", mcp.Description("Workflow file, relative to cwd")),
		mcp.WithString("cwd", mcp.Description("Repository directory")),
		mcp.WithString("mock_steps", mcp.Description("YAML file of step mocks keyed by job")),
		mcp.WithString("mock_api", mcp.Description("YAML file of HTTP mocks")),
		mcp.WithObject("secrets", mcp.Description("Secrets passed with -s")),
		mcp.WithObject("env", mcp.Description("Environment variables passed with --env")),
		mcp.WithObject("inputs", mcp.Description("Workflow inputs")),
	)
}

func listTool() mcp.Tool {
	return mcp.NewTool("acttest.list",
		mcp.WithDescription("List the jobs act would run"),
		mcp.WithString("event", mcp.Description("Only jobs triggered by this event")),
		mcp.WithString("workflow", mcp.Description("Workflow file or directory")),
		mcp.WithString("cwd", mcp.Description("Repository directory")),
	)
}

func mockTool() mcp.Tool {
	return mcp.NewTool("acttest.mock",
		mcp.WithDescription("Rewrite workflow steps in place without running act"),
		mcp.WithString("workflow", mcp.Required(), mcp.Description("Workflow file name")),
		mcp.WithString("mock_steps", mcp.Required(), mcp.Description("YAML file of step mocks keyed by job")),
		mcp.WithString("cwd", mcp.Description("Repository directory")),
	)
}

func validateTool() mcp.Tool {
	return mcp.NewTool("acttest.validate",
		mcp.WithDescription("Validate step mock and HTTP mock files"),
		mcp.WithString("mock_steps", mcp.Description("YAML file of step mocks keyed by job")),
		mcp.WithString("mock_api", mcp.Description("YAML file of HTTP mocks")),
	)
}

func parseTool() mcp.Tool {
	return mcp.NewTool("acttest.parse",
		mcp.WithDescription("Parse an act transcript into step results"),
		mcp.WithString("transcript", mcp.Required(), mcp.Description("Raw act output")),
	)
}
