package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/stevehiehn/acttest/internal/act"
	acterrors "github.com/stevehiehn/acttest/internal/errors"
	"github.com/stevehiehn/acttest/internal/mockapi"
	"github.com/stevehiehn/acttest/internal/output"
	"github.com/stevehiehn/acttest/internal/workflow"
)

func (s *Server) handleRun(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	job := req.GetString("job", "")
	event := req.GetString("event", "")
	cwd := s.resolve(req.GetString("cwd", ""))

	a, err := s.newAct(cwd)
	if err != nil {
		return toolError(err), nil
	}
	for k, v := range mcp.ParseStringMap(req, "secrets", nil) {
		a.SetSecret(k, fmt.Sprint(v))
	}
	for k, v := range mcp.ParseStringMap(req, "env", nil) {
		a.SetEnv(k, fmt.Sprint(v))
	}
	for k, v := range mcp.ParseStringMap(req, "inputs", nil) {
		a.SetInput(k, fmt.Sprint(v))
	}

	opts := &act.RunOpts{WorkflowFile: req.GetString("workflow", "")}
	if path := req.GetString("mock_steps", ""); path != "" {
		ms, err := workflow.LoadMockSteps(s.resolveIn(cwd, path))
		if err != nil {
			return toolError(err), nil
		}
		opts.MockSteps = ms
	}
	if path := req.GetString("mock_api", ""); path != "" {
		mocks, err := mockapi.LoadFile(s.resolveIn(cwd, path))
		if err != nil {
			return toolError(err), nil
		}
		opts.MockAPI = mockapi.Responders(mocks)
	}

	var result *act.Result
	switch {
	case job != "" && event != "":
		result, err = a.RunEventAndJob(ctx, event, job, opts)
	case job != "":
		result, err = a.RunJob(ctx, job, opts)
	default:
		if event == "" {
			event = "push"
		}
		result, err = a.RunEvent(ctx, event, opts)
	}
	if err != nil {
		return toolError(err), nil
	}
	s.log.Info("mcp run finished",
		zap.String("run_id", result.RunID),
		zap.Bool("success", result.Success),
		zap.Int("exit_code", result.ExitCode))
	return marshalResult(result)
}

func (s *Server) handleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cwd := s.resolve(req.GetString("cwd", ""))
	a, err := s.newAct(cwd)
	if err != nil {
		return toolError(err), nil
	}
	workflows, err := a.List(ctx, req.GetString("event", ""), "", req.GetString("workflow", ""))
	if err != nil {
		return toolError(err), nil
	}
	return marshalResult(workflows)
}

func (s *Server) handleMock(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	wf, err := req.RequireString("workflow")
	if err != nil {
		return mcp.NewToolResultError("workflow is required"), nil
	}
	stepsFile, err := req.RequireString("mock_steps")
	if err != nil {
		return mcp.NewToolResultError("mock_steps is required"), nil
	}
	cwd := s.resolve(req.GetString("cwd", ""))

	ms, err := workflow.LoadMockSteps(s.resolveIn(cwd, stepsFile))
	if err != nil {
		return toolError(err), nil
	}
	m := workflow.NewStepMocker(wf, cwd)
	if err := m.Mock(ms); err != nil {
		return toolError(err), nil
	}
	path, err := m.ResolvePath()
	if err != nil {
		return toolError(err), nil
	}
	s.log.Info("mcp mocked workflow steps", zap.String("path", path))
	return marshalResult(map[string]any{"path": path, "jobs": len(ms)})
}

func (s *Server) handleValidate(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stepsFile := req.GetString("mock_steps", "")
	apiFile := req.GetString("mock_api", "")
	if stepsFile == "" && apiFile == "" {
		return mcp.NewToolResultError("pass mock_steps and/or mock_api"), nil
	}
	report := map[string]any{"valid": true}
	if stepsFile != "" {
		ms, err := workflow.LoadMockSteps(s.resolve(stepsFile))
		if err == nil {
			err = workflow.Validate(ms)
		}
		if err != nil {
			return toolError(err), nil
		}
		report["jobs"] = len(ms)
	}
	if apiFile != "" {
		mocks, err := mockapi.LoadFile(s.resolve(apiFile))
		if err != nil {
			return toolError(err), nil
		}
		report["mocks"] = len(mocks)
	}
	return marshalResult(report)
}

func (s *Server) handleParse(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	transcript, err := req.RequireString("transcript")
	if err != nil {
		return mcp.NewToolResultError("transcript is required"), nil
	}
	return marshalResult(output.Parse(transcript))
}

func (s *Server) resolve(path string) string {
	return s.resolveIn(s.workDir, path)
}

func (s *Server) resolveIn(dir, path string) string {
	if path == "" {
		return dir
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

// toolError reports err to the client, with the hint when there is one.
func toolError(err error) *mcp.CallToolResult {
	var re *acterrors.RunError
	if errors.As(err, &re) && re.Hint != "" {
		return mcp.NewToolResultError(fmt.Sprintf("%s (hint: %s)", err, re.Hint))
	}
	return mcp.NewToolResultError(err.Error())
}

func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultJSON(json.RawMessage(data))
}
