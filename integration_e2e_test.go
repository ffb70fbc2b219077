package main

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stevehiehn/acttest/internal/act"
	"github.com/stevehiehn/acttest/internal/mockapi"
	"github.com/stevehiehn/acttest/internal/output"
)

const exampleMocks = `description:
  example:
    baseUrl: http://example.com
    endpoints:
      root:
        index:
          path: /
          method: get
          parameters: {path: [], query: [], body: []}
mocks:
  - endpoint: example.root.index
    responses:
      - status: 200
        data: mocked-body
`

func loadMocks(t *testing.T) []*mockapi.ResponseMocker {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mocks.yaml")
	writeFile(t, path, exampleMocks)
	mocks, err := mockapi.LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return mocks
}

func runFetch(t *testing.T, mode string) (*act.Result, []*mockapi.ResponseMocker) {
	t.Helper()
	mocks := loadMocks(t)
	a := newAct(t, mode, t.TempDir())
	result, err := a.RunJob(context.Background(), "fetch", &act.RunOpts{
		WorkflowFile: "ci.yml",
		MockAPI:      mockapi.Responders(mocks),
	})
	if err != nil {
		t.Fatal(err)
	}
	return result, mocks
}

func assertMockedFetch(t *testing.T, result *act.Result, mocks []*mockapi.ResponseMocker) {
	t.Helper()
	if !result.Success || len(result.Steps) != 1 {
		t.Fatalf("expected one successful step, got %+v", result.Steps)
	}
	step := result.Steps[0]
	if step.Status != output.StatusSuccess {
		t.Fatalf("fetch failed: %s", step.Output)
	}
	if step.Output != "mocked-body" {
		t.Fatalf("output = %q, want mocked-body", step.Output)
	}
	if step.Outputs["body"] != "mocked-body" {
		t.Fatalf("outputs = %v", step.Outputs)
	}
	if n := mocks[0].Pending(); n != 0 {
		t.Fatalf("mock should be consumed, %d response(s) left", n)
	}
}

func TestMockedHTTPThroughProxyE2E(t *testing.T) {
	result, mocks := runFetch(t, "http")
	assertMockedFetch(t, result, mocks)
}

func TestConnectToPort80IsMockedE2E(t *testing.T) {
	result, mocks := runFetch(t, "connect")
	assertMockedFetch(t, result, mocks)
}

func TestProxyStoppedAfterRunE2E(t *testing.T) {
	result, _ := runFetch(t, "http")
	if result.ProxyAddr == "" {
		t.Fatal("expected the proxy address in the result")
	}
	if conn, err := net.DialTimeout("tcp", result.ProxyAddr, time.Second); err == nil {
		conn.Close()
		t.Fatal("proxy should not accept connections after the run")
	}
}

func TestRunWithoutMocksHasNoProxyE2E(t *testing.T) {
	a := newAct(t, "http", t.TempDir())
	result, err := a.RunJob(context.Background(), "fetch", &act.RunOpts{WorkflowFile: "ci.yml"})
	if err != nil {
		t.Fatal(err)
	}
	if result.Success {
		t.Fatal("fetch without a proxy should fail")
	}
	if len(result.Steps) != 1 || result.Steps[0].Status != output.StatusFailure {
		t.Fatalf("unexpected steps: %+v", result.Steps)
	}
	if result.ExitCode != 1 {
		t.Fatalf("exit code = %d, want 1", result.ExitCode)
	}
}
