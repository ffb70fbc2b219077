package artifact

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestNewCreatesRunDir(t *testing.T) {
	dir := t.TempDir()
	store, err := New("run-123", dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := filepath.Join(dir, ".acttest", "runs", "run-123")
	if store.BaseDir != want {
		t.Errorf("expected base dir %q, got %q", want, store.BaseDir)
	}
	info, err := os.Stat(store.BaseDir)
	if err != nil {
		t.Fatalf("run dir not created: %v", err)
	}
	if !info.IsDir() {
		t.Fatal("expected run dir to be a directory")
	}
}

func TestWriteTranscript(t *testing.T) {
	store, _ := New("run-456", t.TempDir())

	if err := store.WriteTranscript("[job] ⭐ Run step\n"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, _ := os.ReadFile(store.TranscriptPath())
	if string(data) != "[job] ⭐ Run step\n" {
		t.Errorf("unexpected transcript %q", string(data))
	}
}

func TestSaveWorkflow(t *testing.T) {
	dir := t.TempDir()
	store, _ := New("run-abc", dir)
	wf := filepath.Join(dir, "ci.yml")
	os.WriteFile(wf, []byte("name: ci\n"), 0o644)

	if err := store.SaveWorkflow(wf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, _ := os.ReadFile(filepath.Join(store.BaseDir, "workflows", "ci.yml"))
	if string(data) != "name: ci\n" {
		t.Errorf("unexpected workflow copy %q", string(data))
	}
	if err := store.SaveWorkflow(filepath.Join(dir, "missing.yml")); err == nil {
		t.Error("expected error for missing workflow")
	}
}

func TestWriteResult(t *testing.T) {
	store, _ := New("run-789", t.TempDir())

	result := map[string]string{"status": "ok"}
	if err := store.WriteResult(result); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, _ := os.ReadFile(filepath.Join(store.BaseDir, "result.json"))
	var obj map[string]string
	json.Unmarshal(data, &obj)
	if obj["status"] != "ok" {
		t.Errorf("expected status 'ok', got %q", obj["status"])
	}
}
