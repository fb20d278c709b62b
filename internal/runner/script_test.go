package runner

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestShellExecutor_Success(t *testing.T) {
	e := NewShellExecutor("")
	if err := e.Run(context.Background(), Command{Step: "echo", Script: "echo hello"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestShellExecutor_Failure(t *testing.T) {
	e := NewShellExecutor("")
	err := e.Run(context.Background(), Command{Step: StepExecute, Script: "echo boom >&2; exit 3"})
	if err == nil {
		t.Fatal("expected error for non-zero exit")
	}
	if !strings.Contains(err.Error(), StepExecute) {
		t.Errorf("expected step name in error, got: %v", err)
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("expected last output line in error, got: %v", err)
	}
}

func TestShellExecutor_Timeout(t *testing.T) {
	e := NewShellExecutor("")
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := e.Run(ctx, Command{Step: "sleep", Script: "sleep 10"})
	if err == nil {
		t.Fatal("expected error on cancellation")
	}
	if time.Since(start) > 5*time.Second {
		t.Errorf("cancellation took too long: %s", time.Since(start))
	}
}

func TestShellExecutor_WorkingDirAndEnv(t *testing.T) {
	dir := t.TempDir()
	logDir := t.TempDir()
	e := NewShellExecutor(logDir)

	err := e.Run(context.Background(), Command{
		Step:   "pwd",
		RunID:  "01-01-2024--ABCDEF",
		Dir:    dir,
		Script: `pwd; echo "value=$SCRIPTFORGE_TEST"`,
		Env:    map[string]string{"SCRIPTFORGE_TEST": "ok", "PATH": os.Getenv("PATH")},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(logDir, "01-01-2024--ABCDEF.pwd.log"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), dir) {
		t.Errorf("expected working dir %q in output, got: %s", dir, data)
	}
	if !strings.Contains(string(data), "value=ok") {
		t.Errorf("expected env value in output, got: %s", data)
	}
}

func TestShellExecutor_EnvIsExplicit(t *testing.T) {
	t.Setenv("SCRIPTFORGE_LEAK", "host")
	logDir := t.TempDir()
	e := NewShellExecutor(logDir)

	err := e.Run(context.Background(), Command{
		Step:   "env",
		Script: `echo "leak=${SCRIPTFORGE_LEAK:-unset}"`,
		Env:    map[string]string{"PATH": os.Getenv("PATH")},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(logDir, "env.log"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "leak=unset") {
		t.Errorf("expected only the explicit env to reach the child, got: %s", data)
	}
}

func TestLineLogger_SplitsAndKeepsLast(t *testing.T) {
	l := newLineLogger("test")
	_, _ = l.Write([]byte("first\nsec"))
	_, _ = l.Write([]byte("ond\n\nthird"))
	if l.Last() != "second" {
		t.Errorf("expected last complete line 'second', got %q", l.Last())
	}
	l.Flush()
	if l.Last() != "third" {
		t.Errorf("expected flushed partial line 'third', got %q", l.Last())
	}
}
