package reporter

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/scriptforge/internal/task"
)

func TestTextReporter_PrintHeader(t *testing.T) {
	var buf bytes.Buffer
	r := NewTextReporter(&buf, false)
	r.PrintHeader(3, "/opt/airflow/dags")

	out := buf.String()
	if !strings.Contains(out, "3 tasks") {
		t.Errorf("expected '3 tasks' in output, got: %s", out)
	}
	if !strings.Contains(out, "/opt/airflow/dags") {
		t.Errorf("expected dags root in output, got: %s", out)
	}
}

func TestTextReporter_PrintResult(t *testing.T) {
	var buf bytes.Buffer
	r := NewTextReporter(&buf, false)

	r.PrintResult(&task.TaskResult{TaskID: "ok-task", State: task.StateCompleted, Duration: 1500 * time.Millisecond, Value: int64(42)})
	r.PrintResult(&task.TaskResult{TaskID: "nil-task", State: task.StateCompleted})
	r.PrintResult(&task.TaskResult{TaskID: "bad-task", State: task.StateFailed, Error: "step \"execute\" failed"})

	out := buf.String()
	for _, want := range []string{"✓ ok-task", "42", "1.5s", "(no value)", "✗ bad-task", "step \"execute\" failed"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output, got:\n%s", want, out)
		}
	}
}

func TestTextReporter_PrintSummary(t *testing.T) {
	var buf bytes.Buffer
	r := NewTextReporter(&buf, false)
	r.PrintSummary([]*task.TaskResult{
		{TaskID: "a", State: task.StateCompleted},
		{TaskID: "b", State: task.StateFailed},
		{TaskID: "c", State: task.StateCompleted},
	})

	if !strings.Contains(buf.String(), "Total: 3  Completed: 2  Failed: 1") {
		t.Errorf("unexpected summary: %s", buf.String())
	}
}

func TestTextReporter_NoColorHasNoEscapes(t *testing.T) {
	var buf bytes.Buffer
	r := NewTextReporter(&buf, false)
	r.PrintResult(&task.TaskResult{TaskID: "a", State: task.StateFailed, Error: "x"})
	if strings.Contains(buf.String(), "\x1b[") {
		t.Errorf("expected no ANSI escapes without color, got %q", buf.String())
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is too long", 8, "this is…"},
		{"ab", 1, "a"},
	}
	for _, tt := range tests {
		if got := Truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestWriteJSONResults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.json")
	results := []*task.TaskResult{
		{TaskID: "a", RunID: "01-05-2024--ABC123", State: task.StateCompleted, Value: map[string]any{"sum": int64(3)}},
	}
	if err := WriteJSONResults(results, path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var decoded []map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(decoded) != 1 || decoded[0]["state"] != "COMPLETED" {
		t.Errorf("unexpected report: %s", data)
	}
	value := decoded[0]["value"].(map[string]any)
	if value["sum"] != float64(3) {
		t.Errorf("unexpected value: %v", value)
	}
}
