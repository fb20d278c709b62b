package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/ppiankov/scriptforge/internal/task"
)

// WriteJSONResults writes task results as indented JSON to path.
func WriteJSONResults(results []*task.TaskResult, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	if err := EncodeJSON(f, results); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// EncodeJSON writes results to w as an indented JSON array.
func EncodeJSON(w io.Writer, results []*task.TaskResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}
	return nil
}
