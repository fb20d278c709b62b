// Package artifact manages the temporary files one execution hands to and
// reads back from the generated script.
package artifact

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ppiankov/scriptforge/internal/codec"
)

const (
	runIDDateLayout = "02-01-2006"
	runIDAlphabet   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	runIDSuffixLen  = 6

	scriptSuffix   = "-script-airflow-system"
	templateSuffix = "-script_template-airflow-system"
)

// NewRunID returns "<dd-mm-YYYY>--<6 random chars>". The suffix is not
// checked against existing files.
func NewRunID(now time.Time, rnd *rand.Rand) string {
	var b strings.Builder
	b.WriteString(now.Format(runIDDateLayout))
	b.WriteString("--")
	for range runIDSuffixLen {
		var i int
		if rnd != nil {
			i = rnd.IntN(len(runIDAlphabet))
		} else {
			i = rand.IntN(len(runIDAlphabet))
		}
		b.WriteByte(runIDAlphabet[i])
	}
	return b.String()
}

// Set holds the five artifact paths of one run.
type Set struct {
	RunID      string
	Input      string
	Output     string
	StringArgs string
	Script     string
	Template   string
}

// NewSet names the artifacts for runID inside dir.
func NewSet(dir, runID string) Set {
	base := filepath.Join(dir, runID)
	return Set{
		RunID:      runID,
		Input:      base + scriptSuffix + ".in",
		Output:     base + scriptSuffix + ".out",
		StringArgs: base + scriptSuffix + ".txt",
		Script:     base + scriptSuffix + ".py",
		Template:   base + templateSuffix + ".py",
	}
}

// Paths returns every artifact path.
func (s Set) Paths() []string {
	return []string{s.Input, s.Output, s.StringArgs, s.Script, s.Template}
}

// ScriptArgs returns the positional arguments the generated script expects:
// input, output, string args.
func (s Set) ScriptArgs() []string {
	return []string{s.Input, s.Output, s.StringArgs}
}

// Cleanup removes every artifact. Missing files are ignored and other
// failures are only logged, so it is safe to call more than once.
func (s Set) Cleanup() {
	for _, p := range s.Paths() {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Warn("failed to remove artifact", "path", p, "error", err)
		}
	}
}

// WriteArgs encodes {"args": args, "kwargs": kwargs} to path. When both are
// empty nothing is written and the file is not created.
func WriteArgs(path string, args []any, kwargs map[string]any) (bool, error) {
	if len(args) == 0 && len(kwargs) == 0 {
		return false, nil
	}
	if args == nil {
		args = []any{}
	}
	if kwargs == nil {
		kwargs = map[string]any{}
	}

	data, err := codec.Marshal(map[string]any{"args": args, "kwargs": kwargs})
	if err != nil {
		return false, fmt.Errorf("write args: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return false, fmt.Errorf("write args: %w", err)
	}
	return true, nil
}

// WriteStringArgs writes the string arguments joined by newlines.
// The file is always created, empty for no arguments.
func WriteStringArgs(path string, args []string) error {
	if err := os.WriteFile(path, []byte(strings.Join(args, "\n")), 0o644); err != nil {
		return fmt.Errorf("write string args: %w", err)
	}
	return nil
}

// ReadResult decodes the output artifact. An empty file means the target
// returned nothing and yields nil.
func ReadResult(path string) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read result: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	v, err := codec.Unmarshal(data)
	if err != nil {
		slog.Error("error deserializing result", "path", path, "error", err)
		return nil, err
	}
	return v, nil
}
