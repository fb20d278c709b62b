package runner

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
)

const defaultShell = "bash"

// ShellExecutor runs commands via "<shell> -c". Output is streamed line by
// line to slog and, when LogDir is set, to <LogDir>/<run>.<step>.log.
type ShellExecutor struct {
	Shell  string
	LogDir string
}

// NewShellExecutor creates a ShellExecutor that runs bash.
func NewShellExecutor(logDir string) *ShellExecutor {
	return &ShellExecutor{Shell: defaultShell, LogDir: logDir}
}

// Run executes cmd and returns an error on a non-zero exit.
func (e *ShellExecutor) Run(ctx context.Context, c Command) error {
	shell := e.Shell
	if shell == "" {
		shell = defaultShell
	}

	slog.Info("running command", "step", c.Step, "run", c.RunID, "script", c.Script)

	cmd := exec.CommandContext(ctx, shell, "-c", c.Script)
	cmd.Dir = c.Dir
	if c.Env != nil {
		cmd.Env = EnvSlice(c.Env)
	}
	setupProcessGroup(cmd)

	out := newLineLogger(c.Step)
	var w io.Writer = out
	if logFile := e.openLog(c); logFile != nil {
		defer func() { _ = logFile.Close() }()
		w = io.MultiWriter(out, logFile)
	}
	cmd.Stdout = w
	cmd.Stderr = w

	err := cmd.Run()
	out.Flush()

	if err != nil {
		if last := out.Last(); last != "" {
			return fmt.Errorf("step %q failed: %w (last output: %s)", c.Step, err, last)
		}
		return fmt.Errorf("step %q failed: %w", c.Step, err)
	}
	slog.Info("command exited with return code 0", "step", c.Step, "run", c.RunID)
	return nil
}

func (e *ShellExecutor) openLog(c Command) *os.File {
	if e.LogDir == "" {
		return nil
	}
	if err := os.MkdirAll(e.LogDir, 0o755); err != nil {
		slog.Warn("cannot create log dir", "path", e.LogDir, "error", err)
		return nil
	}
	name := c.Step + ".log"
	if c.RunID != "" {
		name = c.RunID + "." + name
	}
	path := filepath.Join(e.LogDir, name)
	f, err := os.Create(path)
	if err != nil {
		slog.Warn("cannot create log file", "path", path, "error", err)
		return nil
	}
	return f
}

// lineLogger splits subprocess output into lines, logs each one, and keeps
// the last non-empty line for error reporting.
type lineLogger struct {
	mu   sync.Mutex
	step string
	buf  bytes.Buffer
	last string
}

func newLineLogger(step string) *lineLogger {
	return &lineLogger{step: step}
}

func (l *lineLogger) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.buf.Write(p)
	for {
		i := bytes.IndexByte(l.buf.Bytes(), '\n')
		if i < 0 {
			break
		}
		line := string(bytes.TrimRight(l.buf.Next(i+1), "\r\n"))
		l.emit(line)
	}
	return len(p), nil
}

// Flush logs any trailing partial line.
func (l *lineLogger) Flush() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.buf.Len() > 0 {
		l.emit(l.buf.String())
		l.buf.Reset()
	}
}

// Last returns the last non-empty line seen.
func (l *lineLogger) Last() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.last
}

func (l *lineLogger) emit(line string) {
	if line == "" {
		return
	}
	l.last = line
	slog.Info(line, "step", l.step)
}
