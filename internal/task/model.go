package task

import (
	"encoding/json"
	"path/filepath"
	"time"
)

// TaskState represents the outcome of a task execution.
type TaskState int

const (
	StatePending TaskState = iota
	StateRunning
	StateCompleted
	StateFailed
)

func (s TaskState) String() string {
	switch s {
	case StatePending:
		return "PENDING"
	case StateRunning:
		return "RUNNING"
	case StateCompleted:
		return "COMPLETED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// MarshalJSON writes the state as its string name.
func (s TaskState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Context is the mapping handed to a task by its host on invocation.
// Execute merges op_kwargs and templates_dict into it.
type Context map[string]any

// Task is a single script-runner definition from a task file.
// It is treated as immutable once loaded.
type Task struct {
	ID               string            `yaml:"id" json:"id"`
	ProjectName      string            `yaml:"project_name" json:"project_name"`
	ProjectStage     string            `yaml:"project_stage" json:"project_stage"`
	Function         string            `yaml:"function,omitempty" json:"function,omitempty"` // registry alias, resolved at load
	FunctionFilePath string            `yaml:"function_file_path" json:"function_file_path"`
	FunctionName     string            `yaml:"function_name" json:"function_name"`
	OpArgs           []any             `yaml:"op_args,omitempty" json:"op_args,omitempty"`
	OpKwargs         map[string]any    `yaml:"op_kwargs,omitempty" json:"op_kwargs,omitempty"`
	StringArgs       []string          `yaml:"string_args,omitempty" json:"string_args,omitempty"`
	TemplatesDict    map[string]any    `yaml:"templates_dict,omitempty" json:"templates_dict,omitempty"`
	ForwardArgs      bool              `yaml:"forward_args,omitempty" json:"forward_args,omitempty"`
	Env              map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
	EnvFiles         []string          `yaml:"env_files,omitempty" json:"env_files,omitempty"`
	SourceFile       string            `yaml:"-" json:"source_file,omitempty"` // populated during multi-file load
}

// ProjectDir returns <root>/<stage>/<name>, where the project lives and
// where its temporary artifacts are written.
func (t *Task) ProjectDir(root string) string {
	return filepath.Join(root, t.ProjectStage, t.ProjectName)
}

// TaskFile is the top-level structure of a task file.
type TaskFile struct {
	Description string `yaml:"description,omitempty"`
	Tasks       []Task `yaml:"tasks"`
}

// TaskResult captures the outcome of executing a single task.
type TaskResult struct {
	TaskID    string        `json:"task_id"`
	RunID     string        `json:"run_id,omitempty"`
	State     TaskState     `json:"state"`
	StartedAt time.Time     `json:"started_at,omitempty"`
	EndedAt   time.Time     `json:"ended_at,omitempty"`
	Duration  time.Duration `json:"duration,omitempty"`
	Value     any           `json:"value,omitempty"`
	Error     string        `json:"error,omitempty"`
}
