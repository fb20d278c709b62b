package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/scriptforge/internal/task"
)

// Load reads a task file. YAML and JSON are both accepted; call Resolve
// before using the tasks.
func Load(path string) (*task.TaskFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tasks file: %w", err)
	}

	var tf task.TaskFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("parse tasks file %s: %w", path, err)
	}
	for i := range tf.Tasks {
		tf.Tasks[i].SourceFile = path
	}

	return &tf, nil
}

// LoadMulti loads several task files and merges them into one.
// Task IDs must be unique across files.
func LoadMulti(paths []string) (*task.TaskFile, error) {
	merged := &task.TaskFile{}
	for _, p := range paths {
		tf, err := Load(p)
		if err != nil {
			return nil, err
		}
		merged.Tasks = append(merged.Tasks, tf.Tasks...)
	}
	return merged, nil
}

// ResolveGlob expands pattern into a sorted list of existing files.
// A pattern without glob characters must name an existing file.
func ResolveGlob(pattern string) ([]string, error) {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("bad pattern %q: %w", pattern, err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no task files match %q", pattern)
	}
	sort.Strings(matches)
	return matches, nil
}

// Resolve fills function_file_path/function_name from the registry for
// tasks that name a function alias, then validates the file.
func Resolve(tf *task.TaskFile, registry map[string]FunctionRef) error {
	for i := range tf.Tasks {
		t := &tf.Tasks[i]
		if t.Function == "" {
			continue
		}
		ref, ok := registry[t.Function]
		if !ok {
			return fmt.Errorf("task %q references unknown function %q", t.ID, t.Function)
		}
		if t.FunctionFilePath != "" || t.FunctionName != "" {
			return fmt.Errorf("task %q sets both function and function_file_path/function_name", t.ID)
		}
		t.FunctionFilePath = ref.Module
		t.FunctionName = ref.Name
	}
	return validate(tf)
}

// validate checks required fields and duplicate IDs.
func validate(tf *task.TaskFile) error {
	if len(tf.Tasks) == 0 {
		return fmt.Errorf("tasks file contains no tasks")
	}

	ids := make(map[string]struct{}, len(tf.Tasks))
	for _, t := range tf.Tasks {
		if t.ID == "" {
			return fmt.Errorf("task with empty id")
		}
		if _, dup := ids[t.ID]; dup {
			return fmt.Errorf("duplicate task id: %q", t.ID)
		}
		ids[t.ID] = struct{}{}

		if t.ProjectName == "" {
			return fmt.Errorf("task %q has empty project_name", t.ID)
		}
		if t.ProjectStage == "" {
			return fmt.Errorf("task %q has empty project_stage", t.ID)
		}
		if t.FunctionFilePath == "" {
			return fmt.Errorf("task %q has empty function_file_path", t.ID)
		}
		if t.FunctionName == "" {
			return fmt.Errorf("task %q has empty function_name", t.ID)
		}
	}
	return nil
}

// ValidateProjects checks that every referenced project directory exists
// under dagsRoot.
func ValidateProjects(tf *task.TaskFile, dagsRoot string) error {
	seen := make(map[string]struct{})
	for _, t := range tf.Tasks {
		dir := t.ProjectDir(dagsRoot)
		if _, ok := seen[dir]; ok {
			continue
		}
		seen[dir] = struct{}{}

		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("project %s/%s not found at %s: %w", t.ProjectStage, t.ProjectName, dir, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("project %s/%s path %s is not a directory", t.ProjectStage, t.ProjectName, dir)
		}
	}
	return nil
}
