package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/scriptforge/internal/toolchain"
)

// Settings holds persistent CLI defaults loaded from a config file.
type Settings struct {
	DagsRoot       string        `yaml:"dags_root"`
	SettingsModule string        `yaml:"settings_module"` // DJANGO_SETTINGS_MODULE for generated scripts
	LogDir         string        `yaml:"log_dir"`         // subprocess output logs; empty disables
	MaxRuntime     time.Duration `yaml:"max_runtime"`
	StateFile      string        `yaml:"state_file"`

	Toolchain *ToolchainConfig `yaml:"toolchain,omitempty"`

	// Named target functions tasks may reference with "function: <alias>"
	Functions map[string]FunctionRef `yaml:"functions,omitempty"`
}

// ToolchainConfig overrides how Poetry is located, installed, and invoked.
type ToolchainConfig struct {
	Binary       string `yaml:"binary,omitempty"`
	InstallerURL string `yaml:"installer_url,omitempty"`
	Interpreter  string `yaml:"interpreter,omitempty"`
	EnvScript    string `yaml:"env_script,omitempty"`
	Python       string `yaml:"python,omitempty"`
}

// FunctionRef names a target function by module path and name.
type FunctionRef struct {
	Module string `yaml:"module"`
	Name   string `yaml:"name"`
}

// Poetry converts the toolchain section; a nil section yields defaults.
func (s *Settings) Poetry() toolchain.Poetry {
	if s.Toolchain == nil {
		return toolchain.Poetry{}
	}
	return toolchain.Poetry{
		Binary:       s.Toolchain.Binary,
		InstallerURL: s.Toolchain.InstallerURL,
		Interpreter:  s.Toolchain.Interpreter,
		EnvScript:    s.Toolchain.EnvScript,
		Python:       s.Toolchain.Python,
	}
}

// LoadSettings reads a YAML config file into Settings.
// If the file does not exist, it returns zero-value Settings and nil error.
func LoadSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Settings{}, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	for alias, ref := range s.Functions {
		if ref.Module == "" || ref.Name == "" {
			return nil, fmt.Errorf("function %q needs both module and name", alias)
		}
	}

	return &s, nil
}
