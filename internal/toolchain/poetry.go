// Package toolchain builds the shell commands that provision the package
// manager and run the generated script inside the project's environment.
package toolchain

import (
	"fmt"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// Defaults for the Poetry toolchain.
const (
	DefaultBinary       = "poetry"
	DefaultInstallerURL = "https://raw.githubusercontent.com/python-poetry/poetry/master/get-poetry.py"
	DefaultInterpreter  = "python"
	DefaultEnvScript    = "$HOME/.poetry/env"
	DefaultPython       = "python3"
)

// Poetry describes how to find, install, and use Poetry.
// Zero fields fall back to the package defaults.
type Poetry struct {
	Binary       string
	InstallerURL string
	Interpreter  string // runs the downloaded installer
	EnvScript    string // sourced before running poetry; may reference $HOME
	Python       string // interpreter used via "poetry run"
}

// withDefaults returns a copy with every empty field filled in.
func (p Poetry) withDefaults() Poetry {
	if p.Binary == "" {
		p.Binary = DefaultBinary
	}
	if p.InstallerURL == "" {
		p.InstallerURL = DefaultInstallerURL
	}
	if p.Interpreter == "" {
		p.Interpreter = DefaultInterpreter
	}
	if p.EnvScript == "" {
		p.EnvScript = DefaultEnvScript
	}
	if p.Python == "" {
		p.Python = DefaultPython
	}
	return p
}

// BootstrapScript probes for the binary and, when it is missing, pipes the
// official installer into the interpreter. The download is not verified.
func (p Poetry) BootstrapScript() (string, error) {
	p = p.withDefaults()
	url, err := quote(p.InstallerURL)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(" %s --help || curl -sSL %s | %s ", p.Binary, url, p.Interpreter), nil
}

// ExecScript changes into projectDir, locks and installs dependencies, and
// runs script with args under the project's environment.
func (p Poetry) ExecScript(projectDir, script string, args ...string) (string, error) {
	p = p.withDefaults()

	dir, err := quote(projectDir)
	if err != nil {
		return "", err
	}
	run := []string{p.Binary, "run", p.Python}
	for _, a := range append([]string{script}, args...) {
		q, err := quote(a)
		if err != nil {
			return "", err
		}
		run = append(run, q)
	}

	steps := []string{
		"cd " + dir,
		"export PIP_USER=false",
		"source " + p.EnvScript,
		p.Binary + " lock",
		p.Binary + " install",
		strings.Join(run, " "),
	}
	return " " + strings.Join(steps, " && ") + " ", nil
}

func quote(s string) (string, error) {
	q, err := syntax.Quote(s, syntax.LangBash)
	if err != nil {
		return "", fmt.Errorf("quote %q: %w", s, err)
	}
	return q, nil
}
