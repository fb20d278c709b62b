// Package script renders the Python runner that the toolchain executes
// inside the target project.
package script

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"regexp"
	"text/template"

	"github.com/ppiankov/scriptforge/internal/codec"
)

// DefaultSettingsModule is the Django settings module exported when none is configured.
const DefaultSettingsModule = "vsuite.config.settings"

// wrapperName is the function the rendered template calls.
const wrapperName = "execution_function"

var (
	identPattern  = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	modulePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)
)

// Callable identifies the target function by module path and name.
type Callable struct {
	Module string
	Name   string
	// ForwardArgs passes the decoded args and kwargs to the target. When
	// false the target is called with no arguments.
	ForwardArgs bool
}

// Validate checks that the module and name are plain Python identifiers,
// so nothing but an import reaches the generated source.
func (c Callable) Validate() error {
	if !modulePattern.MatchString(c.Module) {
		return fmt.Errorf("invalid function module %q", c.Module)
	}
	if !identPattern.MatchString(c.Name) {
		return fmt.Errorf("invalid function name %q", c.Name)
	}
	return nil
}

// Source returns the wrapper definition. The wrapper accepts whatever the
// template passes it; the target only receives them with ForwardArgs.
// The target's return value is the wrapper's return value.
func (c Callable) Source() string {
	call := c.Name + "()"
	if c.ForwardArgs {
		call = c.Name + "(*args, **kwargs)"
	}
	return fmt.Sprintf("def %s(*args, **kwargs):\n    from %s import %s\n    return %s\n",
		wrapperName, c.Module, c.Name, call)
}

var runnerTemplate = template.Must(template.New("runner").Parse(`import os
import sys

import {{.Serializer}}

# Script
{{.CallableSource}}
arg_dict = {"args": [], "kwargs": {}}
if os.path.exists(sys.argv[1]):
    with open(sys.argv[1], "rb") as file:
        arg_dict = {{.Serializer}}.load(file)

# Read string args
with open(sys.argv[3], "r") as file:
    virtualenv_string_args = list(map(lambda x: x.strip(), list(file)))

res = {{.Callable}}(*arg_dict["args"], **arg_dict["kwargs"])

# Write output
with open(sys.argv[2], "wb") as file:
    if res is not None:
        {{.Serializer}}.dump(res, file)
`))

var headerTemplate = template.Must(template.New("header").Parse(`import os
import django
os.environ.setdefault("DJANGO_SETTINGS_MODULE", "{{.}}")
print('Current Working Directory ' , os.getcwd())

print('Working Dir Files' , os.listdir())

print('Current Base DIR' , os.getenv('BASE_DIR'))

BASE_DIR = os.path.dirname(os.path.dirname(__file__))

print('Current Base DIR' , os.getenv('BASE_DIR'))

django.setup()

`))

type runnerData struct {
	Serializer     string
	Callable       string
	CallableSource string
}

// Generator writes the runner template and the final script.
type Generator struct {
	SettingsModule string
	// Serializer is the Python module used to load arguments and dump the
	// result. Defaults to codec.Module.
	Serializer string
}

// Write renders the runner template to templatePath, then writes scriptPath
// as the framework bootstrap header followed by the template's contents.
func (g Generator) Write(scriptPath, templatePath string, c Callable) error {
	if err := c.Validate(); err != nil {
		return err
	}
	settings := g.SettingsModule
	if settings == "" {
		settings = DefaultSettingsModule
	}
	if !modulePattern.MatchString(settings) {
		return fmt.Errorf("invalid settings module %q", settings)
	}

	serializer := g.Serializer
	if serializer == "" {
		serializer = codec.Module
	}

	var body bytes.Buffer
	if err := runnerTemplate.Execute(&body, runnerData{
		Serializer:     serializer,
		Callable:       wrapperName,
		CallableSource: c.Source(),
	}); err != nil {
		return fmt.Errorf("render script template: %w", err)
	}
	if err := os.WriteFile(templatePath, body.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write script template: %w", err)
	}

	out, err := os.Create(scriptPath)
	if err != nil {
		return fmt.Errorf("create script: %w", err)
	}
	defer func() { _ = out.Close() }()

	if err := headerTemplate.Execute(out, settings); err != nil {
		return fmt.Errorf("write script header: %w", err)
	}

	tmpl, err := os.Open(templatePath)
	if err != nil {
		return fmt.Errorf("open script template: %w", err)
	}
	defer func() { _ = tmpl.Close() }()

	if _, err := io.Copy(out, tmpl); err != nil {
		return fmt.Errorf("copy script template: %w", err)
	}
	return out.Close()
}
