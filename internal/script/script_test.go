package script

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func TestCallable_Validate(t *testing.T) {
	tests := []struct {
		name    string
		c       Callable
		wantErr bool
	}{
		{"simple", Callable{Module: "pkg.mod", Name: "compute"}, false},
		{"single module", Callable{Module: "tasks", Name: "_run"}, false},
		{"empty module", Callable{Module: "", Name: "compute"}, true},
		{"empty name", Callable{Module: "pkg", Name: ""}, true},
		{"trailing dot", Callable{Module: "pkg.", Name: "compute"}, true},
		{"injection in name", Callable{Module: "pkg", Name: "f; import os"}, true},
		{"injection in module", Callable{Module: "os import system\nsystem", Name: "x"}, true},
		{"dotted name", Callable{Module: "pkg", Name: "a.b"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.c.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCallable_SourceCallsWithoutArguments(t *testing.T) {
	src := Callable{Module: "pkg.mod", Name: "compute"}.Source()

	if !strings.Contains(src, "from pkg.mod import compute\n") {
		t.Errorf("expected import line, got:\n%s", src)
	}
	if !strings.Contains(src, "    return compute()\n") {
		t.Errorf("expected zero-argument call returning its value, got:\n%s", src)
	}
	if !strings.HasPrefix(src, "def execution_function(*args, **kwargs):\n") {
		t.Errorf("unexpected wrapper signature:\n%s", src)
	}
}

func TestCallable_SourceForwardArgs(t *testing.T) {
	src := Callable{Module: "pkg.mod", Name: "compute", ForwardArgs: true}.Source()
	if !strings.Contains(src, "    return compute(*args, **kwargs)\n") {
		t.Errorf("expected forwarded call, got:\n%s", src)
	}
}

func TestGenerator_Write(t *testing.T) {
	dir := t.TempDir()
	scriptPath := filepath.Join(dir, "run.py")
	templatePath := filepath.Join(dir, "run_template.py")

	g := Generator{SettingsModule: "demo.settings"}
	if err := g.Write(scriptPath, templatePath, Callable{Module: "pkg.mod", Name: "compute"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tmpl, err := os.ReadFile(templatePath)
	if err != nil {
		t.Fatalf("read template: %v", err)
	}
	script, err := os.ReadFile(scriptPath)
	if err != nil {
		t.Fatalf("read script: %v", err)
	}

	if !strings.HasSuffix(string(script), string(tmpl)) {
		t.Error("expected script to end with the rendered template")
	}

	for _, want := range []string{
		"import django\n",
		`os.environ.setdefault("DJANGO_SETTINGS_MODULE", "demo.settings")`,
		"django.setup()\n",
		"from pkg.mod import compute\n",
		"import cbor2\n",
		"cbor2.load(file)",
		"cbor2.dump(res, file)",
		`res = execution_function(*arg_dict["args"], **arg_dict["kwargs"])`,
		"if os.path.exists(sys.argv[1]):",
		"virtualenv_string_args",
	} {
		if !strings.Contains(string(script), want) {
			t.Errorf("script missing %q", want)
		}
	}

	if strings.Index(string(script), "django.setup()") > strings.Index(string(script), "def execution_function") {
		t.Error("expected framework setup before the wrapper")
	}
}

func TestGenerator_DefaultSettingsModule(t *testing.T) {
	dir := t.TempDir()
	scriptPath := filepath.Join(dir, "run.py")

	if err := (Generator{}).Write(scriptPath, filepath.Join(dir, "t.py"), Callable{Module: "m", Name: "f"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, _ := os.ReadFile(scriptPath)
	if !strings.Contains(string(data), DefaultSettingsModule) {
		t.Errorf("expected default settings module in script")
	}
}

func TestGenerator_RejectsInvalidCallable(t *testing.T) {
	dir := t.TempDir()
	scriptPath := filepath.Join(dir, "run.py")

	err := (Generator{}).Write(scriptPath, filepath.Join(dir, "t.py"), Callable{Module: "m", Name: "f()"})
	if err == nil {
		t.Fatal("expected error for invalid callable")
	}
	if _, statErr := os.Stat(scriptPath); statErr == nil {
		t.Error("expected no script to be written")
	}
}

func TestGenerator_RejectsInvalidSettingsModule(t *testing.T) {
	dir := t.TempDir()
	g := Generator{SettingsModule: `x"); import os; ("`}
	if err := g.Write(filepath.Join(dir, "run.py"), filepath.Join(dir, "t.py"), Callable{Module: "m", Name: "f"}); err == nil {
		t.Fatal("expected error for invalid settings module")
	}
	if entries, _ := os.ReadDir(dir); len(entries) != 0 {
		t.Errorf("expected no files written, found %d", len(entries))
	}
}

func TestGenerator_HeaderPrintsBaseDirTwice(t *testing.T) {
	dir := t.TempDir()
	scriptPath := filepath.Join(dir, "run.py")
	if err := (Generator{}).Write(scriptPath, filepath.Join(dir, "t.py"), Callable{Module: "m", Name: "f"}); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(scriptPath)
	header := string(data)[:strings.Index(string(data), "django.setup()")]

	if n := strings.Count(header, "print('Current Base DIR'"); n != 2 {
		t.Errorf("expected 2 base dir prints, got %d", n)
	}
	assign := strings.Index(header, "BASE_DIR = ")
	if assign < 0 || strings.LastIndex(header, "print('Current Base DIR'") < assign {
		t.Error("expected a base dir print after the BASE_DIR assignment")
	}
}

// Stand-ins for the packages the generated script imports. The cbor2 stub
// speaks JSON so the test can write inputs and read outputs as text.
const (
	stubSerializer = `import json


def load(f):
    return json.loads(f.read().decode())


def dump(obj, f):
    f.write(json.dumps(obj, sort_keys=True).encode())
`
	stubDjango = `def setup():
    pass
`
	stubTarget = `import __main__


def compute(*args, **kwargs):
    return {"args": list(args), "kwargs": kwargs, "strings": getattr(__main__, "virtualenv_string_args", None)}


def nothing(*args, **kwargs):
    return None
`
)

func TestGenerator_ScriptRunsUnderPython(t *testing.T) {
	python, err := exec.LookPath("python3")
	if err != nil {
		t.Skip("python3 not available")
	}

	tests := []struct {
		name    string
		fn      string
		forward bool
		input   string // empty means no input artifact
		want    string
	}{
		{
			name:  "zero-arg call returns value",
			fn:    "compute",
			input: `{"args": [1, 2], "kwargs": {}}`,
			want:  `{"args": [], "kwargs": {}, "strings": ["x", "y"]}`,
		},
		{
			name:    "forwarded args",
			fn:      "compute",
			forward: true,
			input:   `{"args": [1, 2], "kwargs": {"templates_dict": {"a": "b"}}}`,
			want:    `{"args": [1, 2], "kwargs": {"templates_dict": {"a": "b"}}, "strings": ["x", "y"]}`,
		},
		{
			name:    "missing input artifact",
			fn:      "compute",
			forward: true,
			want:    `{"args": [], "kwargs": {}, "strings": ["x", "y"]}`,
		},
		{
			name: "none result leaves output empty",
			fn:   "nothing",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			files := map[string]string{
				"cbor2.py":        stubSerializer,
				"django.py":       stubDjango,
				"pkg/__init__.py": "",
				"pkg/mod.py":      stubTarget,
				"run.txt":         "x\ny",
			}
			for name, content := range files {
				p := filepath.Join(dir, name)
				if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
					t.Fatal(err)
				}
				if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
					t.Fatal(err)
				}
			}

			in := filepath.Join(dir, "run.in")
			out := filepath.Join(dir, "run.out")
			txt := filepath.Join(dir, "run.txt")
			if tt.input != "" {
				if err := os.WriteFile(in, []byte(tt.input), 0o644); err != nil {
					t.Fatal(err)
				}
			}

			scriptPath := filepath.Join(dir, "run.py")
			c := Callable{Module: "pkg.mod", Name: tt.fn, ForwardArgs: tt.forward}
			if err := (Generator{SettingsModule: "demo.settings"}).Write(scriptPath, filepath.Join(dir, "run_template.py"), c); err != nil {
				t.Fatalf("write script: %v", err)
			}

			cmd := exec.Command(python, scriptPath, in, out, txt)
			cmd.Dir = dir
			if output, err := cmd.CombinedOutput(); err != nil {
				t.Fatalf("script failed: %v\n%s", err, output)
			}

			got, err := os.ReadFile(out)
			if err != nil {
				t.Fatalf("read output: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("output = %q, want %q", got, tt.want)
			}
		})
	}
}
