package runner

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestBuildEnv_Precedence(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("A=file\nB=file\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	env, err := BuildEnv(
		[]string{"A=host", "B=host", "C=host", "MALFORMED"},
		dir,
		[]string{".env"},
		map[string]string{"B": "var"},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := map[string]string{"A": "file", "B": "var", "C": "host"}
	if !reflect.DeepEqual(env, want) {
		t.Errorf("env = %v, want %v", env, want)
	}
}

func TestBuildEnv_ValueWithEquals(t *testing.T) {
	env, err := BuildEnv([]string{"URL=a=b=c"}, "", nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env["URL"] != "a=b=c" {
		t.Errorf("expected value to keep '=', got %q", env["URL"])
	}
}

func TestBuildEnv_MissingFile(t *testing.T) {
	_, err := BuildEnv(nil, t.TempDir(), []string{"missing.env"}, nil)
	if err == nil {
		t.Fatal("expected error for missing env file")
	}
}

func TestBuildEnv_AbsoluteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "abs.env")
	if err := os.WriteFile(path, []byte("X=1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	env, err := BuildEnv(nil, "/nonexistent", []string{path}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env["X"] != "1" {
		t.Errorf("expected X=1, got %q", env["X"])
	}
}

func TestEnvSlice_Sorted(t *testing.T) {
	got := EnvSlice(map[string]string{"B": "2", "A": "1", "C": "3"})
	want := []string{"A=1", "B=2", "C=3"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("EnvSlice = %v, want %v", got, want)
	}
}
