package runner

import (
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"strings"

	"github.com/joho/godotenv"
)

// BuildEnv constructs the subprocess environment. Precedence, lowest first:
//
//  1. base, the host environment as "KEY=VALUE" entries
//  2. dotenv files, in order; relative paths resolve against baseDir
//  3. vars
func BuildEnv(base []string, baseDir string, files []string, vars map[string]string) (map[string]string, error) {
	env := make(map[string]string, len(base)+len(vars))
	for _, entry := range base {
		k, v, ok := strings.Cut(entry, "=")
		if !ok || k == "" {
			continue
		}
		env[k] = v
	}

	for _, f := range files {
		path := f
		if !filepath.IsAbs(path) && baseDir != "" {
			path = filepath.Join(baseDir, path)
		}
		loaded, err := godotenv.Read(path)
		if err != nil {
			return nil, fmt.Errorf("load env file %s: %w", path, err)
		}
		maps.Copy(env, loaded)
	}

	maps.Copy(env, vars)
	return env, nil
}

// EnvSlice renders env as sorted "KEY=VALUE" entries for exec.Cmd.
func EnvSlice(env map[string]string) []string {
	keys := slices.Sorted(maps.Keys(env))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+env[k])
	}
	return out
}
