// Package asdlrc loads the `.asdlrc` YAML configuration file: lib roots,
// the backend config path, and an env map merged into the process
// environment for keys not already set. See spec §6.2, §5.
package asdlrc

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/asdl-lang/asdlc/pkg/asdl/diag"
	"github.com/asdl-lang/asdlc/pkg/asdl/sourcemap"
	"gopkg.in/yaml.v3"
)

// SchemaVersion is the only `.asdlrc` schema_version this loader accepts.
const SchemaVersion = 1

type raw struct {
	SchemaVersion int               `yaml:"schema_version"`
	LibRoots      []string          `yaml:"lib_roots"`
	BackendConfig string            `yaml:"backend_config"`
	Env           map[string]string `yaml:"env"`
}

// RC is a loaded `.asdlrc`: relative lib roots already resolved against the
// rc file's directory (absolute when that directory path is), and the
// backend config path resolved the same way.
type RC struct {
	LibRoots      []string
	BackendConfig string
	Env           map[string]string
}

// Load parses contents (the file found at path) into an RC, expanding
// ${ASDLRC_DIR} and ${VAR} references and resolving relative lib_roots /
// backend_config entries against path's directory.
func Load(path string, contents []byte) (RC, diag.Bag) {
	var bag diag.Bag

	var r raw
	if err := yaml.Unmarshal(contents, &r); err != nil {
		bag.Emit(diag.Errorf("AST-020", sourcemap.Span{File: path}, "malformed .asdlrc: %s", err))
		return RC{}, bag
	}

	if r.SchemaVersion != SchemaVersion {
		bag.Emit(diag.Errorf("AST-021", sourcemap.Span{File: path}, ".asdlrc schema_version %d unsupported (expected %d)", r.SchemaVersion, SchemaVersion))
		return RC{}, bag
	}

	dir := filepath.Dir(path)

	rc := RC{Env: r.Env}
	for _, root := range r.LibRoots {
		rc.LibRoots = append(rc.LibRoots, resolve(dir, root))
	}

	if r.BackendConfig != "" {
		rc.BackendConfig = resolve(dir, r.BackendConfig)
	}

	return rc, bag
}

// resolve expands ${ASDLRC_DIR} and ${VAR} references in p, then joins it
// onto dir if it isn't already absolute.
func resolve(dir, p string) string {
	expanded := os.Expand(p, func(name string) string {
		if name == "ASDLRC_DIR" {
			return dir
		}
		return os.Getenv(name)
	})

	if filepath.IsAbs(expanded) {
		return filepath.Clean(expanded)
	}

	return filepath.Clean(filepath.Join(dir, expanded))
}

// ApplyEnv merges rc.Env into the process environment, never overwriting a
// variable that is already set (spec §5: ".asdlrc env merged into environ
// only for missing keys").
func (rc RC) ApplyEnv() {
	for k, v := range rc.Env {
		if _, ok := os.LookupEnv(k); ok {
			continue
		}
		os.Setenv(k, v)
	}
}

// LibRootsString renders LibRoots as a colon-separated string, the form
// importer.Config.AsdlLibPath expects.
func (rc RC) LibRootsString() string {
	return strings.Join(rc.LibRoots, ":")
}
