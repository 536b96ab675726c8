package pipeline

import (
	"path/filepath"
	"sort"
	"time"

	"github.com/askiada/go-reconstruct/pkg/config"
)

// PathKey names a location of the workspace.
type PathKey string

// Built-in keys, always available to every stage.
const (
	PathImages    PathKey = "images"
	PathWorkspace PathKey = "workspace"
)

// Stage is one external process step of the chain.
type Stage struct {
	Name string
	// Command builds the argument vector, executable included. It is only called once
	// every required path exists.
	Command  func(cfg config.Validated, paths DerivedPaths) []string
	Requires []PathKey
	Produces []PathKey
	// Timeout overrides the pipeline stage timeout when not zero.
	Timeout time.Duration
}

// Plan is a fixed stage chain together with the workspace layout it operates on.
type Plan struct {
	Stages []Stage
	// Layout maps path keys to locations relative to the workspace folder.
	Layout map[PathKey]string
	// Dirs lists the layout keys created as directories while preparing the workspace.
	Dirs []PathKey
	// Artifact is the key of the final product of the chain.
	Artifact PathKey
}

// DerivedPaths resolves path keys to concrete locations. It is computed once per run and
// never changes afterwards.
type DerivedPaths struct {
	paths map[PathKey]string
}

func derivePaths(cfg config.Validated, layout map[PathKey]string) DerivedPaths {
	paths := make(map[PathKey]string, len(layout)+2)
	for key, rel := range layout {
		if filepath.IsAbs(rel) {
			paths[key] = filepath.Clean(rel)

			continue
		}
		paths[key] = filepath.Join(cfg.Workspace(), rel)
	}
	paths[PathImages] = cfg.ImageFolder()
	paths[PathWorkspace] = cfg.Workspace()

	return DerivedPaths{paths: paths}
}

// Path returns the location of key, or an empty string for an unknown key.
func (d DerivedPaths) Path(key PathKey) string {
	return d.paths[key]
}

// Lookup returns the location of key and whether it is known.
func (d DerivedPaths) Lookup(key PathKey) (string, bool) {
	path, ok := d.paths[key]

	return path, ok
}

// Keys returns every known key in lexical order.
func (d DerivedPaths) Keys() []PathKey {
	keys := make([]PathKey, 0, len(d.paths))
	for key := range d.paths {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	return keys
}

func keyNames(keys []PathKey) []string {
	res := make([]string, len(keys))
	for i, key := range keys {
		res[i] = string(key)
	}

	return res
}
