package config

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/pkg/errors"
)

// Validate checks that every required field is set and every required path exists.
// It only reads the filesystem.
func Validate(cfg Config) (Validated, error) {
	required := []struct {
		name  string
		value string
	}{
		{"input_folder", cfg.InputFolder},
		{"workspace_folder", cfg.WorkspaceFolder},
		{"colmap_executable", cfg.ColmapExecutable},
	}
	for _, field := range required {
		if strings.TrimSpace(field.value) == "" {
			return Validated{}, &FieldError{Field: field.name, Err: ErrMissingField}
		}
	}

	if err := checkDir("input_folder", cfg.InputFolder); err != nil {
		return Validated{}, err
	}
	if err := checkDir("workspace_folder", cfg.WorkspaceFolder); err != nil {
		return Validated{}, err
	}
	engine, err := resolveExecutable("colmap_executable", cfg.ColmapExecutable)
	if err != nil {
		return Validated{}, err
	}
	if cfg.OutputFolder != "" {
		if err := checkCreatableDir("output_folder", cfg.OutputFolder); err != nil {
			return Validated{}, err
		}
	}
	if cfg.Workers < 0 {
		return Validated{}, errors.Errorf("workers: must not be negative, got %d", cfg.Workers)
	}
	if cfg.StageTimeout < 0 {
		return Validated{}, errors.Errorf("stage_timeout: must not be negative, got %s", cfg.StageTimeout)
	}

	return Validated{cfg: cfg, engine: engine}, nil
}

// Validate is a shorthand for the package level Validate.
func (c Config) Validate() (Validated, error) {
	return Validate(c)
}

func checkDir(field, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return &PathError{Field: field, Path: path, Err: statError(err)}
	}
	if !info.IsDir() {
		return &PathError{Field: field, Path: path, Err: ErrNotDirectory}
	}

	return nil
}

// checkCreatableDir accepts an existing directory or a missing one whose parent exists.
func checkCreatableDir(field, path string) error {
	info, err := os.Stat(path)
	switch {
	case err == nil && !info.IsDir():
		return &PathError{Field: field, Path: path, Err: ErrNotDirectory}
	case err == nil:
		return nil
	case !os.IsNotExist(err):
		return &PathError{Field: field, Path: path, Err: err}
	}

	return checkDir(field, filepath.Dir(filepath.Clean(path)))
}

func resolveExecutable(field, name string) (string, error) {
	if !strings.ContainsRune(name, os.PathSeparator) && !strings.ContainsRune(name, '/') {
		path, err := exec.LookPath(name)
		if err != nil {
			return "", &PathError{Field: field, Path: name, Err: ErrPathNotFound}
		}
		name = path
	}

	info, err := os.Stat(name)
	if err != nil {
		return "", &PathError{Field: field, Path: name, Err: statError(err)}
	}
	if info.IsDir() || (runtime.GOOS != "windows" && info.Mode().Perm()&0o111 == 0) {
		return "", &PathError{Field: field, Path: name, Err: ErrNotExecutable}
	}

	abs, err := filepath.Abs(name)
	if err != nil {
		return "", &PathError{Field: field, Path: name, Err: err}
	}

	return abs, nil
}

func statError(err error) error {
	if os.IsNotExist(err) {
		return ErrPathNotFound
	}

	return err
}
