package config

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrMissingField  = errors.New("missing required field")
	ErrPathNotFound  = errors.New("path not found")
	ErrNotDirectory  = errors.New("not a directory")
	ErrNotExecutable = errors.New("not executable")
)

// FieldError reports a required field that is absent.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

// PathError reports a configured path that cannot be used.
type PathError struct {
	Field string
	Path  string
	Err   error
}

func (e *PathError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Field, e.Path, e.Err)
}

func (e *PathError) Unwrap() error { return e.Err }
