// Package config holds the reconstruction configuration: defaults, file and flag loading,
// and the validation that every run must pass before any work starts.
package config

import (
	"time"
)

// Config is the configuration record as read from a file or flags.
// Fields are grouped by concern; the yaml names are also the JSON names.
type Config struct {
	// Image preprocessing. OutputFolder receives the filtered images and, when set, is the
	// image folder of the reconstruction.
	InputFolder  string `yaml:"input_folder"`
	OutputFolder string `yaml:"output_folder"`
	ApplyDenoise bool   `yaml:"apply_denoise"`
	ApplyEnhance bool   `yaml:"apply_enhance"`
	ApplySharpen bool   `yaml:"apply_sharpen"`
	Workers      int    `yaml:"workers"` // 0 selects NumCPU-1.

	// Reconstruction.
	WorkspaceFolder  string        `yaml:"workspace_folder"`
	ColmapExecutable string        `yaml:"colmap_executable"`
	StageTimeout     time.Duration `yaml:"stage_timeout"` // 0 disables the timeout.
	CameraModel      string        `yaml:"camera_model"`
	MaxNumFeatures   int           `yaml:"max_num_features"`
	MapperThreads    int           `yaml:"mapper_threads"`
	GPU              bool          `yaml:"gpu"`

	// Logging.
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"` // "text" or "json".
}

// DefaultConfig returns the defaults. Paths have no default.
func DefaultConfig() Config {
	return Config{
		ColmapExecutable: "colmap",
		CameraModel:      "PINHOLE",
		MaxNumFeatures:   10000,
		MapperThreads:    8,
		GPU:              true,
		LogLevel:         "info",
		LogFormat:        "text",
	}
}

// FilterOptions selects the image transforms.
type FilterOptions struct {
	Denoise bool
	Enhance bool
	Sharpen bool
}

// Validated is a configuration that passed Validate. It can only be obtained from Validate,
// so holders may rely on its invariants without checking again.
type Validated struct {
	cfg    Config
	engine string
}

// ImageFolder is the folder the reconstruction reads images from.
func (v Validated) ImageFolder() string {
	if v.cfg.OutputFolder != "" {
		return v.cfg.OutputFolder
	}

	return v.cfg.InputFolder
}

func (v Validated) InputFolder() string  { return v.cfg.InputFolder }
func (v Validated) OutputFolder() string { return v.cfg.OutputFolder }
func (v Validated) Workspace() string    { return v.cfg.WorkspaceFolder }

// Engine is the resolved path of the reconstruction executable.
func (v Validated) Engine() string { return v.engine }

func (v Validated) StageTimeout() time.Duration { return v.cfg.StageTimeout }
func (v Validated) Workers() int                { return v.cfg.Workers }

func (v Validated) Filter() FilterOptions {
	return FilterOptions{
		Denoise: v.cfg.ApplyDenoise,
		Enhance: v.cfg.ApplyEnhance,
		Sharpen: v.cfg.ApplySharpen,
	}
}

// Config returns a copy of the underlying record.
func (v Validated) Config() Config {
	return v.cfg
}
