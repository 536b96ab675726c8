package config

import (
	"flag"
)

// Flags binds configuration flags to a flag set. Values given on the command line override
// the ones read from the -config file.
type Flags struct {
	fs     *flag.FlagSet
	path   string
	values Config
}

// RegisterFlags adds the configuration flags to fs. Call Config after fs.Parse.
func RegisterFlags(fs *flag.FlagSet) *Flags {
	f := &Flags{fs: fs, values: DefaultConfig()}
	v := &f.values

	fs.StringVar(&f.path, "config", "", "YAML or JSON configuration file")
	fs.StringVar(&v.InputFolder, "input", v.InputFolder, "folder with the captured images")
	fs.StringVar(&v.OutputFolder, "output", v.OutputFolder, "folder receiving the filtered images")
	fs.StringVar(&v.WorkspaceFolder, "workspace", v.WorkspaceFolder, "reconstruction workspace folder")
	fs.StringVar(&v.ColmapExecutable, "colmap", v.ColmapExecutable, "COLMAP executable")
	fs.BoolVar(&v.ApplyDenoise, "denoise", v.ApplyDenoise, "denoise images before reconstruction")
	fs.BoolVar(&v.ApplyEnhance, "enhance", v.ApplyEnhance, "equalize image luminance before reconstruction")
	fs.BoolVar(&v.ApplySharpen, "sharpen", v.ApplySharpen, "sharpen images before reconstruction")
	fs.IntVar(&v.Workers, "workers", v.Workers, "parallel image workers (0 = CPUs-1)")
	fs.DurationVar(&v.StageTimeout, "stage-timeout", v.StageTimeout, "timeout of every stage (0 = none)")
	fs.StringVar(&v.CameraModel, "camera-model", v.CameraModel, "COLMAP camera model")
	fs.IntVar(&v.MaxNumFeatures, "max-features", v.MaxNumFeatures, "maximum SIFT features per image")
	fs.IntVar(&v.MapperThreads, "mapper-threads", v.MapperThreads, "threads of the sparse mapper")
	fs.BoolVar(&v.GPU, "gpu", v.GPU, "let COLMAP use the GPU")
	fs.StringVar(&v.LogLevel, "log-level", v.LogLevel, "log level: debug, info, warn, error")
	fs.StringVar(&v.LogFormat, "log-format", v.LogFormat, "log format: text or json")

	return f
}

// Config resolves the configuration: defaults, then the -config file, then explicit flags.
func (f *Flags) Config() (Config, error) {
	cfg := DefaultConfig()
	if f.path != "" {
		var err error
		cfg, err = Load(f.path)
		if err != nil {
			return cfg, err
		}
	}

	v := f.values
	overrides := map[string]func(){
		"input":          func() { cfg.InputFolder = v.InputFolder },
		"output":         func() { cfg.OutputFolder = v.OutputFolder },
		"workspace":      func() { cfg.WorkspaceFolder = v.WorkspaceFolder },
		"colmap":         func() { cfg.ColmapExecutable = v.ColmapExecutable },
		"denoise":        func() { cfg.ApplyDenoise = v.ApplyDenoise },
		"enhance":        func() { cfg.ApplyEnhance = v.ApplyEnhance },
		"sharpen":        func() { cfg.ApplySharpen = v.ApplySharpen },
		"workers":        func() { cfg.Workers = v.Workers },
		"stage-timeout":  func() { cfg.StageTimeout = v.StageTimeout },
		"camera-model":   func() { cfg.CameraModel = v.CameraModel },
		"max-features":   func() { cfg.MaxNumFeatures = v.MaxNumFeatures },
		"mapper-threads": func() { cfg.MapperThreads = v.MapperThreads },
		"gpu":            func() { cfg.GPU = v.GPU },
		"log-level":      func() { cfg.LogLevel = v.LogLevel },
		"log-format":     func() { cfg.LogFormat = v.LogFormat },
	}
	f.fs.Visit(func(fl *flag.Flag) {
		if apply, ok := overrides[fl.Name]; ok {
			apply()
		}
	})

	return cfg, nil
}
