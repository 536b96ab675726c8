package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Load reads a YAML or JSON configuration file on top of DefaultConfig.
// Unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	file, err := os.Open(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "unable to open config %s", path)
	}
	defer file.Close()

	dec := yaml.NewDecoder(file)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, errors.Wrapf(err, "unable to decode config %s", path)
	}

	return cfg, nil
}
