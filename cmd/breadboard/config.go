package main

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/breadboard-sim/breadboard/runtime/engine"
)

const defaultConfigFile = "breadboard.yaml"

// fileConfig is the optional breadboard.yaml shape. Every field has a
// matching flag; flags win when both are set.
type fileConfig struct {
	MaxLoopIterations int64         `yaml:"maxLoopIterations"`
	MaxCallDepth      int           `yaml:"maxCallDepth"`
	Verbose           bool          `yaml:"verbose"`
	StepDelay         time.Duration `yaml:"stepDelay"`
	Answers           string        `yaml:"answers"`
}

// loadConfig reads path, or the default breadboard.yaml when path is
// empty. A missing default file is not an error; a missing explicit
// file is.
func loadConfig(path string) (fileConfig, error) {
	explicit := path != ""
	if !explicit {
		path = defaultConfigFile
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && os.IsNotExist(err) {
			return fileConfig{}, nil
		}
		return fileConfig{}, fmt.Errorf("config %s: %w", path, err)
	}

	var cfg fileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return fileConfig{}, fmt.Errorf("config %s: %w", path, err)
	}
	if cfg.MaxLoopIterations < 0 {
		return fileConfig{}, fmt.Errorf("config %s: maxLoopIterations must be >= 0", path)
	}
	if cfg.MaxCallDepth < 0 {
		return fileConfig{}, fmt.Errorf("config %s: maxCallDepth must be >= 0", path)
	}
	return cfg, nil
}

// engineConfig maps the file config onto engine.Config.
func (c fileConfig) engineConfig() engine.Config {
	return engine.Config{
		MaxLoopIterations: c.MaxLoopIterations,
		MaxCallDepth:      c.MaxCallDepth,
		Verbose:           c.Verbose,
		StepDelay:         c.StepDelay,
	}
}
