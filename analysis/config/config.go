// Copyright the rangeprop authors. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

var (
	// The global config file
	configFile string
)

// SetGlobalConfig sets the global config filename
func SetGlobalConfig(filename string) {
	configFile = filename
}

// LoadGlobal loads the config file that has been set by SetGlobalConfig
func LoadGlobal() (*Config, error) {
	return Load(configFile)
}

// Config holds the tunable parameters of the range analysis.
// If some field is not defined in the config file, it keeps its default value.
type Config struct {
	Options

	sourceFile string
}

// Options are the yaml-serializable knobs of the analysis.
type Options struct {
	// LogLevel controls the verbosity of the analysis (see LogLevel constants).
	LogLevel int `yaml:"log-level"`

	// MaxPrograms is the exclusive upper bound assumed for lane/program identifiers
	// produced by the program-id construct.
	MaxPrograms int64 `yaml:"max-programs"`

	// MaxTripCount is the ceiling on loop trip-count estimates: a loop estimated to
	// iterate more than MaxTripCount times has its loop-carried values widened to
	// the maximal range immediately.
	MaxTripCount int64 `yaml:"max-trip-count"`

	// FoldComparisons enables the comparison-folding rewrite after solving.
	FoldComparisons bool `yaml:"fold-comparisons"`

	// ReportStats enables the per-function range statistics report.
	ReportStats bool `yaml:"report-stats"`
}

// Default values for the analysis parameters.
const (
	// DefaultMaxPrograms bounds the program-id space.
	DefaultMaxPrograms = 1 << 16

	// DefaultMaxTripCount is the convergence-bounding ceiling on trip counts.
	DefaultMaxTripCount = 1024
)

// NewDefault returns a config with all defaults set.
func NewDefault() *Config {
	return &Config{
		Options: Options{
			LogLevel:     int(InfoLevel),
			MaxPrograms:  DefaultMaxPrograms,
			MaxTripCount: DefaultMaxTripCount,
		},
	}
}

// Load reads a config from a yaml file. Omitted fields keep their defaults.
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("could not read config file %q: %w", filename, err)
	}
	cfg := NewDefault()
	if err := yaml.Unmarshal(data, &cfg.Options); err != nil {
		return nil, fmt.Errorf("could not parse config file %q: %w", filename, err)
	}
	cfg.sourceFile = filename
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %q: %w", filename, err)
	}
	return cfg, nil
}

// SourceFile returns the file the config was loaded from, if any.
func (c *Config) SourceFile() string {
	return c.sourceFile
}

// Validate checks the parameters for consistency.
func (c *Config) Validate() error {
	if c.LogLevel < int(ErrLevel) || c.LogLevel > int(TraceLevel) {
		return fmt.Errorf("log-level must be between %d and %d, got %d",
			ErrLevel, TraceLevel, c.LogLevel)
	}
	if c.MaxPrograms <= 0 {
		return fmt.Errorf("max-programs must be positive, got %d", c.MaxPrograms)
	}
	if c.MaxTripCount <= 0 {
		return fmt.Errorf("max-trip-count must be positive, got %d", c.MaxTripCount)
	}
	return nil
}
