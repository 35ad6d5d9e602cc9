package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/brettbedarf/kfs/internal/util"
	"gopkg.in/yaml.v3"
)

// Bytes per MB
const MB = 1024 * 1024

// MaxNameLength is the longest allowed node name in bytes
const MaxNameLength = 50

// Default configuration constants. See [Config] for field descriptions.
const (
	DefaultLogLvl = util.InfoLevel

	// DefaultSegmentSize is the size of each storage segment in bytes
	DefaultSegmentSize = 5 * MB

	// DefaultMaxStoreBytes of 0 leaves the store unbounded
	DefaultMaxStoreBytes = 0

	// DefaultMaxRoots is the number of named roots a session may hold
	DefaultMaxRoots = 5

	// Uses 31 bits to keep handle IDs printable as signed 32-bit integers
	DefaultMaxFH = (1 << 31) - 1

	DefaultPrompt      = "% "
	DefaultHistoryFile = ""
)

// Log verbosity as accepted from users (CLI flag or config file)
const (
	ErrorVerbose = iota + 1
	WarnVerbose
	InfoVerbose
	DebugVerbose
	TraceVerbose
)

// Config contains runtime configuration values for a kfs session.
type Config struct {
	LogLvl        util.LogLevel // Internal log level (Default Info)
	SegmentSize   int           // Maximum bytes per storage segment (Default 5MB)
	MaxStoreBytes int           // Total bytes the store may hold; 0 = unlimited (Default 0)
	MaxRoots      int           // Maximum number of named roots (Default 5)
	MaxFH         int           // Maximum file handle ID (Default 2147483647)
	Prompt        string        // Interactive shell prompt (Default "% ")
	HistoryFile   string        // Shell history file; empty keeps history in memory only
}

// ConfigOverride uses pointer fields to distinguish between unset and zero values
// when loading partial configuration. See [Config] for field descriptions.
type ConfigOverride struct {
	LogLvl        *int    `yaml:"verbose,omitempty" json:"verbose,omitempty"` // 1 (error) .. 5 (trace)
	SegmentSize   *int    `yaml:"segment_size,omitempty" json:"segment_size,omitempty"`
	MaxStoreBytes *int    `yaml:"max_store_bytes,omitempty" json:"max_store_bytes,omitempty"`
	MaxRoots      *int    `yaml:"max_roots,omitempty" json:"max_roots,omitempty"`
	MaxFH         *int    `yaml:"max_fh,omitempty" json:"max_fh,omitempty"`
	Prompt        *string `yaml:"prompt,omitempty" json:"prompt,omitempty"`
	HistoryFile   *string `yaml:"history_file,omitempty" json:"history_file,omitempty"`
}

// NewDefaultConfig creates a new Config with all default values.
func NewDefaultConfig() *Config {
	return &Config{
		LogLvl:        DefaultLogLvl,
		SegmentSize:   DefaultSegmentSize,
		MaxStoreBytes: DefaultMaxStoreBytes,
		MaxRoots:      DefaultMaxRoots,
		MaxFH:         DefaultMaxFH,
		Prompt:        DefaultPrompt,
		HistoryFile:   DefaultHistoryFile,
	}
}

// NewConfig returns the defaults merged with override, which may be nil.
func NewConfig(override *ConfigOverride) *Config {
	cfg := NewDefaultConfig()
	if override != nil {
		cfg.Merge(override)
	}
	return cfg
}

// Merge applies non-nil values from override onto this Config.
// This allows partial configuration updates while preserving existing values.
func (c *Config) Merge(override *ConfigOverride) {
	if override.LogLvl != nil {
		c.LogLvl = VerbosityToLogLevel(*override.LogLvl)
	}
	if override.SegmentSize != nil {
		c.SegmentSize = *override.SegmentSize
	}
	if override.MaxStoreBytes != nil {
		c.MaxStoreBytes = *override.MaxStoreBytes
	}
	if override.MaxRoots != nil {
		c.MaxRoots = *override.MaxRoots
	}
	if override.MaxFH != nil {
		c.MaxFH = *override.MaxFH
	}
	if override.Prompt != nil {
		c.Prompt = *override.Prompt
	}
	if override.HistoryFile != nil {
		c.HistoryFile = *override.HistoryFile
	}
}

// VerbosityToLogLevel maps a user verbosity between 1 (error) and 5 (trace)
// onto the internal log level. Out of range values are clamped.
func VerbosityToLogLevel(verbose int) util.LogLevel {
	verbose = max(ErrorVerbose, min(verbose, TraceVerbose))
	logLvls := [5]util.LogLevel{util.ErrorLevel, util.WarnLevel, util.InfoLevel, util.DebugLevel, util.TraceLevel}
	return logLvls[verbose-1]
}

// LoadConfigOverrideFile loads configuration overrides from a file without merging.
// Supports both YAML (.yaml, .yml) and JSON (.json) formats.
func LoadConfigOverrideFile(path string) (*ConfigOverride, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var override ConfigOverride

	// Determine format by file extension
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &override); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &override); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown config file extension: %s", path)
	}

	return &override, nil
}

// NewConfigFromFile creates a new Config by merging file overrides with defaults.
// This is a convenience function that combines NewDefaultConfig, LoadConfigOverrideFile, and Merge.
func NewConfigFromFile(path string) (*Config, error) {
	override, err := LoadConfigOverrideFile(path)
	if err != nil {
		return nil, err
	}
	return NewConfig(override), nil
}
