package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config is the top-level configuration for sv-hier
type Config struct {
	// Inputs selects the module record files to analyze
	Inputs InputConfig `json:"inputs,omitempty"`

	// Tops names the top modules to expand; empty means detect them
	Tops []string `json:"tops,omitempty"`

	// Lint contains lint rule configuration
	Lint LintConfig `json:"lint,omitempty"`

	// Analysis contains analysis options
	Analysis AnalysisConfig `json:"analysis,omitempty"`

	// Log controls diagnostic output
	Log LogConfig `json:"log,omitempty"`
}

// InputConfig lists record files by glob pattern
type InputConfig struct {
	// Files is a list of glob patterns (** allowed) for record JSON files
	Files []string `json:"files"`

	// Exclude is a list of glob patterns removed from Files
	Exclude []string `json:"exclude,omitempty"`
}

// LintConfig contains lint configuration
type LintConfig struct {
	// Rules maps rule names to severity: "off", "info", "warning", "error"
	Rules map[string]string `json:"rules,omitempty"`

	// IgnorePatterns is a list of file patterns to skip entirely
	IgnorePatterns []string `json:"ignorePatterns,omitempty"`

	// PolicyDir holds extra .rego files evaluated with the built-in rules
	PolicyDir string `json:"policyDir,omitempty"`
}

// AnalysisConfig contains analysis options
type AnalysisConfig struct {
	// MaxParallelFiles limits concurrent file loading (0 = auto)
	MaxParallelFiles int `json:"maxParallelFiles,omitempty"`

	// ValidateSchema checks every record file against the CUE contract
	ValidateSchema *bool `json:"validateSchema,omitempty"`
}

// LogConfig controls the structured logger
type LogConfig struct {
	// Level is one of "debug", "info", "warn", "error"
	Level string `json:"level,omitempty"`

	// Format is "text" or "json"
	Format string `json:"format,omitempty"`
}

// FileName is the project configuration file name
const FileName = "svhier.json"

var defaultInputFiles = []string{"**/*.json"}

// defaultExclude keeps fact snapshots written under the input root out of
// the record set.
var defaultExclude = []string{"**/*.snapshot.json", "**/*.facts.json"}

// DefaultConfig returns a sensible default configuration
func DefaultConfig() *Config {
	return &Config{
		Inputs: InputConfig{
			Files:   append([]string(nil), defaultInputFiles...),
			Exclude: append([]string(nil), defaultExclude...),
		},
		Lint: LintConfig{
			Rules:          map[string]string{},
			IgnorePatterns: []string{FileName, "." + FileName},
		},
		Analysis: AnalysisConfig{
			MaxParallelFiles: 0, // auto
			ValidateSchema:   boolPtr(true),
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "text",
		},
	}
}

func boolPtr(v bool) *bool {
	return &v
}

// Load finds and loads the configuration file
// Search order:
//  1. ./svhier.json (current working directory)
//  2. ./.svhier.json (current working directory)
//  3. <rootPath>/svhier.json (if different from cwd)
//  4. ~/.config/svhier/config.json
//
// Returns DefaultConfig if no config file is found
func Load(rootPath string) (*Config, error) {
	cwd, _ := os.Getwd()

	searchPaths := []string{
		filepath.Join(cwd, FileName),
		filepath.Join(cwd, "."+FileName),
	}

	if info, err := os.Stat(rootPath); err == nil && info.IsDir() {
		absRoot, _ := filepath.Abs(rootPath)
		if absRoot != cwd {
			searchPaths = append(searchPaths,
				filepath.Join(rootPath, FileName),
				filepath.Join(rootPath, "."+FileName),
			)
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		searchPaths = append(searchPaths, filepath.Join(home, ".config", "svhier", "config.json"))
	}

	for _, path := range searchPaths {
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}

	return DefaultConfig(), nil
}

// LoadFile loads configuration from a specific file
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

// applyDefaults fills in missing configuration with defaults
func (c *Config) applyDefaults() {
	if len(c.Inputs.Files) == 0 {
		c.Inputs.Files = append([]string(nil), defaultInputFiles...)
	}
	if c.Inputs.Exclude == nil {
		c.Inputs.Exclude = append([]string(nil), defaultExclude...)
	}

	if c.Lint.Rules == nil {
		c.Lint.Rules = make(map[string]string)
	}
	if c.Lint.IgnorePatterns == nil {
		c.Lint.IgnorePatterns = []string{FileName, "." + FileName}
	}

	if c.Analysis.ValidateSchema == nil {
		c.Analysis.ValidateSchema = boolPtr(true)
	}

	if c.Log.Level == "" {
		c.Log.Level = "warn"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Save writes the configuration to a file
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// SchemaValidationEnabled reports whether record files go through the CUE contract
func (c *Config) SchemaValidationEnabled() bool {
	return c.Analysis.ValidateSchema == nil || *c.Analysis.ValidateSchema
}

// GetRuleSeverity returns the severity for a rule, or the default if not configured
func (c *Config) GetRuleSeverity(rule string, defaultSeverity string) string {
	if severity, ok := c.Lint.Rules[rule]; ok && severity != "off" {
		return severity
	}
	return defaultSeverity
}

// IsRuleEnabled returns true if the rule is not set to "off"
func (c *Config) IsRuleEnabled(rule string) bool {
	if severity, ok := c.Lint.Rules[rule]; ok {
		return severity != "off"
	}
	return true // enabled by default
}

// ShouldIgnoreFile checks if a file should be skipped entirely
func (c *Config) ShouldIgnoreFile(filePath string) bool {
	for _, pattern := range c.Lint.IgnorePatterns {
		if matched, _ := filepath.Match(pattern, filePath); matched {
			return true
		}
		if matched, _ := filepath.Match(pattern, filepath.Base(filePath)); matched {
			return true
		}
	}
	return false
}
