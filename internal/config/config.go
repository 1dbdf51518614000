// Package config loads and validates the declarative YAML configuration:
// system directories, the extraction model, and the per-profile field and
// action definitions.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// FieldSpec describes one value to extract. It is recursive: an object kind
// carries nested properties, a list kind carries an item spec. Description is
// passed to the model as extraction guidance.
type FieldSpec struct {
	Type        string                `yaml:"type"`
	Description string                `yaml:"description"`
	Properties  map[string]*FieldSpec `yaml:"properties,omitempty"`
	Items       *FieldSpec            `yaml:"items,omitempty"`
}

// Profile maps a filename pattern to an extraction schema and an ordered
// action list. Profiles are loaded once at startup and read-only thereafter.
type Profile struct {
	Name         string
	MatchPattern string
	Description  string
	Fields       map[string]*FieldSpec
	Actions      []Action
}

// UnmarshalYAML decodes the raw profile document and resolves each action's
// type tag into its concrete variant.
func (p *Profile) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Name         string                `yaml:"name"`
		MatchPattern string                `yaml:"match_pattern"`
		Description  string                `yaml:"description"`
		Fields       map[string]*FieldSpec `yaml:"fields"`
		Actions      []rawAction           `yaml:"actions"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	p.Name = raw.Name
	p.MatchPattern = raw.MatchPattern
	p.Description = raw.Description
	p.Fields = raw.Fields
	p.Actions = make([]Action, 0, len(raw.Actions))
	for i, ra := range raw.Actions {
		a, err := ra.toAction()
		if err != nil {
			return fmt.Errorf("profile %q action %d: %w", raw.Name, i, err)
		}
		p.Actions = append(p.Actions, a)
	}
	return nil
}

// System holds the daemon-wide settings.
type System struct {
	WatchDir     string  `yaml:"watch_dir"`
	ProcessedDir string  `yaml:"processed_dir"`
	ErrorDir     string  `yaml:"error_dir"`
	Model        string  `yaml:"gemini_model"`
	PollSeconds  float64 `yaml:"scan_interval_sec"`
}

// PollInterval returns the remote-file poll interval, defaulting to 1s.
func (s System) PollInterval() time.Duration {
	if s.PollSeconds <= 0 {
		return time.Second
	}
	return time.Duration(s.PollSeconds * float64(time.Second))
}

// Config is the root configuration object.
type Config struct {
	System   System     `yaml:"system"`
	Profiles []*Profile `yaml:"profiles"`
}

// Load reads, validates, and prepares the configuration at path. The watch,
// processed, and error directories are created if missing. Category context
// files from a "categories" directory next to the config file are appended to
// the category_folder field description of every profile that declares one.
func Load(path string, logger *slog.Logger) (*Config, error) {
	if logger == nil {
		logger = slog.Default()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	for _, dir := range []string{cfg.System.WatchDir, cfg.System.ProcessedDir, cfg.System.ErrorDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	if ctxText := LoadCategoriesContext(filepath.Join(filepath.Dir(path), "categories"), logger); ctxText != "" {
		for _, p := range cfg.Profiles {
			if f, ok := p.Fields["category_folder"]; ok {
				f.Description = f.Description + "\n\n" + ctxText
				logger.Info("config.categories_injected", "profile", p.Name)
			}
		}
	}

	logger.Info("config.loaded", "path", path, "profiles", len(cfg.Profiles))
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.System.WatchDir == "" {
		return fmt.Errorf("system.watch_dir is required")
	}
	if c.System.ProcessedDir == "" {
		return fmt.Errorf("system.processed_dir is required")
	}
	if c.System.ErrorDir == "" {
		return fmt.Errorf("system.error_dir is required")
	}
	if c.System.Model == "" {
		c.System.Model = "gemini-1.5-flash"
	}
	if len(c.Profiles) == 0 {
		return fmt.Errorf("at least one profile is required")
	}
	for _, p := range c.Profiles {
		if p.Name == "" {
			return fmt.Errorf("profile name is required")
		}
		if p.MatchPattern == "" {
			return fmt.Errorf("profile %q: match_pattern is required", p.Name)
		}
		if _, err := filepath.Match(p.MatchPattern, "probe"); err != nil {
			return fmt.Errorf("profile %q: bad match_pattern: %w", p.Name, err)
		}
	}
	return nil
}
