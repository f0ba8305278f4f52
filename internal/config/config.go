// Package config loads and validates the analyzer configuration: per-exercise
// phase declarations with their classification rules, plus store and MQTT
// settings. Configuration is read once at session start and is not mutable
// mid-session.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the complete analyzer configuration.
type Config struct {
	// Exercise selects which declaration from Exercises drives the session.
	Exercise string `yaml:"exercise"`

	// MinKeypointScore is the per-keypoint confidence floor for a joint to
	// count as present (default 0.2).
	MinKeypointScore float64 `yaml:"min_keypoint_score"`

	// StatsIntervalS is how often the session logs pipeline stats (default 5).
	StatsIntervalS int `yaml:"stats_interval_s"`

	Store     StoreConfig         `yaml:"store"`
	MQTT      MQTTConfig          `yaml:"mqtt"`
	Exercises map[string]Exercise `yaml:"exercises"`
}

// StoreConfig locates the pose-track store.
type StoreConfig struct {
	Path string `yaml:"path"` // SQLite database file
}

// MQTTConfig configures the optional rep-event emitter.
type MQTTConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Topic    string `yaml:"topic"`
}

// Exercise declares one exercise's phase set and cycle rules.
type Exercise struct {
	// Phases lists every phase the exercise can report, in cycle order.
	Phases []string `yaml:"phases"`

	// StartPhase is the phase whose first entry begins a repetition and
	// whose re-entry (subject to MinPhaseCoverage) seals one.
	StartPhase string `yaml:"start_phase"`

	// MinPhaseCoverage is the number of distinct non-start phases that must
	// be visited before a start-phase re-entry seals the rep. Re-entries
	// below this coverage are treated as jitter within the current rep.
	// Default 1.
	MinPhaseCoverage int `yaml:"min_phase_coverage"`

	// Rules are evaluated in order; the first matching rule's phase wins.
	// A rule with neither bound is a catch-all.
	Rules []Rule `yaml:"rules"`
}

// Rule is one ordered classification rule: the named metric must be below
// Below (exclusive) and/or at least AtLeast (inclusive). A value exactly at
// a threshold therefore belongs to the rule using at_least, never to the
// one using below, so no metric value sits in two adjacent phases.
type Rule struct {
	Phase   string   `yaml:"phase"`
	Metric  string   `yaml:"metric"`
	Below   *float64 `yaml:"below,omitempty"`
	AtLeast *float64 `yaml:"at_least,omitempty"`
}

func f(v float64) *float64 { return &v }

// Default returns the built-in configuration: kettlebell swing and squat
// declarations with the extractor tooling's thresholds.
func Default() *Config {
	return &Config{
		Exercise:         "swing",
		MinKeypointScore: 0.2,
		StatsIntervalS:   5,
		Store:            StoreConfig{Path: "reptrack.db"},
		MQTT:             MQTTConfig{Topic: "reptrack/reps"},
		Exercises: map[string]Exercise{
			"swing": {
				Phases:           []string{"top", "connect", "bottom", "release"},
				StartPhase:       "top",
				MinPhaseCoverage: 1,
				Rules: []Rule{
					{Phase: "top", Metric: "spine", Below: f(25)},
					{Phase: "bottom", Metric: "spine", AtLeast: f(60)},
					{Phase: "release", Metric: "spine", Below: f(45)},
					{Phase: "connect"},
				},
			},
			"squat": {
				Phases:           []string{"standing", "hinge", "bottom"},
				StartPhase:       "standing",
				MinPhaseCoverage: 1,
				Rules: []Rule{
					{Phase: "standing", Metric: "knee", AtLeast: f(160)},
					{Phase: "bottom", Metric: "knee", Below: f(100)},
					{Phase: "hinge"},
				},
			},
		},
	}
}

// Load reads and parses a YAML configuration file, filling unset fields
// from Default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks cross-field consistency.
func (c *Config) Validate() error {
	if c.MinKeypointScore < 0 || c.MinKeypointScore > 1 {
		return fmt.Errorf("min_keypoint_score must be in [0,1], got %v", c.MinKeypointScore)
	}
	if c.StatsIntervalS <= 0 {
		c.StatsIntervalS = 5
	}
	if c.Exercise == "" {
		return fmt.Errorf("exercise is required")
	}
	ex, ok := c.Exercises[c.Exercise]
	if !ok {
		return fmt.Errorf("exercise %q is not declared", c.Exercise)
	}
	if err := ex.Validate(); err != nil {
		return fmt.Errorf("exercise %q: %w", c.Exercise, err)
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required when mqtt.enabled is true")
	}
	return nil
}

// Validate checks one exercise declaration.
func (e Exercise) Validate() error {
	if len(e.Phases) == 0 {
		return fmt.Errorf("phases must not be empty")
	}
	declared := make(map[string]bool, len(e.Phases))
	for _, p := range e.Phases {
		if p == "" {
			return fmt.Errorf("empty phase name")
		}
		if declared[p] {
			return fmt.Errorf("duplicate phase %q", p)
		}
		declared[p] = true
	}
	if !declared[e.StartPhase] {
		return fmt.Errorf("start_phase %q is not in phases", e.StartPhase)
	}
	if e.MinPhaseCoverage < 0 || e.MinPhaseCoverage >= len(e.Phases) {
		return fmt.Errorf("min_phase_coverage %d out of range for %d phases",
			e.MinPhaseCoverage, len(e.Phases))
	}
	if len(e.Rules) == 0 {
		return fmt.Errorf("rules must not be empty")
	}
	for i, r := range e.Rules {
		if !declared[r.Phase] {
			return fmt.Errorf("rule %d: phase %q is not in phases", i, r.Phase)
		}
		if (r.Below != nil || r.AtLeast != nil) && r.Metric == "" {
			return fmt.Errorf("rule %d: bounded rule needs a metric", i)
		}
	}
	return nil
}

// ActiveExercise returns the declaration selected by c.Exercise, applying
// defaults.
func (c *Config) ActiveExercise() Exercise {
	ex := c.Exercises[c.Exercise]
	if ex.MinPhaseCoverage == 0 {
		ex.MinPhaseCoverage = 1
	}
	return ex
}
