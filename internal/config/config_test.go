package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/idvorkin/swing-analyzer-sub004/internal/config"
)

func writeConfig(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := config.Default()
	require.NoError(t, cfg.Validate())

	ex := cfg.ActiveExercise()
	assert.Equal(t, "top", ex.StartPhase)
	assert.Equal(t, 1, ex.MinPhaseCoverage)
	assert.Equal(t, []string{"top", "connect", "bottom", "release"}, ex.Phases)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
exercise: squat
min_keypoint_score: 0.35
stats_interval_s: 30
store:
  path: /tmp/custom.db
mqtt:
  enabled: true
  broker: tcp://localhost:1883
  client_id: analyzer-test
`)
	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "squat", cfg.Exercise)
	assert.Equal(t, 0.35, cfg.MinKeypointScore)
	assert.Equal(t, 30, cfg.StatsIntervalS)
	assert.Equal(t, "/tmp/custom.db", cfg.Store.Path)
	assert.True(t, cfg.MQTT.Enabled)
	assert.Equal(t, "reptrack/reps", cfg.MQTT.Topic, "unset fields keep defaults")

	ex := cfg.ActiveExercise()
	assert.Equal(t, "standing", ex.StartPhase)
}

func TestLoadCustomExercise(t *testing.T) {
	path := writeConfig(t, `
exercise: pullup
exercises:
  pullup:
    phases: [hang, pull, lockout]
    start_phase: hang
    min_phase_coverage: 2
    rules:
      - phase: lockout
        metric: arm_to_spine
        below: 30
      - phase: pull
        metric: arm_to_spine
        below: 120
      - phase: hang
`)
	cfg, err := config.Load(path)
	require.NoError(t, err)

	ex := cfg.ActiveExercise()
	assert.Equal(t, 2, ex.MinPhaseCoverage)
	require.Len(t, ex.Rules, 3)
	require.NotNil(t, ex.Rules[0].Below)
	assert.Equal(t, 30.0, *ex.Rules[0].Below)
	assert.Nil(t, ex.Rules[2].Below, "catch-all carries no bounds")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadMalformedYAML(t *testing.T) {
	_, err := config.Load(writeConfig(t, "exercise: [unclosed"))
	assert.Error(t, err)
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"unknown exercise", func(c *config.Config) { c.Exercise = "deadlift" }},
		{"empty exercise", func(c *config.Config) { c.Exercise = "" }},
		{"score out of range", func(c *config.Config) { c.MinKeypointScore = 1.5 }},
		{"mqtt without broker", func(c *config.Config) { c.MQTT.Enabled = true }},
		{"start phase not declared", func(c *config.Config) {
			ex := c.Exercises["swing"]
			ex.StartPhase = "apex"
			c.Exercises["swing"] = ex
		}},
		{"duplicate phase", func(c *config.Config) {
			ex := c.Exercises["swing"]
			ex.Phases = []string{"top", "top"}
			c.Exercises["swing"] = ex
		}},
		{"coverage exceeds phases", func(c *config.Config) {
			ex := c.Exercises["swing"]
			ex.MinPhaseCoverage = 4
			c.Exercises["swing"] = ex
		}},
		{"rule references unknown phase", func(c *config.Config) {
			ex := c.Exercises["swing"]
			ex.Rules = append(ex.Rules, config.Rule{Phase: "apex"})
			c.Exercises["swing"] = ex
		}},
		{"bounded rule without metric", func(c *config.Config) {
			ex := c.Exercises["swing"]
			below := 10.0
			ex.Rules = []config.Rule{{Phase: "top", Below: &below}}
			c.Exercises["swing"] = ex
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestMinPhaseCoverageDefaultsToOne(t *testing.T) {
	cfg := config.Default()
	ex := cfg.Exercises["swing"]
	ex.MinPhaseCoverage = 0
	cfg.Exercises["swing"] = ex

	assert.Equal(t, 1, cfg.ActiveExercise().MinPhaseCoverage)
}
