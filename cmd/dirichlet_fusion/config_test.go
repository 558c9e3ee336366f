// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rameezrehman83/modular-semantic-segmentation/pkg/experiment"
)

const testConfigYAML = `
net_config:
  alpha: 0.25
  num_classes: 19
evaluation_data:
  dataset: cityscapes
  use_trainset: false
  augmentation: none
starting_weights: /weights/experts
search_parameters:
  alpha: [0.1, 0.2]
`

func writeConfig(t *testing.T, contents string) string {
	configFile := filepath.Join(t.TempDir(), "fusion.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte(contents), 0o644))
	return configFile
}

// testFlags returns the flags of the root command, parsed from args.
func testFlags(t *testing.T, args ...string) *pflag.FlagSet {
	cmd := newRootCmd()
	flags := cmd.PersistentFlags()
	require.NoError(t, flags.Parse(args))
	return flags
}

func TestLoadConfig(t *testing.T) {
	configFile := writeConfig(t, testConfigYAML)

	t.Run("File", func(t *testing.T) {
		cfg, raw, err := loadConfig(configFile, "", testFlags(t))
		require.NoError(t, err)
		assert.Equal(t, 0.25, cfg.NetConfig["alpha"])
		assert.Equal(t, "cityscapes", cfg.EvaluationData.Dataset)
		assert.False(t, cfg.EvaluationData.UseTrainset)
		assert.Equal(t, "none", cfg.EvaluationData.Options["augmentation"])
		assert.Equal(t, "/weights/experts", cfg.StartingWeights)
		assert.Equal(t, []any{0.1, 0.2}, cfg.SearchParameters["alpha"])
		assert.Equal(t, experiment.DefaultModelName, cfg.Model)
		assert.Equal(t, experiment.DefaultEvaluatorName, cfg.Evaluator)
		assert.Equal(t, DefaultRunsDir, raw[KeyRunsDir])
	})

	t.Run("Environment", func(t *testing.T) {
		t.Setenv(EnvPrefix+"EVALUATION_DATA__USE_TRAINSET", "true")
		t.Setenv(EnvPrefix+"STARTING_WEIGHTS", "/weights/from_env")
		cfg, _, err := loadConfig(configFile, "", testFlags(t))
		require.NoError(t, err)
		assert.True(t, cfg.EvaluationData.UseTrainset)
		assert.Equal(t, "/weights/from_env", cfg.StartingWeights)
		assert.Equal(t, "cityscapes", cfg.EvaluationData.Dataset)
	})

	t.Run("Flags", func(t *testing.T) {
		t.Setenv(EnvPrefix+"STARTING_WEIGHTS", "/weights/from_env")
		flags := testFlags(t, "--starting_weights=/weights/from_flag", "--dataset=mapillary", "--runs_dir=/tmp/runs")
		cfg, raw, err := loadConfig(configFile, "", flags)
		require.NoError(t, err)
		assert.Equal(t, "/weights/from_flag", cfg.StartingWeights)
		assert.Equal(t, "mapillary", cfg.EvaluationData.Dataset)
		assert.Equal(t, "/tmp/runs", raw[KeyRunsDir])
		// Flags not given don't override the file.
		assert.False(t, cfg.EvaluationData.UseTrainset)
		assert.Equal(t, 0.25, cfg.NetConfig["alpha"])
	})

	t.Run("Settings", func(t *testing.T) {
		flags := testFlags(t, "--dataset=mapillary")
		cfg, _, err := loadConfig(configFile,
			"evaluation_data.dataset=synthia;net_config.alpha=1;net_config.num_classes=1_000;net_config.new=[1, 2]", flags)
		require.NoError(t, err)
		assert.Equal(t, "synthia", cfg.EvaluationData.Dataset)
		assert.Equal(t, 1.0, cfg.NetConfig["alpha"])
		assert.Equal(t, 1000, cfg.NetConfig["num_classes"])
		assert.Equal(t, []any{1, 2}, cfg.NetConfig["new"])
	})

	t.Run("LegacySearchKey", func(t *testing.T) {
		legacyFile := writeConfig(t, `
net_config: {alpha: 0.25}
evaluation_data: {dataset: cityscapes}
starting_weights: /weights/experts
search_paramters:
  alpha: [0.3]
`)
		cfg, _, err := loadConfig(legacyFile, "", testFlags(t))
		require.NoError(t, err)
		assert.Equal(t, []any{0.3}, cfg.SearchParameters["alpha"])
	})

	t.Run("Errors", func(t *testing.T) {
		_, _, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"), "", testFlags(t))
		require.Error(t, err)
		_, _, err = loadConfig(configFile, "net_config", testFlags(t))
		require.Error(t, err)
	})
}
