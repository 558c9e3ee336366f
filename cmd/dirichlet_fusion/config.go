// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"k8s.io/klog/v2"

	"github.com/rameezrehman83/modular-semantic-segmentation/pkg/experiment"
	"github.com/rameezrehman83/modular-semantic-segmentation/pkg/support/fsutil"
)

const (
	// EnvPrefix of the environment variables overriding the configuration.
	// Nested keys are separated by "__": e.g. DIRICHLET_FUSION_EVALUATION_DATA__USE_TRAINSET=true.
	EnvPrefix = "DIRICHLET_FUSION_"

	// KeyRunsDir is the configuration key of the directory where runs are recorded.
	KeyRunsDir = "runs_dir"

	// DefaultRunsDir is where runs are recorded if not configured otherwise.
	DefaultRunsDir = "~/work/dirichlet_fusion/runs"
)

// flagToKey maps the flags that override configuration keys to their keys.
var flagToKey = map[string]string{
	"starting_weights": experiment.KeyStartingWeights,
	"dataset":          experiment.KeyEvaluationData + "." + experiment.KeyDataset,
	"use_trainset":     experiment.KeyEvaluationData + "." + experiment.KeyUseTrainset,
	"runs_dir":         KeyRunsDir,
	"model":            experiment.KeyModel,
	"evaluator":        experiment.KeyEvaluator,
}

// loadConfig loads the configuration, with precedence (highest to lowest):
// settings > flags > environment variables > config file > defaults.
//
// It returns the decoded configuration and the raw one, with the keys not used by experiment.Config.
func loadConfig(configFile, settings string, flags *pflag.FlagSet) (*experiment.Config, map[string]any, error) {
	k := koanf.New(".")

	// 1. Defaults.
	if err := k.Load(confmap.Provider(map[string]any{
		experiment.KeyModel:          experiment.DefaultModelName,
		experiment.KeyEvaluator:      experiment.DefaultEvaluatorName,
		experiment.KeyWeightImporter: experiment.DefaultWeightImporterName,
		KeyRunsDir:                   DefaultRunsDir,
	}, "."), nil); err != nil {
		return nil, nil, errors.Wrap(err, "failed to load defaults")
	}

	// 2. Config file.
	if configFile != "" {
		configFile, err := fsutil.ReplaceTildeInDir(configFile)
		if err != nil {
			return nil, nil, err
		}
		exists, err := fsutil.FileExists(configFile)
		if err != nil {
			return nil, nil, err
		}
		if !exists {
			return nil, nil, errors.Errorf("config file %q not found", configFile)
		}
		if err = k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
			return nil, nil, errors.Wrapf(err, "failed to read config file %q", configFile)
		}
		klog.V(1).Infof("Loaded configuration from %q", configFile)
	}

	// 3. Environment variables.
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	}), nil); err != nil {
		return nil, nil, errors.Wrap(err, "failed to load environment variables")
	}

	// 4. Flags explicitly set.
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, found := flagToKey[f.Name]
			if !found || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, nil, errors.Wrap(err, "failed to load flags")
		}
	}

	// 5. Settings.
	raw := k.Raw()
	paramsSet, err := experiment.ParseSettings(raw, settings)
	if err != nil {
		return nil, nil, err
	}
	if len(paramsSet) > 0 {
		klog.V(1).Infof("Settings applied: %v", paramsSet)
	}

	cfg, err := experiment.DecodeConfig(raw)
	if err != nil {
		return nil, nil, err
	}
	cfg.StartingWeights, err = fsutil.ReplaceTildeInDir(cfg.StartingWeights)
	if err != nil {
		return nil, nil, err
	}
	return cfg, raw, nil
}
