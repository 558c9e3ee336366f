// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package experiment

import (
	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
)

// Configuration keys.
const (
	KeyNetConfig        = "net_config"
	KeyEvaluationData   = "evaluation_data"
	KeyStartingWeights  = "starting_weights"
	KeySearchParameters = "search_parameters"
	KeyModel            = "model"
	KeyEvaluator        = "evaluator"
	KeyWeightImporter   = "weight_importer"

	// KeyDataset and KeyUseTrainset are the evaluation_data keys that are not forwarded to the
	// dataset provider.
	KeyDataset     = "dataset"
	KeyUseTrainset = "use_trainset"

	// KeyBatchSize is forced to 1 in the params given to the dataset provider.
	KeyBatchSize = "batchsize"

	// legacySearchParameters is the misspelled key accepted from older configuration files.
	legacySearchParameters = "search_paramters"
)

// Default collaborator names, used when the configuration doesn't select one.
const (
	DefaultModelName          = "dirichlet_mix"
	DefaultEvaluatorName      = "default"
	DefaultWeightImporterName = "default"
)

// EvaluationData describes the data a model is fitted and evaluated on.
type EvaluationData struct {
	// Dataset is the name of the dataset, as known by the DatasetProvider.
	Dataset string `mapstructure:"dataset"`

	// UseTrainset selects the training split to fit the model. Evaluation never uses it.
	UseTrainset bool `mapstructure:"use_trainset"`

	// Options holds every other key of evaluation_data: dataset specific options.
	Options Params `mapstructure:",remain"`
}

// DatasetParams returns the params forwarded to the DatasetProvider: the dataset Options, with the
// batch size forced to 1.
func (data EvaluationData) DatasetParams() Params {
	params := data.Options.Without(KeyDataset, KeyUseTrainset)
	params[KeyBatchSize] = 1
	return params
}

// ForEvaluation returns a copy of data that never selects the training split.
func (data EvaluationData) ForEvaluation() EvaluationData {
	data.Options = data.Options.Clone()
	data.UseTrainset = false
	return data
}

// AsMap returns data as it would be written in a configuration file.
func (data EvaluationData) AsMap() map[string]any {
	m := data.Options.Clone()
	m[KeyDataset] = data.Dataset
	m[KeyUseTrainset] = data.UseTrainset
	return m
}

// Config of an experiment run.
type Config struct {
	// NetConfig holds the options used to construct the model.
	NetConfig Params `mapstructure:"net_config"`

	// EvaluationData selects the data to fit and evaluate on.
	EvaluationData EvaluationData `mapstructure:"evaluation_data"`

	// StartingWeights is handed to the WeightImporter: usually a path or an experiment id.
	StartingWeights string `mapstructure:"starting_weights"`

	// SearchParameters is the search space for the parameter search.
	SearchParameters SearchSpace `mapstructure:"search_parameters"`

	// Model, Evaluator and WeightImporter are the registered names of the collaborators to use.
	Model          string `mapstructure:"model"`
	Evaluator      string `mapstructure:"evaluator"`
	WeightImporter string `mapstructure:"weight_importer"`
}

// DecodeConfig converts a raw configuration (as parsed from YAML, JSON or flags) into a Config.
//
// Strings are converted to the field types where possible ("true" for a bool), since values set
// from the environment or the command line are always strings.
func DecodeConfig(raw map[string]any) (*Config, error) {
	if _, found := raw[KeySearchParameters]; !found {
		if legacy, found := raw[legacySearchParameters]; found {
			raw = Params(raw).Merge(map[string]any{KeySearchParameters: legacy})
		}
	}
	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create configuration decoder")
	}
	if err = decoder.Decode(raw); err != nil {
		return nil, errors.Wrap(err, "failed to decode configuration")
	}
	if cfg.EvaluationData.Options == nil {
		cfg.EvaluationData.Options = make(Params)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModelName
	}
	if cfg.Evaluator == "" {
		cfg.Evaluator = DefaultEvaluatorName
	}
	if cfg.WeightImporter == "" {
		cfg.WeightImporter = DefaultWeightImporterName
	}
	return cfg, nil
}

// AsMap returns the configuration as it would be written in a configuration file.
func (cfg *Config) AsMap() map[string]any {
	m := map[string]any{
		KeyNetConfig:       cfg.NetConfig.Clone(),
		KeyEvaluationData:  cfg.EvaluationData.AsMap(),
		KeyStartingWeights: cfg.StartingWeights,
		KeyModel:           cfg.Model,
		KeyEvaluator:       cfg.Evaluator,
		KeyWeightImporter:  cfg.WeightImporter,
	}
	if cfg.SearchParameters != nil {
		m[KeySearchParameters] = map[string]any(cfg.SearchParameters)
	}
	return m
}

// ValidateFitAndEvaluate checks that cfg has everything the fit-and-evaluate command needs.
func (cfg *Config) ValidateFitAndEvaluate() error {
	if cfg.NetConfig == nil {
		return errors.Wrapf(ErrMissingConfig, "%q", KeyNetConfig)
	}
	if cfg.EvaluationData.Dataset == "" {
		return errors.Wrapf(ErrMissingConfig, "%q in %q", KeyDataset, KeyEvaluationData)
	}
	if cfg.StartingWeights == "" {
		return errors.Wrapf(ErrMissingConfig, "%q", KeyStartingWeights)
	}
	return nil
}

// ValidateSearch checks that cfg has everything the parameter search command needs.
func (cfg *Config) ValidateSearch() error {
	if err := cfg.ValidateFitAndEvaluate(); err != nil {
		return err
	}
	if len(cfg.SearchParameters) == 0 {
		return errors.Wrapf(ErrEmptySearchSpace, "%q not set", KeySearchParameters)
	}
	return nil
}
