// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package experiment

import (
	"github.com/pkg/errors"
)

// The collaborators are linked into a binary by importing the packages implementing them, which
// register themselves during initialization. E.g.:
//
//	import _ "example.com/segmentation/datasets/cityscapes"
var (
	registeredDatasets        = make(map[string]DatasetLoader)
	registeredModels          = make(map[string]ModelFactory)
	registeredEvaluators      = make(map[string]Evaluator)
	registeredWeightImporters = map[string]WeightImporter{
		DefaultWeightImporterName: DefaultWeightImporter,
	}
)

// RegisterDataset registers a dataset loader under the given name.
//
// To be safe, call Register* functions during initialization of a package.
func RegisterDataset(name string, loader DatasetLoader) {
	registeredDatasets[name] = loader
}

// RegisterModel registers a model factory under the given name. The default model name is
// DefaultModelName.
func RegisterModel(name string, factory ModelFactory) {
	registeredModels[name] = factory
}

// RegisterEvaluator registers an evaluator under the given name. The default evaluator name is
// DefaultEvaluatorName.
func RegisterEvaluator(name string, evaluator Evaluator) {
	registeredEvaluators[name] = evaluator
}

// RegisterWeightImporter registers a weight importer under the given name. DefaultWeightImporter is
// registered as DefaultWeightImporterName, and can be replaced.
func RegisterWeightImporter(name string, importer WeightImporter) {
	registeredWeightImporters[name] = importer
}

// WeightLoader is implemented by models that know how to load their own pretrained weights.
type WeightLoader interface {
	LoadWeights(source string) error
}

// DefaultWeightImporter loads weights into models implementing WeightLoader, and fails for any other model.
var DefaultWeightImporter = WeightImporterFunc(func(model Model, source string) error {
	loader, ok := model.(WeightLoader)
	if !ok {
		return errors.Errorf("model of type %T can't load weights by itself, register a weight importer for it", model)
	}
	return errors.WithMessagef(loader.LoadWeights(source), "failed to load weights from %q", source)
})

// Registry is a DatasetProvider backed by the registered dataset loaders.
type Registry struct{}

// Dataset implements DatasetProvider.
func (Registry) Dataset(name string, params Params) (Dataset, error) {
	loader, err := lookup(registeredDatasets, "dataset", name)
	if err != nil {
		return nil, err
	}
	dataset, err := loader(params)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to load dataset %q", name)
	}
	return dataset, nil
}

// NewRunnerFromRegistry returns a Runner using the registered collaborators selected by cfg, and
// the default ParameterCombinations.
func NewRunnerFromRegistry(cfg *Config, info *RunInfo) (*Runner, error) {
	newModel, err := lookup(registeredModels, "model", cfg.Model)
	if err != nil {
		return nil, err
	}
	evaluator, err := lookup(registeredEvaluators, "evaluator", cfg.Evaluator)
	if err != nil {
		return nil, err
	}
	importer, err := lookup(registeredWeightImporters, "weight importer", cfg.WeightImporter)
	if err != nil {
		return nil, err
	}
	return &Runner{
		Datasets:   Registry{},
		NewModel:   newModel,
		Weights:    importer,
		Evaluator:  evaluator,
		Combinator: ParameterCombinations,
		Info:       info,
	}, nil
}

// RegisteredNames returns the sorted names registered for each kind of collaborator:
// "dataset", "model", "evaluator" and "weight importer".
func RegisteredNames() map[string][]string {
	return map[string][]string{
		"dataset":         SortedKeys(registeredDatasets),
		"model":           SortedKeys(registeredModels),
		"evaluator":       SortedKeys(registeredEvaluators),
		"weight importer": SortedKeys(registeredWeightImporters),
	}
}

func lookup[T any](registered map[string]T, kind, name string) (T, error) {
	value, found := registered[name]
	if !found {
		var zero T
		return zero, errors.Wrapf(ErrUnknownCollaborator, "no %s registered as %q (registered: %v) -- maybe a blank import is missing?",
			kind, name, SortedKeys(registered))
	}
	return value, nil
}
