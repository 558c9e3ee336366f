// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package experiment

// Batches provides the data for a fit or an evaluation, one batch at a time.
//
// It mirrors the train.Dataset contract: Yield returns io.EOF at the end of a finite dataset, and
// Reset restarts it from the beginning. What a batch holds is up to the Dataset and the Model
// consuming it.
type Batches interface {
	// Name identifies the data, used for logging.
	Name() string

	// Reset restarts the batches from the beginning.
	Reset()

	// Yield the next batch, or io.EOF when there are no more.
	Yield() (batch any, err error)
}

// TrainDataOptions configures Dataset.TrainData.
type TrainDataOptions struct {
	// BatchSize of the yielded batches. If 0 the dataset default is used.
	BatchSize int

	// TrainingFormat requests batches as used for training (augmented, shuffled, etc.).
	// If false the training split is yielded as if it were evaluation data.
	TrainingFormat bool
}

// Dataset is a handle to a loaded dataset, returned by a DatasetProvider.
type Dataset interface {
	// TrainData returns the training split.
	TrainData(opts TrainDataOptions) (Batches, error)

	// ValidationData returns a fresh pass over the validation split.
	ValidationData() (Batches, error)
}

// DatasetProvider loads datasets by name. The params are forwarded as-is.
type DatasetProvider interface {
	Dataset(name string, params Params) (Dataset, error)
}

// DatasetLoader loads one specific dataset, given its params.
type DatasetLoader func(params Params) (Dataset, error)

// SufficientStatistic computed by a Model from a sample of the data. It's opaque to the runner, and
// shared by all models tested in a parameter search.
type SufficientStatistic any

// FitResult is what Model.Fit returns.
type FitResult struct {
	// Measurements taken while fitting, when the model measures anything.
	Measurements Measurements

	// DirichletParams are the fitted parameters of the mixture.
	DirichletParams any
}

// Model is a Dirichlet mixture of experts.
//
// Models are scoped resources: a Model is created by a ModelFactory for one configuration, used once
// and closed. Fit rebuilds the internal computation state, so the weights must be imported again
// after fitting and before evaluating.
type Model interface {
	// Fit the mixture to the given data.
	Fit(data Batches) (*FitResult, error)

	// SufficientStatistic computes the statistic the mixture is fitted on, from a sample of the data.
	SufficientStatistic(data Batches) (SufficientStatistic, error)

	// SetSufficientStatistic injects a statistic previously computed, possibly by another Model.
	SetSufficientStatistic(stat SufficientStatistic) error

	// Close releases the resources of the model. The model can't be used afterward.
	Close() error
}

// ModelFactory creates a Model for the given configuration (the "net_config").
type ModelFactory func(config Params) (Model, error)

// WeightImporter loads pretrained weights (the experts) into a model.
type WeightImporter interface {
	ImportWeights(model Model, source string) error
}

// WeightImporterFunc adapts a function to a WeightImporter.
type WeightImporterFunc func(model Model, source string) error

// ImportWeights implements WeightImporter.
func (fn WeightImporterFunc) ImportWeights(model Model, source string) error {
	return fn(model, source)
}

// Measurements maps metric names to values.
type Measurements map[string]any

// ConfusionMatrix holds counts indexed by [label][prediction].
type ConfusionMatrix [][]int64

// Evaluator measures a model against the data described by EvaluationData.
type Evaluator interface {
	Evaluate(model Model, data EvaluationData) (Measurements, ConfusionMatrix, error)
}

// EvaluatorFunc adapts a function to an Evaluator.
type EvaluatorFunc func(model Model, data EvaluationData) (Measurements, ConfusionMatrix, error)

// Evaluate implements Evaluator.
func (fn EvaluatorFunc) Evaluate(model Model, data EvaluationData) (Measurements, ConfusionMatrix, error) {
	return fn(model, data)
}

// Combinator expands a search space into concrete model configurations, built on top of base.
type Combinator func(search SearchSpace, base Params) ([]Params, error)

// ProgressReporter is informed of the progress of a parameter search.
type ProgressReporter interface {
	// Start is called once with the number of configurations to test.
	Start(total int)

	// Done is called after each configuration is tested.
	Done(config Params, measurements Measurements)

	// Finish is called once at the end, also on failure.
	Finish()
}
