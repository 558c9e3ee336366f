// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package experiment fits and evaluates Dirichlet mixtures of pretrained experts.
//
// The Runner orchestrates the collaborators (datasets, models, weight importers and evaluators),
// which are given as interfaces, and writes its outputs to a RunInfo. It provides two commands:
//
//   - Runner.FitAndEvaluate: fit one model and evaluate it against the validation data.
//   - Runner.SearchParameters: fit every configuration of a search space and collect the measurements.
//
// Collaborators can be registered by name (see RegisterModel and friends) and a Runner created with
// NewRunnerFromRegistry.
package experiment

import (
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// SufficientStatisticBatchSize is the number of training examples used to compute the sufficient
// statistic shared by all configurations of a parameter search.
const SufficientStatisticBatchSize = 6

// Runner runs the experiment commands. All fields but Progress are required.
type Runner struct {
	Datasets   DatasetProvider
	NewModel   ModelFactory
	Weights    WeightImporter
	Evaluator  Evaluator
	Combinator Combinator

	// Info receives the outputs of the commands.
	Info *RunInfo

	// Progress, if set, is informed of the progress of a parameter search.
	Progress ProgressReporter
}

// withModel creates a model for config and calls fn with it. The model is always closed before
// withModel returns, even if fn returns an error or panics.
//
// Panics with an error are returned as errors, anything else is re-thrown after closing the model.
func (r *Runner) withModel(config Params, fn func(model Model) error) (err error) {
	model, err := r.NewModel(config.Clone())
	if err != nil {
		return errors.WithMessagef(err, "failed to create model for configuration %s", config)
	}
	defer func() {
		closeErr := model.Close()
		if closeErr == nil {
			return
		}
		if err != nil {
			klog.Warningf("Failed to close model after error: %+v", closeErr)
			return
		}
		err = errors.Wrap(closeErr, "failed to close model")
	}()
	var fnErr error
	err = exceptions.TryCatch[error](func() { fnErr = fn(model) })
	if err == nil {
		err = fnErr
	}
	return
}

// fitModel fits model on data, and checks that it returned a result.
func fitModel(model Model, data Batches) (*FitResult, error) {
	fitted, err := model.Fit(data)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to fit model")
	}
	if fitted == nil {
		return nil, errors.Errorf("model of type %T returned no result fitting on %q", model, data.Name())
	}
	return fitted, nil
}

func (r *Runner) importWeights(model Model, source string) error {
	return errors.WithMessagef(r.Weights.ImportWeights(model, source), "failed to import weights %q", source)
}

func (r *Runner) loadDataset(data EvaluationData) (Dataset, error) {
	dataset, err := r.Datasets.Dataset(data.Dataset, data.DatasetParams())
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to load dataset %q", data.Dataset)
	}
	return dataset, nil
}

// FitAndEvaluate fits the mixture defined by cfg.NetConfig on top of the pretrained weights and evaluates it.
//
// The model is fitted on the training split (yielded in evaluation format) if
// cfg.EvaluationData.UseTrainset is set, or on the validation split otherwise. The weights are
// imported again after fitting, and the evaluation is never done on the training split.
//
// It writes InfoMeasurements, InfoConfusionMatrix and InfoDirichletParams to r.Info.
func (r *Runner) FitAndEvaluate(cfg *Config) error {
	if err := cfg.ValidateFitAndEvaluate(); err != nil {
		return err
	}
	return r.withModel(cfg.NetConfig, func(model Model) error {
		if err := r.importWeights(model, cfg.StartingWeights); err != nil {
			return err
		}
		dataset, err := r.loadDataset(cfg.EvaluationData)
		if err != nil {
			return err
		}
		var batches Batches
		if cfg.EvaluationData.UseTrainset {
			batches, err = dataset.TrainData(TrainDataOptions{TrainingFormat: false})
		} else {
			batches, err = dataset.ValidationData()
		}
		if err != nil {
			return errors.WithMessagef(err, "failed to get data to fit from dataset %q", cfg.EvaluationData.Dataset)
		}
		klog.V(1).Infof("Fitting %s on %q", cfg.NetConfig, batches.Name())
		fitted, err := fitModel(model, batches)
		if err != nil {
			return err
		}

		// Fitting rebuilds the model state.
		if err := r.importWeights(model, cfg.StartingWeights); err != nil {
			return err
		}

		measurements, confusionMatrix, err := r.Evaluator.Evaluate(model, cfg.EvaluationData.ForEvaluation())
		if err != nil {
			return errors.WithMessage(err, "failed to evaluate model")
		}
		r.Info.Set(InfoMeasurements, measurements)
		r.Info.Set(InfoConfusionMatrix, confusionMatrix)
		r.Info.Set(InfoDirichletParams, fitted.DirichletParams)
		klog.Infof("Evaluation of %s: %v", cfg.NetConfig, measurements)
		return nil
	})
}

// SearchParameters fits one model for each configuration of cfg.SearchParameters (built on top of
// cfg.NetConfig) against the validation split, and collects their measurements.
//
// The sufficient statistic is computed only once, by the model of the first configuration on
// SufficientStatisticBatchSize training examples, and injected in all models.
//
// It writes a Results table to r.Info under InfoResults, with one row per configuration with its
// parameters and measurements.
func (r *Runner) SearchParameters(cfg *Config) error {
	if err := cfg.ValidateSearch(); err != nil {
		return err
	}
	configs, err := r.Combinator(cfg.SearchParameters, cfg.NetConfig)
	if err != nil {
		return errors.WithMessage(err, "failed to expand search space")
	}
	if len(configs) == 0 {
		return errors.Wrapf(ErrEmptySearchSpace, "no configuration generated from %v", map[string]any(cfg.SearchParameters))
	}
	klog.V(1).Infof("Testing %d configurations", len(configs))

	dataset, err := r.loadDataset(cfg.EvaluationData)
	if err != nil {
		return err
	}
	sample, err := dataset.TrainData(TrainDataOptions{BatchSize: SufficientStatisticBatchSize, TrainingFormat: true})
	if err != nil {
		return errors.WithMessagef(err, "failed to get training data from dataset %q", cfg.EvaluationData.Dataset)
	}
	var stat SufficientStatistic
	err = r.withModel(configs[0], func(model Model) error {
		if err := r.importWeights(model, cfg.StartingWeights); err != nil {
			return err
		}
		var err error
		stat, err = model.SufficientStatistic(sample)
		return errors.WithMessage(err, "failed to compute sufficient statistic")
	})
	if err != nil {
		return err
	}

	if r.Progress != nil {
		r.Progress.Start(len(configs))
		defer r.Progress.Finish()
	}
	records := make([]Record, 0, len(configs))
	for configIdx, config := range configs {
		err = r.withModel(config, func(model Model) error {
			if err := model.SetSufficientStatistic(stat); err != nil {
				return errors.WithMessage(err, "failed to set sufficient statistic")
			}
			if err := r.importWeights(model, cfg.StartingWeights); err != nil {
				return err
			}
			validation, err := dataset.ValidationData()
			if err != nil {
				return errors.WithMessagef(err, "failed to get validation data from dataset %q", cfg.EvaluationData.Dataset)
			}
			fitted, err := fitModel(model, validation)
			if err != nil {
				return err
			}
			records = append(records, NewRecord(config, fitted.Measurements))
			if r.Progress != nil {
				r.Progress.Done(config, fitted.Measurements)
			}
			klog.V(1).Infof("Configuration #%d %s: %v", configIdx, config, fitted.Measurements)
			return nil
		})
		if err != nil {
			return errors.WithMessagef(err, "configuration #%d", configIdx)
		}
	}

	results, err := ResultsTable(records)
	if err != nil {
		return err
	}
	r.Info.Set(InfoResults, results)
	return nil
}
