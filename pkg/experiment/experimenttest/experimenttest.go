// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package experimenttest holds fake collaborators for testing code that depends on the experiment
// package. All fakes append to a shared CallLog, so tests can check the order of the calls.
package experimenttest

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/pkg/errors"

	"github.com/rameezrehman83/modular-semantic-segmentation/pkg/experiment"
)

// CallLog records the calls made to the fakes, e.g. "model#0.Fit(validation)".
type CallLog struct {
	Calls []string
}

// Add a call to the log.
func (log *CallLog) Add(format string, args ...any) {
	log.Calls = append(log.Calls, fmt.Sprintf(format, args...))
}

// Filter returns the calls with the given prefix.
func (log *CallLog) Filter(prefix string) []string {
	var filtered []string
	for _, call := range log.Calls {
		if strings.HasPrefix(call, prefix) {
			filtered = append(filtered, call)
		}
	}
	return filtered
}

// Index returns the position of the first call equal to call, or -1.
func (log *CallLog) Index(call string) int {
	return slices.Index(log.Calls, call)
}

// Batches yields a fixed list of batches.
type Batches struct {
	BatchesName string
	Data        []any
	next        int
}

// Name implements experiment.Batches.
func (b *Batches) Name() string { return b.BatchesName }

// Reset implements experiment.Batches.
func (b *Batches) Reset() { b.next = 0 }

// Yield implements experiment.Batches.
func (b *Batches) Yield() (any, error) {
	if b.next >= len(b.Data) {
		return nil, io.EOF
	}
	batch := b.Data[b.next]
	b.next++
	return batch, nil
}

// Dataset is a fake experiment.Dataset and experiment.DatasetProvider.
type Dataset struct {
	Log *CallLog

	// LoadedName and LoadedParams are the arguments of the last call to Dataset (as a provider).
	LoadedName   string
	LoadedParams experiment.Params

	// TrainOptions has the options of every call to TrainData.
	TrainOptions []experiment.TrainDataOptions

	// LoadErr is returned when loading the dataset.
	LoadErr error
}

// Dataset implements experiment.DatasetProvider, returning itself.
func (ds *Dataset) Dataset(name string, params experiment.Params) (experiment.Dataset, error) {
	ds.Log.Add("dataset.Load(%s)", name)
	ds.LoadedName = name
	ds.LoadedParams = params
	if ds.LoadErr != nil {
		return nil, ds.LoadErr
	}
	return ds, nil
}

// TrainData implements experiment.Dataset.
func (ds *Dataset) TrainData(opts experiment.TrainDataOptions) (experiment.Batches, error) {
	ds.Log.Add("dataset.TrainData(batch_size=%d, training_format=%v)", opts.BatchSize, opts.TrainingFormat)
	ds.TrainOptions = append(ds.TrainOptions, opts)
	return &Batches{BatchesName: "train", Data: []any{"train"}}, nil
}

// ValidationData implements experiment.Dataset.
func (ds *Dataset) ValidationData() (experiment.Batches, error) {
	ds.Log.Add("dataset.ValidationData()")
	return &Batches{BatchesName: "validation", Data: []any{"validation"}}, nil
}

// Model is a fake experiment.Model. Its Fit measures "score", the value of the "alpha" parameter
// of its configuration (or 0).
type Model struct {
	ID     int
	Log    *CallLog
	Config experiment.Params

	// Stat is the sufficient statistic set, if any.
	Stat experiment.SufficientStatistic

	// Weights imported, in order.
	Weights []string

	FitErr error
	Closed bool
}

func (m *Model) add(format string, args ...any) {
	m.Log.Add("model#%d.%s", m.ID, fmt.Sprintf(format, args...))
}

// Fit implements experiment.Model.
func (m *Model) Fit(data experiment.Batches) (*experiment.FitResult, error) {
	m.add("Fit(%s)", data.Name())
	if m.Closed {
		return nil, errors.New("model used after Close")
	}
	if m.FitErr != nil {
		return nil, m.FitErr
	}
	score, _ := experiment.GetParamOr(m.Config, "alpha", 0.0)
	return &experiment.FitResult{
		Measurements:    experiment.Measurements{"score": score},
		DirichletParams: []float64{score, 1},
	}, nil
}

// SufficientStatistic implements experiment.Model.
func (m *Model) SufficientStatistic(data experiment.Batches) (experiment.SufficientStatistic, error) {
	m.add("SufficientStatistic(%s)", data.Name())
	return fmt.Sprintf("stat-from-model#%d", m.ID), nil
}

// SetSufficientStatistic implements experiment.Model.
func (m *Model) SetSufficientStatistic(stat experiment.SufficientStatistic) error {
	m.add("SetSufficientStatistic(%v)", stat)
	m.Stat = stat
	return nil
}

// Close implements experiment.Model.
func (m *Model) Close() error {
	m.add("Close()")
	m.Closed = true
	return nil
}

// LoadWeights implements experiment.WeightLoader.
func (m *Model) LoadWeights(source string) error {
	m.add("LoadWeights(%s)", source)
	m.Weights = append(m.Weights, source)
	return nil
}

// ModelFactory creates fake Models, numbered in creation order.
type ModelFactory struct {
	Log    *CallLog
	Models []*Model

	// FitErrs maps the model number to the error its Fit returns.
	FitErrs map[int]error
}

// New implements experiment.ModelFactory.
func (f *ModelFactory) New(config experiment.Params) (experiment.Model, error) {
	m := &Model{ID: len(f.Models), Log: f.Log, Config: config, FitErr: f.FitErrs[len(f.Models)]}
	f.Log.Add("model#%d.New(%s)", m.ID, config)
	f.Models = append(f.Models, m)
	return m, nil
}

// WeightImporter is a fake experiment.WeightImporter.
type WeightImporter struct {
	Log *CallLog
}

// ImportWeights implements experiment.WeightImporter.
func (w *WeightImporter) ImportWeights(model experiment.Model, source string) error {
	w.Log.Add("weights.Import(model#%d, %s)", model.(*Model).ID, source)
	return nil
}

// Evaluator is a fake experiment.Evaluator.
type Evaluator struct {
	Log *CallLog

	// Evaluated has the EvaluationData of every call.
	Evaluated []experiment.EvaluationData
}

// Evaluate implements experiment.Evaluator.
func (e *Evaluator) Evaluate(model experiment.Model, data experiment.EvaluationData) (experiment.Measurements, experiment.ConfusionMatrix, error) {
	e.Log.Add("evaluator.Evaluate(model#%d, use_trainset=%v)", model.(*Model).ID, data.UseTrainset)
	e.Evaluated = append(e.Evaluated, data)
	return experiment.Measurements{"mIoU": 0.5}, experiment.ConfusionMatrix{{3, 1}, {0, 4}}, nil
}

// Fixture holds a Runner wired to fakes that share one CallLog.
type Fixture struct {
	Log       *CallLog
	Dataset   *Dataset
	Models    *ModelFactory
	Weights   *WeightImporter
	Evaluator *Evaluator
	Runner    *experiment.Runner
}

// NewFixture creates a Runner wired to fakes, writing to a new RunInfo.
func NewFixture() *Fixture {
	log := &CallLog{}
	f := &Fixture{
		Log:       log,
		Dataset:   &Dataset{Log: log},
		Models:    &ModelFactory{Log: log, FitErrs: make(map[int]error)},
		Weights:   &WeightImporter{Log: log},
		Evaluator: &Evaluator{Log: log},
	}
	f.Runner = &experiment.Runner{
		Datasets:   f.Dataset,
		NewModel:   f.Models.New,
		Weights:    f.Weights,
		Evaluator:  f.Evaluator,
		Combinator: experiment.ParameterCombinations,
		Info:       experiment.NewRunInfo(),
	}
	return f
}
