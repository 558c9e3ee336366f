// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package experiment_test

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/rameezrehman83/modular-semantic-segmentation/pkg/experiment"
	"github.com/rameezrehman83/modular-semantic-segmentation/pkg/experiment/experimenttest"
)

func newTestConfig(useTrainset bool) *Config {
	return &Config{
		NetConfig: Params{"alpha": 0.5},
		EvaluationData: EvaluationData{
			Dataset:     "cityscapes",
			UseTrainset: useTrainset,
			Options:     Params{"resize": 256},
		},
		StartingWeights: "weights/v1",
	}
}

func TestFitAndEvaluateOnValidation(t *testing.T) {
	f := experimenttest.NewFixture()
	require.NoError(t, f.Runner.FitAndEvaluate(newTestConfig(false)))

	assert.Equal(t, []string{
		"model#0.New({alpha=0.5})",
		"weights.Import(model#0, weights/v1)",
		"dataset.Load(cityscapes)",
		"dataset.ValidationData()",
		"model#0.Fit(validation)",
		"weights.Import(model#0, weights/v1)",
		"evaluator.Evaluate(model#0, use_trainset=false)",
		"model#0.Close()",
	}, f.Log.Calls)
	assert.Equal(t, Params{"resize": 256, "batchsize": 1}, f.Dataset.LoadedParams)

	info := f.Runner.Info
	assert.Equal(t, []string{InfoMeasurements, InfoConfusionMatrix, InfoDirichletParams}, info.Keys())
	measurements, _ := info.Get(InfoMeasurements)
	assert.Equal(t, Measurements{"mIoU": 0.5}, measurements)
	confusionMatrix, _ := info.Get(InfoConfusionMatrix)
	assert.Equal(t, ConfusionMatrix{{3, 1}, {0, 4}}, confusionMatrix)
	dirichletParams, _ := info.Get(InfoDirichletParams)
	assert.Equal(t, []float64{0.5, 1}, dirichletParams)
}

func TestFitAndEvaluateOnTrainset(t *testing.T) {
	f := experimenttest.NewFixture()
	cfg := newTestConfig(true)
	require.NoError(t, f.Runner.FitAndEvaluate(cfg))

	// Training split in evaluation format, and never evaluated on it.
	require.Len(t, f.Dataset.TrainOptions, 1)
	assert.False(t, f.Dataset.TrainOptions[0].TrainingFormat)
	assert.Contains(t, f.Log.Calls, "model#0.Fit(train)")
	require.Len(t, f.Evaluator.Evaluated, 1)
	assert.False(t, f.Evaluator.Evaluated[0].UseTrainset)
	assert.Equal(t, "cityscapes", f.Evaluator.Evaluated[0].Dataset)
	assert.Equal(t, Params{"resize": 256}, f.Evaluator.Evaluated[0].Options)

	// The caller's configuration is not changed.
	assert.True(t, cfg.EvaluationData.UseTrainset)

	// Weights imported again after fitting and before evaluating.
	fitIdx := f.Log.Index("model#0.Fit(train)")
	evalIdx := f.Log.Index("evaluator.Evaluate(model#0, use_trainset=false)")
	imports := 0
	for _, call := range f.Log.Calls[fitIdx:evalIdx] {
		if call == "weights.Import(model#0, weights/v1)" {
			imports++
		}
	}
	assert.Equal(t, 1, imports)
}

func TestFitAndEvaluateFailures(t *testing.T) {
	f := experimenttest.NewFixture()
	f.Models.FitErrs[0] = errors.New("out of memory")
	err := f.Runner.FitAndEvaluate(newTestConfig(false))
	require.ErrorContains(t, err, "out of memory")
	require.Len(t, f.Models.Models, 1)
	assert.True(t, f.Models.Models[0].Closed)
	assert.Equal(t, "model#0.Close()", f.Log.Calls[len(f.Log.Calls)-1])
	assert.Equal(t, 0, f.Runner.Info.Len())

	f = experimenttest.NewFixture()
	f.Dataset.LoadErr = errors.New("no such dataset")
	require.ErrorContains(t, f.Runner.FitAndEvaluate(newTestConfig(false)), "no such dataset")
	assert.True(t, f.Models.Models[0].Closed)

	f = experimenttest.NewFixture()
	cfg := newTestConfig(false)
	cfg.StartingWeights = ""
	assert.True(t, errors.Is(f.Runner.FitAndEvaluate(cfg), ErrMissingConfig))
	assert.Empty(t, f.Log.Calls)
}

// panickingModel panics while fitting.
type panickingModel struct {
	*experimenttest.Model
}

func (m panickingModel) Fit(Batches) (*FitResult, error) {
	panic(errors.New("fit exploded"))
}

func TestFitAndEvaluatePanicClosesModel(t *testing.T) {
	f := experimenttest.NewFixture()
	var created *experimenttest.Model
	f.Runner.NewModel = func(config Params) (Model, error) {
		created = &experimenttest.Model{Log: f.Log, Config: config}
		return panickingModel{created}, nil
	}
	f.Runner.Weights = DefaultWeightImporter
	err := f.Runner.FitAndEvaluate(newTestConfig(false))
	require.ErrorContains(t, err, "fit exploded")
	assert.True(t, created.Closed)
	assert.Equal(t, []string{"weights/v1"}, created.Weights)
}

// noResultModel returns neither a result nor an error when fitting.
type noResultModel struct {
	*experimenttest.Model
}

func (m noResultModel) Fit(data Batches) (*FitResult, error) {
	m.Log.Add("model#%d.Fit(%s)", m.ID, data.Name())
	return nil, nil
}

func TestFitWithoutResult(t *testing.T) {
	newFixture := func() (*experimenttest.Fixture, *[]*experimenttest.Model) {
		f := experimenttest.NewFixture()
		created := &[]*experimenttest.Model{}
		f.Runner.NewModel = func(config Params) (Model, error) {
			m := &experimenttest.Model{ID: len(*created), Log: f.Log, Config: config}
			*created = append(*created, m)
			return noResultModel{m}, nil
		}
		f.Runner.Weights = DefaultWeightImporter
		return f, created
	}

	f, created := newFixture()
	err := f.Runner.FitAndEvaluate(newTestConfig(false))
	require.ErrorContains(t, err, "returned no result")
	assert.Empty(t, f.Evaluator.Evaluated)
	require.Len(t, *created, 1)
	assert.True(t, (*created)[0].Closed)

	f, created = newFixture()
	err = f.Runner.SearchParameters(newSearchConfig())
	require.ErrorContains(t, err, "returned no result")
	_, found := f.Runner.Info.Get(InfoResults)
	assert.False(t, found)
	for _, m := range *created {
		assert.True(t, m.Closed)
	}
}

func newSearchConfig() *Config {
	cfg := newTestConfig(false)
	cfg.NetConfig = Params{"num_classes": 2}
	cfg.SearchParameters = SearchSpace{"alpha": []any{0.1, 0.2}, "mode": "max"}
	return cfg
}

// progress records the calls to a ProgressReporter.
type progress struct {
	total    int
	done     []Measurements
	finished bool
}

func (p *progress) Start(total int)               { p.total = total }
func (p *progress) Done(_ Params, m Measurements) { p.done = append(p.done, m) }
func (p *progress) Finish()                       { p.finished = true }

func TestSearchParameters(t *testing.T) {
	f := experimenttest.NewFixture()
	p := &progress{}
	f.Runner.Progress = p
	require.NoError(t, f.Runner.SearchParameters(newSearchConfig()))

	assert.Equal(t, []string{
		"dataset.Load(cityscapes)",
		"dataset.TrainData(batch_size=6, training_format=true)",
		"model#0.New({alpha=0.1, mode=max, num_classes=2})",
		"weights.Import(model#0, weights/v1)",
		"model#0.SufficientStatistic(train)",
		"model#0.Close()",
		"model#1.New({alpha=0.1, mode=max, num_classes=2})",
		"model#1.SetSufficientStatistic(stat-from-model#0)",
		"weights.Import(model#1, weights/v1)",
		"dataset.ValidationData()",
		"model#1.Fit(validation)",
		"model#1.Close()",
		"model#2.New({alpha=0.2, mode=max, num_classes=2})",
		"model#2.SetSufficientStatistic(stat-from-model#0)",
		"weights.Import(model#2, weights/v1)",
		"dataset.ValidationData()",
		"model#2.Fit(validation)",
		"model#2.Close()",
	}, f.Log.Calls)
	assert.Equal(t, []TrainDataOptions{{BatchSize: SufficientStatisticBatchSize, TrainingFormat: true}}, f.Dataset.TrainOptions)
	assert.Equal(t, 6, SufficientStatisticBatchSize)

	value, found := f.Runner.Info.Get(InfoResults)
	require.True(t, found)
	results := value.(*Results)
	assert.Equal(t, []string{"alpha", "mode", "num_classes", "score"}, results.Columns)
	assert.Equal(t, []any{0.1, 0.2}, results.Values["alpha"])
	assert.Equal(t, []any{"max", "max"}, results.Values["mode"])
	assert.Equal(t, []any{0.1, 0.2}, results.Values["score"])

	assert.Equal(t, 2, p.total)
	assert.Len(t, p.done, 2)
	assert.True(t, p.finished)
}

func TestSearchParametersFitFailure(t *testing.T) {
	f := experimenttest.NewFixture()
	f.Models.FitErrs[1] = errors.New("diverged")
	err := f.Runner.SearchParameters(newSearchConfig())
	require.ErrorContains(t, err, "diverged")

	// The failing model is closed and no further configuration is attempted.
	assert.Equal(t, "model#1.Close()", f.Log.Calls[len(f.Log.Calls)-1])
	assert.Empty(t, f.Log.Filter("model#2"))
	for _, m := range f.Models.Models {
		assert.True(t, m.Closed, "model#%d not closed", m.ID)
	}
	_, found := f.Runner.Info.Get(InfoResults)
	assert.False(t, found)
}

func TestSearchParametersEmptySearchSpace(t *testing.T) {
	f := experimenttest.NewFixture()
	cfg := newSearchConfig()
	cfg.SearchParameters = SearchSpace{"alpha": []any{}}
	assert.True(t, errors.Is(f.Runner.SearchParameters(cfg), ErrEmptySearchSpace))
	assert.Empty(t, f.Log.Calls)

	cfg.SearchParameters = nil
	assert.True(t, errors.Is(f.Runner.SearchParameters(cfg), ErrEmptySearchSpace))
}
