// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package experiment

import (
	"bytes"
	"encoding/json"
	"math"
	"testing"

	"github.com/go-gota/gota/series"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunInfo(t *testing.T) {
	var info RunInfo
	data, err := json.Marshal(&info)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(data))

	info.Set(InfoMeasurements, Measurements{"mIoU": 0.25})
	info.Set(InfoConfusionMatrix, ConfusionMatrix{{1, 0}, {2, 3}})
	info.Set(InfoMeasurements, Measurements{"mIoU": 0.5})
	assert.Equal(t, []string{InfoMeasurements, InfoConfusionMatrix}, info.Keys())
	assert.Equal(t, 2, info.Len())
	value, found := info.Get(InfoMeasurements)
	require.True(t, found)
	assert.Equal(t, Measurements{"mIoU": 0.5}, value)
	_, found = info.Get(InfoResults)
	assert.False(t, found)

	data, err = json.Marshal(&info)
	require.NoError(t, err)
	assert.JSONEq(t, `{"measurements": {"mIoU": 0.5}, "confusion_matrix": [[1, 0], [2, 3]]}`, string(data))
}

func TestResultsTable(t *testing.T) {
	records := []Record{
		NewRecord(Params{"alpha": 0.1, "mode": "max"}, Measurements{"score": 0.7}),
		NewRecord(Params{"alpha": 0.2, "mode": "max"}, Measurements{"score": 0.8}),
		NewRecord(Params{"alpha": 0.3, "mode": "mean"}, Measurements{"score": 0.6}),
	}
	results, err := ResultsTable(records)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "mode", "score"}, results.Columns)
	assert.Equal(t, map[string][]any{
		"alpha": {0.1, 0.2, 0.3},
		"mode":  {"max", "max", "mean"},
		"score": {0.7, 0.8, 0.6},
	}, results.Values)
	assert.Equal(t, 3, results.NumRows())

	data, err := json.Marshal(results)
	require.NoError(t, err)
	assert.JSONEq(t, `{"alpha": [0.1, 0.2, 0.3], "mode": ["max", "max", "mean"], "score": [0.7, 0.8, 0.6]}`, string(data))

	var buf bytes.Buffer
	require.NoError(t, results.WriteCSV(&buf))
	assert.Equal(t, "alpha,mode,score\n0.1,max,0.7\n0.2,max,0.8\n0.3,mean,0.6\n", buf.String())

	empty, err := ResultsTable(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.NumRows())
}

func TestResultsCSVKeepsSmallValues(t *testing.T) {
	results, err := ResultsTable([]Record{
		NewRecord(Params{"learning_rate": 1e-7, "steps": 1000}, Measurements{"score": 0.123456789}),
		NewRecord(Params{"learning_rate": 2.5e-9, "steps": 20}, Measurements{"score": math.NaN()}),
	})
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, results.WriteCSV(&buf))
	assert.Equal(t, "learning_rate,score,steps\n1e-07,0.123456789,1000\n2.5e-09,NaN,20\n", buf.String())

	// The dataframe keeps float columns.
	df := results.DataFrame()
	require.NoError(t, df.Err)
	assert.Equal(t, series.Float, df.Col("learning_rate").Type())
	assert.Equal(t, 1e-7, df.Col("learning_rate").Float()[0])
}

func TestRunInfoNonFiniteValues(t *testing.T) {
	info := NewRunInfo()
	info.Set(InfoMeasurements, Measurements{"mIoU": math.NaN(), "accuracy": 0.5})
	info.Set(InfoDirichletParams, []float64{math.Inf(1), 1})
	info.Set(InfoConfusionMatrix, ConfusionMatrix{{1, 0}, {2, 3}})
	results, err := ResultsTable([]Record{{"alpha": 0.1, "score": math.Inf(-1)}})
	require.NoError(t, err)
	info.Set(InfoResults, results)

	data, err := json.Marshal(info)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"measurements": {"mIoU": "NaN", "accuracy": 0.5},
		"dirichlet_params": ["+Inf", 1],
		"confusion_matrix": [[1, 0], [2, 3]],
		"results": {"alpha": [0.1], "score": ["-Inf"]}
	}`, string(data))

	// The values in the RunInfo are not modified.
	value, _ := info.Get(InfoMeasurements)
	assert.True(t, math.IsNaN(value.(Measurements)["mIoU"].(float64)))
}

func TestResultsTableMismatchedKeys(t *testing.T) {
	_, err := ResultsTable([]Record{
		{"alpha": 0.1, "score": 0.7},
		{"alpha": 0.2, "loss": 0.8},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMismatchedResultKeys))

	_, err = ResultsTable([]Record{
		{"alpha": 0.1, "score": 0.7},
		{"alpha": 0.2},
	})
	assert.True(t, errors.Is(err, ErrMismatchedResultKeys))
}
