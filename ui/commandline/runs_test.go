// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package commandline

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rameezrehman83/modular-semantic-segmentation/pkg/experiment"
	"github.com/rameezrehman83/modular-semantic-segmentation/pkg/runs"
)

func TestReportRuns(t *testing.T) {
	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	stop := start.Add(90 * time.Second)
	records := []*runs.RunRecord{
		{ID: "run-a", Command: "fit_and_evaluate", Status: runs.StatusCompleted, StartTime: start, StopTime: &stop},
		{ID: "run-b", Command: "test_parameters", Status: runs.StatusRunning, StartTime: start,
			Artifacts: []string{"results.csv"}},
	}
	var buf bytes.Buffer
	require.NoError(t, ReportRuns(&buf, records, start.Add(3*time.Hour)))
	out := buf.String()
	assert.Contains(t, out, "Runs (2)")
	assert.Contains(t, out, "run-a")
	assert.Contains(t, out, "1m30s")
	assert.Contains(t, out, "(running)")
	assert.Contains(t, out, "results.csv")
}

func TestReportRun(t *testing.T) {
	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	stop := start.Add(time.Minute)
	record := &runs.RunRecord{ID: "run-a", Experiment: "dirichlet_fusion", Command: "test_parameters",
		Status: runs.StatusFailed, StartTime: start, StopTime: &stop, FailTrace: "fit failed\nstack trace"}
	config := map[string]any{"net_config": map[string]any{"alpha": 0.5}}
	info := map[string]any{
		experiment.InfoMeasurements:    map[string]any{"mIoU": 0.625},
		experiment.InfoConfusionMatrix: []any{[]any{1200.0, 1.0}, []any{0.0, 4.0}},
		experiment.InfoResults:         map[string]any{"alpha": []any{0.1, 0.2}, "score": []any{0.3, 0.4}},
	}
	var buf bytes.Buffer
	require.NoError(t, ReportRun(&buf, record, config, info, "score", stop))
	out := buf.String()
	assert.Contains(t, out, "FAILED")
	assert.Contains(t, out, "fit failed")
	assert.NotContains(t, out, "stack trace")
	assert.Contains(t, out, "net_config.alpha")
	assert.Contains(t, out, "0.625")
	assert.Contains(t, out, "1,200")
	assert.Contains(t, out, "Results (2 configurations)")
}

func TestStoredRunInfo(t *testing.T) {
	info := storedRunInfo(map[string]any{
		experiment.InfoConfusionMatrix: []any{[]any{2.0, 1.0}},
		experiment.InfoDirichletParams: []any{0.5},
	})
	cm, found := info.Get(experiment.InfoConfusionMatrix)
	require.True(t, found)
	assert.Equal(t, experiment.ConfusionMatrix{{2, 1}}, cm)
	params, _ := info.Get(experiment.InfoDirichletParams)
	assert.Equal(t, []any{0.5}, params)
}
