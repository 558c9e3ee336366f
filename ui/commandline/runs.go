// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package commandline

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/rameezrehman83/modular-semantic-segmentation/pkg/experiment"
	"github.com/rameezrehman83/modular-semantic-segmentation/pkg/runs"
)

const startTimeLayout = "2006-01-02 15:04:05"

// runDuration formats how long the run took, or for how long it has been running.
func runDuration(record *runs.RunRecord, now time.Time) string {
	if record.StopTime != nil {
		return FormatDuration(record.StopTime.Sub(record.StartTime))
	}
	if record.Status == runs.StatusRunning {
		return strings.TrimSpace(humanize.RelTime(record.StartTime, now, "", "")) + " (running)"
	}
	return "-"
}

// ReportRuns writes a table with one row per recorded run. Failed runs are highlighted.
func ReportRuns(w io.Writer, records []*runs.RunRecord, now time.Time) error {
	highlighted := make(map[int]bool)
	table := newPlainTable(highlighted, lipgloss.Left, lipgloss.Left, lipgloss.Left, lipgloss.Left, lipgloss.Right, lipgloss.Left).
		Headers("Run", "Command", "Status", "Started", "Duration", "Artifacts")
	for row, record := range records {
		if record.Status == runs.StatusFailed {
			highlighted[row] = true
		}
		table.Row(record.ID, record.Command, string(record.Status), record.StartTime.Local().Format(startTimeLayout),
			runDuration(record, now), strings.Join(record.Artifacts, ", "))
	}
	return render(w, fmt.Sprintf("Runs (%s)", humanize.Comma(int64(len(records)))), table.String())
}

// ReportRun writes the summary of one recorded run, followed by its configuration and its info, if given.
func ReportRun(w io.Writer, record *runs.RunRecord, config, info map[string]any, metric string, now time.Time) error {
	table := newPlainTable(nil, lipgloss.Right, lipgloss.Left)
	table.Row("run", record.ID)
	table.Row("experiment", record.Experiment)
	table.Row("command", record.Command)
	table.Row("status", string(record.Status))
	table.Row("host", record.Host)
	table.Row("started", record.StartTime.Local().Format(startTimeLayout))
	table.Row("duration", runDuration(record, now))
	if len(record.Artifacts) > 0 {
		table.Row("artifacts", strings.Join(record.Artifacts, ", "))
	}
	if err := render(w, "Summary", table.String()); err != nil {
		return err
	}
	if record.FailTrace != "" {
		firstLine, _, _ := strings.Cut(record.FailTrace, "\n")
		if _, err := fmt.Fprintf(w, "%s\n%s\n", titleStyle.Render("Failure"), firstLine); err != nil {
			return err
		}
	}
	if config != nil {
		if err := ReportConfig(w, config); err != nil {
			return err
		}
	}
	if info != nil {
		return ReportRunInfo(w, storedRunInfo(info), metric)
	}
	return nil
}

// storedRunInfo converts the info read back from a run, as decoded from JSON, to the types
// reported by ReportRunInfo.
func storedRunInfo(stored map[string]any) *experiment.RunInfo {
	info := experiment.NewRunInfo()
	for _, key := range experiment.SortedKeys(stored) {
		value := stored[key]
		switch key {
		case experiment.InfoMeasurements:
			if m, ok := value.(map[string]any); ok {
				value = experiment.Measurements(m)
			}
		case experiment.InfoConfusionMatrix:
			if cm, ok := toConfusionMatrix(value); ok {
				value = cm
			}
		case experiment.InfoResults:
			if columns, ok := value.(map[string]any); ok {
				results := &experiment.Results{Columns: experiment.SortedKeys(columns), Values: make(map[string][]any)}
				for column, values := range columns {
					results.Values[column], _ = values.([]any)
				}
				value = results
			}
		}
		info.Set(key, value)
	}
	return info
}

func toConfusionMatrix(value any) (experiment.ConfusionMatrix, bool) {
	rows, ok := value.([]any)
	if !ok {
		return nil, false
	}
	cm := make(experiment.ConfusionMatrix, 0, len(rows))
	for _, row := range rows {
		cells, ok := row.([]any)
		if !ok {
			return nil, false
		}
		counts := make([]int64, 0, len(cells))
		for _, cell := range cells {
			count, ok := experiment.AsFloat(cell)
			if !ok {
				return nil, false
			}
			counts = append(counts, int64(count))
		}
		cm = append(cm, counts)
	}
	return cm, true
}
