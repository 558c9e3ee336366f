// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package commandline contains convenience UI tools to report experiments on the command line.
package commandline

import (
	"fmt"
	"io"
	"math"
	"reflect"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/rameezrehman83/modular-semantic-segmentation/pkg/experiment"
)

// FormatValue pretty-prints a parameter or measurement value: floats rounded to at most 4 decimal digits,
// integers with thousands separators.
func FormatValue(value any) string {
	switch v := value.(type) {
	case float64:
		return formatFloat(v)
	case float32:
		return formatFloat(float64(v))
	case int:
		return humanize.Comma(int64(v))
	case int64:
		return humanize.Comma(v)
	case nil:
		return "-"
	default:
		return fmt.Sprintf("%v", value)
	}
}

func formatFloat(v float64) string {
	rounded := math.Round(v*1e4) / 1e4
	if math.IsNaN(rounded) || math.IsInf(rounded, 0) {
		// Non-finite, or too large to be scaled.
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strconv.FormatFloat(rounded, 'f', -1, 64)
}

// ReportMeasurements writes a table with the measurements, in alphabetical order.
func ReportMeasurements(w io.Writer, measurements experiment.Measurements) error {
	table := newPlainTable(nil, lipgloss.Left, lipgloss.Right).Headers("Metric", "Value")
	for _, name := range experiment.SortedKeys(measurements) {
		table.Row(name, FormatValue(measurements[name]))
	}
	return render(w, "Measurements", table.String())
}

// ReportConfusionMatrix writes the confusion matrix, with labels in the rows and predictions in the columns.
// The diagonal (correct predictions) is highlighted by showing counts in bold.
func ReportConfusionMatrix(w io.Writer, confusionMatrix experiment.ConfusionMatrix) error {
	numClasses := len(confusionMatrix)
	headers := make([]string, 0, numClasses+1)
	headers = append(headers, `label \ prediction`)
	for ii := range numClasses {
		headers = append(headers, strconv.Itoa(ii))
	}
	table := newPlainTable(nil, lipgloss.Right).Headers(headers...)
	for label, counts := range confusionMatrix {
		row := make([]string, 0, len(counts)+1)
		row = append(row, strconv.Itoa(label))
		for prediction, count := range counts {
			cell := humanize.Comma(count)
			if prediction == label {
				cell = lipgloss.NewStyle().Bold(true).Render(cell)
			}
			row = append(row, cell)
		}
		table.Row(row...)
	}
	return render(w, "Confusion Matrix", table.String())
}

// ReportResults writes the results of a parameter search, one row per configuration tested.
//
// If metric is not empty, the row with the largest value of metric is highlighted.
func ReportResults(w io.Writer, results *experiment.Results, metric string) error {
	highlighted := make(map[int]bool)
	if values, found := results.Values[metric]; found {
		bestRow, bestValue := -1, 0.0
		for row, value := range values {
			asFloat, ok := experiment.AsFloat(value)
			if !ok {
				continue
			}
			if bestRow == -1 || asFloat > bestValue {
				bestRow, bestValue = row, asFloat
			}
		}
		if bestRow >= 0 {
			highlighted[bestRow] = true
		}
	}
	table := newPlainTable(highlighted, lipgloss.Right).Headers(results.Columns...)
	for row := range results.NumRows() {
		cells := make([]string, 0, len(results.Columns))
		for _, column := range results.Columns {
			cells = append(cells, FormatValue(results.Values[column][row]))
		}
		table.Row(cells...)
	}
	return render(w, fmt.Sprintf("Results (%s configurations)", humanize.Comma(int64(results.NumRows()))), table.String())
}

// ReportConfig writes a table with the flattened configuration: nested keys are joined by
// experiment.SettingsPathSeparator, so they can be used with the "-set" flag.
func ReportConfig(w io.Writer, config map[string]any) error {
	table := newPlainTable(nil, lipgloss.Left).Headers("Key", "Type", "Value")
	var addRows func(prefix string, m map[string]any)
	addRows = func(prefix string, m map[string]any) {
		for _, key := range experiment.SortedKeys(m) {
			value := m[key]
			if v := reflect.ValueOf(value); v.Kind() == reflect.Map && v.Type().Key().Kind() == reflect.String {
				nested := make(map[string]any, v.Len())
				for _, k := range v.MapKeys() {
					nested[k.String()] = v.MapIndex(k).Interface()
				}
				addRows(prefix+key+experiment.SettingsPathSeparator, nested)
				continue
			}
			table.Row(prefix+key, fmt.Sprintf("%T", value), fmt.Sprintf("%v", value))
		}
	}
	addRows("", config)
	return render(w, "Configuration", table.String())
}

// ReportRunInfo writes the tables for the known keys of info: measurements, confusion matrix and
// results. The results table highlights the row with the best value of metric, if given.
func ReportRunInfo(w io.Writer, info *experiment.RunInfo, metric string) error {
	for _, key := range info.Keys() {
		value, _ := info.Get(key)
		var err error
		switch v := value.(type) {
		case experiment.Measurements:
			err = ReportMeasurements(w, v)
		case experiment.ConfusionMatrix:
			err = ReportConfusionMatrix(w, v)
		case *experiment.Results:
			err = ReportResults(w, v, metric)
		default:
			_, err = fmt.Fprintf(w, "%s: %v\n", titleStyle.Render(key), v)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func render(w io.Writer, title, table string) error {
	_, err := fmt.Fprintf(w, "%s\n%s\n", titleStyle.Render(title), table)
	return err
}
