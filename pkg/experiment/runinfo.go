// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package experiment

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"reflect"
	"slices"
	"strconv"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/pkg/errors"
)

// Keys written to RunInfo by the commands.
const (
	InfoResults         = "results"
	InfoMeasurements    = "measurements"
	InfoConfusionMatrix = "confusion_matrix"
	InfoDirichletParams = "dirichlet_params"
)

// RunInfo accumulates the outputs of an experiment run, to be stored by an observer at the end of the run.
//
// The zero value is ready to use. It is not safe for concurrent use.
type RunInfo struct {
	values map[string]any
	order  []string
}

// NewRunInfo returns an empty RunInfo.
func NewRunInfo() *RunInfo {
	return &RunInfo{}
}

// Set key to value, replacing any previous value.
func (info *RunInfo) Set(key string, value any) {
	if info.values == nil {
		info.values = make(map[string]any)
	}
	if _, found := info.values[key]; !found {
		info.order = append(info.order, key)
	}
	info.values[key] = value
}

// Get returns the value for key, and whether it was set.
func (info *RunInfo) Get(key string) (value any, found bool) {
	value, found = info.values[key]
	return
}

// Keys returns the keys set, in the order they were first set.
func (info *RunInfo) Keys() []string {
	return slices.Clone(info.order)
}

// Len returns the number of keys set.
func (info *RunInfo) Len() int {
	return len(info.order)
}

// MarshalJSON implements json.Marshaler.
//
// JSON has no representation for non-finite floats, common in measurements (e.g. the IoU of a
// class absent from the data is NaN), so they are written as the strings "NaN", "+Inf" and "-Inf".
func (info *RunInfo) MarshalJSON() ([]byte, error) {
	if info.values == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(jsonFinite(info.values))
}

// jsonFinite returns value with the non-finite floats in it, at any depth of maps, slices and
// pointers, replaced by strings. Values without non-finite floats are returned unchanged.
func jsonFinite(value any) any {
	if results, ok := value.(*Results); ok && results != nil {
		return jsonFinite(results.Values)
	}
	converted, changed := jsonFiniteValue(reflect.ValueOf(value))
	if !changed {
		return value
	}
	return converted
}

func jsonFiniteValue(v reflect.Value) (any, bool) {
	switch v.Kind() {
	case reflect.Float32, reflect.Float64:
		f := v.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return strconv.FormatFloat(f, 'g', -1, 64), true
		}
	case reflect.Interface, reflect.Pointer:
		if !v.IsNil() {
			return jsonFiniteValue(v.Elem())
		}
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			break
		}
		converted := make(map[string]any, v.Len())
		changed := false
		iter := v.MapRange()
		for iter.Next() {
			elem, elemChanged := jsonFiniteValue(iter.Value())
			if !elemChanged {
				elem = iter.Value().Interface()
			}
			converted[iter.Key().String()] = elem
			changed = changed || elemChanged
		}
		if changed {
			return converted, true
		}
	case reflect.Slice, reflect.Array:
		if v.Kind() == reflect.Slice && v.IsNil() {
			break
		}
		converted := make([]any, v.Len())
		changed := false
		for ii := range v.Len() {
			elem, elemChanged := jsonFiniteValue(v.Index(ii))
			if !elemChanged {
				elem = v.Index(ii).Interface()
			}
			converted[ii] = elem
			changed = changed || elemChanged
		}
		if changed {
			return converted, true
		}
	}
	return nil, false
}

// Record is the result of testing one configuration: its parameters and its measurements.
type Record map[string]any

// NewRecord merges the parameters and the measurements into one Record.
// Measurements take precedence over parameters with the same name.
func NewRecord(params Params, measurements Measurements) Record {
	record := make(Record, len(params)+len(measurements))
	for key, value := range params {
		record[key] = value
	}
	for key, value := range measurements {
		record[key] = value
	}
	return record
}

// Results is a columnar table of Records: for each column (key) the values of each record, in record order.
type Results struct {
	// Columns in alphabetical order.
	Columns []string

	// Values maps each column to its values, one per record.
	Values map[string][]any
}

// ResultsTable converts the records, which must all have the same keys, into a columnar Results table.
//
// It returns ErrMismatchedResultKeys if the records don't share the same keys.
func ResultsTable(records []Record) (*Results, error) {
	results := &Results{Values: make(map[string][]any)}
	if len(records) == 0 {
		return results, nil
	}
	results.Columns = SortedKeys(records[0])
	for _, column := range results.Columns {
		results.Values[column] = make([]any, 0, len(records))
	}
	for recordIdx, record := range records {
		if len(record) != len(results.Columns) {
			return nil, errors.Wrapf(ErrMismatchedResultKeys, "record #%d has keys %v, record #0 has keys %v",
				recordIdx, SortedKeys(record), results.Columns)
		}
		for _, column := range results.Columns {
			value, found := record[column]
			if !found {
				return nil, errors.Wrapf(ErrMismatchedResultKeys, "record #%d is missing key %q", recordIdx, column)
			}
			results.Values[column] = append(results.Values[column], value)
		}
	}
	return results, nil
}

// NumRows returns the number of records in the table.
func (r *Results) NumRows() int {
	if len(r.Columns) == 0 {
		return 0
	}
	return len(r.Values[r.Columns[0]])
}

// MarshalJSON implements json.Marshaler: the table is written as an object mapping each column to its values.
func (r *Results) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Values)
}

// DataFrame converts the results to a dataframe.DataFrame, one row per record.
//
// Columns where all values are numbers become float columns, booleans become bool columns and
// everything else is converted to strings.
func (r *Results) DataFrame() dataframe.DataFrame {
	return r.dataFrame(false)
}

// dataFrame converts the results to a dataframe. If exactFloats is set, float columns are
// converted to strings holding the shortest representation that parses back to the same value,
// since gota formats Float series with 6 fixed decimal digits.
func (r *Results) dataFrame(exactFloats bool) dataframe.DataFrame {
	columns := make([]series.Series, 0, len(r.Columns))
	for _, column := range r.Columns {
		columns = append(columns, toSeries(column, r.Values[column], exactFloats))
	}
	return dataframe.New(columns...)
}

// WriteCSV writes the results as a CSV table, with a header row.
// Floats are written with as many digits as needed to be parsed back exactly, e.g. "1e-07".
func (r *Results) WriteCSV(w io.Writer) error {
	if len(r.Columns) == 0 {
		return nil
	}
	df := r.dataFrame(true)
	if df.Err != nil {
		return errors.Wrap(df.Err, "failed to build results dataframe")
	}
	return errors.Wrap(df.WriteCSV(w), "failed to write results as CSV")
}

func toSeries(name string, values []any, exactFloats bool) series.Series {
	allFloats, allBools := true, true
	for _, value := range values {
		if _, ok := toFloat(value); !ok {
			allFloats = false
		}
		if _, ok := value.(bool); !ok {
			allBools = false
		}
	}
	switch {
	case allFloats && exactFloats:
		strs := make([]string, len(values))
		for ii, value := range values {
			f, _ := toFloat(value)
			strs[ii] = strconv.FormatFloat(f, 'g', -1, 64)
		}
		return series.New(strs, series.String, name)
	case allFloats:
		floats := make([]float64, len(values))
		for ii, value := range values {
			floats[ii], _ = toFloat(value)
		}
		return series.New(floats, series.Float, name)
	case allBools:
		bools := make([]bool, len(values))
		for ii, value := range values {
			bools[ii] = value.(bool)
		}
		return series.New(bools, series.Bool, name)
	default:
		strs := make([]string, len(values))
		for ii, value := range values {
			strs[ii] = fmt.Sprintf("%v", value)
		}
		return series.New(strs, series.String, name)
	}
}
