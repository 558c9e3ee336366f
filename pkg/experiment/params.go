// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package experiment

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/exp/maps"
)

// Params holds the options of a model or a dataset: option name to value.
//
// Values usually come from YAML/JSON (so numbers may be int or float64, lists are []any) or from
// the "-set" flag. No validation is done here: the collaborators consuming the options decide
// what is valid.
type Params map[string]any

// Clone returns a shallow copy of params. Nested maps and slices are shared.
// It returns an empty (non-nil) Params if params is nil.
func (params Params) Clone() Params {
	cloned := make(Params, len(params))
	for key, value := range params {
		cloned[key] = value
	}
	return cloned
}

// Merge returns a copy of params with the values of others set on top, in order.
func (params Params) Merge(others ...map[string]any) Params {
	merged := params.Clone()
	for _, other := range others {
		for key, value := range other {
			merged[key] = value
		}
	}
	return merged
}

// SortedKeys returns the keys of params in alphabetical order.
func (params Params) SortedKeys() []string {
	return SortedKeys(params)
}

// SortedKeys returns the keys of m in increasing order.
func SortedKeys[K cmp.Ordered, V any](m map[K]V) []K {
	keys := maps.Keys(m)
	slices.Sort(keys)
	return keys
}

// Without returns a copy of params without the given keys.
func (params Params) Without(keys ...string) Params {
	cloned := params.Clone()
	for _, key := range keys {
		delete(cloned, key)
	}
	return cloned
}

// String pretty-prints params in key order, e.g. "{alpha=1, mode=max}".
func (params Params) String() string {
	parts := make([]string, 0, len(params))
	for _, key := range params.SortedKeys() {
		parts = append(parts, fmt.Sprintf("%s=%v", key, params[key]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// GetParamOr returns params[key] converted to T, or defaultValue if the key is not set or is nil.
//
// Numbers are converted between int and float types, since parsed configuration files don't preserve
// Go types. It returns an error if the value is set but can't be converted to T.
func GetParamOr[T any](params Params, key string, defaultValue T) (T, error) {
	valueAny, found := params[key]
	if !found || valueAny == nil {
		return defaultValue, nil
	}
	if value, ok := valueAny.(T); ok {
		return value, nil
	}
	var zero T
	switch any(zero).(type) {
	case int:
		if asInt, ok := toInt(valueAny); ok {
			return any(asInt).(T), nil
		}
	case int64:
		if asInt, ok := toInt(valueAny); ok {
			return any(int64(asInt)).(T), nil
		}
	case float64:
		if asFloat, ok := toFloat(valueAny); ok {
			return any(asFloat).(T), nil
		}
	case float32:
		if asFloat, ok := toFloat(valueAny); ok {
			return any(float32(asFloat)).(T), nil
		}
	}
	return zero, errors.Errorf("parameter %q has value %#v of type %T, which can't be converted to %T",
		key, valueAny, valueAny, zero)
}

func toInt(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case uint:
		return int(v), true
	case uint64:
		return int(v), true
	case float64:
		if v == float64(int(v)) {
			return int(v), true
		}
	case float32:
		if v == float32(int(v)) {
			return int(v), true
		}
	}
	return 0, false
}

// AsFloat converts any Go number to a float64, and returns false if value is not a number.
func AsFloat(value any) (float64, bool) {
	return toFloat(value)
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint64:
		return float64(v), true
	}
	return 0, false
}
