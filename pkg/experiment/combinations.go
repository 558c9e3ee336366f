// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package experiment

import (
	"reflect"
)

// SearchSpace maps a configuration key to the list of values to try for it.
// A value that is not a list is taken as the only value for its key.
type SearchSpace map[string]any

// Candidates returns the values to try for key, or nil if key is not in the search space.
func (search SearchSpace) Candidates(key string) []any {
	value, found := search[key]
	if !found {
		return nil
	}
	if value == nil {
		return []any{nil}
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return []any{value}
	}
	candidates := make([]any, rv.Len())
	for ii := range candidates {
		candidates[ii] = rv.Index(ii).Interface()
	}
	return candidates
}

// Size is the number of configurations in the search space.
func (search SearchSpace) Size() int {
	size := 1
	for key := range search {
		size *= len(search.Candidates(key))
	}
	return size
}

// ParameterCombinations is the default Combinator: it returns one configuration for each element
// of the cartesian product of the search space, each built on top of a copy of base.
//
// Keys are iterated in alphabetical order, and the last key varies fastest. So the order of the
// configurations is deterministic.
//
// A key with an empty list of values yields no configurations.
func ParameterCombinations(search SearchSpace, base Params) ([]Params, error) {
	keys := SortedKeys(search)
	candidates := make([][]any, len(keys))
	for ii, key := range keys {
		candidates[ii] = search.Candidates(key)
	}
	total := search.Size()
	configs := make([]Params, 0, total)
	indices := make([]int, len(keys))
	for range total {
		config := base.Clone()
		for ii, key := range keys {
			config[key] = candidates[ii][indices[ii]]
		}
		configs = append(configs, config)

		// Increment the mixed-radix counter, last key first.
		for ii := len(indices) - 1; ii >= 0; ii-- {
			indices[ii]++
			if indices[ii] < len(candidates[ii]) {
				break
			}
			indices[ii] = 0
		}
	}
	return configs, nil
}
