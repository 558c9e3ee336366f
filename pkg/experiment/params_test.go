// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package experiment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParams(t *testing.T) {
	params := Params{"b": 2, "a": "x"}
	cloned := params.Clone()
	cloned["c"] = 3.0
	assert.Len(t, params, 2)
	assert.Equal(t, []string{"a", "b", "c"}, cloned.SortedKeys())
	assert.Equal(t, "{a=x, b=2}", params.String())

	merged := params.Merge(map[string]any{"b": 5}, map[string]any{"d": true})
	assert.Equal(t, Params{"a": "x", "b": 5, "d": true}, merged)
	assert.Equal(t, 2, params["b"])

	assert.Equal(t, Params{"a": "x"}, params.Without("b", "missing"))
	assert.NotNil(t, Params(nil).Clone())
}

func TestGetParamOr(t *testing.T) {
	params := Params{"int": 3, "float": 0.5, "whole_float": 4.0, "str": "foo", "nil": nil}

	v, err := GetParamOr(params, "int", 0)
	require.NoError(t, err)
	assert.Equal(t, 3, v)

	f, err := GetParamOr(params, "int", 0.0)
	require.NoError(t, err)
	assert.Equal(t, 3.0, f)

	v, err = GetParamOr(params, "whole_float", 0)
	require.NoError(t, err)
	assert.Equal(t, 4, v)

	_, err = GetParamOr(params, "float", 0)
	require.Error(t, err)

	s, err := GetParamOr(params, "missing", "default")
	require.NoError(t, err)
	assert.Equal(t, "default", s)

	s, err = GetParamOr(params, "nil", "default")
	require.NoError(t, err)
	assert.Equal(t, "default", s)

	_, err = GetParamOr(params, "str", false)
	require.Error(t, err)
}

func TestSortedKeys(t *testing.T) {
	assert.Equal(t, []string{"alpha", "mode"}, SortedKeys(SearchSpace{"mode": "max", "alpha": []any{0.1}}))
	assert.Equal(t, []string{"accuracy", "mIoU"}, SortedKeys(Measurements{"mIoU": 0.5, "accuracy": 0.7}))
	assert.Equal(t, []int{1, 2, 3}, SortedKeys(map[int]bool{3: true, 1: false, 2: true}))
	assert.Empty(t, SortedKeys(map[string]int(nil)))
}
