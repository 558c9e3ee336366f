// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package experiment

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/rameezrehman83/modular-semantic-segmentation/pkg/support/fsutil"
)

// SettingsPathSeparator separates the nested keys of a setting path, e.g. "net_config.num_classes".
const SettingsPathSeparator = "."

// ParseSettings applies settings -- typically the contents of a flag set by the user -- to the raw
// configuration raw, and returns the paths of the settings applied.
//
// The settings are a list separated by ";": e.g.: "evaluation_data.use_trainset=true;net_config.alpha=0.1".
// Each path is a list of keys separated by SettingsPathSeparator, and intermediary maps are created
// as needed.
//
// If the setting already has a value, the new value is parsed to the same type: e.g. if the current
// value is a float64, "1" becomes 1.0. For integer types, "_" is removed: it allows one to enter large
// numbers using it as a separator, like in Go. E.g.: 1_000_000 = 1000000.
// New settings, or settings whose current value is a list or a map, are parsed as YAML: "[1, 2]"
// becomes a list, "true" a bool and "cityscapes" a string.
//
// A setting can also be given as "file:settings_file.txt", in which case the file is read and each
// line is parsed as settings. Empty lines and lines starting with "#" are ignored.
func ParseSettings(raw map[string]any, settings string) (paramsSet []string, err error) {
	for _, setting := range strings.Split(settings, ";") {
		paramsSet, err = parseSetting(raw, setting, paramsSet)
		if err != nil {
			return
		}
	}
	return
}

func parseSetting(raw map[string]any, setting string, paramsSet []string) (newParamsSet []string, err error) {
	newParamsSet = paramsSet
	setting = strings.TrimSpace(setting)
	if setting == "" {
		return
	}
	if strings.HasPrefix(setting, "file:") {
		filePath := strings.TrimPrefix(setting, "file:")
		filePath, err = fsutil.ReplaceTildeInDir(filePath)
		if err != nil {
			return
		}
		var contents []byte
		contents, err = os.ReadFile(filePath)
		if err != nil {
			err = errors.Wrapf(err, "failed to read settings from file %q", filePath)
			return
		}
		for _, line := range strings.Split(string(contents), "\n") {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			for _, setting := range strings.Split(line, ";") {
				newParamsSet, err = parseSetting(raw, setting, newParamsSet)
				if err != nil {
					return
				}
			}
		}
		return
	}

	paramPath, valueStr, found := strings.Cut(setting, "=")
	if !found || paramPath == "" {
		err = errors.Errorf("can't parse setting %q: each setting requires the format \"<path>=<value>\"", setting)
		return
	}
	keys := strings.Split(paramPath, SettingsPathSeparator)
	parent := raw
	for ii, key := range keys[:len(keys)-1] {
		child, found := parent[key]
		if !found || child == nil {
			childMap := make(map[string]any)
			parent[key] = childMap
			parent = childMap
			continue
		}
		switch childMap := child.(type) {
		case map[string]any:
			parent = childMap
		case Params:
			parent = childMap
		default:
			err = errors.Errorf("can't set %q: %q holds a %T, not a map of settings",
				paramPath, strings.Join(keys[:ii+1], SettingsPathSeparator), child)
			return
		}
	}
	name := keys[len(keys)-1]
	var value any
	value, err = parseSettingValue(parent[name], valueStr)
	if err != nil {
		err = errors.Wrapf(err, "failed to parse value %q for setting %q (current value is %#v)", valueStr, paramPath, parent[name])
		return
	}
	parent[name] = value
	newParamsSet = append(newParamsSet, paramPath)
	return
}

// parseSettingValue parses valueStr to the type of current.
func parseSettingValue(current any, valueStr string) (value any, err error) {
	switch v := current.(type) {
	case int:
		err = json.Unmarshal([]byte(strings.ReplaceAll(valueStr, "_", "")), &v)
		value = v
	case int64:
		err = json.Unmarshal([]byte(strings.ReplaceAll(valueStr, "_", "")), &v)
		value = v
	case float64:
		err = json.Unmarshal([]byte(valueStr), &v)
		value = v
	case bool:
		err = json.Unmarshal([]byte(valueStr), &v)
		value = v
	case string:
		value = valueStr
	default:
		err = yaml.Unmarshal([]byte(valueStr), &value)
	}
	return
}
