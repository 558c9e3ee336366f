// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package experiment

import "github.com/pkg/errors"

var (
	// ErrMissingConfig is returned when a required configuration key is not set.
	ErrMissingConfig = errors.New("missing configuration")

	// ErrEmptySearchSpace is returned when a parameter search has no configuration to test.
	ErrEmptySearchSpace = errors.New("empty search space")

	// ErrMismatchedResultKeys is returned when the records of a parameter search don't share the same keys.
	ErrMismatchedResultKeys = errors.New("result records have different keys")

	// ErrUnknownCollaborator is returned when a dataset, model, evaluator or weight importer name is not registered.
	ErrUnknownCollaborator = errors.New("unknown collaborator")
)
