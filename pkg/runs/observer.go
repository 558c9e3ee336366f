// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package runs records experiment runs: their configuration, captured output, run info and artifacts.
//
// An Observer is notified when a run starts, and returns a Run that is notified of its end.
// FileObserver stores each run in its own directory; NullObserver stores nothing.
package runs

import (
	"io"
	"time"

	"github.com/rameezrehman83/modular-semantic-segmentation/pkg/experiment"
)

// Status of a run.
type Status string

const (
	StatusRunning   Status = "RUNNING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

// RunStart describes a run being started.
type RunStart struct {
	// Experiment name, e.g. "dirichlet_fusion".
	Experiment string

	// Command run, e.g. "fit_and_evaluate".
	Command string

	// Config is the full configuration of the run.
	Config map[string]any

	StartTime time.Time
}

// Observer is notified of the start of runs.
type Observer interface {
	Started(start RunStart) (Run, error)
}

// Run is an experiment run being recorded.
type Run interface {
	// ID of the run, unique for the Observer.
	ID() string

	// Output where the output of the run should be copied to, to be stored with it.
	Output() io.Writer

	// AddArtifact stores a file produced by the run.
	AddArtifact(name string, data []byte) error

	// Completed records the successful end of the run, with its info.
	Completed(info *experiment.RunInfo) error

	// Failed records the failure of the run, with the info collected so far.
	Failed(info *experiment.RunInfo, runErr error) error
}

// NullObserver records nothing.
type NullObserver struct{}

// Started implements Observer.
func (NullObserver) Started(RunStart) (Run, error) { return nullRun{}, nil }

type nullRun struct{}

func (nullRun) ID() string                              { return "" }
func (nullRun) Output() io.Writer                       { return io.Discard }
func (nullRun) AddArtifact(string, []byte) error        { return nil }
func (nullRun) Completed(*experiment.RunInfo) error     { return nil }
func (nullRun) Failed(*experiment.RunInfo, error) error { return nil }
