// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package runs

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
	"k8s.io/klog/v2"

	"github.com/rameezrehman83/modular-semantic-segmentation/pkg/experiment"
	"github.com/rameezrehman83/modular-semantic-segmentation/pkg/support/fsutil"
)

// Files written in the directory of each run by FileObserver.
const (
	ConfigFileName = "config.yaml"
	RunFileName    = "run.json"
	InfoFileName   = "info.json"
	OutputFileName = "cout.txt"
)

// RunRecord is the contents of the RunFileName file.
type RunRecord struct {
	ID         string     `json:"id"`
	Experiment string     `json:"experiment"`
	Command    string     `json:"command"`
	Status     Status     `json:"status"`
	Host       string     `json:"host"`
	StartTime  time.Time  `json:"start_time"`
	StopTime   *time.Time `json:"stop_time,omitempty"`
	Artifacts  []string   `json:"artifacts,omitempty"`
	FailTrace  string     `json:"fail_trace,omitempty"`
}

// FileObserver stores each run in a directory named after its id, under BaseDir.
type FileObserver struct {
	BaseDir string

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// NewFileObserver returns a FileObserver storing runs under baseDir, which is created if needed.
// A "~" prefix in baseDir is replaced by the user's home directory.
func NewFileObserver(baseDir string) (*FileObserver, error) {
	baseDir, err := fsutil.ReplaceTildeInDir(baseDir)
	if err != nil {
		return nil, err
	}
	if err = os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create runs directory %q", baseDir)
	}
	return &FileObserver{BaseDir: baseDir, Now: time.Now}, nil
}

// Started implements Observer: it creates the run directory and writes its configuration.
func (o *FileObserver) Started(start RunStart) (Run, error) {
	host, err := os.Hostname()
	if err != nil {
		klog.Warningf("Failed to get hostname: %v", err)
	}
	if start.StartTime.IsZero() {
		start.StartTime = o.now()
	}
	r := &fileRun{
		observer: o,
		record: RunRecord{
			ID:         uuid.NewString(),
			Experiment: start.Experiment,
			Command:    start.Command,
			Status:     StatusRunning,
			Host:       host,
			StartTime:  start.StartTime,
		},
		output: &CapturedOutput{},
	}
	r.dir = filepath.Join(o.BaseDir, r.record.ID)
	if err = os.MkdirAll(r.dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create run directory %q", r.dir)
	}
	configYAML, err := yaml.Marshal(start.Config)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode run configuration")
	}
	if err = r.writeFile(ConfigFileName, configYAML); err != nil {
		return nil, err
	}
	if err = r.writeRecord(); err != nil {
		return nil, err
	}
	klog.V(1).Infof("Recording run %s in %q", r.record.ID, r.dir)
	return r, nil
}

func (o *FileObserver) now() time.Time {
	if o.Now == nil {
		return time.Now()
	}
	return o.Now()
}

// ReadRunRecord reads the RunRecord of the run stored in dir.
func ReadRunRecord(dir string) (*RunRecord, error) {
	data, err := os.ReadFile(filepath.Join(dir, RunFileName))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read run record in %q", dir)
	}
	record := &RunRecord{}
	if err = json.Unmarshal(data, record); err != nil {
		return nil, errors.Wrapf(err, "failed to parse run record in %q", dir)
	}
	return record, nil
}

type fileRun struct {
	observer *FileObserver
	dir      string
	record   RunRecord
	output   *CapturedOutput
}

// Dir returns the directory where the run is stored.
func (r *fileRun) Dir() string { return r.dir }

func (r *fileRun) ID() string { return r.record.ID }

func (r *fileRun) Output() io.Writer { return r.output }

func (r *fileRun) AddArtifact(name string, data []byte) error {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") ||
		name == ConfigFileName || name == RunFileName || name == InfoFileName || name == OutputFileName {
		return errors.Errorf("invalid artifact name %q for run %s", name, r.record.ID)
	}
	if err := r.writeFile(name, data); err != nil {
		return err
	}
	r.record.Artifacts = append(r.record.Artifacts, name)
	return r.writeRecord()
}

func (r *fileRun) Completed(info *experiment.RunInfo) error {
	return r.end(StatusCompleted, info, "")
}

func (r *fileRun) Failed(info *experiment.RunInfo, runErr error) error {
	var trace string
	if runErr != nil {
		trace = strings.TrimSpace(fmt.Sprintf("%+v", runErr))
	}
	return r.end(StatusFailed, info, trace)
}

func (r *fileRun) end(status Status, info *experiment.RunInfo, failTrace string) error {
	if info == nil {
		info = experiment.NewRunInfo()
	}
	// The status is recorded even if the info or the output can't be saved, and the first
	// such error is returned.
	var saveErr error
	infoJSON, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		saveErr = errors.Wrapf(err, "failed to encode info of run %s", r.record.ID)
	} else {
		saveErr = r.writeFile(InfoFileName, infoJSON)
	}
	if err = r.writeFile(OutputFileName, []byte(r.output.String())); err != nil && saveErr == nil {
		saveErr = err
	}
	stopTime := r.observer.now()
	r.record.Status = status
	r.record.StopTime = &stopTime
	r.record.FailTrace = failTrace
	if err = r.writeRecord(); err != nil {
		if saveErr != nil {
			klog.Warningf("Failed to save run %s: %+v", r.record.ID, saveErr)
		}
		return err
	}
	return saveErr
}

func (r *fileRun) writeRecord() error {
	data, err := json.MarshalIndent(&r.record, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "failed to encode record of run %s", r.record.ID)
	}
	return r.writeFile(RunFileName, data)
}

func (r *fileRun) writeFile(name string, data []byte) error {
	return fsutil.WriteFileAtomic(filepath.Join(r.dir, name), data, 0o644)
}

// ListRuns reads the records of all runs stored under baseDir, sorted by start time.
// Directories without a valid run record are skipped.
func ListRuns(baseDir string) ([]*RunRecord, error) {
	baseDir, err := fsutil.ReplaceTildeInDir(baseDir)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(baseDir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list runs in %q", baseDir)
	}
	var records []*RunRecord
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		record, err := ReadRunRecord(filepath.Join(baseDir, entry.Name()))
		if err != nil {
			klog.V(1).Infof("Skipping %q: %v", entry.Name(), err)
			continue
		}
		records = append(records, record)
	}
	slices.SortFunc(records, func(a, b *RunRecord) int {
		if c := a.StartTime.Compare(b.StartTime); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return records, nil
}

// ReadRunInfo reads the info stored at the end of the run stored in dir.
func ReadRunInfo(dir string) (map[string]any, error) {
	data, err := os.ReadFile(filepath.Join(dir, InfoFileName))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read run info in %q", dir)
	}
	info := make(map[string]any)
	if err = json.Unmarshal(data, &info); err != nil {
		return nil, errors.Wrapf(err, "failed to parse run info in %q", dir)
	}
	return info, nil
}

// ReadRunConfig reads the configuration of the run stored in dir.
func ReadRunConfig(dir string) (map[string]any, error) {
	data, err := os.ReadFile(filepath.Join(dir, ConfigFileName))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read run configuration in %q", dir)
	}
	config := make(map[string]any)
	if err = yaml.Unmarshal(data, &config); err != nil {
		return nil, errors.Wrapf(err, "failed to parse run configuration in %q", dir)
	}
	return config, nil
}
