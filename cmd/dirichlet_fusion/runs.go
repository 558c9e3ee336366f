// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/rameezrehman83/modular-semantic-segmentation/pkg/runs"
	"github.com/rameezrehman83/modular-semantic-segmentation/pkg/support/fsutil"
	"github.com/rameezrehman83/modular-semantic-segmentation/ui/commandline"
)

// CommandRuns lists or inspects the recorded runs.
const CommandRuns = "runs"

func newRunsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   CommandRuns + " [run_id...]",
		Short: "List the recorded runs, or report the details of the given ones",
		RunE: func(cmd *cobra.Command, runIDs []string) error {
			_, raw, err := loadConfig(opts.configFile, opts.settings, cmd.Flags())
			if err != nil {
				return err
			}
			runsDir, _ := raw[KeyRunsDir].(string)
			runsDir, err = fsutil.ReplaceTildeInDir(runsDir)
			if err != nil {
				return err
			}
			now := time.Now()
			if len(runIDs) == 0 {
				records, err := runs.ListRuns(runsDir)
				if err != nil {
					return err
				}
				return commandline.ReportRuns(cmd.OutOrStdout(), records, now)
			}
			for _, runID := range runIDs {
				runDir := filepath.Join(runsDir, runID)
				record, err := runs.ReadRunRecord(runDir)
				if err != nil {
					return err
				}
				config, err := runs.ReadRunConfig(runDir)
				if err != nil {
					klog.Warningf("Run %s: %v", runID, err)
				}
				var info map[string]any
				if record.Status != runs.StatusRunning {
					info, err = runs.ReadRunInfo(runDir)
					if err != nil {
						klog.Warningf("Run %s: %v", runID, err)
					}
				}
				if err = commandline.ReportRun(cmd.OutOrStdout(), record, config, info, opts.metric, now); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
