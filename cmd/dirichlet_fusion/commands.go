// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"io"
	"time"

	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/rameezrehman83/modular-semantic-segmentation/pkg/experiment"
	"github.com/rameezrehman83/modular-semantic-segmentation/pkg/runs"
	"github.com/rameezrehman83/modular-semantic-segmentation/ui/commandline"
)

// Names of the commands.
const (
	CommandFitAndEvaluate = "fit_and_evaluate"
	CommandTestParameters = "test_parameters"
	CommandPrintConfig    = "print_config"
)

// ResultsArtifactName is the artifact with the results table of a parameter search, in CSV format.
const ResultsArtifactName = "results.csv"

type options struct {
	configFile string
	settings   string
	noObserver bool
	metric     string
}

// newRootCmd creates the root command: it runs fit_and_evaluate if no command is given.
func newRootCmd() *cobra.Command {
	opts := &options{}
	rootCmd := &cobra.Command{
		Use:   ExperimentName,
		Short: "Fit and evaluate Dirichlet mixtures of pretrained experts",
		Long: `Fits a Dirichlet mixture on top of pretrained experts and evaluates it against the validation data.

The configuration is read from the --config YAML file, overridden by environment variables
(` + EnvPrefix + `<KEY>, with nested keys separated by "__"), by the flags and finally by --set.

Without a command, ` + CommandFitAndEvaluate + ` is run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCommand(cmd, opts, CommandFitAndEvaluate, (*experiment.Runner).FitAndEvaluate)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "YAML configuration file.")
	flags.StringVar(&opts.settings, "set", "",
		`Settings overriding the configuration. It should be a list of elements "key=value" separated by ";". `+
			`Nested keys are separated by "`+experiment.SettingsPathSeparator+`", e.g. "net_config.num_classes=19". `+
			`It can also be given an entry like "file:settings_file.txt", in which case the file is read and each line `+
			`parsed as settings; lines starting with "#" are comments.`)
	flags.String("starting_weights", "", "Pretrained weights of the experts, passed to the weight importer.")
	flags.String("dataset", "", "Name of the dataset to fit and evaluate on.")
	flags.Bool("use_trainset", false, "Fit on the training split instead of the validation split. Evaluation is always on the validation split.")
	flags.String("runs_dir", "", "Directory where runs are recorded. Defaults to "+DefaultRunsDir+".")
	flags.String("model", "", "Registered name of the model to use. Defaults to "+experiment.DefaultModelName+".")
	flags.String("evaluator", "", "Registered name of the evaluator to use. Defaults to "+experiment.DefaultEvaluatorName+".")
	flags.BoolVar(&opts.noObserver, "no_observer", false, "Don't record the run.")
	flags.StringVar(&opts.metric, "metric", "", "Measurement to follow during a parameter search, and to highlight its best result.")
	flags.AddGoFlagSet(goFlags)
	must.M(rootCmd.MarkPersistentFlagFilename("config", "yaml", "yml"))

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   CommandFitAndEvaluate,
			Short: "Fit the mixture on top of the starting weights and evaluate it (default)",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runCommand(cmd, opts, CommandFitAndEvaluate, (*experiment.Runner).FitAndEvaluate)
			},
		},
		&cobra.Command{
			Use:     CommandTestParameters,
			Aliases: []string{"parameter_search"},
			Short:   "Fit every configuration of search_parameters and collect their measurements",
			Args:    cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runCommand(cmd, opts, CommandTestParameters, (*experiment.Runner).SearchParameters)
			},
		},
		&cobra.Command{
			Use:   CommandPrintConfig,
			Short: "Print the configuration after all overrides are applied",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				_, raw, err := loadConfig(opts.configFile, opts.settings, cmd.Flags())
				if err != nil {
					return err
				}
				return commandline.ReportConfig(cmd.OutOrStdout(), raw)
			},
		},
		newRunsCmd(opts),
	)
	return rootCmd
}

// runCommand loads the configuration and runs one of the commands of the experiment.Runner, recording the run.
func runCommand(cmd *cobra.Command, opts *options, name string, command func(*experiment.Runner, *experiment.Config) error) error {
	cfg, raw, err := loadConfig(opts.configFile, opts.settings, cmd.Flags())
	if err != nil {
		return err
	}

	var observer runs.Observer = runs.NullObserver{}
	if !opts.noObserver {
		runsDir, _ := raw[KeyRunsDir].(string)
		observer, err = runs.NewFileObserver(runsDir)
		if err != nil {
			return err
		}
	}
	startTime := time.Now()
	run, err := observer.Started(runs.RunStart{
		Experiment: ExperimentName,
		Command:    name,
		Config:     cfg.AsMap(),
		StartTime:  startTime,
	})
	if err != nil {
		return errors.WithMessage(err, "failed to start recording the run")
	}
	if run.ID() != "" {
		klog.Infof("Run %s started: %s", run.ID(), name)
	}

	// Everything printed, and the logs, are also captured with the run.
	stdout := io.MultiWriter(cmd.OutOrStdout(), run.Output())
	defer teeLogs(run.Output(), goFlags)()

	info := experiment.NewRunInfo()
	err = runWithRunner(cfg, info, stdout, opts.metric, command)
	if err == nil {
		err = reportAndSaveResults(stdout, run, info, opts.metric)
	}
	if err != nil {
		if failedErr := run.Failed(info, err); failedErr != nil {
			klog.Errorf("Failed to record failure of run %s: %+v", run.ID(), failedErr)
		}
		return err
	}
	klog.Infof("%s finished in %s", name, commandline.FormatDuration(time.Since(startTime)))
	return run.Completed(info)
}

func runWithRunner(cfg *experiment.Config, info *experiment.RunInfo, stdout io.Writer, metric string,
	command func(*experiment.Runner, *experiment.Config) error) error {
	runner, err := experiment.NewRunnerFromRegistry(cfg, info)
	if err != nil {
		return err
	}
	progress := commandline.NewSearchProgress(stdout)
	progress.Metric = metric
	runner.Progress = progress
	return command(runner, cfg)
}

func reportAndSaveResults(stdout io.Writer, run runs.Run, info *experiment.RunInfo, metric string) error {
	if err := commandline.ReportRunInfo(stdout, info, metric); err != nil {
		return err
	}
	value, found := info.Get(experiment.InfoResults)
	if !found {
		return nil
	}
	var buf bytes.Buffer
	if err := value.(*experiment.Results).WriteCSV(&buf); err != nil {
		return err
	}
	return run.AddArtifact(ResultsArtifactName, buf.Bytes())
}
