// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// dirichlet_fusion fits Dirichlet mixtures of pretrained segmentation experts, evaluates them and records
// the results of each run.
//
// The datasets, models and evaluators are linked in by blank imports of the packages registering them
// with the experiment package (see experiment.RegisterModel).
//
// Examples:
//
//	# Fit on the validation set and evaluate (the default command).
//	dirichlet_fusion --config=fusion.yaml
//
//	# Fit on the training set, overriding some configuration.
//	dirichlet_fusion fit_and_evaluate --config=fusion.yaml --use_trainset --set="net_config.num_classes=19"
//
//	# Test every configuration of "search_parameters".
//	dirichlet_fusion test_parameters --config=fusion.yaml --metric=mIoU
package main

import (
	"flag"
	"os"

	"k8s.io/klog/v2"
)

// ExperimentName used to record runs.
const ExperimentName = "dirichlet_fusion"

func main() {
	klog.InitFlags(nil)
	defer klog.Flush()
	if err := newRootCmd().Execute(); err != nil {
		klog.Errorf("Failed: %+v", err)
		klog.Flush()
		os.Exit(1)
	}
}

// goFlags are the Go flags (klog's) added to the command line.
var goFlags = flag.CommandLine
