// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"flag"
	"io"
	"os"
	"strconv"

	"k8s.io/klog/v2"
)

// teeLogs copies the klog output to w, besides stderr, until the returned function is called.
//
// klog has no getter for its "logtostderr" setting, so its current value is read from the flag
// registered in flags by klog.InitFlags. If it isn't registered, klog's default (true) is assumed.
func teeLogs(w io.Writer, flags *flag.FlagSet) (restore func()) {
	toStderr := true
	if f := flags.Lookup("logtostderr"); f != nil {
		if value, err := strconv.ParseBool(f.Value.String()); err == nil {
			toStderr = value
		}
	}
	klog.LogToStderr(false)
	klog.SetOutput(io.MultiWriter(os.Stderr, w))
	return func() {
		klog.Flush()
		klog.SetOutput(os.Stderr)
		klog.LogToStderr(toStderr)
	}
}
