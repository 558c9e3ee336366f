// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package commandline

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/muesli/termenv"
	"github.com/schollz/progressbar/v3"

	"github.com/rameezrehman83/modular-semantic-segmentation/pkg/experiment"
)

// ProgressbarStyle to use. Defaults to the ASCII version.
// Consider "progressbar.ThemeUnicode" for a prettier version.
// But it requires some of the graphical symbols to be supported.
var ProgressbarStyle = progressbar.ThemeASCII

// SearchProgress displays a progress bar of the configurations tested by a parameter search.
// It implements experiment.ProgressReporter.
type SearchProgress struct {
	w       io.Writer
	termenv *termenv.Output
	bar     *progressbar.ProgressBar
	done    int
	total   int

	// Metric, if set, is the measurement displayed along the bar, with its best (largest) value so far.
	Metric string
	best   *float64
}

var _ experiment.ProgressReporter = (*SearchProgress)(nil)

// NewSearchProgress creates a SearchProgress writing to w, usually os.Stdout.
func NewSearchProgress(w io.Writer) *SearchProgress {
	return &SearchProgress{w: w, termenv: termenv.NewOutput(w)}
}

func (p *SearchProgress) isTerminal() bool {
	return p.termenv.Profile != termenv.Ascii
}

// Start implements experiment.ProgressReporter.
func (p *SearchProgress) Start(total int) {
	p.total = total
	p.done = 0
	p.best = nil
	isTerminal := p.isTerminal()
	if isTerminal {
		p.termenv.HideCursor()
	}
	p.bar = progressbar.NewOptions(total,
		progressbar.OptionSetDescription(p.description()),
		progressbar.OptionSetWriter(p.w),
		progressbar.OptionUseANSICodes(isTerminal),
		progressbar.OptionEnableColorCodes(isTerminal),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("configs"),
		progressbar.OptionSetTheme(ProgressbarStyle),
	)
	_ = p.bar.RenderBlank()
}

// Done implements experiment.ProgressReporter.
func (p *SearchProgress) Done(_ experiment.Params, measurements experiment.Measurements) {
	if p.bar == nil {
		return
	}
	p.done++
	if p.Metric != "" {
		if value, ok := experiment.AsFloat(measurements[p.Metric]); ok && (p.best == nil || value > *p.best) {
			p.best = &value
		}
	}
	p.bar.Describe(p.description())
	_ = p.bar.Add(1)
}

// Finish implements experiment.ProgressReporter.
func (p *SearchProgress) Finish() {
	if p.bar == nil {
		return
	}
	_ = p.bar.Finish()
	_, _ = fmt.Fprintln(p.w)
	if p.isTerminal() {
		p.termenv.ShowCursor()
	}
	p.bar = nil
}

func (p *SearchProgress) description() string {
	parts := []string{fmt.Sprintf("Configurations %s of %s", humanize.Comma(int64(p.done)), humanize.Comma(int64(p.total)))}
	if p.Metric != "" && p.best != nil {
		parts = append(parts, fmt.Sprintf("best %s=%s", p.Metric, humanize.FtoaWithDigits(*p.best, 4)))
	}
	return strings.Join(parts, ", ")
}
