// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package runs

import (
	"bytes"
	"strings"
	"sync"
)

// ApplyBackspacesAndLinefeeds interprets the control characters progress bars use to redraw a line:
// "\b" moves the cursor one character back and "\r" moves it to the start of the line, and the following
// characters overwrite what was there. A "\r" that is the very last character is kept, since the line
// it starts is not written yet.
func ApplyBackspacesAndLinefeeds(text string) string {
	lines := strings.Split(text, "\n")
	for lineIdx, line := range lines {
		runes := []rune(line)
		chars := make([]rune, 0, len(runes))
		cursor := 0
		isLastLine := lineIdx == len(lines)-1
		for runeIdx, r := range runes {
			isLastRune := isLastLine && runeIdx == len(runes)-1
			switch {
			case r == '\r' && !isLastRune:
				cursor = 0
			case r == '\b':
				cursor = max(0, cursor-1)
			default:
				if r == '\r' {
					cursor = len(chars)
				}
				if cursor == len(chars) {
					chars = append(chars, r)
				} else {
					chars[cursor] = r
				}
				cursor++
			}
		}
		lines[lineIdx] = string(chars)
	}
	return strings.Join(lines, "\n")
}

// CapturedOutput is an io.Writer that keeps everything written to it, to be stored with the run.
// It is safe for concurrent use.
type CapturedOutput struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

// Write implements io.Writer.
func (c *CapturedOutput) Write(data []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.Write(data)
}

// Raw returns everything written so far.
func (c *CapturedOutput) Raw() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.String()
}

// String returns everything written so far, with progress bar redraws resolved by ApplyBackspacesAndLinefeeds.
func (c *CapturedOutput) String() string {
	return ApplyBackspacesAndLinefeeds(c.Raw())
}
