// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package log

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/pterm/pterm"
	"github.com/rs/zerolog"
	"github.com/walteh/nszconv/pkg/progress"
)

// 🎨 Display configuration
const (
	fileIndent    = 2  // spaces to indent job lines
	nameWidth     = 40 // base width for the relative path
	statusWidth   = 10 // width for the outcome word
	elapsedWidth  = 6  // width for the elapsed column
	maxDetailSize = 120
)

// 📊 JobStatus is the user-facing outcome of one file
type JobStatus int

const (
	JobConverted JobStatus = iota
	JobSkipped
	JobFailed
)

func (s JobStatus) String() string {
	switch s {
	case JobConverted:
		return "converted"
	case JobSkipped:
		return "skipped"
	case JobFailed:
		return "failed"
	default:
		return "unknown"
	}
}

func (s JobStatus) symbol() (string, color.Attribute) {
	switch s {
	case JobConverted:
		return "✓", color.FgGreen
	case JobSkipped:
		return "↷", color.FgBlue
	default:
		return "✗", color.FgRed
	}
}

// 🎯 JobEntry is one line of batch output
type JobEntry struct {
	Path    string // relative to the batch root
	Status  JobStatus
	Detail  string // where the source went, or why it failed
	Elapsed time.Duration
}

// 📊 Counts is the end-of-batch tally
type Counts struct {
	Converted int
	Skipped   int
	Failed    int
	Disposed  int
	Elapsed   time.Duration
	Failures  []JobEntry
}

// 🎯 Logger writes human status lines to the console and mirrors them to zerolog
type Logger struct {
	zlog    zerolog.Logger
	console io.Writer
	mu      sync.Mutex
	entries []JobEntry
}

// 🏭 New creates a new logger
func New(console io.Writer, zlog zerolog.Logger) *Logger {
	return &Logger{
		zlog:    zlog,
		console: console,
	}
}

// 🔑 contextKey is the type for context values
type contextKey struct{}

// 🎯 FromContext gets the logger from context
func FromContext(ctx context.Context) *Logger {
	logger, ok := ctx.Value(contextKey{}).(*Logger)
	if !ok {
		panic("logger not found in context")
	}
	return logger
}

// 🎯 NewContext adds the logger to context
func NewContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, l)
}

// 📝 formatJob formats a job line for display
func (l *Logger) formatJob(e JobEntry) string {
	sym, symColor := e.Status.symbol()

	elapsed := "-"
	if e.Elapsed > 0 {
		elapsed = progress.FormatElapsed(e.Elapsed)
	}

	detail := e.Detail
	if len(detail) > maxDetailSize {
		detail = detail[:maxDetailSize-1] + "…"
	}
	if detail != "" {
		detail = color.New(color.Faint).Sprint(detail)
	}

	line := fmt.Sprintf("%s%s %s %s %s  %s",
		strings.Repeat(" ", fileIndent),
		color.New(symColor).Sprint(sym),
		fmt.Sprintf("%-*s", nameWidth, e.Path),
		color.New(symColor).Sprint(fmt.Sprintf("%-*s", statusWidth, e.Status)),
		fmt.Sprintf("%*s", elapsedWidth, elapsed),
		detail)
	return strings.TrimRight(line, " ")
}

// 📝 LogJob prints a job line and records it for the summary
func (l *Logger) LogJob(ctx context.Context, e JobEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, e)

	fmt.Fprintln(l.console, l.formatJob(e))

	ev := l.zlog.Info()
	if e.Status == JobFailed {
		ev = l.zlog.Warn()
	}
	ev.Str("file", e.Path).
		Str("status", e.Status.String()).
		Dur("elapsed", e.Elapsed).
		Str("detail", e.Detail).
		Msg("job finished")
}

// Entries returns the job lines logged so far
func (l *Logger) Entries() []JobEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]JobEntry(nil), l.entries...)
}

// 📊 Summary prints the end-of-batch table, followed by the failures if any
func (l *Logger) Summary(c Counts) error {
	rows := pterm.TableData{
		{"outcome", "files"},
		{"converted", strconv.Itoa(c.Converted)},
		{"skipped", strconv.Itoa(c.Skipped)},
		{"failed", strconv.Itoa(c.Failed)},
		{"sources moved", strconv.Itoa(c.Disposed)},
		{"elapsed", progress.FormatElapsed(c.Elapsed)},
	}
	out, err := pterm.DefaultTable.WithHasHeader().WithData(rows).Srender()
	if err != nil {
		return err
	}

	if len(c.Failures) > 0 {
		fails := pterm.TableData{{"file", "reason"}}
		for _, f := range c.Failures {
			fails = append(fails, []string{f.Path, f.Detail})
		}
		ft, err := pterm.DefaultTable.WithHasHeader().WithData(fails).Srender()
		if err != nil {
			return err
		}
		out += "\n\n" + ft
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "\n%s\n", out)
	l.zlog.Info().
		Int("converted", c.Converted).
		Int("skipped", c.Skipped).
		Int("failed", c.Failed).
		Int("disposed", c.Disposed).
		Dur("elapsed", c.Elapsed).
		Msg("batch summary")
	return nil
}

// 📋 Table prints a two-column key/value table
func (l *Logger) Table(rows [][]string) error {
	out, err := pterm.DefaultTable.WithData(pterm.TableData(rows)).Srender()
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.console, out)
	return nil
}

// 📝 LogNewline logs a newline
func (l *Logger) LogNewline() {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.console)
}

// 📝 Header logs a header
func (l *Logger) Header(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	brand := color.New(color.Bold, color.FgCyan).Sprint("nszconv")
	fmt.Fprintf(l.console, "\n%s %s\n\n", brand, color.New(color.Faint).Sprint("• "+msg))
	l.zlog.Info().Msg(msg)
}

// 📝 Success logs a success message
func (l *Logger) Success(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "✅ %s\n", color.New(color.FgGreen).Sprint(msg))
	l.zlog.Info().Msg(msg)
}

// 📝 Warning logs a warning message
func (l *Logger) Warning(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "⚠️  %s\n", color.New(color.FgYellow).Sprint(msg))
	l.zlog.Warn().Msg(msg)
}

// 📝 Error logs an error message
func (l *Logger) Error(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "❌ %s\n", color.New(color.FgRed).Sprint(msg))
	l.zlog.Error().Msg(msg)
}

// 📝 Info logs an info message
func (l *Logger) Info(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "ℹ️  %s\n", color.New(color.FgCyan).Sprint(msg))
	l.zlog.Info().Msg(msg)
}

// 📝 Infof logs a formatted info message
func (l *Logger) Infof(format string, args ...interface{}) {
	l.Info(fmt.Sprintf(format, args...))
}

// 📝 Warningf logs a formatted warning message
func (l *Logger) Warningf(format string, args ...interface{}) {
	l.Warning(fmt.Sprintf(format, args...))
}

// 📝 Errorf logs a formatted error message
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.Error(fmt.Sprintf(format, args...))
}

// 📝 Successf logs a formatted success message
func (l *Logger) Successf(format string, args ...interface{}) {
	l.Success(fmt.Sprintf(format, args...))
}
