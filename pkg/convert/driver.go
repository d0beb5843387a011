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

// Package convert drives the external converter for a single file and
// classifies how it ended.
package convert

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/walteh/nszconv/pkg/locate"
	"github.com/walteh/nszconv/pkg/progress"
	"github.com/walteh/nszconv/pkg/provision"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/errgroup"
)

// 📊 Kind is the class of a conversion outcome
type Kind int

const (
	Success Kind = iota
	AlreadyDone
	Failed
)

func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case AlreadyDone:
		return "already done"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// ❌ FailReason says why a conversion failed
type FailReason int

const (
	FailNone   FailReason = iota
	FailStart             // the process could not be started at all
	FailDecode            // the process ran and exited nonzero
	FailOutput            // exit 0 but the output file is missing
)

func (r FailReason) String() string {
	switch r {
	case FailStart:
		return "start"
	case FailDecode:
		return "decode"
	case FailOutput:
		return "output"
	default:
		return "none"
	}
}

// 📦 Outcome is the result of ConvertOne. Failures are values, never panics.
type Outcome struct {
	Kind     Kind
	Reason   FailReason
	Message  string
	ExitCode int
	Echoed   int      // progress lines passed through in suppressed mode
	Tail     []string // last non-progress lines, for failure reports
	Elapsed  time.Duration
	Err      error
}

// 📄 Request is one file to convert
type Request struct {
	Input  string
	Output string
	Native bool // let the converter draw its own progress on the terminal
}

// 🔧 Options configures the driver
type Options struct {
	DecodeFlag string
	Marker     string
	Stdout     io.Writer          // progress lines, or the converter's stdout in native mode
	Stderr     io.Writer          // converter's stderr in native mode
	Progress   *progress.Reporter // nil disables the elapsed indicator; unused in native mode
	Stat       func(string) (os.FileInfo, error)
}

// 🎯 Driver runs the converter
type Driver struct {
	opts   Options
	runner Runner
}

// 🏭 New creates a driver that spawns real processes
func New(opts Options) *Driver {
	return NewWithRunner(opts, ExecRunner{})
}

// 🏭 NewWithRunner creates a driver with a custom process runner
func NewWithRunner(opts Options, runner Runner) *Driver {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.Stat == nil {
		opts.Stat = os.Stat
	}
	if opts.Progress == nil {
		opts.Progress = progress.Disabled()
	}
	return &Driver{opts: opts, runner: runner}
}

// 🏃 ConvertOne converts req.Input with the converter h in environment env.
//
// An existing req.Output short-circuits to AlreadyDone without starting the
// converter. In suppressed mode a progress reporter runs for exactly as long
// as the process.
func (d *Driver) ConvertOne(ctx context.Context, req Request, h locate.ConverterHandle, env provision.EnvironmentConfig) Outcome {
	logger := zerolog.Ctx(ctx).With().Str("input", req.Input).Logger()
	start := time.Now()

	if d.exists(req.Output) {
		logger.Debug().Str("output", req.Output).Msg("output already present, not converting")
		return Outcome{Kind: AlreadyDone}
	}

	name, args := h.Command(d.opts.DecodeFlag, req.Input)
	spec := Spec{Name: name, Args: args, Env: env.Env}

	var (
		filter *markerFilter
		pr     *io.PipeReader
		pw     *io.PipeWriter
	)
	if req.Native {
		spec.Stdout, spec.Stderr = d.opts.Stdout, d.opts.Stderr
	} else {
		pr, pw = io.Pipe()
		spec.Stdout, spec.Stderr = pw, pw
		filter = newMarkerFilter(d.opts.Stdout, d.opts.Marker)
	}

	logger.Debug().Str("cmd", name).Strs("args", args).Bool("native", req.Native).Msg("starting converter")

	proc, err := d.runner.Start(ctx, spec)
	if err != nil {
		if pw != nil {
			_ = pw.Close()
		}
		return Outcome{
			Kind:     Failed,
			Reason:   FailStart,
			ExitCode: -1,
			Message:  fmt.Sprintf("could not start %s (%v); reinstall or repair the converter", filepath.Base(name), err),
			Err:      errors.Errorf("starting converter: %w", err),
			Elapsed:  time.Since(start),
		}
	}

	// native mode leaves the terminal to the converter's own progress bar
	reporter := d.opts.Progress
	if req.Native {
		reporter = progress.Disabled()
	}

	pctx, stop := context.WithCancel(ctx)
	var g errgroup.Group
	g.Go(func() error {
		return reporter.WithLabel(filepath.Base(req.Input)).Run(pctx)
	})
	if filter != nil {
		g.Go(func() error { return filter.Drain(pr) })
	}

	waitErr := proc.Wait()
	if pw != nil {
		_ = pw.Close()
	}
	stop()
	_ = g.Wait()

	out := Outcome{Elapsed: time.Since(start)}
	if filter != nil {
		out.Echoed = filter.echoed
		out.Tail = filter.tail
	}

	if waitErr != nil {
		out.Kind = Failed
		out.Reason = FailDecode
		out.ExitCode = exitCode(waitErr)
		out.Err = errors.Errorf("running converter: %w", waitErr)
		switch {
		case ctx.Err() != nil:
			out.Message = "interrupted"
		case out.ExitCode >= 0:
			out.Message = fmt.Sprintf("converter exited with code %d", out.ExitCode)
		default:
			out.Message = waitErr.Error()
		}
		if len(out.Tail) > 0 {
			logger.Debug().Str("tail", strings.Join(out.Tail, " | ")).Msg("converter output before failure")
		}
		return out
	}

	if !d.exists(req.Output) {
		out.Kind = Failed
		out.Reason = FailOutput
		out.Message = fmt.Sprintf("converter exited 0 but %s was not created", filepath.Base(req.Output))
		out.Err = errors.New(out.Message)
		return out
	}

	out.Kind = Success
	return out
}

func (d *Driver) exists(path string) bool {
	_, err := d.opts.Stat(path)
	return err == nil
}

// exitCode extracts a process exit code, or -1 when there is none
func exitCode(err error) int {
	var ec interface{ ExitCode() int }
	if errors.As(err, &ec) {
		return ec.ExitCode()
	}
	return -1
}
