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

package commands

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/walteh/nszconv/cmd/nszconv/opts"
	"github.com/walteh/nszconv/pkg/convert"
	"github.com/walteh/nszconv/pkg/log"
	"github.com/walteh/nszconv/pkg/operation"
	"github.com/walteh/nszconv/pkg/progress"
	"github.com/walteh/nszconv/pkg/stash"
	"gitlab.com/tozd/go/errors"
)

// 🏃 RunConvert converts every source under the target directory. Per-file
// failures are reported and do not fail the run.
func RunConvert(ctx context.Context, o *opts.RootOpts, args []string) error {
	cfg := o.Config

	target, err := ResolveTarget(ctx, o, args)
	if err != nil {
		return err
	}

	policy, err := operation.ParsePolicy(cfg.Policy)
	if err != nil {
		return err
	}

	s, err := Resolve(ctx, o, target)
	if err != nil {
		return err
	}

	var stasher *stash.Stasher
	if policy == operation.PolicyStash {
		stasher = stash.New(s.StashDir)
	}
	disposer, err := operation.NewDisposer(policy, stasher)
	if err != nil {
		return err
	}

	reporter := progress.Disabled()
	if o.StderrTTY {
		reporter = progress.New(o.Stderr, "")
	}

	driver := convert.NewWithRunner(convert.Options{
		DecodeFlag: cfg.Converter.DecodeFlag,
		Marker:     cfg.Converter.Marker,
		Stdout:     o.Stdout,
		Stderr:     o.Stderr,
		Progress:   reporter,
	}, o.Runner)

	lc := operation.NewLifecycle(driver, s.Handle, s.Env, disposer).WithNativeProgress(cfg.NativeProgress)

	exclude := append([]string{}, cfg.Exclude...)
	exclude = append(exclude, operation.ExcludeDir(target, s.StashDir)...)
	exclude = append(exclude, operation.ExcludeDir(target, s.KeyStage)...)

	cwd, _ := o.Getwd()
	batch := operation.NewBatch(lc, operation.BatchOptions{
		Root: target,
		Discover: operation.DiscoverOptions{
			Include: []string{cfg.IncludePattern()},
			Exclude: exclude,
		},
		OutputExt: cfg.OutputExt,
		OnStart: func(j operation.Job) {
			zerolog.Ctx(ctx).Debug().Str("source", j.Source).Msg("processing")
		},
		OnResult: func(r operation.Result) {
			o.Logger.LogJob(ctx, entryOf(r, cwd))
		},
	})

	o.Logger.Header(fmt.Sprintf("converting %s (%s via %s)", target, s.Handle, s.Handle.Via))

	sum, runErr := batch.Run(ctx)
	if err := o.Logger.Summary(countsOf(sum, cwd)); err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Msg("rendering summary")
	}
	if runErr != nil {
		return errors.Errorf("converting %s: %w", target, runErr)
	}
	if sum.Total == 0 {
		o.Logger.Warningf("no %s files found under %s", cfg.SourceExt, target)
	}
	return nil
}

func entryOf(r operation.Result, cwd string) log.JobEntry {
	e := log.JobEntry{Path: r.Job.Rel, Elapsed: r.Elapsed}
	switch r.State {
	case operation.StateConverted:
		e.Status = log.JobConverted
	case operation.StateSkippedExisting:
		e.Status = log.JobSkipped
	default:
		e.Status = log.JobFailed
		e.Detail = r.Message
		return e
	}

	switch r.Disposal.Policy {
	case operation.PolicyStash:
		e.Detail = "→ " + displayPath(r.Disposal.Path, cwd)
	case operation.PolicyDelete:
		e.Detail = "source deleted"
	}
	if r.State == operation.StateSkippedExisting {
		e.Detail = "output exists, " + e.Detail
	}
	return e
}

func countsOf(s operation.Summary, cwd string) log.Counts {
	c := log.Counts{
		Converted: s.Converted,
		Skipped:   s.Skipped,
		Failed:    s.Failed,
		Disposed:  s.Disposed,
		Elapsed:   s.Elapsed,
	}
	for _, r := range s.Results {
		if r.Failed() {
			c.Failures = append(c.Failures, entryOf(r, cwd))
		}
	}
	return c
}

// displayPath shortens p relative to cwd when it lies below it
func displayPath(p, cwd string) string {
	if cwd == "" {
		return p
	}
	rel, err := filepath.Rel(cwd, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return p
	}
	return rel
}
