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

package operation

import (
	"context"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// DefaultOutputExt is the extension of converted files
const DefaultOutputExt = ".nsp"

// 🔧 BatchOptions configures a batch run
type BatchOptions struct {
	Root      string
	Discover  DiscoverOptions
	OutputExt string

	// OnStart and OnResult are called around each job, in order
	OnStart  func(Job)
	OnResult func(Result)
}

// 📊 Summary counts terminal states over a batch
type Summary struct {
	Total     int
	Converted int
	Skipped   int
	Failed    int
	Disposed  int
	Elapsed   time.Duration
	Results   []Result
}

func (s *Summary) add(r Result) {
	s.Total++
	switch r.State {
	case StateConverted:
		s.Converted++
	case StateSkippedExisting:
		s.Skipped++
	case StateFailed:
		s.Failed++
	}
	if r.Disposal.Done() {
		s.Disposed++
	}
	s.Results = append(s.Results, r)
}

// 🏃 Batch walks a directory and processes each source in turn
type Batch struct {
	proc Processor
	opts BatchOptions
}

// 🏗️ NewBatch creates a batch runner
func NewBatch(proc Processor, opts BatchOptions) *Batch {
	if opts.OutputExt == "" {
		opts.OutputExt = DefaultOutputExt
	}
	return &Batch{proc: proc, opts: opts}
}

// 🏃 Run discovers sources and processes them sequentially. Per-file
// failures are recorded in the summary; only a failed walk or a cancelled
// context returns an error.
func (b *Batch) Run(ctx context.Context) (Summary, error) {
	logger := zerolog.Ctx(ctx)
	start := time.Now()

	root, err := filepath.Abs(b.opts.Root)
	if err != nil {
		return Summary{}, errors.Errorf("resolving %s: %w", b.opts.Root, err)
	}

	rels, err := Discover(ctx, root, b.opts.Discover)
	if err != nil {
		return Summary{}, errors.Errorf("discovering sources: %w", err)
	}
	logger.Debug().Str("root", root).Int("files", len(rels)).Msg("discovered sources")

	var sum Summary
	for _, rel := range rels {
		if err := ctx.Err(); err != nil {
			sum.Elapsed = time.Since(start)
			return sum, errors.Errorf("batch interrupted: %w", err)
		}

		job := NewJob(root, rel, b.opts.OutputExt)
		if b.opts.OnStart != nil {
			b.opts.OnStart(job)
		}
		res := b.proc.Process(ctx, job)
		sum.add(res)
		if b.opts.OnResult != nil {
			b.opts.OnResult(res)
		}
	}

	sum.Elapsed = time.Since(start)
	if err := ctx.Err(); err != nil {
		return sum, errors.Errorf("batch interrupted: %w", err)
	}
	logger.Debug().
		Int("converted", sum.Converted).
		Int("skipped", sum.Skipped).
		Int("failed", sum.Failed).
		Msg("batch complete")
	return sum, nil
}
