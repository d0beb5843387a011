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
	"fmt"

	"github.com/rs/zerolog"
	"github.com/walteh/nszconv/pkg/convert"
	"github.com/walteh/nszconv/pkg/locate"
	"github.com/walteh/nszconv/pkg/provision"
)

// 🔧 Converter converts a single file; *convert.Driver implements it
type Converter interface {
	ConvertOne(ctx context.Context, req convert.Request, h locate.ConverterHandle, env provision.EnvironmentConfig) convert.Outcome
}

// 🎯 Processor takes a pending job to a terminal result
type Processor interface {
	Process(ctx context.Context, job Job) Result
}

// 🔄 Lifecycle runs the per-file state machine against a converter
// and environment resolved once for the whole batch
type Lifecycle struct {
	conv     Converter
	handle   locate.ConverterHandle
	env      provision.EnvironmentConfig
	disposer Disposer
	native   bool
}

// 🏭 NewLifecycle creates a lifecycle manager
func NewLifecycle(conv Converter, handle locate.ConverterHandle, env provision.EnvironmentConfig, disposer Disposer) *Lifecycle {
	return &Lifecycle{
		conv:     conv,
		handle:   handle,
		env:      env,
		disposer: disposer,
	}
}

// WithNativeProgress lets the converter draw its own progress output
func (l *Lifecycle) WithNativeProgress(native bool) *Lifecycle {
	l.native = native
	return l
}

// 🏃 Process converts job and disposes of its source once the output exists.
// A failed conversion leaves the source where it was.
func (l *Lifecycle) Process(ctx context.Context, job Job) Result {
	logger := zerolog.Ctx(ctx).With().Str("job", job.Rel).Logger()

	out := l.conv.ConvertOne(ctx, convert.Request{
		Input:  job.Source,
		Output: job.Output,
		Native: l.native,
	}, l.handle, l.env)

	res := Result{Elapsed: out.Elapsed}
	switch out.Kind {
	case convert.Success:
		res.State = StateConverted
	case convert.AlreadyDone:
		res.State = StateSkippedExisting
	default:
		res.State = StateFailed
		res.FailureKind = failureKindOf(out.Reason)
		res.Message = out.Message
		res.Err = out.Err
		job.State = res.State
		res.Job = job
		logger.Debug().Err(out.Err).Str("kind", res.FailureKind.String()).Msg("conversion failed, source left in place")
		return res
	}

	d, err := l.disposer.Dispose(ctx, job)
	if err != nil {
		logger.Debug().Err(err).Str("state", res.State.String()).Msg("disposing source failed")
		res.Message = fmt.Sprintf("%s, but the source could not be moved: %v", res.State, err)
		res.State = StateFailed
		res.FailureKind = FailureStash
		res.Err = err
		job.State = res.State
		res.Job = job
		return res
	}

	res.Disposal = d
	job.State = res.State
	res.Job = job
	return res
}

func failureKindOf(r convert.FailReason) FailureKind {
	switch r {
	case convert.FailStart:
		return FailureStart
	case convert.FailOutput:
		return FailureOutput
	default:
		return FailureDecode
	}
}
