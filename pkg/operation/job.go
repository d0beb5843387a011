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
	"path/filepath"
	"strings"
	"time"
)

// 📊 State is where a job sits in its lifecycle
type State int

const (
	StatePending State = iota
	StateConverted
	StateSkippedExisting
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateConverted:
		return "converted"
	case StateSkippedExisting:
		return "skipped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ❌ FailureKind separates decode failures from filesystem ones
type FailureKind int

const (
	FailureNone FailureKind = iota
	FailureDecode
	FailureStart
	FailureStash
	FailureOutput
)

func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case FailureDecode:
		return "decode"
	case FailureStart:
		return "start"
	case FailureStash:
		return "stash"
	case FailureOutput:
		return "output"
	default:
		return "unknown"
	}
}

// 📄 Job is one source archive and the output it should produce
type Job struct {
	Source string // absolute path of the .nsz
	Output string // same stem, output extension
	Rel    string // Source relative to the batch root
	State  State
}

// 🏭 NewJob builds a pending job for rel under root
func NewJob(root, rel, outExt string) Job {
	src := filepath.Join(root, rel)
	return Job{
		Source: src,
		Output: strings.TrimSuffix(src, filepath.Ext(src)) + outExt,
		Rel:    rel,
		State:  StatePending,
	}
}

// 📦 Result is the terminal record of a job
type Result struct {
	Job         Job
	State       State
	FailureKind FailureKind
	Disposal    Disposal
	Message     string
	Elapsed     time.Duration
	Err         error
}

// Failed reports whether the job ended in a failure of any kind
func (r Result) Failed() bool {
	return r.State == StateFailed
}
