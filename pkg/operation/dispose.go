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
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/walteh/nszconv/pkg/stash"
	"gitlab.com/tozd/go/errors"
)

// 🧭 Policy chooses what happens to a source once its output exists
type Policy string

const (
	PolicyStash  Policy = "stash"
	PolicyDelete Policy = "delete"
)

// ErrUnknownPolicy is returned by ParsePolicy for anything but stash or delete
var ErrUnknownPolicy = errors.Base("unknown disposal policy")

// ParsePolicy parses a policy name, case-insensitively
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case PolicyStash, "":
		return PolicyStash, nil
	case PolicyDelete:
		return PolicyDelete, nil
	}
	return "", errors.Errorf("%w: %q", ErrUnknownPolicy, s)
}

// 📦 Disposal records what was done with a source
type Disposal struct {
	Policy Policy
	Path   string // where the source went; empty when deleted or untouched
	Dup    int
}

// Done reports whether the source was disposed of
func (d Disposal) Done() bool {
	return d.Policy != ""
}

// 🗑️ Disposer removes a superseded source from the target tree
type Disposer interface {
	Dispose(ctx context.Context, job Job) (Disposal, error)
}

// 🗄️ StashDisposer moves sources into a stash directory
type StashDisposer struct {
	stasher *stash.Stasher
}

// 🏭 NewStashDisposer wraps a stasher
func NewStashDisposer(s *stash.Stasher) *StashDisposer {
	return &StashDisposer{stasher: s}
}

func (d *StashDisposer) Dispose(ctx context.Context, job Job) (Disposal, error) {
	e, err := d.stasher.Move(ctx, job.Source, job.Rel)
	if err != nil {
		return Disposal{}, err
	}
	return Disposal{Policy: PolicyStash, Path: e.To, Dup: e.Dup}, nil
}

// 🔥 DeleteDisposer removes sources outright
type DeleteDisposer struct {
	remove func(string) error
}

// 🏭 NewDeleteDisposer creates a disposer that deletes
func NewDeleteDisposer() *DeleteDisposer {
	return &DeleteDisposer{remove: os.Remove}
}

func (d *DeleteDisposer) Dispose(ctx context.Context, job Job) (Disposal, error) {
	if err := d.remove(job.Source); err != nil {
		return Disposal{}, errors.Errorf("deleting %s: %w", job.Source, err)
	}
	zerolog.Ctx(ctx).Debug().Str("source", job.Source).Msg("deleted source")
	return Disposal{Policy: PolicyDelete}, nil
}

// NewDisposer returns the disposer for p. stasher may be nil for PolicyDelete.
func NewDisposer(p Policy, stasher *stash.Stasher) (Disposer, error) {
	switch p {
	case PolicyStash:
		if stasher == nil {
			return nil, errors.New("stash policy needs a stash directory")
		}
		return NewStashDisposer(stasher), nil
	case PolicyDelete:
		return NewDeleteDisposer(), nil
	}
	return nil, errors.Errorf("%w: %q", ErrUnknownPolicy, string(p))
}
