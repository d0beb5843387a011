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

package locate

import (
	"context"
	"path/filepath"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// 🏷️ Key candidate sources, highest priority first
const (
	SourceFlag         = "flag"
	SourceEnv          = "env"
	SourceHome         = "home"
	SourceWorkDir      = "cwd"
	SourceTarget       = "target"
	SourceWorkDirLoose = "cwd-loose"
)

// 🔑 KeyMaterial is the resolved key file
type KeyMaterial struct {
	Path   string
	Source string
}

// 📋 KeysetCandidates lists the key file locations in priority order
func (l *Locator) KeysetCandidates(baseDir string) []Candidate {
	home, _ := l.deps.HomeDir()
	cwd, _ := l.deps.Getwd()

	out := []Candidate{
		{Name: SourceFlag, Path: expandHome(l.opts.KeyOverride, home)},
	}
	if l.opts.KeyEnv != "" {
		out = append(out, Candidate{Name: SourceEnv, Path: expandHome(l.deps.Getenv(l.opts.KeyEnv), home)})
	}
	if home != "" {
		out = append(out, Candidate{Name: SourceHome, Path: filepath.Join(home, l.opts.KeyDir, l.opts.KeyFile)})
	}
	if cwd != "" {
		out = append(out, Candidate{Name: SourceWorkDir, Path: filepath.Join(cwd, l.opts.KeyDir, l.opts.KeyFile)})
	}
	if baseDir != "" && l.opts.FallbackKeyFile != "" {
		out = append(out, Candidate{Name: SourceTarget, Path: filepath.Join(baseDir, l.opts.FallbackKeyFile)})
	}
	if cwd != "" && l.opts.FallbackKeyFile != "" {
		out = append(out, Candidate{Name: SourceWorkDirLoose, Path: filepath.Join(cwd, l.opts.FallbackKeyFile)})
	}
	return out
}

// 🔍 Keyset returns the first existing key file. A missing key file is a
// configuration error (ErrKeysetNotFound), not a fault.
func (l *Locator) Keyset(ctx context.Context, baseDir string) (KeyMaterial, error) {
	candidates := l.KeysetCandidates(baseDir)
	c, ok := FirstMatch(candidates, isRegularFile(l.deps.Stat))
	if !ok {
		zerolog.Ctx(ctx).Debug().Int("candidates", len(candidates)).Msg("no key material found")
		return KeyMaterial{}, errors.WithStack(ErrKeysetNotFound)
	}
	zerolog.Ctx(ctx).Debug().Str("path", c.Path).Str("source", c.Name).Msg("key material found")
	return KeyMaterial{Path: c.Path, Source: c.Name}, nil
}
