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
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// ❌ Configuration errors. These are reported once per batch and stop the run.
var (
	ErrConverterNotFound   = errors.Base("converter not found")
	ErrConverterUnrunnable = errors.Base("converter module is installed but has no runnable entry point")
	ErrKeysetNotFound      = errors.Base("key material not found")
)

// 🔧 Options controls what the locator searches for
type Options struct {
	Tool          string // executable name, e.g. nsz
	Module        string // importable module name, e.g. nsz
	AllowModule   bool   // fall back to `python -m <module>`
	ConverterPath string // explicit converter, skips the search

	KeyOverride     string // explicit key file, checked before everything else
	KeyEnv          string // env var naming a key file
	KeyDir          string // per-user key directory name, e.g. .switch
	KeyFile         string // key file inside KeyDir, e.g. prod.keys
	FallbackKeyFile string // loose key file name, e.g. keys.txt
}

// 🔌 Deps are the process-wide facts the locator reads. Tests replace them.
type Deps struct {
	Getenv  func(string) string
	HomeDir func() (string, error)
	Getwd   func() (string, error)
	Stat    func(string) (os.FileInfo, error)
	Open    func(string) (io.ReadCloser, error)
	Runtime Runtime
	GOOS    string
}

// 🏭 DefaultDeps returns the real OS dependencies
func DefaultDeps() Deps {
	return Deps{
		Getenv:  os.Getenv,
		HomeDir: os.UserHomeDir,
		Getwd:   os.Getwd,
		Stat:    os.Stat,
		Open:    func(p string) (io.ReadCloser, error) { return os.Open(p) },
		Runtime: NewPythonRuntime(),
		GOOS:    runtime.GOOS,
	}
}

// 🎯 Locator finds the converter executable and the key material
type Locator struct {
	opts Options
	deps Deps
}

// 🏭 New creates a locator backed by the real environment
func New(opts Options) *Locator {
	return NewWithDeps(opts, DefaultDeps())
}

// 🏭 NewWithDeps creates a locator with injected dependencies
func NewWithDeps(opts Options, deps Deps) *Locator {
	return &Locator{opts: opts, deps: deps}
}

// 🔀 Via records how a converter was found
type Via int

const (
	ViaOverride Via = iota // explicit path from config or flags
	ViaPath                // executable on PATH
	ViaScripts             // console script in the runtime's scripts dir
	ViaModule              // `python -m <module>`
)

func (v Via) String() string {
	switch v {
	case ViaOverride:
		return "override"
	case ViaPath:
		return "PATH"
	case ViaScripts:
		return "scripts dir"
	case ViaModule:
		return "module"
	default:
		return "unknown"
	}
}

// 📦 ConverterHandle is a resolved, verified converter. It is immutable once returned.
type ConverterHandle struct {
	Path   string
	Prefix []string // argv inserted before the decode flag
	Via    Via
}

// 🏃 Command returns the program and arguments that decode input
func (h ConverterHandle) Command(decodeFlag, input string) (string, []string) {
	args := make([]string, 0, len(h.Prefix)+2)
	args = append(args, h.Prefix...)
	args = append(args, decodeFlag, input)
	return h.Path, args
}

func (h ConverterHandle) String() string {
	if len(h.Prefix) == 0 {
		return h.Path
	}
	return h.Path + " " + strings.Join(h.Prefix, " ")
}

// 🔍 Converter resolves the converter: override, PATH, scripts dir, then module.
func (l *Locator) Converter(ctx context.Context) (ConverterHandle, error) {
	logger := zerolog.Ctx(ctx)

	if l.opts.ConverterPath != "" {
		home, _ := l.deps.HomeDir()
		p := expandHome(l.opts.ConverterPath, home)
		if !l.usable(ctx, p) {
			return ConverterHandle{}, errors.Errorf("configured converter %q is not runnable: %w", p, ErrConverterNotFound)
		}
		return ConverterHandle{Path: p, Via: ViaOverride}, nil
	}

	usable := func(p string) bool { return l.usable(ctx, p) }

	if c, ok := FirstMatch(l.pathCandidates(l.opts.Tool), usable); ok {
		logger.Debug().Str("path", c.Path).Msg("converter found on PATH")
		return ConverterHandle{Path: c.Path, Via: ViaPath}, nil
	}

	rt := l.deps.Runtime
	if rt == nil {
		return ConverterHandle{}, errors.Errorf("%s: %w", l.opts.Tool, ErrConverterNotFound)
	}

	if dir, err := rt.ScriptsDir(ctx); err == nil && dir != "" {
		if c, ok := FirstMatch(l.dirCandidates("scripts", dir, l.opts.Tool), usable); ok {
			logger.Debug().Str("path", c.Path).Msg("converter found in runtime scripts dir")
			return ConverterHandle{Path: c.Path, Via: ViaScripts}, nil
		}
	} else if err != nil {
		logger.Debug().Err(err).Msg("runtime scripts dir unavailable")
	}

	if l.opts.Module == "" || !rt.HasModule(ctx, l.opts.Module) {
		return ConverterHandle{}, errors.Errorf("%s: %w", l.opts.Tool, ErrConverterNotFound)
	}
	if !l.opts.AllowModule {
		return ConverterHandle{}, errors.Errorf("%s: %w", l.opts.Module, ErrConverterUnrunnable)
	}

	exe, err := rt.Executable(ctx)
	if err != nil {
		logger.Debug().Err(err).Msg("runtime interpreter unavailable")
		return ConverterHandle{}, errors.Errorf("%s: %w", l.opts.Module, ErrConverterUnrunnable)
	}
	logger.Debug().Str("interpreter", exe).Str("module", l.opts.Module).Msg("converter available as module")
	return ConverterHandle{Path: exe, Prefix: []string{"-m", l.opts.Module}, Via: ViaModule}, nil
}

// usable is an executable whose shebang interpreter (if any) exists
func (l *Locator) usable(ctx context.Context, path string) bool {
	if !l.isExecutable(path) {
		return false
	}
	if !l.interpreterExists(path) {
		zerolog.Ctx(ctx).Warn().Str("candidate", path).Msg("rejecting converter: bad interpreter")
		return false
	}
	return true
}

// 📋 pathCandidates lists name in every PATH directory, in PATH order
func (l *Locator) pathCandidates(name string) []Candidate {
	var out []Candidate
	for _, dir := range filepath.SplitList(l.deps.Getenv("PATH")) {
		if dir == "" {
			dir = "."
		}
		out = append(out, l.dirCandidates("PATH", dir, name)...)
	}
	return out
}

func (l *Locator) dirCandidates(source, dir, name string) []Candidate {
	if l.deps.GOOS != "windows" || filepath.Ext(name) != "" {
		return []Candidate{{Name: source, Path: filepath.Join(dir, name)}}
	}
	var out []Candidate
	for _, ext := range []string{".exe", ".cmd", ".bat"} {
		out = append(out, Candidate{Name: source, Path: filepath.Join(dir, name+ext)})
	}
	return out
}
