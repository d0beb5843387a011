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

// Package testutils builds throwaway workspaces for end-to-end tests: a
// working directory, a home directory, a PATH holding a converter, and a
// fake process runner standing in for the converter itself.
package testutils

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/walteh/nszconv/pkg/convert"
	"github.com/walteh/nszconv/pkg/locate"
	"github.com/walteh/nszconv/pkg/provision"
)

// 🏗️ Workspace is a temporary cwd/home/bin/games layout
type Workspace struct {
	T     *testing.T
	Root  string
	Cwd   string
	Home  string
	Bin   string
	Games string
	Env   map[string]string
}

// NewWorkspace creates the directories and an executable bin/nsz
func NewWorkspace(t *testing.T) *Workspace {
	t.Helper()
	root := t.TempDir()
	w := &Workspace{
		T:     t,
		Root:  root,
		Cwd:   filepath.Join(root, "cwd"),
		Home:  filepath.Join(root, "home"),
		Bin:   filepath.Join(root, "bin"),
		Games: filepath.Join(root, "games"),
	}
	for _, d := range []string{w.Cwd, w.Home, w.Bin, w.Games} {
		require.NoError(t, os.MkdirAll(d, 0o755))
	}
	w.Env = map[string]string{"PATH": w.Bin}
	w.WriteMode(filepath.Join(w.Bin, "nsz"), "converter placeholder\n", 0o755)
	return w
}

// Context returns a context carrying a test logger
func Context(t *testing.T) context.Context {
	return zerolog.New(zerolog.NewTestWriter(t)).WithContext(context.Background())
}

// Write creates path (and its parents) with content
func (w *Workspace) Write(path, content string) string {
	return w.WriteMode(path, content, 0o644)
}

// WriteMode creates path (and its parents) with content and mode
func (w *Workspace) WriteMode(path, content string, mode os.FileMode) string {
	w.T.Helper()
	require.NoError(w.T, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(w.T, os.WriteFile(path, []byte(content), mode))
	require.NoError(w.T, os.Chmod(path, mode))
	return path
}

// Read returns the content of path
func (w *Workspace) Read(path string) string {
	w.T.Helper()
	b, err := os.ReadFile(path)
	require.NoError(w.T, err)
	return string(b)
}

// UserKey places a key file at ~/.switch/prod.keys
func (w *Workspace) UserKey() string {
	return w.Write(filepath.Join(w.Home, ".switch", "prod.keys"), "master_key_00 = 00\n")
}

func (w *Workspace) getenv(k string) string { return w.Env[k] }

func (w *Workspace) environ() []string {
	out := make([]string, 0, len(w.Env))
	for k, v := range w.Env {
		out = append(out, k+"="+v)
	}
	return out
}

func (w *Workspace) getwd() (string, error)   { return w.Cwd, nil }
func (w *Workspace) homeDir() (string, error) { return w.Home, nil }

// LocateDeps resolves against the workspace instead of the real process
func (w *Workspace) LocateDeps() locate.Deps {
	return locate.Deps{
		Getenv:  w.getenv,
		HomeDir: w.homeDir,
		Getwd:   w.getwd,
		Stat:    os.Stat,
		Open:    func(p string) (io.ReadCloser, error) { return os.Open(p) },
		GOOS:    "linux",
	}
}

// ProvisionDeps provisions against the workspace instead of the real process
func (w *Workspace) ProvisionDeps() provision.Deps {
	return provision.Deps{
		Environ: w.environ,
		HomeDir: w.homeDir,
		Getwd:   w.getwd,
		GOOS:    "linux",
	}
}

// Getwd and HomeDir expose the workspace directories as os-style funcs
func (w *Workspace) Getwd() (string, error)   { return w.getwd() }
func (w *Workspace) HomeDir() (string, error) { return w.homeDir() }

// 🎭 FakeRunner plays a converter: it prints Output, writes the .nsp next to
// the input and exits 0, unless the input's base name is listed in Fail.
type FakeRunner struct {
	Output string
	Fail   map[string]error

	mu    sync.Mutex
	specs []convert.Spec
}

// Inputs returns the input path of every started conversion, in order
func (r *FakeRunner) Inputs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.specs))
	for _, s := range r.specs {
		out = append(out, s.Args[len(s.Args)-1])
	}
	return out
}

// Specs returns every started process spec
func (r *FakeRunner) Specs() []convert.Spec {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]convert.Spec(nil), r.specs...)
}

func (r *FakeRunner) Start(ctx context.Context, spec convert.Spec) (convert.Process, error) {
	r.mu.Lock()
	r.specs = append(r.specs, spec)
	r.mu.Unlock()

	input := spec.Args[len(spec.Args)-1]
	return &fakeProcess{runner: r, spec: spec, input: input}, nil
}

type fakeProcess struct {
	runner *FakeRunner
	spec   convert.Spec
	input  string
}

func (p *fakeProcess) Wait() error {
	out := p.runner.Output
	if out == "" {
		out = "Decompressing " + filepath.Base(p.input) + "\n"
	}
	if p.spec.Stdout != nil {
		_, _ = io.WriteString(p.spec.Stdout, out)
	}
	if err, ok := p.runner.Fail[filepath.Base(p.input)]; ok {
		return err
	}
	return os.WriteFile(strings.TrimSuffix(p.input, filepath.Ext(p.input))+".nsp", []byte("nsp"), 0o644)
}
