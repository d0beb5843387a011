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

// Package provision prepares the child-process environment the converter
// runs in, staging key material where the converter's own lookup finds it.
package provision

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/rs/zerolog"
	"github.com/walteh/nszconv/pkg/locate"
	"gitlab.com/tozd/go/errors"
)

// PrivateHome is the HOME used under the working directory when that
// directory is the user's own home
const PrivateHome = ".nszconv-home"

// 🌍 EnvironmentConfig is everything the converter process needs from its
// environment. It is a value: building one never touches the parent process.
type EnvironmentConfig struct {
	Home      string   // value of HOME for the child
	Env       []string // full child environment, KEY=VALUE
	StagedKey string   // where the key ended up (the original when not staged)
	Staged    bool     // a copy was written to StagedKey during this call
}

// 🔧 Options names the key layout the converter expects under HOME
type Options struct {
	KeyDir  string // e.g. .switch
	KeyFile string // e.g. prod.keys
}

// 🔌 Deps are the process-wide facts the provisioner reads
type Deps struct {
	Environ func() []string
	HomeDir func() (string, error)
	Getwd   func() (string, error)
	GOOS    string
}

// 🏭 DefaultDeps returns the real OS dependencies
func DefaultDeps() Deps {
	return Deps{
		Environ: os.Environ,
		HomeDir: os.UserHomeDir,
		Getwd:   os.Getwd,
		GOOS:    runtime.GOOS,
	}
}

// 🎯 Provisioner builds EnvironmentConfig values
type Provisioner struct {
	opts Options
	deps Deps
}

// 🏭 New creates a provisioner backed by the real environment
func New(opts Options) *Provisioner {
	return NewWithDeps(opts, DefaultDeps())
}

// 🏭 NewWithDeps creates a provisioner with injected dependencies
func NewWithDeps(opts Options, deps Deps) *Provisioner {
	return &Provisioner{opts: opts, deps: deps}
}

// 🏗️ Provision returns the environment for the converter given the resolved key.
//
// A key already at <home>/<KeyDir>/<KeyFile> is used in place with HOME set to
// that home. Any other key is copied to <cwd>/<KeyDir>/<KeyFile> and HOME is
// pointed at cwd. When cwd is the user's home that path is the user's own key
// file, so the copy goes under <cwd>/PrivateHome instead. The source key and
// the user's key file are never modified, and the copy is skipped when the
// destination is the source or already holds the same bytes.
func (p *Provisioner) Provision(ctx context.Context, key locate.KeyMaterial) (EnvironmentConfig, error) {
	logger := zerolog.Ctx(ctx)

	src, err := p.abs(key.Path)
	if err != nil {
		return EnvironmentConfig{}, errors.Errorf("resolving key path: %w", err)
	}

	var userKey string
	if home, err := p.deps.HomeDir(); err == nil && home != "" {
		userKey = filepath.Join(home, p.opts.KeyDir, p.opts.KeyFile)
		if samePath(src, userKey) {
			logger.Debug().Str("home", home).Msg("key already at user default")
			return p.build(home, src, false), nil
		}
	}

	cwd, err := p.deps.Getwd()
	if err != nil {
		return EnvironmentConfig{}, errors.Errorf("getting working directory: %w", err)
	}
	stageHome := cwd
	dst := filepath.Join(stageHome, p.opts.KeyDir, p.opts.KeyFile)

	if samePath(src, dst) {
		return p.build(stageHome, dst, false), nil
	}

	if userKey != "" && samePath(dst, userKey) {
		stageHome = filepath.Join(cwd, PrivateHome)
		dst = filepath.Join(stageHome, p.opts.KeyDir, p.opts.KeyFile)
		logger.Debug().Str("home", stageHome).Msg("working directory is the user home, staging into a private home")
	}

	same, err := sameContent(src, dst)
	if err != nil {
		return EnvironmentConfig{}, errors.Errorf("comparing key files: %w", err)
	}
	if same {
		logger.Debug().Str("dst", dst).Msg("staged key already up to date")
		return p.build(stageHome, dst, false), nil
	}

	if err := stageCopy(src, dst); err != nil {
		return EnvironmentConfig{}, errors.Errorf("staging key file: %w", err)
	}
	logger.Debug().Str("src", src).Str("dst", dst).Msg("staged key file")
	return p.build(stageHome, dst, true), nil
}

func (p *Provisioner) abs(path string) (string, error) {
	if filepath.IsAbs(path) {
		return filepath.Clean(path), nil
	}
	cwd, err := p.deps.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, path), nil
}

func (p *Provisioner) build(home, key string, staged bool) EnvironmentConfig {
	overrides := map[string]string{"HOME": home}
	if p.deps.GOOS == "windows" {
		overrides["USERPROFILE"] = home
	}
	return EnvironmentConfig{
		Home:      home,
		Env:       withOverrides(p.deps.Environ(), overrides),
		StagedKey: key,
		Staged:    staged,
	}
}

// withOverrides replaces (or appends) the given keys in env
func withOverrides(env []string, overrides map[string]string) []string {
	out := make([]string, 0, len(env)+len(overrides))
	for _, kv := range env {
		k, _, _ := strings.Cut(kv, "=")
		if _, ok := overrides[k]; ok {
			continue
		}
		out = append(out, kv)
	}
	for _, k := range []string{"HOME", "USERPROFILE"} {
		if v, ok := overrides[k]; ok {
			out = append(out, k+"="+v)
		}
	}
	return out
}

func samePath(a, b string) bool {
	if filepath.Clean(a) == filepath.Clean(b) {
		return true
	}
	ai, err := os.Stat(a)
	if err != nil {
		return false
	}
	bi, err := os.Stat(b)
	if err != nil {
		return false
	}
	return os.SameFile(ai, bi)
}

func sameContent(src, dst string) (bool, error) {
	want, err := os.ReadFile(src)
	if err != nil {
		return false, err
	}
	got, err := os.ReadFile(dst)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return bytes.Equal(want, got), nil
}

// stageCopy writes src to dst through a temp file in dst's directory
func stageCopy(src, dst string) error {
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return errors.Errorf("creating %s: %w", dir, err)
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dst)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := io.Copy(tmp, in); err != nil {
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, dst)
}
