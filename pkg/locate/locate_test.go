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
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"
)

type mockRuntime struct {
	mock.Mock
}

func (m *mockRuntime) Executable(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *mockRuntime) ScriptsDir(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *mockRuntime) HasModule(ctx context.Context, module string) bool {
	return m.Called(ctx, module).Bool(0)
}

type testEnv struct {
	home string
	cwd  string
	vars map[string]string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("exec bit and shebang checks are unix only")
	}
	root := t.TempDir()
	e := &testEnv{
		home: filepath.Join(root, "home"),
		cwd:  filepath.Join(root, "work"),
		vars: map[string]string{},
	}
	require.NoError(t, os.MkdirAll(e.home, 0o755))
	require.NoError(t, os.MkdirAll(e.cwd, 0o755))
	return e
}

func (e *testEnv) deps(rt Runtime) Deps {
	return Deps{
		Getenv:  func(k string) string { return e.vars[k] },
		HomeDir: func() (string, error) { return e.home, nil },
		Getwd:   func() (string, error) { return e.cwd, nil },
		Stat:    os.Stat,
		Open:    func(p string) (io.ReadCloser, error) { return os.Open(p) },
		Runtime: rt,
		GOOS:    "linux",
	}
}

func writeFile(t *testing.T, path, content string, mode os.FileMode) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), mode))
	return path
}

func testContext(t *testing.T) context.Context {
	return zerolog.New(zerolog.NewTestWriter(t)).WithContext(context.Background())
}

func defaultOptions() Options {
	return Options{
		Tool:            "nsz",
		Module:          "nsz",
		AllowModule:     true,
		KeyEnv:          "NSZ_KEYSET",
		KeyDir:          ".switch",
		KeyFile:         "prod.keys",
		FallbackKeyFile: "keys.txt",
	}
}

func TestFirstMatch(t *testing.T) {
	candidates := []Candidate{
		{Name: "empty", Path: ""},
		{Name: "a", Path: "/a"},
		{Name: "b", Path: "/b"},
		{Name: "c", Path: "/c"},
	}

	got, ok := FirstMatch(candidates, func(p string) bool { return p != "/a" })
	require.True(t, ok)
	assert.Equal(t, "b", got.Name)

	_, ok = FirstMatch(candidates, func(string) bool { return false })
	assert.False(t, ok)

	var seen []string
	FirstMatch(candidates, func(p string) bool {
		seen = append(seen, p)
		return false
	})
	assert.Equal(t, []string{"/a", "/b", "/c"}, seen, "empty paths are never checked")
}

func TestInterpreterOf(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   string
		wantOK bool
	}{
		{name: "binary", input: "\x7fELF\x02\x01", wantOK: false},
		{name: "absolute", input: "#!/usr/bin/python3\nimport nsz\n", want: "/usr/bin/python3", wantOK: true},
		{name: "absolute_with_args", input: "#!/opt/py/bin/python -u\n", want: "/opt/py/bin/python", wantOK: true},
		{name: "env", input: "#!/usr/bin/env python3\n", want: "python3", wantOK: true},
		{name: "env_split", input: "#!/usr/bin/env -S PYTHONUTF8=1 python3 -u\n", want: "python3", wantOK: true},
		{name: "empty_shebang", input: "#!\n", wantOK: false},
		{name: "empty_file", input: "", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := interpreterOf(strings.NewReader(tt.input))
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConverterOnPath(t *testing.T) {
	e := newTestEnv(t)
	root := filepath.Dir(e.home)

	python := writeFile(t, filepath.Join(root, "py", "python3"), "\x7fELF", 0o755)
	broken := writeFile(t, filepath.Join(root, "bin1", "nsz"), "#!/nonexistent/python3.9\n", 0o755)
	good := writeFile(t, filepath.Join(root, "bin2", "nsz"), "#!"+python+"\n", 0o755)
	writeFile(t, filepath.Join(root, "bin0", "nsz"), "not executable", 0o644)

	e.vars["PATH"] = strings.Join([]string{
		filepath.Dir(filepath.Join(root, "bin0", "nsz")),
		filepath.Dir(broken),
		filepath.Dir(good),
	}, string(filepath.ListSeparator))

	l := NewWithDeps(defaultOptions(), e.deps(nil))
	h, err := l.Converter(testContext(t))
	require.NoError(t, err)
	assert.Equal(t, good, h.Path)
	assert.Equal(t, ViaPath, h.Via)
	assert.Empty(t, h.Prefix)
}

func TestConverterEnvShebangResolvedThroughPath(t *testing.T) {
	e := newTestEnv(t)
	root := filepath.Dir(e.home)

	writeFile(t, filepath.Join(root, "bin", "python3"), "\x7fELF", 0o755)
	script := writeFile(t, filepath.Join(root, "bin", "nsz"), "#!/usr/bin/env python3\n", 0o755)
	e.vars["PATH"] = filepath.Join(root, "bin")

	l := NewWithDeps(defaultOptions(), e.deps(nil))
	h, err := l.Converter(testContext(t))
	require.NoError(t, err)
	assert.Equal(t, script, h.Path)
}

func TestConverterScriptsDir(t *testing.T) {
	e := newTestEnv(t)
	root := filepath.Dir(e.home)

	scripts := filepath.Join(root, "venv", "bin")
	script := writeFile(t, filepath.Join(scripts, "nsz"), "\x7fELF", 0o755)

	rt := &mockRuntime{}
	rt.On("ScriptsDir", mock.Anything).Return(scripts, nil)
	defer rt.AssertExpectations(t)

	l := NewWithDeps(defaultOptions(), e.deps(rt))
	h, err := l.Converter(testContext(t))
	require.NoError(t, err)
	assert.Equal(t, script, h.Path)
	assert.Equal(t, ViaScripts, h.Via)
}

func TestConverterModuleFallback(t *testing.T) {
	tests := []struct {
		name        string
		allowModule bool
		hasModule   bool
		wantErr     error
		wantPrefix  []string
	}{
		{name: "module_allowed", allowModule: true, hasModule: true, wantPrefix: []string{"-m", "nsz"}},
		{name: "module_not_runnable", allowModule: false, hasModule: true, wantErr: ErrConverterUnrunnable},
		{name: "absent", allowModule: true, hasModule: false, wantErr: ErrConverterNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t)

			rt := &mockRuntime{}
			rt.On("ScriptsDir", mock.Anything).Return("", errors.New("no scripts dir"))
			rt.On("HasModule", mock.Anything, "nsz").Return(tt.hasModule)
			rt.On("Executable", mock.Anything).Return("/usr/bin/python3", nil).Maybe()

			opts := defaultOptions()
			opts.AllowModule = tt.allowModule
			l := NewWithDeps(opts, e.deps(rt))

			h, err := l.Converter(testContext(t))
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, ViaModule, h.Via)
			assert.Equal(t, tt.wantPrefix, h.Prefix)

			name, args := h.Command("-D", "/games/a.nsz")
			assert.Equal(t, "/usr/bin/python3", name)
			assert.Equal(t, []string{"-m", "nsz", "-D", "/games/a.nsz"}, args)
		})
	}
}

func TestConverterOverride(t *testing.T) {
	e := newTestEnv(t)
	root := filepath.Dir(e.home)
	bin := writeFile(t, filepath.Join(root, "tools", "nsz"), "\x7fELF", 0o755)

	opts := defaultOptions()
	opts.ConverterPath = bin
	h, err := NewWithDeps(opts, e.deps(nil)).Converter(testContext(t))
	require.NoError(t, err)
	assert.Equal(t, ViaOverride, h.Via)
	assert.Equal(t, bin, h.Path)

	opts.ConverterPath = filepath.Join(root, "tools", "missing")
	_, err = NewWithDeps(opts, e.deps(nil)).Converter(testContext(t))
	assert.True(t, errors.Is(err, ErrConverterNotFound))
}

func TestKeysetPrecedence(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(t *testing.T, e *testEnv, base string)
		override   string
		wantSource string
		wantErr    bool
	}{
		{
			name: "env_beats_home",
			setup: func(t *testing.T, e *testEnv, base string) {
				e.vars["NSZ_KEYSET"] = writeFile(t, filepath.Join(e.cwd, "elsewhere", "my.keys"), "k", 0o600)
				writeFile(t, filepath.Join(e.home, ".switch", "prod.keys"), "k", 0o600)
			},
			wantSource: SourceEnv,
		},
		{
			name: "env_tilde_expanded",
			setup: func(t *testing.T, e *testEnv, base string) {
				writeFile(t, filepath.Join(e.home, "keys", "prod.keys"), "k", 0o600)
				e.vars["NSZ_KEYSET"] = "~/keys/prod.keys"
			},
			wantSource: SourceEnv,
		},
		{
			name: "missing_env_file_falls_through",
			setup: func(t *testing.T, e *testEnv, base string) {
				e.vars["NSZ_KEYSET"] = filepath.Join(e.cwd, "nope.keys")
				writeFile(t, filepath.Join(e.home, ".switch", "prod.keys"), "k", 0o600)
			},
			wantSource: SourceHome,
		},
		{
			name: "flag_beats_env",
			setup: func(t *testing.T, e *testEnv, base string) {
				e.vars["NSZ_KEYSET"] = writeFile(t, filepath.Join(e.cwd, "env.keys"), "k", 0o600)
				writeFile(t, filepath.Join(e.cwd, "flag.keys"), "k", 0o600)
			},
			override:   "flag.keys",
			wantSource: SourceFlag,
		},
		{
			name: "cwd_switch_dir",
			setup: func(t *testing.T, e *testEnv, base string) {
				writeFile(t, filepath.Join(e.cwd, ".switch", "prod.keys"), "k", 0o600)
				writeFile(t, filepath.Join(base, "keys.txt"), "k", 0o600)
			},
			wantSource: SourceWorkDir,
		},
		{
			name: "target_keys_txt",
			setup: func(t *testing.T, e *testEnv, base string) {
				writeFile(t, filepath.Join(base, "keys.txt"), "k", 0o600)
				writeFile(t, filepath.Join(e.cwd, "keys.txt"), "k", 0o600)
			},
			wantSource: SourceTarget,
		},
		{
			name: "cwd_keys_txt",
			setup: func(t *testing.T, e *testEnv, base string) {
				writeFile(t, filepath.Join(e.cwd, "keys.txt"), "k", 0o600)
			},
			wantSource: SourceWorkDirLoose,
		},
		{
			name: "directory_is_not_a_key_file",
			setup: func(t *testing.T, e *testEnv, base string) {
				require.NoError(t, os.MkdirAll(filepath.Join(e.home, ".switch", "prod.keys"), 0o755))
			},
			wantErr: true,
		},
		{
			name:    "nothing",
			setup:   func(t *testing.T, e *testEnv, base string) {},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t)
			base := filepath.Join(filepath.Dir(e.home), "games")
			require.NoError(t, os.MkdirAll(base, 0o755))
			tt.setup(t, e, base)

			opts := defaultOptions()
			if tt.override != "" {
				opts.KeyOverride = filepath.Join(e.cwd, tt.override)
			}

			km, err := NewWithDeps(opts, e.deps(nil)).Keyset(testContext(t), base)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrKeysetNotFound))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSource, km.Source)
			assert.FileExists(t, km.Path)
		})
	}
}
