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

package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/nszconv/cmd/nszconv/opts"
	"github.com/walteh/nszconv/pkg/picker"
	"github.com/walteh/nszconv/pkg/testutils"
)

func testOpts(w *testutils.Workspace, runner *testutils.FakeRunner) (*opts.RootOpts, *bytes.Buffer, *bytes.Buffer) {
	var stdout, stderr bytes.Buffer
	return &opts.RootOpts{
		Stdout:        &stdout,
		Stderr:        &stderr,
		Getwd:         w.Getwd,
		HomeDir:       w.HomeDir,
		Picker:        picker.Absent{},
		LocateDeps:    w.LocateDeps(),
		ProvisionDeps: w.ProvisionDeps(),
		Runner:        runner,
	}, &stdout, &stderr
}

func TestRun(t *testing.T) {
	color.NoColor = true
	defer func() { color.NoColor = false }()

	tests := []struct {
		name     string
		setup    func(w *testutils.Workspace) []string
		wantCode int
		check    func(t *testing.T, w *testutils.Workspace, runner *testutils.FakeRunner, stdout, stderr string)
	}{
		{
			name: "converts_and_stashes",
			setup: func(w *testutils.Workspace) []string {
				w.UserKey()
				w.Write(filepath.Join(w.Games, "a.nsz"), "A")
				return []string{w.Games}
			},
			check: func(t *testing.T, w *testutils.Workspace, runner *testutils.FakeRunner, stdout, stderr string) {
				assert.Len(t, runner.Inputs(), 1)
				assert.FileExists(t, filepath.Join(w.Cwd, ".stash", "a.nsz"))
				assert.Contains(t, stdout, "converted")
			},
		},
		{
			name: "flags_override_config",
			setup: func(w *testutils.Workspace) []string {
				w.Write(filepath.Join(w.Cwd, ".nszconv.yaml"), "policy: stash\nstash: elsewhere\n")
				key := w.Write(filepath.Join(w.Root, "my.keys"), "k")
				w.Write(filepath.Join(w.Games, "a.nsz"), "A")
				return []string{"--policy", "delete", "--keys", key, w.Games}
			},
			check: func(t *testing.T, w *testutils.Workspace, runner *testutils.FakeRunner, stdout, stderr string) {
				assert.NoFileExists(t, filepath.Join(w.Games, "a.nsz"))
				assert.NoDirExists(t, filepath.Join(w.Cwd, "elsewhere"))
				assert.Equal(t, "k", w.Read(filepath.Join(w.Cwd, ".switch", "prod.keys")))
			},
		},
		{
			name: "yaml_config_stash",
			setup: func(w *testutils.Workspace) []string {
				w.UserKey()
				w.Write(filepath.Join(w.Cwd, ".nszconv.yaml"), "stash: archive\n")
				w.Write(filepath.Join(w.Games, "a.nsz"), "A")
				return []string{w.Games}
			},
			check: func(t *testing.T, w *testutils.Workspace, runner *testutils.FakeRunner, stdout, stderr string) {
				assert.FileExists(t, filepath.Join(w.Cwd, "archive", "a.nsz"))
			},
		},
		{
			name: "per_file_failure_still_exits_zero",
			setup: func(w *testutils.Workspace) []string {
				w.UserKey()
				w.Write(filepath.Join(w.Games, "bad.nsz"), "X")
				return []string{w.Games}
			},
			check: func(t *testing.T, w *testutils.Workspace, runner *testutils.FakeRunner, stdout, stderr string) {
				assert.FileExists(t, filepath.Join(w.Games, "bad.nsz"))
				assert.Contains(t, stdout, "failed")
			},
		},
		{
			name: "missing_keys_exits_nonzero",
			setup: func(w *testutils.Workspace) []string {
				w.Write(filepath.Join(w.Games, "a.nsz"), "A")
				return []string{w.Games}
			},
			wantCode: 1,
			check: func(t *testing.T, w *testutils.Workspace, runner *testutils.FakeRunner, stdout, stderr string) {
				assert.Empty(t, runner.Inputs())
				assert.Contains(t, stdout, "no key file found")
			},
		},
		{
			name: "no_directory_and_no_picker",
			setup: func(w *testutils.Workspace) []string {
				w.UserKey()
				return nil
			},
			wantCode: 1,
			check: func(t *testing.T, w *testutils.Workspace, runner *testutils.FakeRunner, stdout, stderr string) {
				assert.Contains(t, stdout, "no directory given")
			},
		},
		{
			name: "bad_policy_flag",
			setup: func(w *testutils.Workspace) []string {
				return []string{"--policy", "shred", w.Games}
			},
			wantCode: 1,
			check: func(t *testing.T, w *testutils.Workspace, runner *testutils.FakeRunner, stdout, stderr string) {
				assert.Contains(t, stdout, "unknown disposal policy")
			},
		},
		{
			name: "too_many_args",
			setup: func(w *testutils.Workspace) []string {
				return []string{"a", "b"}
			},
			wantCode: 1,
			check: func(t *testing.T, w *testutils.Workspace, runner *testutils.FakeRunner, stdout, stderr string) {
				assert.Contains(t, stderr, "accepts at most 1 arg")
			},
		},
		{
			name: "version_ignores_broken_config",
			setup: func(w *testutils.Workspace) []string {
				w.Write(filepath.Join(w.Cwd, ".nszconv.yaml"), "nonsense: [\n")
				return []string{"version"}
			},
			check: func(t *testing.T, w *testutils.Workspace, runner *testutils.FakeRunner, stdout, stderr string) {
				assert.Contains(t, stdout, "nszconv")
				assert.Contains(t, stdout, "Go:")
			},
		},
		{
			name: "locate",
			setup: func(w *testutils.Workspace) []string {
				w.UserKey()
				return []string{"locate"}
			},
			check: func(t *testing.T, w *testutils.Workspace, runner *testutils.FakeRunner, stdout, stderr string) {
				assert.Contains(t, stdout, filepath.Join(w.Bin, "nsz"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := testutils.NewWorkspace(t)
			runner := &testutils.FakeRunner{Fail: map[string]error{"bad.nsz": assert.AnError}}
			o, stdout, stderr := testOpts(w, runner)

			args := tt.setup(w)
			code := run(testutils.Context(t), o, args)

			require.Equal(t, tt.wantCode, code, "stdout:\n%s\nstderr:\n%s", stdout, stderr)
			if tt.check != nil {
				tt.check(t, w, runner, stdout.String(), stderr.String())
			}
		})
	}
}

func TestVersionInfo(t *testing.T) {
	info := GetVersionInfo()
	assert.NotEmpty(t, info.Version)
	assert.NotEmpty(t, info.GoVersion)

	info.Revision = ""
	info.Modified = true
	assert.Contains(t, info.String(), "unknown (modified)")
}
