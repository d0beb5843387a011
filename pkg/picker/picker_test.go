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

package picker

import (
	"context"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"
)

type exitError int

func (e exitError) Error() string { return "exit status" }
func (e exitError) ExitCode() int { return int(e) }

func lookPathOf(names ...string) func(string) (string, error) {
	return func(name string) (string, error) {
		for _, n := range names {
			if n == name {
				return "/usr/bin/" + name, nil
			}
		}
		return "", exec.ErrNotFound
	}
}

func envOf(kv map[string]string) func(string) string {
	return func(k string) string { return kv[k] }
}

func TestSelect(t *testing.T) {
	tests := []struct {
		name string
		deps Deps
		want string // dialog name, "" for Absent
	}{
		{
			name: "linux_zenity",
			deps: Deps{GOOS: "linux", LookPath: lookPathOf("zenity", "kdialog"), Getenv: envOf(map[string]string{"DISPLAY": ":0"})},
			want: "zenity",
		},
		{
			name: "linux_kdialog_on_wayland",
			deps: Deps{GOOS: "linux", LookPath: lookPathOf("kdialog"), Getenv: envOf(map[string]string{"WAYLAND_DISPLAY": "wayland-0"})},
			want: "kdialog",
		},
		{
			name: "linux_headless",
			deps: Deps{GOOS: "linux", LookPath: lookPathOf("zenity"), Getenv: envOf(nil)},
		},
		{
			name: "darwin",
			deps: Deps{GOOS: "darwin", LookPath: lookPathOf("osascript", "zenity"), Getenv: envOf(map[string]string{"DISPLAY": ":0"})},
			want: "osascript",
		},
		{
			name: "windows",
			deps: Deps{GOOS: "windows", LookPath: lookPathOf("powershell"), Getenv: envOf(nil)},
			want: "powershell",
		},
		{
			name: "nothing_installed",
			deps: Deps{GOOS: "linux", LookPath: lookPathOf(), Getenv: envOf(map[string]string{"DISPLAY": ":0"})},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Select(tt.deps)
			if tt.want == "" {
				assert.IsType(t, Absent{}, p)
				return
			}
			d, ok := p.(*Dialog)
			require.True(t, ok)
			assert.Equal(t, tt.want, d.Name)
			assert.Equal(t, "/usr/bin/"+tt.want, d.Path)
		})
	}
}

func TestDialogPickDirectory(t *testing.T) {
	tests := []struct {
		name    string
		out     string
		err     error
		want    string
		wantErr error
	}{
		{name: "chosen", out: "/games/switch\n", want: "/games/switch"},
		{name: "trailing_slash", out: "/Users/me/Games/\n", want: "/Users/me/Games"},
		{name: "empty_output", out: "\n", wantErr: ErrCancelled},
		{name: "cancel_exit", err: exitError(1), wantErr: ErrCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotArgs []string
			d := &Dialog{Name: "zenity", Path: "/usr/bin/zenity", Args: []string{"--directory"}, run: func(_ context.Context, name string, args ...string) ([]byte, error) {
				gotArgs = append([]string{name}, args...)
				return []byte(tt.out), tt.err
			}}

			got, err := d.PickDirectory(context.Background())
			assert.Equal(t, []string{"/usr/bin/zenity", "--directory"}, gotArgs)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDialogFailure(t *testing.T) {
	d := &Dialog{Name: "kdialog", Path: "/usr/bin/kdialog", run: func(context.Context, string, ...string) ([]byte, error) {
		return nil, exitError(254)
	}}
	_, err := d.PickDirectory(context.Background())
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrCancelled))
	assert.Contains(t, err.Error(), "running kdialog")
}

func TestAbsent(t *testing.T) {
	_, err := Absent{}.PickDirectory(context.Background())
	assert.True(t, errors.Is(err, ErrUnavailable))
}
