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

// Package picker asks the user for a directory through whatever native
// dialog tool the desktop offers, or reports that none is available.
package picker

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

var (
	ErrUnavailable = errors.Base("no directory picker available")
	ErrCancelled   = errors.Base("directory selection cancelled")
)

const prompt = "Select the folder containing .nsz files"

// 📂 Picker returns a directory chosen by the user
type Picker interface {
	PickDirectory(ctx context.Context) (string, error)
}

// 🚫 Absent is the picker used when no dialog tool exists
type Absent struct{}

func (Absent) PickDirectory(context.Context) (string, error) {
	return "", errors.WithStack(ErrUnavailable)
}

// 🪟 Dialog runs an external dialog program that prints the chosen path
type Dialog struct {
	Name string
	Path string
	Args []string
	run  func(ctx context.Context, name string, args ...string) ([]byte, error)
}

func (d *Dialog) PickDirectory(ctx context.Context) (string, error) {
	run := d.run
	if run == nil {
		run = output
	}

	zerolog.Ctx(ctx).Debug().Str("dialog", d.Name).Msg("opening directory picker")
	out, err := run(ctx, d.Path, d.Args...)
	if err != nil {
		var ee interface{ ExitCode() int }
		if errors.As(err, &ee) && ee.ExitCode() == 1 {
			return "", errors.WithStack(ErrCancelled)
		}
		return "", errors.Errorf("running %s: %w", d.Name, err)
	}

	dir := strings.TrimSpace(string(out))
	if dir == "" {
		return "", errors.WithStack(ErrCancelled)
	}
	return filepath.Clean(dir), nil
}

func output(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

type dialogSpec struct {
	goos    string // empty matches any
	display bool   // needs an X11 or Wayland session
	name    string
	args    []string
}

var dialogs = []dialogSpec{
	{goos: "darwin", name: "osascript", args: []string{"-e", `POSIX path of (choose folder with prompt "` + prompt + `")`}},
	{goos: "windows", name: "powershell", args: []string{"-NoProfile", "-STA", "-Command",
		"Add-Type -AssemblyName System.Windows.Forms; " +
			"$d = New-Object System.Windows.Forms.FolderBrowserDialog; " +
			"$d.Description = '" + prompt + "'; " +
			"if ($d.ShowDialog() -eq 'OK') { $d.SelectedPath }"}},
	{display: true, name: "zenity", args: []string{"--file-selection", "--directory", "--title=" + prompt}},
	{display: true, name: "kdialog", args: []string{"--getexistingdirectory", ".", "--title", prompt}},
}

// 🔧 Deps are the host facts Select looks at
type Deps struct {
	GOOS     string
	LookPath func(string) (string, error)
	Getenv   func(string) string
}

// DefaultDeps returns Deps for the running process
func DefaultDeps() Deps {
	return Deps{GOOS: runtime.GOOS, LookPath: exec.LookPath, Getenv: os.Getenv}
}

// 🎯 Select returns the first dialog usable on this host, or Absent
func Select(deps Deps) Picker {
	hasDisplay := deps.Getenv("DISPLAY") != "" || deps.Getenv("WAYLAND_DISPLAY") != ""
	for _, s := range dialogs {
		if s.goos != "" && s.goos != deps.GOOS {
			continue
		}
		if s.display && (deps.GOOS == "darwin" || deps.GOOS == "windows" || !hasDisplay) {
			continue
		}
		path, err := deps.LookPath(s.name)
		if err != nil {
			continue
		}
		return &Dialog{Name: s.name, Path: path, Args: s.args}
	}
	return Absent{}
}
