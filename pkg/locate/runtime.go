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
	"bytes"
	"context"
	"os/exec"
	"strings"
	"sync"

	"gitlab.com/tozd/go/errors"
)

// 🐍 Runtime is the scripting runtime the converter is distributed for
type Runtime interface {
	// Executable returns the interpreter used for module invocation
	Executable(ctx context.Context) (string, error)
	// ScriptsDir returns the directory console scripts are installed into
	ScriptsDir(ctx context.Context) (string, error)
	// HasModule reports whether module is importable
	HasModule(ctx context.Context, module string) bool
}

// PythonRuntime probes a Python interpreter found on PATH
type PythonRuntime struct {
	Names    []string
	LookPath func(string) (string, error)
	Output   func(ctx context.Context, name string, args ...string) ([]byte, error)

	once sync.Once
	exe  string
	err  error
}

// 🏭 NewPythonRuntime looks for python3, then python
func NewPythonRuntime() *PythonRuntime {
	return &PythonRuntime{
		Names:    []string{"python3", "python"},
		LookPath: exec.LookPath,
		Output: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).Output()
		},
	}
}

func (p *PythonRuntime) Executable(ctx context.Context) (string, error) {
	p.once.Do(func() {
		for _, n := range p.Names {
			if exe, err := p.LookPath(n); err == nil {
				p.exe = exe
				return
			}
		}
		p.err = errors.Errorf("no python interpreter in PATH (tried %s)", strings.Join(p.Names, ", "))
	})
	return p.exe, p.err
}

func (p *PythonRuntime) ScriptsDir(ctx context.Context) (string, error) {
	exe, err := p.Executable(ctx)
	if err != nil {
		return "", err
	}
	out, err := p.Output(ctx, exe, "-c", "import sysconfig; print(sysconfig.get_path('scripts'))")
	if err != nil {
		return "", errors.Errorf("querying scripts dir: %w", err)
	}
	return string(bytes.TrimSpace(out)), nil
}

func (p *PythonRuntime) HasModule(ctx context.Context, module string) bool {
	exe, err := p.Executable(ctx)
	if err != nil {
		return false
	}
	script := "import importlib.util, sys; sys.exit(0 if importlib.util.find_spec(sys.argv[1]) else 1)"
	_, err = p.Output(ctx, exe, "-c", script, module)
	return err == nil
}
