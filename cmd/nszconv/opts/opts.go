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

package opts

import (
	"io"
	"os"

	"github.com/walteh/nszconv/pkg/config"
	"github.com/walteh/nszconv/pkg/convert"
	"github.com/walteh/nszconv/pkg/locate"
	"github.com/walteh/nszconv/pkg/log"
	"github.com/walteh/nszconv/pkg/picker"
	"github.com/walteh/nszconv/pkg/provision"
	"golang.org/x/term"
)

// 🎯 RootOpts contains shared dependencies for all commands. Config and
// Logger are filled in once flags are parsed.
type RootOpts struct {
	Config *config.Config
	Logger *log.Logger

	Stdout    io.Writer
	Stderr    io.Writer
	StderrTTY bool // draw the live elapsed indicator

	Getwd         func() (string, error)
	HomeDir       func() (string, error)
	Picker        picker.Picker
	LocateDeps    locate.Deps
	ProvisionDeps provision.Deps
	Runner        convert.Runner
}

// 🏭 Default wires RootOpts to the real process
func Default() *RootOpts {
	return &RootOpts{
		Stdout:        os.Stdout,
		Stderr:        os.Stderr,
		StderrTTY:     term.IsTerminal(int(os.Stderr.Fd())),
		Getwd:         os.Getwd,
		HomeDir:       os.UserHomeDir,
		Picker:        picker.Select(picker.DefaultDeps()),
		LocateDeps:    locate.DefaultDeps(),
		ProvisionDeps: provision.DefaultDeps(),
		Runner:        convert.ExecRunner{},
	}
}
