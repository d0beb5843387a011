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
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/walteh/nszconv/cmd/nszconv/commands"
	"github.com/walteh/nszconv/cmd/nszconv/opts"
	"github.com/walteh/nszconv/pkg/log"
	"golang.org/x/term"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)

	o := opts.Default()
	code := run(ctx, o, os.Args[1:])

	stop()
	os.Exit(code)
}

// run executes the CLI and returns the process exit code: 0 once a walk
// completes (even with per-file failures), 1 on configuration errors.
func run(ctx context.Context, o *opts.RootOpts, args []string) int {
	cmd := newRootCmd(o)
	cmd.SetArgs(args)
	cmd.SetOut(o.Stdout)
	cmd.SetErr(o.Stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}

	logger := o.Logger
	if logger == nil {
		logger = log.New(o.Stderr, zerolog.Nop())
	}
	logger.Error(commands.Explain(o.Config, err))
	if ctx.Err() == nil {
		fmt.Fprintln(o.Stderr, color.New(color.Faint).Sprint("run with --debug for details, or --help for usage"))
	}
	return 1
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
