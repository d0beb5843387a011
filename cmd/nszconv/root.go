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
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/walteh/nszconv/cmd/nszconv/commands"
	"github.com/walteh/nszconv/cmd/nszconv/opts"
	"github.com/walteh/nszconv/pkg/config"
	"github.com/walteh/nszconv/pkg/log"
	"gitlab.com/tozd/go/errors"
)

// rootFlags holds the persistent flags; empty values leave the config alone
type rootFlags struct {
	configFile string
	debug      bool
	native     bool
	policy     string
	keys       string
	stash      string
	converter  string
}

func newRootCmd(o *opts.RootOpts) *cobra.Command {
	f := &rootFlags{}

	cmd := &cobra.Command{
		Use:   "nszconv [directory]",
		Short: "Convert .nsz archives to .nsp with the nsz tool",
		Long: `nszconv finds every .nsz file under a directory and decodes it to .nsp
next to the original by running the external nsz tool. Files whose .nsp
already exists are not converted again. Once a file's .nsp exists its .nsz
is moved to the stash directory (or deleted with --policy delete).

Without a directory argument a folder picker is shown when one is available.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return f.apply(cmd, o)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return commands.RunConvert(cmd.Context(), o, args)
		},
	}

	addRootFlags(cmd, f)
	cmd.AddCommand(
		commands.NewLocateCmd(o),
		newVersionCmd(),
	)
	return cmd
}

// addRootFlags adds shared flags to the root command
func addRootFlags(cmd *cobra.Command, f *rootFlags) {
	pf := cmd.PersistentFlags()
	pf.StringVarP(&f.configFile, "config", "c", "", "config file (default: ./"+config.BaseName+".{yaml,yml,hcl,json} if present)")
	pf.BoolVarP(&f.debug, "debug", "d", false, "enable debug logging")
	pf.BoolVarP(&f.native, "native-progress", "n", false, "show the converter's own progress output instead of filtered lines")
	pf.StringVar(&f.policy, "policy", "", "what to do with a source once its output exists: stash or delete")
	pf.StringVarP(&f.keys, "keys", "k", "", "key file to use, ahead of every default location")
	pf.StringVar(&f.stash, "stash", "", "stash directory for superseded sources")
	pf.StringVar(&f.converter, "converter", "", "converter executable, skipping the search")
}

// apply sets up logging, loads the config and layers the flags over it
func (f *rootFlags) apply(cmd *cobra.Command, o *opts.RootOpts) error {
	zlog := setupLogging(o.Stderr, f.debug)
	ctx := zlog.WithContext(contextOrBackground(cmd.Context()))

	o.Logger = log.New(o.Stdout, zlog)
	ctx = log.NewContext(ctx, o.Logger)
	cmd.SetContext(ctx)

	cwd, err := o.Getwd()
	if err != nil {
		return errors.Errorf("getting working directory: %w", err)
	}

	cfg, err := config.Load(ctx, f.configFile, cwd)
	if err != nil {
		return errors.Errorf("loading config: %w", err)
	}

	if f.native {
		cfg.NativeProgress = true
	}
	if f.policy != "" {
		cfg.Policy = f.policy
	}
	if f.keys != "" {
		cfg.Keys.Path = f.keys
	}
	if f.stash != "" {
		cfg.Stash = f.stash
	}
	if f.converter != "" {
		cfg.Converter.Path = f.converter
	}
	if err := cfg.Validate(); err != nil {
		return errors.Errorf("invalid flags: %w", err)
	}

	o.Config = cfg
	return nil
}

// setupLogging builds the diagnostic logger; user-facing lines go through pkg/log
func setupLogging(w io.Writer, debug bool) zerolog.Logger {
	level := zerolog.WarnLevel
	if debug {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, NoColor: !isTerminal(w)}).
		Level(level).
		With().Timestamp().Logger()
}

func contextOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
