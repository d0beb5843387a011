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

package commands

import (
	"context"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/walteh/nszconv/cmd/nszconv/opts"
	"github.com/walteh/nszconv/pkg/locate"
	"github.com/walteh/nszconv/pkg/provision"
	"gitlab.com/tozd/go/errors"
)

// 🔍 NewLocateCmd creates the locate command
func NewLocateCmd(o *opts.RootOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "locate [directory]",
		Short: "Show which converter and key file a run would use",
		Long: `Locate resolves everything a conversion run needs without converting anything:
1. The converter executable (override, PATH, runtime scripts dir, module)
2. The key file (--keys, $NSZ_KEYSET, ~/.switch, ./.switch, keys.txt)
3. The HOME the converter will see, staging the key file when needed
4. Where superseded sources will be stashed`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return RunLocate(cmd.Context(), o, args)
		},
	}
	return cmd
}

// RunLocate prints the resolved converter environment. Missing pieces are
// shown in the table and returned as the first configuration error.
func RunLocate(ctx context.Context, o *opts.RootOpts, args []string) error {
	cfg := o.Config
	target := ""
	if len(args) > 0 {
		t, err := ResolveTarget(ctx, o, args)
		if err != nil {
			return err
		}
		target = t
	}

	var firstErr error
	fail := func(err error) string {
		if firstErr == nil {
			firstErr = err
		}
		return "✗ " + Explain(cfg, err)
	}

	loc := locate.NewWithDeps(LocateOptions(cfg), o.LocateDeps)
	rows := [][]string{}

	if h, err := loc.Converter(ctx); err != nil {
		rows = append(rows, []string{"converter", fail(err)})
	} else {
		rows = append(rows,
			[]string{"converter", h.String()},
			[]string{"found via", h.Via.String()},
		)
	}

	if key, err := loc.Keyset(ctx, target); err != nil {
		rows = append(rows, []string{"key file", fail(err)})
	} else {
		rows = append(rows,
			[]string{"key file", key.Path},
			[]string{"key source", key.Source},
		)
		prov := provision.NewWithDeps(provision.Options{KeyDir: cfg.Keys.Dir, KeyFile: cfg.Keys.File}, o.ProvisionDeps)
		env, err := prov.Provision(ctx, key)
		if err != nil {
			rows = append(rows, []string{"converter HOME", fail(errors.Errorf("preparing key material: %w", err))})
		} else {
			rows = append(rows,
				[]string{"converter HOME", env.Home},
				[]string{"key staged", strconv.FormatBool(env.Staged)},
			)
		}
	}

	if dir, err := StashDir(o); err == nil {
		rows = append(rows, []string{"stash", dir})
	}
	rows = append(rows, []string{"policy", cfg.Policy})
	if path := cfg.Location(); path != "" {
		rows = append(rows, []string{"config", path})
	}

	if err := o.Logger.Table(rows); err != nil {
		return err
	}
	return firstErr
}
