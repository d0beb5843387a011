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
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/walteh/nszconv/cmd/nszconv/opts"
	"github.com/walteh/nszconv/pkg/config"
	"github.com/walteh/nszconv/pkg/locate"
	"github.com/walteh/nszconv/pkg/picker"
	"github.com/walteh/nszconv/pkg/provision"
	"gitlab.com/tozd/go/errors"
)

// ErrNoDirectory means no target was given and none could be picked
var ErrNoDirectory = errors.Base("no directory given")

// 📦 Setup is everything resolved once before a batch starts
type Setup struct {
	Target   string
	Handle   locate.ConverterHandle
	Key      locate.KeyMaterial
	Env      provision.EnvironmentConfig
	StashDir string
	KeyStage string // <child HOME>/<keys.dir>, excluded from discovery
}

// LocateOptions maps the configuration onto locator options
func LocateOptions(cfg *config.Config) locate.Options {
	return locate.Options{
		Tool:            cfg.Converter.Tool,
		Module:          cfg.Converter.Module,
		AllowModule:     cfg.Converter.AllowModule,
		ConverterPath:   cfg.Converter.Path,
		KeyOverride:     cfg.Keys.Path,
		KeyEnv:          cfg.Keys.Env,
		KeyDir:          cfg.Keys.Dir,
		KeyFile:         cfg.Keys.File,
		FallbackKeyFile: cfg.Keys.Fallback,
	}
}

// 📂 ResolveTarget returns the absolute target directory from args, falling
// back to the interactive picker
func ResolveTarget(ctx context.Context, o *opts.RootOpts, args []string) (string, error) {
	var dir string
	if len(args) > 0 && args[0] != "" {
		dir = args[0]
	} else {
		p := o.Picker
		if p == nil {
			p = picker.Absent{}
		}
		picked, err := p.PickDirectory(ctx)
		if err != nil {
			if errors.Is(err, picker.ErrUnavailable) || errors.Is(err, picker.ErrCancelled) {
				return "", errors.Errorf("%w: pass the folder containing .nsz files, e.g. nszconv /path/to/games", ErrNoDirectory)
			}
			return "", err
		}
		dir = picked
	}

	cwd, err := o.Getwd()
	if err != nil {
		return "", errors.Errorf("getting working directory: %w", err)
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(cwd, dir)
	}
	dir = filepath.Clean(dir)

	fi, err := os.Stat(dir)
	if err != nil {
		return "", errors.Errorf("%w: %s", ErrNoDirectory, err)
	}
	if !fi.IsDir() {
		return "", errors.Errorf("%w: %s is not a directory", ErrNoDirectory, dir)
	}
	return dir, nil
}

// StashDir resolves the configured stash directory against the working directory
func StashDir(o *opts.RootOpts) (string, error) {
	dir := o.Config.Stash
	if dir == "~" || strings.HasPrefix(dir, "~/") || strings.HasPrefix(dir, `~\`) {
		home, err := o.HomeDir()
		if err != nil {
			return "", errors.Errorf("expanding %s: %w", dir, err)
		}
		dir = filepath.Join(home, dir[1:])
	}
	if filepath.IsAbs(dir) {
		return filepath.Clean(dir), nil
	}
	cwd, err := o.Getwd()
	if err != nil {
		return "", errors.Errorf("getting working directory: %w", err)
	}
	return filepath.Join(cwd, dir), nil
}

// 🔍 Resolve finds the converter and key material and provisions the child
// environment. Any error here is a configuration error for the whole run.
func Resolve(ctx context.Context, o *opts.RootOpts, target string) (*Setup, error) {
	cfg := o.Config
	loc := locate.NewWithDeps(LocateOptions(cfg), o.LocateDeps)

	h, err := loc.Converter(ctx)
	if err != nil {
		return nil, err
	}

	key, err := loc.Keyset(ctx, target)
	if err != nil {
		return nil, err
	}

	prov := provision.NewWithDeps(provision.Options{KeyDir: cfg.Keys.Dir, KeyFile: cfg.Keys.File}, o.ProvisionDeps)
	env, err := prov.Provision(ctx, key)
	if err != nil {
		return nil, errors.Errorf("preparing key material: %w", err)
	}

	stashDir, err := StashDir(o)
	if err != nil {
		return nil, err
	}

	zerolog.Ctx(ctx).Debug().
		Str("converter", h.String()).
		Str("via", h.Via.String()).
		Str("key", key.Path).
		Str("key_source", key.Source).
		Str("home", env.Home).
		Bool("staged", env.Staged).
		Msg("resolved converter environment")

	return &Setup{
		Target:   target,
		Handle:   h,
		Key:      key,
		Env:      env,
		StashDir: stashDir,
		KeyStage: filepath.Join(env.Home, cfg.Keys.Dir),
	}, nil
}

// 💬 Explain turns configuration errors into advice for the user
func Explain(cfg *config.Config, err error) string {
	if cfg == nil {
		cfg = config.Default()
	}
	switch {
	case errors.Is(err, locate.ErrConverterUnrunnable):
		return fmt.Sprintf("the %s module is installed but has no runnable command; reinstall it with `pip install --force-reinstall %s`", cfg.Converter.Module, cfg.Converter.Module)
	case errors.Is(err, locate.ErrConverterNotFound):
		if cfg.Converter.Path != "" {
			return fmt.Sprintf("the configured converter %s cannot be run; check the path or its interpreter", cfg.Converter.Path)
		}
		return fmt.Sprintf("%s was not found; install it with `pip install %s`", cfg.Converter.Tool, cfg.Converter.Module)
	case errors.Is(err, locate.ErrKeysetNotFound):
		return fmt.Sprintf("no key file found; put %s in ~/%s/, set %s, or pass --keys",
			cfg.Keys.File, cfg.Keys.Dir, cfg.Keys.Env)
	}
	return err.Error()
}
