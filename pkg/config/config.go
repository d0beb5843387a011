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

package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/walteh/nszconv/pkg/operation"
	"gitlab.com/tozd/go/errors"
)

// 🔌 Parser is the interface for config parsers
type Parser interface {
	// 📝 Parse parses the config from bytes, on top of Default()
	Parse(ctx context.Context, data []byte) (*Config, error)

	// 🔍 CanParse checks if this parser can handle the given file
	CanParse(filename string) bool
}

var (
	// 🗺️ parsers is a list of available parsers
	parsers []Parser
)

// 📝 Register registers a parser
func Register(p Parser) {
	parsers = append(parsers, p)
}

// 🎯 GetParser returns a parser that can handle the given file
func GetParser(filename string) Parser {
	for _, p := range parsers {
		if p.CanParse(filename) {
			return p
		}
	}
	return nil
}

// BaseName is the stem of the config files Find looks for
const BaseName = ".nszconv"

// 🔧 Converter describes the external decoder
type Converter struct {
	Tool        string `json:"tool" yaml:"tool"`                 // executable name searched on PATH
	Module      string `json:"module" yaml:"module"`             // importable module for the -m fallback
	Path        string `json:"path" yaml:"path"`                 // explicit executable, skips the search
	DecodeFlag  string `json:"decode_flag" yaml:"decode_flag"`   // flag that selects decoding
	Marker      string `json:"marker" yaml:"marker"`             // prefix of progress lines worth echoing
	AllowModule bool   `json:"allow_module" yaml:"allow_module"` // permit `python -m <module>`
}

// 🔑 Keys describes where key material is looked up
type Keys struct {
	Path     string `json:"path" yaml:"path"`         // explicit key file, wins over everything
	Env      string `json:"env" yaml:"env"`           // environment variable holding a key path
	Dir      string `json:"dir" yaml:"dir"`           // per-user / per-cwd key directory
	File     string `json:"file" yaml:"file"`         // key file name inside Dir
	Fallback string `json:"fallback" yaml:"fallback"` // loose key file name
}

// 📚 Config represents the complete configuration
type Config struct {
	Converter      Converter `json:"converter" yaml:"converter"`
	Keys           Keys      `json:"keys" yaml:"keys"`
	SourceExt      string    `json:"source_ext" yaml:"source_ext"`
	OutputExt      string    `json:"output_ext" yaml:"output_ext"`
	Stash          string    `json:"stash" yaml:"stash"`   // relative paths resolve against the working directory
	Policy         string    `json:"policy" yaml:"policy"` // stash or delete
	NativeProgress bool      `json:"native_progress" yaml:"native_progress"`
	Exclude        []string  `json:"exclude" yaml:"exclude"` // extra doublestar patterns

	location string
}

// 🏭 Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Converter: Converter{
			Tool:        "nsz",
			Module:      "nsz",
			DecodeFlag:  "-D",
			Marker:      "Decompress",
			AllowModule: true,
		},
		Keys: Keys{
			Env:      "NSZ_KEYSET",
			Dir:      ".switch",
			File:     "prod.keys",
			Fallback: "keys.txt",
		},
		SourceExt: ".nsz",
		OutputExt: ".nsp",
		Stash:     ".stash",
		Policy:    string(operation.PolicyStash),
	}
}

// Location is the file the config was read from, empty for defaults
func (cfg *Config) Location() string {
	return cfg.location
}

// IncludePattern is the discovery glob for source files
func (cfg *Config) IncludePattern() string {
	return "**/*" + cfg.SourceExt
}

// 🔍 Find returns the first config file in dir, or "" when there is none
func Find(dir string) string {
	for _, ext := range []string{".yaml", ".yml", ".hcl", ".json"} {
		p := filepath.Join(dir, BaseName+ext)
		if fi, err := os.Stat(p); err == nil && fi.Mode().IsRegular() {
			return p
		}
	}
	return ""
}

// 🎯 Load reads path, or the config file Find locates in dir when path is
// empty. With neither, the defaults are returned.
func Load(ctx context.Context, path, dir string) (*Config, error) {
	logger := zerolog.Ctx(ctx)

	if path == "" {
		path = Find(dir)
	}
	if path == "" {
		logger.Debug().Str("dir", dir).Msg("no config file, using defaults")
		cfg := Default()
		return cfg, cfg.Validate()
	}
	return LoadFile(ctx, path)
}

// 🎯 LoadFile loads the configuration from a file
func LoadFile(ctx context.Context, path string) (*Config, error) {
	logger := zerolog.Ctx(ctx)
	logger.Debug().Str("path", path).Msg("loading configuration")

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Errorf("reading config file: %w", err)
	}

	p := GetParser(path)
	if p == nil {
		return nil, errors.Errorf("no parser found for file: %s", path)
	}

	cfg, err := p.Parse(ctx, data)
	if err != nil {
		return nil, errors.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Errorf("validating config %s: %w", path, err)
	}
	cfg.location = path

	return cfg, nil
}

// 🔍 Validate checks the configuration and normalizes extensions and policy
func (cfg *Config) Validate() error {
	if cfg.Converter.Tool == "" && cfg.Converter.Path == "" {
		return errors.Errorf("converter.tool or converter.path is required")
	}
	if cfg.Converter.DecodeFlag == "" {
		return errors.Errorf("converter.decode_flag is required")
	}
	if cfg.Keys.Dir == "" || cfg.Keys.File == "" {
		return errors.Errorf("keys.dir and keys.file are required")
	}
	if cfg.Stash == "" {
		return errors.Errorf("stash is required")
	}

	cfg.SourceExt = normalizeExt(cfg.SourceExt)
	cfg.OutputExt = normalizeExt(cfg.OutputExt)
	if cfg.SourceExt == "" || cfg.OutputExt == "" {
		return errors.Errorf("source_ext and output_ext are required")
	}
	if strings.EqualFold(cfg.SourceExt, cfg.OutputExt) {
		return errors.Errorf("source_ext and output_ext must differ, both are %q", cfg.SourceExt)
	}

	p, err := operation.ParsePolicy(cfg.Policy)
	if err != nil {
		return err
	}
	cfg.Policy = string(p)

	return nil
}

func normalizeExt(ext string) string {
	ext = strings.TrimSpace(ext)
	if ext == "" || strings.HasPrefix(ext, ".") {
		return ext
	}
	return "." + ext
}
