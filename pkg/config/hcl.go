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
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"gitlab.com/tozd/go/errors"
)

func init() {
	Register(&HCLParser{})
}

// 🔧 HCLParser implements the Parser interface for HCL files.
// Expressions can read the process environment as env.NAME.
type HCLParser struct {
	Environ func() []string
}

// 🔍 CanParse checks if this parser can handle the given file
func (p *HCLParser) CanParse(filename string) bool {
	return strings.HasSuffix(strings.ToLower(filename), ".hcl")
}

// 📝 Parse parses the config from HCL
func (p *HCLParser) Parse(ctx context.Context, data []byte) (*Config, error) {
	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCL(data, BaseName+".hcl")
	if diags.HasErrors() {
		return nil, errors.Errorf("parsing HCL: %s", diags.Error())
	}

	environ := p.Environ
	if environ == nil {
		environ = os.Environ
	}
	evalCtx := &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"env": envObject(environ()),
		},
	}

	// every attribute is optional and overlays the defaults
	type hclConfig struct {
		Converter *struct {
			Tool        *string `hcl:"tool,optional"`
			Module      *string `hcl:"module,optional"`
			Path        *string `hcl:"path,optional"`
			DecodeFlag  *string `hcl:"decode_flag,optional"`
			Marker      *string `hcl:"marker,optional"`
			AllowModule *bool   `hcl:"allow_module,optional"`
		} `hcl:"converter,block"`
		Keys *struct {
			Path     *string `hcl:"path,optional"`
			Env      *string `hcl:"env,optional"`
			Dir      *string `hcl:"dir,optional"`
			File     *string `hcl:"file,optional"`
			Fallback *string `hcl:"fallback,optional"`
		} `hcl:"keys,block"`
		SourceExt      *string  `hcl:"source_ext,optional"`
		OutputExt      *string  `hcl:"output_ext,optional"`
		Stash          *string  `hcl:"stash,optional"`
		Policy         *string  `hcl:"policy,optional"`
		NativeProgress *bool    `hcl:"native_progress,optional"`
		Exclude        []string `hcl:"exclude,optional"`
	}

	var hclCfg hclConfig
	diags = gohcl.DecodeBody(hclFile.Body, evalCtx, &hclCfg)
	if diags.HasErrors() {
		return nil, errors.Errorf("decoding HCL: %s", diags.Error())
	}

	cfg := Default()
	if c := hclCfg.Converter; c != nil {
		set(&cfg.Converter.Tool, c.Tool)
		set(&cfg.Converter.Module, c.Module)
		set(&cfg.Converter.Path, c.Path)
		set(&cfg.Converter.DecodeFlag, c.DecodeFlag)
		set(&cfg.Converter.Marker, c.Marker)
		set(&cfg.Converter.AllowModule, c.AllowModule)
	}
	if k := hclCfg.Keys; k != nil {
		set(&cfg.Keys.Path, k.Path)
		set(&cfg.Keys.Env, k.Env)
		set(&cfg.Keys.Dir, k.Dir)
		set(&cfg.Keys.File, k.File)
		set(&cfg.Keys.Fallback, k.Fallback)
	}
	set(&cfg.SourceExt, hclCfg.SourceExt)
	set(&cfg.OutputExt, hclCfg.OutputExt)
	set(&cfg.Stash, hclCfg.Stash)
	set(&cfg.Policy, hclCfg.Policy)
	set(&cfg.NativeProgress, hclCfg.NativeProgress)
	if hclCfg.Exclude != nil {
		cfg.Exclude = hclCfg.Exclude
	}

	return cfg, nil
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

// envObject exposes KEY=VALUE pairs as a cty object
func envObject(environ []string) cty.Value {
	vals := make(map[string]cty.Value, len(environ))
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		vals[k] = cty.StringVal(v)
	}
	if len(vals) == 0 {
		return cty.EmptyObjectVal
	}
	return cty.ObjectVal(vals)
}
