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

/*
Package config loads nszconv settings.

🎯 Purpose:
- Supplies defaults for every knob (converter, keys, extensions, stash, policy)
- Overlays an optional .nszconv.{yaml,yml,hcl,json} file on top of them
- Validates and normalizes the result

🔄 Flow:
1. Load finds the file (explicit path, else Find in the working directory)
2. GetParser picks a parser by extension from the registry
3. The parser decodes over Default(), so absent keys keep their defaults
4. Validate normalizes extensions and the disposal policy

🔌 Formats:
- YAML: unknown keys are rejected
- JSON: unknown fields are rejected
- HCL: attributes may reference the environment, e.g. "${env.HOME}/stash"

🔍 Example (.nszconv.hcl):

	policy = "stash"
	stash  = "${env.HOME}/nsz-stash"

	converter {
	  path = "/opt/nsz/bin/nsz"
	}

	keys {
	  path = "${env.HOME}/.switch/prod.keys"
	}

Command-line flags take precedence over anything loaded here.
*/
package config
