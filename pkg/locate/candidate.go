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
	"os"
	"path/filepath"
	"strings"
)

// 🎯 Candidate is one place a resource may live
type Candidate struct {
	Name string // where the candidate came from (env, home, cwd, ...)
	Path string
}

// 🔍 Predicate reports whether a candidate path is usable
type Predicate func(path string) bool

// 🎯 FirstMatch returns the first candidate accepted by ok, in order.
// Candidates with an empty path are skipped.
func FirstMatch(candidates []Candidate, ok Predicate) (Candidate, bool) {
	for _, c := range candidates {
		if c.Path == "" {
			continue
		}
		if ok(c.Path) {
			return c, true
		}
	}
	return Candidate{}, false
}

// 📄 isRegularFile is the default existence predicate for key material
func isRegularFile(stat func(string) (os.FileInfo, error)) Predicate {
	return func(path string) bool {
		fi, err := stat(path)
		if err != nil {
			return false
		}
		return fi.Mode().IsRegular()
	}
}

// 🏠 expandHome expands a leading ~ to home
func expandHome(path, home string) string {
	if home == "" {
		return path
	}
	if path == "~" {
		return home
	}
	if strings.HasPrefix(path, "~/") || strings.HasPrefix(path, `~\`) {
		return filepath.Join(home, path[2:])
	}
	return path
}
