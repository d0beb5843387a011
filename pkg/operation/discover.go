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

package operation

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// DefaultInclude matches source archives at any depth
const DefaultInclude = "**/*.nsz"

// 🔍 DiscoverOptions filters the walk. Patterns are doublestar globs
// matched against slash-separated paths relative to the root.
type DiscoverOptions struct {
	Include []string
	Exclude []string // matching directories are not descended into
}

// 🔍 Discover returns the relative paths of every regular file (or symlink to
// one) under root matching an include pattern and no exclude pattern, sorted.
// Unreadable subdirectories are logged and skipped.
func Discover(ctx context.Context, root string, opts DiscoverOptions) ([]string, error) {
	logger := zerolog.Ctx(ctx)

	include := opts.Include
	if len(include) == 0 {
		include = []string{DefaultInclude}
	}
	for _, p := range append(append([]string{}, include...), opts.Exclude...) {
		if !doublestar.ValidatePattern(p) {
			return nil, errors.Errorf("invalid pattern %q", p)
		}
	}

	var found []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			logger.Warn().Err(err).Str("path", path).Msg("skipping unreadable path")
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if path == root {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		slashed := filepath.ToSlash(rel)

		if d.IsDir() {
			if matchAny(opts.Exclude, slashed) {
				logger.Debug().Str("dir", rel).Msg("excluded directory")
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			if d.Type()&fs.ModeSymlink == 0 {
				return nil
			}
			// links to regular files count, links to directories are not followed
			fi, serr := os.Stat(path)
			if serr != nil || !fi.Mode().IsRegular() {
				logger.Debug().Str("path", rel).Msg("skipping link that is not a regular file")
				return nil
			}
		}
		if matchAny(include, slashed) && !matchAny(opts.Exclude, slashed) {
			found = append(found, rel)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Errorf("walking %s: %w", root, err)
	}

	sort.Strings(found)
	return found, nil
}

func matchAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, name); ok {
			return true
		}
	}
	return false
}

// ExcludeDir returns exclude patterns covering dir when it lies inside root,
// and nil otherwise.
func ExcludeDir(root, dir string) []string {
	if dir == "" {
		return nil
	}
	rel, err := filepath.Rel(root, dir)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil
	}
	rel = escapeMeta(filepath.ToSlash(rel))
	return []string{rel, rel + "/**"}
}

// escapeMeta quotes glob metacharacters so a literal path matches itself
func escapeMeta(s string) string {
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(`*?[]{}\`, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
