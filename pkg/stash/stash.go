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

// Package stash moves superseded source files into a stash directory,
// keeping their relative layout and never overwriting an existing file.
package stash

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// maxDup bounds the .dupN search
const maxDup = 10000

// 📦 Entry records where a source file went
type Entry struct {
	From string
	To   string
	Dup  int // N of the .dupN suffix, 0 when the plain name was free
}

// 🗄️ Stasher moves files under a stash root
type Stasher struct {
	root   string
	link   func(oldname, newname string) error
	rename func(oldname, newname string) error
	lstat  func(name string) (os.FileInfo, error)
	remove func(name string) error
}

// 🏭 New creates a stasher rooted at root
func New(root string) *Stasher {
	return &Stasher{
		root:   filepath.Clean(root),
		link:   os.Link,
		rename: os.Rename,
		lstat:  os.Lstat,
		remove: os.Remove,
	}
}

// Root returns the stash directory
func (s *Stasher) Root() string {
	return s.root
}

// 🚚 Move relocates src to <root>/<rel>. When that name is taken the file
// becomes name.dup1.ext, name.dup2.ext, ... up to the first free name.
func (s *Stasher) Move(ctx context.Context, src, rel string) (Entry, error) {
	base := filepath.Join(s.root, filepath.Clean(rel))
	if err := os.MkdirAll(filepath.Dir(base), 0o755); err != nil {
		return Entry{}, errors.Errorf("creating stash directory: %w", err)
	}

	for n := 0; n < maxDup; n++ {
		dst := DupName(base, n)
		if _, err := s.lstat(dst); err == nil {
			continue
		} else if !os.IsNotExist(err) {
			return Entry{}, errors.Errorf("checking %s: %w", dst, err)
		}

		err := s.place(src, dst)
		if errors.Is(err, fs.ErrExist) {
			// taken between the check and the move
			continue
		}
		if err != nil {
			return Entry{}, errors.Errorf("moving %s to stash: %w", src, err)
		}

		zerolog.Ctx(ctx).Debug().Str("from", src).Str("to", dst).Int("dup", n).Msg("stashed")
		return Entry{From: src, To: dst, Dup: n}, nil
	}
	return Entry{}, errors.Errorf("no free stash name for %s after %d attempts", base, maxDup)
}

// place moves src to dst without replacing an existing dst. A hard link is
// tried first because it fails on an existing name; filesystems without
// links fall back to a re-checked rename, and cross-device moves to an
// exclusive-create copy.
func (s *Stasher) place(src, dst string) error {
	err := s.link(src, dst)
	if err == nil {
		if rerr := s.remove(src); rerr != nil {
			_ = s.remove(dst)
			return errors.Errorf("removing source after link: %w", rerr)
		}
		return nil
	}
	if errors.Is(err, fs.ErrExist) {
		return err
	}

	if _, serr := s.lstat(dst); serr == nil {
		return fs.ErrExist
	}
	err = s.rename(src, dst)
	if err == nil {
		return nil
	}
	if !isEXDEV(err) {
		return err
	}

	if err := copyExclusive(src, dst); err != nil {
		return err
	}
	if err := s.remove(src); err != nil {
		_ = s.remove(dst)
		return errors.Errorf("removing source after copy: %w", err)
	}
	return nil
}

// copyExclusive copies src to a dst that must not exist yet
func copyExclusive(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	fi, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, fi.Mode().Perm())
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = out.Close()
			_ = os.Remove(dst)
		}
	}()

	if _, err = io.Copy(out, in); err != nil {
		return err
	}
	if err = out.Sync(); err != nil {
		return err
	}
	if err = out.Close(); err != nil {
		return err
	}
	return os.Chtimes(dst, fi.ModTime(), fi.ModTime())
}

// 🏷️ DupName returns path with a .dupN suffix before its extension (n > 0)
func DupName(path string, n int) string {
	if n <= 0 {
		return path
	}
	ext := filepath.Ext(path)
	return fmt.Sprintf("%s.dup%d%s", strings.TrimSuffix(path, ext), n, ext)
}
