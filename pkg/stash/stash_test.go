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

package stash

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"syscall"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"
)

func testContext(t *testing.T) context.Context {
	return zerolog.New(zerolog.NewTestWriter(t)).WithContext(context.Background())
}

func write(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func read(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

func TestDupName(t *testing.T) {
	tests := []struct {
		path string
		n    int
		want string
	}{
		{path: "/s/a.nsz", n: 0, want: "/s/a.nsz"},
		{path: "/s/a.nsz", n: 1, want: "/s/a.dup1.nsz"},
		{path: "/s/sub/game v1.2.nsz", n: 12, want: "/s/sub/game v1.2.dup12.nsz"},
		{path: "/s/noext", n: 2, want: "/s/noext.dup2"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DupName(tt.path, tt.n))
	}
}

func TestMovePreservesRelativePath(t *testing.T) {
	dir := t.TempDir()
	src := write(t, filepath.Join(dir, "games", "sub", "a.nsz"), "A")

	s := New(filepath.Join(dir, ".stash"))
	e, err := s.Move(testContext(t), src, filepath.Join("sub", "a.nsz"))
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, ".stash", "sub", "a.nsz"), e.To)
	assert.Equal(t, 0, e.Dup)
	assert.NoFileExists(t, src)
	assert.Equal(t, "A", read(t, e.To))
}

func TestMoveCollisionsNeverOverwrite(t *testing.T) {
	dir := t.TempDir()
	s := New(filepath.Join(dir, ".stash"))
	ctx := testContext(t)

	var got []Entry
	for _, content := range []string{"first", "second", "third"} {
		src := write(t, filepath.Join(dir, "games", "x.nsz"), content)
		e, err := s.Move(ctx, src, "x.nsz")
		require.NoError(t, err)
		got = append(got, e)
	}

	assert.Equal(t, filepath.Join(dir, ".stash", "x.nsz"), got[0].To)
	assert.Equal(t, filepath.Join(dir, ".stash", "x.dup1.nsz"), got[1].To)
	assert.Equal(t, filepath.Join(dir, ".stash", "x.dup2.nsz"), got[2].To)

	assert.Equal(t, "first", read(t, got[0].To))
	assert.Equal(t, "second", read(t, got[1].To))
	assert.Equal(t, "third", read(t, got[2].To))
}

func TestMoveWithoutHardLinks(t *testing.T) {
	dir := t.TempDir()
	s := New(filepath.Join(dir, ".stash"))
	s.link = func(string, string) error { return &os.LinkError{Op: "link", Err: syscall.EPERM} }

	write(t, filepath.Join(dir, ".stash", "a.nsz"), "old")
	src := write(t, filepath.Join(dir, "a.nsz"), "new")

	e, err := s.Move(testContext(t), src, "a.nsz")
	require.NoError(t, err)
	assert.Equal(t, 1, e.Dup)
	assert.Equal(t, "old", read(t, filepath.Join(dir, ".stash", "a.nsz")))
	assert.Equal(t, "new", read(t, e.To))
	assert.NoFileExists(t, src)
}

func TestMoveAcrossDevices(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("EXDEV is reported as ERROR_NOT_SAME_DEVICE on windows")
	}
	dir := t.TempDir()
	s := New(filepath.Join(dir, ".stash"))
	s.link = func(o, n string) error { return &os.LinkError{Op: "link", Old: o, New: n, Err: syscall.EXDEV} }
	s.rename = func(o, n string) error { return &os.LinkError{Op: "rename", Old: o, New: n, Err: syscall.EXDEV} }

	src := write(t, filepath.Join(dir, "b.nsz"), "payload")

	e, err := s.Move(testContext(t), src, "b.nsz")
	require.NoError(t, err)
	assert.Equal(t, "payload", read(t, e.To))
	assert.NoFileExists(t, src)
}

func TestMoveRenameFailureKeepsSource(t *testing.T) {
	dir := t.TempDir()
	s := New(filepath.Join(dir, ".stash"))
	s.link = func(string, string) error { return &os.LinkError{Op: "link", Err: syscall.EPERM} }
	s.rename = func(string, string) error { return os.ErrPermission }

	src := write(t, filepath.Join(dir, "c.nsz"), "keep me")

	_, err := s.Move(testContext(t), src, "c.nsz")
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrPermission))
	assert.Equal(t, "keep me", read(t, src))
	assert.NoFileExists(t, filepath.Join(dir, ".stash", "c.nsz"))
}

func TestMoveRollsBackLinkWhenSourceCannotBeRemoved(t *testing.T) {
	dir := t.TempDir()
	s := New(filepath.Join(dir, ".stash"))
	realRemove := s.remove
	s.remove = func(name string) error {
		if filepath.Dir(name) == dir {
			return os.ErrPermission
		}
		return realRemove(name)
	}

	src := write(t, filepath.Join(dir, "d.nsz"), "d")

	_, err := s.Move(testContext(t), src, "d.nsz")
	require.Error(t, err)
	assert.FileExists(t, src)
	assert.NoFileExists(t, filepath.Join(dir, ".stash", "d.nsz"), "no second copy left in the stash")
}
