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
	"bufio"
	"bytes"
	"io"
	"path/filepath"
	"strings"
)

// maxShebang bounds how much of a candidate is read looking for "#!"
const maxShebang = 512

// 📜 interpreterOf returns the interpreter declared by a script's shebang line.
// Binaries and scripts without a shebang return ok=false.
func interpreterOf(r io.Reader) (interp string, ok bool) {
	br := bufio.NewReaderSize(io.LimitReader(r, maxShebang), maxShebang)
	line, err := br.ReadBytes('\n')
	if err != nil && len(line) == 0 {
		return "", false
	}
	if !bytes.HasPrefix(line, []byte("#!")) {
		return "", false
	}

	fields := strings.Fields(string(line[2:]))
	if len(fields) == 0 {
		return "", false
	}

	// #!/usr/bin/env [-S] python3
	if filepath.Base(fields[0]) == "env" {
		for _, f := range fields[1:] {
			if strings.HasPrefix(f, "-") || strings.Contains(f, "=") {
				continue
			}
			return f, true
		}
	}
	return fields[0], true
}

// 🛡️ interpreterExists implements the "bad interpreter" guard: a script is only
// usable if the interpreter its shebang names can be found.
func (l *Locator) interpreterExists(path string) bool {
	f, err := l.deps.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	interp, ok := interpreterOf(f)
	if !ok {
		return true
	}
	if filepath.IsAbs(interp) {
		return l.isExecutable(interp)
	}
	// bare names come from `env`, resolved through PATH
	_, found := FirstMatch(l.pathCandidates(interp), l.isExecutable)
	return found
}

// 🔧 isExecutable reports whether path is a regular file with an exec bit
func (l *Locator) isExecutable(path string) bool {
	fi, err := l.deps.Stat(path)
	if err != nil {
		return false
	}
	if !fi.Mode().IsRegular() {
		return false
	}
	if l.deps.GOOS == "windows" {
		return true
	}
	return fi.Mode().Perm()&0o111 != 0
}
