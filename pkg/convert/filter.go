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

package convert

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"
)

const (
	maxLine  = 1 << 20
	tailSize = 5
)

// 🔍 markerFilter echoes only the converter lines that start with marker and
// remembers the last few other lines for failure reports.
type markerFilter struct {
	w      io.Writer
	marker string
	echoed int
	tail   []string
}

func newMarkerFilter(w io.Writer, marker string) *markerFilter {
	return &markerFilter{w: w, marker: marker}
}

// Drain reads r to EOF. It always consumes everything so the writer side
// never blocks, even if a line is too long to scan.
func (f *markerFilter) Drain(r io.Reader) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	sc.Split(scanTerminalLines)

	for sc.Scan() {
		f.line(sc.Text())
	}
	if err := sc.Err(); err != nil {
		_, _ = io.Copy(io.Discard, r)
	}
	return nil
}

func (f *markerFilter) line(raw string) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return
	}
	if strings.HasPrefix(s, f.marker) {
		fmt.Fprintln(f.w, s)
		f.echoed++
		return
	}
	f.tail = append(f.tail, s)
	if len(f.tail) > tailSize {
		f.tail = f.tail[len(f.tail)-tailSize:]
	}
}

// scanTerminalLines splits on \n and on bare \r, which progress bars use to
// redraw in place.
func scanTerminalLines(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
