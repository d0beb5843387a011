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

package progress

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
)

// DefaultInterval is how often the elapsed line is redrawn
const DefaultInterval = time.Second

// ⏳ Reporter redraws a single "elapsed" line while one conversion runs.
// It writes to its own writer (stderr) so it never interleaves with the
// converter lines echoed on stdout.
type Reporter struct {
	w        io.Writer
	label    string
	interval time.Duration
	now      func() time.Time
	enabled  bool
}

// 🏭 New creates a reporter writing to w
func New(w io.Writer, label string) *Reporter {
	return &Reporter{
		w:        w,
		label:    label,
		interval: DefaultInterval,
		now:      time.Now,
		enabled:  true,
	}
}

// 🔇 Disabled returns a reporter that only waits for ctx, for non-terminal stderr
func Disabled() *Reporter {
	return &Reporter{w: io.Discard, interval: DefaultInterval, now: time.Now}
}

// WithInterval overrides the redraw interval
func (r *Reporter) WithInterval(d time.Duration) *Reporter {
	r.interval = d
	return r
}

// WithLabel returns a copy of r for a different job
func (r *Reporter) WithLabel(label string) *Reporter {
	cp := *r
	cp.label = label
	return &cp
}

// 🏃 Run draws until ctx is done, then draws the final elapsed time and
// exactly one newline. It never outlives ctx.
func (r *Reporter) Run(ctx context.Context) error {
	if !r.enabled {
		<-ctx.Done()
		return nil
	}

	start := r.now()
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.render(r.now().Sub(start))
			fmt.Fprint(r.w, "\n")
			return nil
		case <-ticker.C:
			r.render(r.now().Sub(start))
		}
	}
}

func (r *Reporter) render(elapsed time.Duration) {
	fmt.Fprintf(r.w, "\r%s %s %s", color.CyanString("⏳"), r.label, color.New(color.Faint).Sprint(FormatElapsed(elapsed)))
}

// FormatElapsed renders d at whole-second resolution
func FormatElapsed(d time.Duration) string {
	return d.Truncate(time.Second).String()
}
