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
Package operation drives a directory of .nsz archives through conversion.

🎯 Purpose:
- Finds every source archive under a target directory
- Decides per file whether to convert, skip, or leave it alone
- Disposes of superseded sources (stash or delete) after a terminal outcome

🔄 Flow:
1. Discover walks the target and returns sorted relative paths
2. Batch.Run turns each path into a Job
3. Lifecycle.Process runs the job state machine:

	Pending -> output exists -> SkippedExisting -> dispose source
	Pending -> converter ok  -> Converted       -> dispose source
	Pending -> converter err -> Failed          -> source untouched

4. Results are handed to the caller one at a time and folded into a Summary

⚡ Guarantees:
- Jobs run strictly one after another
- A failed job never stops the batch
- A source is disposed of at most once and only after its output exists
- Converter and key resolution happen once, before the walk

🔍 Example:

	lc := operation.NewLifecycle(driver, handle, env, operation.NewStashDisposer(stasher))
	b := operation.NewBatch(lc, operation.BatchOptions{Root: dir})
	summary, err := b.Run(ctx)
*/
package operation
