/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package capture

import (
	"sync"
	"time"
)

var bootTime = sync.OnceValue(computeBootTime)

// BootTime is the UTC instant the monotonic clock started counting, sampled
// once per process. Adding a kernel buffer timestamp to it gives the capture
// time in UTC, accurate to the scheduling jitter of that one sample.
func BootTime() time.Time {
	return bootTime()
}

func computeBootTime() time.Time {
	now := time.Now().UTC()

	mono, err := monotonicNow()
	if err != nil {
		return now
	}

	return now.Add(-mono)
}
