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

package node

import (
	"time"

	"github.com/carverauto/orbit/pkg/models"
)

// SelectNearest returns the frame captured closest to target. The first frame
// is the burn-in frame and the initial candidate. Frames are pulled until the
// distance to target stops shrinking; the distances are assumed to fall and
// then rise, so the first frame that is no closer ends the search.
func SelectNearest(target time.Time, next func() (models.CapturedFrame, error)) (models.CapturedFrame, error) {
	best, err := next()
	if err != nil {
		return models.CapturedFrame{}, err
	}

	bestDistance := distance(target, best.CapturedAt)

	for {
		frame, err := next()
		if err != nil {
			return models.CapturedFrame{}, err
		}

		d := distance(target, frame.CapturedAt)
		if d >= bestDistance {
			return best, nil
		}

		best, bestDistance = frame, d
	}
}

func distance(a, b time.Time) time.Duration {
	d := a.Sub(b)
	if d < 0 {
		return -d
	}

	return d
}
