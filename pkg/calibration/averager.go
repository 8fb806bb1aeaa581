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

package calibration

// Averager is an incremental mean.
type Averager struct {
	sum   float64
	count int
}

// Add folds one value into the mean.
func (a *Averager) Add(v float64) {
	a.sum += v
	a.count++
}

// Mean is the average of the added values, or 0 when there are none.
func (a Averager) Mean() float64 {
	if a.count == 0 {
		return 0
	}

	return a.sum / float64(a.count)
}

// Count is the number of values added.
func (a Averager) Count() int {
	return a.count
}

// Merge combines two means as if every value had been added to one.
func (a Averager) Merge(b Averager) Averager {
	return Averager{sum: a.sum + b.sum, count: a.count + b.count}
}
