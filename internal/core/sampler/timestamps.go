// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package sampler

import "math"

// Timestamps plans the sampling positions for a video of the given duration
// (seconds) and frame rate. It returns n = min(count, floor(duration*fps))
// positions, at least one, spaced evenly as i*duration/n; an unknown frame
// rate (0) does not cap n. The positions are strictly increasing and lie in
// [0, duration). A non-positive duration or count yields nil.
func Timestamps(duration, fps float64, count int) []float64 {
	if duration <= 0 || count <= 0 || math.IsNaN(duration) || math.IsInf(duration, 0) {
		return nil
	}

	n := count
	if fps > 0 {
		if available := int(math.Floor(duration * fps)); available < n {
			n = available
		}
	}
	if n < 1 {
		n = 1
	}

	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = float64(i) * duration / float64(n)
	}
	return out
}
