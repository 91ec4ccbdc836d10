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

package model

import "context"

// FrameSampler produces at most count frames from the video at path, ordered
// by strictly increasing timestamp. Failures are *SamplingError values.
type FrameSampler interface {
	Sample(ctx context.Context, path string, count int) ([]*Frame, error)
}

// PromptGenerator asks a multimodal model to describe frames. Failures are
// *GenerationError values; there is no partial result.
type PromptGenerator interface {
	Generate(ctx context.Context, frames []*Frame) (*GenerationResult, error)
}
