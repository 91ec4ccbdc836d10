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

// Package commands provides the concrete implementations of the Chain of
// Responsibility (COR) pattern's Command interface used by the replica prompt
// workflow.
package commands

// Context keys shared by the commands and the code that runs them.
const (
	// ProgressParam holds a ProgressFunc that receives phase status messages.
	ProgressParam = "__progress__"
	// FramesParam holds the []*model.Frame produced by the sampler.
	FramesParam = "__frames__"
	// ResultParam holds the *model.GenerationResult produced by the generator.
	ResultParam = "__result__"
)

// ProgressFunc is called with a user-facing status message when the pipeline
// enters a new phase.
type ProgressFunc func(status string)
