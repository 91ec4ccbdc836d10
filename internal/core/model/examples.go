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

// Package model defines the data structures for the application. This file,
// `examples.go`, provides a hardcoded example of the model output.
//
// The example is embedded in the prompt ("few-shot" prompting) so the model
// returns JSON with exactly the field names GenerationResult expects.
package model

// GetExampleResult creates a sample GenerationResult. The prompt describes
// every subject and object literally, with their motion, so that a video model
// could reproduce the scene.
//
// Outputs:
//   - *GenerationResult: A pointer to a hardcoded GenerationResult.
func GetExampleResult() *GenerationResult {
	return &GenerationResult{
		Prompt: "A man in his thirties with short black hair, wearing a navy rain jacket and grey jeans, " +
			"walks left to right along a wet cobblestone street at a steady pace, holding a red umbrella " +
			"in his right hand. A yellow taxi passes behind him from right to left. Overcast daylight, " +
			"eye-level static camera, shallow depth of field.",
		Analysis: "One adult male subject is present for the whole clip. He keeps a constant walking " +
			"speed and never faces the camera. The only other moving object is a taxi crossing the " +
			"background in the opposite direction halfway through.",
		StyleTags: []string{"realistic", "daylight", "street", "static camera"},
	}
}
