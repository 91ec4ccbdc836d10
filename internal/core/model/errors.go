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

import "fmt"

// SamplingError reports that a video could not be decoded or sampled.
type SamplingError struct {
	Err error
}

func (e *SamplingError) Error() string {
	return fmt.Sprintf("sampling failed: %v", e.Err)
}

func (e *SamplingError) Unwrap() error {
	return e.Err
}

// GenerationError reports that the model request failed, was rejected, or
// returned data that could not be parsed into a GenerationResult.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed: %v", e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// NewSamplingError wraps err unless it is nil.
func NewSamplingError(err error) error {
	if err == nil {
		return nil
	}
	return &SamplingError{Err: err}
}

// NewGenerationError wraps err unless it is nil.
func NewGenerationError(err error) error {
	if err == nil {
		return nil
	}
	return &GenerationError{Err: err}
}
