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

package commands

import (
	"errors"

	"github.com/jaycherian/gcp-go-replica-prompt/internal/core/cor"
	"github.com/jaycherian/gcp-go-replica-prompt/internal/core/model"
)

// PromptGeneratorCommand sends the sampled frames to the prompt generator.
//
// Inputs (context):
//   - input param: []*model.Frame
//
// Outputs (context):
//   - cor.CtxOut and ResultParam: *model.GenerationResult
type PromptGeneratorCommand struct {
	cor.BaseCommand
	generator model.PromptGenerator
}

// NewPromptGeneratorCommand is the constructor for PromptGeneratorCommand.
//
// Inputs:
//   - name: A string name for this command instance.
//   - generator: The prompt generator.
//
// Outputs:
//   - *PromptGeneratorCommand: A pointer to the newly instantiated command.
func NewPromptGeneratorCommand(name string, generator model.PromptGenerator) *PromptGeneratorCommand {
	return &PromptGeneratorCommand{
		BaseCommand: *cor.NewBaseCommand(name, cor.WithOutputParam(ResultParam)),
		generator:   generator,
	}
}

// IsExecutable requires a non-empty frame list.
func (c *PromptGeneratorCommand) IsExecutable(context cor.Context) bool {
	if !c.BaseCommand.IsExecutable(context) {
		return false
	}
	frames, ok := context.Get(c.GetInputParam()).([]*model.Frame)
	return ok && len(frames) > 0
}

// Execute runs the generator. Every failure is recorded as a *model.GenerationError.
func (c *PromptGeneratorCommand) Execute(context cor.Context) {
	frames := context.Get(c.GetInputParam()).([]*model.Frame)

	result, err := c.generator.Generate(context.GetContext(), frames)
	if err == nil && result == nil {
		err = errors.New("generator returned no result")
	}
	if err != nil {
		var genErr *model.GenerationError
		if !errors.As(err, &genErr) {
			err = model.NewGenerationError(err)
		}
		c.Failed(context, err)
		return
	}

	c.Succeeded(context)
	context.Add(c.GetOutputParam(), result)
	context.Add(cor.CtxOut, result)
}
