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

// Package workflow defines the high-level orchestrations, combining commands
// into pipelines. This file implements the replica prompt workflow.
package workflow

import (
	"context"
	"errors"

	"github.com/jaycherian/gcp-go-replica-prompt/internal/cloud"
	"github.com/jaycherian/gcp-go-replica-prompt/internal/core/commands"
	"github.com/jaycherian/gcp-go-replica-prompt/internal/core/cor"
	"github.com/jaycherian/gcp-go-replica-prompt/internal/core/model"
)

// ReplicaPromptWorkflow samples frames from a video and asks the model for a
// replica prompt, announcing each phase through the progress callback:
//
//	phase(sampling) -> sample-frames -> phase(generating) -> generate-prompt
//
// The chain stops at the first error, so the generator is never called when
// sampling fails.
type ReplicaPromptWorkflow struct {
	cor.BaseCommand
	sampler    model.FrameSampler
	generator  model.PromptGenerator
	frameCount int
	messages   cloud.Messages
	chain      cor.Chain
}

// NewReplicaPromptWorkflow is the constructor for ReplicaPromptWorkflow.
//
// Inputs:
//   - config: Supplies the frame count and the phase status messages.
//   - sampler: The frame sampler.
//   - generator: The prompt generator.
//
// Returns:
//   - A pointer to a newly created and fully initialized ReplicaPromptWorkflow.
func NewReplicaPromptWorkflow(config *cloud.Config, sampler model.FrameSampler, generator model.PromptGenerator) *ReplicaPromptWorkflow {
	w := &ReplicaPromptWorkflow{
		BaseCommand: *cor.NewBaseCommand("replica-prompt-workflow"),
		sampler:     sampler,
		generator:   generator,
		frameCount:  config.Sampling.FrameCount,
		messages:    config.Messages,
	}
	w.initializeChain()
	return w
}

func (w *ReplicaPromptWorkflow) initializeChain() {
	out := cor.NewBaseChain(w.GetName())
	out.AddCommand(commands.NewPhaseMarker("phase-sampling", w.messages.SamplingStatus))
	out.AddCommand(commands.NewFrameSamplerCommand("sample-frames", w.sampler, w.frameCount))
	out.AddCommand(commands.NewPhaseMarker("phase-generating", w.messages.GeneratingStatus))
	out.AddCommand(commands.NewPromptGeneratorCommand("generate-prompt", w.generator))
	w.chain = out
}

// IsExecutable requires a video file as input.
func (w *ReplicaPromptWorkflow) IsExecutable(context cor.Context) bool {
	if !w.BaseCommand.IsExecutable(context) {
		return false
	}
	video, ok := context.Get(w.GetInputParam()).(*model.VideoFile)
	return ok && video != nil
}

// Execute runs the chain. The result, if any, is left under commands.ResultParam.
func (w *ReplicaPromptWorkflow) Execute(context cor.Context) {
	w.chain.Execute(context)
}

// Run is a convenience wrapper that executes the workflow for one video and
// returns the result or the first recorded error.
//
// Inputs:
//   - ctx: The Go context for the run (cancellation, tracing).
//   - video: The selected video file.
//   - progress: Receives the phase status messages; may be nil.
//
// Returns:
//   - The generation result, or a *model.SamplingError / *model.GenerationError.
func (w *ReplicaPromptWorkflow) Run(ctx context.Context, video *model.VideoFile, progress commands.ProgressFunc) (*model.GenerationResult, error) {
	chainCtx := cor.NewBaseContext()
	chainCtx.SetContext(ctx)
	chainCtx.Add(cor.CtxIn, video)
	if progress != nil {
		chainCtx.Add(commands.ProgressParam, progress)
	}

	if !w.IsExecutable(chainCtx) {
		return nil, model.NewSamplingError(errors.New("no video file to sample"))
	}
	w.Execute(chainCtx)

	if err := chainCtx.Err(); err != nil {
		return nil, err
	}
	result, ok := chainCtx.Get(commands.ResultParam).(*model.GenerationResult)
	if !ok || result == nil {
		return nil, model.NewGenerationError(errors.New("workflow finished without a result"))
	}
	return result, nil
}
