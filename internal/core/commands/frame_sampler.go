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
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jaycherian/gcp-go-replica-prompt/internal/core/cor"
	"github.com/jaycherian/gcp-go-replica-prompt/internal/core/model"
)

// FrameSamplerCommand samples frames from the selected video.
//
// Inputs (context):
//   - input param: *model.VideoFile
//
// Outputs (context):
//   - cor.CtxOut and FramesParam: []*model.Frame, never empty on success.
type FrameSamplerCommand struct {
	cor.BaseCommand
	sampler    model.FrameSampler
	frameCount int
}

// NewFrameSamplerCommand is the constructor for FrameSamplerCommand.
//
// Inputs:
//   - name: A string name for this command instance.
//   - sampler: The frame sampler.
//   - frameCount: The number of frames requested.
//
// Outputs:
//   - *FrameSamplerCommand: A pointer to the newly instantiated command.
func NewFrameSamplerCommand(name string, sampler model.FrameSampler, frameCount int) *FrameSamplerCommand {
	return &FrameSamplerCommand{
		BaseCommand: *cor.NewBaseCommand(name),
		sampler:     sampler,
		frameCount:  frameCount,
	}
}

// Execute runs the sampler. Every failure is recorded as a *model.SamplingError.
func (c *FrameSamplerCommand) Execute(context cor.Context) {
	video, ok := context.Get(c.GetInputParam()).(*model.VideoFile)
	if !ok || video == nil {
		c.fail(context, errors.New("input is not a video file"))
		return
	}

	frames, err := c.sampler.Sample(context.GetContext(), video.Path, c.frameCount)
	if err != nil {
		c.fail(context, err)
		return
	}
	if len(frames) == 0 {
		c.fail(context, fmt.Errorf("no frames sampled from %s", video.Name))
		return
	}

	trace.SpanFromContext(context.GetContext()).SetAttributes(
		attribute.Int("frames.requested", c.frameCount),
		attribute.Int("frames.sampled", len(frames)),
	)
	c.Succeeded(context)
	context.Add(FramesParam, frames)
	context.Add(cor.CtxOut, frames)
}

func (c *FrameSamplerCommand) fail(context cor.Context, err error) {
	var samplingErr *model.SamplingError
	if !errors.As(err, &samplingErr) {
		err = model.NewSamplingError(err)
	}
	c.Failed(context, err)
}
