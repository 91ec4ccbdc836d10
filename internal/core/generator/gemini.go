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

package generator

import (
	"context"
	"log/slog"

	"google.golang.org/genai"

	"github.com/jaycherian/gcp-go-replica-prompt/internal/cloud"
	"github.com/jaycherian/gcp-go-replica-prompt/internal/core/model"
)

// GeminiGenerator sends the prompt and the frames as inline JPEG parts in one
// GenerateContent request.
type GeminiGenerator struct {
	model    cloud.ContentGenerator
	builder  *PromptBuilder
	counters tokenCounters
}

// NewGeminiGenerator is the constructor for GeminiGenerator.
//
// Inputs:
//   - m: The rate-limited Gemini model (or any ContentGenerator).
//   - builder: Renders the text part of the request.
//
// Outputs:
//   - *GeminiGenerator: A pointer to the newly instantiated generator.
func NewGeminiGenerator(m cloud.ContentGenerator, builder *PromptBuilder) *GeminiGenerator {
	return &GeminiGenerator{model: m, builder: builder, counters: newTokenCounters("gemini")}
}

// Contents builds the single user turn: the prompt text followed by one
// inline image part per frame, in frame order.
func (g *GeminiGenerator) Contents(frames []*model.Frame) ([]*genai.Content, error) {
	prompt, err := g.builder.Build(frames)
	if err != nil {
		return nil, err
	}
	parts := make([]*genai.Part, 0, len(frames)+1)
	parts = append(parts, cloud.NewTextPart(prompt))
	for _, f := range frames {
		parts = append(parts, cloud.NewInlineImagePart(f.Data, f.MIMEType))
	}
	return []*genai.Content{{Role: "user", Parts: parts}}, nil
}

// Generate describes frames.
func (g *GeminiGenerator) Generate(ctx context.Context, frames []*model.Frame) (*model.GenerationResult, error) {
	if len(frames) == 0 {
		return nil, model.NewGenerationError(ErrNoFrames)
	}
	contents, err := g.Contents(frames)
	if err != nil {
		return nil, model.NewGenerationError(err)
	}

	out, err := cloud.GenerateMultiModalResponse(ctx, g.counters.input, g.counters.output, g.model, contents)
	if err != nil {
		return nil, model.NewGenerationError(err)
	}
	slog.DebugContext(ctx, "gemini response received", "frames", len(frames), "bytes", len(out))

	result, err := ParseResult(out)
	if err != nil {
		return nil, model.NewGenerationError(err)
	}
	return result, nil
}
