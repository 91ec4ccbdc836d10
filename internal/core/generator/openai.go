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

	"github.com/sashabaranov/go-openai"

	"github.com/jaycherian/gcp-go-replica-prompt/internal/cloud"
	"github.com/jaycherian/gcp-go-replica-prompt/internal/core/model"
)

// OpenAIGenerator sends the prompt and the frames as data URL image parts in
// one chat completion request. It works with OpenAI and with the
// OpenAI-compatible endpoints of Ollama and vLLM.
type OpenAIGenerator struct {
	model    cloud.ChatCompleter
	builder  *PromptBuilder
	counters tokenCounters
}

// NewOpenAIGenerator is the constructor for OpenAIGenerator.
func NewOpenAIGenerator(m cloud.ChatCompleter, builder *PromptBuilder) *OpenAIGenerator {
	return &OpenAIGenerator{model: m, builder: builder, counters: newTokenCounters("openai")}
}

// Request builds the chat completion request. The model name, settings and
// system message are filled in by the cloud.QuotaAwareChatModel.
func (g *OpenAIGenerator) Request(frames []*model.Frame) (openai.ChatCompletionRequest, error) {
	prompt, err := g.builder.Build(frames)
	if err != nil {
		return openai.ChatCompletionRequest{}, err
	}
	parts := make([]openai.ChatMessagePart, 0, len(frames)+1)
	parts = append(parts, openai.ChatMessagePart{Type: openai.ChatMessagePartTypeText, Text: prompt})
	for _, f := range frames {
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL:    f.DataURL(),
				Detail: openai.ImageURLDetailAuto,
			},
		})
	}
	return openai.ChatCompletionRequest{
		Messages: []openai.ChatCompletionMessage{{
			Role:         openai.ChatMessageRoleUser,
			MultiContent: parts,
		}},
	}, nil
}

// Generate describes frames.
func (g *OpenAIGenerator) Generate(ctx context.Context, frames []*model.Frame) (*model.GenerationResult, error) {
	if len(frames) == 0 {
		return nil, model.NewGenerationError(ErrNoFrames)
	}
	req, err := g.Request(frames)
	if err != nil {
		return nil, model.NewGenerationError(err)
	}

	resp, err := g.model.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, model.NewGenerationError(err)
	}
	if g.counters.input != nil {
		g.counters.input.Add(ctx, int64(resp.Usage.PromptTokens))
	}
	if g.counters.output != nil {
		g.counters.output.Add(ctx, int64(resp.Usage.CompletionTokens))
	}
	if len(resp.Choices) == 0 {
		return nil, model.NewGenerationError(cloud.ErrEmptyResponse)
	}
	content := resp.Choices[0].Message.Content
	slog.DebugContext(ctx, "chat completion received", "frames", len(frames), "bytes", len(content),
		"finish_reason", resp.Choices[0].FinishReason)

	result, err := ParseResult(content)
	if err != nil {
		return nil, model.NewGenerationError(err)
	}
	return result, nil
}
