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

// Package generator turns an ordered set of frames into a replica prompt by
// asking a hosted multimodal model. Two backends exist: Gemini (Gemini API or
// Vertex AI) and any OpenAI-compatible chat endpoint. Each Generate call makes
// exactly one request and either returns a complete result or a
// *model.GenerationError.
package generator

import (
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/jaycherian/gcp-go-replica-prompt/internal/cloud"
	"github.com/jaycherian/gcp-go-replica-prompt/internal/core/model"
)

// MeterName is the instrumentation scope of the token counters.
const MeterName = "github.com/jaycherian/gcp-go-replica-prompt/generator"

// ErrNoFrames is returned when Generate is called without frames.
var ErrNoFrames = errors.New("no frames to describe")

// tokenCounters records prompt and response token usage per backend.
type tokenCounters struct {
	input  metric.Int64Counter
	output metric.Int64Counter
}

func newTokenCounters(backend string) tokenCounters {
	meter := otel.Meter(MeterName)
	in, _ := meter.Int64Counter(fmt.Sprintf("generator.%s.token.input", backend))
	out, _ := meter.Int64Counter(fmt.Sprintf("generator.%s.token.output", backend))
	return tokenCounters{input: in, output: out}
}

// New builds the generator for the configured agent model.
//
// Inputs:
//   - config: The application configuration (agent model selection and prompt template).
//   - clients: The model clients created at startup.
//
// Outputs:
//   - model.PromptGenerator: The Gemini or OpenAI-compatible generator.
//   - error: An error if the agent model is unknown or the template is invalid.
func New(config *cloud.Config, clients *cloud.ServiceClients) (model.PromptGenerator, error) {
	name := config.Generator.AgentModel
	agent, ok := config.ActiveAgentModel()
	if !ok {
		return nil, fmt.Errorf("agent model %q is not configured", name)
	}

	builder, err := NewPromptBuilder(config.PromptTemplates.ReplicaPrompt)
	if err != nil {
		return nil, err
	}

	switch agent.Provider {
	case cloud.ProviderGemini, cloud.ProviderVertex:
		m, ok := clients.AgentModels[name]
		if !ok {
			return nil, fmt.Errorf("no client for agent model %q", name)
		}
		if m.GenerativeContentConfig != nil && m.GenerativeContentConfig.ResponseMIMEType == "application/json" &&
			m.GenerativeContentConfig.ResponseSchema == nil {
			m.GenerativeContentConfig.ResponseSchema = ResponseSchema()
		}
		return NewGeminiGenerator(m, builder), nil
	case cloud.ProviderOpenAI:
		m, ok := clients.ChatModels[name]
		if !ok {
			return nil, fmt.Errorf("no client for agent model %q", name)
		}
		return NewOpenAIGenerator(m, builder), nil
	default:
		return nil, fmt.Errorf("agent model %q: unknown provider %q", name, agent.Provider)
	}
}

// Ensure the backends satisfy the interface consumed by the commands.
var (
	_ model.PromptGenerator = (*GeminiGenerator)(nil)
	_ model.PromptGenerator = (*OpenAIGenerator)(nil)
)
