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

// Package cloud provides components for interacting with the hosted models.
// This file wraps the model clients with a rate limiter (Decorator pattern).
// The wrappers wait for a token and then make exactly one call; there is no
// retry or backoff.
//
// Structs:
//   - QuotaAwareGenerativeAIModel: A Gemini model name plus its generation config.
//   - QuotaAwareChatModel: An OpenAI-compatible chat model plus its settings.
package cloud

import (
	"context"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// ContentGenerator is the subset of a Gemini model the generator needs.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, content []*genai.Content) (*genai.GenerateContentResponse, error)
}

// ChatCompleter is the subset of an OpenAI-compatible model the generator needs.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// newLimiter allows requestsPerSecond calls per second with an equal burst.
// A non-positive value disables limiting.
func newLimiter(requestsPerSecond int) *rate.Limiter {
	if requestsPerSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
}

// QuotaAwareGenerativeAIModel binds a Gemini model name to its generation
// config and a rate limiter.
type QuotaAwareGenerativeAIModel struct {
	GenerativeContentConfig *genai.GenerateContentConfig // Sent with every request.
	ModelName               string                       // e.g. "gemini-2.5-flash".
	ModelHandle             *genai.Models                // The client's Models service.
	RateLimit               *rate.Limiter                // Requests wait here before being sent.
}

// NewQuotaAwareModel creates a QuotaAwareGenerativeAIModel.
//
// Inputs:
//   - wrapped: The generation config sent with every request.
//   - name: The model name.
//   - modelHandle: The Models service of a genai client.
//   - requestsPerSecond: The maximum number of API calls allowed per second.
//
// Outputs:
//   - *QuotaAwareGenerativeAIModel: A pointer to the newly created wrapper.
func NewQuotaAwareModel(wrapped *genai.GenerateContentConfig, name string, modelHandle *genai.Models, requestsPerSecond int) *QuotaAwareGenerativeAIModel {
	return &QuotaAwareGenerativeAIModel{
		GenerativeContentConfig: wrapped,
		ModelName:               name,
		ModelHandle:             modelHandle,
		RateLimit:               newLimiter(requestsPerSecond),
	}
}

// GenerateContent waits for the rate limiter and sends the request once.
func (q *QuotaAwareGenerativeAIModel) GenerateContent(ctx context.Context, content []*genai.Content) (*genai.GenerateContentResponse, error) {
	if err := q.RateLimit.Wait(ctx); err != nil {
		return nil, err
	}
	return q.ModelHandle.GenerateContent(ctx, q.ModelName, content, q.GenerativeContentConfig)
}

// QuotaAwareChatModel binds an OpenAI-compatible client to a model, its
// generation settings and a rate limiter.
type QuotaAwareChatModel struct {
	Client             *openai.Client
	ModelName          string
	SystemInstructions string
	Temperature        float32
	TopP               float32
	MaxTokens          int
	JSONOutput         bool // Request a JSON object response format.
	RateLimit          *rate.Limiter
}

// NewQuotaAwareChatModel creates a QuotaAwareChatModel from an agent model
// configuration.
func NewQuotaAwareChatModel(client *openai.Client, values AgentModel) *QuotaAwareChatModel {
	return &QuotaAwareChatModel{
		Client:             client,
		ModelName:          values.Model,
		SystemInstructions: values.SystemInstructions,
		Temperature:        values.Temperature,
		TopP:               values.TopP,
		MaxTokens:          int(values.MaxTokens),
		JSONOutput:         values.OutputFormat == "application/json",
		RateLimit:          newLimiter(values.RateLimit),
	}
}

// CreateChatCompletion fills in the model and its settings where the request
// leaves them unset, waits for the rate limiter and sends the request once.
func (q *QuotaAwareChatModel) CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	if request.Model == "" {
		request.Model = q.ModelName
	}
	if request.Temperature == 0 {
		request.Temperature = q.Temperature
	}
	if request.TopP == 0 {
		request.TopP = q.TopP
	}
	if request.MaxTokens == 0 {
		request.MaxTokens = q.MaxTokens
	}
	if request.ResponseFormat == nil && q.JSONOutput {
		request.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}
	if q.SystemInstructions != "" && (len(request.Messages) == 0 || request.Messages[0].Role != openai.ChatMessageRoleSystem) {
		request.Messages = append([]openai.ChatCompletionMessage{{
			Role:    openai.ChatMessageRoleSystem,
			Content: q.SystemInstructions,
		}}, request.Messages...)
	}

	if err := q.RateLimit.Wait(ctx); err != nil {
		return openai.ChatCompletionResponse{}, err
	}
	return q.Client.CreateChatCompletion(ctx, request)
}
