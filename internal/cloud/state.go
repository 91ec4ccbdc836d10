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
// This file builds the long-lived model clients once at startup and bundles
// them into a single `ServiceClients` struct that is passed to the workflows.
//
// Logic Flow:
//  1. `NewCloudServiceClients` is called at application startup with the loaded `Config`.
//  2. For every configured agent model it creates (or reuses) a client for the
//     model's provider: a genai client for gemini/vertex, an OpenAI client for openai.
//  3. Each model is wrapped in its rate-limited decorator and stored by its logical name.
package cloud

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sashabaranov/go-openai"
	"google.golang.org/genai"
)

// ServiceClients is the container for the model clients.
type ServiceClients struct {
	GenAIClients map[string]*genai.Client                // Keyed by provider (gemini, vertex).
	AgentModels  map[string]*QuotaAwareGenerativeAIModel // Gemini models keyed by logical name.
	ChatModels   map[string]*QuotaAwareChatModel         // OpenAI-compatible models keyed by logical name.
}

// Close releases the clients. The genai and OpenAI clients hold no resources
// beyond their HTTP clients, so this only drops the references.
func (c *ServiceClients) Close() {
	c.GenAIClients = nil
	c.AgentModels = nil
	c.ChatModels = nil
}

// NewCloudServiceClients creates a client per provider in use and wraps every
// configured agent model.
//
// Inputs:
//   - ctx: The root context.Context for the application.
//   - config: A pointer to the loaded application configuration (`Config`).
//
// Outputs:
//   - *ServiceClients: A pointer to the fully initialized ServiceClients struct.
//   - error: An error if a client fails to initialize or a provider is unknown.
func NewCloudServiceClients(ctx context.Context, config *Config) (*ServiceClients, error) {
	clients := &ServiceClients{
		GenAIClients: make(map[string]*genai.Client),
		AgentModels:  make(map[string]*QuotaAwareGenerativeAIModel),
		ChatModels:   make(map[string]*QuotaAwareChatModel),
	}

	for amKey, values := range config.AgentModels {
		switch values.Provider {
		case ProviderGemini, ProviderVertex:
			gc, err := clients.genAIClient(ctx, config, values.Provider)
			if err != nil {
				// Only the selected model must be usable; others may lack credentials.
				if amKey == config.Generator.AgentModel {
					return nil, err
				}
				slog.Warn("skipping agent model", "name", amKey, "provider", values.Provider, "error", err)
				continue
			}
			model := &genai.GenerateContentConfig{
				Temperature:      genai.Ptr[float32](values.Temperature),
				TopP:             genai.Ptr[float32](values.TopP),
				MaxOutputTokens:  values.MaxTokens,
				SafetySettings:   DefaultSafetySettings,
				ResponseMIMEType: values.OutputFormat,
			}
			if values.TopK > 0 {
				model.TopK = genai.Ptr[float32](values.TopK)
			}
			if values.SystemInstructions != "" {
				model.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: values.SystemInstructions}}}
			}
			clients.AgentModels[amKey] = NewQuotaAwareModel(model, values.Model, gc.Models, values.RateLimit)
		case ProviderOpenAI:
			clientConfig := openai.DefaultConfig(config.Credentials.OpenAIAPIKey)
			if values.BaseURL != "" {
				clientConfig.BaseURL = values.BaseURL
			}
			clients.ChatModels[amKey] = NewQuotaAwareChatModel(openai.NewClientWithConfig(clientConfig), values)
		default:
			return nil, fmt.Errorf("agent model %q: unknown provider %q", amKey, values.Provider)
		}
		slog.Info("agent model configured", "name", amKey, "provider", values.Provider, "model", values.Model)
	}

	return clients, nil
}

// genAIClient returns the shared genai client for provider, creating it on first use.
func (c *ServiceClients) genAIClient(ctx context.Context, config *Config, provider string) (*genai.Client, error) {
	if gc, ok := c.GenAIClients[provider]; ok {
		return gc, nil
	}
	clientConfig := &genai.ClientConfig{}
	if provider == ProviderVertex {
		clientConfig.Backend = genai.BackendVertexAI
		clientConfig.Project = config.Application.GoogleProjectId
		clientConfig.Location = config.Application.GoogleLocation
	} else {
		clientConfig.Backend = genai.BackendGeminiAPI
		clientConfig.APIKey = config.Credentials.GeminiKey()
	}
	gc, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", provider, err)
	}
	c.GenAIClients[provider] = gc
	return gc, nil
}
