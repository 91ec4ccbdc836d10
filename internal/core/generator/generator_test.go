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

package generator_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/jaycherian/gcp-go-replica-prompt/internal/cloud"
	"github.com/jaycherian/gcp-go-replica-prompt/internal/core/generator"
	"github.com/jaycherian/gcp-go-replica-prompt/internal/core/model"
	test "github.com/jaycherian/gcp-go-replica-prompt/internal/testutil"
)

func TestParseResult(t *testing.T) {
	t.Run("plain json", func(t *testing.T) {
		r, err := generator.ParseResult(`{"prompt":"a cat","analysis":"one cat","styleTags":["warm","soft"]}`)
		require.NoError(t, err)
		assert.Equal(t, "a cat", r.Prompt)
		assert.Equal(t, "one cat", r.Analysis)
		assert.Equal(t, []string{"warm", "soft"}, r.StyleTags)
	})

	t.Run("fenced json", func(t *testing.T) {
		r, err := generator.ParseResult("```json\n{\"prompt\":\"a dog\",\"analysis\":\"\",\"styleTags\":[]}\n```")
		require.NoError(t, err)
		assert.Equal(t, "a dog", r.Prompt)
	})

	t.Run("missing tags become empty", func(t *testing.T) {
		r, err := generator.ParseResult(`{"prompt":"a bird","analysis":"x"}`)
		require.NoError(t, err)
		assert.NotNil(t, r.StyleTags)
		assert.Empty(t, r.StyleTags)
	})

	t.Run("missing prompt", func(t *testing.T) {
		_, err := generator.ParseResult(`{"prompt":"  ","analysis":"x","styleTags":[]}`)
		assert.ErrorIs(t, err, generator.ErrMissingPrompt)
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := generator.ParseResult(`{"prompt": "unterminated`)
		assert.Error(t, err)
		_, err = generator.ParseResult("   ")
		assert.Error(t, err)
	})
}

func TestPromptBuilder(t *testing.T) {
	b, err := generator.NewPromptBuilder("")
	require.NoError(t, err)

	prompt, err := b.Build(test.GetTestFrames(3))
	require.NoError(t, err)
	assert.Contains(t, prompt, "The following 3 images")
	assert.Contains(t, prompt, "0.00, 1.00, 2.00")
	assert.Contains(t, prompt, `"styleTags"`)
	assert.Contains(t, prompt, model.GetExampleResult().StyleTags[0])

	_, err = generator.NewPromptBuilder("{{.FRAME_COUNT")
	assert.Error(t, err)

	b, err = generator.NewPromptBuilder("{{.UNKNOWN}}")
	require.NoError(t, err)
	_, err = b.Build(test.GetTestFrames(1))
	assert.Error(t, err)
}

type fakeGemini struct {
	contents []*genai.Content
	resp     *genai.GenerateContentResponse
	err      error
}

func (f *fakeGemini) GenerateContent(_ context.Context, contents []*genai.Content) (*genai.GenerateContentResponse, error) {
	f.contents = contents
	return f.resp, f.err
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []*genai.Part{{Text: text}}}}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount:     120,
			CandidatesTokenCount: 40,
		},
	}
}

func TestGeminiGenerator(t *testing.T) {
	builder, err := generator.NewPromptBuilder("")
	require.NoError(t, err)
	frames := test.GetTestFrames(4)

	t.Run("success", func(t *testing.T) {
		fake := &fakeGemini{resp: textResponse(`{"prompt":"p","analysis":"a","styleTags":["t1","t2"]}`)}
		g := generator.NewGeminiGenerator(fake, builder)

		result, err := g.Generate(context.Background(), frames)
		require.NoError(t, err)
		assert.Equal(t, &model.GenerationResult{Prompt: "p", Analysis: "a", StyleTags: []string{"t1", "t2"}}, result)

		require.Len(t, fake.contents, 1)
		parts := fake.contents[0].Parts
		require.Len(t, parts, 5)
		assert.Contains(t, parts[0].Text, "The following 4 images")
		for i, f := range frames {
			require.NotNil(t, parts[i+1].InlineData)
			assert.Equal(t, f.Data, parts[i+1].InlineData.Data)
			assert.Equal(t, "image/jpeg", parts[i+1].InlineData.MIMEType)
		}
	})

	t.Run("request failure", func(t *testing.T) {
		g := generator.NewGeminiGenerator(&fakeGemini{err: errors.New("permission denied")}, builder)
		_, err := g.Generate(context.Background(), frames)
		var genErr *model.GenerationError
		require.True(t, errors.As(err, &genErr))
		assert.Contains(t, err.Error(), "permission denied")
	})

	t.Run("malformed response", func(t *testing.T) {
		g := generator.NewGeminiGenerator(&fakeGemini{resp: textResponse("I cannot help with that.")}, builder)
		_, err := g.Generate(context.Background(), frames)
		var genErr *model.GenerationError
		assert.True(t, errors.As(err, &genErr))
	})

	t.Run("no frames", func(t *testing.T) {
		fake := &fakeGemini{}
		g := generator.NewGeminiGenerator(fake, builder)
		_, err := g.Generate(context.Background(), nil)
		assert.ErrorIs(t, err, generator.ErrNoFrames)
		assert.Nil(t, fake.contents)
	})
}

func newChatServer(t *testing.T, calls *int32, content string, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))

		var req openai.ChatCompletionRequest
		if assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) && assert.NotEmpty(t, req.Messages) {
			user := req.Messages[len(req.Messages)-1]
			if assert.Len(t, user.MultiContent, 3) {
				assert.Equal(t, openai.ChatMessagePartTypeText, user.MultiContent[0].Type)
				assert.True(t, strings.HasPrefix(user.MultiContent[1].ImageURL.URL, "data:image/jpeg;base64,"))
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"rejected","type":"invalid_request_error"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{{
				Message:      openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content},
				FinishReason: openai.FinishReasonStop,
			}},
			Usage: openai.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
		})
	}))
}

func newChatModel(url string) *cloud.QuotaAwareChatModel {
	clientConfig := openai.DefaultConfig("test-key")
	clientConfig.BaseURL = url + "/v1"
	return cloud.NewQuotaAwareChatModel(openai.NewClientWithConfig(clientConfig), cloud.AgentModel{
		Model:              "llava",
		SystemInstructions: "describe literally",
		OutputFormat:       "application/json",
	})
}

func TestOpenAIGenerator(t *testing.T) {
	builder, err := generator.NewPromptBuilder("")
	require.NoError(t, err)
	frames := test.GetTestFrames(2)

	t.Run("success", func(t *testing.T) {
		var calls int32
		srv := newChatServer(t, &calls, "```json\n{\"prompt\":\"p\",\"analysis\":\"a\",\"styleTags\":[\"x\"]}\n```", http.StatusOK)
		defer srv.Close()

		g := generator.NewOpenAIGenerator(newChatModel(srv.URL), builder)
		result, err := g.Generate(context.Background(), frames)
		require.NoError(t, err)
		assert.Equal(t, "p", result.Prompt)
		assert.Equal(t, []string{"x"}, result.StyleTags)
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	})

	t.Run("upstream rejection is not retried", func(t *testing.T) {
		var calls int32
		srv := newChatServer(t, &calls, "", http.StatusBadRequest)
		defer srv.Close()

		g := generator.NewOpenAIGenerator(newChatModel(srv.URL), builder)
		_, err := g.Generate(context.Background(), frames)
		var genErr *model.GenerationError
		require.True(t, errors.As(err, &genErr))
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	})
}

func TestNew_SelectsBackend(t *testing.T) {
	config := cloud.NewConfig()
	config.Generator.AgentModel = "local"
	config.AgentModels["local"] = cloud.AgentModel{Provider: cloud.ProviderOpenAI, Model: "llava", BaseURL: "http://127.0.0.1:1/v1"}

	clients, err := cloud.NewCloudServiceClients(context.Background(), config)
	require.NoError(t, err)

	g, err := generator.New(config, clients)
	require.NoError(t, err)
	assert.IsType(t, &generator.OpenAIGenerator{}, g)

	config.Generator.AgentModel = "missing"
	_, err = generator.New(config, clients)
	assert.Error(t, err)
}
