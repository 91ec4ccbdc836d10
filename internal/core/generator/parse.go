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
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/jaycherian/gcp-go-replica-prompt/internal/core/model"
)

// ErrMissingPrompt is returned when the model's JSON has no usable prompt.
var ErrMissingPrompt = errors.New("response has no prompt")

// ResponseSchema is the structured output schema sent to Gemini.
func ResponseSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"prompt": {
				Type:        genai.TypeString,
				Description: "A literal replica prompt describing every person, object and movement.",
			},
			"analysis": {
				Type:        genai.TypeString,
				Description: "A description of the subjects, elements and their motion.",
			},
			"styleTags": {
				Type:        genai.TypeArray,
				Description: "Short labels characterising the visual style.",
				Items:       &genai.Schema{Type: genai.TypeString},
			},
		},
		Required: []string{"prompt", "analysis", "styleTags"},
	}
}

// stripCodeFence removes a surrounding Markdown code fence such as ```json ... ```.
func stripCodeFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// Drop the info string ("json") up to the first newline.
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// ParseResult decodes the model's answer. The prompt must be non-empty; a
// missing style tag list becomes an empty one.
func ParseResult(raw string) (*model.GenerationResult, error) {
	body := stripCodeFence(raw)
	if body == "" {
		return nil, errors.New("empty response")
	}

	var result model.GenerationResult
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		return nil, fmt.Errorf("malformed response: %w", err)
	}
	result.Prompt = strings.TrimSpace(result.Prompt)
	if result.Prompt == "" {
		return nil, ErrMissingPrompt
	}
	if result.StyleTags == nil {
		result.StyleTags = []string{}
	}
	return &result, nil
}
