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
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/jaycherian/gcp-go-replica-prompt/internal/core/model"
)

// DefaultReplicaTemplate is used when no prompt template is configured.
const DefaultReplicaTemplate = `The following {{.FRAME_COUNT}} images are frames sampled in order from one video, at these timestamps (seconds): {{.TIMESTAMPS}}.

Treat them as one continuous shot. Identify every person and every object, describe each of them literally, and describe how they move between the frames. Then write one replica prompt that a text-to-video model could use to reproduce the scene as closely as possible.

Return only a JSON object with the fields "prompt", "analysis" and "styleTags", for example:
{{.EXAMPLE_JSON}}
`

// PromptBuilder renders the user prompt for a set of frames.
type PromptBuilder struct {
	template *template.Template
}

// NewPromptBuilder parses source as a text/template. An empty source selects
// DefaultReplicaTemplate.
func NewPromptBuilder(source string) (*PromptBuilder, error) {
	if strings.TrimSpace(source) == "" {
		source = DefaultReplicaTemplate
	}
	tmpl, err := template.New("replica").Option("missingkey=error").Parse(source)
	if err != nil {
		return nil, fmt.Errorf("failed to parse prompt template: %w", err)
	}
	return &PromptBuilder{template: tmpl}, nil
}

// GenerateParams creates the values injected into the template.
func (b *PromptBuilder) GenerateParams(frames []*model.Frame) map[string]interface{} {
	params := make(map[string]interface{})
	params["FRAME_COUNT"] = len(frames)

	stamps := make([]string, 0, len(frames))
	for _, f := range frames {
		stamps = append(stamps, fmt.Sprintf("%.2f", f.Timestamp))
	}
	params["TIMESTAMPS"] = strings.Join(stamps, ", ")

	// Few-shot example of the exact JSON shape expected back.
	example, _ := json.MarshalIndent(model.GetExampleResult(), "", "  ")
	params["EXAMPLE_JSON"] = string(example)
	return params
}

// Build renders the prompt for frames.
func (b *PromptBuilder) Build(frames []*model.Frame) (string, error) {
	var buffer bytes.Buffer
	if err := b.template.Execute(&buffer, b.GenerateParams(frames)); err != nil {
		return "", fmt.Errorf("failed to execute prompt template: %w", err)
	}
	return buffer.String(), nil
}
