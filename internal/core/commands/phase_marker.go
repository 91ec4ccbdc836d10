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
	"log/slog"

	"github.com/jaycherian/gcp-go-replica-prompt/internal/core/cor"
)

// PhaseMarker announces that the pipeline entered a new phase. It hands the
// status message to the ProgressFunc stored under ProgressParam (if any) and
// passes its input through unchanged, so it can sit between two commands.
type PhaseMarker struct {
	cor.BaseCommand
	status string // The message shown to the user for this phase.
}

// NewPhaseMarker is the constructor for PhaseMarker.
//
// Inputs:
//   - name: A string name for this command instance.
//   - status: The user-facing status message of the phase.
//
// Outputs:
//   - *PhaseMarker: A pointer to the newly instantiated command.
func NewPhaseMarker(name string, status string) *PhaseMarker {
	return &PhaseMarker{BaseCommand: *cor.NewBaseCommand(name), status: status}
}

// Execute publishes the status and forwards the input.
func (p *PhaseMarker) Execute(context cor.Context) {
	if progress, ok := context.Get(ProgressParam).(ProgressFunc); ok && progress != nil {
		progress(p.status)
	}
	slog.DebugContext(context.GetContext(), "pipeline phase", "phase", p.GetName())
	context.Add(cor.CtxOut, context.Get(p.GetInputParam()))
	p.Succeeded(context)
}
