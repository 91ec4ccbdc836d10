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

package session

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaycherian/gcp-go-replica-prompt/internal/core/model"
)

var (
	clip = &model.VideoFile{Name: "clip.mp4", ContentType: "video/mp4", Size: 1024, Path: "/tmp/clip.mp4"}
	text = &model.VideoFile{Name: "notes.txt", ContentType: "text/plain", Size: 10, Path: "/tmp/notes.txt"}

	exampleResult = &model.GenerationResult{
		Prompt:    "A man walks left to right...",
		Analysis:  "One adult male subject...",
		StyleTags: []string{"realistic", "daylight"},
	}
)

func mustApply(t *testing.T, s Session, e Event) Session {
	t.Helper()
	next, err := Apply(s, e)
	require.NoError(t, err)
	return next
}

// sessions returns one session in each state.
func sessions(t *testing.T) map[State]Session {
	t.Helper()
	idle := New("s1", time.Unix(0, 0))
	ready := mustApply(t, idle, Event{Type: SelectFile, File: clip, PreviewURL: "/preview"})
	running := mustApply(t, ready, Event{Type: Run, Status: "sampling"})
	completed := mustApply(t, running, Event{Type: Complete, Result: exampleResult, Revision: running.Revision})
	return map[State]Session{Idle: idle, Ready: ready, Running: running, Completed: completed}
}

func TestHappyPath(t *testing.T) {
	s := New("s1", time.Unix(0, 0))
	assert.Equal(t, Idle, s.State)

	s = mustApply(t, s, Event{Type: SelectFile, File: clip, PreviewURL: "/api/v1/sessions/s1/preview"})
	assert.Equal(t, Ready, s.State)
	assert.Equal(t, clip, s.File)
	assert.Equal(t, "/api/v1/sessions/s1/preview", s.PreviewURL)
	assert.Nil(t, s.Result)

	s = mustApply(t, s, Event{Type: Run, Status: "sampling"})
	assert.Equal(t, Running, s.State)
	assert.True(t, s.Busy)
	assert.Equal(t, "sampling", s.Status)

	s = mustApply(t, s, Event{Type: Phase, Status: "generating", Revision: s.Revision})
	assert.Equal(t, Running, s.State)
	assert.Equal(t, "generating", s.Status)

	s = mustApply(t, s, Event{Type: Complete, Result: exampleResult, Revision: s.Revision})
	assert.Equal(t, Completed, s.State)
	assert.False(t, s.Busy)
	assert.Empty(t, s.Status)
	assert.Same(t, exampleResult, s.Result)
}

func TestSelectNonVideoIsNoOp(t *testing.T) {
	for state, s := range sessions(t) {
		next, err := Apply(s, Event{Type: SelectFile, File: text})
		assert.NoError(t, err, state.String())
		assert.Equal(t, s, next, state.String())

		next, err = Apply(s, Event{Type: SelectFile, File: nil})
		assert.NoError(t, err, state.String())
		assert.Equal(t, s, next, state.String())
	}
}

func TestSelectFileFromAnyStateClearsResult(t *testing.T) {
	other := &model.VideoFile{Name: "other.webm", ContentType: "video/webm", Path: "/tmp/other.webm"}
	for state, s := range sessions(t) {
		next, err := Apply(s, Event{Type: SelectFile, File: other, PreviewURL: "/p2"})
		require.NoError(t, err, state.String())
		assert.Equal(t, Ready, next.State, state.String())
		assert.Nil(t, next.Result, state.String())
		assert.False(t, next.Busy, state.String())
		assert.Equal(t, s.Revision+1, next.Revision, state.String())
	}
}

func TestClearFileFromAnyState(t *testing.T) {
	for state, s := range sessions(t) {
		next, err := Apply(s, Event{Type: ClearFile})
		require.NoError(t, err, state.String())
		assert.Equal(t, Idle, next.State, state.String())
		assert.Nil(t, next.File, state.String())
		assert.Empty(t, next.PreviewURL, state.String())
		assert.Nil(t, next.Result, state.String())
		assert.False(t, next.Busy, state.String())
	}
}

func TestRunOnlyFromReady(t *testing.T) {
	for state, s := range sessions(t) {
		_, err := Apply(s, Event{Type: Run, Status: "sampling"})
		if state == Ready {
			assert.NoError(t, err)
			continue
		}
		assert.ErrorIs(t, err, ErrInvalidTransition, state.String())
	}
}

func TestFailureReturnsToReady(t *testing.T) {
	s := sessions(t)[Running]
	next, err := Apply(s, Event{Type: Fail, Notice: "failed", Revision: s.Revision})
	require.NoError(t, err)
	assert.Equal(t, Ready, next.State)
	assert.Equal(t, clip, next.File)
	assert.Nil(t, next.Result)
	assert.False(t, next.Busy)
	assert.Equal(t, "failed", next.Notice)

	// Immediately retryable; the notice is cleared.
	next = mustApply(t, next, Event{Type: Run, Status: "sampling"})
	assert.Equal(t, Running, next.State)
	assert.Empty(t, next.Notice)
}

func TestDismissClearsNoticeOnly(t *testing.T) {
	running := sessions(t)[Running]
	failed := mustApply(t, running, Event{Type: Fail, Notice: "failed", Revision: running.Revision})

	next := mustApply(t, failed, Event{Type: Dismiss, At: time.Unix(5, 0)})
	assert.Empty(t, next.Notice)
	assert.Equal(t, Ready, next.State)
	assert.Equal(t, failed.Revision, next.Revision)
	assert.Equal(t, clip, next.File)

	// Without a notice the event is a no-op in every state.
	for state, s := range sessions(t) {
		after := mustApply(t, s, Event{Type: Dismiss, At: time.Unix(9, 0)})
		assert.Equal(t, s, after, state.String())
	}
}

func TestStaleRunIsRejected(t *testing.T) {
	running := sessions(t)[Running]
	started := running.Revision

	// The user picks another file while the run is in flight.
	other := &model.VideoFile{Name: "other.mov", ContentType: "video/quicktime"}
	changed := mustApply(t, running, Event{Type: SelectFile, File: other})

	for _, e := range []Event{
		{Type: Phase, Status: "generating", Revision: started},
		{Type: Complete, Result: exampleResult, Revision: started},
		{Type: Fail, Notice: "failed", Revision: started},
	} {
		next, err := Apply(changed, e)
		assert.ErrorIs(t, err, ErrStaleRun, e.Type.String())
		assert.Equal(t, changed, next)
		assert.Nil(t, next.Result)
	}
}

func TestRunEventsOutsideRunning(t *testing.T) {
	for state, s := range sessions(t) {
		if state == Running {
			continue
		}
		_, err := Apply(s, Event{Type: Complete, Result: exampleResult, Revision: s.Revision})
		assert.ErrorIs(t, err, ErrInvalidTransition, state.String())
	}

	running := sessions(t)[Running]
	_, err := Apply(running, Event{Type: Complete, Revision: running.Revision})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCopy(t *testing.T) {
	all := sessions(t)
	completed := all[Completed]

	next, err := Apply(completed, Event{Type: Copy, Field: FieldPrompt})
	require.NoError(t, err)
	assert.Equal(t, completed, next)

	got, err := CopyText(completed, FieldPrompt)
	require.NoError(t, err)
	assert.Equal(t, "A man walks left to right...", got)

	got, err = CopyText(completed, FieldAnalysis)
	require.NoError(t, err)
	assert.Equal(t, "One adult male subject...", got)

	got, err = CopyText(completed, FieldStyleTags)
	require.NoError(t, err)
	assert.Equal(t, "realistic, daylight", got)

	_, err = CopyText(completed, Field("title"))
	assert.ErrorIs(t, err, ErrUnknownField)

	for _, state := range []State{Idle, Ready, Running} {
		_, err := Apply(all[state], Event{Type: Copy, Field: FieldPrompt})
		assert.ErrorIs(t, err, ErrInvalidTransition, state.String())
		_, err = CopyText(all[state], FieldPrompt)
		assert.ErrorIs(t, err, ErrInvalidTransition, state.String())
	}
}

func TestResultOnlyInCompleted(t *testing.T) {
	for state, s := range sessions(t) {
		if state == Completed {
			assert.NotNil(t, s.Result)
		} else {
			assert.Nil(t, s.Result, state.String())
		}
	}
}

func TestUpdatedAt(t *testing.T) {
	s := New("s1", time.Unix(0, 0))
	at := time.Unix(100, 0)
	s = mustApply(t, s, Event{Type: SelectFile, File: clip, At: at})
	assert.Equal(t, at, s.UpdatedAt)
	s = mustApply(t, s, Event{Type: Run})
	assert.Equal(t, at, s.UpdatedAt)
}

func TestStateJSON(t *testing.T) {
	out, err := json.Marshal(sessions(t)[Completed])
	require.NoError(t, err)
	assert.Contains(t, string(out), `"state":"completed"`)
	assert.Contains(t, string(out), `"styleTags":["realistic","daylight"]`)
	assert.NotContains(t, string(out), "/tmp/clip.mp4")
}
