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

// Package session models what one open page is doing: which video is selected,
// whether a run is in flight, and the result of the last run.
//
// A Session is a plain value. Every change goes through Apply, a pure function
// of the current session and an Event that returns the next session:
//
//	Idle --SelectFile--> Ready --Run--> Running --Complete--> Completed
//	                       ^               |
//	                       +-----Fail------+
//
// SelectFile (from any state) always lands in Ready, ClearFile always lands in
// Idle. A result exists only in Completed. The failure notice left by Fail
// stays until Dismiss, or until the next file change or run.
package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jaycherian/gcp-go-replica-prompt/internal/core/model"
)

// State is the lifecycle position of a session.
type State int

const (
	Idle      State = iota // No file selected.
	Ready                  // File selected, no result, no run in flight.
	Running                // Sampler or generator in flight.
	Completed              // Result present.
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Ready:
		return "ready"
	case Running:
		return "running"
	case Completed:
		return "completed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText renders the state name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

var (
	// ErrInvalidTransition is returned for an event the current state does not accept.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrStaleRun is returned for a run event whose revision no longer matches
	// the session, because the file changed while the run was in flight.
	ErrStaleRun = errors.New("stale run")
	// ErrUnknownField is returned by CopyText for a field it cannot copy.
	ErrUnknownField = errors.New("unknown field")
)

// Session is the state of one open page.
type Session struct {
	ID         string                  `json:"id"`
	State      State                   `json:"state"`
	File       *model.VideoFile        `json:"file,omitempty"`
	PreviewURL string                  `json:"previewUrl,omitempty"`
	Busy       bool                    `json:"busy"`
	Status     string                  `json:"status,omitempty"`
	Result     *model.GenerationResult `json:"result,omitempty"`
	Notice     string                  `json:"notice,omitempty"` // Transient message for the user, e.g. the failure notice.
	Revision   uint64                  `json:"revision"`         // Bumped on every file change.
	UpdatedAt  time.Time               `json:"updatedAt"`
}

// New returns an Idle session.
func New(id string, now time.Time) Session {
	return Session{ID: id, State: Idle, UpdatedAt: now}
}

// EventType enumerates the events Apply understands.
type EventType int

const (
	SelectFile EventType = iota
	ClearFile
	Run
	Phase
	Complete
	Fail
	Copy
	Dismiss
)

func (e EventType) String() string {
	switch e {
	case SelectFile:
		return "select_file"
	case ClearFile:
		return "clear_file"
	case Run:
		return "run"
	case Phase:
		return "phase"
	case Complete:
		return "complete"
	case Fail:
		return "fail"
	case Copy:
		return "copy"
	case Dismiss:
		return "dismiss"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}

// Field names a copyable part of the result.
type Field string

const (
	FieldPrompt    Field = "prompt"
	FieldAnalysis  Field = "analysis"
	FieldStyleTags Field = "styleTags"
)

// Event is one input to the state machine. Only the fields relevant to Type
// are read.
type Event struct {
	Type       EventType
	File       *model.VideoFile        // SelectFile.
	PreviewURL string                  // SelectFile.
	Status     string                  // Run, Phase.
	Result     *model.GenerationResult // Complete.
	Notice     string                  // Fail.
	Revision   uint64                  // Phase, Complete, Fail: the revision the run started from.
	Field      Field                   // Copy.
	At         time.Time               // When the event happened; zero leaves UpdatedAt alone.
}

// Apply returns the session that results from event. On error the returned
// session equals s. A SelectFile for a non-video file is ignored: s is
// returned unchanged with a nil error.
func Apply(s Session, event Event) (Session, error) {
	next := s
	switch event.Type {
	case SelectFile:
		if !event.File.IsVideo() {
			return s, nil
		}
		next.State = Ready
		next.File = event.File
		next.PreviewURL = event.PreviewURL
		next.Result = nil
		next.Busy = false
		next.Status = ""
		next.Notice = ""
		next.Revision++

	case ClearFile:
		next.State = Idle
		next.File = nil
		next.PreviewURL = ""
		next.Result = nil
		next.Busy = false
		next.Status = ""
		next.Notice = ""
		next.Revision++

	case Run:
		if s.State != Ready {
			return s, invalid(s, event)
		}
		next.State = Running
		next.Busy = true
		next.Status = event.Status
		next.Notice = ""
		next.Result = nil

	case Phase:
		if err := checkRun(s, event); err != nil {
			return s, err
		}
		next.Status = event.Status

	case Complete:
		if err := checkRun(s, event); err != nil {
			return s, err
		}
		if event.Result == nil {
			return s, fmt.Errorf("%w: complete without result", ErrInvalidTransition)
		}
		next.State = Completed
		next.Result = event.Result
		next.Busy = false
		next.Status = ""

	case Fail:
		if err := checkRun(s, event); err != nil {
			return s, err
		}
		next.State = Ready
		next.Result = nil
		next.Busy = false
		next.Status = ""
		next.Notice = event.Notice

	case Copy:
		if s.State != Completed {
			return s, invalid(s, event)
		}
		if _, err := CopyText(s, event.Field); err != nil {
			return s, err
		}
		// Copying changes nothing.
		return s, nil

	case Dismiss:
		// The notice has been shown; nothing else changes.
		if s.Notice == "" {
			return s, nil
		}
		next.Notice = ""

	default:
		return s, invalid(s, event)
	}

	if !event.At.IsZero() {
		next.UpdatedAt = event.At
	}
	return next, nil
}

// checkRun validates an event reported by an in-flight run.
func checkRun(s Session, event Event) error {
	if event.Revision != s.Revision {
		return fmt.Errorf("%w: started at revision %d, session at %d", ErrStaleRun, event.Revision, s.Revision)
	}
	if s.State != Running {
		return invalid(s, event)
	}
	return nil
}

func invalid(s Session, event Event) error {
	return fmt.Errorf("%w: %s in state %s", ErrInvalidTransition, event.Type, s.State)
}

// CopyText returns the text copied for field. It is only defined in Completed.
func CopyText(s Session, field Field) (string, error) {
	if s.State != Completed || s.Result == nil {
		return "", fmt.Errorf("%w: copy in state %s", ErrInvalidTransition, s.State)
	}
	switch field {
	case FieldPrompt, "":
		return s.Result.Prompt, nil
	case FieldAnalysis:
		return s.Result.Analysis, nil
	case FieldStyleTags:
		return strings.Join(s.Result.StyleTags, ", "), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
}
