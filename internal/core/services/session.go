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

// Package services contains the business logic sitting between the HTTP layer
// and the pipeline. This file, `session.go`, defines the SessionService, which
// owns every open session: the uploaded video on disk, the state machine
// transitions, and the replica prompt runs.
package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/h2non/filetype"

	"github.com/jaycherian/gcp-go-replica-prompt/internal/cloud"
	"github.com/jaycherian/gcp-go-replica-prompt/internal/core/commands"
	"github.com/jaycherian/gcp-go-replica-prompt/internal/core/model"
	"github.com/jaycherian/gcp-go-replica-prompt/internal/core/session"
)

var (
	// ErrSessionNotFound is returned for an unknown or evicted session id.
	ErrSessionNotFound = errors.New("session not found")
	// ErrFileTooLarge is returned when an upload exceeds the configured limit.
	ErrFileTooLarge = errors.New("file too large")
	// ErrNoFile is returned by Preview when the session has no video selected.
	ErrNoFile = errors.New("no file selected")
	// ErrRunInFlight is returned by Run while a superseded run of the same
	// session is still draining. It matches session.ErrInvalidTransition.
	ErrRunInFlight = fmt.Errorf("%w: previous run still finishing", session.ErrInvalidTransition)
)

// sniffLen is the number of leading bytes filetype needs to recognise a container.
const sniffLen = 261

// Workflow runs the replica prompt pipeline for one video.
type Workflow interface {
	Run(ctx context.Context, video *model.VideoFile, progress commands.ProgressFunc) (*model.GenerationResult, error)
}

// entry is the service-side bookkeeping of one session.
type entry struct {
	session     session.Session
	dir         string    // Per-session temp dir holding the upload.
	previewMIME string    // Media type served for the preview.
	lastSeen    time.Time // Last time any operation touched the session.

	// inFlight is closed when the current workflow run returns; nil when idle.
	inFlight chan struct{}
	// cancel stops the current workflow run.
	cancel context.CancelFunc
}

// supersede cancels the in-flight run, if any. The run keeps its inFlight
// marker until the workflow has returned. Callers hold s.mu.
func (e *entry) supersede() {
	if e.cancel != nil {
		e.cancel()
	}
}

// SessionService keeps the open sessions in memory. All methods are safe for
// concurrent use. Workflow runs happen outside the lock; their progress and
// outcome are applied as events carrying the revision they started from, so a
// run that outlives its file never writes into the session. Changing the file
// cancels the running workflow, and no new run starts for that session until
// the cancelled one has returned.
type SessionService struct {
	workflow       Workflow
	messages       cloud.Messages
	uploadDir      string
	maxUploadBytes int64
	ttl            time.Duration
	now            func() time.Time

	mu       sync.Mutex
	sessions map[string]*entry

	stopOnce sync.Once
	stop     chan struct{}
}

// NewSessionService creates a service running workflow for its sessions.
//
// Inputs:
//   - config: Supplies the upload dir, upload limit, session TTL and user messages.
//   - workflow: The pipeline run by Run.
//
// Outputs:
//   - *SessionService: The service. Call Close to remove the uploads.
func NewSessionService(config *cloud.Config, workflow Workflow) *SessionService {
	uploadDir := config.Application.UploadDir
	if uploadDir == "" {
		uploadDir = os.TempDir()
	}
	return &SessionService{
		workflow:       workflow,
		messages:       config.Messages,
		uploadDir:      uploadDir,
		maxUploadBytes: config.Application.MaxUploadMB << 20,
		ttl:            time.Duration(config.Application.SessionTTLMinutes) * time.Minute,
		now:            time.Now,
		sessions:       make(map[string]*entry),
		stop:           make(chan struct{}),
	}
}

// Create opens a new session in Idle.
func (s *SessionService) Create(ctx context.Context) (session.Session, error) {
	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return session.Session{}, err
	}
	dir, err := os.MkdirTemp(s.uploadDir, "session-")
	if err != nil {
		return session.Session{}, err
	}
	now := s.now()
	sess := session.New(uuid.NewString(), now)

	s.mu.Lock()
	s.sessions[sess.ID] = &entry{session: sess, dir: dir, lastSeen: now}
	s.mu.Unlock()

	slog.DebugContext(ctx, "session created", "session", sess.ID)
	return sess, nil
}

// Get returns the current state of a session.
func (s *SessionService) Get(id string) (session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.lookup(id)
	if err != nil {
		return session.Session{}, err
	}
	return e.session, nil
}

// SelectFile stores the upload read from r as the session's video. A declared
// type that is not video/* is ignored: nothing is written and the session is
// returned unchanged. The declared type decides acceptance; the sniffed type
// only picks the file extension and the preview media type.
//
// Inputs:
//   - ctx: The request context.
//   - id: The session id.
//   - name: The original file name.
//   - declaredType: The media type the client declared for the file.
//   - r: The file contents.
//
// Outputs:
//   - session.Session: The session after the selection.
//   - error: ErrSessionNotFound, ErrFileTooLarge, or an I/O error.
func (s *SessionService) SelectFile(ctx context.Context, id string, name string, declaredType string, r io.Reader) (session.Session, error) {
	s.mu.Lock()
	e, err := s.lookup(id)
	if err != nil {
		s.mu.Unlock()
		return session.Session{}, err
	}
	current, dir := e.session, e.dir
	s.mu.Unlock()

	if !model.IsVideoType(declaredType) {
		slog.InfoContext(ctx, "ignoring non-video file", "session", id, "name", name, "content_type", declaredType)
		return current, nil
	}

	path, size, previewMIME, err := s.store(dir, r)
	if err != nil {
		return current, err
	}

	video := &model.VideoFile{
		Name:        filepath.Base(name),
		ContentType: declaredType,
		Size:        size,
		Path:        path,
	}

	s.mu.Lock()
	e, err = s.lookup(id)
	if err != nil {
		s.mu.Unlock()
		_ = os.Remove(path)
		return session.Session{}, err
	}
	previous := e.session.File
	next, err := session.Apply(e.session, session.Event{
		Type:       session.SelectFile,
		File:       video,
		PreviewURL: PreviewURL(id),
		At:         s.now(),
	})
	if err != nil {
		s.mu.Unlock()
		_ = os.Remove(path)
		return current, err
	}
	e.supersede()
	e.session = next
	e.previewMIME = previewMIME
	if e.previewMIME == "" {
		e.previewMIME = declaredType
	}
	s.mu.Unlock()

	removeFile(ctx, previous)
	slog.InfoContext(ctx, "video selected", "session", id, "name", video.Name, "size", size, "revision", next.Revision)
	return next, nil
}

// store copies r into a new file under dir, enforcing the upload limit. The
// returned media type is empty when the contents are not recognised.
func (s *SessionService) store(dir string, r io.Reader) (path string, size int64, previewMIME string, err error) {
	f, err := os.CreateTemp(dir, "upload-*")
	if err != nil {
		return "", 0, "", err
	}
	path = f.Name()
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(path)
		}
	}()

	size, err = io.Copy(f, io.LimitReader(r, s.maxUploadBytes+1))
	if err != nil {
		return "", 0, "", err
	}
	if size > s.maxUploadBytes {
		return "", 0, "", fmt.Errorf("%w: limit is %d bytes", ErrFileTooLarge, s.maxUploadBytes)
	}

	head := make([]byte, sniffLen)
	n, err := f.ReadAt(head, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return "", 0, "", err
	}
	if err = f.Close(); err != nil {
		return "", 0, "", err
	}

	kind, _ := filetype.Match(head[:n])
	if kind == filetype.Unknown {
		return path, size, "", nil
	}
	renamed := path + "." + kind.Extension
	if err = os.Rename(path, renamed); err != nil {
		return "", 0, "", err
	}
	return renamed, size, kind.MIME.Value, nil
}

// ClearFile removes the session's video and returns it to Idle.
func (s *SessionService) ClearFile(ctx context.Context, id string) (session.Session, error) {
	s.mu.Lock()
	e, err := s.lookup(id)
	if err != nil {
		s.mu.Unlock()
		return session.Session{}, err
	}
	previous := e.session.File
	next, err := session.Apply(e.session, session.Event{Type: session.ClearFile, At: s.now()})
	if err != nil {
		s.mu.Unlock()
		return e.session, err
	}
	e.supersede()
	e.session = next
	e.previewMIME = ""
	s.mu.Unlock()

	removeFile(ctx, previous)
	return next, nil
}

// Run executes the workflow for the session's video and blocks until it
// finishes. Only a session in Ready can run, and a run superseded by a file
// change must have returned before the next one starts, so at most one
// workflow per session is in flight. On failure the session is back in Ready
// with the generic failure notice, and the pipeline error is returned
// alongside it.
//
// Inputs:
//   - ctx: Bounds the run; cancelling it fails the run.
//   - id: The session id.
//
// Outputs:
//   - session.Session: The session once the run has been applied.
//   - error: nil on success, session.ErrInvalidTransition if the session cannot
//     run, ErrRunInFlight while a superseded run drains, session.ErrStaleRun
//     if the file changed during the run, or the pipeline error (a
//     *model.SamplingError or *model.GenerationError).
func (s *SessionService) Run(ctx context.Context, id string) (session.Session, error) {
	s.mu.Lock()
	e, err := s.lookup(id)
	if err != nil {
		s.mu.Unlock()
		return session.Session{}, err
	}
	if e.inFlight != nil {
		s.mu.Unlock()
		return e.session, ErrRunInFlight
	}
	next, err := session.Apply(e.session, session.Event{
		Type:   session.Run,
		Status: s.messages.SamplingStatus,
		At:     s.now(),
	})
	if err != nil {
		s.mu.Unlock()
		return e.session, err
	}
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	inFlight := make(chan struct{})
	e.session = next
	e.inFlight, e.cancel = inFlight, cancel
	revision := next.Revision
	video := *next.File
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		if e.inFlight == inFlight {
			e.inFlight, e.cancel = nil, nil
		}
		s.mu.Unlock()
		close(inFlight)
	}()

	slog.InfoContext(ctx, "run started", "session", id, "name", video.Name, "revision", revision)
	start := s.now()

	progress := func(status string) {
		if _, err := s.apply(id, session.Event{Type: session.Phase, Status: status, Revision: revision}); err != nil {
			slog.DebugContext(ctx, "progress dropped", "session", id, "error", err)
		}
	}
	result, runErr := s.workflow.Run(runCtx, &video, progress)
	if runErr == nil && result == nil {
		runErr = model.NewGenerationError(errors.New("no result"))
	}

	event := session.Event{Type: session.Complete, Result: result, Revision: revision, At: s.now()}
	if runErr != nil {
		event = session.Event{Type: session.Fail, Notice: s.messages.FailureNotice, Revision: revision, At: s.now()}
	}
	superseded := runCtx.Err() != nil && ctx.Err() == nil
	if runErr != nil && !superseded {
		slog.ErrorContext(ctx, "run failed", "session", id, "kind", errorKind(runErr), "error", runErr)
	}

	final, err := s.apply(id, event)
	if err != nil {
		if errors.Is(err, session.ErrStaleRun) {
			slog.InfoContext(ctx, "discarding stale run", "session", id, "revision", revision)
		}
		return final, err
	}
	if runErr != nil {
		return final, runErr
	}
	slog.InfoContext(ctx, "run completed", "session", id, "duration", s.now().Sub(start), "style_tags", len(result.StyleTags))
	return final, nil
}

// DismissNotice clears the session's notice once the page has shown it.
func (s *SessionService) DismissNotice(id string) (session.Session, error) {
	return s.apply(id, session.Event{Type: session.Dismiss, At: s.now()})
}

// Copy returns the text to place on the clipboard for field together with the
// confirmation message. It only succeeds in Completed.
func (s *SessionService) Copy(id string, field session.Field) (text string, confirmation string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.lookup(id)
	if err != nil {
		return "", "", err
	}
	if _, err = session.Apply(e.session, session.Event{Type: session.Copy, Field: field}); err != nil {
		return "", "", err
	}
	text, err = session.CopyText(e.session, field)
	if err != nil {
		return "", "", err
	}
	return text, s.messages.CopyConfirmation, nil
}

// Preview returns the path and media type of the session's video.
func (s *SessionService) Preview(id string) (path string, mimeType string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.lookup(id)
	if err != nil {
		return "", "", err
	}
	if e.session.File == nil {
		return "", "", ErrNoFile
	}
	return e.session.File.Path, e.previewMIME, nil
}

// EvictExpired drops every session not touched since now minus the TTL,
// skipping sessions with a run in flight. It returns the number evicted.
func (s *SessionService) EvictExpired(now time.Time) int {
	if s.ttl <= 0 {
		return 0
	}
	var dirs []string
	s.mu.Lock()
	for id, e := range s.sessions {
		if e.session.Busy || e.inFlight != nil || now.Sub(e.lastSeen) < s.ttl {
			continue
		}
		dirs = append(dirs, e.dir)
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	for _, dir := range dirs {
		if err := os.RemoveAll(dir); err != nil {
			slog.Warn("failed to remove session dir", "dir", dir, "error", err)
		}
	}
	return len(dirs)
}

// StartJanitor evicts expired sessions every interval until ctx is done or the
// service is closed.
func (s *SessionService) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 || s.ttl <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			case <-ticker.C:
				if n := s.EvictExpired(s.now()); n > 0 {
					slog.InfoContext(ctx, "evicted expired sessions", "count", n)
				}
			}
		}
	}()
}

// Close stops the janitor, cancels the runs in flight and removes every
// session's uploads.
func (s *SessionService) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	s.mu.Lock()
	entries := s.sessions
	s.sessions = make(map[string]*entry)
	for _, e := range entries {
		e.supersede()
	}
	s.mu.Unlock()

	var errs []error
	for _, e := range entries {
		errs = append(errs, os.RemoveAll(e.dir))
	}
	return errors.Join(errs...)
}

// PreviewURL is where the API serves the video of session id.
func PreviewURL(id string) string {
	return "/api/v1/sessions/" + id + "/preview"
}

// apply applies event to the session under the lock.
func (s *SessionService) apply(id string, event session.Event) (session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.lookup(id)
	if err != nil {
		return session.Session{}, err
	}
	next, err := session.Apply(e.session, event)
	if err != nil {
		return e.session, err
	}
	e.session = next
	return next, nil
}

// lookup finds a session and marks it as seen. Callers hold s.mu.
func (s *SessionService) lookup(id string) (*entry, error) {
	e, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	e.lastSeen = s.now()
	return e, nil
}

func removeFile(ctx context.Context, video *model.VideoFile) {
	if video == nil || video.Path == "" {
		return
	}
	if err := os.Remove(video.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.WarnContext(ctx, "failed to remove previous upload", "path", video.Path, "error", err)
	}
}

// errorKind names the pipeline stage that failed, for logs.
func errorKind(err error) string {
	var samplingErr *model.SamplingError
	var generationErr *model.GenerationError
	switch {
	case errors.As(err, &samplingErr):
		return "sampling"
	case errors.As(err, &generationErr):
		return "generation"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "unknown"
	}
}
