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

package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jaycherian/gcp-go-replica-prompt/internal/core/model"
	"github.com/jaycherian/gcp-go-replica-prompt/internal/core/services"
	"github.com/jaycherian/gcp-go-replica-prompt/internal/core/session"
)

// copyRequest is the body of POST /copy. An empty field copies the prompt.
type copyRequest struct {
	Field session.Field `json:"field"`
}

// copyResponse carries the clipboard text and the confirmation to show once
// the browser has written it.
type copyResponse struct {
	Text         string `json:"text"`
	Confirmation string `json:"confirmation"`
}

// CreateSession opens a new session in Idle and answers 201 with it.
func (s *Server) CreateSession(c *gin.Context) {
	sess, err := s.sessions.Create(c.Request.Context())
	if err != nil {
		s.fail(c, err, session.Session{})
		return
	}
	c.JSON(http.StatusCreated, sess)
}

// GetSession returns the current session. The page polls it while a run is in
// flight to show the status line.
func (s *Server) GetSession(c *gin.Context) {
	sess, err := s.sessions.Get(c.Param("id"))
	if err != nil {
		s.fail(c, err, session.Session{})
		return
	}
	c.JSON(http.StatusOK, sess)
}

// SelectFile reads the multipart field "file". The media type the client
// declared for the part decides whether the file is accepted. The body is
// capped before it is parsed, so an oversized upload is refused with 413
// without being spooled to disk.
func (s *Server) SelectFile(c *gin.Context) {
	if s.maxBody > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxBody)
	}
	header, err := c.FormFile("file")
	if err != nil {
		if bodyTooLarge(err) {
			s.fail(c, services.ErrFileTooLarge, session.Session{})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing file"})
		return
	}
	f, err := header.Open()
	if err != nil {
		s.fail(c, err, session.Session{})
		return
	}
	defer f.Close()

	sess, err := s.sessions.SelectFile(c.Request.Context(), c.Param("id"), header.Filename, header.Header.Get("Content-Type"), f)
	if err != nil {
		s.fail(c, err, sess)
		return
	}
	c.JSON(http.StatusOK, sess)
}

// ClearFile removes the selected video and cancels a run still working on it.
func (s *Server) ClearFile(c *gin.Context) {
	sess, err := s.sessions.ClearFile(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err, sess)
		return
	}
	c.JSON(http.StatusOK, sess)
}

// Preview streams the selected video with the media type recorded at upload.
func (s *Server) Preview(c *gin.Context) {
	path, mimeType, err := s.sessions.Preview(c.Param("id"))
	if err != nil {
		s.fail(c, err, session.Session{})
		return
	}
	c.Header("Content-Type", mimeType)
	c.File(path)
}

// Run blocks until the pipeline finishes. The page polls GetSession for the
// status line meanwhile.
func (s *Server) Run(c *gin.Context) {
	sess, err := s.sessions.Run(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err, sess)
		return
	}
	c.JSON(http.StatusOK, sess)
}

// Copy returns the text of one result field for the clipboard, with the
// confirmation the page shows once the browser has written it. An empty body
// copies the prompt.
func (s *Server) Copy(c *gin.Context) {
	var req copyRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	text, confirmation, err := s.sessions.Copy(c.Param("id"), req.Field)
	if err != nil {
		s.fail(c, err, session.Session{})
		return
	}
	c.JSON(http.StatusOK, copyResponse{Text: text, Confirmation: confirmation})
}

// fail writes the error response for err. Pipeline failures never expose
// their cause: the body carries the session with its generic notice.
func (s *Server) fail(c *gin.Context, err error, sess session.Session) {
	code := statusCode(err)
	body := gin.H{"error": err.Error()}
	if code == http.StatusBadGateway {
		body["error"] = s.messages.FailureNotice
	}
	if sess.ID != "" {
		body["session"] = sess
	}
	if code >= http.StatusInternalServerError {
		slog.ErrorContext(c.Request.Context(), "request failed", "path", c.FullPath(), "status", code, "error", err)
	}
	c.JSON(code, body)
}

// bodyTooLarge reports whether err comes from the http.MaxBytesReader wrapped
// around the request body. The multipart reader does not always wrap the
// underlying error, so the message is checked as well.
func bodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large")
}

func statusCode(err error) int {
	var samplingErr *model.SamplingError
	var generationErr *model.GenerationError
	switch {
	case errors.Is(err, services.ErrSessionNotFound), errors.Is(err, services.ErrNoFile):
		return http.StatusNotFound
	case errors.Is(err, session.ErrInvalidTransition), errors.Is(err, session.ErrStaleRun):
		return http.StatusConflict
	case errors.Is(err, services.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, session.ErrUnknownField):
		return http.StatusBadRequest
	case errors.As(err, &samplingErr), errors.As(err, &generationErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
