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
	"embed"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jaycherian/gcp-go-replica-prompt/internal/cloud"
	"github.com/jaycherian/gcp-go-replica-prompt/internal/core/services"
	"github.com/jaycherian/gcp-go-replica-prompt/internal/core/session"
)

//go:embed templates/*.html
var templates embed.FS

// SessionCookie names the cookie binding a browser to its session.
const SessionCookie = "replica_session"

// pageData is what templates/index.html renders.
type pageData struct {
	Messages cloud.Messages
	Session  session.Session
}

// HasFile reports whether a video is selected.
func (p pageData) HasFile() bool { return p.Session.File != nil }

// Running reports whether a run is in flight.
func (p pageData) Running() bool { return p.Session.State == session.Running }

// ShowResult reports whether the result panel is rendered. A result exists only
// in Completed.
func (p pageData) ShowResult() bool {
	return p.Session.State == session.Completed && p.Session.Result != nil
}

// ShowRun reports whether the trigger button is rendered: a file is selected
// and there is no result yet.
func (p pageData) ShowRun() bool {
	return p.HasFile() && !p.ShowResult()
}

// Page renders the analyzer for the caller's session, creating one when the
// cookie is missing or names an evicted session. A notice is rendered once:
// it is dismissed as soon as the page carrying it is served.
func (s *Server) Page(c *gin.Context) {
	var sess session.Session
	id, err := c.Cookie(SessionCookie)
	if err == nil {
		sess, err = s.sessions.Get(id)
	}
	if err != nil {
		if !errors.Is(err, http.ErrNoCookie) && !errors.Is(err, services.ErrSessionNotFound) {
			s.fail(c, err, session.Session{})
			return
		}
		if sess, err = s.sessions.Create(c.Request.Context()); err != nil {
			s.fail(c, err, session.Session{})
			return
		}
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(SessionCookie, sess.ID, 0, "/", "", false, true)
	}
	if sess.Notice != "" {
		if _, err := s.sessions.DismissNotice(sess.ID); err != nil {
			slog.WarnContext(c.Request.Context(), "failed to dismiss notice", "session", sess.ID, "error", err)
		}
	}
	c.HTML(http.StatusOK, "index.html", pageData{Messages: s.messages, Session: sess})
}
