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

// Package api contains the HTTP surface of the server: the page a user works
// in and the JSON routes the page calls.
//
// Routes:
//   - GET  /                                 The analyzer page for the caller's session.
//   - GET  /healthz                          Liveness probe.
//   - POST /api/v1/sessions                  Create a session.
//   - GET  /api/v1/sessions/:id              Current session state (polled while running).
//   - POST /api/v1/sessions/:id/file         Select a video (multipart field "file").
//   - DELETE /api/v1/sessions/:id/file       Remove the selected video.
//   - GET  /api/v1/sessions/:id/preview      Stream the selected video.
//   - POST /api/v1/sessions/:id/run          Run the pipeline; blocks until done.
//   - POST /api/v1/sessions/:id/copy         Text to copy for a result field.
package api

import (
	"html/template"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/jaycherian/gcp-go-replica-prompt/internal/cloud"
	"github.com/jaycherian/gcp-go-replica-prompt/internal/core/services"
)

// multipartOverhead is the allowance for multipart framing on top of the
// upload limit.
const multipartOverhead = 1 << 20

// Server holds what the handlers need.
type Server struct {
	sessions *services.SessionService
	messages cloud.Messages
	maxBody  int64 // Largest request body accepted by SelectFile.
}

// NewRouter builds the gin engine serving the page and the session API.
//
// Inputs:
//   - config: Supplies the service name for tracing and the user-facing messages.
//   - sessions: The session service the handlers drive.
//
// Outputs:
//   - *gin.Engine: The router, ready to be used as an http.Handler.
func NewRouter(config *cloud.Config, sessions *services.SessionService) *gin.Engine {
	s := &Server{
		sessions: sessions,
		messages: config.Messages,
		maxBody:  config.Application.MaxUploadMB<<20 + multipartOverhead,
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(config.Application.Name))
	r.Use(cors.Default())
	r.SetHTMLTemplate(template.Must(template.New("").ParseFS(templates, "templates/*.html")))

	r.GET("/", s.Page)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	apiV1 := r.Group("/api/v1")
	{
		SessionRouter(apiV1, s)
	}
	return r
}

// SessionRouter registers the session routes under r.
func SessionRouter(r *gin.RouterGroup, s *Server) {
	sessions := r.Group("/sessions")
	{
		sessions.POST("", s.CreateSession)
		sessions.GET("/:id", s.GetSession)
		sessions.POST("/:id/file", s.SelectFile)
		sessions.DELETE("/:id/file", s.ClearFile)
		sessions.GET("/:id/preview", s.Preview)
		sessions.POST("/:id/run", s.Run)
		sessions.POST("/:id/copy", s.Copy)
	}
}
