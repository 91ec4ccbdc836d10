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

// Package model defines the core data structures for the application.
// This file, `transient.go`, contains the objects that flow through a single
// replica prompt run: the uploaded video, the frames sampled from it and the
// result returned by the multimodal model. None of them outlive the session
// that created them; nothing here is persisted.
package model

import (
	"encoding/base64"
	"strings"
)

// VideoPrefix is the media type prefix every accepted upload must declare.
const VideoPrefix = "video/"

// VideoFile is the handle to the video selected for a session. The bytes live in
// a temporary file owned by the session; Path is only valid while the session
// keeps this file selected.
type VideoFile struct {
	Name        string `json:"name"`         // The original file name supplied by the browser.
	ContentType string `json:"content_type"` // The declared media type (e.g., "video/mp4").
	Size        int64  `json:"size"`         // Size of the upload in bytes.
	Path        string `json:"-"`            // Local path of the temporary copy.
}

// IsVideoType reports whether a declared media type names a video.
func IsVideoType(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), VideoPrefix)
}

// IsVideo reports whether the file declared a video media type.
func (v *VideoFile) IsVideo() bool {
	return v != nil && IsVideoType(v.ContentType)
}

// Frame is a single still image sampled from a video. Data holds the encoded
// image; encoding/json serialises it as base64 text.
type Frame struct {
	Data      []byte  `json:"data"`      // Encoded image bytes (JPEG).
	MIMEType  string  `json:"mime_type"` // The image media type, typically "image/jpeg".
	Timestamp float64 `json:"timestamp"` // Position of the frame in the source, in seconds.
}

// Base64 returns the encoded image as standard base64 text.
func (f *Frame) Base64() string {
	return base64.StdEncoding.EncodeToString(f.Data)
}

// DataURL returns the frame as a data URL, the form accepted by OpenAI-compatible
// chat endpoints for inline images.
func (f *Frame) DataURL() string {
	return "data:" + f.MIMEType + ";base64," + f.Base64()
}

// GenerationResult is the structured answer of the multimodal model. The JSON
// names match the schema the model is asked to produce.
type GenerationResult struct {
	Prompt    string   `json:"prompt"`    // The literal replica prompt.
	Analysis  string   `json:"analysis"`  // Free-text description of subjects, objects and motion.
	StyleTags []string `json:"styleTags"` // Short labels characterising the visual style, in model order.
}
