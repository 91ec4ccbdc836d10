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

// Package sampler turns a local video file into a handful of still frames
// evenly spaced across its duration, using the ffprobe and ffmpeg binaries.
//
// Logic Flow:
//  1. `ffprobe` reports the duration, frame rate and size of the first video stream.
//  2. `Timestamps` plans at most N positions (fewer for very short clips).
//  3. For each position `ffmpeg` seeks, decodes one frame, scales it down to the
//     configured width and writes a JPEG to stdout, which is kept in memory.
//
// Every failure is returned as a *model.SamplingError.
package sampler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/jaycherian/gcp-go-replica-prompt/internal/cloud"
	"github.com/jaycherian/gcp-go-replica-prompt/internal/core/model"
)

// Sampler errors wrapped in a *model.SamplingError.
var (
	ErrNoVideoStream = errors.New("no video stream")
	ErrNoDuration    = errors.New("video has no duration")
	ErrNoFrames      = errors.New("no frames could be decoded")
)

// JPEGMIMEType is the media type of every sampled frame.
const JPEGMIMEType = "image/jpeg"

// FFmpegSampler samples frames by shelling out to ffprobe and ffmpeg.
type FFmpegSampler struct {
	ffmpegPath  string
	ffprobePath string
	maxWidth    int
	quality     int
	timeout     time.Duration // Per invocation; 0 means no timeout beyond the caller's context.
}

// NewFFmpegSampler creates a sampler from the sampling configuration.
//
// Inputs:
//   - config: Binary paths, output width and JPEG quality, per-call timeout.
//
// Outputs:
//   - *FFmpegSampler: A pointer to the newly instantiated sampler.
func NewFFmpegSampler(config cloud.Sampling) *FFmpegSampler {
	s := &FFmpegSampler{
		ffmpegPath:  config.FFmpegPath,
		ffprobePath: config.FFprobePath,
		maxWidth:    config.MaxWidth,
		quality:     config.JPEGQuality,
		timeout:     time.Duration(config.TimeoutInSeconds) * time.Second,
	}
	if s.ffmpegPath == "" {
		s.ffmpegPath = "ffmpeg"
	}
	if s.ffprobePath == "" {
		s.ffprobePath = "ffprobe"
	}
	if s.quality < 2 || s.quality > 31 {
		s.quality = 4
	}
	return s
}

// Sample returns at most count frames of the video at path, in increasing
// timestamp order.
func (s *FFmpegSampler) Sample(ctx context.Context, path string, count int) ([]*model.Frame, error) {
	if count <= 0 {
		return nil, model.NewSamplingError(fmt.Errorf("invalid frame count %d", count))
	}
	if _, err := os.Stat(path); err != nil {
		return nil, model.NewSamplingError(err)
	}

	info, err := s.Probe(ctx, path)
	if err != nil {
		return nil, model.NewSamplingError(err)
	}
	if !info.HasVideo {
		return nil, model.NewSamplingError(ErrNoVideoStream)
	}
	if info.Duration <= 0 {
		return nil, model.NewSamplingError(ErrNoDuration)
	}

	timestamps := Timestamps(info.Duration, info.FPS, count)
	frames := make([]*model.Frame, 0, len(timestamps))
	for _, ts := range timestamps {
		data, err := s.ExtractFrame(ctx, path, ts)
		if err != nil {
			return nil, model.NewSamplingError(err)
		}
		if len(data) == 0 {
			slog.DebugContext(ctx, "empty frame skipped", "path", path, "timestamp", ts)
			continue
		}
		frames = append(frames, &model.Frame{Data: data, MIMEType: JPEGMIMEType, Timestamp: ts})
	}
	if len(frames) == 0 {
		return nil, model.NewSamplingError(ErrNoFrames)
	}

	slog.DebugContext(ctx, "frames sampled", "path", path, "requested", count, "sampled", len(frames),
		"duration", info.Duration, "fps", info.FPS)
	return frames, nil
}

// Probe runs ffprobe on path.
func (s *FFmpegSampler) Probe(ctx context.Context, path string) (*VideoInfo, error) {
	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	}
	output, err := s.run(ctx, s.ffprobePath, args)
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}
	return parseProbe(output)
}

// ExtractFrame decodes the frame at timestamp (seconds) and returns it as JPEG.
func (s *FFmpegSampler) ExtractFrame(ctx context.Context, path string, timestamp float64) ([]byte, error) {
	output, err := s.run(ctx, s.ffmpegPath, s.frameArgs(path, timestamp))
	if err != nil {
		return nil, fmt.Errorf("ffmpeg failed at %.3fs: %w", timestamp, err)
	}
	return output, nil
}

// frameArgs builds the ffmpeg command line for one frame. Seeking before -i
// is keyframe-accurate in modern ffmpeg and avoids decoding from the start.
func (s *FFmpegSampler) frameArgs(path string, timestamp float64) []string {
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-ss", strconv.FormatFloat(timestamp, 'f', 3, 64),
		"-i", path,
		"-frames:v", "1",
	}
	if s.maxWidth > 0 {
		args = append(args, "-vf", fmt.Sprintf("scale='min(%d,iw)':-2", s.maxWidth))
	}
	return append(args,
		"-q:v", strconv.Itoa(s.quality),
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-",
	)
}

// run executes a binary with the configured timeout and returns its stdout.
// On failure the tail of stderr is part of the error.
func (s *FFmpegSampler) run(ctx context.Context, binary string, args []string) ([]byte, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, lastLine(msg))
		}
		return nil, err
	}
	return stdout.Bytes(), nil
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
