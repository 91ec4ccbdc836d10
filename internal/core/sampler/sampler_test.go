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

package sampler

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaycherian/gcp-go-replica-prompt/internal/cloud"
	"github.com/jaycherian/gcp-go-replica-prompt/internal/core/model"
)

func TestTimestamps(t *testing.T) {
	t.Run("evenly spaced", func(t *testing.T) {
		ts := Timestamps(10, 30, 5)
		assert.Equal(t, []float64{0, 2, 4, 6, 8}, ts)
	})

	t.Run("short clip yields fewer frames", func(t *testing.T) {
		// 0.2s at 25fps holds 5 frames.
		ts := Timestamps(0.2, 25, 15)
		require.Len(t, ts, 5)
		assert.InDelta(t, 0.04, ts[1], 1e-9)
	})

	t.Run("at least one frame", func(t *testing.T) {
		assert.Equal(t, []float64{0}, Timestamps(0.01, 25, 15))
	})

	t.Run("unknown fps does not cap", func(t *testing.T) {
		assert.Len(t, Timestamps(1, 0, 15), 15)
	})

	t.Run("degenerate input", func(t *testing.T) {
		assert.Nil(t, Timestamps(0, 25, 15))
		assert.Nil(t, Timestamps(-1, 25, 15))
		assert.Nil(t, Timestamps(10, 25, 0))
	})

	t.Run("strictly increasing within duration", func(t *testing.T) {
		for _, c := range []struct {
			duration, fps float64
			count         int
		}{{3.7, 29.97, 15}, {120, 60, 15}, {0.5, 24, 15}, {7, 1, 15}} {
			ts := Timestamps(c.duration, c.fps, c.count)
			require.NotEmpty(t, ts)
			assert.LessOrEqual(t, len(ts), c.count)
			for i := range ts {
				assert.GreaterOrEqual(t, ts[i], 0.0)
				assert.Less(t, ts[i], c.duration)
				if i > 0 {
					assert.Greater(t, ts[i], ts[i-1])
				}
			}
		}
	})
}

func TestParseFrameRate(t *testing.T) {
	assert.InDelta(t, 29.97, ParseFrameRate("30000/1001"), 0.001)
	assert.Equal(t, 25.0, ParseFrameRate("25/1"))
	assert.Equal(t, 24.0, ParseFrameRate("24"))
	assert.Equal(t, 0.0, ParseFrameRate("0/0"))
	assert.Equal(t, 0.0, ParseFrameRate(""))
	assert.Equal(t, 0.0, ParseFrameRate("abc"))
}

func TestParseProbe(t *testing.T) {
	output := []byte(`{
	  "streams": [
	    {"codec_type": "audio", "r_frame_rate": "0/0"},
	    {"codec_type": "video", "width": 1920, "height": 1080, "r_frame_rate": "30/1", "avg_frame_rate": "30000/1001"}
	  ],
	  "format": {"duration": "12.480000"}
	}`)
	info, err := parseProbe(output)
	require.NoError(t, err)
	assert.True(t, info.HasVideo)
	assert.Equal(t, 1920, info.Width)
	assert.Equal(t, 1080, info.Height)
	assert.InDelta(t, 12.48, info.Duration, 1e-9)
	assert.InDelta(t, 29.97, info.FPS, 0.001)

	info, err = parseProbe([]byte(`{"streams":[{"codec_type":"audio"}],"format":{"duration":"3.0"}}`))
	require.NoError(t, err)
	assert.False(t, info.HasVideo)

	_, err = parseProbe([]byte("not json"))
	assert.Error(t, err)
}

func TestFrameArgs(t *testing.T) {
	s := NewFFmpegSampler(cloud.Sampling{MaxWidth: 640, JPEGQuality: 0})
	args := s.frameArgs("/tmp/in.mp4", 1.5)
	assert.Equal(t, []string{
		"-hide_banner", "-loglevel", "error",
		"-ss", "1.500",
		"-i", "/tmp/in.mp4",
		"-frames:v", "1",
		"-vf", "scale='min(640,iw)':-2",
		"-q:v", "4",
		"-f", "image2pipe", "-vcodec", "mjpeg", "-",
	}, args)
}

func TestSample_MissingFile(t *testing.T) {
	s := NewFFmpegSampler(cloud.Sampling{})
	_, err := s.Sample(context.Background(), filepath.Join(t.TempDir(), "missing.mp4"), 5)
	var samplingErr *model.SamplingError
	assert.True(t, errors.As(err, &samplingErr))
}

func skipIfNoFFmpeg(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not found in PATH")
	}
	if _, err := exec.LookPath("ffprobe"); err != nil {
		t.Skip("ffprobe not found in PATH")
	}
}

// makeTestVideo renders a synthetic clip with ffmpeg's lavfi test source.
func makeTestVideo(t *testing.T, seconds string, rate string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.mp4")
	cmd := exec.Command("ffmpeg", "-hide_banner", "-loglevel", "error", "-y",
		"-f", "lavfi", "-i", "testsrc=size=320x240:rate="+rate+":duration="+seconds,
		"-pix_fmt", "yuv420p", path)
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, string(out))
	return path
}

func TestSample_SyntheticVideo(t *testing.T) {
	skipIfNoFFmpeg(t)
	path := makeTestVideo(t, "3", "25")

	s := NewFFmpegSampler(cloud.Sampling{MaxWidth: 160, JPEGQuality: 5, TimeoutInSeconds: 30})
	frames, err := s.Sample(context.Background(), path, 6)
	require.NoError(t, err)
	require.Len(t, frames, 6)
	for i, f := range frames {
		assert.Equal(t, JPEGMIMEType, f.MIMEType)
		assert.Equal(t, []byte{0xFF, 0xD8}, f.Data[:2])
		if i > 0 {
			assert.Greater(t, f.Timestamp, frames[i-1].Timestamp)
		}
	}
}

func TestSample_NotAVideo(t *testing.T) {
	skipIfNoFFmpeg(t)
	path := filepath.Join(t.TempDir(), "notes.mp4")
	require.NoError(t, os.WriteFile(path, []byte("definitely not a video"), 0o600))

	s := NewFFmpegSampler(cloud.Sampling{TimeoutInSeconds: 30})
	_, err := s.Sample(context.Background(), path, 5)
	var samplingErr *model.SamplingError
	assert.True(t, errors.As(err, &samplingErr))
}
