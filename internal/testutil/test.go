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

// Package test provides helpers shared by the test suites: loading the test
// configuration once, and small fixtures (frames, results) for the workflow
// and service tests.
package test

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/jaycherian/gcp-go-replica-prompt/internal/cloud"
	"github.com/jaycherian/gcp-go-replica-prompt/internal/core/model"
)

var (
	configOnce sync.Once
	config     *cloud.Config
	configErr  error
)

// HandleErr fails the test immediately when err is not nil.
func HandleErr(err error, t *testing.T) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// ModuleRoot walks up from the working directory to the directory holding go.mod.
func ModuleRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("go.mod not found")
		}
		dir = parent
	}
}

// SetupOS points the configuration loader at the repository's configs
// directory and selects the "test" runtime (configs/.env.test.toml).
func SetupOS() error {
	root, err := ModuleRoot()
	if err != nil {
		return err
	}
	if err := os.Setenv(cloud.EnvConfigFilePrefix, filepath.Join(root, "configs")); err != nil {
		return err
	}
	return os.Setenv(cloud.EnvConfigRuntime, "test")
}

// GetConfig loads the test configuration once per test binary. Callers must
// not modify the returned value; use a copy for per-test changes.
func GetConfig(t *testing.T) *cloud.Config {
	t.Helper()
	configOnce.Do(func() {
		if configErr = SetupOS(); configErr != nil {
			return
		}
		cfg := cloud.NewConfig()
		if configErr = cloud.LoadConfig(cfg); configErr != nil {
			return
		}
		config = cfg
	})
	HandleErr(configErr, t)
	return config
}

// GetTestFrames returns n tiny fake JPEG frames one second apart.
func GetTestFrames(n int) []*model.Frame {
	frames := make([]*model.Frame, 0, n)
	for i := 0; i < n; i++ {
		frames = append(frames, &model.Frame{
			Data:      []byte{0xFF, 0xD8, 0xFF, 0xE0, byte(i), 0xFF, 0xD9},
			MIMEType:  "image/jpeg",
			Timestamp: float64(i),
		})
	}
	return frames
}

// GetTestResult returns a complete GenerationResult.
func GetTestResult() *model.GenerationResult {
	return &model.GenerationResult{
		Prompt:    "A woman in a yellow coat crosses a zebra crossing from left to right.",
		Analysis:  "One adult woman, one zebra crossing, no vehicles.",
		StyleTags: []string{"realistic", "daylight"},
	}
}
