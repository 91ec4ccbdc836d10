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

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jaycherian/gcp-go-replica-prompt/internal/cloud"
	"github.com/jaycherian/gcp-go-replica-prompt/internal/core/generator"
	"github.com/jaycherian/gcp-go-replica-prompt/internal/core/sampler"
	"github.com/jaycherian/gcp-go-replica-prompt/internal/core/services"
	"github.com/jaycherian/gcp-go-replica-prompt/internal/core/workflow"
)

// StateManager holds the shared components of the server.
type StateManager struct {
	config   *cloud.Config
	cloud    *cloud.ServiceClients
	sessions *services.SessionService
}

var state = &StateManager{}

// SetupOS defaults the config location to ./configs and the runtime to
// "local". Values already present in the environment win.
func SetupOS() (err error) {
	if _, ok := os.LookupEnv(cloud.EnvConfigFilePrefix); !ok {
		if err = os.Setenv(cloud.EnvConfigFilePrefix, "configs"); err != nil {
			return err
		}
	}
	if _, ok := os.LookupEnv(cloud.EnvConfigRuntime); !ok {
		err = os.Setenv(cloud.EnvConfigRuntime, "local")
	}
	return err
}

// GetConfig loads the TOML configuration and the API keys from the environment.
func GetConfig() (*cloud.Config, error) {
	if state.config != nil {
		return state.config, nil
	}
	if err := SetupOS(); err != nil {
		return nil, fmt.Errorf("failed to setup os: %w", err)
	}
	config := cloud.NewConfig()
	if err := cloud.LoadConfig(config); err != nil {
		return nil, err
	}
	credentials, err := cloud.LoadCredentials()
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials: %w", err)
	}
	config.Credentials = credentials
	state.config = config
	return config, nil
}

// InitState builds the pipeline and the session service.
//
// Inputs:
//   - ctx: The application's root context; it bounds the session janitor.
//   - config: The loaded configuration.
//
// Outputs:
//   - error: Non-nil if the model clients or the generator cannot be created.
func InitState(ctx context.Context, config *cloud.Config) error {
	cloudClients, err := cloud.NewCloudServiceClients(ctx, config)
	if err != nil {
		return err
	}
	state.cloud = cloudClients

	promptGenerator, err := generator.New(config, cloudClients)
	if err != nil {
		return err
	}
	frameSampler := sampler.NewFFmpegSampler(config.Sampling)
	replicaPrompt := workflow.NewReplicaPromptWorkflow(config, frameSampler, promptGenerator)

	state.sessions = services.NewSessionService(config, replicaPrompt)
	state.sessions.StartJanitor(ctx, janitorInterval(config))
	return nil
}

// janitorInterval checks for expired sessions four times per TTL, at most once a minute.
func janitorInterval(config *cloud.Config) time.Duration {
	ttl := time.Duration(config.Application.SessionTTLMinutes) * time.Minute
	return max(ttl/4, time.Minute)
}

// Close releases the model clients and removes the uploads.
func (s *StateManager) Close() error {
	if s.cloud != nil {
		s.cloud.Close()
	}
	if s.sessions != nil {
		return s.sessions.Close()
	}
	return nil
}
