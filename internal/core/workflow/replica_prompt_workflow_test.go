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

package workflow_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/jaycherian/gcp-go-replica-prompt/internal/cloud"
	"github.com/jaycherian/gcp-go-replica-prompt/internal/core/commands"
	"github.com/jaycherian/gcp-go-replica-prompt/internal/core/cor"
	"github.com/jaycherian/gcp-go-replica-prompt/internal/core/model"
	"github.com/jaycherian/gcp-go-replica-prompt/internal/core/workflow"
	"github.com/jaycherian/gcp-go-replica-prompt/internal/telemetry"
	test "github.com/jaycherian/gcp-go-replica-prompt/internal/testutil"
)

const tName = "github.com/jaycherian/gcp-go-replica-prompt/tests/workflow"

var (
	tracer = otel.Tracer(tName)
	logger = otelslog.NewLogger(tName)
	ctx    context.Context
	config *cloud.Config
)

func TestMain(m *testing.M) {
	var cancel context.CancelFunc
	ctx, cancel = context.WithCancel(context.Background())
	defer cancel()

	if err := test.SetupOS(); err != nil {
		panic(err)
	}
	config = cloud.NewConfig()
	if err := cloud.LoadConfig(config); err != nil {
		panic(err)
	}

	shutdown, err := telemetry.SetupOpenTelemetry(ctx, config)
	if err != nil {
		panic(err)
	}
	logger.Info("completed test setup")

	exitCode := m.Run()

	if err := shutdown(ctx); err != nil {
		logger.Error("failed to shutdown telemetry", "error", err)
	}
	os.Exit(exitCode)
}

// recordingSampler and recordingGenerator log their calls into a shared slice
// so the tests can check ordering.
type recordingSampler struct {
	calls  *[]string
	frames []*model.Frame
	err    error
}

func (s *recordingSampler) Sample(_ context.Context, _ string, count int) ([]*model.Frame, error) {
	*s.calls = append(*s.calls, "sample")
	if s.err != nil {
		return nil, s.err
	}
	if len(s.frames) > count {
		return s.frames[:count], nil
	}
	return s.frames, nil
}

type recordingGenerator struct {
	calls  *[]string
	result *model.GenerationResult
	err    error
	frames []*model.Frame
}

func (g *recordingGenerator) Generate(_ context.Context, frames []*model.Frame) (*model.GenerationResult, error) {
	*g.calls = append(*g.calls, "generate")
	g.frames = frames
	return g.result, g.err
}

var clip = &model.VideoFile{Name: "clip.mp4", ContentType: "video/mp4", Size: 4096, Path: "/tmp/clip.mp4"}

func TestReplicaPromptWorkflow_Success(t *testing.T) {
	traceCtx, span := tracer.Start(ctx, "replica-prompt-success")
	defer span.End()

	var calls []string
	frames := test.GetTestFrames(3)
	result := &model.GenerationResult{
		Prompt:    "A man walks left to right...",
		Analysis:  "One adult male subject...",
		StyleTags: []string{"realistic", "daylight"},
	}
	sampler := &recordingSampler{calls: &calls, frames: frames}
	generator := &recordingGenerator{calls: &calls, result: result}

	w := workflow.NewReplicaPromptWorkflow(config, sampler, generator)
	progress := func(status string) { calls = append(calls, "status:"+status) }

	got, err := w.Run(traceCtx, clip, progress)
	require.NoError(t, err)

	// The stored result is exactly what the generator returned for the sampled frames.
	assert.Same(t, result, got)
	assert.Equal(t, frames, generator.frames)
	assert.Equal(t, []string{
		"status:" + config.Messages.SamplingStatus,
		"sample",
		"status:" + config.Messages.GeneratingStatus,
		"generate",
	}, calls)
	span.SetStatus(codes.Ok, "passed")
}

func TestReplicaPromptWorkflow_SamplingFailureSkipsGenerator(t *testing.T) {
	var calls []string
	sampler := &recordingSampler{calls: &calls, err: errors.New("invalid data found when processing input")}
	generator := &recordingGenerator{calls: &calls, result: test.GetTestResult()}

	w := workflow.NewReplicaPromptWorkflow(config, sampler, generator)
	got, err := w.Run(ctx, clip, nil)

	assert.Nil(t, got)
	var samplingErr *model.SamplingError
	require.True(t, errors.As(err, &samplingErr))
	assert.Equal(t, []string{"sample"}, calls)
	assert.Nil(t, generator.frames)
}

func TestReplicaPromptWorkflow_GenerationFailure(t *testing.T) {
	var calls []string
	sampler := &recordingSampler{calls: &calls, frames: test.GetTestFrames(2)}
	generator := &recordingGenerator{calls: &calls, err: model.NewGenerationError(errors.New("malformed response"))}

	w := workflow.NewReplicaPromptWorkflow(config, sampler, generator)
	got, err := w.Run(ctx, clip, nil)

	assert.Nil(t, got)
	var genErr *model.GenerationError
	require.True(t, errors.As(err, &genErr))
	assert.Equal(t, []string{"sample", "generate"}, calls)
}

func TestReplicaPromptWorkflow_UsesConfiguredFrameCount(t *testing.T) {
	var calls []string
	sampler := &recordingSampler{calls: &calls, frames: test.GetTestFrames(40)}
	generator := &recordingGenerator{calls: &calls, result: test.GetTestResult()}

	_, err := workflow.NewReplicaPromptWorkflow(config, sampler, generator).Run(ctx, clip, nil)
	require.NoError(t, err)
	assert.Len(t, generator.frames, config.Sampling.FrameCount)
}

func TestReplicaPromptWorkflow_ExecuteLeavesResultInContext(t *testing.T) {
	var calls []string
	result := test.GetTestResult()
	w := workflow.NewReplicaPromptWorkflow(config,
		&recordingSampler{calls: &calls, frames: test.GetTestFrames(1)},
		&recordingGenerator{calls: &calls, result: result})

	chainCtx := cor.NewBaseContext()
	chainCtx.SetContext(ctx)
	chainCtx.Add(cor.CtxIn, clip)
	require.True(t, w.IsExecutable(chainCtx))

	w.Execute(chainCtx)
	for k, err := range chainCtx.GetErrors() {
		logger.Error("workflow error", "command", k, "error", err)
	}
	assert.False(t, chainCtx.HasErrors())
	assert.Same(t, result, chainCtx.Get(commands.ResultParam))
}

func TestReplicaPromptWorkflow_RequiresVideo(t *testing.T) {
	var calls []string
	w := workflow.NewReplicaPromptWorkflow(config,
		&recordingSampler{calls: &calls}, &recordingGenerator{calls: &calls})

	_, err := w.Run(ctx, nil, nil)
	assert.Error(t, err)
	assert.Empty(t, calls)
}
