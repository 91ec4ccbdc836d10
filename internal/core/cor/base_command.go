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

package cor

import (
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// MeterName is the instrumentation scope shared by every command's counters.
const MeterName = "github.com/jaycherian/gcp-go-replica-prompt"

// BaseCommand is embedded by every concrete command. Commands report their
// outcome through Succeeded and Failed, which keep the counters, the span and
// the context errors in step.
type BaseCommand struct {
	Name            string
	InputParamName  string // Defaults to CtxIn.
	OutputParamName string // Defaults to CtxOut.
	Tracer          trace.Tracer
	Meter           metric.Meter
	SuccessCounter  metric.Int64Counter // "<name>.counter.success"
	ErrorCounter    metric.Int64Counter // "<name>.counter.error"
}

// Option adjusts a BaseCommand built by NewBaseCommand.
type Option func(*BaseCommand)

// WithInputParam reads the primary input from key instead of CtxIn.
func WithInputParam(key string) Option {
	return func(c *BaseCommand) { c.InputParamName = key }
}

// WithOutputParam writes the primary output to key instead of CtxOut.
func WithOutputParam(key string) Option {
	return func(c *BaseCommand) { c.OutputParamName = key }
}

// NewBaseCommand creates a command named name, instrumented from the global
// OpenTelemetry providers.
func NewBaseCommand(name string, opts ...Option) *BaseCommand {
	meter := otel.Meter(MeterName)
	c := &BaseCommand{
		Name:           name,
		Tracer:         otel.Tracer(name),
		Meter:          meter,
		SuccessCounter: newCounter(meter, name, "success"),
		ErrorCounter:   newCounter(meter, name, "error"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// newCounter creates "<command>.counter.<outcome>". A failure leaves the
// counter nil; Succeeded and Failed skip nil counters.
func newCounter(meter metric.Meter, command string, outcome string) metric.Int64Counter {
	counter, err := meter.Int64Counter(command+".counter."+outcome,
		metric.WithDescription("Executions of "+command+" ending in "+outcome),
		metric.WithUnit("{execution}"))
	if err != nil {
		slog.Warn("failed to create command counter", "command", command, "outcome", outcome, "error", err)
		return nil
	}
	return counter
}

// Succeeded counts one successful execution.
func (c *BaseCommand) Succeeded(context Context) {
	if c.SuccessCounter != nil {
		c.SuccessCounter.Add(context.GetContext(), 1)
	}
}

// Failed counts one failed execution, records err on the current span and
// adds it to the context under the command's name.
func (c *BaseCommand) Failed(context Context, err error) {
	if c.ErrorCounter != nil {
		c.ErrorCounter.Add(context.GetContext(), 1)
	}
	trace.SpanFromContext(context.GetContext()).RecordError(err)
	context.AddError(c.GetName(), err)
}

func (c *BaseCommand) GetName() string {
	return c.Name
}

// IsExecutable is true when the Go context is set and the input key holds a value.
func (c *BaseCommand) IsExecutable(context Context) bool {
	return context != nil && context.GetContext() != nil && context.Get(c.GetInputParam()) != nil
}

func (c *BaseCommand) GetInputParam() string {
	return paramOr(c.InputParamName, CtxIn)
}

func (c *BaseCommand) GetOutputParam() string {
	return paramOr(c.OutputParamName, CtxOut)
}

func paramOr(key string, fallback string) string {
	if key == "" {
		return fallback
	}
	return key
}

func (c *BaseCommand) GetTracer() trace.Tracer { return c.Tracer }
func (c *BaseCommand) GetMeter() metric.Meter { return c.Meter }
func (c *BaseCommand) GetSuccessCounter() metric.Int64Counter { return c.SuccessCounter }
func (c *BaseCommand) GetErrorCounter() metric.Int64Counter { return c.ErrorCounter }
