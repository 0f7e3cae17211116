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

// Package cor (Chain of Responsibility) provides the building blocks for the
// audit pipelines. A pipeline is a Chain of Commands executed in order over a
// shared Context; the Context carries the run's state, any errors raised by
// commands, and temporary files that must be released when the run ends.
package cor

import (
	"context"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// CtxIn and CtxOut are the well-known keys used to pipe data between commands.
// After each command runs, the chain moves the value stored under CtxOut into
// CtxIn so it becomes the next command's primary input.
const (
	CtxIn  = "__IN__"
	CtxOut = "__OUT__"
)

// Context is the shared state for a single pipeline execution. Commands read
// their inputs from it, write their outputs to it, and record failures on it.
// A Context belongs to exactly one run and is never shared across runs.
type Context interface {
	// SetContext sets the standard Go context, used for cancellation and for
	// propagating OpenTelemetry span information into commands.
	SetContext(context context.Context)

	// GetContext returns the standard Go context for the run.
	GetContext() context.Context

	// Add stores a key-value pair. Returns the Context for chaining.
	Add(key string, value interface{}) Context

	// AddError records an error under the name of the command that raised it.
	// Recorded errors are never cleared for the lifetime of the run.
	AddError(key string, err error)

	// GetErrors returns all errors recorded so far, keyed by command name.
	GetErrors() map[string]error

	// Get returns a stored value, or nil when the key is absent.
	Get(key string) interface{}

	// Remove deletes a key-value pair.
	Remove(key string)

	// HasErrors reports whether any command has recorded an error.
	HasErrors() bool

	// AddTempFile registers a scratch file to be deleted when the run closes.
	AddTempFile(file string)

	// GetTempFiles returns the registered scratch file paths.
	GetTempFiles() []string

	// Close releases run-scoped resources, deleting all registered scratch
	// files. Callers should defer it as soon as the Context is created.
	Close()
}

// Executable is anything with a single unit of execution logic.
type Executable interface {
	// Execute performs the work, reading from and writing to the Context.
	Execute(context Context)
}

// Command is an atomic, individually traceable unit of pipeline work.
type Command interface {
	Executable

	// GetName returns the command name used for logging and telemetry.
	GetName() string

	// GetInputParam returns the context key holding the command's input.
	GetInputParam() string

	// GetOutputParam returns the context key the command writes its output to.
	GetOutputParam() string

	// IsExecutable reports whether the command's preconditions are satisfied.
	IsExecutable(context Context) bool

	// GetTracer returns the command's OpenTelemetry tracer.
	GetTracer() trace.Tracer

	// GetMeter returns the command's OpenTelemetry meter.
	GetMeter() metric.Meter

	// GetSuccessCounter returns the counter incremented on success.
	GetSuccessCounter() metric.Int64Counter

	// GetErrorCounter returns the counter incremented on failure.
	GetErrorCounter() metric.Int64Counter
}

// Chain is an ordered sequence of commands. A Chain is itself a Command, so
// chains can nest. By default a chain halts at the first command that records
// an error, which is how a failed stage structurally short-circuits the
// stages behind it.
type Chain interface {
	Command

	// ContinueOnFailure configures whether later commands still run after an
	// earlier one has recorded an error.
	ContinueOnFailure(bool) Chain

	// AddCommand appends a command to the execution sequence.
	AddCommand(command Command) Chain
}
