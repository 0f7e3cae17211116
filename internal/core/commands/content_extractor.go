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

// Package commands provides the concrete implementations of the Chain of
// Responsibility (COR) pattern's Command interface. This file defines the
// command responsible for turning a raw video reference into auditable text.
//
// Logic Flow:
// This command is the first stage of the audit pipeline. It drives the
// external media indexing service through its full job lifecycle and
// normalizes the result into the shared audit state.
//
//  1. It reads the shared `model.AuditState` from the context, which carries
//     the video reference submitted by the caller.
//  2. It submits the reference to the indexing service. The service client
//     stages the media locally (downloading from the source platform or from
//     GCS), uploads it, and returns a job id.
//  3. It polls the job until the service reports a terminal state, honoring
//     context cancellation between polls.
//  4. On success it flattens the returned insights document into a transcript,
//     ordered on-screen text fragments, and metadata, and writes them onto the
//     audit state for the adjudication stage.
//  5. On any failure it records the failure on the audit state and raises a
//     chain error so the adjudication stage never runs on partial content.
package commands

import (
	"fmt"

	"github.com/jaycherian/gcp-go-brand-guardian/internal/core/cor"
	"github.com/jaycherian/gcp-go-brand-guardian/internal/core/model"
	"github.com/jaycherian/gcp-go-brand-guardian/internal/indexer"
)

// ContentExtractor is a command that submits a video reference to the media
// indexing service and populates the audit state with the extracted content.
type ContentExtractor struct {
	cor.BaseCommand
	client *indexer.Client // The client driving the external indexing service.
}

// NewContentExtractor is the constructor for the ContentExtractor command.
func NewContentExtractor(name string, client *indexer.Client) *ContentExtractor {
	return &ContentExtractor{BaseCommand: *cor.NewBaseCommand(name), client: client}
}

// IsExecutable requires the shared audit state to be present in the context.
func (t *ContentExtractor) IsExecutable(context cor.Context) bool {
	return context != nil &&
		context.GetContext() != nil &&
		context.Get(model.GetAuditStateParameterName()) != nil
}

// Execute drives the submit, poll, and normalize sequence for one audit run.
func (t *ContentExtractor) Execute(context cor.Context) {
	state := context.Get(model.GetAuditStateParameterName()).(*model.AuditState)
	ctx := context.GetContext()

	jobID, err := t.client.Submit(ctx, state.VideoReference, state.VideoID)
	if err != nil {
		t.fail(context, state, fmt.Errorf("failed to submit media for indexing: %w", err))
		return
	}

	doc, err := t.client.AwaitCompletion(ctx, jobID)
	if err != nil {
		t.fail(context, state, fmt.Errorf("indexing job %s did not complete: %w", jobID, err))
		return
	}

	extracted := indexer.Normalize(doc)
	state.Transcript = extracted.Transcript
	state.OnScreenText = extracted.OnScreenText
	for k, v := range extracted.Metadata {
		state.VideoMetadata[k] = v
	}
	if platform := t.client.Platform(state.VideoReference); platform != "" {
		state.VideoMetadata["platform"] = platform
	}

	t.GetSuccessCounter().Add(ctx, 1)
	context.Add(t.GetOutputParam(), state)
}

// fail records the failure on the audit state and raises a chain error so the
// workflow halts before adjudication.
func (t *ContentExtractor) fail(context cor.Context, state *model.AuditState, err error) {
	t.GetErrorCounter().Add(context.GetContext(), 1)
	state.RecordFailure(err)
	context.AddError(t.GetName(), err)
}
