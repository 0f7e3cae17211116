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

// This file implements the Pub/Sub entry point for audits. When an advertiser
// upload lands in the input bucket, GCS publishes an object notification; this
// command parses it and runs the audit pipeline against the stored object.
package workflow

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jaycherian/gcp-go-brand-guardian/internal/cloud"
	"github.com/jaycherian/gcp-go-brand-guardian/internal/core/cor"
)

// UploadTriggerWorkflow adapts a GCS Pub/Sub notification into an audit run.
// It is attached to the upload subscription listener; a chain error here
// leaves the message unacknowledged so the audit is retried.
type UploadTriggerWorkflow struct {
	cor.BaseCommand
	pipeline *AuditWorkflow
}

// NewUploadTriggerWorkflow is the constructor for the UploadTriggerWorkflow.
func NewUploadTriggerWorkflow(name string, pipeline *AuditWorkflow) *UploadTriggerWorkflow {
	return &UploadTriggerWorkflow{BaseCommand: *cor.NewBaseCommand(name), pipeline: pipeline}
}

// Execute parses the notification payload and audits the referenced object.
func (t *UploadTriggerWorkflow) Execute(context cor.Context) {
	payload, ok := context.Get(t.GetInputParam()).(string)
	if !ok {
		t.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(t.GetName(), fmt.Errorf("trigger payload is not a string"))
		return
	}

	var notification cloud.GCSPubSubNotification
	if err := json.Unmarshal([]byte(payload), &notification); err != nil {
		t.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(t.GetName(), fmt.Errorf("failed to parse upload notification: %w", err))
		return
	}
	if notification.Bucket == "" || notification.Name == "" {
		t.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(t.GetName(), fmt.Errorf("upload notification missing bucket or object name"))
		return
	}

	reference := fmt.Sprintf("gs://%s/%s", notification.Bucket, notification.Name)
	videoID := "vid_" + uuid.NewString()[:8]

	state, err := t.pipeline.Run(context.GetContext(), reference, videoID)
	slog.InfoContext(context.GetContext(), "upload audit complete",
		"video_id", state.VideoID,
		"reference", state.VideoReference,
		"status", state.FinalStatus)

	// A run that broke in the pipeline (rather than completing with a negative
	// verdict) is surfaced as a chain error so the message is redelivered.
	if err != nil {
		context.AddError(t.GetName(), fmt.Errorf("audit of %s failed: %w", reference, err))
		return
	}

	t.GetSuccessCounter().Add(context.GetContext(), 1)
	context.Add(t.GetOutputParam(), state)
}
