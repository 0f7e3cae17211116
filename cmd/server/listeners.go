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

// This file contains the logic for setting up and starting the Pub/Sub message
// listeners. The upload listener initiates an audit whenever an advertiser
// video lands in the monitored GCS bucket.
//
// Functions:
//   - SetupListeners: Initializes and starts the listener for the upload topic,
//     attaching the upload-triggered audit workflow.
package main

import (
	"context"

	"github.com/jaycherian/gcp-go-brand-guardian/internal/cloud"
	"github.com/jaycherian/gcp-go-brand-guardian/internal/core/workflow"
)

// SetupListeners configures and starts the background Pub/Sub listeners.
// It attaches the upload trigger workflow to the upload topic listener.
//
// Inputs:
//   - config: The application's configuration, containing topic settings.
//   - cloudClients: A struct containing all the initialized service clients.
//   - ctx: The application's root context, used to manage the lifecycle of the listeners.
func SetupListeners(config *cloud.Config, cloudClients *cloud.ServiceClients, ctx context.Context) {
	uploadAudit := workflow.NewUploadTriggerWorkflow("upload-triggered-audit", state.auditPipeline)
	cloudClients.PubSubListeners["UploadTopic"].SetCommand(uploadAudit)
	cloudClients.PubSubListeners["UploadTopic"].Listen(ctx)
}
