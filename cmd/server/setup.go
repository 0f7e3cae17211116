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

// Package main contains the setup and initialization logic for the application's state.
// This file is responsible for creating and managing a centralized state manager
// that holds all shared dependencies: configuration, service clients, the audit
// pipeline, and the upload service.
//
// Functions:
//   - SetupOS: Configures necessary environment variables for the application,
//     pointing to the correct configuration files.
//   - GetConfig: A singleton function that loads the application's configuration
//     from TOML files. It ensures the configuration is loaded only once.
//   - InitState: The core initialization function that creates all service clients,
//     builds the audit workflow, and starts the Pub/Sub listeners.
package main

import (
	"context"
	"log"
	"os"

	"github.com/jaycherian/gcp-go-brand-guardian/internal/cloud"
	"github.com/jaycherian/gcp-go-brand-guardian/internal/core/services"
	"github.com/jaycherian/gcp-go-brand-guardian/internal/core/workflow"
)

// StateManager holds all the shared dependencies for the application, acting as
// a centralized container for service clients and configurations. This avoids
// the need for global variables and makes dependency management cleaner.
type StateManager struct {
	config        *cloud.Config
	cloud         *cloud.ServiceClients
	auditPipeline *workflow.AuditWorkflow
	uploadService *services.UploadService
}

// state is a package-level variable that holds the single instance of StateManager.
var state = &StateManager{}

// SetupOS sets the environment variables the configuration loader uses to find
// the correct TOML files: the configuration directory prefix and the runtime
// environment (e.g., "local", "test", "prod").
func SetupOS() (err error) {
	err = os.Setenv(cloud.EnvConfigFilePrefix, "configs")
	if err != nil {
		return err
	}
	// The config loader will look for a ".env.local.toml" file to override
	// base settings.
	err = os.Setenv(cloud.EnvConfigRuntime, "local")
	return err
}

// GetConfig provides a singleton instance of the application configuration.
// On the first call, it sets up the OS environment and loads the configuration
// from the TOML files. Subsequent calls return the cached configuration.
func GetConfig() *cloud.Config {
	if state.config == nil {
		err := SetupOS()
		if err != nil {
			log.Fatalf("failed to setup os environment: %v\n", err)
		}
		config := cloud.NewConfig()
		cloud.LoadConfig(config)
		state.config = config
	}
	return state.config
}

// InitState initializes the entire application state. It creates all service
// clients, instantiates the upload service and audit pipeline, and starts the
// Pub/Sub listeners for upload-triggered audits.
//
// Inputs:
//   - ctx: The root context.Context for the application, used for managing
//     the lifecycle of client connections and background processes.
func InitState(ctx context.Context) {
	config := GetConfig()

	cloudClients, err := cloud.NewCloudServiceClients(ctx, config)
	if err != nil {
		panic(err)
	}
	state.cloud = cloudClients

	// The upload service lands advertiser video in the input bucket and signs
	// playback URLs for reviewers.
	state.uploadService = &services.UploadService{
		StorageClient: cloudClients.StorageClient,
		IAMClient:     cloudClients.IAMClient,
		SignerEmail:   config.Application.SignerServiceAccountEmail,
		Bucket:        config.Storage.InputBucket,
	}

	// The audit pipeline is shared by the synchronous API path and the
	// Pub/Sub trigger path.
	state.auditPipeline = workflow.NewAuditPipeline(config, cloudClients, "auditor", "rules")

	// Configure and start the Pub/Sub listeners that react to bucket uploads.
	SetupListeners(config, cloudClients, ctx)
}
