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

// Package test provides utility functions and mock data to support the
// application's test suite. It helps in setting up a consistent test
// environment, loading test-specific configurations, and providing sample
// payloads for workflows and services.
package test

import (
	"log"
	"os"
	"testing"

	"github.com/jaycherian/gcp-go-brand-guardian/internal/cloud"
)

// StateManager acts as a simple in-memory cache for the application
// configuration during test runs, so configuration files are loaded once per
// test binary.
type StateManager struct {
	config *cloud.Config
}

var state = &StateManager{}

// HandleErr fails the test when err is non-nil. A convenience to reduce
// boilerplate error-checking in tests.
func HandleErr(err error, t *testing.T) {
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

// GetTestUploadMessageText returns a hardcoded JSON string that simulates a
// Pub/Sub notification message from Google Cloud Storage for a file finalized
// in the upload bucket. This mock data is used to test the upload-triggered
// audit workflow.
func GetTestUploadMessageText() string {
	return `{
  "kind": "storage#object",
  "id": "brand-guardian-uploads-test/summer-campaign-001.mp4/1728615848664286",
  "name": "summer-campaign-001.mp4",
  "bucket": "brand-guardian-uploads-test",
  "contentType": "video/mp4",
  "timeCreated": "2024-10-11T03:04:08.672Z",
  "size": "259348037",
  "md5Hash": "67c1rAU+1RYZzK5zp8iBkA==",
  "mediaLink": "https://storage.googleapis.com/download/storage/v1/b/brand-guardian-uploads-test/o/summer-campaign-001.mp4?generation=1728615848664286&alt=media",
  "metadata": { "touch": "18" }
}`
}

// GetTestInsightsDocumentText returns a hardcoded JSON string matching the
// indexing service's insights document for a completed job. Used to test
// normalization and the extraction stage without a live service.
func GetTestInsightsDocumentText() string {
	return `{
  "id": "job-abc123",
  "state": "Processed",
  "videos": [
    {
      "insights": {
        "transcript": [
          { "text": "Our product cures everything." },
          { "text": "Order today." }
        ],
        "ocr": [
          { "text": "LIMITED TIME OFFER" },
          { "text": "results not typical" }
        ]
      }
    }
  ],
  "summarizedInsights": { "duration": "0:00:30" }
}`
}

// SetupOS configures the environment variables the configuration loader
// depends on, directing it to the test-specific configuration files
// (configs/.env.test.toml).
func SetupOS() (err error) {
	err = os.Setenv(cloud.EnvConfigFilePrefix, "configs")
	if err != nil {
		return err
	}
	err = os.Setenv(cloud.EnvConfigRuntime, "test")
	return err
}

// GetConfig is a singleton accessor for the test configuration. It loads the
// TOML files once and caches the result for subsequent calls. This is the
// primary way tests should retrieve their configuration.
func GetConfig() *cloud.Config {
	if state.config == nil {
		err := SetupOS()
		if err != nil {
			log.Fatalf("failed to setup environment for test: %v\n", err)
		}
		config := cloud.NewConfig()
		cloud.LoadConfig(config)
		state.config = config
	}
	return state.config
}
