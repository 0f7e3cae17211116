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

// Package indexer drives the external media-intelligence service that turns a
// video into transcript and on-screen text. This file defines the typed error
// taxonomy for the ingestion path. All of these are fatal for the run that
// raised them: the orchestrator records them and fails the audit rather than
// retrying.
package indexer

import "fmt"

// UnsupportedSourceError reports a video reference that no configured fetcher
// can stage.
type UnsupportedSourceError struct {
	Reference string
}

func (e *UnsupportedSourceError) Error() string {
	return fmt.Sprintf("unsupported video source: %q", e.Reference)
}

// UploadError reports a non-success response from the indexing service while
// submitting media, or a success response missing the job identifier.
type UploadError struct {
	StatusCode int
	Detail     string
}

func (e *UploadError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("media upload failed with status %d: %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("media upload failed: %s", e.Detail)
}

// TransientServiceError reports a non-200 status while polling job state. The
// poll loop does not retry these itself; a caller may re-invoke
// AwaitCompletion if it chooses to.
type TransientServiceError struct {
	StatusCode int
	Detail     string
}

func (e *TransientServiceError) Error() string {
	return fmt.Sprintf("indexing service returned status %d while polling: %s", e.StatusCode, e.Detail)
}

// ProcessingError reports that the indexing job reached the Failed terminal
// state.
type ProcessingError struct {
	JobID string
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("indexing job %s failed processing", e.JobID)
}

// ContentRejectedError reports that the indexing job reached the Quarantined
// terminal state, meaning the service refused the content itself.
type ContentRejectedError struct {
	JobID string
}

func (e *ContentRejectedError) Error() string {
	return fmt.Sprintf("indexing job %s was quarantined by the service", e.JobID)
}
