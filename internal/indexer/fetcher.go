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

// Package indexer drives the external media-intelligence service. This file
// defines the Fetcher abstraction used to stage raw media before upload, with
// one implementation per supported source: public video-sharing URLs fetched
// through an external downloader binary, and objects already sitting in a
// Google Cloud Storage bucket.
//
// Every fetch lands in a uniquely named scratch file so that concurrent audit
// runs can never collide on a shared path. The caller owns the returned file
// and is responsible for removing it.
package indexer

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	goctx "context"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
)

// Fetcher stages the media behind a video reference into a local scratch file.
type Fetcher interface {
	// Matches reports whether this fetcher understands the reference.
	Matches(reference string) bool

	// Platform returns the source tag recorded in audit metadata.
	Platform() string

	// Fetch downloads the referenced media and returns the scratch file path.
	Fetch(ctx goctx.Context, reference string) (string, error)
}

// stagingPath returns a collision-free scratch location for one fetch.
func stagingPath() string {
	return filepath.Join(os.TempDir(), fmt.Sprintf("staged-media-%s.mp4", uuid.NewString()))
}

// YouTubeFetcher stages public video-sharing URLs by shelling out to a
// downloader binary (yt-dlp or compatible).
type YouTubeFetcher struct {
	// CommandPath is the downloader executable, e.g. "/usr/local/bin/yt-dlp".
	CommandPath string
}

// Matches accepts the canonical YouTube URL forms.
func (f *YouTubeFetcher) Matches(reference string) bool {
	return strings.Contains(reference, "youtube.com") || strings.Contains(reference, "youtu.be")
}

// Platform identifies the source in audit metadata.
func (f *YouTubeFetcher) Platform() string { return "youtube" }

// Fetch runs the downloader and returns the staged file path. The command
// inherits the caller's context so a cancelled audit kills the download.
func (f *YouTubeFetcher) Fetch(ctx goctx.Context, reference string) (string, error) {
	target := stagingPath()
	cmd := exec.CommandContext(ctx, f.CommandPath,
		"--quiet",
		"--no-warnings",
		"-f", "best",
		"-o", target,
		reference)
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("video download failed for %q: %w", reference, err)
	}
	return target, nil
}

// GCSFetcher stages media already present in a GCS bucket, referenced as
// gs://bucket/object. Used by the bucket-notification audit trigger.
type GCSFetcher struct {
	Client *storage.Client
}

// Matches accepts gs:// URIs.
func (f *GCSFetcher) Matches(reference string) bool {
	return strings.HasPrefix(reference, "gs://")
}

// Platform identifies the source in audit metadata.
func (f *GCSFetcher) Platform() string { return "gcs" }

// Fetch streams the object into a scratch file.
func (f *GCSFetcher) Fetch(ctx goctx.Context, reference string) (string, error) {
	bucket, object, err := splitGCSReference(reference)
	if err != nil {
		return "", err
	}

	reader, err := f.Client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to open gs://%s/%s: %w", bucket, object, err)
	}
	defer func() {
		if err := reader.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to close GCS reader: %v\n", err)
		}
	}()

	target := stagingPath()
	file, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("could not create staging file: %w", err)
	}

	if _, err := io.Copy(file, reader); err != nil {
		_ = file.Close()
		_ = os.Remove(target)
		return "", fmt.Errorf("failed to stage gs://%s/%s: %w", bucket, object, err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(target)
		return "", err
	}
	return target, nil
}

// splitGCSReference breaks gs://bucket/object into its parts.
func splitGCSReference(reference string) (bucket string, object string, err error) {
	trimmed := strings.TrimPrefix(reference, "gs://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS reference %q", reference)
	}
	return parts[0], parts[1], nil
}
