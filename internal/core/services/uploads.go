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

// This file defines the UploadService, which receives advertiser video
// directly over the API, stores it in the input bucket, and generates secure,
// time-limited URLs so reviewers can play back the audited media without
// bucket credentials.
package services

import (
	"context"
	"fmt"
	"io"
	"time"

	credentials "cloud.google.com/go/iam/credentials/apiv1"
	credentialspb "cloud.google.com/go/iam/credentials/apiv1/credentialspb"
	"cloud.google.com/go/storage"
)

// UploadService encapsulates the clients and configuration needed to land
// advertiser uploads in GCS and to sign playback URLs for them.
type UploadService struct {
	StorageClient *storage.Client                   // Client for interacting with Google Cloud Storage.
	IAMClient     *credentials.IamCredentialsClient // Client for interacting with IAM, used for signing URLs.
	SignerEmail   string                            // The service account email used to sign URLs.
	Bucket        string                            // The input bucket advertiser uploads land in.
}

// Store streams the given content into the input bucket under the provided
// object name and returns the gs:// reference for the stored object. The
// object's content type is recorded so playback works directly from the
// signed URL.
func (s *UploadService) Store(ctx context.Context, objectName string, contentType string, content io.Reader) (string, error) {
	w := s.StorageClient.Bucket(s.Bucket).Object(objectName).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, content); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("failed to write object %q: %w", objectName, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize object %q: %w", objectName, err)
	}
	return fmt.Sprintf("gs://%s/%s", s.Bucket, objectName), nil
}

// GenerateSignedURL creates a time-limited, secure URL to access a private GCS
// object. This allows reviewers to stream video directly from GCS without
// their own credentials. The URL is signed using the credentials of the
// service account specified in `s.SignerEmail` through the IAM Credentials
// API, which avoids the need for local service account keys.
//
// Inputs:
//   - ctx: The context for the request.
//   - objectName: The name of the object within the input bucket.
//   - expires: The duration for which the URL will be valid.
//
// Outputs:
//   - string: The generated signed URL.
//   - error: An error if signing the URL fails.
func (s *UploadService) GenerateSignedURL(ctx context.Context, objectName string, expires time.Duration) (string, error) {
	opts := &storage.SignedURLOptions{
		Scheme:         storage.SigningSchemeV4, // V4 is the modern, more secure signing scheme.
		Method:         "GET",                   // The URL will only be valid for GET requests.
		Expires:        time.Now().Add(expires),
		GoogleAccessID: s.SignerEmail,
		// SignBytes delegates the actual signing to the IAM Credentials API
		// under the signer service account's identity.
		SignBytes: func(b []byte) ([]byte, error) {
			req := &credentialspb.SignBlobRequest{
				Name:    fmt.Sprintf("projects/-/serviceAccounts/%s", s.SignerEmail),
				Payload: b,
			}
			resp, err := s.IAMClient.SignBlob(ctx, req)
			if err != nil {
				return nil, fmt.Errorf("IAMClient.SignBlob: %w", err)
			}
			return resp.SignedBlob, nil
		},
	}

	u, err := s.StorageClient.Bucket(s.Bucket).SignedURL(objectName, opts)
	if err != nil {
		return "", fmt.Errorf("Bucket(%q).Object(%q).SignedURL: %w", s.Bucket, objectName, err)
	}
	return u, nil
}
