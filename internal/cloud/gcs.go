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

// This file defines models related to Google Cloud Storage (GCS), including
// the structure for GCS Pub/Sub notifications used to trigger audits when an
// advertiser upload lands in the input bucket.
//
// Structs:
//   - GCSPubSubNotification: Maps to the JSON payload from GCS event notifications.
package cloud

// GCSPubSubNotification is the structure that maps to the JSON message payload
// received from a Google Cloud Storage (GCS) Pub/Sub notification. When an object
// is created in the monitored upload bucket, GCS sends a message with this
// structure to the configured Pub/Sub topic.
type GCSPubSubNotification struct {
	Kind        string                 `json:"kind"`        // The kind of the object, typically "storage#object".
	ID          string                 `json:"id"`          // The full ID of the object, including bucket and generation.
	Name        string                 `json:"name"`        // The name of the object within the bucket.
	Bucket      string                 `json:"bucket"`      // The name of the bucket containing the object.
	ContentType string                 `json:"contentType"` // The MIME type of the object's content.
	TimeCreated string                 `json:"timeCreated"` // The creation time of the object.
	Size        string                 `json:"size"`        // The size of the object in bytes.
	MD5Hash     string                 `json:"md5Hash"`     // The MD5 hash of the object's content.
	MediaLink   string                 `json:"mediaLink"`   // A link to download the object's content.
	MetaData    map[string]interface{} `json:"metadata"`    // User-provided metadata, if any.
}
