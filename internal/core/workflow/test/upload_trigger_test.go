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

package workflow_test

import (
	goctx "context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jaycherian/gcp-go-brand-guardian/internal/core/cor"
	"github.com/jaycherian/gcp-go-brand-guardian/internal/core/model"
	"github.com/jaycherian/gcp-go-brand-guardian/internal/core/workflow"
	"github.com/jaycherian/gcp-go-brand-guardian/internal/indexer"
	test "github.com/jaycherian/gcp-go-brand-guardian/internal/testutil"
	"github.com/stretchr/testify/assert"
)

// bucketFetcher stands in for the GCS fetcher so the trigger workflow can
// stage gs:// references without a live storage client.
type bucketFetcher struct{}

func (bucketFetcher) Matches(reference string) bool { return strings.HasPrefix(reference, "gs://") }
func (bucketFetcher) Platform() string              { return "gcs" }
func (bucketFetcher) Fetch(_ goctx.Context, _ string) (string, error) {
	path := filepath.Join(os.TempDir(), "trigger-wf-"+uuid.NewString()+".mp4")
	if err := os.WriteFile(path, []byte("fake video bytes"), 0o600); err != nil {
		return "", err
	}
	return path, nil
}

func newTriggerContext(payload any, cmd cor.Command) cor.Context {
	ctx := cor.NewBaseContext()
	ctx.SetContext(goctx.Background())
	ctx.Add(cmd.GetInputParam(), payload)
	return ctx
}

func TestUploadTriggerAuditsNotifiedObject(t *testing.T) {
	server := newIndexingServer(t, []string{test.GetTestInsightsDocumentText()})
	defer server.Close()

	gen := &scriptedModel{response: `{"compliance_results": [], "status": "PASS", "final_report": "Compliant."}`}
	client := newTestClient(server)
	client.Fetchers = []indexer.Fetcher{bucketFetcher{}}
	pipeline := workflow.NewAuditWorkflow(client, &fixedRetriever{rules: []string{"r1"}}, gen, auditTemplate)

	trigger := workflow.NewUploadTriggerWorkflow("upload-triggered-audit", pipeline)
	chainCtx := newTriggerContext(test.GetTestUploadMessageText(), trigger)
	trigger.Execute(chainCtx)

	// A completed audit acknowledges the message even on a negative verdict,
	// so the only thing that may raise a chain error is a broken pipeline.
	assert.False(t, chainCtx.HasErrors())
	state, ok := chainCtx.Get(trigger.GetOutputParam()).(*model.AuditState)
	assert.True(t, ok)
	assert.Equal(t, "gs://brand-guardian-uploads-test/summer-campaign-001.mp4", state.VideoReference)
	assert.Equal(t, model.StatusPass, state.FinalStatus)
	assert.Equal(t, 1, gen.calls)
}

func TestUploadTriggerRejectsNonStringPayload(t *testing.T) {
	trigger := workflow.NewUploadTriggerWorkflow("upload-triggered-audit", nil)
	chainCtx := newTriggerContext(42, trigger)
	trigger.Execute(chainCtx)

	assert.True(t, chainCtx.HasErrors())
}

func TestUploadTriggerRejectsMalformedNotification(t *testing.T) {
	trigger := workflow.NewUploadTriggerWorkflow("upload-triggered-audit", nil)
	chainCtx := newTriggerContext("not json at all", trigger)
	trigger.Execute(chainCtx)

	assert.True(t, chainCtx.HasErrors())
}

func TestUploadTriggerRejectsNotificationWithoutObject(t *testing.T) {
	trigger := workflow.NewUploadTriggerWorkflow("upload-triggered-audit", nil)
	chainCtx := newTriggerContext(`{"kind": "storage#object", "bucket": "brand-guardian-uploads-test"}`, trigger)
	trigger.Execute(chainCtx)

	assert.True(t, chainCtx.HasErrors())
}

// A failed indexing job is a classified failure: the audit completes with a
// FAIL verdict, so the trigger acknowledges the message instead of forcing a
// redelivery that would fail the same way.
func TestUploadTriggerAcksHandledIndexingFailure(t *testing.T) {
	server := newIndexingServer(t, []string{`{"id": "job-abc123", "state": "Failed"}`})
	defer server.Close()

	client := newTestClient(server)
	client.Fetchers = []indexer.Fetcher{bucketFetcher{}}
	pipeline := workflow.NewAuditWorkflow(
		client, &fixedRetriever{rules: []string{"r1"}}, &scriptedModel{response: `unused`}, auditTemplate)

	trigger := workflow.NewUploadTriggerWorkflow("upload-triggered-audit", pipeline)
	chainCtx := newTriggerContext(test.GetTestUploadMessageText(), trigger)
	trigger.Execute(chainCtx)

	assert.False(t, chainCtx.HasErrors())
	state, ok := chainCtx.Get(trigger.GetOutputParam()).(*model.AuditState)
	assert.True(t, ok)
	assert.Equal(t, model.StatusFail, state.FinalStatus)
	assert.True(t, state.Explained())
}

// Unclassified breakage must leave the chain errored so the Pub/Sub message
// is redelivered rather than silently dropped.
func TestUploadTriggerPipelineFailureLeavesChainErrored(t *testing.T) {
	server := newIndexingServer(t, []string{`this is not json`})
	defer server.Close()

	client := newTestClient(server)
	client.Fetchers = []indexer.Fetcher{bucketFetcher{}}
	pipeline := workflow.NewAuditWorkflow(
		client, &fixedRetriever{rules: []string{"r1"}}, &scriptedModel{response: `unused`}, auditTemplate)

	trigger := workflow.NewUploadTriggerWorkflow("upload-triggered-audit", pipeline)
	chainCtx := newTriggerContext(test.GetTestUploadMessageText(), trigger)
	trigger.Execute(chainCtx)

	assert.True(t, chainCtx.HasErrors())
}
