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

// Package workflow_test runs the audit pipeline end to end against a scripted
// indexing service, verifying that the two failure channels stay separate:
// classified failures complete the run as a failed audit with a nil error,
// while only unclassified breakage returns a non-nil one.
package workflow_test

import (
	goctx "context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"text/template"
	"time"

	"github.com/google/uuid"
	"github.com/jaycherian/gcp-go-brand-guardian/internal/core/commands"
	"github.com/jaycherian/gcp-go-brand-guardian/internal/core/model"
	"github.com/jaycherian/gcp-go-brand-guardian/internal/core/workflow"
	"github.com/jaycherian/gcp-go-brand-guardian/internal/indexer"
	test "github.com/jaycherian/gcp-go-brand-guardian/internal/testutil"
	"github.com/stretchr/testify/assert"
	"google.golang.org/genai"
)

type staticTokens struct{}

func (staticTokens) Token(_ goctx.Context) (string, error) { return "test-token", nil }

// localFetcher stages a reference by writing a throwaway file, standing in for
// the downloader and GCS fetchers.
type localFetcher struct{}

func (localFetcher) Matches(reference string) bool { return strings.HasPrefix(reference, "local://") }
func (localFetcher) Platform() string              { return "local" }
func (localFetcher) Fetch(_ goctx.Context, _ string) (string, error) {
	path := filepath.Join(os.TempDir(), "audit-wf-"+uuid.NewString()+".mp4")
	if err := os.WriteFile(path, []byte("fake video bytes"), 0o600); err != nil {
		return "", err
	}
	return path, nil
}

type scriptedModel struct {
	response string
	calls    int
}

func (m *scriptedModel) GenerateContent(_ goctx.Context, _ []*genai.Content) (*genai.GenerateContentResponse, error) {
	m.calls++
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []*genai.Part{{Text: m.response}}}},
		},
	}, nil
}

type fixedRetriever struct {
	rules []string
}

func (r *fixedRetriever) Retrieve(_ goctx.Context, _ string, _ int) ([]string, error) {
	return r.rules, nil
}

var auditTemplate = template.Must(template.New("audit").Parse(
	"Rules:\n{{.RULES}}\nTranscript: {{.TRANSCRIPT}}\nOn screen: {{.ON_SCREEN_TEXT}}\nExample: {{.EXAMPLE_JSON}}"))

// newIndexingServer returns a stub indexing service that acknowledges uploads
// with a fixed job id and serves the given index documents in order, repeating
// the last one once the script runs out.
func newIndexingServer(t *testing.T, indexResponses []string) *httptest.Server {
	t.Helper()
	polls := 0
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"id": "job-abc123"}`))
			return
		}
		body := indexResponses[len(indexResponses)-1]
		if polls < len(indexResponses) {
			body = indexResponses[polls]
		}
		polls++
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(body))
	}))
}

func newTestClient(server *httptest.Server) *indexer.Client {
	return &indexer.Client{
		BaseURL:      server.URL,
		AccountID:    "acct-1",
		Location:     "trial",
		HTTPClient:   server.Client(),
		Tokens:       staticTokens{},
		Fetchers:     []indexer.Fetcher{localFetcher{}},
		PollInterval: time.Millisecond,
	}
}

func TestAuditPipelineFailsNonCompliantVideo(t *testing.T) {
	server := newIndexingServer(t, []string{
		`{"id": "job-abc123", "state": "Processing"}`,
		test.GetTestInsightsDocumentText(),
	})
	defer server.Close()

	gen := &scriptedModel{response: `{
		"compliance_results": [
			{"category": "Claim Validation", "severity": "CRITICAL", "description": "States the product cures everything without substantiation."}
		],
		"status": "FAIL",
		"final_report": "The advertisement makes an unverifiable medical claim."
	}`}
	retriever := &fixedRetriever{rules: []string{"Health claims require clinical substantiation."}}

	pipeline := workflow.NewAuditWorkflow(newTestClient(server), retriever, gen, auditTemplate)
	state, err := pipeline.Run(goctx.Background(), "local://summer-campaign", "vid_1")

	// A completed audit with a negative verdict is not a pipeline failure.
	assert.Nil(t, err)
	assert.Equal(t, model.StatusFail, state.FinalStatus)
	assert.Len(t, state.ComplianceResults, 1)
	assert.Equal(t, model.SeverityCritical, state.ComplianceResults[0].Severity)
	assert.Equal(t, "Our product cures everything. Order today.", state.Transcript)
	assert.Contains(t, state.OnScreenText, "LIMITED TIME OFFER")
	assert.Equal(t, 1, gen.calls)
	assert.True(t, state.Explained())
}

func TestAuditPipelinePassesCompliantVideo(t *testing.T) {
	server := newIndexingServer(t, []string{test.GetTestInsightsDocumentText()})
	defer server.Close()

	gen := &scriptedModel{response: `{"compliance_results": [], "status": "PASS", "final_report": "No violations found."}`}
	pipeline := workflow.NewAuditWorkflow(
		newTestClient(server), &fixedRetriever{rules: []string{"r1"}}, gen, auditTemplate)

	state, err := pipeline.Run(goctx.Background(), "local://summer-campaign", "vid_2")

	assert.Nil(t, err)
	assert.Equal(t, model.StatusPass, state.FinalStatus)
	assert.Empty(t, state.ComplianceResults)
	assert.Equal(t, "No violations found.", state.FinalReport)
}

// When the indexing job fails the chain halts and the model is never
// consulted, but the failure is classified: the caller gets a completed audit
// with a FAIL verdict and a nil error, not a broken pipeline.
func TestAuditPipelineFailedIndexingCompletesAsFailedAudit(t *testing.T) {
	server := newIndexingServer(t, []string{`{"id": "job-abc123", "state": "Failed"}`})
	defer server.Close()

	gen := &scriptedModel{response: `unused`}
	pipeline := workflow.NewAuditWorkflow(
		newTestClient(server), &fixedRetriever{rules: []string{"r1"}}, gen, auditTemplate)

	state, err := pipeline.Run(goctx.Background(), "local://broken-upload", "vid_3")

	assert.Nil(t, err)
	assert.Equal(t, 0, gen.calls)
	assert.Equal(t, model.StatusFail, state.FinalStatus)
	assert.NotEmpty(t, state.Errors)
	assert.NotEmpty(t, state.FinalReport)
}

// A quarantined job means the service rejected the content itself. That is a
// classified ingestion failure: the audit completes with a FAIL and an
// explanation, and the run returns a nil error.
func TestAuditPipelineQuarantinedVideoFailsAuditWithoutHardError(t *testing.T) {
	server := newIndexingServer(t, []string{`{"id": "job-abc123", "state": "Quarantined"}`})
	defer server.Close()

	gen := &scriptedModel{response: `unused`}
	pipeline := workflow.NewAuditWorkflow(
		newTestClient(server), &fixedRetriever{rules: []string{"r1"}}, gen, auditTemplate)

	state, err := pipeline.Run(goctx.Background(), "local://flagged-upload", "vid_6")

	assert.Nil(t, err)
	assert.Equal(t, 0, gen.calls)
	assert.Equal(t, model.StatusFail, state.FinalStatus)
	assert.True(t, state.Explained())
	assert.Contains(t, strings.Join(state.Errors, " "), "quarantined")
}

// An index document the client cannot decode is not part of the classified
// taxonomy, so it propagates as a hard pipeline error.
func TestAuditPipelineUndecodableIndexIsHardError(t *testing.T) {
	server := newIndexingServer(t, []string{`this is not json`})
	defer server.Close()

	gen := &scriptedModel{response: `unused`}
	pipeline := workflow.NewAuditWorkflow(
		newTestClient(server), &fixedRetriever{rules: []string{"r1"}}, gen, auditTemplate)

	state, err := pipeline.Run(goctx.Background(), "local://garbled-index", "vid_7")

	assert.NotNil(t, err)
	assert.Equal(t, 0, gen.calls)
	assert.Equal(t, model.StatusFail, state.FinalStatus)
}

// A silent video completes indexing but yields nothing to judge. That is a
// handled verdict: the audit fails with an explanation and a nil error, and no
// model quota is spent.
func TestAuditPipelineSilentVideoFailsWithoutModelCall(t *testing.T) {
	server := newIndexingServer(t, []string{`{"id": "job-abc123", "state": "Processed", "videos": []}`})
	defer server.Close()

	gen := &scriptedModel{response: `unused`}
	pipeline := workflow.NewAuditWorkflow(
		newTestClient(server), &fixedRetriever{rules: []string{"r1"}}, gen, auditTemplate)

	state, err := pipeline.Run(goctx.Background(), "local://silent-video", "vid_4")

	assert.Nil(t, err)
	assert.Equal(t, 0, gen.calls)
	assert.Equal(t, model.StatusFail, state.FinalStatus)
	assert.Equal(t, commands.EmptyContentReport, state.FinalReport)
	assert.True(t, state.Explained())
}

// An unsupported reference never reaches the indexing service, but it is a
// classified failure: the audit completes with a recorded FAIL.
func TestAuditPipelineUnsupportedReference(t *testing.T) {
	server := newIndexingServer(t, []string{test.GetTestInsightsDocumentText()})
	defer server.Close()

	pipeline := workflow.NewAuditWorkflow(
		newTestClient(server), &fixedRetriever{rules: []string{"r1"}}, &scriptedModel{response: `unused`}, auditTemplate)

	state, err := pipeline.Run(goctx.Background(), "ftp://nowhere/video.mp4", "vid_5")

	assert.Nil(t, err)
	assert.Equal(t, model.StatusFail, state.FinalStatus)
	assert.True(t, state.Explained())
	assert.Contains(t, strings.Join(state.Errors, " "), "unsupported video source")
}

// A FAIL verdict whose compliance_results came back empty still leaves the
// run explained: the merge step backfills the error list from the report.
func TestAuditPipelineFailingVerdictWithoutIssuesIsExplained(t *testing.T) {
	server := newIndexingServer(t, []string{test.GetTestInsightsDocumentText()})
	defer server.Close()

	gen := &scriptedModel{response: `{"compliance_results": [], "status": "FAIL", "final_report": "The tone conflicts with the brand voice."}`}
	pipeline := workflow.NewAuditWorkflow(
		newTestClient(server), &fixedRetriever{rules: []string{"r1"}}, gen, auditTemplate)

	state, err := pipeline.Run(goctx.Background(), "local://off-brand-tone", "vid_8")

	assert.Nil(t, err)
	assert.Equal(t, 1, gen.calls)
	assert.Equal(t, model.StatusFail, state.FinalStatus)
	assert.Empty(t, state.ComplianceResults)
	assert.Equal(t, "The tone conflicts with the brand voice.", state.FinalReport)
	assert.True(t, state.Explained())
	assert.NotEmpty(t, state.Errors)
}
