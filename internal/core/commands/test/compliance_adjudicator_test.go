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

// Package commands_test exercises the compliance adjudicator with scripted
// retriever and model fakes, covering the handled-verdict paths that must not
// surface as pipeline errors.
package commands_test

import (
	goctx "context"
	"testing"
	"text/template"

	"github.com/jaycherian/gcp-go-brand-guardian/internal/core/commands"
	"github.com/jaycherian/gcp-go-brand-guardian/internal/core/cor"
	"github.com/jaycherian/gcp-go-brand-guardian/internal/core/model"
	"github.com/stretchr/testify/assert"
	"google.golang.org/genai"
)

// scriptedModel returns a canned response and counts invocations.
type scriptedModel struct {
	response string
	err      error
	calls    int
}

func (m *scriptedModel) GenerateContent(_ goctx.Context, _ []*genai.Content) (*genai.GenerateContentResponse, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []*genai.Part{{Text: m.response}}}},
		},
	}, nil
}

// fixedRetriever returns the same rules for any query.
type fixedRetriever struct {
	rules []string
	query string
	err   error
}

func (r *fixedRetriever) Retrieve(_ goctx.Context, query string, _ int) ([]string, error) {
	r.query = query
	if r.err != nil {
		return nil, r.err
	}
	return r.rules, nil
}

var auditTemplate = template.Must(template.New("audit").Parse(
	"Rules:\n{{.RULES}}\nTranscript: {{.TRANSCRIPT}}\nOn screen: {{.ON_SCREEN_TEXT}}\nExample: {{.EXAMPLE_JSON}}"))

func newChainContext(state *model.AuditState) cor.Context {
	ctx := cor.NewBaseContext()
	ctx.SetContext(goctx.Background())
	ctx.Add(model.GetAuditStateParameterName(), state)
	ctx.Add(cor.CtxIn, state)
	return ctx
}

func TestAdjudicatorFailsVerdictOnViolation(t *testing.T) {
	gen := &scriptedModel{response: `{
		"compliance_results": [
			{"category": "Claim Validation", "severity": "CRITICAL", "description": "Unsubstantiated cure claim."}
		],
		"status": "FAIL",
		"final_report": "The advertisement makes an unverifiable medical claim."
	}`}
	retriever := &fixedRetriever{rules: []string{"Health claims require clinical substantiation."}}
	cmd := commands.NewComplianceAdjudicator("adjudicate-compliance", retriever, gen, auditTemplate)

	state := model.NewAuditState("https://youtube.com/watch?v=abc", "vid_1")
	state.Transcript = "Our product cures everything"
	state.OnScreenText = []string{"LIMITED TIME OFFER"}

	chainCtx := newChainContext(state)
	cmd.Execute(chainCtx)

	assert.False(t, chainCtx.HasErrors())
	assert.Equal(t, model.StatusFail, state.FinalStatus)
	assert.Len(t, state.ComplianceResults, 1)
	assert.Equal(t, model.SeverityCritical, state.ComplianceResults[0].Severity)
	assert.Equal(t, 1, gen.calls)
	// The retrieval query carries both the transcript and the OCR fragments.
	assert.Contains(t, retriever.query, "cures everything")
	assert.Contains(t, retriever.query, "LIMITED TIME OFFER")
}

func TestAdjudicatorPassVerdict(t *testing.T) {
	gen := &scriptedModel{response: `{"compliance_results": [], "status": "PASS", "final_report": "Compliant."}`}
	cmd := commands.NewComplianceAdjudicator("adjudicate-compliance", &fixedRetriever{rules: []string{"r1"}}, gen, auditTemplate)

	state := model.NewAuditState("ref", "vid_1")
	state.Transcript = "Enjoy our delicious coffee"

	chainCtx := newChainContext(state)
	cmd.Execute(chainCtx)

	assert.False(t, chainCtx.HasErrors())
	assert.Equal(t, model.StatusPass, state.FinalStatus)
	assert.Empty(t, state.ComplianceResults)
	assert.Equal(t, "Compliant.", state.FinalReport)
}

// A video with no transcript must fail without ever calling the model, even
// when OCR fragments exist: processing failed upstream and there is nothing
// trustworthy to adjudicate.
func TestAdjudicatorShortCircuitsEmptyTranscript(t *testing.T) {
	gen := &scriptedModel{response: `unused`}
	cmd := commands.NewComplianceAdjudicator("adjudicate-compliance", &fixedRetriever{}, gen, auditTemplate)

	state := model.NewAuditState("ref", "vid_1")
	state.OnScreenText = []string{"LIMITED TIME OFFER"}
	chainCtx := newChainContext(state)
	cmd.Execute(chainCtx)

	assert.False(t, chainCtx.HasErrors())
	assert.Equal(t, 0, gen.calls)
	assert.Equal(t, model.StatusFail, state.FinalStatus)
	assert.Equal(t, commands.EmptyContentReport, state.FinalReport)
	assert.Empty(t, state.ComplianceResults)
	assert.True(t, state.Explained())
}

// Malformed model output fails the audit closed. There is no second attempt,
// and the parse failure is recorded on the state rather than raised as a
// chain error.
func TestAdjudicatorFailsClosedOnMalformedOutput(t *testing.T) {
	gen := &scriptedModel{response: `I think this advertisement is probably fine.`}
	cmd := commands.NewComplianceAdjudicator("adjudicate-compliance", &fixedRetriever{rules: []string{"r1"}}, gen, auditTemplate)

	state := model.NewAuditState("ref", "vid_1")
	state.Transcript = "some transcript"

	chainCtx := newChainContext(state)
	cmd.Execute(chainCtx)

	assert.False(t, chainCtx.HasErrors())
	assert.Equal(t, 1, gen.calls)
	assert.Equal(t, model.StatusFail, state.FinalStatus)
	assert.Equal(t, model.DefaultReport, state.FinalReport)
	assert.Empty(t, state.ComplianceResults)
	assert.NotEmpty(t, state.Errors)
}

// A transport failure from the model fails the audit closed. The failure is
// recorded on the state rather than raised as a chain error, so the run
// completes with a FAIL verdict.
func TestAdjudicatorFailsClosedOnModelFailure(t *testing.T) {
	gen := &scriptedModel{err: assert.AnError}
	cmd := commands.NewComplianceAdjudicator("adjudicate-compliance", &fixedRetriever{rules: []string{"r1"}}, gen, auditTemplate)

	state := model.NewAuditState("ref", "vid_1")
	state.Transcript = "some transcript"

	chainCtx := newChainContext(state)
	cmd.Execute(chainCtx)

	assert.False(t, chainCtx.HasErrors())
	assert.Equal(t, model.StatusFail, state.FinalStatus)
	assert.NotEmpty(t, state.Errors)
}

// Rule retrieval is an external call like the model itself; its failure is
// recorded and the audit fails closed.
func TestAdjudicatorFailsClosedOnRetrieverFailure(t *testing.T) {
	gen := &scriptedModel{response: `unused`}
	cmd := commands.NewComplianceAdjudicator("adjudicate-compliance", &fixedRetriever{err: assert.AnError}, gen, auditTemplate)

	state := model.NewAuditState("ref", "vid_1")
	state.Transcript = "some transcript"

	chainCtx := newChainContext(state)
	cmd.Execute(chainCtx)

	assert.False(t, chainCtx.HasErrors())
	assert.Equal(t, 0, gen.calls)
	assert.Equal(t, model.StatusFail, state.FinalStatus)
	assert.NotEmpty(t, state.Errors)
}
