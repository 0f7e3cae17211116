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

// This file defines the command responsible for adjudicating extracted video
// content against the brand guideline corpus.
//
// Logic Flow:
// This command is the second and final stage of the audit pipeline. It turns
// the transcript and on-screen text produced by the extraction stage into a
// typed compliance verdict.
//
//  1. It reads the shared `model.AuditState` from the context. If the state
//     carries no transcript, it fails the audit immediately with an
//     explanatory report and never calls the model.
//  2. It retrieves the most relevant brand guideline rules for the content
//     from the rule corpus (semantic retrieval over BigQuery).
//  3. It constructs a prompt for the generative model using a Go template,
//     injecting the retrieved rules, the content under audit, and an example
//     of the desired JSON output structure (few-shot prompting).
//  4. It sends the prompt to the model in a single request. There is no
//     re-prompt loop: if the model's output cannot be parsed into a verdict,
//     the audit fails closed rather than burning quota on a retry that state
//     cannot be threaded through.
//  5. It validates and applies the parsed verdict to the audit state.
//
// Failures of the retrieval and model calls are recorded on the audit state as
// a failed verdict rather than raised as chain errors, so the run completes
// with a FAIL the caller can act on.
package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"go.opentelemetry.io/otel/metric"

	"github.com/jaycherian/gcp-go-brand-guardian/internal/cloud"
	"github.com/jaycherian/gcp-go-brand-guardian/internal/core/cor"
	"github.com/jaycherian/gcp-go-brand-guardian/internal/core/model"
	"github.com/jaycherian/gcp-go-brand-guardian/internal/core/services"
)

// DefaultRuleCount is the number of guideline rules retrieved to ground an
// adjudication.
const DefaultRuleCount = 3

// EmptyContentReport is the verdict report used when the indexing service
// produced no transcript to adjudicate.
const EmptyContentReport = "Audit failed: the video produced no transcript to evaluate."

// ComplianceAdjudicator is a command that judges extracted video content
// against retrieved brand guideline rules using a generative model.
type ComplianceAdjudicator struct {
	cor.BaseCommand
	retriever                services.RuleRetriever // Source of the guideline rules grounding the verdict.
	generativeAIModel        cloud.TextGenerator    // The rate-limited generative model client.
	template                 *template.Template     // The Go template for building the prompt.
	ruleCount                int                    // Number of rules to retrieve per audit.
	geminiInputTokenCounter  metric.Int64Counter    // OTel counter for input tokens.
	geminiOutputTokenCounter metric.Int64Counter    // OTel counter for output tokens.
	geminiRetryCounter       metric.Int64Counter    // OTel counter for retries.
}

// NewComplianceAdjudicator is the constructor for the ComplianceAdjudicator
// command.
//
// Inputs:
//   - name: A string name for this command instance.
//   - retriever: The rule retriever grounding each verdict.
//   - generativeAIModel: The rate-limited wrapper for the generative model client.
//   - template: A parsed Go template for the adjudication prompt.
//
// Outputs:
//   - *ComplianceAdjudicator: A pointer to the newly instantiated command,
//     including initialized telemetry counters.
func NewComplianceAdjudicator(
	name string,
	retriever services.RuleRetriever,
	generativeAIModel cloud.TextGenerator,
	template *template.Template) *ComplianceAdjudicator {

	out := &ComplianceAdjudicator{
		BaseCommand:       *cor.NewBaseCommand(name),
		retriever:         retriever,
		generativeAIModel: generativeAIModel,
		template:          template,
		ruleCount:         DefaultRuleCount,
	}

	// Counters for monitoring Gemini API usage for this specific command.
	out.geminiInputTokenCounter, _ = out.GetMeter().Int64Counter(fmt.Sprintf("%s.gemini.token.input", out.GetName()))
	out.geminiOutputTokenCounter, _ = out.GetMeter().Int64Counter(fmt.Sprintf("%s.gemini.token.output", out.GetName()))
	out.geminiRetryCounter, _ = out.GetMeter().Int64Counter(fmt.Sprintf("%s.gemini.token.retry", out.GetName()))

	return out
}

// IsExecutable requires the shared audit state to be present in the context.
func (t *ComplianceAdjudicator) IsExecutable(context cor.Context) bool {
	return context != nil &&
		context.GetContext() != nil &&
		context.Get(model.GetAuditStateParameterName()) != nil
}

// GenerateParams creates the map of dynamic data to be injected into the
// prompt template.
func (t *ComplianceAdjudicator) GenerateParams(state *model.AuditState, rules []string) map[string]interface{} {
	params := make(map[string]interface{})

	// Number the retrieved rules so the model can cite them by position.
	ruleStr := ""
	for i, rule := range rules {
		ruleStr += fmt.Sprintf("%d. %s\n", i+1, rule)
	}
	params["RULES"] = ruleStr
	params["TRANSCRIPT"] = state.Transcript
	params["ON_SCREEN_TEXT"] = strings.Join(state.OnScreenText, "\n")

	// Provide a complete, well-formed JSON example in the prompt. Few-shot
	// prompting significantly improves the reliability and structure of the
	// model's output.
	exampleVerdict, _ := json.Marshal(model.GetExampleVerdict())
	params["EXAMPLE_JSON"] = string(exampleVerdict)
	return params
}

// Execute contains the core adjudication logic for one audit run.
func (t *ComplianceAdjudicator) Execute(context cor.Context) {
	state := context.Get(model.GetAuditStateParameterName()).(*model.AuditState)
	ctx := context.GetContext()

	// A video with no transcript has nothing to judge; the model is never
	// called. This is a handled verdict, not a pipeline error: the run
	// completes with a failed audit and an explanation.
	if strings.TrimSpace(state.Transcript) == "" {
		state.FinalStatus = model.StatusFail
		state.FinalReport = EmptyContentReport
		state.Errors = append(state.Errors, "no transcript extracted from video")
		t.GetSuccessCounter().Add(ctx, 1)
		context.Add(t.GetOutputParam(), state)
		return
	}

	query := strings.TrimSpace(state.Transcript + " " + strings.Join(state.OnScreenText, " "))

	rules, err := t.retriever.Retrieve(ctx, query, t.ruleCount)
	if err != nil {
		t.failClosed(context, state, fmt.Errorf("failed to retrieve guideline rules: %w", err))
		return
	}

	var buffer bytes.Buffer
	if err := t.template.Execute(&buffer, t.GenerateParams(state, rules)); err != nil {
		t.fail(context, state, fmt.Errorf("failed to execute prompt template: %w", err))
		return
	}

	out, err := cloud.GenerateTextResponse(
		ctx,
		t.geminiInputTokenCounter,
		t.geminiOutputTokenCounter,
		t.geminiRetryCounter,
		0,
		t.generativeAIModel,
		cloud.NewTextPart(buffer.String()))
	if err != nil {
		t.failClosed(context, state, fmt.Errorf("gemini request failed: %w", err))
		return
	}

	// A malformed response fails the audit closed. The model is not asked
	// again: a second answer to the same prompt proves nothing about the
	// first, and the caller still gets a definitive FAIL with the parse
	// error recorded.
	verdict, err := model.ParseVerdict(out)
	if err != nil {
		state.FinalStatus = model.StatusFail
		state.FinalReport = model.DefaultReport
		state.Errors = append(state.Errors, fmt.Sprintf("unparseable adjudication response: %v", err))
		t.GetErrorCounter().Add(ctx, 1)
		context.Add(t.GetOutputParam(), state)
		return
	}

	state.FinalStatus = verdict.Status
	state.ComplianceResults = verdict.Issues
	state.FinalReport = verdict.Report

	t.GetSuccessCounter().Add(ctx, 1)
	context.Add(t.GetOutputParam(), state)
}

// fail raises a chain error for breakage this stage cannot classify, such as
// an unrenderable prompt template.
func (t *ComplianceAdjudicator) fail(context cor.Context, state *model.AuditState, err error) {
	t.GetErrorCounter().Add(context.GetContext(), 1)
	state.RecordFailure(err)
	context.AddError(t.GetName(), err)
}

// failClosed records an external-call failure on the audit state and completes
// the run with a FAIL verdict instead of raising a chain error. The caller
// gets a finished audit that failed, not a broken pipeline.
func (t *ComplianceAdjudicator) failClosed(context cor.Context, state *model.AuditState, err error) {
	t.GetErrorCounter().Add(context.GetContext(), 1)
	state.RecordFailure(err)
	context.Add(t.GetOutputParam(), state)
}
