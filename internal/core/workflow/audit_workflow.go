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

// Package workflow defines the high-level business logic orchestrations,
// combining various commands into coherent pipelines. This file implements the
// primary brand compliance audit workflow.
package workflow

import (
	goctx "context"
	"errors"
	"fmt"
	"text/template"
	"time"

	"github.com/jaycherian/gcp-go-brand-guardian/internal/cloud"
	"github.com/jaycherian/gcp-go-brand-guardian/internal/core/commands"
	"github.com/jaycherian/gcp-go-brand-guardian/internal/core/cor"
	"github.com/jaycherian/gcp-go-brand-guardian/internal/core/model"
	"github.com/jaycherian/gcp-go-brand-guardian/internal/core/services"
	"github.com/jaycherian/gcp-go-brand-guardian/internal/indexer"
)

// AuditWorkflow orchestrates the entire process of auditing one video against
// the brand guideline corpus. It's structured as a Chain of Responsibility
// (cor.Chain) that executes two stages in sequence: content extraction through
// the external media indexing service, then compliance adjudication with a
// generative model grounded on retrieved rules.
//
// The workflow is triggered either synchronously by an API request or
// asynchronously by a Pub/Sub notification for a new upload.
type AuditWorkflow struct {
	cor.BaseCommand
	indexerClient *indexer.Client
	retriever     services.RuleRetriever
	genaiModel    cloud.TextGenerator
	auditTemplate *template.Template
	chain         cor.Chain // The underlying chain of commands to be executed.
}

// Execute runs the audit workflow by invoking the underlying chain. The
// context must already carry the audit state under the well-known key.
func (m *AuditWorkflow) Execute(context cor.Context) {
	m.chain.Execute(context)
}

// initializeChain builds the two-stage command sequence for this workflow.
// This method is called by the constructor.
func (m *AuditWorkflow) initializeChain() {
	out := cor.NewBaseChain(m.GetName())

	// Stage 1: Submit the video reference to the indexing service, poll the
	// job to completion, and write the transcript and on-screen text onto the
	// audit state. A failure here halts the chain so no verdict is attempted
	// on missing content.
	out.AddCommand(commands.NewContentExtractor("extract-video-content", m.indexerClient))

	// Stage 2: Retrieve the relevant guideline rules, prompt the model once,
	// and apply the typed verdict to the audit state.
	out.AddCommand(commands.NewComplianceAdjudicator("adjudicate-compliance", m.retriever, m.genaiModel, m.auditTemplate))

	m.chain = out
}

// Run executes a complete audit for the given video reference and returns the
// finished state. The returned state always carries a definitive PASS or FAIL
// and, on FAIL, an explanation in either the compliance results or the error
// list.
//
// The error return separates the two failure channels. Failures the stages
// classify and record, such as an unsupported source, a failed or quarantined
// indexing job, or unusable model output, complete the run with a FAIL status
// and a nil error. A non-nil error means something unclassified broke and the
// caller should treat the run itself as failed.
func (m *AuditWorkflow) Run(ctx goctx.Context, videoReference string, videoID string) (*model.AuditState, error) {
	state := model.NewAuditState(videoReference, videoID)

	chainCtx := cor.NewBaseContext()
	chainCtx.SetContext(ctx)
	chainCtx.Add(model.GetAuditStateParameterName(), state)
	chainCtx.Add(cor.CtxIn, state)
	defer chainCtx.Close()

	m.chain.Execute(chainCtx)

	// Commands record their own failures on the state before raising chain
	// errors. If a chain error slipped past that (for example a command that
	// never became executable), merge it here so a failed run is never silent.
	var runErr error
	for name, err := range chainCtx.GetErrors() {
		if runErr == nil {
			runErr = fmt.Errorf("%s: %w", name, err)
		}
		if len(state.Errors) == 0 {
			state.RecordFailure(fmt.Errorf("%s: %w", name, err))
		}
	}

	// Typed ingestion failures halt the chain, but the stage that raised them
	// has already recorded a FAIL with an explanation on the state. Those runs
	// are complete; only unclassified breakage propagates as a hard error.
	if runErr != nil && isHandledFailure(runErr) {
		runErr = nil
	}

	// The caller always gets a definitive outcome.
	if state.FinalStatus == model.StatusUnknown {
		state.RecordFailure(fmt.Errorf("audit ended without a verdict"))
	}
	if state.FinalStatus == model.StatusFail && state.FinalReport == "" {
		state.FinalReport = "Audit failed before a report could be generated. See errors for details."
	}
	// A failed audit carries its explanation in the compliance results or the
	// error list, never only in report prose.
	if state.FinalStatus == model.StatusFail && !state.Explained() {
		state.Errors = append(state.Errors, fmt.Sprintf("failing verdict without itemized issues: %s", state.FinalReport))
	}
	return state, runErr
}

// isHandledFailure reports whether the error belongs to the typed failure
// taxonomy of the ingestion and adjudication stages. The stage that raised one
// of these has already recorded it on the audit state as a failed verdict, so
// the caller sees a completed audit rather than a broken pipeline.
func isHandledFailure(err error) bool {
	var unsupported *indexer.UnsupportedSourceError
	var upload *indexer.UploadError
	var transient *indexer.TransientServiceError
	var processing *indexer.ProcessingError
	var rejected *indexer.ContentRejectedError
	var parse *model.ResponseParseError
	return errors.As(err, &unsupported) ||
		errors.As(err, &upload) ||
		errors.As(err, &transient) ||
		errors.As(err, &processing) ||
		errors.As(err, &rejected) ||
		errors.As(err, &parse)
}

// NewAuditPipeline is the constructor for the AuditWorkflow. It builds the
// indexing service client, the rule retriever, compiles the prompt template,
// and initializes the command chain.
//
// Inputs:
//   - config: The application's overall configuration.
//   - serviceClients: A struct containing initialized clients for external services.
//   - agentModelName: The name of the Vertex AI agent model config to use (e.g., "auditor").
//   - embeddingModelName: The name of the embedding model config used for rule retrieval.
//
// Returns:
//   - A pointer to a newly created and fully initialized AuditWorkflow.
func NewAuditPipeline(
	config *cloud.Config,
	serviceClients *cloud.ServiceClients,
	agentModelName string,
	embeddingModelName string) *AuditWorkflow {

	// Parse the adjudication prompt template from the configuration file.
	// Panic on failure, as the app cannot run without a valid template.
	auditTemplate, err := template.New("audit-template").Parse(config.PromptTemplates.AuditUser)
	if err != nil {
		panic(err)
	}

	// The indexing client stages media with whichever fetcher matches the
	// reference: yt-dlp for public platform URLs, GCS for uploaded objects.
	indexerClient := &indexer.Client{
		BaseURL:      config.Indexer.BaseURL,
		AccountID:    config.Indexer.AccountID,
		Location:     config.Indexer.Location,
		Tokens:       serviceClients.IndexerTokens,
		PollInterval: time.Duration(config.Indexer.PollIntervalSeconds) * time.Second,
		Fetchers: []indexer.Fetcher{
			&indexer.YouTubeFetcher{CommandPath: config.Indexer.DownloaderPath},
			&indexer.GCSFetcher{Client: serviceClients.StorageClient},
		},
	}

	retriever := &services.BigQueryRuleRetriever{
		BigqueryClient: serviceClients.BigQueryClient,
		EmbeddingModel: serviceClients.EmbeddingModels[embeddingModelName],
		ModelName:      config.EmbeddingModels[embeddingModelName].Model,
		DatasetName:    config.BigQueryDataSource.DatasetName,
		RulesTable:     config.BigQueryDataSource.RulesTable,
	}

	return NewAuditWorkflow(indexerClient, retriever, serviceClients.AgentModels[agentModelName], auditTemplate)
}

// NewAuditWorkflow builds a workflow from its constituent parts. It is the
// dependency injection seam: production code reaches it through
// NewAuditPipeline, while tests can substitute scripted services.
func NewAuditWorkflow(
	indexerClient *indexer.Client,
	retriever services.RuleRetriever,
	genaiModel cloud.TextGenerator,
	auditTemplate *template.Template) *AuditWorkflow {

	pipeline := &AuditWorkflow{
		BaseCommand:   *cor.NewBaseCommand("brand-audit-pipeline"),
		indexerClient: indexerClient,
		retriever:     retriever,
		genaiModel:    genaiModel,
		auditTemplate: auditTemplate,
	}
	pipeline.initializeChain()
	return pipeline
}
