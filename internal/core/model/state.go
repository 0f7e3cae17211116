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

// Package model defines the core data structures for the brand audit service.
// This file holds the AuditState record that a single pipeline run threads
// through its stages, plus the status and severity enumerations that gate it.
package model

import "fmt"

// AuditStatus is the overall outcome of an audit run. It starts UNKNOWN and
// must be PASS or FAIL by the time the pipeline returns; UNKNOWN leaking out
// of a completed run is a bug.
type AuditStatus string

const (
	StatusUnknown AuditStatus = "UNKNOWN"
	StatusPass    AuditStatus = "PASS"
	StatusFail    AuditStatus = "FAIL"
)

// Severity grades a single compliance issue. The set is closed: anything the
// adjudicating model emits outside it is a validation error, never silently
// accepted.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

// ParseSeverity validates a severity string from an adjudicator response.
func ParseSeverity(in string) (Severity, error) {
	switch Severity(in) {
	case SeverityInfo, SeverityWarning, SeverityCritical:
		return Severity(in), nil
	}
	return "", fmt.Errorf("unknown severity %q", in)
}

// ComplianceIssue is one identified rule violation. Immutable once produced
// by the adjudication stage.
type ComplianceIssue struct {
	Category    string   `json:"category"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
}

// AuditState is the single mutable record for one audit run. It is owned by
// exactly one pipeline execution, is never shared between concurrent requests,
// and is discarded once the response has been produced. Stages only ever add
// to it; a later stage never clears what an earlier stage wrote.
type AuditState struct {
	// VideoReference is the input identifier or URL. Immutable once set.
	VideoReference string `json:"video_reference"`
	// VideoID is the short correlation id assigned at request entry.
	VideoID string `json:"video_id"`
	// Transcript is the space-joined spoken text, empty until extraction
	// succeeds.
	Transcript string `json:"transcript"`
	// OnScreenText holds OCR fragments in source order.
	OnScreenText []string `json:"on_screen_text"`
	// VideoMetadata carries duration, platform tag, and source id when the
	// indexing service reports them.
	VideoMetadata map[string]any `json:"video_metadata"`
	// ComplianceResults is empty until adjudication succeeds.
	ComplianceResults []ComplianceIssue `json:"compliance_results"`
	// FinalStatus is UNKNOWN until a stage decides the outcome.
	FinalStatus AuditStatus `json:"final_status"`
	// FinalReport is the human-readable summary of the verdict.
	FinalReport string `json:"final_report"`
	// Errors accumulates failure messages. Append only.
	Errors []string `json:"errors"`
}

// GetAuditStateParameterName returns the constant key used for storing the
// audit state in a chain context, so every command in a workflow can reach the
// shared record without positional piping.
func GetAuditStateParameterName() string {
	return "__AUDIT_STATE__"
}

// NewAuditState builds the initial state for a run.
func NewAuditState(videoReference string, videoID string) *AuditState {
	return &AuditState{
		VideoReference:    videoReference,
		VideoID:           videoID,
		OnScreenText:      make([]string, 0),
		VideoMetadata:     make(map[string]any),
		ComplianceResults: make([]ComplianceIssue, 0),
		FinalStatus:       StatusUnknown,
		Errors:            make([]string, 0),
	}
}

// RecordFailure appends the error message and marks the run failed. It never
// removes previously recorded errors, so a failed run always carries its full
// history.
func (s *AuditState) RecordFailure(err error) {
	if err != nil {
		s.Errors = append(s.Errors, err.Error())
	}
	s.FinalStatus = StatusFail
}

// Explained reports whether a FAIL outcome carries an explanation, either as
// identified compliance issues or as recorded errors. The pipeline asserts
// this before returning a failed state to the caller.
func (s *AuditState) Explained() bool {
	return len(s.ComplianceResults) > 0 || len(s.Errors) > 0
}

// AuditResponse is the flat body returned to the caller once a run completes.
// It carries only the verdict; the working fields of the audit state, such as
// the transcript and the error list, stay internal.
type AuditResponse struct {
	SessionID         string            `json:"session_id"`
	VideoID           string            `json:"video_id"`
	Status            AuditStatus       `json:"status"`
	FinalReport       string            `json:"final_report"`
	ComplianceResults []ComplianceIssue `json:"compliance_results"`
}

// NewAuditResponse maps a finished audit state into the response shape.
func NewAuditResponse(sessionID string, state *AuditState) *AuditResponse {
	return &AuditResponse{
		SessionID:         sessionID,
		VideoID:           state.VideoID,
		Status:            state.FinalStatus,
		FinalReport:       state.FinalReport,
		ComplianceResults: state.ComplianceResults,
	}
}
