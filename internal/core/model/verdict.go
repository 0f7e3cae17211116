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
// This file parses the adjudicating model's JSON response into a typed
// Verdict. Parsing is fail-closed: an absent status means FAIL, and any shape
// the parser cannot vouch for is an error rather than a guessed-at verdict.
package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DefaultReport is the placeholder summary used when the model omits
// final_report from an otherwise valid response.
const DefaultReport = "No report generated."

// ResponseParseError reports that the language model's output did not conform
// to the required JSON verdict shape. It carries the raw response so the
// failure can be diagnosed from logs without re-running the model.
type ResponseParseError struct {
	Raw string
	Err error
}

func (e *ResponseParseError) Error() string {
	return fmt.Sprintf("unparseable adjudicator response: %v", e.Err)
}

func (e *ResponseParseError) Unwrap() error { return e.Err }

// Verdict is the validated outcome of one adjudication call.
type Verdict struct {
	Status AuditStatus
	Issues []ComplianceIssue
	Report string
}

// rawVerdict mirrors the JSON contract the prompt demands from the model.
// Fields are pointers where absence and emptiness must be distinguished.
type rawVerdict struct {
	ComplianceResults []rawIssue `json:"compliance_results"`
	Status            *string    `json:"status"`
	FinalReport       *string    `json:"final_report"`
}

type rawIssue struct {
	Category    string `json:"category"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
}

// StripCodeFence removes a wrapping Markdown code fence (``` or ```json) from
// a model response, returning the inner text untouched. Responses without a
// fence pass through unchanged.
func StripCodeFence(in string) string {
	out := strings.TrimSpace(in)
	if !strings.HasPrefix(out, "```") {
		return out
	}
	// Drop the opening fence line, including any language tag.
	if idx := strings.IndexByte(out, '\n'); idx >= 0 {
		out = out[idx+1:]
	} else {
		out = strings.TrimPrefix(out, "```json")
		out = strings.TrimPrefix(out, "```")
	}
	out = strings.TrimSpace(out)
	out = strings.TrimSuffix(out, "```")
	return strings.TrimSpace(out)
}

// ParseVerdict turns a raw model response into a Verdict.
//
// Defaults are fail-closed: a missing status becomes FAIL, missing
// compliance_results becomes an empty list, and a missing final_report becomes
// DefaultReport. A status outside {PASS, FAIL}, an unknown severity, or a PASS
// verdict that still lists issues are all treated as parse failures: a
// compliance auditor must never report PASS on output it cannot fully trust.
func ParseVerdict(response string) (*Verdict, error) {
	cleaned := StripCodeFence(response)

	var raw rawVerdict
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return nil, &ResponseParseError{Raw: response, Err: err}
	}

	out := &Verdict{
		Status: StatusFail,
		Issues: make([]ComplianceIssue, 0, len(raw.ComplianceResults)),
		Report: DefaultReport,
	}

	if raw.Status != nil {
		switch AuditStatus(*raw.Status) {
		case StatusPass, StatusFail:
			out.Status = AuditStatus(*raw.Status)
		default:
			return nil, &ResponseParseError{Raw: response, Err: fmt.Errorf("invalid status %q", *raw.Status)}
		}
	}

	for _, issue := range raw.ComplianceResults {
		severity, err := ParseSeverity(issue.Severity)
		if err != nil {
			return nil, &ResponseParseError{Raw: response, Err: err}
		}
		out.Issues = append(out.Issues, ComplianceIssue{
			Category:    issue.Category,
			Severity:    severity,
			Description: issue.Description,
		})
	}

	if out.Status == StatusPass && len(out.Issues) > 0 {
		return nil, &ResponseParseError{Raw: response, Err: fmt.Errorf("PASS verdict with %d issues", len(out.Issues))}
	}

	if raw.FinalReport != nil && *raw.FinalReport != "" {
		out.Report = *raw.FinalReport
	}

	return out, nil
}
