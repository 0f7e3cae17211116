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
// This file provides example values embedded into prompts as few-shot output
// guides, which materially improves the structural reliability of model
// responses.
package model

// ExampleVerdict is the wire shape the adjudication prompt shows the model.
// Kept as an exported wire-tagged struct so prompt construction can marshal
// it rather than hand-maintaining a JSON literal.
type ExampleVerdict struct {
	ComplianceResults []ComplianceIssue `json:"compliance_results"`
	Status            AuditStatus       `json:"status"`
	FinalReport       string            `json:"final_report"`
}

// GetExampleVerdict returns a representative failing verdict for few-shot
// prompting.
func GetExampleVerdict() *ExampleVerdict {
	return &ExampleVerdict{
		ComplianceResults: []ComplianceIssue{
			{
				Category:    "Claim Validation",
				Severity:    SeverityCritical,
				Description: "The narration claims the product eliminates all allergens, which is an unverified health claim.",
			},
		},
		Status:      StatusFail,
		FinalReport: "One critical violation: an unverified health claim in the spoken narration.",
	}
}
