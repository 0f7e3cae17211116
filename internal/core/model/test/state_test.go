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

package model_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/jaycherian/gcp-go-brand-guardian/internal/core/model"
	"github.com/stretchr/testify/assert"
)

func TestNewAuditStateDefaults(t *testing.T) {
	state := model.NewAuditState("https://youtube.com/watch?v=abc", "vid_12345678")
	assert.Equal(t, model.StatusUnknown, state.FinalStatus)
	assert.Equal(t, "vid_12345678", state.VideoID)
	assert.NotNil(t, state.OnScreenText)
	assert.NotNil(t, state.ComplianceResults)
	assert.NotNil(t, state.Errors)
	assert.False(t, state.Explained())
}

func TestRecordFailureAccumulates(t *testing.T) {
	state := model.NewAuditState("ref", "vid_1")
	state.RecordFailure(errors.New("staging failed"))
	state.RecordFailure(errors.New("indexing failed"))

	assert.Equal(t, model.StatusFail, state.FinalStatus)
	assert.Len(t, state.Errors, 2)
	assert.True(t, state.Explained())
}

func TestExplainedByComplianceResults(t *testing.T) {
	state := model.NewAuditState("ref", "vid_1")
	state.FinalStatus = model.StatusFail
	state.ComplianceResults = append(state.ComplianceResults, model.ComplianceIssue{
		Category:    "Claim Validation",
		Severity:    model.SeverityCritical,
		Description: "Unsubstantiated claim.",
	})
	assert.True(t, state.Explained())
	assert.Empty(t, state.Errors)
}

func TestParseSeverity(t *testing.T) {
	for _, valid := range []string{"INFO", "WARNING", "CRITICAL"} {
		sev, err := model.ParseSeverity(valid)
		assert.NoError(t, err)
		assert.Equal(t, model.Severity(valid), sev)
	}
	_, err := model.ParseSeverity("critical")
	assert.Error(t, err)
}

// The response body exposes only the verdict fields under their wire names.
// Working fields of the state, such as the transcript and the error list,
// must never reach the caller.
func TestAuditResponseShape(t *testing.T) {
	state := model.NewAuditState("https://youtube.com/watch?v=abc", "vid_12345678")
	state.Transcript = "internal working text"
	state.Errors = append(state.Errors, "internal failure detail")
	state.FinalStatus = model.StatusFail
	state.FinalReport = "The advertisement makes an unverifiable medical claim."
	state.ComplianceResults = append(state.ComplianceResults, model.ComplianceIssue{
		Category:    "Claim Validation",
		Severity:    model.SeverityCritical,
		Description: "Unsubstantiated claim.",
	})

	resp := model.NewAuditResponse("session-1", state)
	assert.Equal(t, "session-1", resp.SessionID)
	assert.Equal(t, "vid_12345678", resp.VideoID)
	assert.Equal(t, model.StatusFail, resp.Status)
	assert.Len(t, resp.ComplianceResults, 1)

	body, err := json.Marshal(resp)
	assert.NoError(t, err)
	for _, key := range []string{`"session_id"`, `"video_id"`, `"status"`, `"final_report"`, `"compliance_results"`} {
		assert.Contains(t, string(body), key)
	}
	assert.NotContains(t, string(body), "final_status")
	assert.NotContains(t, string(body), "transcript")
	assert.NotContains(t, string(body), "errors")
}
