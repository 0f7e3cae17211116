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

// Package indexer drives the external media-intelligence service. This file
// holds the wire types of the service's index document and the normalization
// step that flattens the nested insight payload into the flat fields the
// audit pipeline consumes.
package indexer

import "strings"

// Job states reported by the indexing service. Anything outside the terminal
// three keeps the poll loop going.
const (
	StateProcessed   = "Processed"
	StateFailed      = "Failed"
	StateQuarantined = "Quarantined"
)

// InsightsDocument is the raw index payload for one job. The service nests
// per-video insight bundles under the top-level document; a single submission
// normally yields exactly one video, but the shape allows several and
// normalization honors all of them in document order.
type InsightsDocument struct {
	ID                 string              `json:"id"`
	State              string              `json:"state"`
	Videos             []VideoInsights     `json:"videos"`
	SummarizedInsights *SummarizedInsights `json:"summarizedInsights"`
}

// VideoInsights wraps the insight bundle for one video in the document.
type VideoInsights struct {
	Insights InsightBundle `json:"insights"`
}

// InsightBundle holds the fragment lists the audit pipeline cares about.
type InsightBundle struct {
	Transcript []TextFragment `json:"transcript"`
	OCR        []TextFragment `json:"ocr"`
}

// TextFragment is one timed piece of recognized text.
type TextFragment struct {
	Text string `json:"text"`
}

// SummarizedInsights carries the document-level rollup fields.
type SummarizedInsights struct {
	Duration string `json:"duration"`
}

// ExtractionResult is the normalized output of a completed indexing job.
type ExtractionResult struct {
	// Transcript is every spoken fragment, document order, space joined.
	Transcript string
	// OnScreenText is every OCR fragment in source order.
	OnScreenText []string
	// Metadata holds duration, source_id, and platform when present.
	Metadata map[string]any
}

// Normalize flattens an index document into an ExtractionResult. Missing
// fields default to empty values; normalization never fails on an incomplete
// document.
func Normalize(doc *InsightsDocument) *ExtractionResult {
	out := &ExtractionResult{
		OnScreenText: make([]string, 0),
		Metadata:     make(map[string]any),
	}
	if doc == nil {
		return out
	}

	transcript := make([]string, 0)
	for _, video := range doc.Videos {
		for _, fragment := range video.Insights.Transcript {
			transcript = append(transcript, fragment.Text)
		}
		for _, fragment := range video.Insights.OCR {
			out.OnScreenText = append(out.OnScreenText, fragment.Text)
		}
	}
	out.Transcript = strings.Join(transcript, " ")

	if doc.SummarizedInsights != nil && doc.SummarizedInsights.Duration != "" {
		out.Metadata["duration"] = doc.SummarizedInsights.Duration
	}
	if doc.ID != "" {
		out.Metadata["source_id"] = doc.ID
	}
	return out
}
