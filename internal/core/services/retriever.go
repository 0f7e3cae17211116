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

// This file defines the rule retriever, which grounds the compliance
// adjudicator. It converts the extracted video content into a vector embedding
// using a generative AI model, then uses that vector to find the most relevant
// brand guideline rules in a BigQuery table.
package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
	"google.golang.org/genai"
)

// RuleRetriever returns the brand guideline rules most relevant to the given
// content. The adjudicator depends on this interface rather than BigQuery
// directly so tests can substitute a fixed rule set.
type RuleRetriever interface {
	Retrieve(ctx context.Context, query string, maxResults int) ([]string, error)
}

// BigQueryRuleRetriever performs semantic retrieval over the rule corpus in
// BigQuery. It holds the BigQuery client for database interaction and a GenAI
// embedding model for converting the audited content to a vector.
type BigQueryRuleRetriever struct {
	BigqueryClient *bigquery.Client // Client for interacting with Google BigQuery.
	EmbeddingModel *genai.Models    // The generative AI model used to create vector embeddings from text.
	ModelName      string           // The name of the embedding model.
	DatasetName    string           // The name of the BigQuery dataset.
	RulesTable     string           // The table holding rule text and embedding vectors.
}

// Retrieve generates a vector embedding for the query text and performs a
// vector search (k-nearest neighbor) in BigQuery to find the most semantically
// relevant rules.
//
// Inputs:
//   - ctx: The context for the request, used for cancellation, deadlines, and tracing.
//   - query: The audited content, typically the transcript joined with on-screen text.
//   - maxResults: The maximum number of rules to return (the 'k' in k-nearest neighbor).
//
// Outputs:
//   - []string: The text of the matching rules, most relevant first.
//   - error: An error if any step (embedding, query, or row scanning) fails.
func (s *BigQueryRuleRetriever) Retrieve(ctx context.Context, query string, maxResults int) (out []string, err error) {
	out = make([]string, 0)

	// Convert the audited content into a vector embedding.
	contents := []*genai.Content{
		genai.NewContentFromText(query, genai.RoleUser),
	}
	embeddings, err := s.EmbeddingModel.EmbedContent(ctx, s.ModelName, contents, nil)
	if err != nil {
		return out, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(embeddings.Embeddings) == 0 {
		return out, fmt.Errorf("embedding model returned no vectors")
	}

	// Get the fully qualified name of the rules table (e.g., `project.dataset.table`).
	fqRulesTable := strings.Replace(s.BigqueryClient.Dataset(s.DatasetName).Table(s.RulesTable).FullyQualifiedName(), ":", ".", -1)

	// VECTOR_SEARCH expects the query vector as a comma-separated string of
	// float values.
	var stringArray []string
	for _, f := range embeddings.Embeddings[0].Values {
		stringArray = append(stringArray, strconv.FormatFloat(float64(f), 'f', -1, 64))
	}

	queryText := fmt.Sprintf(QryRulesKnn, fqRulesTable, strings.Join(stringArray, ","), maxResults)

	q := s.BigqueryClient.Query(queryText)
	itr, err := q.Read(ctx)
	if err != nil {
		return out, fmt.Errorf("failed to read from BigQuery: %w", err)
	}

	for {
		var row struct {
			Content string `bigquery:"content"`
		}
		err := itr.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return out, fmt.Errorf("failed to iterate results: %w", err)
		}
		out = append(out, row.Content)
	}

	return out, nil
}
