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

// Package services contains the business logic for interacting with data sources.
// This file centralizes the BigQuery SQL query strings used by the services.
// The queries use `fmt.Sprintf` format verbs (e.g., %s, %d) as placeholders
// for dynamic values injected at runtime.
package services

const (
	// QryRulesKnn defines the BigQuery query for performing a k-nearest
	// neighbor (KNN) vector search over the brand guideline rule corpus.
	//
	// How it works:
	// - `VECTOR_SEARCH`: A BigQuery native function that finds the most similar
	//   vectors in a table to a given query vector.
	// - `TABLE %s`: The first placeholder is the fully qualified name of the rules table.
	// - `'embeddings'`: The column in the table that stores the embedding vectors.
	// - `(SELECT [ %s ] as embed)`: The second placeholder is the query vector,
	//   inserted as a comma-separated list of floating-point numbers built from
	//   the embedded video content.
	// - `top_k => %d`: The number of closest rules to return.
	// - `distance_type => 'EUCLIDEAN'`: The distance metric between vectors.
	// - `ORDER BY distance asc`: Most relevant rules first.
	//
	// The query returns the `content` of each matching rule.
	QryRulesKnn = "SELECT base.content FROM VECTOR_SEARCH(TABLE `%s`, 'embeddings', (SELECT [ %s ] as embed), top_k => %d, distance_type => 'EUCLIDEAN') ORDER BY distance asc"
)
