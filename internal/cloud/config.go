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

// This file centralizes the data structures for application configuration,
// loaded from TOML files. It provides a structured way to manage settings
// for Google Cloud services, the external media indexing service, AI models,
// Pub/Sub topics, and the prompt templates used for adjudication.
//
// Structs:
//   - BigQueryDataSource: Configuration for the BigQuery rule corpus.
//   - Indexer: Configuration for the external media indexing service.
//   - PromptTemplates: Holds the text templates for the adjudication prompts.
//   - VertexAiEmbeddingModel: Configuration for a Vertex AI embedding model.
//   - VertexAiLLMModel: Configuration for a Vertex AI Large Language Model (LLM).
//   - TopicSubscription: Configuration for a single Pub/Sub topic subscription.
//   - Storage: Configuration for Google Cloud Storage buckets.
//   - Config: The top-level struct that aggregates all other configuration structs.
//
// Functions:
//   - NewConfig: A constructor that initializes a new Config object with empty maps.
package cloud

import "google.golang.org/genai"

// DefaultSafetySettings defines the default content safety thresholds for GenAI models.
// These settings are configured to be non-restrictive, allowing all content categories
// (Dangerous Content, Harassment, Hate Speech, Sexually Explicit) to pass through without
// being blocked. The adjudicator has to read potentially non-compliant ad copy verbatim,
// so blocking at the model layer would mask exactly the content that needs auditing.
var DefaultSafetySettings = []*genai.SafetySetting{
	{
		Category:  genai.HarmCategoryDangerousContent,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
	{
		Category:  genai.HarmCategoryHarassment,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
	{
		Category:  genai.HarmCategoryHateSpeech,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
	{
		Category:  genai.HarmCategorySexuallyExplicit,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
}

// BigQueryDataSource represents the configuration for the rule corpus in BigQuery.
type BigQueryDataSource struct {
	DatasetName string `toml:"dataset"`     // The name of the BigQuery dataset.
	RulesTable  string `toml:"rules_table"` // The table holding brand guideline rules and their embeddings.
}

// Indexer represents the configuration for the external media indexing service
// that produces transcripts and on-screen text from submitted video.
type Indexer struct {
	BaseURL             string `toml:"base_url"`              // The root URL of the indexing service API.
	TokenURL            string `toml:"token_url"`             // The management endpoint that issues account tokens.
	AccountID           string `toml:"account_id"`            // The indexing account identifier.
	Location            string `toml:"location"`              // The service region the account lives in.
	Scope               string `toml:"scope"`                 // The permission scope requested for account tokens.
	PollIntervalSeconds int    `toml:"poll_interval_seconds"` // Seconds between job status checks.
	DownloaderPath      string `toml:"downloader_path"`       // Path to the yt-dlp binary used to stage public video.
}

// PromptTemplates holds the templates for different types of prompts.
type PromptTemplates struct {
	AuditSystem string `toml:"audit_system"` // The system instructions for the compliance adjudicator.
	AuditUser   string `toml:"audit_user"`   // The template for the adjudication user prompt.
}

// VertexAiEmbeddingModel represents the configuration for a Vertex AI embedding model.
type VertexAiEmbeddingModel struct {
	Model                string `toml:"model"`                   // The name of the Vertex AI embedding model.
	MaxRequestsPerMinute int    `toml:"max_requests_per_minute"` // The maximum number of requests allowed per minute.
}

// VertexAiLLMModel represents the configuration for a Vertex AI large language model (LLM).
type VertexAiLLMModel struct {
	Model              string  `toml:"model"`               // The name of the Vertex AI LLM.
	SystemInstructions string  `toml:"system_instructions"` // The system instructions for the LLM.
	Temperature        float32 `toml:"temperature"`         // The temperature parameter for the LLM.
	TopP               float32 `toml:"top_p"`               // The top_p parameter for the LLM.
	TopK               float32 `toml:"top_k"`               // The top_k parameter for the LLM.
	MaxTokens          int32   `toml:"max_tokens"`          // The maximum number of tokens for the LLM output.
	OutputFormat       string  `toml:"output_format"`       // The desired output format for the LLM.
	RateLimit          int     `toml:"rate_limit"`          // The rate limit for the LLM in requests per second.
}

// TopicSubscription represents the configuration for a Pub/Sub topic subscription.
type TopicSubscription struct {
	Name             string `toml:"name"`               // The name of the Pub/Sub subscription.
	DeadLetterTopic  string `toml:"dead_letter_topic"`  // The name of the dead-letter topic for the subscription.
	TimeoutInSeconds int    `toml:"timeout_in_seconds"` // The timeout for the subscription in seconds.
}

// Storage represents the configuration for storage buckets.
type Storage struct {
	InputBucket string `toml:"input_bucket"` // The bucket advertiser uploads land in.
}

// Config represents the overall configuration for the application, loaded from TOML files.
// It acts as the root container for all other configuration structs.
type Config struct {
	// Application holds general application settings.
	Application struct {
		Name                      string `toml:"name"`                         // The name of the application.
		GoogleProjectId           string `toml:"google_project_id"`            // The Google Cloud project ID.
		GoogleLocation            string `toml:"location"`                     // The Google Cloud location.
		ThreadPoolSize            int    `toml:"thread_pool_size"`             // The size of the worker pool for concurrent audits.
		SignerServiceAccountEmail string `toml:"signer_service_account_email"` // The service account email used for signing GCS URLs.
	} `toml:"application"`
	Storage            Storage                           `toml:"storage"`               // Storage configuration.
	Indexer            Indexer                           `toml:"indexer"`               // Media indexing service configuration.
	BigQueryDataSource BigQueryDataSource                `toml:"big_query_data_source"` // BigQuery rule corpus configuration.
	PromptTemplates    PromptTemplates                   `toml:"prompt_templates"`      // Prompt templates configuration.
	TopicSubscriptions map[string]TopicSubscription      `toml:"topic_subscriptions"`   // A map of Pub/Sub topic subscriptions, keyed by a logical name (e.g., "UploadTopic").
	EmbeddingModels    map[string]VertexAiEmbeddingModel `toml:"embedding_models"`      // A map of Vertex AI embedding models, keyed by a logical name (e.g., "rules").
	AgentModels        map[string]VertexAiLLMModel       `toml:"agent_models"`          // A map of Vertex AI LLM models, keyed by a logical name (e.g., "auditor").
}

// NewConfig is a constructor function that creates a new, initialized Config instance.
// It's important to initialize the maps within the struct to avoid nil pointer panics
// when the configuration loader tries to populate them.
//
// Outputs:
//   - *Config: A pointer to a new Config struct with its map fields initialized.
func NewConfig() *Config {
	return &Config{
		TopicSubscriptions: make(map[string]TopicSubscription),
		EmbeddingModels:    make(map[string]VertexAiEmbeddingModel),
		AgentModels:        make(map[string]VertexAiLLMModel),
	}
}
