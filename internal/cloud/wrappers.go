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

// This file implements a wrapper around the standard Generative AI client.
// The wrapper uses the Decorator design pattern to add rate limiting to the
// model without altering its code. Vertex AI enforces per-minute quotas, so
// uncontrolled concurrent audits would otherwise surface as quota errors.
//
// Structs:
//   - QuotaAwareGenerativeAIModel: Wraps a genai model handle with a rate limiter.
//
// Functions:
//   - NewQuotaAwareModel: A constructor to create a new instance of the wrapped model.
//   - GenerateContent: Blocks on the rate limiter, then calls the underlying model.
package cloud

import (
	"context"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// TextGenerator is the surface the adjudication pipeline needs from a
// generative model. Declaring it here lets tests substitute a scripted model
// for the real Vertex AI client.
type TextGenerator interface {
	GenerateContent(ctx context.Context, content []*genai.Content) (*genai.GenerateContentResponse, error)
}

// QuotaAwareGenerativeAIModel is a decorator that pairs a genai model handle
// with a rate limiter. Callers use it exactly like the underlying model; the
// limiter is invisible apart from the added latency when quota is exhausted.
type QuotaAwareGenerativeAIModel struct {
	GenerativeContentConfig *genai.GenerateContentConfig // The generation config applied to every request.
	ModelName               string
	ModelHandle             *genai.Models
	RateLimit               *rate.Limiter // Controls request frequency against the Vertex AI quota.
}

// NewQuotaAwareModel is a constructor function that creates a new
// QuotaAwareGenerativeAIModel from the generation config, model name, model
// handle, and a rate limit in requests per second.
func NewQuotaAwareModel(wrapped *genai.GenerateContentConfig, name string, modelHandle *genai.Models, requestsPerSecond int) *QuotaAwareGenerativeAIModel {
	return &QuotaAwareGenerativeAIModel{
		GenerativeContentConfig: wrapped,
		ModelName:               name,
		ModelHandle:             modelHandle,
		// Allows a burst of `requestsPerSecond` events and replenishes the
		// token bucket at one token per second.
		RateLimit: rate.NewLimiter(rate.Every(time.Second/1), requestsPerSecond),
	}
}

// GenerateContent blocks until the rate limiter admits the request, then calls
// the underlying model. Waiting honors context cancellation, so an abandoned
// audit never burns quota.
func (q *QuotaAwareGenerativeAIModel) GenerateContent(ctx context.Context, content []*genai.Content) (*genai.GenerateContentResponse, error) {
	if err := q.RateLimit.Wait(ctx); err != nil {
		return nil, err
	}
	return q.ModelHandle.GenerateContent(ctx, q.ModelName, content, q.GenerativeContentConfig)
}
