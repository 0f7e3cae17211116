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

// Package cloud provides components for interacting with external services.
// This file implements token acquisition for the media indexing service. The
// provider is an injected dependency with explicit expiry tracking: a token is
// cached only until shortly before the service-reported expiry, never for the
// lifetime of the process.
package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// TokenProvider supplies a bearer token for the media indexing service.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// expiryMargin is how long before the reported expiry a cached token is
// considered stale. Refreshing early keeps an in-flight upload from straddling
// the expiry boundary.
const expiryMargin = 5 * time.Minute

// defaultTokenTTL is assumed when the service omits an expiry from its
// response.
const defaultTokenTTL = 50 * time.Minute

// AccountTokenProvider exchanges a platform credential for an account-scoped
// access token at the indexing service's management endpoint. It caches the
// token with its expiry and is safe for concurrent use by parallel audit runs.
type AccountTokenProvider struct {
	// TokenURL is the management endpoint that issues account tokens.
	TokenURL string
	// Scope is the permission scope requested for the account token.
	Scope string
	// HTTPClient issues the exchange request. Defaults to http.DefaultClient.
	HTTPClient *http.Client

	mu      sync.Mutex
	token   string
	expires time.Time
	now     func() time.Time
}

// NewAccountTokenProvider builds a provider for the given management endpoint.
func NewAccountTokenProvider(tokenURL string, scope string, httpClient *http.Client) *AccountTokenProvider {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &AccountTokenProvider{
		TokenURL:   tokenURL,
		Scope:      scope,
		HTTPClient: httpClient,
		now:        time.Now,
	}
}

type tokenRequest struct {
	PermissionType string `json:"permissionType"`
	Scope          string `json:"scope"`
}

type tokenResponse struct {
	AccessToken string `json:"accessToken"`
	ExpiresIn   int64  `json:"expiresInSeconds"`
}

// Token returns a cached account token, refreshing it when absent or within
// the expiry margin.
func (p *AccountTokenProvider) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token != "" && p.now().Add(expiryMargin).Before(p.expires) {
		return p.token, nil
	}

	body, err := json.Marshal(tokenRequest{PermissionType: "Contributor", Scope: p.Scope})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.TokenURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token exchange request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("token exchange returned status %d: %s", resp.StatusCode, string(detail))
	}

	var decoded tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if decoded.AccessToken == "" {
		return "", fmt.Errorf("token exchange succeeded but returned no token")
	}

	ttl := defaultTokenTTL
	if decoded.ExpiresIn > 0 {
		ttl = time.Duration(decoded.ExpiresIn) * time.Second
	}

	p.token = decoded.AccessToken
	p.expires = p.now().Add(ttl)
	return p.token, nil
}
