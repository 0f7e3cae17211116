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

// Package cloud_test exercises the account token provider against a scripted
// token endpoint, proving the cache honors service-reported expiry.
package cloud_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/jaycherian/gcp-go-brand-guardian/internal/cloud"
	"github.com/stretchr/testify/assert"
)

func TestTokenCachedUntilExpiry(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		n := calls.Add(1)
		_, _ = fmt.Fprintf(w, `{"accessToken": "token-%d", "expiresInSeconds": 3600}`, n)
	}))
	defer server.Close()

	provider := cloud.NewAccountTokenProvider(server.URL, "Account", server.Client())

	first, err := provider.Token(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, "token-1", first)

	// A long-lived token is served from the cache with no second exchange.
	second, err := provider.Token(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, "token-1", second)
	assert.Equal(t, int32(1), calls.Load())
}

// A token expiring inside the refresh margin is never reused: every request
// triggers a fresh exchange rather than risking a stale credential mid-upload.
func TestTokenRefreshedWhenNearExpiry(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		n := calls.Add(1)
		_, _ = fmt.Fprintf(w, `{"accessToken": "token-%d", "expiresInSeconds": 1}`, n)
	}))
	defer server.Close()

	provider := cloud.NewAccountTokenProvider(server.URL, "Account", server.Client())

	first, err := provider.Token(context.Background())
	assert.NoError(t, err)
	second, err := provider.Token(context.Background())
	assert.NoError(t, err)

	assert.Equal(t, "token-1", first)
	assert.Equal(t, "token-2", second)
	assert.Equal(t, int32(2), calls.Load())
}

func TestTokenExchangeFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "denied", http.StatusForbidden)
	}))
	defer server.Close()

	provider := cloud.NewAccountTokenProvider(server.URL, "Account", server.Client())
	_, err := provider.Token(context.Background())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestTokenEmptyResponseRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	provider := cloud.NewAccountTokenProvider(server.URL, "Account", server.Client())
	_, err := provider.Token(context.Background())
	assert.Error(t, err)
}
