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

package indexer

import (
	goctx "context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"time"

	"github.com/h2non/filetype"
	"github.com/jaycherian/gcp-go-brand-guardian/internal/cloud"
)

// DefaultPollInterval is the wait between job status checks.
const DefaultPollInterval = 30 * time.Second

// Client drives the external media indexing service through its submit, poll,
// and fetch lifecycle. All remote calls carry the caller's context so a
// cancelled audit abandons the job instead of polling forever.
type Client struct {
	// BaseURL is the root of the indexing service API, without a trailing slash.
	BaseURL string
	// AccountID identifies the indexing account.
	AccountID string
	// Location is the service region the account lives in.
	Location string
	// HTTPClient issues all API requests. Defaults to http.DefaultClient.
	HTTPClient *http.Client
	// Tokens supplies access tokens for each request.
	Tokens cloud.TokenProvider
	// Fetchers stage remote media locally before upload, tried in order.
	Fetchers []Fetcher
	// PollInterval overrides DefaultPollInterval when positive.
	PollInterval time.Duration
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) resolveFetcher(reference string) (Fetcher, error) {
	for _, f := range c.Fetchers {
		if f.Matches(reference) {
			return f, nil
		}
	}
	return nil, &UnsupportedSourceError{Reference: reference}
}

// Platform reports which source platform would handle the reference, or an
// empty string when none matches.
func (c *Client) Platform(reference string) string {
	f, err := c.resolveFetcher(reference)
	if err != nil {
		return ""
	}
	return f.Platform()
}

// Submit stages the referenced media locally, uploads it to the indexing
// service, and returns the service-assigned job id. The staged file is removed
// before returning on every path.
func (c *Client) Submit(ctx goctx.Context, reference string, name string) (string, error) {
	fetcher, err := c.resolveFetcher(reference)
	if err != nil {
		return "", err
	}

	slog.InfoContext(ctx, "staging media for indexing", "reference", reference, "platform", fetcher.Platform())
	localPath, err := fetcher.Fetch(ctx, reference)
	if err != nil {
		return "", fmt.Errorf("failed to stage media from %q: %w", reference, err)
	}
	defer func() {
		if err := os.Remove(localPath); err != nil && !os.IsNotExist(err) {
			slog.WarnContext(ctx, "failed to remove staged media", "path", localPath, "error", err)
		}
	}()

	return c.upload(ctx, localPath, name)
}

func (c *Client) upload(ctx goctx.Context, localPath string, name string) (string, error) {
	token, err := c.Tokens.Token(ctx)
	if err != nil {
		return "", err
	}

	file, err := os.Open(localPath)
	if err != nil {
		return "", err
	}
	defer func() { _ = file.Close() }()

	mimeType := sniffMIMEType(file)

	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)
	go func() {
		header := textproto.MIMEHeader{}
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, name))
		header.Set("Content-Type", mimeType)
		part, err := writer.CreatePart(header)
		if err != nil {
			_ = pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, file); err != nil {
			_ = pw.CloseWithError(err)
			return
		}
		_ = pw.CloseWithError(writer.Close())
	}()

	query := url.Values{}
	query.Set("accessToken", token)
	query.Set("name", name)
	query.Set("privacy", "Private")
	query.Set("indexingPreset", "Default")
	uploadURL := fmt.Sprintf("%s/%s/Accounts/%s/Videos?%s", c.BaseURL, c.Location, c.AccountID, query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, pr)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return "", fmt.Errorf("upload request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", &UploadError{StatusCode: resp.StatusCode, Detail: string(detail)}
	}

	var submitted struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&submitted); err != nil {
		return "", &UploadError{StatusCode: resp.StatusCode, Detail: fmt.Sprintf("undecodable response: %v", err)}
	}
	if submitted.ID == "" {
		return "", &UploadError{StatusCode: resp.StatusCode, Detail: "response contained no job id"}
	}

	slog.InfoContext(ctx, "media submitted for indexing", "job_id", submitted.ID, "name", name)
	return submitted.ID, nil
}

// sniffMIMEType reads the file header to classify the media type, rewinding
// the reader afterwards. Unrecognized content falls back to video/mp4.
func sniffMIMEType(file *os.File) string {
	head := make([]byte, 261)
	n, _ := file.Read(head)
	_, _ = file.Seek(0, io.SeekStart)
	kind, err := filetype.Match(head[:n])
	if err != nil || kind == filetype.Unknown {
		return "video/mp4"
	}
	return kind.MIME.Value
}

// AwaitCompletion polls the indexing job until it reaches a terminal state and
// returns the full insights document. The first check happens immediately;
// subsequent checks wait PollInterval and honor context cancellation.
func (c *Client) AwaitCompletion(ctx goctx.Context, jobID string) (*InsightsDocument, error) {
	interval := c.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	for {
		doc, err := c.fetchIndex(ctx, jobID)
		if err != nil {
			return nil, err
		}

		switch doc.State {
		case StateProcessed:
			return doc, nil
		case StateFailed:
			return nil, &ProcessingError{JobID: jobID}
		case StateQuarantined:
			return nil, &ContentRejectedError{JobID: jobID}
		}

		slog.InfoContext(ctx, "indexing in progress", "job_id", jobID, "state", doc.State)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}
	}
}

func (c *Client) fetchIndex(ctx goctx.Context, jobID string) (*InsightsDocument, error) {
	token, err := c.Tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("accessToken", token)
	indexURL := fmt.Sprintf("%s/%s/Accounts/%s/Videos/%s/Index?%s", c.BaseURL, c.Location, c.AccountID, jobID, query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, indexURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("index request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, &TransientServiceError{StatusCode: resp.StatusCode, Detail: string(detail)}
	}

	var doc InsightsDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode index response: %w", err)
	}
	return &doc, nil
}
