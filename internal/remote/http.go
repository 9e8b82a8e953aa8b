// Package remote provides the HTTP client for the PostNexus publish API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPConfig holds connection settings for the publish API.
type HTTPConfig struct {
	APIURL string
	APIKey string
}

// HTTPStore implements Store against a JSON-over-HTTP publish API.
type HTTPStore struct {
	apiURL string
	apiKey string
	client *http.Client
}

// NewHTTPStore creates an HTTPStore with the given credentials.
func NewHTTPStore(cfg HTTPConfig) *HTTPStore {
	return &HTTPStore{
		apiURL: strings.TrimRight(cfg.APIURL, "/"),
		apiKey: cfg.APIKey,
		client: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:    10,
				IdleConnTimeout: 30 * time.Second,
			},
		},
	}
}

// referenceResponse is the body returned by POST /references.
type referenceResponse struct {
	Reference string `json:"reference"`
}

// AllocateReference asks the API to mint a fresh unique reference.
func (s *HTTPStore) AllocateReference(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL+"/references", nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("x-api-key", s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("reference request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("publish API returned %d: %s", resp.StatusCode, string(body))
	}

	var ref referenceResponse
	if err := json.NewDecoder(resp.Body).Decode(&ref); err != nil {
		return "", fmt.Errorf("failed to decode reference: %w", err)
	}
	if ref.Reference == "" {
		return "", fmt.Errorf("publish API returned an empty reference")
	}
	return ref.Reference, nil
}

// Publish stores the snapshot under the given reference via
// PUT /posts/{reference}.
func (s *HTTPStore) Publish(ctx context.Context, ref string, snap Snapshot) error {
	body, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.apiURL+"/posts/"+ref, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("publish request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("publish API returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
