package codebase

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

// Embeddings searches a codebase through the server's embeddings API.
type Embeddings struct {
	endpoint string
	token    string
	headers  map[string]string
	repo     string
	client   *http.Client
}

// NewEmbeddings creates an embeddings client for repo on endpoint.
func NewEmbeddings(endpoint, token string, headers map[string]string, repo string) *Embeddings {
	return &Embeddings{
		endpoint: strings.TrimSuffix(endpoint, "/"),
		token:    token,
		headers:  headers,
		repo:     repo,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

type embeddingsRequest struct {
	Repo             string `json:"repo"`
	Query            string `json:"query"`
	CodeResultsCount int    `json:"codeResultsCount"`
	TextResultsCount int    `json:"textResultsCount"`
}

func (e *Embeddings) Search(ctx context.Context, query string, opts SearchOptions) (*Results, error) {
	body, err := json.Marshal(embeddingsRequest{
		Repo:             e.repo,
		Query:            query,
		CodeResultsCount: opts.NumCodeResults,
		TextResultsCount: opts.NumTextResults,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint+"/.api/embeddings/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.token != "" {
		req.Header.Set("Authorization", "token "+e.token)
	}
	for k, v := range e.headers {
		req.Header.Set(k, v)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embeddings request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("embeddings search failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var res Results
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, fmt.Errorf("decode embeddings results: %w", err)
	}
	return &res, nil
}
