// Package guardrails annotates generated code that matches code found in
// known repositories.
package guardrails

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

// MinLines is the smallest code block worth checking.
const MinLines = 10

// Attribution lists the repositories a snippet was found in.
type Attribution struct {
	Repositories []string `json:"repositories"`
	LimitHit     bool     `json:"limitHit"`
}

// Searcher looks up the attribution of a snippet.
type Searcher interface {
	SearchAttribution(ctx context.Context, snippet string) (*Attribution, error)
}

// Client queries the attribution endpoint of the server.
type Client struct {
	endpoint string
	token    string
	headers  map[string]string
	client   *http.Client
}

// NewClient creates a client for the server at endpoint.
func NewClient(endpoint, token string, headers map[string]string) *Client {
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		token:    token,
		headers:  headers,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *Client) SearchAttribution(ctx context.Context, snippet string) (*Attribution, error) {
	body, err := json.Marshal(map[string]string{"snippet": snippet})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/.api/guardrails/attribution", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "token "+c.token)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("attribution request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("attribution search failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out Attribution
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode attribution: %w", err)
	}
	return &out, nil
}

// Annotate checks every fenced code block of at least MinLines lines and
// adds a note below the ones found elsewhere. On error the text is returned
// unchanged together with the error.
func Annotate(ctx context.Context, s Searcher, text string) (string, error) {
	lines := strings.Split(text, "\n")
	var out []string

	for i := 0; i < len(lines); i++ {
		out = append(out, lines[i])
		if !strings.HasPrefix(strings.TrimSpace(lines[i]), "```") {
			continue
		}

		end := -1
		for j := i + 1; j < len(lines); j++ {
			if strings.HasPrefix(strings.TrimSpace(lines[j]), "```") {
				end = j
				break
			}
		}
		if end < 0 {
			// unterminated block: leave the rest as is
			out = append(out, lines[i+1:]...)
			break
		}

		code := lines[i+1 : end]
		out = append(out, lines[i+1:end+1]...)
		i = end

		if len(code) < MinLines {
			continue
		}
		attr, err := s.SearchAttribution(ctx, strings.Join(code, "\n"))
		if err != nil {
			return text, err
		}
		if note := summary(attr); note != "" {
			out = append(out, note)
		}
	}
	return strings.Join(out, "\n"), nil
}

func summary(a *Attribution) string {
	if a == nil || len(a.Repositories) == 0 {
		return ""
	}
	more := ""
	if a.LimitHit {
		more = " and more"
	}
	return fmt.Sprintf("<sub>Guardrails: found in %d repositories: %s%s</sub>", len(a.Repositories), strings.Join(a.Repositories, ", "), more)
}
