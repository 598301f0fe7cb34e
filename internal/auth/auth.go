// Package auth checks the access token against the server and tracks the
// resulting status.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/opencode-ai/recipechat/internal/logging"
)

// ErrUnauthorized is returned when the server rejects the token.
var ErrUnauthorized = errors.New("invalid access token")

// Status is the outcome of the last authentication.
type Status struct {
	Endpoint      string `json:"endpoint"`
	Authenticated bool   `json:"authenticated"`
	Username      string `json:"username,omitempty"`
	// MaxModelTokens is the server-advertised prompt limit, 0 when unknown.
	MaxModelTokens int       `json:"maxModelTokens,omitempty"`
	CheckedAt      time.Time `json:"checkedAt"`
}

// Provider authenticates against a server.
type Provider struct {
	client  *http.Client
	backoff func(ctx context.Context) backoff.BackOff

	mu     sync.RWMutex
	status Status
}

// NewProvider creates a provider.
func NewProvider() *Provider {
	return &Provider{
		client:  &http.Client{Timeout: 15 * time.Second},
		backoff: newBackoff,
	}
}

func newBackoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	return backoff.WithContext(backoff.WithMaxRetries(b, 3), ctx)
}

type statusResponse struct {
	Username       string `json:"username"`
	MaxModelTokens int    `json:"maxModelTokens"`
}

// Reauthenticate validates token at endpoint and records the status.
// Server errors and network failures are retried; a rejected token is not.
func (p *Provider) Reauthenticate(ctx context.Context, endpoint, token string, headers map[string]string) error {
	endpoint = strings.TrimRight(endpoint, "/")
	var res statusResponse

	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"/.api/client/status", nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		if token != "" {
			req.Header.Set("Authorization", "token "+token)
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := p.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return backoff.Permanent(ErrUnauthorized)
		case resp.StatusCode >= 500:
			return fmt.Errorf("status %d", resp.StatusCode)
		case resp.StatusCode != http.StatusOK:
			return backoff.Permanent(fmt.Errorf("unexpected status %d", resp.StatusCode))
		}
		if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
			return backoff.Permanent(fmt.Errorf("decode status: %w", err))
		}
		return nil
	}

	err := backoff.Retry(op, p.backoff(ctx))

	st := Status{Endpoint: endpoint, CheckedAt: time.Now().UTC()}
	if err == nil {
		st.Authenticated = true
		st.Username = res.Username
		st.MaxModelTokens = res.MaxModelTokens
	}
	p.mu.Lock()
	p.status = st
	p.mu.Unlock()

	if err != nil {
		logging.Warn().Err(err).Str("endpoint", endpoint).Msg("authentication failed")
		return fmt.Errorf("authenticate %s: %w", endpoint, err)
	}
	logging.Info().Str("endpoint", endpoint).Str("user", res.Username).Msg("authenticated")
	return nil
}

// CurrentStatus returns the status recorded by the last Reauthenticate.
func (p *Provider) CurrentStatus() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status
}
