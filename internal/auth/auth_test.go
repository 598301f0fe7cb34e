package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testProvider() *Provider {
	p := NewProvider()
	p.backoff = func(ctx context.Context) backoff.BackOff {
		return backoff.WithContext(backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 3), ctx)
	}
	return p
}

func TestReauthenticate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "token good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		assert.Equal(t, "/.api/client/status", r.URL.Path)
		assert.Equal(t, "1", r.Header.Get("X-Trace"))
		json.NewEncoder(w).Encode(statusResponse{Username: "alice", MaxModelTokens: 8000})
	}))
	defer srv.Close()

	p := testProvider()
	assert.False(t, p.CurrentStatus().Authenticated)

	require.NoError(t, p.Reauthenticate(context.Background(), srv.URL+"/", "good", map[string]string{"X-Trace": "1"}))
	st := p.CurrentStatus()
	assert.True(t, st.Authenticated)
	assert.Equal(t, srv.URL, st.Endpoint)
	assert.Equal(t, "alice", st.Username)
	assert.Equal(t, 8000, st.MaxModelTokens)

	err := p.Reauthenticate(context.Background(), srv.URL, "bad", map[string]string{"X-Trace": "1"})
	require.ErrorIs(t, err, ErrUnauthorized)
	assert.False(t, p.CurrentStatus().Authenticated)
	assert.Zero(t, p.CurrentStatus().MaxModelTokens)
}

func TestReauthenticateRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(statusResponse{Username: "bob"})
	}))
	defer srv.Close()

	p := testProvider()
	require.NoError(t, p.Reauthenticate(context.Background(), srv.URL, "t", nil))
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, "bob", p.CurrentStatus().Username)
}

func TestReauthenticateDoesNotRetryRejectedToken(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	err := testProvider().Reauthenticate(context.Background(), srv.URL, "t", nil)
	require.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, int32(1), calls.Load())
}

func TestReauthenticateGivesUp(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	err := testProvider().Reauthenticate(context.Background(), srv.URL, "t", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 503")
	assert.Equal(t, int32(4), calls.Load())
}
