package guardrails

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSearcher struct {
	calls []string
	attr  *Attribution
	err   error
}

func (f *fakeSearcher) SearchAttribution(_ context.Context, snippet string) (*Attribution, error) {
	f.calls = append(f.calls, snippet)
	return f.attr, f.err
}

func block(n int) string {
	lines := make([]string, n)
	for i := range lines {
		lines[i] = "x := 1"
	}
	return "```go\n" + strings.Join(lines, "\n") + "\n```"
}

func TestAnnotate(t *testing.T) {
	ctx := context.Background()
	s := &fakeSearcher{attr: &Attribution{Repositories: []string{"github.com/a/b", "github.com/c/d"}}}

	text := "Here:\n" + block(MinLines) + "\nand a short one:\n" + block(2) + "\nDone."
	got, err := Annotate(ctx, s, text)
	require.NoError(t, err)

	require.Len(t, s.calls, 1)
	assert.Equal(t, MinLines, len(strings.Split(s.calls[0], "\n")))
	assert.Contains(t, got, "```\n<sub>Guardrails: found in 2 repositories: github.com/a/b, github.com/c/d</sub>\nand a short one:")
	assert.Equal(t, 1, strings.Count(got, "Guardrails"))
	assert.True(t, strings.HasSuffix(got, "\nDone."))
}

func TestAnnotateNoMatches(t *testing.T) {
	s := &fakeSearcher{attr: &Attribution{}}
	text := block(MinLines + 2)
	got, err := Annotate(context.Background(), s, text)
	require.NoError(t, err)
	assert.Equal(t, text, got)
}

func TestAnnotateLimitHit(t *testing.T) {
	s := &fakeSearcher{attr: &Attribution{Repositories: []string{"r"}, LimitHit: true}}
	got, err := Annotate(context.Background(), s, block(MinLines))
	require.NoError(t, err)
	assert.Contains(t, got, "found in 1 repositories: r and more")
}

func TestAnnotateUnterminatedBlock(t *testing.T) {
	s := &fakeSearcher{attr: &Attribution{Repositories: []string{"r"}}}
	text := "```go\n" + strings.Repeat("x\n", MinLines)
	got, err := Annotate(context.Background(), s, text)
	require.NoError(t, err)
	assert.Equal(t, text, got)
	assert.Empty(t, s.calls)
}

func TestAnnotateError(t *testing.T) {
	s := &fakeSearcher{err: errors.New("unavailable")}
	text := block(MinLines)
	got, err := Annotate(context.Background(), s, text)
	require.Error(t, err)
	assert.Equal(t, text, got)
}

func TestClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/.api/guardrails/attribution" || r.Header.Get("Authorization") != "token secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		assert.Equal(t, "yes", r.Header.Get("X-Custom"))
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		repos := []string{}
		if strings.Contains(body["snippet"], "quicksort") {
			repos = append(repos, "github.com/algo/sort")
		}
		json.NewEncoder(w).Encode(Attribution{Repositories: repos})
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "secret", map[string]string{"X-Custom": "yes"})
	attr, err := c.SearchAttribution(context.Background(), "func quicksort() {}")
	require.NoError(t, err)
	assert.Equal(t, []string{"github.com/algo/sort"}, attr.Repositories)

	attr, err = c.SearchAttribution(context.Background(), "func other() {}")
	require.NoError(t, err)
	assert.Empty(t, attr.Repositories)

	_, err = NewClient(srv.URL, "wrong", map[string]string{"X-Custom": "yes"}).SearchAttribution(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}
