// Package codebase retrieves codebase context for prompts, from a local
// keyword search over the workspace and from a remote embeddings service.
package codebase

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/opencode-ai/recipechat/internal/logging"
	"github.com/opencode-ai/recipechat/pkg/types"
)

// Context source modes.
const (
	ModeEmbeddings = "embeddings"
	ModeKeyword    = "keyword"
	ModeNone       = "none"
	ModeBlended    = "blended"
)

// Result is one search hit.
type Result struct {
	FileName  string `json:"fileName"`
	StartLine int    `json:"startLine"`
	EndLine   int    `json:"endLine"`
	Content   string `json:"content"`
}

// Results holds code and text (prose) hits separately.
type Results struct {
	Code []Result `json:"codeResults"`
	Text []Result `json:"textResults"`
}

// SearchOptions bounds the number of results.
type SearchOptions struct {
	NumCodeResults int
	NumTextResults int
}

// DefaultSearchOptions matches what chat questions ask for.
var DefaultSearchOptions = SearchOptions{NumCodeResults: 8, NumTextResults: 2}

// Searcher finds snippets relevant to a query.
type Searcher interface {
	Search(ctx context.Context, query string, opts SearchOptions) (*Results, error)
}

// Context combines the configured searchers into prompt context.
type Context struct {
	name       string
	mode       string
	keyword    Searcher
	embeddings Searcher

	mu           sync.Mutex
	searchErrors []string
}

// NewContext creates a context for the named codebase. Either searcher may be
// nil; embeddings searches fall back to keyword search when unavailable.
func NewContext(name, mode string, keyword, embeddings Searcher) *Context {
	if mode == "" {
		mode = ModeEmbeddings
	}
	return &Context{name: name, mode: mode, keyword: keyword, embeddings: embeddings}
}

// Name returns the codebase name.
func (c *Context) Name() string { return c.name }

// Mode returns the context source mode.
func (c *Context) Mode() string { return c.mode }

// EmbeddingsConnected reports whether an embeddings service is configured.
func (c *Context) EmbeddingsConnected() bool { return c.embeddings != nil }

// SearchErrors returns the embeddings errors of the most recent search.
func (c *Context) SearchErrors() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return strings.Join(c.searchErrors, "\n")
}

// Search runs the searches selected by the mode and merges their results.
func (c *Context) Search(ctx context.Context, query string, opts SearchOptions) (*Results, error) {
	c.mu.Lock()
	c.searchErrors = nil
	c.mu.Unlock()

	switch c.mode {
	case ModeNone:
		return &Results{}, nil
	case ModeKeyword:
		return c.searchKeyword(ctx, query, opts)
	case ModeBlended:
		merged := &Results{}
		if res := c.searchEmbeddings(ctx, query, opts); res != nil {
			merged.Code = append(merged.Code, res.Code...)
			merged.Text = append(merged.Text, res.Text...)
		}
		res, err := c.searchKeyword(ctx, query, opts)
		if err != nil {
			return merged, err
		}
		merged.Code = dedupe(append(merged.Code, res.Code...), opts.NumCodeResults)
		merged.Text = dedupe(append(merged.Text, res.Text...), opts.NumTextResults)
		return merged, nil
	default:
		if res := c.searchEmbeddings(ctx, query, opts); res != nil {
			return res, nil
		}
		return c.searchKeyword(ctx, query, opts)
	}
}

// searchEmbeddings returns nil when embeddings are unavailable or failed.
func (c *Context) searchEmbeddings(ctx context.Context, query string, opts SearchOptions) *Results {
	if c.embeddings == nil {
		return nil
	}
	res, err := c.embeddings.Search(ctx, query, opts)
	if err != nil {
		logging.Warn().Err(err).Str("codebase", c.name).Msg("embeddings search failed")
		c.mu.Lock()
		c.searchErrors = append(c.searchErrors, err.Error())
		c.mu.Unlock()
		return nil
	}
	return res
}

func (c *Context) searchKeyword(ctx context.Context, query string, opts SearchOptions) (*Results, error) {
	if c.keyword == nil {
		return &Results{}, nil
	}
	return c.keyword.Search(ctx, query, opts)
}

// ContextMessages returns prompt messages for the snippets relevant to query.
func (c *Context) ContextMessages(ctx context.Context, query string, opts SearchOptions) ([]types.ContextMessage, error) {
	res, err := c.Search(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	var msgs []types.ContextMessage
	for _, r := range res.Code {
		msgs = append(msgs, CodeContextMessages(r.FileName, r.Content, c.name)...)
	}
	for _, r := range res.Text {
		msgs = append(msgs, TextContextMessages(r.FileName, r.Content, c.name)...)
	}
	return msgs, nil
}

// CodeContextMessages wraps a code snippet as a human/assistant message pair.
func CodeContextMessages(fileName, content, repo string) []types.ContextMessage {
	file := &types.ContextFile{FileName: fileName, Repo: repo}
	text := fmt.Sprintf("Use following code snippet from file `%s`:\n```%s\n%s\n```", fileName, Language(fileName), content)
	return []types.ContextMessage{
		{Message: types.Message{Speaker: types.SpeakerHuman, Text: text}, File: file},
		{Message: types.Message{Speaker: types.SpeakerAssistant, Text: "Ok."}, File: file},
	}
}

// TextContextMessages wraps a prose snippet as a human/assistant message pair.
func TextContextMessages(fileName, content, repo string) []types.ContextMessage {
	file := &types.ContextFile{FileName: fileName, Repo: repo}
	text := fmt.Sprintf("Use the following text from file `%s`:\n%s", fileName, content)
	return []types.ContextMessage{
		{Message: types.Message{Speaker: types.SpeakerHuman, Text: text}, File: file},
		{Message: types.Message{Speaker: types.SpeakerAssistant, Text: "Ok."}, File: file},
	}
}

var languages = map[string]string{
	".go": "go", ".ts": "typescript", ".tsx": "tsx", ".js": "javascript", ".jsx": "jsx",
	".py": "python", ".rb": "ruby", ".rs": "rust", ".java": "java", ".kt": "kotlin",
	".c": "c", ".h": "c", ".cpp": "cpp", ".cs": "csharp", ".php": "php", ".sh": "bash",
	".md": "markdown", ".yaml": "yaml", ".yml": "yaml", ".json": "json", ".sql": "sql",
}

// Language returns the markdown fence language for a file name.
func Language(fileName string) string {
	return languages[strings.ToLower(filepath.Ext(fileName))]
}

func dedupe(results []Result, limit int) []Result {
	seen := make(map[string]bool)
	var out []Result
	for _, r := range results {
		key := fmt.Sprintf("%s:%d", r.FileName, r.StartLine)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
