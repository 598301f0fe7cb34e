package plugin

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"

	"github.com/opencode-ai/recipechat/pkg/types"
)

const (
	maxPageSize       = 5 * 1024 * 1024 // 5MB
	maxPageChars      = 8000
	defaultWebTimeout = 30 * time.Second
)

// WebPage is the name of the built-in web page plugin.
const WebPage = "web-page"

// NewWebPage returns a plugin that fetches a URL and returns its main content
// as markdown. A nil client uses http.DefaultClient.
func NewWebPage(client *http.Client) *Plugin {
	if client == nil {
		client = http.DefaultClient
	}
	return &Plugin{
		Name:        WebPage,
		Description: "Fetches web pages mentioned in the question.",
		DataSources: []*Function{{
			FunctionInfo: FunctionInfo{
				Name:        "fetch_web_page",
				Description: "Fetch the content of a web page given its URL. Use it when the question mentions a URL.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"url": map[string]any{
							"type":        "string",
							"description": "The http or https URL to fetch",
						},
					},
					"required": []string{"url"},
				},
			},
			Handler: func(ctx context.Context, params map[string]any, cfg *types.PluginConfig) (any, error) {
				return fetchPage(ctx, client, params, cfg)
			},
		}},
	}
}

// Page is the output of the web page plugin.
type Page struct {
	URL     string `json:"url"`
	Title   string `json:"title,omitempty"`
	Content string `json:"content"`
}

func fetchPage(ctx context.Context, client *http.Client, params map[string]any, cfg *types.PluginConfig) (*Page, error) {
	url, _ := params["url"].(string)
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return nil, fmt.Errorf("URL must start with http:// or https://")
	}

	timeout := defaultWebTimeout
	if cfg != nil && cfg.WebFetchTimeoutMs > 0 {
		timeout = time.Duration(cfg.WebFetchTimeoutMs) * time.Millisecond
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/html;q=1.0, text/markdown;q=0.9, text/plain;q=0.8, */*;q=0.1")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("request failed with status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if len(body) > maxPageSize {
		return nil, fmt.Errorf("response too large (exceeds 5MB limit)")
	}

	page := &Page{URL: url, Content: string(body)}
	if strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		page.Title, page.Content, err = htmlToMarkdown(string(body))
		if err != nil {
			return nil, err
		}
	}
	page.Content = truncate(page.Content, maxPageChars)
	return page, nil
}

// htmlToMarkdown returns the page title and its main content as markdown.
func htmlToMarkdown(html string) (title, content string, err error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", "", fmt.Errorf("parse html: %w", err)
	}
	title = strings.TrimSpace(doc.Find("title").First().Text())

	doc.Find("script, style, noscript, iframe, nav, header, footer").Remove()
	root := doc.Find("main, article").First()
	if root.Length() == 0 {
		root = doc.Find("body")
	}
	inner, err := root.Html()
	if err != nil {
		return "", "", fmt.Errorf("render html: %w", err)
	}

	converter := md.NewConverter("", true, &md.Options{
		HeadingStyle:     "atx",
		HorizontalRule:   "---",
		BulletListMarker: "-",
		CodeBlockStyle:   "fenced",
		EmDelimiter:      "*",
	})
	converter.Remove("script", "style", "meta", "link")

	content, err = converter.ConvertString(inner)
	if err != nil {
		return "", "", fmt.Errorf("convert html to markdown: %w", err)
	}
	return title, strings.TrimSpace(content), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "\n..."
}
