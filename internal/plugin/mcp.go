package plugin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/opencode-ai/recipechat/internal/logging"
	"github.com/opencode-ai/recipechat/pkg/types"
)

const defaultMCPTimeout = 5 * time.Second

var mcpClient = sdkmcp.NewClient(&sdkmcp.Implementation{
	Name:    "recipechat",
	Version: "1.0.0",
}, nil)

// NewMCP connects to an MCP server and exposes its tools as a plugin.
func NewMCP(ctx context.Context, name string, cfg types.MCPConfig) (*Plugin, error) {
	timeout := time.Duration(cfg.Timeout) * time.Millisecond
	if timeout == 0 {
		timeout = defaultMCPTimeout
	}

	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var (
		session *sdkmcp.ClientSession
		err     error
	)
	switch cfg.Type {
	case "remote":
		// the remote session outlives the connect timeout
		session, err = connectRemote(context.WithoutCancel(ctx), cfg)
	case "local", "stdio", "":
		if len(cfg.Command) == 0 {
			return nil, fmt.Errorf("mcp %s: empty command", name)
		}
		cmd := exec.Command(cfg.Command[0], cfg.Command[1:]...)
		cmd.Env = os.Environ()
		for k, v := range cfg.Environment {
			cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
		}
		session, err = mcpClient.Connect(connectCtx, &sdkmcp.CommandTransport{Command: cmd}, nil)
	default:
		return nil, fmt.Errorf("mcp %s: unknown transport type: %s", name, cfg.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("mcp %s: failed to connect: %w", name, err)
	}

	p, err := FromMCPSession(connectCtx, name, cfg.Description, session)
	if err != nil {
		session.Close()
		return nil, err
	}
	return p, nil
}

func connectRemote(ctx context.Context, cfg types.MCPConfig) (*sdkmcp.ClientSession, error) {
	httpClient := httpClientWithHeaders(cfg.Headers)
	transports := []struct {
		name      string
		transport sdkmcp.Transport
	}{
		{name: "streamable", transport: &sdkmcp.StreamableClientTransport{Endpoint: cfg.URL, HTTPClient: httpClient}},
		{name: "sse", transport: &sdkmcp.SSEClientTransport{Endpoint: cfg.URL, HTTPClient: httpClient}},
	}

	var lastErr error
	for _, candidate := range transports {
		session, err := mcpClient.Connect(ctx, candidate.transport, nil)
		if err == nil {
			return session, nil
		}
		lastErr = fmt.Errorf("%s transport: %w", candidate.name, err)
	}
	return nil, lastErr
}

// FromMCPSession builds a plugin over an established MCP session. Each tool
// the server lists becomes one data source. Closing the plugin closes the
// session.
func FromMCPSession(ctx context.Context, name, description string, session *sdkmcp.ClientSession) (*Plugin, error) {
	result, err := session.ListTools(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("mcp %s: failed to list tools: %w", name, err)
	}

	if description == "" {
		description = "Tools from the " + name + " MCP server."
	}
	p := &Plugin{
		Name:        name,
		Description: description,
		close:       session.Close,
	}
	for _, tool := range result.Tools {
		toolName := tool.Name
		p.DataSources = append(p.DataSources, &Function{
			FunctionInfo: FunctionInfo{
				Name:        sanitizeName(name) + "_" + sanitizeName(toolName),
				Description: tool.Description,
				Parameters:  schemaMap(tool.InputSchema),
			},
			Handler: func(ctx context.Context, params map[string]any, _ *types.PluginConfig) (any, error) {
				return callTool(ctx, session, toolName, params)
			},
		})
	}
	logging.Debug().Str("plugin", name).Int("tools", len(p.DataSources)).Msg("mcp plugin connected")
	return p, nil
}

func callTool(ctx context.Context, session *sdkmcp.ClientSession, name string, params map[string]any) (string, error) {
	result, err := session.CallTool(ctx, &sdkmcp.CallToolParams{
		Name:      name,
		Arguments: params,
	})
	if err != nil {
		return "", fmt.Errorf("call %s: %w", name, err)
	}

	var output strings.Builder
	for _, content := range result.Content {
		if text, ok := content.(*sdkmcp.TextContent); ok {
			output.WriteString(text.Text)
		}
	}
	if result.IsError {
		return "", fmt.Errorf("tool error: %s", output.String())
	}
	return output.String(), nil
}

// schemaMap normalizes a tool input schema to a plain JSON object.
func schemaMap(schema any) map[string]any {
	out := map[string]any{"type": "object"}
	if schema == nil {
		return out
	}
	data, err := json.Marshal(schema)
	if err != nil {
		return out
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil || m == nil {
		return out
	}
	return m
}

func sanitizeName(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		default:
			return '_'
		}
	}, s)
}

// LoadMCP connects every enabled MCP server in cfg and registers it in c.
// Servers that fail to connect are logged and skipped.
func LoadMCP(ctx context.Context, c *Catalog, cfg *types.PluginConfig) {
	if cfg == nil {
		return
	}
	for name, server := range cfg.MCP {
		if server.Enabled != nil && !*server.Enabled {
			continue
		}
		p, err := NewMCP(ctx, name, server)
		if err != nil {
			logging.Warn().Err(err).Str("plugin", name).Msg("mcp plugin unavailable")
			continue
		}
		c.Register(p)
	}
}

func httpClientWithHeaders(headers map[string]string) *http.Client {
	client := &http.Client{}
	if len(headers) == 0 {
		return client
	}
	client.Transport = &headerRoundTripper{headers: headers, next: http.DefaultTransport}
	return client
}

type headerRoundTripper struct {
	headers map[string]string
	next    http.RoundTripper
}

func (h *headerRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	cloned := req.Clone(req.Context())
	for k, v := range h.headers {
		cloned.Header.Set(k, v)
	}
	return h.next.RoundTrip(cloned)
}
