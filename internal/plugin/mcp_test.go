package plugin

import (
	"context"
	"fmt"
	"testing"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencode-ai/recipechat/pkg/types"
)

type sumInput struct {
	Numbers []float64 `json:"numbers" jsonschema:"numbers to add"`
}

func sum(_ context.Context, _ *sdkmcp.CallToolRequest, in sumInput) (*sdkmcp.CallToolResult, any, error) {
	if len(in.Numbers) == 0 {
		return &sdkmcp.CallToolResult{
			IsError: true,
			Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: "numbers argument is required"}},
		}, nil, nil
	}
	var total float64
	for _, n := range in.Numbers {
		total += n
	}
	return &sdkmcp.CallToolResult{
		Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: fmt.Sprint(total)}},
	}, nil, nil
}

func connectCalculator(t *testing.T) *sdkmcp.ClientSession {
	t.Helper()
	ctx := context.Background()

	server := sdkmcp.NewServer(&sdkmcp.Implementation{Name: "calculator", Version: "1.0.0"}, nil)
	sdkmcp.AddTool(server, &sdkmcp.Tool{Name: "sum", Description: "Calculates the sum of numbers"}, sum)

	serverTransport, clientTransport := sdkmcp.NewInMemoryTransports()
	serverSession, err := server.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { serverSession.Close() })

	session, err := mcpClient.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	return session
}

func TestMCPPlugin(t *testing.T) {
	ctx := context.Background()
	p, err := FromMCPSession(ctx, "calc", "", connectCalculator(t))
	require.NoError(t, err)
	defer p.Close()

	assert.Equal(t, "calc", p.Name)
	assert.Contains(t, p.Description, "calc")
	require.Len(t, p.DataSources, 1)

	fn := p.DataSources[0]
	assert.Equal(t, "calc_sum", fn.Name)
	assert.Equal(t, "Calculates the sum of numbers", fn.Description)
	assert.Equal(t, "object", fn.Parameters["type"])
	assert.Contains(t, fn.Parameters["properties"], "numbers")

	out, err := fn.Handler(ctx, map[string]any{"numbers": []any{1, 2, 3.5}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "6.5", out)

	_, err = fn.Handler(ctx, map[string]any{"numbers": []any{}}, nil)
	assert.ErrorContains(t, err, "numbers argument is required")
}

func TestMCPPluginRunsThroughRun(t *testing.T) {
	ctx := context.Background()
	p, err := FromMCPSession(ctx, "calc", "Arithmetic", connectCalculator(t))
	require.NoError(t, err)
	c := NewCatalog(p)
	defer c.Close()

	res, err := Run(ctx, []Descriptor{{
		PluginName: p.Name,
		Function:   p.DataSources[0],
		Parameters: map[string]any{"numbers": []any{2, 2}},
	}}, nil)
	require.NoError(t, err)
	require.Len(t, res.ExecutionInfos, 1)
	assert.Equal(t, "4", res.ExecutionInfos[0].Output)
	assert.Contains(t, res.PromptMessages[0].Text, `["4"]`)
}

func TestNewMCPRejectsBadConfig(t *testing.T) {
	_, err := NewMCP(context.Background(), "x", types.MCPConfig{Type: "local"})
	assert.ErrorContains(t, err, "empty command")

	_, err = NewMCP(context.Background(), "x", types.MCPConfig{Type: "carrier-pigeon"})
	assert.ErrorContains(t, err, "unknown transport")
}

func TestLoadMCPSkipsDisabledAndFailing(t *testing.T) {
	disabled := false
	c := NewCatalog()
	LoadMCP(context.Background(), c, &types.PluginConfig{MCP: map[string]types.MCPConfig{
		"off":    {Type: "local", Command: []string{"true"}, Enabled: &disabled},
		"broken": {Type: "local"},
	}})
	assert.Empty(t, c.Names())
	LoadMCP(context.Background(), c, nil)
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "my_server_v1", sanitizeName("my server.v1"))
	assert.Equal(t, "ok-name_1", sanitizeName("ok-name_1"))
}
