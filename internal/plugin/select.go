package plugin

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/opencode-ai/recipechat/internal/provider"
	"github.com/opencode-ai/recipechat/pkg/types"
)

const selectPrompt = `You are a helpful AI assistant that decides which external functions to call to answer a user query.
You have access to the following functions, described as JSON:

%s

Respond only with a JSON array of objects of the form {"name": "<function name>", "parameters": {...}} listing the functions to call, with parameters that match each function's schema. Respond with [] if no function is useful.

Query: %s`

// SelectRelevant asks the model which functions of the enabled plugins can
// help answer humanInput. Prior messages give the model conversation context.
func SelectRelevant(ctx context.Context, humanInput string, t provider.Transport, enabled []*Plugin, prior []types.Message) ([]Descriptor, error) {
	byName := make(map[string]Descriptor)
	var infos []FunctionInfo
	for _, p := range enabled {
		for _, fn := range p.DataSources {
			byName[fn.Name] = Descriptor{PluginName: p.Name, Function: fn}
			infos = append(infos, fn.FunctionInfo)
		}
	}
	if len(infos) == 0 {
		return nil, nil
	}

	funcs, err := json.MarshalIndent(infos, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal functions: %w", err)
	}

	messages := append([]types.Message{}, prior...)
	messages = append(messages,
		types.Message{Speaker: types.SpeakerHuman, Text: fmt.Sprintf(selectPrompt, funcs, humanInput)},
		types.Message{Speaker: types.SpeakerAssistant},
	)

	reply, err := provider.Complete(ctx, t, messages)
	if err != nil {
		return nil, fmt.Errorf("select plugins: %w", err)
	}
	calls, err := parseCalls(reply)
	if err != nil {
		return nil, err
	}

	var out []Descriptor
	for _, call := range calls {
		d, ok := byName[call.Name]
		if !ok {
			continue
		}
		d.Parameters = call.Parameters
		out = append(out, d)
	}
	return out, nil
}

type functionCall struct {
	Name       string         `json:"name"`
	Parameters map[string]any `json:"parameters"`
}

// parseCalls extracts the JSON array from a model reply, ignoring any prose
// or code fence around it.
func parseCalls(reply string) ([]functionCall, error) {
	start := strings.Index(reply, "[")
	end := strings.LastIndex(reply, "]")
	if start < 0 || end < start {
		return nil, fmt.Errorf("no function list in reply: %q", reply)
	}
	var calls []functionCall
	if err := json.Unmarshal([]byte(reply[start:end+1]), &calls); err != nil {
		return nil, fmt.Errorf("parse function list: %w", err)
	}
	return calls, nil
}
