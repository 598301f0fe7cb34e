package plugin

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/opencode-ai/recipechat/internal/logging"
	"github.com/opencode-ai/recipechat/pkg/types"
)

// MaxConcurrent bounds how many plugin functions run at once.
const MaxConcurrent = 4

// Result is the prompt context produced by running plugin functions.
type Result struct {
	PromptMessages []types.Message
	ExecutionInfos []types.PluginExecutionInfo
}

// Run executes the selected functions concurrently. A failing function is
// recorded in its execution info and does not stop the others.
func Run(ctx context.Context, descriptors []Descriptor, cfg *types.PluginConfig) (Result, error) {
	if len(descriptors) == 0 {
		return Result{}, nil
	}

	infos := make([]types.PluginExecutionInfo, len(descriptors))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(MaxConcurrent)

	for i, d := range descriptors {
		infos[i] = types.PluginExecutionInfo{
			PluginName: d.PluginName,
			Name:       d.Function.Name,
			Parameters: d.Parameters,
		}
		g.Go(func() error {
			out, err := call(gctx, d, cfg)
			if err != nil {
				logging.Warn().Err(err).Str("plugin", d.PluginName).Str("function", d.Function.Name).Msg("plugin function failed")
				infos[i].Error = err.Error()
				return nil
			}
			infos[i].Output = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	var outputs []any
	for _, info := range infos {
		if info.Error == "" {
			outputs = append(outputs, info.Output)
		}
	}
	if len(outputs) == 0 {
		return Result{ExecutionInfos: infos}, nil
	}

	data, err := json.Marshal(outputs)
	if err != nil {
		return Result{}, fmt.Errorf("marshal plugin outputs: %w", err)
	}
	return Result{
		PromptMessages: []types.Message{
			{Speaker: types.SpeakerHuman, Text: "I have following responses from external API that I called now: " + string(data)},
			{Speaker: types.SpeakerAssistant, Text: "Understood, I have additional knowledge when answering your question."},
		},
		ExecutionInfos: infos,
	}, nil
}

func call(ctx context.Context, d Descriptor, cfg *types.PluginConfig) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("plugin panicked: %v", r)
		}
	}()
	return d.Function.Handler(ctx, d.Parameters, cfg)
}
