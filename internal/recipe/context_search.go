package recipe

import (
	"context"
	"fmt"
	"strings"

	"github.com/opencode-ai/recipechat/internal/codebase"
	"github.com/opencode-ai/recipechat/internal/transcript"
	"github.com/opencode-ai/recipechat/pkg/types"
)

type contextSearch struct{}

func (*contextSearch) ID() ID           { return ContextSearch }
func (*contextSearch) Title() string    { return "Codebase Context Search" }
func (*contextSearch) SkipsModel() bool { return true }

func (r *contextSearch) Interaction(ctx context.Context, humanInput string, rc Context) (*transcript.Interaction, error) {
	query := strings.TrimSpace(humanInput)
	if query == "" {
		return nil, nil
	}
	query = truncateText(query, MaxHumanInputTokens)

	var answer string
	if rc.Codebase == nil {
		answer = "Codebase search is not available: no codebase is configured."
	} else {
		results, err := rc.Codebase.Search(ctx, query, codebase.SearchOptions{NumCodeResults: 12, NumTextResults: 3})
		if err != nil {
			return nil, err
		}
		answer = formatResults(query, results)
	}

	return transcript.NewInteraction(
		types.InteractionMessage{Text: query, DisplayText: humanInput},
		types.InteractionMessage{Text: answer, DisplayText: answer},
		nil,
	), nil
}

func formatResults(query string, results *codebase.Results) string {
	if len(results.Code) == 0 && len(results.Text) == 0 {
		return fmt.Sprintf("No results found for `%s`.", query)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Search results for `%s`:\n", query)
	for _, res := range append(append([]codebase.Result(nil), results.Code...), results.Text...) {
		fmt.Fprintf(&b, "\n- `%s` (lines %d-%d)\n", res.FileName, res.StartLine, res.EndLine)
		fmt.Fprintf(&b, "```%s\n%s\n```\n", codebase.Language(res.FileName), strings.TrimRight(res.Content, "\n"))
	}
	return b.String()
}
