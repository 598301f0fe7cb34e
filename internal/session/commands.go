package session

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/opencode-ai/recipechat/internal/recipe"
)

var (
	resetCommand  = regexp.MustCompile(`(?i)^/r(eset)?`)
	searchCommand = regexp.MustCompile(`(?i)^/s(earch)?\s`)
)

// knownCommands are offered as hints for mistyped slash commands.
var knownCommands = []string{"/reset", "/search"}

// maxCommandDistance is the largest edit distance that counts as a typo.
const maxCommandDistance = 2

// ExecuteCommands runs text as a slash command or, failing that, as input to
// recipe id (chat-question when empty):
//
//	/reset, /r      clear and restart the session
//	/search <q>     search the codebase for q without asking the model
//
// A word that looks like a mistyped command is rejected with a hint.
func (o *Orchestrator) ExecuteCommands(ctx context.Context, text string, id recipe.ID) error {
	if id == "" {
		id = recipe.ChatQuestion
	}
	switch {
	case resetCommand.MatchString(text):
		return o.ClearAndRestartSession(ctx)
	case searchCommand.MatchString(text):
		return o.ExecuteRecipe(ctx, recipe.ContextSearch, stripCommand(text))
	}
	if hint := commandHint(text); hint != "" {
		return fmt.Errorf("%w: did you mean %s?", ErrUnknownCommand, hint)
	}
	return o.ExecuteRecipe(ctx, id, text)
}

func stripCommand(text string) string {
	_, rest, _ := strings.Cut(text, " ")
	return strings.TrimSpace(rest)
}

// commandHint returns the known command closest to the first word of text
// when that word is a slash command within typo distance of one.
func commandHint(text string) string {
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	word := strings.ToLower(strings.Fields(text)[0])
	if strings.Count(word, "/") > 1 {
		// a path, not a command
		return ""
	}
	best, bestDist := "", maxCommandDistance+1
	for _, cmd := range knownCommands {
		if d := levenshtein.ComputeDistance(word, cmd); d < bestDist {
			best, bestDist = cmd, d
		}
	}
	if best == "/search" {
		return "/search <query>"
	}
	return best
}
