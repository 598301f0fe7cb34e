package recipe

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/opencode-ai/recipechat/internal/codebase"
	"github.com/opencode-ai/recipechat/internal/transcript"
	"github.com/opencode-ai/recipechat/pkg/types"
)

// CustomFile is the on-disk format of custom recipes:
//
//	recipes:
//	  write-tests:
//	    title: Generate unit tests
//	    prompt: "Write unit tests for:\n{{selection}}"
//	    context:
//	      codebase: true
//	      selection: true
type CustomFile struct {
	Recipes map[string]CustomDefinition `yaml:"recipes"`
}

// CustomDefinition describes one custom recipe.
type CustomDefinition struct {
	Title             string        `yaml:"title"`
	Prompt            string        `yaml:"prompt"`
	Prefix            string        `yaml:"prefix,omitempty"`
	Context           CustomContext `yaml:"context,omitempty"`
	RequiresSelection bool          `yaml:"requiresSelection,omitempty"`
	Plugins           bool          `yaml:"plugins,omitempty"`
}

// CustomContext selects the context a custom recipe gathers.
type CustomContext struct {
	Codebase  bool `yaml:"codebase,omitempty"`
	Selection bool `yaml:"selection,omitempty"`
}

// Custom is a recipe defined by a prompt template. The template may use
// {{input}}, {{selection}} and {{file}}.
type Custom struct {
	id  ID
	def CustomDefinition
}

// LoadCustom reads the custom recipes in path, sorted by ID.
func LoadCustom(path string) ([]*Custom, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read custom recipes: %w", err)
	}
	return ParseCustom(data)
}

// ParseCustom decodes custom recipes from YAML.
func ParseCustom(data []byte) ([]*Custom, error) {
	var f CustomFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse custom recipes: %w", err)
	}

	out := make([]*Custom, 0, len(f.Recipes))
	for id, def := range f.Recipes {
		if strings.TrimSpace(def.Prompt) == "" {
			return nil, fmt.Errorf("custom recipe %q: prompt is required", id)
		}
		if def.Title == "" {
			def.Title = id
		}
		out = append(out, &Custom{id: ID(id), def: def})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out, nil
}

func (c *Custom) ID() ID            { return c.id }
func (c *Custom) Title() string     { return c.def.Title }
func (c *Custom) UsesPlugins() bool { return c.def.Plugins }

func (c *Custom) Interaction(ctx context.Context, humanInput string, rc Context) (*transcript.Interaction, error) {
	var sel *Selection
	if rc.Editor != nil {
		sel = rc.Editor.Selection()
	}
	if c.def.RequiresSelection && sel == nil {
		return nil, nil
	}

	input := truncateText(strings.TrimSpace(humanInput), MaxHumanInputTokens)
	replacements := []string{"{{input}}", input}
	if sel != nil {
		replacements = append(replacements,
			"{{selection}}", truncateText(sel.Text, MaxHumanInputTokens),
			"{{file}}", sel.FileName,
		)
	} else {
		replacements = append(replacements, "{{selection}}", "", "{{file}}", "")
	}
	text := strings.NewReplacer(replacements...).Replace(c.def.Prompt)

	var contextMessages []types.ContextMessage
	if c.def.Context.Codebase && rc.Codebase != nil {
		query := input
		if query == "" && sel != nil {
			query = sel.Text
		}
		found, err := rc.Codebase.ContextMessages(ctx, query, codebase.DefaultSearchOptions)
		if err != nil {
			return nil, err
		}
		contextMessages = append(contextMessages, found...)
	}
	if c.def.Context.Selection {
		contextMessages = append(contextMessages, SelectionContextMessages(sel)...)
	}

	display := humanInput
	if display == "" {
		display = c.def.Title
	}
	return transcript.NewInteraction(
		types.InteractionMessage{Text: text, DisplayText: display},
		types.InteractionMessage{Prefix: c.def.Prefix},
		contextMessages,
	), nil
}
