package recipe

import (
	"context"
	"fmt"
	"strings"

	"github.com/opencode-ai/recipechat/internal/codebase"
	"github.com/opencode-ai/recipechat/internal/provider"
	"github.com/opencode-ai/recipechat/pkg/types"
)

// Selection is the text the user has selected in their editor.
type Selection struct {
	FileName  string `json:"fileName"`
	Text      string `json:"selectedText"`
	Preceding string `json:"precedingText,omitempty"`
	Following string `json:"followingText,omitempty"`
	RepoName  string `json:"repoName,omitempty"`
	Revision  string `json:"revision,omitempty"`
	StartLine int    `json:"startLine,omitempty"`
	EndLine   int    `json:"endLine,omitempty"`
}

// Editor exposes the user's editor state.
type Editor interface {
	WorkspaceRoot() string
	// Selection returns nil when nothing is selected.
	Selection() *Selection
}

// StaticEditor is an Editor with fixed state, as supplied by a request.
type StaticEditor struct {
	Root     string     `json:"workspaceRoot,omitempty"`
	Selected *Selection `json:"selection,omitempty"`
}

func (e *StaticEditor) WorkspaceRoot() string {
	if e == nil {
		return ""
	}
	return e.Root
}

func (e *StaticEditor) Selection() *Selection {
	if e == nil || e.Selected == nil || strings.TrimSpace(e.Selected.Text) == "" {
		return nil
	}
	return e.Selected
}

// SelectionContextMessages describes the selection, with its surrounding
// code, as context.
func SelectionContextMessages(sel *Selection) []types.ContextMessage {
	if sel == nil {
		return nil
	}
	var msgs []types.ContextMessage
	if sel.Preceding != "" || sel.Following != "" {
		msgs = append(msgs, codebase.CodeContextMessages(sel.FileName, sel.Preceding+sel.Text+sel.Following, sel.RepoName)...)
	}
	file := &types.ContextFile{FileName: sel.FileName, Repo: sel.RepoName, Revision: sel.Revision}
	msgs = append(msgs,
		types.ContextMessage{
			Message: types.Message{
				Speaker: types.SpeakerHuman,
				Text:    fmt.Sprintf("I have the `%s` file opened in my editor. I selected this code:\n```%s\n%s\n```", sel.FileName, codebase.Language(sel.FileName), sel.Text),
			},
			File: file,
		},
		types.ContextMessage{Message: types.Message{Speaker: types.SpeakerAssistant, Text: "Ok."}, File: file},
	)
	return msgs
}

// IntentDetector decides whether a question needs codebase context.
type IntentDetector interface {
	IsCodebaseContextRequired(ctx context.Context, input string) (bool, error)
}

// StaticIntent is an IntentDetector with a fixed answer.
type StaticIntent bool

func (s StaticIntent) IsCodebaseContextRequired(context.Context, string) (bool, error) {
	return bool(s), nil
}

const intentPrompt = `Decide whether answering the following question needs context from the user's codebase (their source files), or can be answered from general programming knowledge alone.
Answer with a single word: "yes" if codebase context is needed, "no" otherwise.

Question: %s`

// ModelIntent asks the model to classify the question.
type ModelIntent struct {
	Transport provider.Transport
}

func (m *ModelIntent) IsCodebaseContextRequired(ctx context.Context, input string) (bool, error) {
	reply, err := provider.Complete(ctx, m.Transport, []types.Message{
		{Speaker: types.SpeakerHuman, Text: fmt.Sprintf(intentPrompt, input)},
		{Speaker: types.SpeakerAssistant},
	})
	if err != nil {
		return false, err
	}
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(reply)), "yes"), nil
}

var editorKeywords = []string{"this code", "this file", "selected", "selection", "the code above", "this function"}

// isEditorContextRequired reports whether the question refers to the code
// the user is looking at.
func isEditorContextRequired(input string) bool {
	lower := strings.ToLower(input)
	for _, kw := range editorKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
