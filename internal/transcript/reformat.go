package transcript

import (
	"strings"
	"unicode"
)

const codeFence = "```"

// ReformatBotMessage prepares streamed assistant text for display: trailing
// whitespace is trimmed, prefix is prepended, and a code block left open by a
// partial response is closed.
func ReformatBotMessage(text, prefix string) string {
	reformatted := prefix + strings.TrimRightFunc(text, unicode.IsSpace)

	if strings.Count(reformatted, codeFence)%2 == 1 {
		reformatted += "\n" + codeFence
	}
	return reformatted
}
