package session

import "github.com/opencode-ai/recipechat/pkg/types"

const (
	// DefaultMaxTokens is the prompt limit assumed when neither the local
	// configuration nor the server provides one.
	DefaultMaxTokens = 7000
	// AnswerTokens is the default room reserved for the answer.
	AnswerTokens = 1000
	// SafetyPromptTokens absorbs errors in token estimation.
	SafetyPromptTokens = 100
)

// MaxPromptTokens computes the prompt token budget. Local prompt and solution
// limits, when both are set, take precedence. Otherwise the server maximum
// (or DefaultMaxTokens when serverMax is 0) is reduced by the answer tokens
// and the safety cushion.
func MaxPromptTokens(limits *types.LimitsConfig, serverMax int) int {
	var prompt, solution int
	if limits != nil {
		if limits.Prompt != nil {
			prompt = *limits.Prompt
		}
		if limits.Solution != nil {
			solution = *limits.Solution
		}
	}
	if prompt > 0 && solution > 0 {
		return prompt - solution
	}

	answer := solution
	if answer <= 0 {
		answer = AnswerTokens
	}
	reserved := answer + SafetyPromptTokens

	if serverMax > 0 {
		return serverMax - reserved
	}
	return DefaultMaxTokens - reserved
}
