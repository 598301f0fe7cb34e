package types

import (
	"encoding/json"
	"testing"
)

func TestConfigFeatureFlags(t *testing.T) {
	var nilConfig *Config
	if nilConfig.GuardrailsEnabled() || nilConfig.ChatPredictionsEnabled() || nilConfig.CustomRecipesEnabled() {
		t.Error("nil config should disable every experimental feature")
	}

	cfg := &Config{}
	if cfg.GuardrailsEnabled() {
		t.Error("Guardrails should be off without an experimental section")
	}

	cfg.Experimental = &ExperimentalConfig{Guardrails: true, CustomRecipes: true}
	if !cfg.GuardrailsEnabled() {
		t.Error("Guardrails should be on")
	}
	if cfg.ChatPredictionsEnabled() {
		t.Error("Chat predictions should be off")
	}
	if !cfg.CustomRecipesEnabled() {
		t.Error("Custom recipes should be on")
	}
}

func TestChatMessageOmitsEmptyFields(t *testing.T) {
	data, err := json.Marshal(ChatMessage{Speaker: SpeakerHuman, Text: "hi"})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	for _, key := range []string{"displayText", "error", "contextFiles", "pluginExecutionInfos"} {
		if _, ok := fields[key]; ok {
			t.Errorf("Expected %s to be omitted, got %s", key, data)
		}
	}
	if fields["speaker"] != "human" {
		t.Errorf("Expected speaker human, got %v", fields["speaker"])
	}
}

func TestContextMessageEmbedsMessage(t *testing.T) {
	msg := ContextMessage{
		Message: Message{Speaker: SpeakerHuman, Text: "Use the following code"},
		File:    &ContextFile{FileName: "server.go", Repo: "github.com/acme/app"},
	}
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var decoded ContextMessage
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if decoded.Text != msg.Text || decoded.Speaker != SpeakerHuman {
		t.Errorf("Message mismatch: %+v", decoded)
	}
	if decoded.File == nil || decoded.File.Repo != "github.com/acme/app" {
		t.Errorf("File mismatch: %+v", decoded.File)
	}
}
