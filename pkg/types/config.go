// Package types provides the core data types shared by the recipechat packages.
package types

// Config represents the recipechat configuration.
type Config struct {
	// Schema reference (for editor support)
	Schema string `json:"$schema,omitempty"`

	// Server the assistant authenticates against.
	ServerEndpoint string            `json:"serverEndpoint,omitempty"`
	AccessToken    string            `json:"accessToken,omitempty"`
	CustomHeaders  map[string]string `json:"customHeaders,omitempty"`

	// Codebase name used for context retrieval and the preamble.
	Codebase string `json:"codebase,omitempty"`

	// UseContext selects the context source: "embeddings"|"keyword"|"none"|"blended".
	UseContext string `json:"useContext,omitempty"`

	// Model selection: "provider/model" (e.g. "anthropic/claude-sonnet-4-20250514").
	Model string `json:"model,omitempty"`

	// Provider configs
	Provider map[string]ProviderConfig `json:"provider,omitempty"`

	// Local prompt and solution token limits.
	Limits *LimitsConfig `json:"limits,omitempty"`

	// Plugins
	PluginsEnabled bool          `json:"pluginsEnabled,omitempty"`
	EnabledPlugins []string      `json:"enabledPlugins,omitempty"`
	Plugins        *PluginConfig `json:"plugins,omitempty"`

	// Custom recipes file (YAML)
	CustomRecipes string `json:"customRecipes,omitempty"`

	// History persistence
	History *HistoryConfig `json:"history,omitempty"`

	// IdleIntervalMs is the idle scheduler polling interval.
	IdleIntervalMs int `json:"idleIntervalMs,omitempty"`

	// Experimental features
	Experimental *ExperimentalConfig `json:"experimental,omitempty"`
}

// ProviderConfig holds configuration for a specific provider.
type ProviderConfig struct {
	APIKey  string `json:"apiKey,omitempty"`
	BaseURL string `json:"baseURL,omitempty"`

	// Model/Endpoint ID (for providers like ARK that require endpoint specification)
	Model string `json:"model,omitempty"`

	MaxTokens int `json:"maxTokens,omitempty"`

	// Disable provider
	Disable bool `json:"disable,omitempty"`
}

// LimitsConfig holds locally configured token limits. Nil means unset.
type LimitsConfig struct {
	Prompt   *int `json:"prompt,omitempty"`
	Solution *int `json:"solution,omitempty"`
}

// PluginConfig holds settings passed to plugin functions.
type PluginConfig struct {
	// MCP servers exposed as plugins, keyed by plugin name.
	MCP map[string]MCPConfig `json:"mcp,omitempty"`

	// WebFetchTimeoutMs bounds the web page plugin's requests.
	WebFetchTimeoutMs int `json:"webFetchTimeoutMs,omitempty"`

	// Options are free-form per-plugin settings.
	Options map[string]map[string]string `json:"options,omitempty"`
}

// MCPConfig holds MCP server configuration.
type MCPConfig struct {
	Type        string            `json:"type,omitempty"` // "local"|"remote"
	Command     []string          `json:"command,omitempty"`
	URL         string            `json:"url,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	Environment map[string]string `json:"environment,omitempty"`
	Description string            `json:"description,omitempty"`
	Enabled     *bool             `json:"enabled,omitempty"`
	Timeout     int               `json:"timeout,omitempty"`
}

// HistoryConfig selects the durable history backend.
type HistoryConfig struct {
	Backend string `json:"backend,omitempty"` // "file"|"sqlite"
	Path    string `json:"path,omitempty"`
}

// ExperimentalConfig holds experimental feature flags.
type ExperimentalConfig struct {
	Guardrails      bool `json:"guardrails,omitempty"`
	ChatPredictions bool `json:"chatPredictions,omitempty"`
	CustomRecipes   bool `json:"customRecipes,omitempty"`
}

// GuardrailsEnabled reports whether attribution annotation is on.
func (c *Config) GuardrailsEnabled() bool {
	return c != nil && c.Experimental != nil && c.Experimental.Guardrails
}

// ChatPredictionsEnabled reports whether follow-up suggestions are generated.
func (c *Config) ChatPredictionsEnabled() bool {
	return c != nil && c.Experimental != nil && c.Experimental.ChatPredictions
}

// CustomRecipesEnabled reports whether YAML-defined recipes are loaded.
func (c *Config) CustomRecipesEnabled() bool {
	return c != nil && c.Experimental != nil && c.Experimental.CustomRecipes
}

// Model represents an LLM model available from a provider.
type Model struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	ProviderID      string `json:"providerID"`
	ContextLength   int    `json:"contextLength"`
	MaxOutputTokens int    `json:"maxOutputTokens,omitempty"`
}
