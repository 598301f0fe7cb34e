package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/opencode-ai/recipechat/pkg/types"
	"github.com/tidwall/jsonc"
)

// DefaultServerEndpoint is used when no server endpoint is configured.
const DefaultServerEndpoint = "https://sourcegraph.com"

// Context source modes.
const (
	ContextEmbeddings = "embeddings"
	ContextKeyword    = "keyword"
	ContextNone       = "none"
	ContextBlended    = "blended"
)

// History backends.
const (
	HistoryFile   = "file"
	HistorySQLite = "sqlite"
)

var (
	envPattern  = regexp.MustCompile(`\{env:([^}]+)\}`)
	filePattern = regexp.MustCompile(`\{file:([^}]+)\}`)

	protocolPattern = regexp.MustCompile(`^(https?)://`)
)

// Load loads configuration from multiple sources (priority order):
// 1. Global config (~/.config/recipechat/)
// 2. Project config (recipechat.json, .recipechat/)
// 3. RECIPECHAT_CONFIG file
// 4. RECIPECHAT_CONFIG_CONTENT inline JSON
// 5. Environment variables
func Load(directory string) (*types.Config, error) {
	config := &types.Config{
		Provider: make(map[string]types.ProviderConfig),
	}

	loaded := make(map[string]bool)

	loadOnce := func(path string, baseDir string) error {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return nil
		}
		if loaded[absPath] {
			return nil
		}
		err = loadConfigFile(path, config, baseDir)
		if err == nil {
			loaded[absPath] = true
			return nil
		}
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	// 1. XDG global config
	globalPath := GetPaths().Config
	for _, name := range []string{"recipechat.json", "recipechat.jsonc"} {
		if err := loadOnce(filepath.Join(globalPath, name), globalPath); err != nil {
			return nil, err
		}
	}

	// 2. Project config
	if directory != "" {
		projectConfigDir := filepath.Join(directory, ".recipechat")
		candidates := [][2]string{
			{filepath.Join(directory, "recipechat.json"), directory},
			{filepath.Join(directory, "recipechat.jsonc"), directory},
			{filepath.Join(projectConfigDir, "recipechat.json"), projectConfigDir},
			{filepath.Join(projectConfigDir, "recipechat.jsonc"), projectConfigDir},
		}
		for _, c := range candidates {
			if err := loadOnce(c[0], c[1]); err != nil {
				return nil, err
			}
		}
	}

	// 3. RECIPECHAT_CONFIG file override
	if configPath := os.Getenv("RECIPECHAT_CONFIG"); configPath != "" {
		if err := loadOnce(configPath, filepath.Dir(configPath)); err != nil {
			return nil, err
		}
	}

	// 4. RECIPECHAT_CONFIG_CONTENT inline JSON
	if configContent := os.Getenv("RECIPECHAT_CONFIG_CONTENT"); configContent != "" {
		var inlineConfig types.Config
		if err := json.Unmarshal(jsonc.ToJSON([]byte(configContent)), &inlineConfig); err == nil {
			mergeConfig(config, &inlineConfig)
		}
	}

	// 5. Environment variables (highest priority)
	applyEnvOverrides(config)

	Sanitize(config)
	return config, nil
}

// loadConfigFile loads a single config file with interpolation support.
func loadConfigFile(path string, config *types.Config, baseDir string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	data = jsonc.ToJSON(data)
	data = interpolate(data, baseDir)

	var fileConfig types.Config
	if err := json.Unmarshal(data, &fileConfig); err != nil {
		return &ParseError{Path: path, Err: err}
	}

	mergeConfig(config, &fileConfig)
	return nil
}

// ParseError reports a config file that exists but is not valid JSON.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return "config: parse " + e.Path + ": " + e.Err.Error()
}

func (e *ParseError) Unwrap() error { return e.Err }

// interpolate processes {env:VAR} and {file:path} placeholders.
func interpolate(data []byte, baseDir string) []byte {
	str := envPattern.ReplaceAllStringFunc(string(data), func(match string) string {
		return os.Getenv(envPattern.FindStringSubmatch(match)[1])
	})

	str = filePattern.ReplaceAllStringFunc(str, func(match string) string {
		filePath := filePattern.FindStringSubmatch(match)[1]

		if strings.HasPrefix(filePath, "~/") {
			filePath = filepath.Join(os.Getenv("HOME"), filePath[2:])
		} else if !filepath.IsAbs(filePath) {
			filePath = filepath.Join(baseDir, filePath)
		}

		content, err := os.ReadFile(filePath)
		if err != nil {
			return match
		}

		// Embed as the body of a JSON string
		quoted, _ := json.Marshal(strings.TrimRight(string(content), "\n"))
		return string(quoted[1 : len(quoted)-1])
	})

	return []byte(str)
}

// mergeConfig merges source config into target.
func mergeConfig(target, source *types.Config) {
	if source.Schema != "" {
		target.Schema = source.Schema
	}
	if source.ServerEndpoint != "" {
		target.ServerEndpoint = source.ServerEndpoint
	}
	if source.AccessToken != "" {
		target.AccessToken = source.AccessToken
	}
	if source.Codebase != "" {
		target.Codebase = source.Codebase
	}
	if source.UseContext != "" {
		target.UseContext = source.UseContext
	}
	if source.Model != "" {
		target.Model = source.Model
	}
	if source.CustomRecipes != "" {
		target.CustomRecipes = source.CustomRecipes
	}
	if source.IdleIntervalMs != 0 {
		target.IdleIntervalMs = source.IdleIntervalMs
	}
	if source.PluginsEnabled {
		target.PluginsEnabled = true
	}
	if source.EnabledPlugins != nil {
		target.EnabledPlugins = append([]string(nil), source.EnabledPlugins...)
	}

	if source.CustomHeaders != nil {
		if target.CustomHeaders == nil {
			target.CustomHeaders = make(map[string]string)
		}
		for k, v := range source.CustomHeaders {
			target.CustomHeaders[k] = v
		}
	}

	if source.Provider != nil {
		if target.Provider == nil {
			target.Provider = make(map[string]types.ProviderConfig)
		}
		for k, v := range source.Provider {
			target.Provider[k] = v
		}
	}

	if source.Limits != nil {
		if target.Limits == nil {
			target.Limits = &types.LimitsConfig{}
		}
		if source.Limits.Prompt != nil {
			target.Limits.Prompt = source.Limits.Prompt
		}
		if source.Limits.Solution != nil {
			target.Limits.Solution = source.Limits.Solution
		}
	}

	if source.Plugins != nil {
		if target.Plugins == nil {
			target.Plugins = &types.PluginConfig{}
		}
		if source.Plugins.WebFetchTimeoutMs != 0 {
			target.Plugins.WebFetchTimeoutMs = source.Plugins.WebFetchTimeoutMs
		}
		if source.Plugins.MCP != nil {
			if target.Plugins.MCP == nil {
				target.Plugins.MCP = make(map[string]types.MCPConfig)
			}
			for k, v := range source.Plugins.MCP {
				target.Plugins.MCP[k] = v
			}
		}
		if source.Plugins.Options != nil {
			if target.Plugins.Options == nil {
				target.Plugins.Options = make(map[string]map[string]string)
			}
			for k, v := range source.Plugins.Options {
				target.Plugins.Options[k] = v
			}
		}
	}

	if source.History != nil {
		target.History = source.History
	}

	if source.Experimental != nil {
		target.Experimental = source.Experimental
	}
}

// applyEnvOverrides applies environment variable overrides.
func applyEnvOverrides(config *types.Config) {
	providerEnvMap := map[string]string{
		"anthropic": "ANTHROPIC_API_KEY",
		"openai":    "OPENAI_API_KEY",
		"ark":       "ARK_API_KEY",
	}

	for provider, envVar := range providerEnvMap {
		if apiKey := os.Getenv(envVar); apiKey != "" {
			if config.Provider == nil {
				config.Provider = make(map[string]types.ProviderConfig)
			}
			p := config.Provider[provider]
			if p.APIKey == "" {
				p.APIKey = apiKey
				config.Provider[provider] = p
			}
		}
	}

	if model := os.Getenv("ARK_MODEL_ID"); model != "" {
		p := config.Provider["ark"]
		if p.Model == "" {
			p.Model = model
			config.Provider["ark"] = p
		}
	}

	if endpoint := os.Getenv("RECIPECHAT_SERVER_ENDPOINT"); endpoint != "" {
		config.ServerEndpoint = endpoint
	}
	if token := os.Getenv("RECIPECHAT_ACCESS_TOKEN"); token != "" {
		config.AccessToken = token
	}
	if codebase := os.Getenv("RECIPECHAT_CODEBASE"); codebase != "" {
		config.Codebase = codebase
	}
	if model := os.Getenv("RECIPECHAT_MODEL"); model != "" {
		config.Model = model
	}
	if v := os.Getenv("RECIPECHAT_PLUGINS_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			config.PluginsEnabled = enabled
		}
	}
	if v := os.Getenv("RECIPECHAT_PROMPT_TOKEN_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			if config.Limits == nil {
				config.Limits = &types.LimitsConfig{}
			}
			config.Limits.Prompt = &n
		}
	}
	if v := os.Getenv("RECIPECHAT_SOLUTION_TOKEN_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			if config.Limits == nil {
				config.Limits = &types.LimitsConfig{}
			}
			config.Limits.Solution = &n
		}
	}
}

// Sanitize normalizes endpoint, codebase and context mode in place.
func Sanitize(config *types.Config) {
	config.ServerEndpoint = SanitizeServerEndpoint(config.ServerEndpoint)
	config.Codebase = SanitizeCodebase(config.Codebase)

	switch config.UseContext {
	case ContextEmbeddings, ContextKeyword, ContextNone, ContextBlended:
	default:
		config.UseContext = ContextEmbeddings
	}

	if config.History == nil {
		config.History = &types.HistoryConfig{}
	}
	if config.History.Backend != HistorySQLite {
		config.History.Backend = HistoryFile
	}
}

// SanitizeServerEndpoint trims the endpoint and drops one trailing slash.
// An empty endpoint resolves to DefaultServerEndpoint.
func SanitizeServerEndpoint(endpoint string) string {
	if endpoint == "" {
		return DefaultServerEndpoint
	}
	return strings.TrimSuffix(strings.TrimSpace(endpoint), "/")
}

// SanitizeCodebase strips the URL scheme and one trailing slash.
func SanitizeCodebase(codebase string) string {
	if codebase == "" {
		return ""
	}
	codebase = strings.TrimSpace(protocolPattern.ReplaceAllString(codebase, ""))
	return strings.TrimSuffix(codebase, "/")
}

// Save saves the configuration to a file.
func Save(config *types.Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
