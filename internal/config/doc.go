// Package config loads recipechat configuration.
//
// Sources are merged in priority order, later sources winning:
//
//  1. Global config (~/.config/recipechat/recipechat.json[c], honoring XDG_CONFIG_HOME)
//  2. Project config (recipechat.json[c] and .recipechat/recipechat.json[c])
//  3. RECIPECHAT_CONFIG file
//  4. RECIPECHAT_CONFIG_CONTENT inline JSON
//  5. Environment variables (provider API keys, RECIPECHAT_MODEL,
//     RECIPECHAT_SERVER_ENDPOINT, RECIPECHAT_ACCESS_TOKEN, ...)
//
// Files may contain comments (tidwall/jsonc) and {env:VAR} / {file:path}
// placeholders. After merging, the server endpoint and codebase are
// sanitized and the context mode defaults to "embeddings".
//
// Watch reloads the configuration whenever one of the config files changes.
package config
