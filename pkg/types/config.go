package types

// Config is the effective engine configuration, produced by config.Load
// from the global, project and environment layers (later layers win);
// there is no managed or cli layer.
type Config struct {
	Model           string                    `json:"model,omitempty"`
	SmallModel      string                    `json:"smallModel,omitempty"`
	Share           string                    `json:"share,omitempty"` // "manual"|"auto"|"disabled"
	Tools           map[string]bool           `json:"tools,omitempty"`
	Provider        map[string]ProviderConfig `json:"provider,omitempty"`
	Agent           map[string]AgentConfig    `json:"agent,omitempty"`
	Permission      *PermissionConfig         `json:"permission,omitempty"`
	MCP             map[string]MCPConfig      `json:"mcp,omitempty"`
	Command         map[string]CommandConfig  `json:"command,omitempty"`
	PromptVariables map[string]string         `json:"promptVariables,omitempty"`
}

// CommandConfig declares a named, templated slash command (§4.5
// "supplemented features": custom commands) that expands into a prompt
// before a turn is submitted to the EngineLoop.
type CommandConfig struct {
	Description string `json:"description,omitempty"`
	Template    string `json:"template"`
	Agent       string `json:"agent,omitempty"`
	Model       string `json:"model,omitempty"`
	Subtask     bool   `json:"subtask,omitempty"`
}

// ProviderConfig holds per-provider configuration.
type ProviderConfig struct {
	APIKey    string   `json:"apiKey,omitempty"`
	BaseURL   string   `json:"baseURL,omitempty"`
	Whitelist []string `json:"whitelist,omitempty"`
	Blacklist []string `json:"blacklist,omitempty"`
	Disable   bool     `json:"disable,omitempty"`
}

// AgentConfig overrides an agent manifest's defaults from configuration.
type AgentConfig struct {
	Model       string            `json:"model,omitempty"`
	Temperature *float64          `json:"temperature,omitempty"`
	TopP        *float64          `json:"topP,omitempty"`
	Prompt      string            `json:"prompt,omitempty"`
	Tools       map[string]bool   `json:"tools,omitempty"`
	Permission  *PermissionConfig `json:"permission,omitempty"`
	Disable     bool              `json:"disable,omitempty"`
}

// PermissionConfig holds global per-tool policy settings.
type PermissionConfig struct {
	Edit        string            `json:"edit,omitempty"` // "allow"|"deny"|"ask"
	Bash        map[string]string `json:"bash,omitempty"`
	WebFetch    string            `json:"webfetch,omitempty"`
	ExternalDir string            `json:"externalDirectory,omitempty"`
	DoomLoop    string            `json:"doomLoop,omitempty"`
}

// MCPConfig declares an MCP server that bridges tools into the registry.
type MCPConfig struct {
	Type        string            `json:"type,omitempty"` // "local"|"remote"
	Command     []string          `json:"command,omitempty"`
	URL         string            `json:"url,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	Environment map[string]string `json:"environment,omitempty"`
	Enabled     *bool             `json:"enabled,omitempty"`
}

// Model represents an LLM model available from a provider.
type Model struct {
	ID                string       `json:"id"`
	Name              string       `json:"name,omitempty"`
	ProviderID        string       `json:"providerID,omitempty"`
	ContextLength     int          `json:"context,omitempty"`
	MaxOutputTokens   int          `json:"maxOutputTokens,omitempty"`
	SupportsTools     bool         `json:"supportsTools,omitempty"`
	SupportsVision    bool         `json:"supportsVision,omitempty"`
	SupportsReasoning bool         `json:"supportsReasoning,omitempty"`
	InputPrice        float64      `json:"inputPrice,omitempty"`
	OutputPrice       float64      `json:"outputPrice,omitempty"`
	Options           ModelOptions `json:"options,omitempty"`
}

// ModelOptions carries provider-specific capability flags that don't
// generalize across providers.
type ModelOptions struct {
	PromptCaching  bool `json:"promptCaching,omitempty"`
	ExtendedOutput bool `json:"extendedOutput,omitempty"`
}

// ProviderEntry is the wire shape returned by GET /provider.
type ProviderEntry struct {
	ID     string           `json:"id"`
	Name   string           `json:"name"`
	Models map[string]Model `json:"models"`
}
