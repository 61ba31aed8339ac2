// Package config holds VikingBot's configuration schema: the sandbox,
// agent, tool, channel and provider settings every other package consumes.
// Concrete file-format parsing is intentionally thin (see loader.go) — the
// schema itself is the contract other components are grounded on.
package config

import "path/filepath"

// SandboxNetworkConfig controls the SRT backend's network policy.
type SandboxNetworkConfig struct {
	AllowedDomains    []string `json:"allowed_domains" yaml:"allowed_domains"`
	DeniedDomains     []string `json:"denied_domains" yaml:"denied_domains"`
	AllowLocalBinding bool     `json:"allow_local_binding" yaml:"allow_local_binding"`
}

// SandboxFilesystemConfig controls the SRT backend's filesystem policy.
type SandboxFilesystemConfig struct {
	DenyRead   []string `json:"deny_read" yaml:"deny_read"`
	AllowWrite []string `json:"allow_write" yaml:"allow_write"`
	DenyWrite  []string `json:"deny_write" yaml:"deny_write"`
}

// SandboxRuntimeConfig controls lifecycle behavior shared across backends.
type SandboxRuntimeConfig struct {
	CleanupOnExit bool `json:"cleanup_on_exit" yaml:"cleanup_on_exit"`
	Timeout       int  `json:"timeout" yaml:"timeout"` // seconds
}

// NewSandboxRuntimeConfig returns the defaults matching the original
// source's SandboxRuntimeConfig (cleanup_on_exit=True, timeout=300).
func NewSandboxRuntimeConfig() SandboxRuntimeConfig {
	return SandboxRuntimeConfig{CleanupOnExit: true, Timeout: 300}
}

// SrtBackendConfig configures the SRT sandbox backend.
type SrtBackendConfig struct {
	NodePath     string `json:"node_path" yaml:"node_path" env:"VIKINGBOT_SRT_NODE_PATH" envDefault:"node"`
	SettingsPath string `json:"settings_path" yaml:"settings_path"`
}

// NewSrtBackendConfig returns the SRT backend defaults.
func NewSrtBackendConfig() SrtBackendConfig {
	return SrtBackendConfig{
		NodePath:     "node",
		SettingsPath: "~/.vikingbot/srt-settings.json",
	}
}

// DockerBackendConfig configures a (future) Docker sandbox backend; carried
// over from the original schema for configuration-surface parity even
// though this module only ships the "srt" backend.
type DockerBackendConfig struct {
	Image       string `json:"image" yaml:"image"`
	NetworkMode string `json:"network_mode" yaml:"network_mode"`
}

// NewDockerBackendConfig returns the Docker backend defaults.
func NewDockerBackendConfig() DockerBackendConfig {
	return DockerBackendConfig{Image: "python:3.11-slim", NetworkMode: "bridge"}
}

// MCPServerConfig describes one MCP server process for
// MCPManager.StartFromConfig.
type MCPServerConfig struct {
	Enabled bool              `json:"enabled" yaml:"enabled"`
	Name    string            `json:"name" yaml:"name"`
	Command string            `json:"command" yaml:"command"`
	Args    []string          `json:"args" yaml:"args"`
	Env     map[string]string `json:"env" yaml:"env"`
}

// SandboxBackendsConfig groups per-backend configuration blocks.
type SandboxBackendsConfig struct {
	Srt    SrtBackendConfig    `json:"srt" yaml:"srt"`
	Docker DockerBackendConfig `json:"docker" yaml:"docker"`
}

// NewSandboxBackendsConfig returns defaults for every known backend.
func NewSandboxBackendsConfig() SandboxBackendsConfig {
	return SandboxBackendsConfig{
		Srt:    NewSrtBackendConfig(),
		Docker: NewDockerBackendConfig(),
	}
}

// SandboxMode selects how sandboxes are allocated across sessions.
type SandboxMode string

const (
	SandboxModeDisabled   SandboxMode = "disabled"
	SandboxModePerSession SandboxMode = "per-session"
	SandboxModeShared     SandboxMode = "shared"
)

// SandboxConfig is the top-level sandbox configuration block.
type SandboxConfig struct {
	Enabled    bool                    `json:"enabled" yaml:"enabled"`
	Backend    string                  `json:"backend" yaml:"backend"`
	Mode       SandboxMode             `json:"mode" yaml:"mode"`
	Network    SandboxNetworkConfig    `json:"network" yaml:"network"`
	Filesystem SandboxFilesystemConfig `json:"filesystem" yaml:"filesystem"`
	Runtime    SandboxRuntimeConfig    `json:"runtime" yaml:"runtime"`
	Backends   SandboxBackendsConfig   `json:"backends" yaml:"backends"`
}

// NewSandboxConfig returns the default SandboxConfig: disabled, srt backend,
// disabled mode, zero-value network/filesystem policy, default runtime.
func NewSandboxConfig() SandboxConfig {
	return SandboxConfig{
		Enabled:  false,
		Backend:  "srt",
		Mode:     SandboxModeDisabled,
		Runtime:  NewSandboxRuntimeConfig(),
		Backends: NewSandboxBackendsConfig(),
	}
}

// AgentDefaultsConfig configures the primary agent's model and restrictions.
type AgentDefaultsConfig struct {
	Model               string  `json:"model" yaml:"model" env:"VIKINGBOT_MODEL" envDefault:"claude-sonnet-4-5-20250929"`
	FallbackModel       string  `json:"fallback_model" yaml:"fallback_model"`
	Temperature         float64 `json:"temperature" yaml:"temperature" envDefault:"0.7"`
	MaxTokens           int     `json:"max_tokens" yaml:"max_tokens" envDefault:"200000"`
	MaxToolIterations   int     `json:"max_tool_iterations" yaml:"max_tool_iterations" envDefault:"25"`
	WallClockSeconds    int     `json:"wall_clock_seconds" yaml:"wall_clock_seconds" envDefault:"300"`
	RestrictToWorkspace bool    `json:"restrict_to_workspace" yaml:"restrict_to_workspace"`
}

// AgentsConfig groups primary and specialist agent configuration.
type AgentsConfig struct {
	Defaults AgentDefaultsConfig `json:"defaults" yaml:"defaults"`
}

// BraveSearchConfig configures the Brave web-search backend.
type BraveSearchConfig struct {
	APIKey     string `json:"api_key" yaml:"api_key" env:"BRAVE_API_KEY"`
	Enabled    bool   `json:"enabled" yaml:"enabled"`
	MaxResults int    `json:"max_results" yaml:"max_results" envDefault:"5"`
}

// DuckDuckGoSearchConfig configures the no-API-key ddgs scrape backend.
type DuckDuckGoSearchConfig struct {
	Enabled    bool `json:"enabled" yaml:"enabled"`
	MaxResults int  `json:"max_results" yaml:"max_results" envDefault:"5"`
}

// WebSearchConfig configures pluggable web-search backends.
type WebSearchConfig struct {
	ExaAPIKey  string                 `json:"exa_api_key" yaml:"exa_api_key" env:"EXA_API_KEY"`
	Brave      BraveSearchConfig      `json:"brave" yaml:"brave"`
	DuckDuckGo DuckDuckGoSearchConfig `json:"duckduckgo" yaml:"duckduckgo"`
}

// ImageConfig configures the generate_image tool's provider.
type ImageConfig struct {
	Model   string `json:"model" yaml:"model"`
	APIKey  string `json:"api_key" yaml:"api_key"`
	APIBase string `json:"api_base" yaml:"api_base"`
}

// MoodleConfig configures the QM+/Moodle coursework tool.
type MoodleConfig struct {
	Enabled      bool   `json:"enabled" yaml:"enabled"`
	URL          string `json:"url" yaml:"url"`
	Token        string `json:"token" yaml:"token" env:"MOODLE_TOKEN"`
	M365Username string `json:"m365_username" yaml:"m365_username" env:"MOODLE_M365_USERNAME"`
	M365Password string `json:"m365_password" yaml:"m365_password" env:"MOODLE_M365_PASSWORD"`
}

// EmailConfig configures the M365 Outlook email tool, and, when Accounts is
// non-empty, the proactive inbox monitor that triages those mailboxes on a
// timer and forwards urgent mail to NotifyChannel/NotifyChatID — distinct
// from the "email" channel type, which turns one mailbox's unread messages
// into full agent conversations instead of a cheap-model triage pass.
type EmailConfig struct {
	Enabled      bool           `json:"enabled" yaml:"enabled"`
	Address      string         `json:"address" yaml:"address"`
	Accounts     []EmailAccount `json:"accounts" yaml:"accounts"`
	PollMinutes  int            `json:"poll_minutes" yaml:"poll_minutes" envDefault:"5"`
	NotifyChannel string        `json:"notify_channel" yaml:"notify_channel"`
	NotifyChatID  string        `json:"notify_chat_id" yaml:"notify_chat_id"`
}

// EmailAccount is one inbox the email monitor polls and, for the email
// channel, sends through.
type EmailAccount struct {
	Label   string `json:"label" yaml:"label"`
	Address string `json:"address" yaml:"address"`
}

// MemoryConfig controls the agent's semantic (vector-store-backed) memory.
type MemoryConfig struct {
	SemanticSearch   bool   `json:"semantic_search" yaml:"semantic_search"`
	KnowledgeExtract bool   `json:"knowledge_extract" yaml:"knowledge_extract"`
	EmbeddingModel   string `json:"embedding_model" yaml:"embedding_model" envDefault:"text-embedding-3-small"`
}

// ToolsConfig groups tool-level configuration.
type ToolsConfig struct {
	Web    WebSearchConfig `json:"web" yaml:"web"`
	Image  ImageConfig     `json:"image" yaml:"image"`
	Moodle MoodleConfig    `json:"moodle" yaml:"moodle"`
	Email  EmailConfig     `json:"email" yaml:"email"`
	Memory MemoryConfig    `json:"memory" yaml:"memory"`
}

// ChannelType enumerates supported chat backends.
type ChannelType string

const (
	ChannelTelegram ChannelType = "telegram"
	ChannelFeishu   ChannelType = "feishu"
	ChannelDiscord  ChannelType = "discord"
	ChannelWhatsApp ChannelType = "whatsapp"
	ChannelMochat   ChannelType = "mochat"
	ChannelDingTalk ChannelType = "dingtalk"
	ChannelEmail    ChannelType = "email"
	ChannelSlack    ChannelType = "slack"
	ChannelQQ       ChannelType = "qq"
)

// ChannelConfig is the common shape every channel adapter is constructed
// from; platform-specific credentials live in Extra.
type ChannelConfig struct {
	Type      ChannelType       `json:"type" yaml:"type"`
	UniqueID  string            `json:"unique_id" yaml:"unique_id"`
	Enabled   bool              `json:"enabled" yaml:"enabled"`
	AllowFrom []string          `json:"allow_from" yaml:"allow_from"`
	Extra     map[string]string `json:"extra" yaml:"extra"`
}

// ChannelsConfig holds the configured set of channel instances.
type ChannelsConfig struct {
	Channels []ChannelConfig `json:"channels" yaml:"channels"`
}

// GetAllChannels returns every configured channel, enabled or not.
func (c ChannelsConfig) GetAllChannels() []ChannelConfig {
	return c.Channels
}

// AnthropicProviderConfig configures the Claude provider.
type AnthropicProviderConfig struct {
	APIKey string `json:"api_key" yaml:"api_key" env:"ANTHROPIC_API_KEY"`
}

// OpenAIProviderConfig configures the OpenAI provider and, doubling as the
// embedding backend, the semantic memory store.
type OpenAIProviderConfig struct {
	APIKey  string `json:"api_key" yaml:"api_key" env:"OPENAI_API_KEY"`
	BaseURL string `json:"base_url" yaml:"base_url"`
}

// OpenRouterProviderConfig configures OpenRouter as an OpenAI-compatible
// fallback, both for chat completions and (via resolveEmbeddingFunc) for
// embeddings when no direct OpenAI key is configured.
type OpenRouterProviderConfig struct {
	APIKey  string `json:"api_key" yaml:"api_key" env:"OPENROUTER_API_KEY"`
	APIBase string `json:"api_base" yaml:"api_base"`
}

// ProvidersConfig groups LLM provider credentials.
type ProvidersConfig struct {
	Anthropic  AnthropicProviderConfig  `json:"anthropic" yaml:"anthropic"`
	OpenAI     OpenAIProviderConfig     `json:"openai" yaml:"openai"`
	OpenRouter OpenRouterProviderConfig `json:"openrouter" yaml:"openrouter"`
}

// CronConfig enables/disables the cron scheduler and sets its poll interval.
type CronConfig struct {
	Enabled     bool `json:"enabled" yaml:"enabled"`
	PollSeconds int  `json:"poll_seconds" yaml:"poll_seconds" envDefault:"30"`
}

// Config is the top-level VikingBot configuration.
type Config struct {
	DataDir        string          `json:"data_dir" yaml:"data_dir"`
	Sandbox        SandboxConfig   `json:"sandbox" yaml:"sandbox"`
	Agents         AgentsConfig    `json:"agents" yaml:"agents"`
	Tools          ToolsConfig     `json:"tools" yaml:"tools"`
	ChannelsConfig ChannelsConfig  `json:"channels" yaml:"channels"`
	Providers      ProvidersConfig `json:"providers" yaml:"providers"`
	Cron           CronConfig      `json:"cron" yaml:"cron"`
}

// WorkspacePath returns the default workspace directory under DataDir.
func (c *Config) WorkspacePath() string {
	return filepath.Join(c.DataDir, "workspace", "default")
}

// SessionsPath returns the directory persisted sessions live under.
func (c *Config) SessionsPath() string {
	return filepath.Join(c.DataDir, "sessions")
}

// SandboxParentPath returns the parent directory sandbox workspaces nest
// under — distinct from WorkspacePath, the source-template workspace (see
// the SandboxManager two-argument constructor, DESIGN.md Open Question 1).
func (c *Config) SandboxParentPath() string {
	return filepath.Join(c.DataDir, "workspace")
}

// CronJobsPath returns the directory cron job definitions are persisted
// under.
func (c *Config) CronJobsPath() string {
	return filepath.Join(c.DataDir, "cron")
}

// SandboxSettingsDir returns the directory SRT settings files are written
// to.
func (c *Config) SandboxSettingsDir() string {
	return filepath.Join(c.DataDir, "sandboxes")
}
