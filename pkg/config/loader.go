package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
)

// Default returns the zero-config Config: sandboxing disabled, cron
// disabled, no channels, data rooted at ~/.vikingbot.
func Default() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return &Config{
		DataDir: filepath.Join(home, ".vikingbot"),
		Sandbox: NewSandboxConfig(),
		Agents: AgentsConfig{
			Defaults: AgentDefaultsConfig{
				Model:             "claude-sonnet-4-5-20250929",
				Temperature:       0.7,
				MaxTokens:         200000,
				MaxToolIterations: 25,
				WallClockSeconds:  300,
			},
		},
		Tools: ToolsConfig{
			Web: WebSearchConfig{
				Brave:      BraveSearchConfig{MaxResults: 5},
				DuckDuckGo: DuckDuckGoSearchConfig{Enabled: true, MaxResults: 5},
			},
			Memory: MemoryConfig{EmbeddingModel: "text-embedding-3-small"},
		},
		Cron: CronConfig{PollSeconds: 30},
	}
}

// Load reads a JSON config file at path (if it exists), layers environment
// variables on top via struct `env` tags, and returns the merged Config.
// A missing path is not an error; Load falls back to Default() and still
// applies the environment overlay.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("config: reading %s: %w", path, err)
			}
		} else if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: applying environment overlay: %w", err)
	}

	return cfg, nil
}
